package worker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func healthGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(rec, req)

	return rec
}

func waitForReady(t *testing.T, h http.Handler, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		if healthGet(t, h, "/readyz").Code == want {
			return
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("readyz never reached status %d", want)
}

func TestHealthHandler(t *testing.T) {
	w := newWorker(&fakeJobsRepo{}, &fakeNotifier{})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	h := w.HealthHandler(reg)

	if rec := healthGet(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}

	// not ready until the poll loop runs
	if rec := healthGet(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before Run = %d, want 503", rec.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	waitForReady(t, h, http.StatusOK)

	rec := healthGet(t, h, "/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatal("metrics output is missing runtime collector series")
	}

	cancel()
	<-done

	if rec := healthGet(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz after shutdown = %d, want 503", rec.Code)
	}
}
