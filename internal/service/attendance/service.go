package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/markmehq/markme/internal/domain/attendance"
	"github.com/markmehq/markme/internal/domain/user"
)

// Keep these interfaces small so tests can fake them easily.

type UserResolver interface {
	GetByQRToken(ctx context.Context, token string) (user.User, error)
}

type RecordStore interface {
	InsertIfAbsent(ctx context.Context, rec attendance.Record) (bool, error)
}

type Outcome string

const (
	OutcomeMarked        Outcome = "marked"
	OutcomeAlreadyMarked Outcome = "already_marked"
)

type MarkResult struct {
	Outcome Outcome
	User    user.User
	Record  attendance.Record
}

type Service struct {
	users   UserResolver
	records RecordStore
	now     func() time.Time
}

func NewService(users UserResolver, records RecordStore) *Service {
	return &Service{
		users:   users,
		records: records,
		now:     time.Now,
	}
}

// WithClock overrides the clock; tests pin "today" with it.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MarkByToken resolves a scanned token to a user and records today's
// attendance for them. The insert is conditional on no record existing for
// (user, today); when one does, the scan reports already-marked instead of
// creating a duplicate. Unknown tokens never create a record.
func (s *Service) MarkByToken(ctx context.Context, token string) (MarkResult, error) {
	if token == "" {
		return MarkResult{}, attendance.ErrInvalidToken
	}

	u, err := s.users.GetByQRToken(ctx, token)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return MarkResult{}, attendance.ErrInvalidToken
		}

		return MarkResult{}, err
	}

	rec := attendance.NewPresent(u.ID, u.FullName, s.now())

	inserted, err := s.records.InsertIfAbsent(ctx, rec)

	if err != nil {
		return MarkResult{}, err
	}

	if !inserted {
		return MarkResult{Outcome: OutcomeAlreadyMarked, User: u}, nil
	}

	return MarkResult{Outcome: OutcomeMarked, User: u, Record: rec}, nil
}
