package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExportAttendanceCSVPayload asks the worker to write a CSV file covering a
// day range. Empty From/To means "everything".
type ExportAttendanceCSVPayload struct {
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	RequestedBy string `json:"requestedBy"`
}

// NotifyMarkedPayload announces a successful attendance mark.
type NotifyMarkedPayload struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Day      string    `json:"date"`
	TimeIn   time.Time `json:"timeIn"`
}

// EncodePayload marshals a typed payload after checking it matches the job type.
func EncodePayload(t Type, payload any) (json.RawMessage, error) {
	if !t.IsValid() {
		return nil, ErrInvalidType
	}

	ok := false

	switch t {
	case TypeExportAttendanceCSV:
		switch payload.(type) {
		case ExportAttendanceCSVPayload, *ExportAttendanceCSVPayload:
			ok = true
		}
	case TypeNotifyMarked:
		switch payload.(type) {
		case NotifyMarkedPayload, *NotifyMarkedPayload:
			ok = true
		}
	}

	if !ok {
		return nil, fmt.Errorf("%w: payload does not match %s", ErrInvalidPayload, t)
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the payload struct for its type.
func DecodePayload(j Job) (any, error) {
	if !j.Type.IsValid() {
		return nil, ErrInvalidType
	}

	if len(j.Payload) == 0 {
		return nil, ErrInvalidPayload
	}

	switch j.Type {
	case TypeExportAttendanceCSV:
		var p ExportAttendanceCSVPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, nil

	case TypeNotifyMarked:
		var p NotifyMarkedPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidType
	}
}
