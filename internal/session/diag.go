package session

import (
	"time"

	"github.com/flitsinc/go-transcript/internal/events"
)

// Diagnostic codes. No diagnostic is fatal; a best-effort transcript is
// always preferable to no transcript.
const (
	DiagUnresolvedReference = "unresolved_reference"
	DiagDuplicateStart      = "duplicate_start"
	DiagDuplicateResult     = "duplicate_result"
	DiagSelfParent          = "self_parent"
	DiagMalformedEvent      = "malformed_event"
)

// Diagnostic records one recovered anomaly during aggregation. Timestamps
// come from the offending event, never from the wall clock, so replaying
// the same history yields the same diagnostics.
type Diagnostic struct {
	Code    string    `json:"code"`
	EventID string    `json:"eventId,omitempty"`
	CallID  string    `json:"callId,omitempty"`
	Detail  string    `json:"detail"`
	At      time.Time `json:"at"`
}

func (s *State) diag(code string, ev events.Event, detail string) {
	s.diags = append(s.diags, Diagnostic{
		Code:    code,
		EventID: ev.ID,
		CallID:  ev.CallID,
		Detail:  detail,
		At:      ev.Timestamp,
	})
}
