package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionStateIdle            SessionState = "IDLE"
	SessionStateAwaitingDevice  SessionState = "AWAITING_DEVICE"
	SessionStateRequesting      SessionState = "REQUESTING"
	SessionStateConnecting      SessionState = "CONNECTING"
	SessionStateInCall          SessionState = "IN_CALL"
	SessionStateIncomingRinging SessionState = "INCOMING_RINGING"
	SessionStateEnded           SessionState = "ENDED"
)

type TerminationReason string

const (
	TerminationUserHangup       TerminationReason = "USER_HANGUP"
	TerminationRemoteDisconnect TerminationReason = "REMOTE_DISCONNECT"
	TerminationCanceled         TerminationReason = "CANCELED"
	TerminationFailed           TerminationReason = "FAILED"
)

// CallSession is the single mutable entity for the call currently being
// handled. It is exclusively owned by the session state machine; everything
// else reads copies via Snapshot.
type CallSession struct {
	ID                string            `json:"id"`
	State             SessionState      `json:"state"`
	TargetNumber      string            `json:"target_number,omitempty"`
	CallSID           string            `json:"call_sid,omitempty"`
	Conference        string            `json:"conference,omitempty"`
	RequestID         string            `json:"request_id,omitempty"`
	IsMuted           bool              `json:"is_muted"`
	UserHangup        bool              `json:"user_hangup"`
	TerminationReason TerminationReason `json:"termination_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	EndedAt           *time.Time        `json:"ended_at,omitempty"`
}

func NewCallSession(state SessionState) *CallSession {
	return &CallSession{
		ID:        uuid.New().String(),
		State:     state,
		CreatedAt: time.Now(),
	}
}

// Live reports whether the session occupies the single live-call slot.
func (s *CallSession) Live() bool {
	switch s.State {
	case SessionStateIdle, SessionStateAwaitingDevice, SessionStateEnded:
		return false
	}
	return true
}

// Duration is the in-call time; zero when the session never reached IN_CALL.
func (s *CallSession) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	return end.Sub(*s.StartedAt)
}

// Outcome maps the termination reason to the call-log outcome label.
func (r TerminationReason) Outcome() string {
	switch r {
	case TerminationUserHangup, TerminationRemoteDisconnect:
		return "completed"
	default:
		return "failed"
	}
}
