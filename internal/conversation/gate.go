package conversation

import (
	"strings"

	"rfpchat/internal/session"
)

// DocumentReadiness tracks whether an uploaded document has been accepted and
// processed by the backend. It gates chat availability.
type DocumentReadiness int

const (
	NotUploaded DocumentReadiness = iota
	Uploading
	Ready
	Failed
)

func (r DocumentReadiness) String() string {
	switch r {
	case Uploading:
		return "uploading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "not-uploaded"
	}
}

// Inflight is the transient per-call state used purely for UI gating and
// spinner logic. It is never persisted and carries no domain meaning beyond
// forbidding concurrent identical actions.
type Inflight struct {
	Uploading bool
	Sending   bool
}

// CanUpload reports whether an upload action is legal: the session must be
// authenticated and no upload may already be in flight. Illegal actions are
// inert no-ops, not queued.
func CanUpload(auth session.AuthState, inflight Inflight) bool {
	return auth == session.Authenticated && !inflight.Uploading
}

// CanSend reports whether a chat send is legal: authenticated, document
// processed, non-blank input, and no send already in flight.
func CanSend(auth session.AuthState, readiness DocumentReadiness, input string, inflight Inflight) bool {
	if auth != session.Authenticated || readiness != Ready {
		return false
	}
	if strings.TrimSpace(input) == "" {
		return false
	}
	return !inflight.Sending
}
