package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rfpchat/internal/session"
)

func TestCanUpload(t *testing.T) {
	cases := []struct {
		name     string
		auth     session.AuthState
		inflight Inflight
		want     bool
	}{
		{"anonymous", session.Anonymous, Inflight{}, false},
		{"pending 2fa", session.PendingSecondFactor, Inflight{}, false},
		{"authenticated", session.Authenticated, Inflight{}, true},
		{"upload in flight", session.Authenticated, Inflight{Uploading: true}, false},
		{"send in flight does not block uploads", session.Authenticated, Inflight{Sending: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanUpload(tc.auth, tc.inflight))
		})
	}
}

func TestCanSend(t *testing.T) {
	cases := []struct {
		name      string
		auth      session.AuthState
		readiness DocumentReadiness
		input     string
		inflight  Inflight
		want      bool
	}{
		{"all conditions met", session.Authenticated, Ready, "hello", Inflight{}, true},
		{"anonymous", session.Anonymous, Ready, "hello", Inflight{}, false},
		{"pending 2fa", session.PendingSecondFactor, Ready, "hello", Inflight{}, false},
		{"no document", session.Authenticated, NotUploaded, "hello", Inflight{}, false},
		{"document uploading", session.Authenticated, Uploading, "hello", Inflight{}, false},
		{"document failed", session.Authenticated, Failed, "hello", Inflight{}, false},
		{"empty input", session.Authenticated, Ready, "", Inflight{}, false},
		{"whitespace input", session.Authenticated, Ready, "   \n\t", Inflight{}, false},
		{"send in flight", session.Authenticated, Ready, "hello", Inflight{Sending: true}, false},
		{"upload in flight does not block sends", session.Authenticated, Ready, "hello", Inflight{Uploading: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanSend(tc.auth, tc.readiness, tc.input, tc.inflight))
		})
	}
}

func TestReadinessString(t *testing.T) {
	assert.Equal(t, "not-uploaded", NotUploaded.String())
	assert.Equal(t, "uploading", Uploading.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "failed", Failed.String())
}
