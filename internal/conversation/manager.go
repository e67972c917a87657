// Package conversation owns the document-readiness state machine, the
// append-only message history, and the interaction gate that decides which
// user actions are legal in the current (session, document) state.
//
// Network settles are folded in through a two-phase pattern: Begin* runs
// synchronously on the caller's goroutine (gate check, optimistic mutation),
// the network call happens elsewhere, and Finish* folds the outcome back in.
// The Upload and Send convenience methods run the full cycle for headless
// callers.
package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"rfpchat/internal/api"
	"rfpchat/internal/logging"
	"rfpchat/internal/session"
)

var (
	// ErrUploadNotPermitted means the gate refused the upload: not
	// authenticated, or an upload is already in flight. The action is an
	// inert no-op.
	ErrUploadNotPermitted = errors.New("upload is not permitted in the current state")

	// ErrSendNotPermitted means the gate refused the chat send.
	ErrSendNotPermitted = errors.New("sending is not permitted in the current state")

	// ErrUnsupportedFile is the cheap client-side extension check; the
	// backend remains authoritative.
	ErrUnsupportedFile = errors.New("only .pdf, .doc and .docx documents are supported")
)

// EmptyReplyPlaceholder is shown when the backend answered with nothing
// meaningful. It is decorative: the assistant genuinely said nothing, so no
// assistant turn enters future payloads.
const EmptyReplyPlaceholder = "_The assistant returned an empty response._"

var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// Backend is the slice of the API the manager needs. *api.Client satisfies
// it.
type Backend interface {
	Upload(ctx context.Context, credential, path string) error
	Chat(ctx context.Context, credential, userInput string, history []api.Turn) (string, error)
}

// PendingSend is the frozen request material for one chat call: the new text
// and the full outgoing history payload (all prior genuine turns, in order,
// followed by the new user turn). It is reconstructed from client state for
// every request, never diffed.
type PendingSend struct {
	Text    string
	History []api.Turn
}

// PendingUpload is the frozen request material for one upload call.
type PendingUpload struct {
	Path string
}

// Manager owns the message history and document readiness. It depends on the
// session controller for gating and credentials; there is no reverse
// dependency.
type Manager struct {
	session *session.Controller
	backend Backend

	mu        sync.Mutex
	messages  []Message
	readiness DocumentReadiness
	inflight  Inflight
}

// NewManager creates a Manager seeded with the system greeting.
func NewManager(sess *session.Controller, backend Backend) *Manager {
	return &Manager{
		session: sess,
		backend: backend,
		messages: []Message{{
			Role:    RoleSystem,
			Content: Greeting,
			Time:    time.Now(),
		}},
	}
}

// Messages returns a copy of the displayed history, oldest first.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Readiness reports the document state.
func (m *Manager) Readiness() DocumentReadiness {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readiness
}

// InFlight reports which network actions are currently pending settle.
func (m *Manager) InFlight() Inflight {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight
}

// CanUpload evaluates the gate for an upload attempt right now.
func (m *Manager) CanUpload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CanUpload(m.session.State(), m.inflight)
}

// CanSend evaluates the gate for sending input right now.
func (m *Manager) CanSend(input string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CanSend(m.session.State(), m.readiness, input, m.inflight)
}

// BeginUpload checks the gate and the file extension, then marks the
// document Uploading. A gate refusal must be treated as an inert no-op by the
// caller; no state was touched.
func (m *Manager) BeginUpload(path string) (*PendingUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanUpload(m.session.State(), m.inflight) {
		return nil, ErrUploadNotPermitted
	}
	if !documentExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil, ErrUnsupportedFile
	}

	m.readiness = Uploading
	m.inflight.Uploading = true
	logging.Get(logging.CategoryUpload).Info("upload started", zap.String("path", path))
	return &PendingUpload{Path: path}, nil
}

// FinishUpload folds an upload settle into the state machine: Ready on
// success, Failed otherwise. A failed upload may be retried with the same or
// a new file; no partial document state is retained.
func (m *Manager) FinishUpload(uploadErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inflight.Uploading = false
	if uploadErr != nil {
		m.readiness = Failed
		logging.Get(logging.CategoryUpload).Warn("upload failed", zap.Error(uploadErr))
		return
	}
	m.readiness = Ready
	logging.Get(logging.CategoryUpload).Info("document ready")
}

// Upload runs the full upload cycle against the backend. Intended for
// headless use; the TUI splits the phases so the spinner state renders
// between them.
func (m *Manager) Upload(ctx context.Context, path string) error {
	pending, err := m.BeginUpload(path)
	if err != nil {
		return err
	}
	credential, _ := m.session.Credential()
	uploadErr := m.backend.Upload(ctx, credential, pending.Path)
	m.FinishUpload(uploadErr)
	return uploadErr
}

// BeginSend checks the gate, snapshots the outgoing history payload, and
// optimistically appends the user's turn to the displayed history. The user
// turn is never rolled back, even if the send later fails.
func (m *Manager) BeginSend(text string) (*PendingSend, error) {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanSend(m.session.State(), m.readiness, text, m.inflight) {
		return nil, ErrSendNotPermitted
	}

	// Payload first: all prior genuine turns plus the new user turn. The
	// snapshot precedes the displayed append so a concurrent reader of the
	// pending request can never observe a duplicated turn.
	payload := append(historyTurns(m.messages), api.Turn{Role: string(RoleUser), Content: text})

	m.messages = append(m.messages, Message{
		Role:    RoleUser,
		Content: text,
		Time:    time.Now(),
	})
	m.inflight.Sending = true

	logging.Get(logging.CategoryChat).Debug("send started",
		zap.Int("history_len", len(payload)))
	return &PendingSend{Text: text, History: payload}, nil
}

// FinishSend folds a chat settle into the history. On success the trimmed
// reply is appended as a genuine assistant turn (or the empty-reply
// placeholder, decoratively). On failure a clearly marked error turn is
// appended; it stays visible but never re-enters an outgoing payload.
// Session and document state are untouched either way.
func (m *Manager) FinishSend(reply string, sendErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inflight.Sending = false

	if sendErr != nil {
		m.messages = append(m.messages, Message{
			Role:       RoleAssistant,
			Content:    "Error: " + describeSendFailure(sendErr),
			Time:       time.Now(),
			Decorative: true,
		})
		logging.Get(logging.CategoryChat).Warn("send failed", zap.Error(sendErr))
		return
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		m.messages = append(m.messages, Message{
			Role:       RoleAssistant,
			Content:    EmptyReplyPlaceholder,
			Time:       time.Now(),
			Decorative: true,
		})
		return
	}

	m.messages = append(m.messages, Message{
		Role:    RoleAssistant,
		Content: reply,
		Time:    time.Now(),
	})
}

// Send runs the full chat cycle against the backend. There is no automatic
// retry; resending is a new, independent request with a fresh snapshot.
func (m *Manager) Send(ctx context.Context, text string) error {
	pending, err := m.BeginSend(text)
	if err != nil {
		return err
	}
	credential, _ := m.session.Credential()
	reply, sendErr := m.backend.Chat(ctx, credential, pending.Text, pending.History)
	m.FinishSend(reply, sendErr)
	return sendErr
}

func describeSendFailure(err error) string {
	var rejected *api.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason
	}
	var transport *api.TransportError
	if errors.As(err, &transport) {
		return "Failed to connect to server."
	}
	return err.Error()
}
