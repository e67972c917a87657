package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfpchat/internal/api"
	"rfpchat/internal/config"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := &config.Config{BaseURL: "http://localhost:0", HTTPTimeoutSeconds: 1}
	return New(cfg)
}

func TestStartsOnLoginView(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, LoginView, m.viewMode)
	assert.False(t, m.busy())
}

func TestSubmitBeforeDocumentShowsHint(t *testing.T) {
	m := newTestModel(t)
	m.textarea.SetValue("What is the budget cap?")

	next, cmd := m.handleSubmit()
	assert.Nil(t, cmd) // inert: no network command issued
	got := next.(Model)
	assert.Equal(t, "Upload a document first (/upload).", got.notice)
	assert.True(t, got.noticeIsErr)
	assert.Len(t, got.convo.Messages(), 1) // greeting only
}

func TestSubmitEmptyInputIsNoop(t *testing.T) {
	m := newTestModel(t)
	m.textarea.SetValue("   ")

	next, cmd := m.handleSubmit()
	assert.Nil(t, cmd)
	got := next.(Model)
	assert.Empty(t, got.notice)
}

func TestUnknownSlashCommand(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.handleCommand("/frobnicate")
	assert.Nil(t, cmd)
	got := next.(Model)
	assert.Equal(t, "Unknown command. Try /help.", got.notice)
	assert.True(t, got.noticeIsErr)
}

func TestUploadCommandRequiresLogin(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.handleCommand("/upload")
	assert.Nil(t, cmd)
	got := next.(Model)
	assert.Equal(t, "Log in before uploading.", got.notice)
	assert.Equal(t, LoginView, got.viewMode) // view unchanged
}

func TestHelpCommand(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.handleCommand("/help")
	assert.Nil(t, cmd)
	got := next.(Model)
	assert.Contains(t, got.notice, "/upload")
	assert.False(t, got.noticeIsErr)
}

func TestLoginCommandClearsSecrets(t *testing.T) {
	m := newTestModel(t)
	m.viewMode = ChatView
	m.passwordInput.SetValue("password")
	m.codeInput.SetValue("123456")

	next, _ := m.handleCommand("/login")
	got := next.(Model)
	assert.Equal(t, LoginView, got.viewMode)
	assert.Empty(t, got.passwordInput.Value())
	assert.Empty(t, got.codeInput.Value())
}

func TestRememberInputDeduplicatesRepeats(t *testing.T) {
	m := newTestModel(t)
	m.rememberInput("first")
	m.rememberInput("first")
	m.rememberInput("second")

	require.Equal(t, []string{"first", "second"}, m.inputHistory)
	assert.Equal(t, 2, m.historyIndex)
}

func TestLoginFailureText(t *testing.T) {
	transport := &api.TransportError{Op: "login", Err: errors.New("connection refused")}
	assert.Equal(t, "Could not reach the server. Is it running?", loginFailureText(transport))

	rejected := &api.RejectedError{Op: "login", Status: 401, Reason: "Invalid username or password"}
	assert.Equal(t, "Invalid username or password", loginFailureText(rejected))
}

func TestSafeRenderMarkdownSurvivesNilRenderer(t *testing.T) {
	m := newTestModel(t)
	m.renderer = nil
	assert.Equal(t, "plain text", m.safeRenderMarkdown("plain text"))
}
