package chat

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"rfpchat/internal/conversation"
)

// The four network operations each run as one background command returning
// one typed settle message. There is no cancellation: once issued, the call
// runs until success or failure.

func (m Model) loginCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{err: m.session.Login(context.Background(), username, password)}
	}
}

func (m Model) verifyCmd(code string) tea.Cmd {
	return func() tea.Msg {
		return verifyResultMsg{err: m.session.VerifySecondFactor(context.Background(), code)}
	}
}

func (m Model) uploadCmd(pending *conversation.PendingUpload) tea.Cmd {
	return func() tea.Msg {
		credential, _ := m.session.Credential()
		return uploadResultMsg{err: m.client.Upload(context.Background(), credential, pending.Path)}
	}
}

func (m Model) sendCmd(pending *conversation.PendingSend) tea.Cmd {
	return func() tea.Msg {
		credential, _ := m.session.Credential()
		reply, err := m.client.Chat(context.Background(), credential, pending.Text, pending.History)
		return chatResultMsg{reply: reply, err: err}
	}
}

// handleCommand dispatches slash commands typed into the chat input.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd, _, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")

	switch strings.ToLower(cmd) {
	case "help":
		m.setNotice("Commands: /upload select a document, /login start over with new credentials, /quit exit.", false)
		return m, nil

	case "upload":
		if !m.convo.CanUpload() {
			if m.convo.InFlight().Uploading {
				m.setNotice("An upload is already in progress.", true)
			} else {
				m.setNotice("Log in before uploading.", true)
			}
			return m, nil
		}
		m.viewMode = FilePickerView
		m.setNotice("", false)
		return m, m.filepicker.Init()

	case "login":
		// A new login attempt is the one way to destroy the current
		// session. History stays on screen; the credential is dropped by the
		// controller when the new attempt starts.
		m.viewMode = LoginView
		m.focusIndex = focusUsername
		m.passwordInput.SetValue("")
		m.passwordInput.Blur()
		m.codeInput.SetValue("")
		m.setNotice("", false)
		return m, m.usernameInput.Focus()

	case "quit", "exit":
		return m, tea.Quit

	default:
		m.setNotice("Unknown command. Try /help.", true)
		return m, nil
	}
}
