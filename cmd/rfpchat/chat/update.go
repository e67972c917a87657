package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"rfpchat/internal/api"
	"rfpchat/internal/conversation"
	"rfpchat/internal/session"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		inputCmd tea.Cmd
		vpCmd    tea.Cmd
		spCmd    tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.viewMode == FilePickerView {
				m.viewMode = ChatView
				return m, nil
			}
			return m, tea.Quit
		}

		switch m.viewMode {
		case LoginView:
			return m.updateLogin(msg)
		case TwoFactorView:
			return m.updateTwoFactor(msg)
		case FilePickerView:
			return m.updateFilePicker(msg)
		}

		// ChatView key handling
		switch msg.Type {
		case tea.KeyEnter:
			if msg.Alt {
				break // Alt+Enter inserts a newline
			}
			// Enter submits unless a call is in flight; a second press while
			// in flight is an inert no-op, never a queue.
			if !m.busy() {
				return m.handleSubmit()
			}
			return m, nil

		case tea.KeyUp:
			if m.textarea.Line() == 0 && m.historyIndex > 0 {
				m.historyIndex--
				m.textarea.SetValue(m.inputHistory[m.historyIndex])
				m.textarea.CursorEnd()
				return m, nil
			}

		case tea.KeyDown:
			if m.textarea.Line() == m.textarea.LineCount()-1 && m.historyIndex < len(m.inputHistory) {
				m.historyIndex++
				if m.historyIndex == len(m.inputHistory) {
					m.textarea.SetValue("")
				} else {
					m.textarea.SetValue(m.inputHistory[m.historyIndex])
					m.textarea.CursorEnd()
				}
				return m, nil
			}
		}

		if !m.busy() {
			m.textarea, inputCmd = m.textarea.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case spinner.TickMsg:
		if m.busy() {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case loginResultMsg:
		m.authBusy = false
		if msg.err != nil {
			m.setNotice(loginFailureText(msg.err), true)
			return m, nil
		}
		switch m.session.State() {
		case session.PendingSecondFactor:
			m.viewMode = TwoFactorView
			m.codeInput.Focus()
			m.setNotice("Enter the code from your authenticator app.", false)
		case session.Authenticated:
			m.enterChat("Logged in as " + m.session.Username() + ". Use /upload to add a document.")
		}
		return m, nil

	case verifyResultMsg:
		m.authBusy = false
		if msg.err != nil {
			// Still PendingSecondFactor; the user may retry with a new code.
			m.setNotice(loginFailureText(msg.err), true)
			m.codeInput.SetValue("")
			return m, nil
		}
		m.enterChat("2FA verified. Logged in as " + m.session.Username() + ". Use /upload to add a document.")
		return m, nil

	case uploadResultMsg:
		m.convo.FinishUpload(msg.err)
		if msg.err != nil {
			m.setNotice("Upload failed: "+failureReason(msg.err), true)
		} else {
			m.setNotice("Document uploaded and processed! You can chat now.", false)
			m.textarea.Placeholder = chatPlaceholder
		}
		return m, nil

	case chatResultMsg:
		m.convo.FinishSend(msg.reply, msg.err)
		m.refreshViewport()
		return m, nil
	}

	if m.viewMode == ChatView {
		m.viewport, vpCmd = m.viewport.Update(msg)
	}

	return m, tea.Batch(inputCmd, vpCmd, spCmd)
}

// updateLogin handles keys on the credential form.
func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		if m.focusIndex == focusUsername {
			m.focusIndex = focusPassword
			m.usernameInput.Blur()
			return m, m.passwordInput.Focus()
		}
		m.focusIndex = focusUsername
		m.passwordInput.Blur()
		return m, m.usernameInput.Focus()

	case tea.KeyEnter:
		if m.authBusy {
			return m, nil
		}
		username := strings.TrimSpace(m.usernameInput.Value())
		password := m.passwordInput.Value()
		if username == "" || password == "" {
			m.setNotice("Please enter a username and password.", true)
			return m, nil
		}
		m.authBusy = true
		m.setNotice("", false)
		return m, tea.Batch(m.spinner.Tick, m.loginCmd(username, password))
	}

	var cmd tea.Cmd
	if m.focusIndex == focusUsername {
		m.usernameInput, cmd = m.usernameInput.Update(msg)
	} else {
		m.passwordInput, cmd = m.passwordInput.Update(msg)
	}
	return m, cmd
}

// updateTwoFactor handles keys on the second-factor prompt.
func (m Model) updateTwoFactor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		if m.authBusy {
			return m, nil
		}
		code := strings.TrimSpace(m.codeInput.Value())
		if code == "" {
			m.setNotice("Please enter the verification code.", true)
			return m, nil
		}
		m.authBusy = true
		m.setNotice("", false)
		return m, tea.Batch(m.spinner.Tick, m.verifyCmd(code))
	}

	var cmd tea.Cmd
	m.codeInput, cmd = m.codeInput.Update(msg)
	return m, cmd
}

// updateFilePicker handles document selection.
func (m Model) updateFilePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)

	if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
		pending, err := m.convo.BeginUpload(path)
		switch {
		case errors.Is(err, conversation.ErrUnsupportedFile):
			m.setNotice("Only PDF and Word documents are allowed.", true)
			return m, cmd
		case err != nil:
			m.viewMode = ChatView
			m.setNotice(err.Error(), true)
			return m, cmd
		}
		m.viewMode = ChatView
		m.setNotice("Uploading and processing document...", false)
		return m, tea.Batch(cmd, m.spinner.Tick, m.uploadCmd(pending))
	}

	if didSelect, _ := m.filepicker.DidSelectDisabledFile(msg); didSelect {
		m.setNotice("Only PDF and Word documents are allowed.", true)
	}

	return m, cmd
}

// handleSubmit processes Enter on the chat input: slash commands first, then
// a gated chat send with an optimistic history append.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		m.textarea.Reset()
		return m.handleCommand(input)
	}

	pending, err := m.convo.BeginSend(input)
	if err != nil {
		// The gate refused; the attempt is inert. Explain why instead of
		// silently ignoring the keypress.
		switch m.convo.Readiness() {
		case conversation.Ready:
			m.setNotice(err.Error(), true)
		case conversation.Uploading:
			m.setNotice("Wait for the document to finish processing.", true)
		default:
			m.setNotice("Upload a document first (/upload).", true)
		}
		return m, nil
	}

	m.rememberInput(input)
	m.textarea.Reset()
	m.refreshViewport()
	m.setNotice("", false)

	return m, tea.Batch(m.spinner.Tick, m.sendCmd(pending))
}

// rememberInput appends to the Up/Down recall buffer, deduplicating
// consecutive repeats.
func (m *Model) rememberInput(input string) {
	if len(m.inputHistory) == 0 || m.inputHistory[len(m.inputHistory)-1] != input {
		m.inputHistory = append(m.inputHistory, input)
	}
	m.historyIndex = len(m.inputHistory)
}

// enterChat switches to the chat view after a successful authentication.
func (m *Model) enterChat(notice string) {
	m.viewMode = ChatView
	m.textarea.Placeholder = "Upload a document to start chatting (/upload)"
	m.setNotice(notice, false)
	m.refreshViewport()
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

// refreshViewport re-renders history into the viewport and scrolls to the
// latest turn.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// layout recomputes component dimensions after a resize.
func (m *Model) layout() {
	headerHeight := 3
	footerHeight := 2
	inputHeight := 3

	chatWidth := m.width - 4
	if chatWidth < 1 {
		chatWidth = 1
	}
	chatHeight := m.height - headerHeight - footerHeight - inputHeight - 2
	if chatHeight < 1 {
		chatHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth, chatHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = chatHeight
	}

	m.textarea.SetWidth(chatWidth - 4)
	m.filepicker.Height = m.height - 8

	if m.renderer != nil {
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(chatWidth-4),
		)
	}
	m.refreshViewport()
}

// loginFailureText converts an auth failure into the line shown on the form,
// distinguishing "could not reach server" from "server rejected request".
func loginFailureText(err error) string {
	var transport *api.TransportError
	if errors.As(err, &transport) {
		return "Could not reach the server. Is it running?"
	}
	return failureReason(err)
}

// failureReason extracts the server-supplied reason when there is one.
func failureReason(err error) string {
	var rejected *api.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason
	}
	var transport *api.TransportError
	if errors.As(err, &transport) {
		return "could not reach server"
	}
	return err.Error()
}
