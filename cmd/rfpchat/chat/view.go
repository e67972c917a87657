package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"rfpchat/internal/conversation"
	"rfpchat/internal/session"
)

func (m Model) View() string {
	switch m.viewMode {
	case LoginView:
		return m.renderLogin()
	case TwoFactorView:
		return m.renderTwoFactor()
	case FilePickerView:
		title := m.styles.Header.Render(" Select a document ")
		hint := m.styles.Muted.Render("  PDF and Word documents only. Esc to cancel.")
		return lipgloss.JoinVertical(lipgloss.Left, title, hint, m.styles.Content.Render(m.filepicker.View()))
	}

	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.styles.Content.Render(m.viewport.View()),
		m.styles.InputBox.Render(m.textarea.View()),
		m.renderFooter(),
	)
}

func (m Model) renderLogin() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("RFP Assistant") + "\n")
	b.WriteString(m.styles.Subtitle.Render("Sign in to analyze a document") + "\n\n")
	b.WriteString(m.usernameInput.View() + "\n")
	b.WriteString(m.passwordInput.View() + "\n")

	if m.authBusy {
		b.WriteString("\n" + m.spinner.View() + " Signing in...")
	}

	form := m.styles.FormBox.Render(b.String())
	footer := m.styles.Footer.Render("Tab to switch fields · Enter to sign in · Ctrl+C to quit")
	return lipgloss.JoinVertical(lipgloss.Left, "", form, m.renderNotice(), footer)
}

func (m Model) renderTwoFactor() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Two-factor verification") + "\n")
	b.WriteString(m.styles.Subtitle.Render("A one-time code is required for "+m.session.Username()) + "\n\n")
	b.WriteString(m.codeInput.View() + "\n")

	if m.authBusy {
		b.WriteString("\n" + m.spinner.View() + " Verifying...")
	}

	form := m.styles.FormBox.Render(b.String())
	footer := m.styles.Footer.Render("Enter to verify · Ctrl+C to quit")
	return lipgloss.JoinVertical(lipgloss.Left, "", form, m.renderNotice(), footer)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" RFP Assistant ")

	var status string
	inflight := m.convo.InFlight()
	switch {
	case inflight.Uploading:
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ",
			m.styles.Badge.Render("Uploading and processing document..."))
	case inflight.Sending:
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ",
			m.styles.Badge.Render("Assistant is typing..."))
	default:
		status = m.styles.Success.Render(m.readinessLabel())
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)
	return lipgloss.JoinVertical(lipgloss.Left, line, m.styles.RenderDivider(m.width))
}

func (m Model) readinessLabel() string {
	if m.session.State() != session.Authenticated {
		return "Not signed in"
	}
	switch m.convo.Readiness() {
	case conversation.Ready:
		return "Document ready"
	case conversation.Failed:
		return "Upload failed. Retry with /upload"
	default:
		return "No document. Use /upload to begin"
	}
}

func (m Model) renderFooter() string {
	help := m.styles.Footer.Render("Enter send · /upload document · /help commands · Ctrl+C quit")
	notice := m.renderNotice()
	if notice == "" {
		return help
	}
	return lipgloss.JoinVertical(lipgloss.Left, notice, help)
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeIsErr {
		return m.styles.Error.Render("  " + m.notice)
	}
	return m.styles.Info.Render("  " + m.notice)
}

// renderHistory formats the whole conversation for the viewport. Assistant
// content may carry markup supplied by the backend and is rendered as-is
// through glamour; decorative error turns are styled plainly instead.
func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.convo.Messages() {
		switch msg.Role {
		case conversation.RoleUser:
			userStyle := m.styles.Bold.Foreground(m.styles.Theme.Primary).MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n")

		case conversation.RoleSystem:
			sb.WriteString(m.styles.Subtitle.Render(msg.Content))
			sb.WriteString("\n")

		default: // assistant
			label := m.styles.Bold.Foreground(m.styles.Theme.Accent).MarginTop(1)
			sb.WriteString(label.Render("Assistant") + "\n")
			if msg.Decorative {
				sb.WriteString(m.styles.Error.Render(msg.Content))
				sb.WriteString("\n")
				continue
			}
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery; glamour has
// panicked on odd input before, and a crash here would take the session with
// it.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}
