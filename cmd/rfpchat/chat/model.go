// Package chat provides the interactive TUI for the RFP assistant client.
// The package is split across files:
//   - model.go: types, construction, Init
//   - update.go: the event loop and gate enforcement
//   - commands.go: background tea.Cmds wrapping the network calls
//   - view.go: rendering
//
// The UI is single-threaded and event-driven: the four network operations run
// as commands whose settle is delivered back as a typed message; between
// issue and settle the interface stays responsive and shows in-flight state.
package chat

import (
	"os"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rfpchat/cmd/rfpchat/ui"
	"rfpchat/internal/api"
	"rfpchat/internal/config"
	"rfpchat/internal/conversation"
	"rfpchat/internal/logging"
	"rfpchat/internal/session"
)

// ViewMode determines which screen is active.
type ViewMode int

const (
	LoginView ViewMode = iota
	TwoFactorView
	ChatView
	FilePickerView
)

// Focus targets on the login form.
const (
	focusUsername = iota
	focusPassword
)

const chatPlaceholder = "Ask about the document... (Enter to send, Ctrl+C to exit)"

// Messages for tea updates. Each network settle arrives as exactly one of
// these.
type (
	loginResultMsg  struct{ err error }
	verifyResultMsg struct{ err error }
	uploadResultMsg struct{ err error }
	chatResultMsg   struct {
		reply string
		err   error
	}
)

// Model is the bubbletea model for the interactive client.
type Model struct {
	// UI components
	usernameInput textinput.Model
	passwordInput textinput.Model
	codeInput     textinput.Model
	textarea      textarea.Model
	viewport      viewport.Model
	spinner       spinner.Model
	filepicker    filepicker.Model
	styles        ui.Styles
	renderer      *glamour.TermRenderer

	viewMode   ViewMode
	focusIndex int

	// Domain state owners
	client  *api.Client
	session *session.Controller
	convo   *conversation.Manager

	cfg       *config.Config
	sessionID string // correlates log lines, nothing more

	// Layout
	width  int
	height int
	ready  bool

	// authBusy mirrors Inflight for the two auth calls, which live outside
	// the conversation manager.
	authBusy bool

	// notice is the one-line transient status under the active view
	// (failures, upload progress, hints).
	notice      string
	noticeIsErr bool

	// Input recall
	inputHistory []string
	historyIndex int
}

// New assembles the model and its domain dependencies from config.
func New(cfg *config.Config) Model {
	client := api.New(cfg.BaseURL, cfg.HTTPTimeout())
	sess := session.NewController(client)
	convo := conversation.NewManager(sess, client)

	theme := ui.ThemeByName(cfg.Theme)
	styles := ui.NewStyles(theme)

	username := textinput.New()
	username.Placeholder = "Username"
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword

	code := textinput.New()
	code.Placeholder = "6-digit code"
	code.CharLimit = 8

	ta := textarea.New()
	ta.Placeholder = chatPlaceholder
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Prompt

	fp := filepicker.New()
	fp.AllowedTypes = []string{".pdf", ".doc", ".docx"}
	if wd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = wd
	}

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	sessionID := uuid.NewString()
	logging.Get(logging.CategoryBoot).Info("interactive session starting",
		zap.String("session_id", sessionID), zap.String("server", client.BaseURL()))

	return Model{
		usernameInput: username,
		passwordInput: password,
		codeInput:     code,
		textarea:      ta,
		spinner:       sp,
		filepicker:    fp,
		styles:        styles,
		renderer:      renderer,
		viewMode:      LoginView,
		client:        client,
		session:       sess,
		convo:         convo,
		cfg:           cfg,
		sessionID:     sessionID,
		historyIndex:  0,
	}
}

// Init starts the blink and spinner tickers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// busy reports whether any network operation is awaiting settle. While busy,
// the triggering controls are inert and the spinner renders.
func (m Model) busy() bool {
	inflight := m.convo.InFlight()
	return m.authBusy || inflight.Uploading || inflight.Sending
}

// Run launches the interactive client and blocks until exit.
func Run(cfg *config.Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	logging.Sync()
	return err
}
