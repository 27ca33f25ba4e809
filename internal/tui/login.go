package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/waabox/deskbridge/internal/auth"
)

// DeviceCodeMsg carries the device code response.
// It is exported so that tests can inject it directly into LoginModel.Update.
type DeviceCodeMsg struct {
	Code auth.DeviceCodeResponse
	Err  error
}

// LoginCompleteMsg signals that the user finished signing in.
type LoginCompleteMsg struct {
	Tokens auth.GraphTokens
	Err    error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	codeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

const separator = "────────────────────────────────────────────────────────────\n"

// LoginModel drives a Microsoft Graph device-code sign-in.
type LoginModel struct {
	code      auth.DeviceCodeResponse
	tokens    auth.GraphTokens
	err       error
	done      bool
	cancelled bool
	cancel    context.CancelFunc
	// Callbacks (set by caller via exported fields)
	OnRequestCode func(ctx context.Context) (auth.DeviceCodeResponse, error)
	OnPollToken   func(ctx context.Context, deviceCode string, interval int) (auth.GraphTokens, error)
}

// NewLoginModel creates a LoginModel using the given callbacks.
func NewLoginModel(
	requestCode func(ctx context.Context) (auth.DeviceCodeResponse, error),
	pollToken func(ctx context.Context, deviceCode string, interval int) (auth.GraphTokens, error),
) LoginModel {
	return LoginModel{OnRequestCode: requestCode, OnPollToken: pollToken}
}

// Init requests the device code.
func (m LoginModel) Init() tea.Cmd {
	return m.requestDeviceCode()
}

func (m LoginModel) requestDeviceCode() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		code, err := m.OnRequestCode(ctx)
		return DeviceCodeMsg{Code: code, Err: err}
	}
}

func (m LoginModel) pollToken(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		tokens, err := m.OnPollToken(ctx, m.code.DeviceCode, m.code.Interval)
		return LoginCompleteMsg{Tokens: tokens, Err: err}
	}
}

// Update handles device code, completion and key messages.
func (m LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DeviceCodeMsg:
		if msg.Err != nil {
			m.err = fmt.Errorf("requesting device code: %w", msg.Err)
			return m, tea.Quit
		}
		m.code = msg.Code
		expires := time.Duration(m.code.ExpiresIn) * time.Second
		if expires <= 0 {
			expires = 15 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), expires)
		m.cancel = cancel
		return m, m.pollToken(ctx)

	case LoginCompleteMsg:
		if m.cancel != nil {
			m.cancel()
		}
		if msg.Err != nil {
			m.err = fmt.Errorf("sign-in failed: %w", msg.Err)
			return m, tea.Quit
		}
		m.tokens = msg.Tokens
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the sign-in screen.
func (m LoginModel) View() string {
	header := titleStyle.Render(" deskbridge: Microsoft sign-in") + "\n"

	var body string
	switch {
	case m.err != nil:
		body = "\n " + errStyle.Render(m.err.Error()) + "\n\n"
	case m.done:
		body = "\n Signed in.\n\n"
	case m.cancelled:
		body = "\n Sign-in cancelled.\n\n"
	case m.code.UserCode == "":
		body = "\n Requesting authorization...\n\n"
	default:
		body = fmt.Sprintf(
			"\n Visit:  %s\n"+
				" Code:   %s\n\n"+
				" Waiting for authorization...\n\n",
			m.code.VerificationURI, codeStyle.Render(m.code.UserCode))
	}

	footer := helpStyle.Render(" Press ESC to cancel") + "\n"
	return header + separator + body + separator + footer
}

// Tokens returns the tokens once sign-in completed.
func (m LoginModel) Tokens() (auth.GraphTokens, bool) {
	return m.tokens, m.done
}

// Err returns the error that ended the sign-in, if any.
func (m LoginModel) Err() error {
	return m.err
}

// Cancelled reports whether the user aborted the sign-in.
func (m LoginModel) Cancelled() bool {
	return m.cancelled
}

// RunLogin runs the sign-in view on out and returns the issued tokens.
func RunLogin(ctx context.Context, m LoginModel, out io.Writer) (auth.GraphTokens, error) {
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return auth.GraphTokens{}, fmt.Errorf("running sign-in view: %w", err)
	}
	lm := final.(LoginModel)
	if lm.Err() != nil {
		return auth.GraphTokens{}, lm.Err()
	}
	if lm.Cancelled() {
		return auth.GraphTokens{}, fmt.Errorf("sign-in cancelled")
	}
	tokens, _ := lm.Tokens()
	return tokens, nil
}
