// Package dialog is the native dialog plugin. Dialogs are shown by the
// platform's scripting helper: osascript on darwin, zenity on other unix
// systems and PowerShell on windows. Unlike launcher calls, these wait for
// the user to answer.
package dialog

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/bridge"
	"github.com/waabox/deskbridge/internal/plugin"
)

// Name is the plugin name used in command names.
const Name = "dialog"

// ErrDismissed is returned by a Runner when the user cancelled the dialog.
var ErrDismissed = errors.New("dialog dismissed")

// Runner runs a dialog helper and returns its standard output.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) (string, error)
}

// ExecRunner runs helpers as child processes. Exit status 1 is how every
// supported helper reports a cancelled dialog.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, program string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, program, args...).Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", ErrDismissed
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

type invocation struct {
	program string
	args    []string
}

// backend builds helper invocations for one platform family.
type backend struct {
	name    string
	message func(title, text string) invocation
	ask     func(title, text string) invocation
	// yes is the output marking a positive answer. Empty means the exit
	// status alone carries the answer.
	yes  string
	open func(title string, directory bool) invocation
}

func backendFor(goos string) backend {
	switch goos {
	case "darwin":
		return darwinBackend
	case "windows":
		return windowsBackend
	default:
		return zenityBackend
	}
}

// Plugin shows message, confirmation and file selection dialogs.
type Plugin struct {
	backend backend
	runner  Runner
	logger  *zap.Logger
}

var _ plugin.Plugin = (*Plugin)(nil)

// New creates the dialog plugin for goos. A nil runner runs real helpers.
func New(goos string, runner Runner, logger *zap.Logger) *Plugin {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := backendFor(goos)
	return &Plugin{backend: b, runner: runner, logger: logger.Named(Name).With(zap.String("backend", b.name))}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Close() error { return nil }

type messageArgs struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type openArgs struct {
	Title     string `json:"title"`
	Directory bool   `json:"directory"`
}

// Register adds the dialog commands. They run asynchronously so a dialog
// left open does not hold up other commands.
func (p *Plugin) Register(r *bridge.Router) error {
	cmds := map[string]bridge.Handler{
		"message": bridge.Typed(func(ctx context.Context, a messageArgs) (any, error) {
			return nil, p.Message(ctx, a.Title, a.Message)
		}),
		"ask": bridge.Typed(func(ctx context.Context, a messageArgs) (any, error) {
			return p.Ask(ctx, a.Title, a.Message)
		}),
		"open": bridge.Typed(func(ctx context.Context, a openArgs) (any, error) {
			path, err := p.Open(ctx, a.Title, a.Directory)
			if err != nil || path == "" {
				return nil, err
			}
			return path, nil
		}),
	}
	for name, h := range cmds {
		if err := r.RegisterAsync(plugin.Command(Name, name), h); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) run(ctx context.Context, inv invocation) (string, error) {
	p.logger.Debug("Showing dialog", zap.Strings("args", inv.args))
	return p.runner.Run(ctx, inv.program, inv.args...)
}

// Message shows text with a single acknowledge button.
func (p *Plugin) Message(ctx context.Context, title, text string) error {
	_, err := p.run(ctx, p.backend.message(title, text))
	if errors.Is(err, ErrDismissed) {
		return nil
	}
	return err
}

// Ask shows a yes/no question. Dismissing the dialog counts as no.
func (p *Plugin) Ask(ctx context.Context, title, text string) (bool, error) {
	out, err := p.run(ctx, p.backend.ask(title, text))
	if errors.Is(err, ErrDismissed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.backend.yes == "" {
		return true, nil
	}
	return strings.Contains(out, p.backend.yes), nil
}

// Open lets the user pick a file, or a directory when directory is set.
// It returns "" when the user cancels.
func (p *Plugin) Open(ctx context.Context, title string, directory bool) (string, error) {
	out, err := p.run(ctx, p.backend.open(title, directory))
	if errors.Is(err, ErrDismissed) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\r\n"), nil
}
