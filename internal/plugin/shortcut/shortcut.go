// Package shortcut is the global shortcut plugin. It keeps the set of
// accelerators the front-end has registered; the host reports key presses
// with the trigger command and the plugin forwards them to the front-end as
// "global-shortcut" events.
package shortcut

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/bridge"
	"github.com/waabox/deskbridge/internal/plugin"
)

// Name is the plugin name used in command names.
const Name = "global-shortcut"

// EventName is the event published when a registered shortcut fires.
const EventName = "global-shortcut"

var (
	// ErrAlreadyRegistered is returned when registering an accelerator twice.
	ErrAlreadyRegistered = errors.New("shortcut already registered")
	// ErrNotRegistered is returned when unregistering or triggering an unknown accelerator.
	ErrNotRegistered = errors.New("shortcut not registered")
)

// Pressed is the payload of a shortcut event.
type Pressed struct {
	Shortcut string `json:"shortcut"`
	State    string `json:"state"`
}

// Plugin tracks registered accelerators by canonical form.
type Plugin struct {
	goos   string
	hub    *bridge.Hub
	logger *zap.Logger

	mu         sync.Mutex
	registered map[string]bool
}

var _ plugin.Plugin = (*Plugin)(nil)

// New creates the shortcut plugin. Events are published on hub.
func New(goos string, hub *bridge.Hub, logger *zap.Logger) *Plugin {
	if goos == "" {
		goos = runtime.GOOS
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{goos: goos, hub: hub, logger: logger.Named("shortcut"), registered: make(map[string]bool)}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Close() error {
	p.UnregisterAll()
	return nil
}

type shortcutArgs struct {
	Shortcut  string   `json:"shortcut"`
	Shortcuts []string `json:"shortcuts"`
}

func (a shortcutArgs) all() []string {
	if a.Shortcut == "" {
		return a.Shortcuts
	}
	return append([]string{a.Shortcut}, a.Shortcuts...)
}

func (p *Plugin) Register(r *bridge.Router) error {
	cmds := map[string]bridge.Handler{
		"register": bridge.Typed(func(_ context.Context, a shortcutArgs) (any, error) {
			return nil, p.each(a.all(), p.Add)
		}),
		"unregister": bridge.Typed(func(_ context.Context, a shortcutArgs) (any, error) {
			return nil, p.each(a.all(), p.Remove)
		}),
		"unregister_all": bridge.Typed(func(context.Context, struct{}) (any, error) {
			p.UnregisterAll()
			return nil, nil
		}),
		"is_registered": bridge.Typed(func(_ context.Context, a shortcutArgs) (any, error) {
			return p.IsRegistered(a.Shortcut)
		}),
		"trigger": bridge.Typed(func(_ context.Context, a shortcutArgs) (any, error) {
			return nil, p.Trigger(a.Shortcut)
		}),
	}
	for name, h := range cmds {
		if err := r.Register(plugin.Command(Name, name), h); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) each(shortcuts []string, fn func(string) error) error {
	if len(shortcuts) == 0 {
		return fmt.Errorf("shortcut is required")
	}
	for _, s := range shortcuts {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plugin) canonical(shortcut string) (string, error) {
	acc, err := Parse(shortcut, p.goos)
	if err != nil {
		return "", err
	}
	return acc.String(), nil
}

// Add registers shortcut.
func (p *Plugin) Add(shortcut string) error {
	key, err := p.canonical(shortcut)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registered[key] {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, key)
	}
	p.registered[key] = true
	p.logger.Debug("Shortcut registered", zap.String("shortcut", key))
	return nil
}

// Remove unregisters shortcut.
func (p *Plugin) Remove(shortcut string) error {
	key, err := p.canonical(shortcut)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.registered[key] {
		return fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	delete(p.registered, key)
	return nil
}

// UnregisterAll removes every shortcut.
func (p *Plugin) UnregisterAll() {
	p.mu.Lock()
	p.registered = make(map[string]bool)
	p.mu.Unlock()
}

// IsRegistered reports whether shortcut, in any spelling, is registered.
func (p *Plugin) IsRegistered(shortcut string) (bool, error) {
	key, err := p.canonical(shortcut)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered[key], nil
}

// Registered lists registered shortcuts in canonical form, sorted.
func (p *Plugin) Registered() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.registered))
	for k := range p.registered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Trigger publishes a pressed event for a registered shortcut.
func (p *Plugin) Trigger(shortcut string) error {
	key, err := p.canonical(shortcut)
	if err != nil {
		return err
	}
	p.mu.Lock()
	ok := p.registered[key]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}
	if p.hub == nil {
		return nil
	}
	n := p.hub.Publish(bridge.Event{Event: EventName, Payload: Pressed{Shortcut: key, State: "Pressed"}})
	p.logger.Debug("Shortcut triggered", zap.String("shortcut", key), zap.Int("listeners", n))
	return nil
}
