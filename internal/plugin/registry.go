// Package plugin hosts optional command groups. Each plugin registers its
// commands under the "plugin:<name>|<command>" namespace and is closed once
// when the application exits.
package plugin

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/waabox/deskbridge/internal/bridge"
)

// Plugin is a named group of bridge commands.
type Plugin interface {
	Name() string
	Register(r *bridge.Router) error
	Close() error
}

// Command returns the bridge name of cmd within plugin.
func Command(plugin, cmd string) string {
	return "plugin:" + plugin + "|" + cmd
}

// Registry keeps installed plugins in installation order.
type Registry struct {
	entries []Plugin
	logger  *zap.Logger
}

// NewRegistry creates an empty plugin registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// Install registers p's commands on r and keeps p for Close.
// A name can only be installed once.
func (reg *Registry) Install(r *bridge.Router, p Plugin) error {
	if _, ok := reg.Lookup(p.Name()); ok {
		return fmt.Errorf("plugin %s already installed", p.Name())
	}
	if err := p.Register(r); err != nil {
		return fmt.Errorf("installing plugin %s: %w", p.Name(), err)
	}
	reg.entries = append(reg.entries, p)
	reg.logger.Debug("Plugin installed", zap.String("plugin", p.Name()))
	return nil
}

// Lookup returns the installed plugin with the given name.
func (reg *Registry) Lookup(name string) (Plugin, bool) {
	for _, p := range reg.entries {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Names lists installed plugins in installation order.
func (reg *Registry) Names() []string {
	names := make([]string, len(reg.entries))
	for i, p := range reg.entries {
		names[i] = p.Name()
	}
	return names
}

// Close closes every plugin in reverse installation order and returns all
// errors joined. The registry is empty afterwards.
func (reg *Registry) Close() error {
	var errs []error
	for i := len(reg.entries) - 1; i >= 0; i-- {
		p := reg.entries[i]
		if err := p.Close(); err != nil {
			reg.logger.Warn("Error closing plugin", zap.String("plugin", p.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("closing plugin %s: %w", p.Name(), err))
		}
	}
	reg.entries = nil
	return errors.Join(errs...)
}
