package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// ErrUnknownCommand is returned when no command is registered under a name.
var ErrUnknownCommand = errors.New("unknown command")

// Handler runs a command with its JSON arguments. The returned value is
// marshalled back to the caller.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Command is a named host command callable from inside a surface.
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

type entry struct {
	cmd   Command
	calls atomic.Uint64
}

// Registry manages host commands
type Registry struct {
	commands sync.Map
	logger   *zap.Logger
}

// NewRegistry creates a new command registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// Register adds a command. Registering a name again replaces the previous
// command.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}

	r.commands.Store(cmd.Name, &entry{cmd: cmd})
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			panic(err)
		}
	}
}

// Unregister removes a command
func (r *Registry) Unregister(name string) {
	r.commands.Delete(name)
}

// Get retrieves a command by name
func (r *Registry) Get(name string) (Command, bool) {
	val, ok := r.commands.Load(name)
	if !ok {
		return Command{}, false
	}
	return val.(*entry).cmd, true
}

// List returns all registered commands sorted by name
func (r *Registry) List() []Command {
	var cmds []Command
	r.commands.Range(func(_, value interface{}) bool {
		cmds = append(cmds, value.(*entry).cmd)
		return true
	})

	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Name < cmds[j].Name
	})
	return cmds
}

// Invoke runs the named command. Missing args are passed as an empty
// object.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	val, ok := r.commands.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	e := val.(*entry)
	e.calls.Add(1)

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	result, err := e.cmd.Handler(ctx, args)
	if err != nil {
		r.logger.Debug("Command failed", zap.String("command", name), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("Command completed", zap.String("command", name))
	return result, nil
}

// Names returns the registered command names in order.
func (r *Registry) Names() []string {
	cmds := r.List()
	names := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		names = append(names, cmd.Name)
	}
	return names
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	names := r.Names()
	calls := make(map[string]uint64, len(names))

	r.commands.Range(func(key, value interface{}) bool {
		calls[key.(string)] = value.(*entry).calls.Load()
		return true
	})

	return map[string]interface{}{
		"total_commands": len(names),
		"names":          names,
		"calls":          calls,
	}
}

// Decode unmarshals command args into v.
func Decode(args json.RawMessage, v interface{}) error {
	if err := sonic.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}
