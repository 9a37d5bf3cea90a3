package bridge

import (
	_ "embed"
	"fmt"

	"github.com/GriffinCanCode/webview-mcp/internal/surface"
	"go.uber.org/zap"
)

// CapabilityGlobal is the global object the capability script installs.
const CapabilityGlobal = "__WEBVIEW_MCP"

//go:embed js/capability.js
var capabilityScript string

// CapabilityScript returns the script that installs CapabilityGlobal.
func CapabilityScript() string {
	return capabilityScript
}

// Injector dispatches scripts into the resolved surface.
type Injector struct {
	resolver *surface.Resolver
	logger   *zap.Logger
}

// NewInjector creates an injector that targets the surface resolver picks.
func NewInjector(resolver *surface.Resolver, logger *zap.Logger) *Injector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Injector{resolver: resolver, logger: logger}
}

// RunFireAndForget evaluates code in the surface. It reports only whether
// the surface accepted the script, never what the script produced.
func (i *Injector) RunFireAndForget(code string) error {
	s, err := i.resolver.Resolve()
	if err != nil {
		return fmt.Errorf("resolve surface: %w", err)
	}
	if err := s.Eval(code); err != nil {
		return fmt.Errorf("eval in %q: %w", s.Label(), err)
	}
	return nil
}

// InjectCapability evaluates the capability script in the surface. The
// script guards itself, so repeating it is harmless.
func (i *Injector) InjectCapability() error {
	if err := i.RunFireAndForget(capabilityScript); err != nil {
		return fmt.Errorf("inject capability: %w", err)
	}
	return nil
}

// EnsureCapability makes the capability available before a tool call. It
// injects on every call: a navigation replaces the page and everything the
// previous injection installed.
func (i *Injector) EnsureCapability() error {
	return i.InjectCapability()
}

// Preload registers the capability script to run before page scripts on
// every navigation of every surface host creates.
func (i *Injector) Preload(host surface.InitScripter) {
	host.AddInitScript(capabilityScript)
	i.logger.Info("Registered capability init script", zap.String("global", CapabilityGlobal))
}

// Ready reports whether a surface is available to inject into.
func (i *Injector) Ready() bool {
	return i.resolver.Ready()
}
