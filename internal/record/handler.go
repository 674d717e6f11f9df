package record

import (
	"log/slog"
	"sort"

	"github.com/block-replay/block-replay/internal/codec"
	"github.com/block-replay/block-replay/internal/host"
	"github.com/block-replay/block-replay/internal/identity"
)

// Handler is the replay protocol of one record type. Both functions are
// optional.
type Handler struct {
	// Cursor returns where the synthetic pointer should move before replay.
	// It receives the serialized payload and must not create host objects.
	Cursor func(ctx *Context, data map[string]any) (host.Point, bool)

	// Replay applies the record to the editor. It receives the deserialized
	// payload and must eventually call exactly one of ctx.Done, ctx.Until,
	// ctx.Skip or ctx.Unchanged.
	Replay func(ctx *Context, data map[string]any)
}

// Registry maps record types to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for typ.
func (r *Registry) Register(typ string, h Handler) {
	r.handlers[typ] = h
}

// Lookup returns the handler for typ.
func (r *Registry) Lookup(typ string) (Handler, bool) {
	h, ok := r.handlers[typ]
	return h, ok
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Env is the session-scoped state shared by every handler of one replay run.
type Env struct {
	Editor host.Editor
	Codec  *codec.Codec
	IDs    *identity.Registry
	Menus  *MenuState
	Logger *slog.Logger
}

// NewEnv wires a codec, an identity registry and a menu state around editor.
func NewEnv(editor host.Editor, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	ids := identity.New(editor, logger)
	return &Env{
		Editor: editor,
		Codec:  codec.New(editor, ids, logger),
		IDs:    ids,
		Menus:  &MenuState{},
		Logger: logger,
	}
}

// Control is the replay driver's side of one step.
type Control interface {
	// Fast reports whether the step runs in fast mode.
	Fast() bool
	// Done completes the step after one host tick.
	Done()
	// Until completes the step once cond holds or the step times out, then
	// runs cleanup.
	Until(cond func() bool, cleanup func())
}

// Context is passed to handlers for one step.
type Context struct {
	*Env
	Type string

	ctl     Control
	clicked bool
	skipped bool
	reason  string
}

// NewContext returns the context of one step of type typ.
func NewContext(env *Env, typ string, ctl Control) *Context {
	return &Context{Env: env, Type: typ, ctl: ctl}
}

// Fast reports whether the step runs in fast mode.
func (c *Context) Fast() bool {
	return c.ctl != nil && c.ctl.Fast()
}

// Done completes the step.
func (c *Context) Done() {
	if c.ctl != nil {
		c.ctl.Done()
	}
}

// Until completes the step when cond holds. See Control.
func (c *Context) Until(cond func() bool, cleanup func()) {
	if c.ctl != nil {
		c.ctl.Until(cond, cleanup)
	}
}

// Skip logs a warning about a missing host object and completes the step.
func (c *Context) Skip(reason string, args ...any) {
	c.Logger.Warn(reason, append([]any{"type", c.Type}, args...)...)
	c.skipped = true
	c.reason = reason
	c.Done()
}

// Unchanged completes a step whose intended state already holds.
func (c *Context) Unchanged(reason string) {
	c.Logger.Debug(reason, "type", c.Type)
	c.skipped = true
	c.reason = reason
	c.Done()
}

// Skipped reports whether the step was skipped, and why.
func (c *Context) Skipped() (string, bool) {
	return c.reason, c.skipped
}

// RegisterClick marks the step as a user-visible click.
func (c *Context) RegisterClick() {
	c.clicked = true
}

// Clicked reports whether the step registered a click.
func (c *Context) Clicked() bool {
	return c.clicked
}

// ClearClick resets the click flag.
func (c *Context) ClearClick() {
	c.clicked = false
}

// center returns the center of e, or false when e is nil.
func center(e host.Element) (host.Point, bool) {
	if e == nil {
		return host.Point{}, false
	}
	return e.Center(), true
}
