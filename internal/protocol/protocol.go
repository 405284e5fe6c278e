// Package protocol implements the read-only music database commands of an
// MPD-style protocol on top of a track search.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"smj-library/internal/search"
)

var ErrUnknownCommand = errors.New("unknown command")

// ArgError is returned when a command is called with arguments it cannot
// parse.
type ArgError struct {
	Command string
	Message string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("{%s} %s", e.Command, e.Message)
}

// Context is what a handler may read while answering.
type Context interface {
	// FindExact returns the tracks whose fields equal every query value.
	FindExact(ctx context.Context, q search.Query) (search.Result, error)
}

// Pair is one line of an answer.
type Pair struct {
	Key   string `json:"k"`
	Value string `json:"v"`
}

// Answer is an ordered list of pairs. A nil answer means the command
// produced no output at all.
type Answer []Pair

// Handler answers one command.
type Handler interface {
	Serve(ctx context.Context, pc Context, args []string) (Answer, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, pc Context, args []string) (Answer, error)

func (f HandlerFunc) Serve(ctx context.Context, pc Context, args []string) (Answer, error) {
	return f(ctx, pc, args)
}

// Registry maps command names to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewMusicDBRegistry returns a registry holding count, find and list.
func NewMusicDBRegistry() *Registry {
	r := NewRegistry()
	r.Register("count", HandlerFunc(Count))
	r.Register("find", HandlerFunc(Find))
	r.Register("list", HandlerFunc(List))
	return r
}

// Register sets the handler for name, replacing any previous one.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Lookup returns the handler registered for name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Wrap replaces the handler for name with wrap(current) and returns the
// handler it replaced.
func (r *Registry) Wrap(name string, wrap func(Handler) Handler) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	r.handlers[name] = wrap(h)
	return h, nil
}

// Names lists the registered commands in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches a command.
func (r *Registry) Call(ctx context.Context, pc Context, name string, args []string) (Answer, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return h.Serve(ctx, pc, args)
}
