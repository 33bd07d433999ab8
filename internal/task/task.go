// Package task tracks the tasks running on the system and the socket
// descriptor tables they share.
package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/picokern/netsock/pkg/sock"
)

// ID is a task identifier.
type ID = uuid.UUID

// Task is one running task. Tasks spawned with Registry.Spawn own a new
// descriptor table; tasks created with Registry.Fork share the table of
// their parent.
type Task struct {
	// ID is the ID of the task.
	ID ID

	// Name is the display name the task was spawned with.
	Name string

	// Sockets is the descriptor table of the task's group.
	Sockets *sock.Table

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func (t *Task) alive() bool {
	return t.ctx.Err() == nil
}

type contextKey struct{}

// Bind returns a context carrying the task, from which the socket layer
// resolves the current descriptor table.
func Bind(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the task bound to the context, if any.
func FromContext(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(contextKey{}).(*Task)
	return t, ok
}

// Sockets returns the descriptor table of the task bound to the context.
// When no task is bound it returns nil, which every table operation
// treats as the absence of a table.
func Sockets(ctx context.Context) *sock.Table {
	if t, ok := FromContext(ctx); ok {
		return t.Sockets
	}
	return nil
}
