package task

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/picokern/netsock/pkg/sock"
)

// ErrNotFound is returned when looking up a task that does not exist or
// has already exited.
var ErrNotFound = errors.New("task not found")

// Registry manages the lifecycle of tasks.
//
// Each task runs in its own goroutine. When the task function returns
// the task drops its reference on its descriptor table, but stays known
// to the registry so that a late call to Wait still retrieves its
// result. Lookups and counts only report live tasks.
type Registry struct {
	log       *zap.Logger
	tableOpts []sock.TableOption

	tasks map[ID]*Task
	mu    sync.Mutex

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Option configures a Registry.
type Option func(*Registry)

// Logger sets the logger used by the registry.
func Logger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log.Named("task") }
}

// TableOptions sets the options applied to the descriptor tables of
// spawned tasks.
func TableOptions(opts ...sock.TableOption) Option {
	return func(r *Registry) { r.tableOpts = opts }
}

// NewRegistry creates a task registry. Tasks are stopped when ctx is
// canceled.
func NewRegistry(ctx context.Context, opts ...Option) *Registry {
	r := &Registry{
		log:   zap.NewNop(),
		tasks: map[ID]*Task{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.group, ctx = errgroup.WithContext(ctx)
	r.ctx, r.cancel = context.WithCancelCause(ctx)
	return r
}

// Func is the body of a task. The context carries the task itself, so
// the socket layer can resolve its descriptor table.
type Func func(ctx context.Context) error

// Spawn starts a task owning a fresh descriptor table.
//
// If Spawn returns an error the task never ran. Errors from the task
// function are retrieved with Wait or WaitAll.
func (r *Registry) Spawn(name string, fn Func) (ID, error) {
	table, err := sock.NewTable(r.tableOpts...)
	if err != nil {
		return ID{}, err
	}
	return r.start(name, table, fn)
}

// Fork starts a task sharing the descriptor table of the task parent.
// It returns ErrNotFound if the parent already exited.
func (r *Registry) Fork(parent ID, name string, fn Func) (ID, error) {
	r.mu.Lock()
	p, ok := r.tasks[parent]
	if ok && !p.alive() {
		ok = false
	}
	if ok {
		// The parent exits under the same lock, so it still holds its
		// reference and the table cannot be freed before this one is
		// taken.
		p.Sockets.IncRef()
	}
	r.mu.Unlock()

	if !ok {
		return ID{}, ErrNotFound
	}
	return r.start(name, p.Sockets, fn)
}

func (r *Registry) start(name string, table *sock.Table, fn Func) (ID, error) {
	id := uuid.New()
	ctx, cancel := context.WithCancelCause(r.ctx)

	t := &Task{
		ID:      id,
		Name:    name,
		Sockets: table,
		cancel:  cancel,
	}
	t.ctx = Bind(ctx, t)

	r.mu.Lock()
	r.tasks[id] = t
	r.mu.Unlock()

	r.log.Debug("task started",
		zap.String("task", id.String()),
		zap.String("name", name),
		zap.Int("table_refs", table.Refs()),
	)

	r.group.Go(func() (err error) {
		defer func() {
			r.mu.Lock()
			table.DecRef()
			t.cancel(err)
			r.mu.Unlock()
			r.log.Debug("task exited",
				zap.String("task", id.String()),
				zap.String("name", name),
				zap.Error(err),
			)
		}()
		err = fn(t.ctx)
		return
	})

	return id, nil
}

// Lookup looks up a task by ID.
//
// The return flag is true if the task exists and is alive, and false
// otherwise.
func (r *Registry) Lookup(id ID) (task Task, ok bool) {
	r.mu.Lock()
	if t, found := r.tasks[id]; found && t.alive() {
		task, ok = *t, true // copy
	}
	r.mu.Unlock()
	return
}

// Size returns the number of live tasks.
func (r *Registry) Size() int {
	r.mu.Lock()
	n := 0
	for _, t := range r.tasks {
		if t.alive() {
			n++
		}
	}
	r.mu.Unlock()
	return n
}

// Tasks returns the IDs of all live tasks in lexicographic order.
func (r *Registry) Tasks() []ID {
	r.mu.Lock()
	ids := make([]ID, 0, len(r.tasks))
	for id, t := range r.tasks {
		if t.alive() {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()
	slices.SortFunc(ids, func(a, b ID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

// Wait blocks until the task exits. Exited tasks stay known to the
// registry, so waiting on one returns its result immediately.
func (r *Registry) Wait(id ID) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	<-t.ctx.Done()

	err := context.Cause(t.ctx)
	switch err {
	case context.Canceled:
		err = nil
	}
	return err
}

// WaitAll blocks until all tasks have exited.
func (r *Registry) WaitAll() error {
	return r.group.Wait()
}

// Close stops all tasks and waits for them to exit.
func (r *Registry) Close() error {
	r.cancel(nil)
	return r.WaitAll()
}
