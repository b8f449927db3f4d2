package jobs

import (
	"sync"

	"propstage/internal/domain"
)

type listenerKey struct {
	kind  domain.JobKind
	jobID string
}

// Registry holds one-shot completion listeners keyed by (kind, job id).
// A listener fires exactly once, after the store update that made the job
// terminal, and is deregistered before invocation.
type Registry struct {
	mu        sync.Mutex
	listeners map[listenerKey][]func(domain.Job)
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[listenerKey][]func(domain.Job))}
}

// OnComplete registers a callback for the job's terminal transition. It is
// the in-process subscription surface for collaborators embedding this
// package; remote clients subscribe through the websocket hub instead.
func (r *Registry) OnComplete(kind domain.JobKind, jobID string, fn func(domain.Job)) {
	if fn == nil {
		return
	}
	key := listenerKey{kind: kind, jobID: jobID}
	r.mu.Lock()
	r.listeners[key] = append(r.listeners[key], fn)
	r.mu.Unlock()
}

// Notify pops and invokes the listeners registered for the job. Listeners
// run outside the registry lock; a second Notify for the same job finds
// nothing to fire.
func (r *Registry) Notify(job domain.Job) {
	key := listenerKey{kind: job.Kind, jobID: job.ID}
	r.mu.Lock()
	fns := r.listeners[key]
	delete(r.listeners, key)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(job)
	}
}

// Drop discards any listeners for the job without firing them. Used when a
// job is deleted before reaching a terminal state.
func (r *Registry) Drop(kind domain.JobKind, jobID string) {
	r.mu.Lock()
	delete(r.listeners, listenerKey{kind: kind, jobID: jobID})
	r.mu.Unlock()
}
