package attendance

import (
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/rollcall/core"
)

// Registry keeps one capture session per operator.
type Registry struct {
	deps Deps
	opts Options
	log  core.Logger

	mu       sync.Mutex
	sessions map[int]*Workflow // {userID: workflow}
}

func NewRegistry(deps Deps, opts Options) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Registry{
		deps:     deps,
		opts:     opts,
		log:      logger,
		sessions: make(map[int]*Workflow),
	}
}

// Open returns the operator's open session, starting a new one if needed.
func (r *Registry) Open(op Operator) *Workflow {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.sessions[op.UserID]; ok {
		if !w.IsClosed() && w.Operator().Flow == op.Flow {
			return w
		}
		w.Close()
	}
	w := NewWorkflow(op, r.deps, r.opts)
	r.sessions[op.UserID] = w
	return w
}

func (r *Registry) Get(userID int) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.sessions[userID]
	if !ok || w.IsClosed() {
		return nil, ErrSessionNotFound
	}
	return w, nil
}

// Close tears down the operator's session.
func (r *Registry) Close(userID int) error {
	r.mu.Lock()
	w, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	w.Close()
	return nil
}

// Sweep closes the sessions idle for longer than maxIdle and returns how many were closed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := NowFunc()

	r.mu.Lock()
	var stale []*Workflow
	for id, w := range r.sessions {
		if w.IsClosed() || now.Sub(w.LastActivity()) > maxIdle {
			stale = append(stale, w)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, w := range stale {
		w.Close()
	}
	if n := len(stale); n > 0 {
		r.log.Info(fmt.Sprintf("attendance.Sweep: closed %d idle session(s)", n))
	}
	return len(stale)
}

// CloseAll tears down every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[int]*Workflow)
	r.mu.Unlock()

	for _, w := range sessions {
		w.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
