// ABOUTME: In-memory registry of active engine sessions, guarded by a mutex, grounded on the
// ABOUTME: teacher's server-side session-map pattern for its REST control plane.
package server

import (
	"fmt"
	"sync"

	"github.com/m3data/mase-engine/engine"
)

// AgentInfo is the roster entry returned by POST /session/start for each
// bound agent.
type AgentInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Model string `json:"model"`
}

// Session bundles one running session's collaborators: the controller that
// drives it, the bus its events flow through, the checkpoint path recorded
// for it in the sqlite catalog, and its agent roster.
type Session struct {
	ID             string
	Controller     *engine.Controller
	Bus            *engine.Bus
	CheckpointPath string
	Agents         []AgentInfo
}

// Registry tracks every session this server process has started, keyed by
// session ID. It does not persist anything itself; session.Log and
// SessionIndex own durability.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a new session, returning an error if the ID is already in use.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("registry: session %s already registered", s.ID)
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns the session for id, or false if none is active.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops id from the registry; its history remains on disk and in the
// sqlite catalog. The REST handlers do not call it: an ended session stays
// registered.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// List returns the IDs of every currently active session.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
