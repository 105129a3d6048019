package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Factory builds a new session for an id.
type Factory func(id string) (*Session, error)

// Registry holds active sessions keyed by id, creating them on demand.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
}

// NewRegistry creates a registry around a session factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// Get returns the session for id, creating it if needed. An empty id gets a
// fresh random id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}

	s, err := r.factory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", id, err)
	}
	r.sessions[id] = s
	return s, nil
}

// Process routes a message to the session for id (creating it if needed) and
// returns the response together with the session id actually used.
func (r *Registry) Process(ctx context.Context, id, message string) (Response, string, error) {
	s, err := r.Get(id)
	if err != nil {
		return Response{}, "", err
	}
	resp, err := s.ProcessMessage(ctx, message)
	if err != nil {
		return Response{}, s.ID(), err
	}
	return resp, s.ID(), nil
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
