// Package verification resolves drawn sigil patterns to identities and hands
// the result back to whoever is waiting on the challenge.
package verification

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kmondie/nebula-edge/backend/internal/model/identity"
)

var ErrChallengeNotFound = errors.New("verification challenge not found")

// Result resolves a pending challenge. Verified is false on decline.
type Result struct {
	Name     string
	Verified bool
}

type pending struct {
	ch       chan Result
	resolved chan struct{}
	once     sync.Once
}

// resolveOnce guarantees the exactly-one-resolution contract: a challenge that
// was declined can no longer match, and vice versa.
func (p *pending) resolveOnce(result Result) {
	p.once.Do(func() {
		p.ch <- result
		close(p.ch)
		close(p.resolved)
	})
}

// Service owns the in-flight verification requests. The gateway's verify
// callback blocks on Begin's channel until the frontend submits a pattern or
// declines.
type Service struct {
	mu       sync.Mutex
	requests map[string]*pending
	profiles identity.Store
}

// NewService builds the verification service over the profile registry.
func NewService(profiles identity.Store) *Service {
	return &Service{
		requests: make(map[string]*pending),
		profiles: profiles,
	}
}

// Begin opens a challenge and returns its ID plus the result future. The
// request is removed when resolved or when ctx is done.
func (s *Service) Begin(ctx context.Context) (string, <-chan Result) {
	id := uuid.NewString()
	req := &pending{ch: make(chan Result, 1), resolved: make(chan struct{})}

	s.mu.Lock()
	s.requests[id] = req
	s.mu.Unlock()

	// A caller that gives up (context canceled) leaves a dangling request;
	// resolve it as declined so a late submit cannot land on a ghost.
	go func() {
		select {
		case <-req.resolved:
			return
		case <-ctx.Done():
		}
		s.mu.Lock()
		delete(s.requests, id)
		s.mu.Unlock()
		req.resolveOnce(Result{})
	}()

	return id, req.ch
}

// Pending lists the challenge IDs still waiting for a pattern.
func (s *Service) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.requests))
	for id := range s.requests {
		ids = append(ids, id)
	}
	return ids
}

// Submit replays a drawn pattern through the challenge machine and evaluates
// it against the sigil registry. A match resolves the pending request with the
// identity name; a mismatch leaves the request pending so the user can retry.
func (s *Service) Submit(id string, nodes []int) (Result, error) {
	s.mu.Lock()
	req, ok := s.requests[id]
	s.mu.Unlock()
	if !ok {
		return Result{}, ErrChallengeNotFound
	}

	// The machine applies the same bounds and revisit rules as the on-screen
	// grid.
	challenge := NewChallenge(s.Resolve)
	if len(nodes) > 0 {
		challenge.Start(nodes[0])
		for _, node := range nodes[1:] {
			challenge.Enter(node)
		}
	}
	name, matched := challenge.Release()
	if !matched {
		return Result{}, nil
	}

	result := Result{Name: name, Verified: true}

	s.mu.Lock()
	delete(s.requests, id)
	s.mu.Unlock()

	req.resolveOnce(result)
	return result, nil
}

// Decline resolves the pending request with no identity.
func (s *Service) Decline(id string) error {
	s.mu.Lock()
	req, ok := s.requests[id]
	delete(s.requests, id)
	s.mu.Unlock()
	if !ok {
		return ErrChallengeNotFound
	}

	req.resolveOnce(Result{})
	return nil
}

// Resolve looks a raw pattern key up in the registry, for callers that manage
// their own challenge lifecycle.
func (s *Service) Resolve(pattern string) (string, bool) {
	profile, ok := s.profiles.FindBySigil(pattern)
	if !ok {
		return "", false
	}
	return profile.Name, true
}
