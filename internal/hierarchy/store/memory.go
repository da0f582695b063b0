// Package store provides organization persistence. InMemory backs unit tests
// and local development; Postgres is the production store.
package store

import (
	"context"
	"strings"
	"sync"

	"bonifica/internal/hierarchy/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded organization store. Name uniqueness is
// case-insensitive, matching the Postgres unique index on lower(name).
type InMemory struct {
	mu   sync.RWMutex
	byID map[domain.OrgID]*models.Organization
}

// NewInMemory constructs an empty in-memory organization store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.OrgID]*models.Organization)}
}

func (s *InMemory) Create(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[org.ID]; ok {
		return sentinel.ErrConflict
	}
	lower := strings.ToLower(org.Name)
	for _, existing := range s.byID {
		if strings.ToLower(existing.Name) == lower {
			return sentinel.ErrConflict
		}
	}
	cp := *org
	s.byID[org.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.OrgID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *InMemory) ListByParent(_ context.Context, parentID domain.OrgID) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Organization
	for _, org := range s.byID {
		if org.ParentID != nil && *org.ParentID == parentID {
			cp := *org
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) ListAll(_ context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		cp := *org
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[org.ID]; !ok {
		return sentinel.ErrNotFound
	}
	lower := strings.ToLower(org.Name)
	for id, existing := range s.byID {
		if id != org.ID && strings.ToLower(existing.Name) == lower {
			return sentinel.ErrConflict
		}
	}
	cp := *org
	s.byID[org.ID] = &cp
	return nil
}
