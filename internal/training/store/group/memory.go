// Package group persists delivery groups.
package group

import (
	"context"
	"sync"

	"bonifica/internal/training/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded group store enforcing the same
// (responsible organization, code year, code) uniqueness as the Postgres
// index.
type InMemory struct {
	mu   sync.RWMutex
	byID map[domain.GroupID]*models.DeliveryGroup
}

// NewInMemory constructs an empty in-memory group store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.GroupID]*models.DeliveryGroup)}
}

func (s *InMemory) codeTaken(g *models.DeliveryGroup) bool {
	for id, existing := range s.byID {
		if id == g.ID {
			continue
		}
		if existing.ResponsibleOrgID == g.ResponsibleOrgID &&
			existing.CodeYear == g.CodeYear &&
			existing.SequentialCode == g.SequentialCode {
			return true
		}
	}
	return false
}

func (s *InMemory) Create(_ context.Context, g *models.DeliveryGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[g.ID]; ok {
		return sentinel.ErrConflict
	}
	if s.codeTaken(g) {
		return sentinel.ErrConflict
	}
	cp := *g
	s.byID[g.ID] = &cp
	return nil
}

func (s *InMemory) Update(_ context.Context, g *models.DeliveryGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[g.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if s.codeTaken(g) {
		return sentinel.ErrConflict
	}
	cp := *g
	s.byID[g.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.GroupID) (*models.DeliveryGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *InMemory) Delete(_ context.Context, id domain.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *InMemory) ListCodesInScope(_ context.Context, responsibleOrgID domain.OrgID, year int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var codes []string
	for _, g := range s.byID {
		if g.ResponsibleOrgID == responsibleOrgID && g.CodeYear == year {
			codes = append(codes, g.SequentialCode)
		}
	}
	return codes, nil
}

func (s *InMemory) CodeExistsInScope(_ context.Context, responsibleOrgID domain.OrgID, year int, code string, excludeID domain.GroupID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, g := range s.byID {
		if id == excludeID {
			continue
		}
		if g.ResponsibleOrgID == responsibleOrgID && g.CodeYear == year && g.SequentialCode == code {
			return true, nil
		}
	}
	return false, nil
}
