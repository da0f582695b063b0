// Package action persists training actions.
package action

import (
	"context"
	"sync"

	"bonifica/internal/training/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded action store enforcing the same
// (responsible organization, code) uniqueness as the Postgres index.
type InMemory struct {
	mu   sync.RWMutex
	byID map[domain.ActionID]*models.TrainingAction
}

// NewInMemory constructs an empty in-memory action store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.ActionID]*models.TrainingAction)}
}

func (s *InMemory) Create(_ context.Context, a *models.TrainingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.ResponsibleOrgID == a.ResponsibleOrgID && existing.SequentialCode == a.SequentialCode {
			return sentinel.ErrConflict
		}
	}
	cp := *a
	s.byID[a.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ActionID) (*models.TrainingAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemory) CodeExists(_ context.Context, responsibleOrgID domain.OrgID, code string, excludeID domain.ActionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.byID {
		if a.ID == excludeID {
			continue
		}
		if a.ResponsibleOrgID == responsibleOrgID && a.SequentialCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) Update(_ context.Context, a *models.TrainingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, existing := range s.byID {
		if id != a.ID && existing.ResponsibleOrgID == a.ResponsibleOrgID && existing.SequentialCode == a.SequentialCode {
			return sentinel.ErrConflict
		}
	}
	cp := *a
	s.byID[a.ID] = &cp
	return nil
}
