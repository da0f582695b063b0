// Package store persists organization-group links, cost declarations, and
// subsidy entries.
package store

import (
	"context"
	"sync"

	"bonifica/internal/ledger/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

// InMemoryLinks is a mutex-guarded link store. One link per
// (group, organization) pair, matching the Postgres unique index.
type InMemoryLinks struct {
	mu   sync.RWMutex
	byID map[domain.LinkID]*models.OrganizationGroupLink
}

// NewInMemoryLinks constructs an empty in-memory link store.
func NewInMemoryLinks() *InMemoryLinks {
	return &InMemoryLinks{byID: make(map[domain.LinkID]*models.OrganizationGroupLink)}
}

func (s *InMemoryLinks) Create(_ context.Context, link *models.OrganizationGroupLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[link.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.GroupID == link.GroupID && existing.OrgID == link.OrgID {
			return sentinel.ErrConflict
		}
	}
	cp := *link
	s.byID[link.ID] = &cp
	return nil
}

func (s *InMemoryLinks) FindByID(_ context.Context, id domain.LinkID) (*models.OrganizationGroupLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *InMemoryLinks) ListByGroup(_ context.Context, groupID domain.GroupID) ([]*models.OrganizationGroupLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.OrganizationGroupLink
	for _, link := range s.byID {
		if link.GroupID == groupID {
			cp := *link
			out = append(out, &cp)
		}
	}
	return out, nil
}

// InMemoryCosts is a mutex-guarded cost declaration store.
type InMemoryCosts struct {
	mu     sync.RWMutex
	byLink map[domain.LinkID]*models.CostDeclaration
}

// NewInMemoryCosts constructs an empty in-memory cost store.
func NewInMemoryCosts() *InMemoryCosts {
	return &InMemoryCosts{byLink: make(map[domain.LinkID]*models.CostDeclaration)}
}

func (s *InMemoryCosts) Upsert(_ context.Context, cost *models.CostDeclaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *cost
	s.byLink[cost.LinkID] = &cp
	return nil
}

func (s *InMemoryCosts) FindByLink(_ context.Context, linkID domain.LinkID) (*models.CostDeclaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cost, ok := s.byLink[linkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *cost
	return &cp, nil
}

// InMemoryEntries is a mutex-guarded subsidy entry store enforcing the same
// (link, month) uniqueness as the Postgres index.
type InMemoryEntries struct {
	mu   sync.RWMutex
	byID map[domain.EntryID]*models.SubsidyEntry
}

// NewInMemoryEntries constructs an empty in-memory entry store.
func NewInMemoryEntries() *InMemoryEntries {
	return &InMemoryEntries{byID: make(map[domain.EntryID]*models.SubsidyEntry)}
}

func (s *InMemoryEntries) Create(_ context.Context, entry *models.SubsidyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[entry.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.byID {
		if existing.LinkID == entry.LinkID && existing.Month == entry.Month {
			return sentinel.ErrConflict
		}
	}
	cp := *entry
	s.byID[entry.ID] = &cp
	return nil
}

func (s *InMemoryEntries) Delete(_ context.Context, id domain.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *InMemoryEntries) FindByID(_ context.Context, id domain.EntryID) (*models.SubsidyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *InMemoryEntries) ListByLink(_ context.Context, linkID domain.LinkID) ([]*models.SubsidyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.SubsidyEntry
	for _, entry := range s.byID {
		if entry.LinkID == linkID {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}
