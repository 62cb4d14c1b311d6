// Package memory implements an in-process verdict store for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
)

// DefaultListLimit applies when ListOptions.Limit is zero.
const DefaultListLimit = 20

// Store is an in-memory implementation of ports.VerdictStore
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
}

var _ ports.VerdictStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[string]*domain.Record),
	}
}

func (s *Store) SaveRecord(ctx context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, domain.ErrNotFound(fmt.Sprintf("record %s not found", id))
	}
	return cloneRecord(rec), nil
}

func (s *Store) ListRecords(ctx context.Context, opts ports.ListOptions) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Record
	for _, rec := range s.records {
		if opts.Source != "" && rec.Source != opts.Source {
			continue
		}
		if opts.Category != "" && rec.Category != opts.Category {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := []*domain.Record{}
	for i := opts.Offset; i < len(matched) && len(out) < limit; i++ {
		out = append(out, cloneRecord(matched[i]))
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}

func cloneRecord(rec *domain.Record) *domain.Record {
	c := *rec
	c.ReasoningChain = append([]domain.ReasoningEntry{}, rec.ReasoningChain...)
	return &c
}
