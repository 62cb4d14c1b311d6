package ports

import (
	"context"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// VerdictStore defines the interface for durable verdict storage.
type VerdictStore interface {
	// SaveRecord persists a finished run. It assigns ID and CreatedAt when unset.
	SaveRecord(ctx context.Context, rec *domain.Record) error

	// GetRecord retrieves a record by ID.
	GetRecord(ctx context.Context, id string) (*domain.Record, error)

	// ListRecords lists records newest first.
	ListRecords(ctx context.Context, opts ListOptions) ([]*domain.Record, error)

	// Close closes the storage connection.
	Close() error
}

// ListOptions contains options for listing records.
type ListOptions struct {
	Limit    int
	Offset   int
	Source   string // Filter by provenance tag
	Category string // Filter by category
}
