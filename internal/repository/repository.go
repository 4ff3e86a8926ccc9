package repository

import (
	"context"
	"errors"
	"time"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
)

// ErrNotFound is returned when no snapshot satisfies a lookup.
var ErrNotFound = errors.New("not found")

type SnapshotRepository interface {
	// SaveSnapshot always inserts a new row and returns its id.
	SaveSnapshot(ctx context.Context, snapshot model.RateSnapshot) (int64, error)
	// GetLatestSnapshot returns the newest snapshot for base fetched strictly after notBefore.
	GetLatestSnapshot(ctx context.Context, base string, notBefore time.Time) (*model.RateSnapshot, error)
	// DeleteSnapshotsBefore removes snapshots fetched strictly before threshold.
	DeleteSnapshotsBefore(ctx context.Context, threshold time.Time) (int64, error)
}

type HistoryRepository interface {
	SaveConversion(ctx context.Context, record model.ConversionRecord) (int64, error)
	// ListConversions returns every record, most recent first.
	ListConversions(ctx context.Context) ([]model.ConversionRecord, error)
}

type Store interface {
	SnapshotRepository
	HistoryRepository
	Ping(ctx context.Context) error
	Close() error
}
