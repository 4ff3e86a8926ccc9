package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository"
)

func (r *Repository) SaveSnapshot(ctx context.Context, snapshot model.RateSnapshot) (int64, error) {
	rates, err := model.EncodeRates(snapshot.Rates)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", model.ErrStorage, err)
	}

	var id int64
	err = r.db.QueryRowContext(
		ctx,
		r.q.insertSnapshot,
		snapshot.BaseCurrency,
		rates,
		model.ToMillis(snapshot.FetchedAt),
	).Scan(&id)

	if err != nil {
		r.logger.Error("Failed to save rate snapshot",
			zap.String("base_currency", snapshot.BaseCurrency),
			zap.Int("rates", len(snapshot.Rates)),
			zap.Error(err))
		return 0, fmt.Errorf("%w: failed to execute insert query: %w", model.ErrStorage, err)
	}

	r.logger.Debug("Rate snapshot saved successfully",
		zap.Int64("id", id),
		zap.String("base_currency", snapshot.BaseCurrency),
		zap.Time("fetched_at", snapshot.FetchedAt))

	return id, nil
}

func (r *Repository) GetLatestSnapshot(ctx context.Context, base string, notBefore time.Time) (*model.RateSnapshot, error) {
	var (
		snapshot  model.RateSnapshot
		rawRates  string
		fetchedAt int64
	)
	err := r.db.QueryRowContext(ctx, r.q.latestSnapshot, base, model.ToMillis(notBefore)).Scan(
		&snapshot.ID,
		&snapshot.BaseCurrency,
		&rawRates,
		&fetchedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("No valid rate snapshot", zap.String("base_currency", base))
			return nil, repository.ErrNotFound
		}
		r.logger.Error("Failed to get latest rate snapshot",
			zap.String("base_currency", base),
			zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get latest snapshot: %w", model.ErrStorage, err)
	}

	rates, err := model.DecodeRates(rawRates)
	if err != nil {
		r.logger.Error("Stored rates are corrupt",
			zap.Int64("id", snapshot.ID),
			zap.String("base_currency", base),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", model.ErrStorage, err)
	}
	snapshot.Rates = rates
	snapshot.FetchedAt = model.FromMillis(fetchedAt)

	r.logger.Debug("Retrieved latest rate snapshot",
		zap.Int64("id", snapshot.ID),
		zap.String("base_currency", snapshot.BaseCurrency),
		zap.Time("fetched_at", snapshot.FetchedAt))

	return &snapshot, nil
}

func (r *Repository) DeleteSnapshotsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q.deleteSnapshotsBefore, model.ToMillis(threshold))
	if err != nil {
		r.logger.Error("Failed to delete expired rate snapshots",
			zap.Time("threshold", threshold),
			zap.Error(err))
		return 0, fmt.Errorf("%w: failed to execute delete query: %w", model.ErrStorage, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read affected rows: %w", model.ErrStorage, err)
	}

	r.logger.Debug("Expired rate snapshots deleted",
		zap.Int64("deleted", deleted),
		zap.Time("threshold", threshold))

	return deleted, nil
}
