package sqlstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
)

func (r *Repository) SaveConversion(ctx context.Context, record model.ConversionRecord) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(
		ctx,
		r.q.insertConversion,
		record.FromCurrency,
		record.ToCurrency,
		record.Amount,
		record.Result,
		record.Rate,
		model.ToMillis(record.Timestamp),
	).Scan(&id)

	if err != nil {
		r.logger.Error("Failed to save conversion",
			zap.String("from", record.FromCurrency),
			zap.String("to", record.ToCurrency),
			zap.Float64("amount", record.Amount),
			zap.Error(err))
		return 0, fmt.Errorf("%w: failed to execute insert query: %w", model.ErrStorage, err)
	}

	r.logger.Debug("Conversion saved to history",
		zap.Int64("id", id),
		zap.String("from", record.FromCurrency),
		zap.String("to", record.ToCurrency))

	return id, nil
}

func (r *Repository) ListConversions(ctx context.Context) ([]model.ConversionRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.q.listConversions)
	if err != nil {
		r.logger.Error("Failed to query conversion history", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to query conversion history: %w", model.ErrStorage, err)
	}
	defer rows.Close()

	records := make([]model.ConversionRecord, 0)
	for rows.Next() {
		var (
			rec       model.ConversionRecord
			createdAt int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.FromCurrency,
			&rec.ToCurrency,
			&rec.Amount,
			&rec.Result,
			&rec.Rate,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan conversion: %w", model.ErrStorage, err)
		}
		rec.Timestamp = model.FromMillis(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate conversion history: %w", model.ErrStorage, err)
	}

	return records, nil
}
