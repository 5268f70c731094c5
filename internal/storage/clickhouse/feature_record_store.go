package clickhouse

import (
	"context"
	"fmt"

	"onset-detect/internal/domain"
	"onset-detect/internal/storage"
)

// FeatureRecordStore implements storage.FeatureRecordStore using
// ClickHouse, for analytical archival of the dense per-tick Feature Engine
// output. Grounded on DerivedFeatureStore's InsertBulk/PrepareBatch shape,
// generalized from a fixed Solana derived-feature row to the onset-
// detection FeatureRecord row.
type FeatureRecordStore struct {
	conn *Conn
}

// NewFeatureRecordStore creates a new FeatureRecordStore.
func NewFeatureRecordStore(conn *Conn) *FeatureRecordStore {
	return &FeatureRecordStore{conn: conn}
}

var _ storage.FeatureRecordStore = (*FeatureRecordStore)(nil)

// InsertBulk appends records for symbol. Unlike the operational stores,
// this analytical archive does not reject duplicates: ClickHouse's
// MergeTree engine is optimized for high-throughput append, and exact
// dedup is left to downstream query-time aggregation (matching the other
// ClickHouse stores' documented isDuplicateKeyError no-op).
func (s *FeatureRecordStore) InsertBulk(ctx context.Context, symbol string, records []domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO feature_records (
			symbol, timestamp_ms,
			price, ret_1s, accel_1s, ticks_per_sec, vol_1s, z_vol_1s,
			spread, has_spread, microprice, has_microprice, microprice_slope
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		if err := batch.Append(
			symbol, uint64(r.TS),
			r.Price, r.Ret1s, r.Accel1s, r.TicksPerSec, r.Vol1s, r.ZVol1s,
			r.Spread, r.HasSpread, r.Microprice, r.HasMicroprice, r.MicropriceSlope,
		); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySymbol retrieves records for symbol within [start, end] (inclusive), ordered by ts ASC.
func (s *FeatureRecordStore) GetBySymbol(ctx context.Context, symbol string, start, end int64) ([]domain.FeatureRecord, error) {
	query := `
		SELECT
			timestamp_ms, price, ret_1s, accel_1s, ticks_per_sec, vol_1s, z_vol_1s,
			spread, has_spread, microprice, has_microprice, microprice_slope
		FROM feature_records
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	var out []domain.FeatureRecord
	for rows.Next() {
		var r domain.FeatureRecord
		var ts uint64
		r.Symbol = symbol
		if err := rows.Scan(
			&ts, &r.Price, &r.Ret1s, &r.Accel1s, &r.TicksPerSec, &r.Vol1s, &r.ZVol1s,
			&r.Spread, &r.HasSpread, &r.Microprice, &r.HasMicroprice, &r.MicropriceSlope,
		); err != nil {
			return nil, fmt.Errorf("scan feature record row: %w", err)
		}
		r.TS = int64(ts)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature record rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying connection.
func (s *FeatureRecordStore) Close() error {
	return s.conn.Close()
}
