package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aqi-explorer/internal/modules/airquality/types"
)

//go:embed sql/insert-lookup.sql
var insertLookupSQL string

//go:embed sql/insert-pollutant.sql
var insertPollutantSQL string

//go:embed sql/get-recent-lookups.sql
var getRecentLookupsSQL string

//go:embed sql/get-recent-pollutants.sql
var getRecentPollutantsSQL string

//go:embed sql/count-lookups.sql
var countLookupsSQL string

// timeLayout matches the created_at column default so stored values sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

type LookupRepository interface {
	InsertLookup(ctx context.Context, l types.Lookup) error
	GetRecentLookups(ctx context.Context, limit int) ([]types.Lookup, error)
	CountLookups(ctx context.Context) (int, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) LookupRepository {
	return &repositoryImpl{db: db}
}

// InsertLookup stores l and its concentrations in one transaction.
func (r *repositoryImpl) InsertLookup(ctx context.Context, l types.Lookup) error {
	if l.ID == "" {
		return errors.New("insert lookup: missing id")
	}
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("rollback insert lookup", "lookup_id", l.ID, "error", err)
		}
	}()

	_, err = tx.ExecContext(ctx, insertLookupSQL,
		l.ID, string(l.Kind), l.Query, l.DisplayName,
		l.Coordinates.Lat, l.Coordinates.Lon,
		l.Index, l.Status, l.Synthetic, l.Reason,
		created.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert lookup %s: %w", l.ID, err)
	}
	for p, v := range l.Pollutants {
		if _, err := tx.ExecContext(ctx, insertPollutantSQL, l.ID, string(p), v); err != nil {
			return fmt.Errorf("insert pollutant %s for %s: %w", p, l.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lookup %s: %w", l.ID, err)
	}
	return nil
}

// GetRecentLookups returns at most limit lookups, newest first.
func (r *repositoryImpl) GetRecentLookups(ctx context.Context, limit int) ([]types.Lookup, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, getRecentLookupsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close recent lookups rows", "error", err)
		}
	}()

	var out []types.Lookup
	byID := make(map[string]int)
	for rows.Next() {
		var (
			l    types.Lookup
			kind string
			ts   string
		)
		if err := rows.Scan(&l.ID, &kind, &l.Query, &l.DisplayName, &l.Coordinates.Lat, &l.Coordinates.Lon,
			&l.Index, &l.Status, &l.Synthetic, &l.Reason, &ts); err != nil {
			return nil, err
		}
		l.Kind = types.QueryKind(kind)
		if l.CreatedAt, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		l.Pollutants = make(map[types.Pollutant]float64)
		byID[l.ID] = len(out)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	if err := r.attachPollutants(ctx, limit, out, byID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repositoryImpl) attachPollutants(ctx context.Context, limit int, out []types.Lookup, byID map[string]int) error {
	rows, err := r.db.QueryContext(ctx, getRecentPollutantsSQL, limit)
	if err != nil {
		return err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close pollutant rows", "error", err)
		}
	}()
	for rows.Next() {
		var (
			id, p string
			v     float64
		)
		if err := rows.Scan(&id, &p, &v); err != nil {
			return err
		}
		// a lookup inserted between the two queries is not in out
		if i, ok := byID[id]; ok {
			out[i].Pollutants[types.Pollutant(p)] = v
		}
	}
	return rows.Err()
}

func (r *repositoryImpl) CountLookups(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countLookupsSQL).Scan(&n)
	return n, err
}

func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(timeLayout, ts)
	if err == nil {
		return t, nil
	}
	t, err2 := time.Parse(time.RFC3339Nano, ts)
	if err2 != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w; RFC3339Nano: %w", ts, err, err2)
	}
	return t, nil
}
