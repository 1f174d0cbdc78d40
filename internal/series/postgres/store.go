// Package postgres stores series in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgnsrekt/graphview/internal/chart"
	"github.com/dgnsrekt/graphview/internal/series"
)

const insertBatch = 500

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Init(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS series_collections (
	name        TEXT   PRIMARY KEY,
	time_column TEXT   NOT NULL,
	dims        TEXT[] NOT NULL DEFAULT '{}',
	columns     TEXT[] NOT NULL
);
CREATE TABLE IF NOT EXISTS series_points (
	collection TEXT        NOT NULL REFERENCES series_collections(name) ON DELETE CASCADE,
	label      TEXT        NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	dims       JSONB       NOT NULL DEFAULT '{}',
	vals       JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_series_points_lookup ON series_points (collection, label, ts);
`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM series_collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Labels(ctx context.Context, collection string) ([]string, error) {
	if _, err := s.Schema(ctx, collection); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT label FROM series_points WHERE collection=$1 ORDER BY label`, collection)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Schema(ctx context.Context, collection string) (series.Schema, error) {
	var sc series.Schema
	err := s.pool.QueryRow(ctx,
		`SELECT time_column, dims, columns FROM series_collections WHERE name=$1`, collection,
	).Scan(&sc.TimeColumn, &sc.Dims, &sc.Columns)
	if errors.Is(err, pgx.ErrNoRows) {
		return series.Schema{}, chart.NewError(chart.CodeSeriesNotFound, fmt.Sprintf("collection %q not found", collection), nil)
	}
	if err != nil {
		return series.Schema{}, err
	}
	return sc, nil
}

func (s *Store) Frame(ctx context.Context, q series.FrameQuery) ([]series.Point, error) {
	if _, err := s.Schema(ctx, q.Collection); err != nil {
		return nil, err
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM series_points WHERE collection=$1 AND label=$2)`, q.Collection, q.Label,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, chart.NewError(chart.CodeSeriesNotFound, fmt.Sprintf("series %q not found in %q", q.Label, q.Collection), nil)
	}

	sql, args := frameSQL(q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []series.Point{}
	for rows.Next() {
		var (
			ts   time.Time
			dims map[string]string
			vals map[string]*float64
		)
		if err := rows.Scan(&ts, &dims, &vals); err != nil {
			return nil, err
		}
		out = append(out, series.Point{TS: ts.UTC(), Dims: dims, Values: presentValues(vals)})
	}
	return out, rows.Err()
}

// presentValues drops JSON nulls so they read back as gaps rather than zero.
func presentValues(vals map[string]*float64) map[string]float64 {
	out := make(map[string]float64, len(vals))
	for k, v := range vals {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// CreateCollection upserts a collection schema.
func (s *Store) CreateCollection(ctx context.Context, name string, schema series.Schema) error {
	dims := schema.Dims
	if dims == nil {
		dims = []string{}
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO series_collections (name, time_column, dims, columns) VALUES ($1,$2,$3,$4)
ON CONFLICT (name) DO UPDATE SET time_column=EXCLUDED.time_column, dims=EXCLUDED.dims, columns=EXCLUDED.columns`,
		name, schema.TimeColumn, dims, schema.Columns)
	return err
}

// Append inserts points in batches.
func (s *Store) Append(ctx context.Context, collection, label string, points []series.Point) error {
	for start := 0; start < len(points); start += insertBatch {
		end := min(start+insertBatch, len(points))
		sql, args := insertSQL(collection, label, points[start:end])
		if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}
	return nil
}

// Import copies every collection of src into the store.
func (s *Store) Import(ctx context.Context, src series.Store) error {
	names, err := src.Collections(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		schema, err := src.Schema(ctx, name)
		if err != nil {
			return err
		}
		if err := s.CreateCollection(ctx, name, schema); err != nil {
			return fmt.Errorf("import %s: %w", name, err)
		}
		labels, err := src.Labels(ctx, name)
		if err != nil {
			return err
		}
		for _, label := range labels {
			if _, err := s.pool.Exec(ctx, `DELETE FROM series_points WHERE collection=$1 AND label=$2`, name, label); err != nil {
				return err
			}
			pts, err := src.Frame(ctx, series.FrameQuery{Collection: name, Label: label})
			if err != nil {
				return err
			}
			if err := s.Append(ctx, name, label, pts); err != nil {
				return fmt.Errorf("import %s/%s: %w", name, label, err)
			}
		}
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

func frameSQL(q series.FrameQuery) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ts, dims, vals FROM series_points WHERE collection=$1 AND label=$2")
	args := []any{q.Collection, q.Label}
	if q.Start != nil {
		args = append(args, *q.Start)
		fmt.Fprintf(&b, " AND ts >= $%d", len(args))
	}
	if q.Stop != nil {
		args = append(args, *q.Stop)
		fmt.Fprintf(&b, " AND ts <= $%d", len(args))
	}
	b.WriteString(" ORDER BY ts")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func insertSQL(collection, label string, points []series.Point) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO series_points (collection, label, ts, dims, vals) VALUES ")
	args := make([]any, 0, len(points)*5)
	for i, p := range points {
		if i > 0 {
			b.WriteString(",")
		}
		o := i*5 + 1
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d)", o, o+1, o+2, o+3, o+4)
		dims := p.Dims
		if dims == nil {
			dims = map[string]string{}
		}
		args = append(args, collection, label, p.TS, dims, p.Values)
	}
	return b.String(), args
}
