package design

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luneo/canvas-engine/internal/document"
)

const schema = `
CREATE TABLE IF NOT EXISTS design_snapshots (
	design_id  TEXT        NOT NULL,
	version    INTEGER     NOT NULL,
	saved_by   TEXT        NOT NULL DEFAULT '',
	scene      JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (design_id, version)
)`

// saveAttempts bounds retries when two writers race for the same version.
const saveAttempts = 3

// PostgresStore keeps snapshots in the design_snapshots table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the snapshot table when missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate design_snapshots: %w", err)
	}
	return nil
}

func (p *PostgresStore) Save(ctx context.Context, designID, savedBy string, s *document.Scene) (Snapshot, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal scene: %w", err)
	}

	snap := Snapshot{DesignID: designID, SavedBy: savedBy}
	for attempt := 1; ; attempt++ {
		err = p.pool.QueryRow(ctx, `
			INSERT INTO design_snapshots (design_id, version, saved_by, scene)
			SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3
			FROM design_snapshots WHERE design_id = $1
			RETURNING version, created_at`,
			designID, savedBy, doc,
		).Scan(&snap.Version, &snap.CreatedAt)
		if err == nil {
			return snap, nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != "23505" || attempt == saveAttempts {
			return Snapshot{}, fmt.Errorf("save design %s: %w", designID, err)
		}
	}
}

func (p *PostgresStore) Latest(ctx context.Context, designID string) (Snapshot, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT design_id, version, saved_by, scene, created_at
		FROM design_snapshots WHERE design_id = $1
		ORDER BY version DESC LIMIT 1`, designID)
	return scanSnapshot(row)
}

func (p *PostgresStore) Version(ctx context.Context, designID string, version int) (Snapshot, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT design_id, version, saved_by, scene, created_at
		FROM design_snapshots WHERE design_id = $1 AND version = $2`, designID, version)
	return scanSnapshot(row)
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var (
		snap Snapshot
		doc  []byte
	)
	if err := row.Scan(&snap.DesignID, &snap.Version, &snap.SavedBy, &doc, &snap.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snap.Scene = &document.Scene{}
	if err := json.Unmarshal(doc, snap.Scene); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s@%d: %w", snap.DesignID, snap.Version, err)
	}
	return snap, nil
}
