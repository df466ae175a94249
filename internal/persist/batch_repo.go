package persist

import (
	"context"
	"fmt"
	"time"
)

// Batch outcomes as stored in spawn_batches.outcome.
const (
	OutcomeSpawned  = "spawned"
	OutcomeRetired  = "retired"
	OutcomeAborted  = "aborted"
	OutcomeTornDown = "torn_down"
)

// BatchRow is one lifecycle transition of one spawner batch.
type BatchRow struct {
	Spawner    string
	Seq        uint64
	Outcome    string
	Kind       string
	Size       int
	ArenaBytes int
	DrainTicks int
	Polls      int
	Detail     string
	At         time.Time
}

type BatchRepo struct {
	db *DB
}

func NewBatchRepo(db *DB) *BatchRepo {
	return &BatchRepo{db: db}
}

// SaveBatches writes rows in a single transaction.
func (r *BatchRepo) SaveBatches(ctx context.Context, rows []BatchRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("batch ledger begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, b := range rows {
		at := b.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO spawn_batches (spawner, seq, outcome, kind, size, arena_bytes, drain_ticks, polls, detail, at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			b.Spawner, int64(b.Seq), b.Outcome, b.Kind, b.Size, b.ArenaBytes, b.DrainTicks, b.Polls, b.Detail, at,
		); err != nil {
			return fmt.Errorf("batch ledger insert %s/%d: %w", b.Spawner, b.Seq, err)
		}
	}

	return tx.Commit(ctx)
}

// LastSeq returns the highest batch sequence stored for spawner, 0 if none.
func (r *BatchRepo) LastSeq(ctx context.Context, spawner string) (uint64, error) {
	var seq int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM spawn_batches WHERE spawner = $1`, spawner,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last batch seq for %s: %w", spawner, err)
	}
	return uint64(seq), nil
}
