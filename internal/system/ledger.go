package system

import (
	"context"
	"time"

	"github.com/l1jgo/fallspawn/internal/core/event"
	coresys "github.com/l1jgo/fallspawn/internal/core/system"
	"github.com/l1jgo/fallspawn/internal/persist"
	"go.uber.org/zap"
)

// maxPendingRows bounds the ledger buffer while the store is failing.
const maxPendingRows = 4096

// BatchStore persists batch lifecycle rows.
type BatchStore interface {
	SaveBatches(ctx context.Context, rows []persist.BatchRow) error
}

// LedgerSystem records every batch lifecycle event and writes them out in
// bulk every flushEvery ticks. Phase 3 (Persist).
type LedgerSystem struct {
	store      BatchStore
	flushEvery int
	log        *zap.Logger

	pending []persist.BatchRow
	ticks   int
	dropped int
}

func NewLedgerSystem(bus *event.Bus, store BatchStore, flushEvery int, log *zap.Logger) *LedgerSystem {
	if flushEvery <= 0 {
		flushEvery = 1
	}
	s := &LedgerSystem{
		store:      store,
		flushEvery: flushEvery,
		log:        log,
		pending:    make([]persist.BatchRow, 0, 64),
	}
	event.Subscribe(bus, func(ev event.BatchSpawned) {
		s.add(persist.BatchRow{
			Spawner: ev.Spawner, Seq: ev.Seq, Outcome: persist.OutcomeSpawned,
			Kind: ev.Kind, Size: ev.Size, ArenaBytes: ev.ArenaBytes, At: ev.At,
		})
	})
	event.Subscribe(bus, func(ev event.BatchRetired) {
		s.add(persist.BatchRow{
			Spawner: ev.Spawner, Seq: ev.Seq, Outcome: persist.OutcomeRetired,
			DrainTicks: ev.DrainTicks, Polls: ev.Polls, At: ev.At,
		})
	})
	event.Subscribe(bus, func(ev event.BatchAborted) {
		s.add(persist.BatchRow{
			Spawner: ev.Spawner, Seq: ev.Seq, Outcome: persist.OutcomeAborted,
			Detail: ev.Reason, At: ev.At,
		})
	})
	event.Subscribe(bus, func(ev event.BatchTornDown) {
		s.add(persist.BatchRow{
			Spawner: ev.Spawner, Seq: ev.Seq, Outcome: persist.OutcomeTornDown,
			Size: ev.Destroyed, At: ev.At,
		})
	})
	return s
}

func (s *LedgerSystem) add(row persist.BatchRow) {
	if len(s.pending) >= maxPendingRows {
		copy(s.pending, s.pending[1:])
		s.pending = s.pending[:len(s.pending)-1]
		s.dropped++
	}
	s.pending = append(s.pending, row)
}

func (s *LedgerSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *LedgerSystem) Update(_ time.Duration) {
	s.ticks++
	if s.ticks < s.flushEvery {
		return
	}
	s.ticks = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.log.Error("batch ledger flush failed", zap.Int("pending", len(s.pending)), zap.Error(err))
	}
}

// Flush writes every pending row. On failure the rows stay queued.
func (s *LedgerSystem) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.store.SaveBatches(ctx, s.pending); err != nil {
		return err
	}
	if s.dropped > 0 {
		s.log.Warn("batch ledger dropped rows while the store was failing", zap.Int("dropped", s.dropped))
		s.dropped = 0
	}
	s.pending = s.pending[:0]
	return nil
}

// Pending returns the number of rows waiting for the next flush.
func (s *LedgerSystem) Pending() int { return len(s.pending) }
