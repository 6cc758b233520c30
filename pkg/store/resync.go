package store

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
)

// ResyncReport summarizes one replay of local state into the durable backend.
type ResyncReport struct {
	Replayed int `json:"replayed"`
	Purged   int `json:"purged"`
	Failed   int `json:"failed"`
}

// Pending reports how many facts and purges are held locally waiting
// for the durable backend.
func (s *FactStore) Pending() (factsHeld, purges int) {
	if s.primary == nil {
		return 0, 0
	}
	for _, series := range s.local.Snapshot() {
		factsHeld += len(series)
	}
	s.mu.Lock()
	purges = len(s.purged)
	s.mu.Unlock()
	return factsHeld, purges
}

// Resync completes failed durable deletes, then replays facts that
// were written to the local fallback. Anything that fails again stays
// local for the next run.
func (s *FactStore) Resync(ctx context.Context) ResyncReport {
	var report ResyncReport
	if s.primary == nil {
		return report
	}

	s.mu.Lock()
	purges := make(map[string]time.Time, len(s.purged))
	for k, v := range s.purged {
		purges[k] = v
	}
	s.mu.Unlock()

	for subjectKey, at := range purges {
		if err := s.replayPurge(ctx, subjectKey, at); err != nil {
			report.Failed++
			logger.WarnCF("store", "Resync purge failed", map[string]interface{}{
				"sender": subjectKey,
				"error":  err.Error(),
			})
			continue
		}
		s.mu.Lock()
		if cur, ok := s.purged[subjectKey]; ok && cur.Equal(at) {
			delete(s.purged, subjectKey)
		}
		s.mu.Unlock()
		report.Purged++
	}

	for _, series := range s.local.Snapshot() {
		for _, f := range series {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			err := s.primary.Save(cctx, f)
			cancel()
			if err != nil {
				report.Failed++
				continue
			}
			s.local.Remove(f.SubjectKey, f.ID, f.CreatedAt)
			report.Replayed++
		}
	}
	return report
}

// replayPurge deletes the sender's durable facts, keeping those written
// after the purge moment.
func (s *FactStore) replayPurge(ctx context.Context, subjectKey string, at time.Time) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.primary.List(cctx, subjectKey)
	if err != nil {
		return fmt.Errorf("list before purge: %w", err)
	}
	var keep []facts.Fact
	for _, f := range list {
		if f.CreatedAt.After(at) {
			keep = append(keep, f)
		}
	}
	if err := s.primary.DeleteAll(cctx, subjectKey); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	for _, f := range keep {
		if err := s.primary.Save(cctx, f); err != nil {
			// Hold it locally so the next resync restores it.
			_ = s.local.Save(ctx, f)
		}
	}
	return nil
}

// Resyncer runs FactStore.Resync on a cron schedule.
type Resyncer struct {
	store *FactStore
	expr  string
	now   func() time.Time
}

// NewResyncer validates the cron expression up front.
func NewResyncer(store *FactStore, expr string) (*Resyncer, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid resync schedule %q", expr)
	}
	return &Resyncer{store: store, expr: expr, now: time.Now}, nil
}

// Next returns the next scheduled run after t.
func (r *Resyncer) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(r.expr, t, false)
}

// Run blocks until ctx is done, resyncing at each tick.
func (r *Resyncer) Run(ctx context.Context) {
	if r.store.primary == nil {
		return
	}
	logger.InfoCF("store", "Resync scheduler started", map[string]interface{}{
		"schedule": r.expr,
		"backend":  r.store.BackendName(),
	})

	for {
		next, err := r.Next(r.now())
		if err != nil {
			logger.ErrorCF("store", "Resync schedule has no next tick", map[string]interface{}{
				"schedule": r.expr,
				"error":    err.Error(),
			})
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		held, purges := r.store.Pending()
		if held == 0 && purges == 0 {
			continue
		}
		report := r.store.Resync(ctx)
		logger.InfoCF("store", "Resync finished", map[string]interface{}{
			"replayed": report.Replayed,
			"purged":   report.Purged,
			"failed":   report.Failed,
		})
	}
}
