// Package poller periodically snapshots connected external platform
// accounts and credits the growth since the previous snapshot.
package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
)

// StatsSource fetches one external platform's current per-category
// counts for an account handle.
type StatsSource interface {
	Name() string
	// BoundCategory is the category automated submissions from this
	// platform are credited to.
	BoundCategory() string
	Fetch(ctx context.Context, handle string) (domain.Snapshot, error)
}

// Notifier is the minimal interface the poller needs to announce
// progress in the shared channel. Failures are logged, not retried.
type Notifier interface {
	Announce(text string) error
}

// Poller runs the collection loop over all stored connections.
type Poller struct {
	ledger   store.Ledger
	sources  map[string]StatsSource
	notify   Notifier
	ops      Notifier // optional operator alerts, may be nil
	log      *zap.Logger
	interval time.Duration
}

// New creates a Poller over the given stats sources, keyed by their
// platform name.
func New(ledger store.Ledger, sources []StatsSource, notify Notifier, ops Notifier, interval time.Duration, log *zap.Logger) *Poller {
	byName := make(map[string]StatsSource, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &Poller{
		ledger:   ledger,
		sources:  byName,
		notify:   notify,
		ops:      ops,
		log:      log,
		interval: interval,
	}
}

// Run polls once immediately, then on every interval tick until ctx is
// canceled.
func (p *Poller) Run(ctx context.Context) {
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopping")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick performs one collection cycle. Failures on one connection never
// block the others.
func (p *Poller) tick(ctx context.Context) {
	connections, err := p.ledger.Connections(ctx)
	if err != nil {
		p.log.Error("list connections failed", zap.Error(err))
		return
	}
	p.log.Info("polling external platforms", zap.Int("connections", len(connections)))

	for _, conn := range connections {
		if err := p.pollConnection(ctx, conn); err != nil {
			p.log.Error("poll failed",
				zap.Int64("connection", conn.ID),
				zap.String("platform", conn.Platform),
				zap.Error(err))
			p.alertOps(fmt.Sprintf("poll failed for %s connection %d: %v", conn.Platform, conn.ID, err))
		}
	}
}

// pollConnection fetches the current counts and credits the delta since
// the stored snapshot. The submission write and the snapshot write are
// two separate ledger operations: a crash between them re-credits the
// same delta once on the next cycle. That rare duplication window is
// accepted; the snapshot is the source of truth for "already credited".
func (p *Poller) pollConnection(ctx context.Context, conn domain.ExternalPlatformConnection) error {
	source, ok := p.sources[conn.Platform]
	if !ok {
		return fmt.Errorf("no stats source for platform %q", conn.Platform)
	}

	current, err := source.Fetch(ctx, conn.Handle)
	if err != nil {
		// no partial update: the stored snapshot stays the baseline
		return fmt.Errorf("fetch %s stats for %q: %w", conn.Platform, conn.Handle, err)
	}

	if conn.Snapshot == nil {
		// first observation establishes the baseline; it may represent
		// lifetime history, not new progress, so nothing is credited
		p.log.Info("stored baseline snapshot",
			zap.Int64("connection", conn.ID), zap.Int("total", current.Total()))
		return p.ledger.UpdateConnectionSnapshot(ctx, conn.ID, current)
	}

	delta := current.Total() - conn.Snapshot.Total()
	switch {
	case delta == 0:
		p.log.Info("no changes", zap.Int64("connection", conn.ID))
	case delta < 0:
		// external counts went down (account reset); never subtract
		// from the ledger, just adopt the new baseline
		p.log.Warn("snapshot regressed",
			zap.Int64("connection", conn.ID), zap.Int("delta", delta))
	default:
		if err := p.credit(ctx, conn, delta); err != nil {
			return err
		}
	}

	return p.ledger.UpdateConnectionSnapshot(ctx, conn.ID, current)
}

func (p *Poller) credit(ctx context.Context, conn domain.ExternalPlatformConnection, delta int) error {
	source := p.sources[conn.Platform]

	category, err := p.ledger.CategoryByName(ctx, source.BoundCategory())
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("category %q not found", source.BoundCategory())
	}

	goal, err := p.ledger.GoalForCategory(ctx, conn.UserID, category.ID)
	if err != nil {
		return err
	}
	if goal == nil {
		return fmt.Errorf("no active goal for user %d in category %q", conn.UserID, category.Name)
	}

	if _, err := p.ledger.CreateSubmission(ctx, domain.NewSubmission{
		UserID: conn.UserID,
		GoalID: &goal.ID,
		Amount: int64(delta),
	}); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}

	user, err := p.ledger.GetUser(ctx, conn.UserID)
	if err != nil || user == nil {
		p.log.Warn("could not load user for announcement",
			zap.Int64("user", conn.UserID), zap.Error(err))
		return nil
	}

	noun := "problems"
	if delta == 1 {
		noun = "problem"
	}
	text := fmt.Sprintf("User %s solved %d %s on %s", user.Username, delta, noun, conn.Platform)
	if err := p.notify.Announce(text); err != nil {
		p.log.Error("announce failed", zap.Error(err))
	}
	return nil
}

func (p *Poller) alertOps(text string) {
	if p.ops == nil {
		return
	}
	if err := p.ops.Announce(text); err != nil {
		p.log.Warn("ops alert failed", zap.Error(err))
	}
}
