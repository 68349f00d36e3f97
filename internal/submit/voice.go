package submit

import (
	"context"
	"math"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
	"github.com/kellyjadams/break-into-data-bot/internal/gateway"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
)

// Numbered rooms share one category: "leetcode_3" tracks as "leetcode".
var shardSuffix = regexp.MustCompile(`_\d+$`)

// VoiceTracker converts voice-channel presence changes into
// duration-based submissions. Sessions are process-local: a restart
// drops any session that was open at the time, and its eventual leave
// event is a no-op.
type VoiceTracker struct {
	ledger store.Ledger
	log    *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	joined map[int64]time.Time // user id -> join time
}

// NewVoiceTracker creates a VoiceTracker.
func NewVoiceTracker(ledger store.Ledger, log *zap.Logger) *VoiceTracker {
	return &VoiceTracker{
		ledger: ledger,
		log:    log,
		now:    time.Now,
		joined: make(map[int64]time.Time),
	}
}

// HandlePresence processes one presence change. Joins only open a
// session; leaves and genuine channel switches close it and, when the
// departed channel maps to a category the user has a goal in, record a
// submission of ceil(minutes). Unmapped rooms and goal-less users are
// not an error condition. Only ledger failures are returned.
func (t *VoiceTracker) HandlePresence(ctx context.Context, ev gateway.PresenceEvent) error {
	user, err := t.ledger.EnsureUser(ctx, ev.UserID, ev.Username)
	if err != nil {
		return err
	}

	joins := ev.Before == "" && ev.After != ""
	leaves := ev.Before != "" && (ev.After == "" || ev.After != ev.Before)

	if joins {
		t.mu.Lock()
		t.joined[user.ID] = t.now()
		t.mu.Unlock()
		t.log.Info("voice session opened",
			zap.Int64("user", user.ID), zap.String("channel", ev.After))
		return nil
	}

	if !leaves {
		// same-channel update (mute, deafen, stream); the session stays open
		return nil
	}

	t.mu.Lock()
	joinedAt, ok := t.joined[user.ID]
	delete(t.joined, user.ID)
	t.mu.Unlock()
	if !ok {
		return nil
	}

	duration := t.now().Sub(joinedAt)
	t.log.Info("voice session closed",
		zap.Int64("user", user.ID),
		zap.String("channel", ev.Before),
		zap.Duration("duration", duration))

	category, err := t.ledger.CategoryByVoiceChannel(ctx, shardSuffix.ReplaceAllString(ev.Before, ""))
	if err != nil {
		return err
	}
	if category == nil {
		t.log.Info("no category for voice channel", zap.String("channel", ev.Before))
		return nil
	}

	goal, err := t.ledger.GoalForCategory(ctx, user.ID, category.ID)
	if err != nil {
		return err
	}
	if goal == nil {
		return nil
	}

	channel := ev.Before
	_, err = t.ledger.CreateSubmission(ctx, domain.NewSubmission{
		UserID:       user.ID,
		GoalID:       &goal.ID,
		Amount:       ceilMinutes(duration),
		IsVoice:      true,
		VoiceChannel: &channel,
	})
	return err
}

// ceilMinutes rounds up to whole minutes: any engagement counts, and
// nobody gets credited with zero for a sub-minute session.
func ceilMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Minutes()))
}
