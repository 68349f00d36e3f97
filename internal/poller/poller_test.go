package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
)

type fakeLedger struct {
	users       map[int64]*domain.User
	categories  []domain.Category
	goals       []domain.Goal
	submissions []domain.Submission
	connections []domain.ExternalPlatformConnection
	snapshots   map[int64]domain.Snapshot
}

var _ store.Ledger = (*fakeLedger)(nil)

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		users:     map[int64]*domain.User{},
		snapshots: map[int64]domain.Snapshot{},
	}
}

func (f *fakeLedger) EnsureUser(_ context.Context, id int64, username string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	u := &domain.User{ID: id, Username: username}
	f.users[id] = u
	return u, nil
}

func (f *fakeLedger) GetUser(_ context.Context, id int64) (*domain.User, error) {
	return f.users[id], nil
}

func (f *fakeLedger) ActiveGoals(_ context.Context, _ int64) ([]domain.Goal, error) {
	return nil, nil
}

func (f *fakeLedger) GoalForCategory(_ context.Context, userID, categoryID int64) (*domain.Goal, error) {
	for i := len(f.goals) - 1; i >= 0; i-- {
		g := f.goals[i]
		if g.UserID == userID && g.CategoryID == categoryID && g.Active {
			return &g, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) Categories(_ context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeLedger) CategoryByName(_ context.Context, name string) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.Name == name {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CategoryByTextChannel(_ context.Context, _ string) (*domain.Category, error) {
	return nil, nil
}

func (f *fakeLedger) CategoryByVoiceChannel(_ context.Context, _ string) (*domain.Category, error) {
	return nil, nil
}

func (f *fakeLedger) CreateSubmission(_ context.Context, s domain.NewSubmission) (*domain.Submission, error) {
	if s.Amount < 0 {
		return nil, store.ErrNegativeAmount
	}
	sub := domain.Submission{
		ID:     int64(len(f.submissions) + 1),
		UserID: s.UserID,
		GoalID: s.GoalID,
		Amount: s.Amount,
	}
	f.submissions = append(f.submissions, sub)
	return &sub, nil
}

func (f *fakeLedger) UnprovedSubmissions(_ context.Context, _ int64, _ time.Duration) ([]domain.Submission, error) {
	return nil, nil
}

func (f *fakeLedger) AttachProof(_ context.Context, _ int64, _ string) error { return nil }

func (f *fakeLedger) ClaimTextSubmission(_ context.Context, _ int64, _ time.Time, _ time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeLedger) Connections(_ context.Context) ([]domain.ExternalPlatformConnection, error) {
	return f.connections, nil
}

func (f *fakeLedger) UpdateConnectionSnapshot(_ context.Context, connectionID int64, snap domain.Snapshot) error {
	f.snapshots[connectionID] = snap
	return nil
}

func (f *fakeLedger) Close() error { return nil }

type fakeSource struct {
	name     string
	category string
	snap     domain.Snapshot
	err      error
}

func (f *fakeSource) Name() string          { return f.name }
func (f *fakeSource) BoundCategory() string { return f.category }
func (f *fakeSource) Fetch(_ context.Context, _ string) (domain.Snapshot, error) {
	return f.snap, f.err
}

type fakeNotifier struct{ messages []string }

func (f *fakeNotifier) Announce(text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func pollerFixture(source *fakeSource, prev domain.Snapshot) (*Poller, *fakeLedger, *fakeNotifier, *fakeNotifier) {
	ledger := newFakeLedger()
	ledger.users[42] = &domain.User{ID: 42, Username: "alice"}
	ledger.categories = []domain.Category{{ID: 1, Name: source.category}}
	ledger.goals = []domain.Goal{{ID: 10, UserID: 42, CategoryID: 1, Active: true}}
	ledger.connections = []domain.ExternalPlatformConnection{{
		ID: 5, UserID: 42, Platform: source.name, Handle: "alice-lc", Snapshot: prev,
	}}

	notify := &fakeNotifier{}
	ops := &fakeNotifier{}
	p := New(ledger, []StatsSource{source}, notify, ops, time.Hour, zap.NewNop())
	return p, ledger, notify, ops
}

func TestFirstSnapshotIsBaselineOnly(t *testing.T) {
	source := &fakeSource{
		name: "leetcode", category: "_automated_LeetCode",
		snap: domain.Snapshot{"EASY": 120, "MEDIUM": 40},
	}
	p, ledger, notify, _ := pollerFixture(source, nil)

	p.tick(context.Background())

	assert.Empty(t, ledger.submissions)
	assert.Empty(t, notify.messages)
	assert.Equal(t, source.snap, ledger.snapshots[5])
}

func TestGrowthCreditsDelta(t *testing.T) {
	source := &fakeSource{
		name: "leetcode", category: "_automated_LeetCode",
		snap: domain.Snapshot{"EASY": 13},
	}
	p, ledger, notify, ops := pollerFixture(source, domain.Snapshot{"EASY": 10})

	p.tick(context.Background())

	require.Len(t, ledger.submissions, 1)
	sub := ledger.submissions[0]
	assert.Equal(t, int64(3), sub.Amount)
	assert.Equal(t, int64(42), sub.UserID)
	require.NotNil(t, sub.GoalID)
	assert.Equal(t, int64(10), *sub.GoalID)

	require.Len(t, notify.messages, 1)
	assert.Equal(t, "User alice solved 3 problems on leetcode", notify.messages[0])
	assert.Empty(t, ops.messages)
	assert.Equal(t, source.snap, ledger.snapshots[5])
}

func TestSingleProblemUsesSingular(t *testing.T) {
	source := &fakeSource{
		name: "leetcode", category: "_automated_LeetCode",
		snap: domain.Snapshot{"EASY": 11},
	}
	p, _, notify, _ := pollerFixture(source, domain.Snapshot{"EASY": 10})

	p.tick(context.Background())

	require.Len(t, notify.messages, 1)
	assert.Equal(t, "User alice solved 1 problem on leetcode", notify.messages[0])
}

func TestRegressionResetsBaselineWithoutCredit(t *testing.T) {
	source := &fakeSource{
		name: "leetcode", category: "_automated_LeetCode",
		snap: domain.Snapshot{"EASY": 8},
	}
	p, ledger, notify, _ := pollerFixture(source, domain.Snapshot{"EASY": 10})

	p.tick(context.Background())

	assert.Empty(t, ledger.submissions)
	assert.Empty(t, notify.messages)
	assert.Equal(t, domain.Snapshot{"EASY": 8}, ledger.snapshots[5])
}

func TestUnchangedSnapshotRefreshesBaseline(t *testing.T) {
	source := &fakeSource{
		name: "leetcode", category: "_automated_LeetCode",
		snap: domain.Snapshot{"EASY": 10},
	}
	p, ledger, _, _ := pollerFixture(source, domain.Snapshot{"EASY": 10})

	p.tick(context.Background())

	assert.Empty(t, ledger.submissions)
	assert.Equal(t, domain.Snapshot{"EASY": 10}, ledger.snapshots[5])
}

func TestFetchFailureKeepsBaselineAndAlertsOps(t *testing.T) {
	source := &fakeSource{
		name: "leetcode", category: "_automated_LeetCode",
		err: errors.New("status 503"),
	}
	p, ledger, notify, ops := pollerFixture(source, domain.Snapshot{"EASY": 10})

	p.tick(context.Background())

	assert.Empty(t, ledger.submissions)
	assert.Empty(t, notify.messages)
	require.Len(t, ops.messages, 1)
	assert.Contains(t, ops.messages[0], "leetcode")
	// the stored snapshot stays untouched so nothing is lost or double counted
	assert.NotContains(t, ledger.snapshots, int64(5))
}

func TestUnknownPlatformIsSkipped(t *testing.T) {
	source := &fakeSource{
		name: "leetcode", category: "_automated_LeetCode",
		snap: domain.Snapshot{"EASY": 13},
	}
	p, ledger, _, ops := pollerFixture(source, domain.Snapshot{"EASY": 10})
	ledger.connections = append(ledger.connections, domain.ExternalPlatformConnection{
		ID: 6, UserID: 42, Platform: "codewars", Handle: "alice-cw",
	})

	p.tick(context.Background())

	// the known connection still processes normally
	require.Len(t, ledger.submissions, 1)
	require.Len(t, ops.messages, 1)
	assert.Contains(t, ops.messages[0], "codewars")
}
