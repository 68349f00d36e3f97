package submit

import (
	"context"
	"sync"
	"time"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
)

// fakeLedger is an in-memory Ledger for the tests in this package.
type fakeLedger struct {
	mu          sync.Mutex
	users       map[int64]*domain.User
	categories  []domain.Category
	goals       []domain.Goal
	submissions []domain.Submission
	nextID      int64
}

var _ store.Ledger = (*fakeLedger)(nil)

func newFakeLedger() *fakeLedger {
	return &fakeLedger{users: map[int64]*domain.User{}}
}

func (f *fakeLedger) addCategory(c domain.Category) { f.categories = append(f.categories, c) }
func (f *fakeLedger) addGoal(g domain.Goal)         { f.goals = append(f.goals, g) }

func testCategory(id int64, name string, freeText bool) domain.Category {
	return domain.Category{
		ID:            id,
		Name:          name,
		TextChannel:   name + "-chat",
		VoiceChannel:  name + "-room",
		AllowFreeText: freeText,
	}
}

func testGoal(id, userID, categoryID int64) domain.Goal {
	return domain.Goal{
		ID:         id,
		UserID:     userID,
		CategoryID: categoryID,
		Metric:     "units",
		Target:     5,
		Frequency:  "daily",
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
}

func (f *fakeLedger) EnsureUser(_ context.Context, id int64, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	u := &domain.User{ID: id, Username: username, CreatedAt: time.Now().UTC()}
	f.users[id] = u
	return u, nil
}

func (f *fakeLedger) GetUser(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeLedger) ActiveGoals(_ context.Context, userID int64) ([]domain.Goal, error) {
	var res []domain.Goal
	for _, g := range f.goals {
		if g.UserID == userID && g.Active {
			res = append(res, g)
		}
	}
	return res, nil
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

func (f *fakeLedger) CategoryByTextChannel(_ context.Context, channel string) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.TextChannel == channel {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CategoryByVoiceChannel(_ context.Context, channel string) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.VoiceChannel == channel {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CreateSubmission(_ context.Context, s domain.NewSubmission) (*domain.Submission, error) {
	if s.Amount < 0 {
		return nil, store.ErrNegativeAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	f.nextID++
	sub := domain.Submission{
		ID:           f.nextID,
		UserID:       s.UserID,
		GoalID:       s.GoalID,
		Amount:       s.Amount,
		ProofURL:     s.ProofURL,
		IsVoice:      s.IsVoice,
		VoiceChannel: s.VoiceChannel,
		CreatedAt:    createdAt.UTC(),
	}
	f.submissions = append(f.submissions, sub)
	return &sub, nil
}

func (f *fakeLedger) UnprovedSubmissions(_ context.Context, userID int64, window time.Duration) ([]domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var res []domain.Submission
	for _, s := range f.submissions {
		if s.UserID == userID && s.ProofURL == nil && !s.CreatedAt.Before(cutoff) {
			res = append(res, s)
		}
	}
	return res, nil
}

func (f *fakeLedger) AttachProof(_ context.Context, submissionID int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.submissions {
		if f.submissions[i].ID == submissionID {
			f.submissions[i].ProofURL = &url
		}
	}
	return nil
}

func (f *fakeLedger) ClaimTextSubmission(_ context.Context, userID int64, now time.Time, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, nil
	}
	if u.LastTextSubmissionAt != nil && u.LastTextSubmissionAt.After(now.Add(-window)) {
		return false, nil
	}
	stamp := now.UTC()
	u.LastTextSubmissionAt = &stamp
	return true, nil
}

func (f *fakeLedger) Connections(_ context.Context) ([]domain.ExternalPlatformConnection, error) {
	return nil, nil
}

func (f *fakeLedger) UpdateConnectionSnapshot(_ context.Context, _ int64, _ domain.Snapshot) error {
	return nil
}

func (f *fakeLedger) Close() error { return nil }
