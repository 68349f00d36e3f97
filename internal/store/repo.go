package store

import (
	"context"
	"time"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
)

// Ledger is the durable, append-only store of users, categories, goals,
// submissions and external-platform connections. Lookup methods that may
// legitimately find nothing return (nil, nil); errors always mean the
// store itself failed.
type Ledger interface {
	// EnsureUser returns the user with the given platform id, creating
	// the row on first observed activity.
	EnsureUser(ctx context.Context, id int64, username string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	// ActiveGoals returns the user's working set: the most recent active
	// goal per category.
	ActiveGoals(ctx context.Context, userID int64) ([]domain.Goal, error)
	// GoalForCategory returns the user's most recent active goal in one
	// category, or nil.
	GoalForCategory(ctx context.Context, userID, categoryID int64) (*domain.Goal, error)

	Categories(ctx context.Context) ([]domain.Category, error)
	CategoryByName(ctx context.Context, name string) (*domain.Category, error)
	CategoryByTextChannel(ctx context.Context, channel string) (*domain.Category, error)
	CategoryByVoiceChannel(ctx context.Context, channel string) (*domain.Category, error)

	// CreateSubmission appends one submission. Negative amounts are
	// rejected; a zero CreatedAt records the current time.
	CreateSubmission(ctx context.Context, s domain.NewSubmission) (*domain.Submission, error)
	// UnprovedSubmissions returns the user's submissions within the
	// window that lack a proof URL, oldest first.
	UnprovedSubmissions(ctx context.Context, userID int64, window time.Duration) ([]domain.Submission, error)
	AttachProof(ctx context.Context, submissionID int64, url string) error

	// ClaimTextSubmission is the per-user cooldown gate for expensive
	// text parsing: it reports whether the user may submit now and, when
	// allowed, records now as the new last-submission time in the same
	// conditional update. Two overlapping messages from one user cannot
	// both pass.
	ClaimTextSubmission(ctx context.Context, userID int64, now time.Time, window time.Duration) (bool, error)

	Connections(ctx context.Context) ([]domain.ExternalPlatformConnection, error)
	UpdateConnectionSnapshot(ctx context.Context, connectionID int64, snap domain.Snapshot) error

	Close() error
}
