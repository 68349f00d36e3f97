package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
)

// ErrNegativeAmount is returned by CreateSubmission when the caller
// tries to record a negative amount; the ledger never subtracts.
var ErrNegativeAmount = errors.New("submission amount must be non-negative")

func fromNullTime(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toNullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func fromNullInt64(ns sql.NullInt64) *int64 {
	if !ns.Valid {
		return nil
	}
	n := ns.Int64
	return &n
}

func fromNullInt(ns sql.NullInt64) *int {
	if !ns.Valid {
		return nil
	}
	n := int(ns.Int64)
	return &n
}

// Snapshots are stored as JSON text; nil means "never polled".
func marshalSnapshot(s domain.Snapshot) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalSnapshot(ns sql.NullString) (domain.Snapshot, error) {
	if !ns.Valid {
		return nil, nil
	}
	var s domain.Snapshot
	if err := json.Unmarshal([]byte(ns.String), &s); err != nil {
		return nil, err
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanner covers *sql.Row, *sql.Rows and their pgx counterparts.
type scanner interface{ Scan(dest ...any) error }

const goalColumns = `g.goal_id, g.user_id, g.category_id, g.description, g.metric,
	       g.target, g.frequency, g.active, g.created_at`

func scanGoal(row scanner) (domain.Goal, error) {
	var (
		g         domain.Goal
		activeInt int
		createdAt int64
	)
	err := row.Scan(&g.ID, &g.UserID, &g.CategoryID, &g.Description, &g.Metric,
		&g.Target, &g.Frequency, &activeInt, &createdAt)
	if err != nil {
		return domain.Goal{}, err
	}
	g.Active = activeInt != 0
	g.CreatedAt = time.Unix(createdAt, 0).UTC()
	return g, nil
}

const categoryColumns = `category_id, name, text_channel, voice_channel, allow_free_text`

func scanCategory(row scanner) (domain.Category, error) {
	var (
		c       domain.Category
		freeInt int
	)
	err := row.Scan(&c.ID, &c.Name, &c.TextChannel, &c.VoiceChannel, &freeInt)
	if err != nil {
		return domain.Category{}, err
	}
	c.AllowFreeText = freeInt != 0
	return c, nil
}
