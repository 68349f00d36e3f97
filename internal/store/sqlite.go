package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
)

// SQLiteLedger implements Ledger on an embedded SQLite database.
type SQLiteLedger struct{ db *sql.DB }

var _ Ledger = (*SQLiteLedger)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns the ledger.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// EnsureUser creates the user row on first observed activity and returns it.
func (l *SQLiteLedger) EnsureUser(ctx context.Context, id int64, username string) (*domain.User, error) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		id, username, time.Now().UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	return l.GetUser(ctx, id)
}

// GetUser returns a user by id, or (nil, nil) when the row does not exist.
func (l *SQLiteLedger) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, tz_offset_min, last_text_submission_at, created_at
		FROM users
		WHERE user_id = ?`,
		id,
	)

	var (
		userID    int64
		username  string
		email     sql.NullString
		tzOffset  sql.NullInt64
		lastText  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&userID, &username, &email, &tzOffset, &lastText, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &domain.User{
		ID:                   userID,
		Username:             username,
		Email:                fromNullString(email),
		TZOffsetMin:          fromNullInt(tzOffset),
		LastTextSubmissionAt: fromNullTime(lastText),
		CreatedAt:            time.Unix(createdAt, 0).UTC(),
	}, nil
}

// ActiveGoals returns the most recent active goal per category for one user.
func (l *SQLiteLedger) ActiveGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals g
		WHERE g.user_id = ?
		  AND g.active = 1
		  AND g.goal_id = (
			SELECT MAX(g2.goal_id) FROM goals g2
			WHERE g2.user_id = g.user_id
			  AND g2.category_id = g.category_id
			  AND g2.active = 1
		  )
		ORDER BY g.category_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// GoalForCategory returns the user's most recent active goal in the
// category, or (nil, nil).
func (l *SQLiteLedger) GoalForCategory(ctx context.Context, userID, categoryID int64) (*domain.Goal, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+goalColumns+`
		FROM goals g
		WHERE g.user_id = ? AND g.category_id = ? AND g.active = 1
		ORDER BY g.created_at DESC, g.goal_id DESC
		LIMIT 1`,
		userID, categoryID,
	)
	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

// Categories returns all categories.
func (l *SQLiteLedger) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY category_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (l *SQLiteLedger) categoryWhere(ctx context.Context, clause string, arg any) (*domain.Category, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE `+clause, arg)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (l *SQLiteLedger) CategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	return l.categoryWhere(ctx, "name = ?", name)
}

func (l *SQLiteLedger) CategoryByTextChannel(ctx context.Context, channel string) (*domain.Category, error) {
	return l.categoryWhere(ctx, "text_channel = ?", channel)
}

func (l *SQLiteLedger) CategoryByVoiceChannel(ctx context.Context, channel string) (*domain.Category, error) {
	return l.categoryWhere(ctx, "voice_channel = ?", channel)
}

// CreateSubmission appends one submission and returns the stored record.
func (l *SQLiteLedger) CreateSubmission(ctx context.Context, s domain.NewSubmission) (*domain.Submission, error) {
	if s.Amount < 0 {
		return nil, ErrNegativeAmount
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO submissions (user_id, goal_id, amount, proof_url, is_voice, voice_channel, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.UserID, toNullInt64(s.GoalID), s.Amount, toNullString(s.ProofURL),
		boolToInt(s.IsVoice), toNullString(s.VoiceChannel), createdAt.Unix(),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &domain.Submission{
		ID:           id,
		UserID:       s.UserID,
		GoalID:       s.GoalID,
		Amount:       s.Amount,
		ProofURL:     s.ProofURL,
		IsVoice:      s.IsVoice,
		VoiceChannel: s.VoiceChannel,
		CreatedAt:    time.Unix(createdAt.Unix(), 0).UTC(),
	}, nil
}

// UnprovedSubmissions returns submissions within the window lacking a
// proof URL, oldest first.
func (l *SQLiteLedger) UnprovedSubmissions(ctx context.Context, userID int64, window time.Duration) ([]domain.Submission, error) {
	cutoff := time.Now().Add(-window).UTC().Unix()

	rows, err := l.db.QueryContext(ctx, `
		SELECT submission_id, user_id, goal_id, amount, proof_url, is_voice, voice_channel, created_at
		FROM submissions
		WHERE user_id = ?
		  AND proof_url IS NULL
		  AND created_at >= ?
		ORDER BY created_at ASC, submission_id ASC`,
		userID, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Submission
	for rows.Next() {
		var (
			s            domain.Submission
			goalID       sql.NullInt64
			proofURL     sql.NullString
			isVoiceInt   int
			voiceChannel sql.NullString
			createdAt    int64
		)
		if err := rows.Scan(&s.ID, &s.UserID, &goalID, &s.Amount, &proofURL,
			&isVoiceInt, &voiceChannel, &createdAt); err != nil {
			return nil, err
		}
		s.GoalID = fromNullInt64(goalID)
		s.ProofURL = fromNullString(proofURL)
		s.IsVoice = isVoiceInt != 0
		s.VoiceChannel = fromNullString(voiceChannel)
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		res = append(res, s)
	}
	return res, rows.Err()
}

// AttachProof writes the proof URL onto an existing submission.
func (l *SQLiteLedger) AttachProof(ctx context.Context, submissionID int64, url string) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE submissions
		SET proof_url = ?
		WHERE submission_id = ?`,
		url, submissionID,
	)
	return err
}

// ClaimTextSubmission performs the cooldown check-and-set in a single
// conditional UPDATE, so concurrent messages from one user race on the
// database row rather than in process memory.
func (l *SQLiteLedger) ClaimTextSubmission(ctx context.Context, userID int64, now time.Time, window time.Duration) (bool, error) {
	cutoff := now.Add(-window).UTC().Unix()

	res, err := l.db.ExecContext(ctx, `
		UPDATE users
		SET last_text_submission_at = ?
		WHERE user_id = ?
		  AND (last_text_submission_at IS NULL OR last_text_submission_at <= ?)`,
		now.UTC().Unix(), userID, cutoff,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Connections returns all external platform connections.
func (l *SQLiteLedger) Connections(ctx context.Context) ([]domain.ExternalPlatformConnection, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT connection_id, user_id, platform, handle, snapshot, updated_at
		FROM external_connections
		ORDER BY connection_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.ExternalPlatformConnection
	for rows.Next() {
		var (
			c         domain.ExternalPlatformConnection
			snapshot  sql.NullString
			updatedAt int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Platform, &c.Handle, &snapshot, &updatedAt); err != nil {
			return nil, err
		}
		c.Snapshot, err = unmarshalSnapshot(snapshot)
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", c.ID, err)
		}
		c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateConnectionSnapshot stores the freshly observed snapshot as the
// new diff baseline.
func (l *SQLiteLedger) UpdateConnectionSnapshot(ctx context.Context, connectionID int64, snap domain.Snapshot) error {
	ns, err := marshalSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		UPDATE external_connections
		SET snapshot = ?, updated_at = ?
		WHERE connection_id = ?`,
		ns, time.Now().UTC().Unix(), connectionID,
	)
	return err
}
