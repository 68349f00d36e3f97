package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
)

// PostgresLedger implements Ledger on a PostgreSQL pool. The schema
// mirrors the SQLite one; timestamps are stored as Unix seconds so both
// backends read identically.
type PostgresLedger struct{ pool *pgxpool.Pool }

var _ Ledger = (*PostgresLedger)(nil)

// OpenPostgres connects to the database at connStr and ensures the schema.
func OpenPostgres(ctx context.Context, connStr string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	l := &PostgresLedger{pool: pool}
	if err := l.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *PostgresLedger) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT,
			tz_offset_min INT,
			last_text_submission_at BIGINT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			category_id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			text_channel TEXT NOT NULL DEFAULT '',
			voice_channel TEXT NOT NULL DEFAULT '',
			allow_free_text INT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS goals (
			goal_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users (user_id),
			category_id BIGINT NOT NULL REFERENCES categories (category_id),
			description TEXT NOT NULL DEFAULT '',
			metric TEXT NOT NULL DEFAULT '',
			target DOUBLE PRECISION NOT NULL DEFAULT 0,
			frequency TEXT NOT NULL DEFAULT 'daily',
			active INT NOT NULL DEFAULT 1,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			submission_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users (user_id),
			goal_id BIGINT REFERENCES goals (goal_id),
			amount BIGINT NOT NULL CHECK (amount >= 0),
			proof_url TEXT,
			is_voice INT NOT NULL DEFAULT 0,
			voice_channel TEXT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_user_created ON submissions (user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS external_connections (
			connection_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users (user_id),
			platform TEXT NOT NULL,
			handle TEXT NOT NULL,
			snapshot TEXT,
			updated_at BIGINT NOT NULL,
			UNIQUE (user_id, platform)
		)`,
	}
	for _, q := range queries {
		if _, err := l.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLedger) EnsureUser(ctx context.Context, id int64, username string) (*domain.User, error) {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO users (user_id, username, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		id, username, time.Now().UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	return l.GetUser(ctx, id)
}

func (l *PostgresLedger) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT user_id, username, email, tz_offset_min, last_text_submission_at, created_at
		FROM users
		WHERE user_id = $1`,
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
		if errors.Is(err, pgx.ErrNoRows) {
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

func (l *PostgresLedger) ActiveGoals(ctx context.Context, userID int64) ([]domain.Goal, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+goalColumns+`
		FROM goals g
		WHERE g.user_id = $1
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

func (l *PostgresLedger) GoalForCategory(ctx context.Context, userID, categoryID int64) (*domain.Goal, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT `+goalColumns+`
		FROM goals g
		WHERE g.user_id = $1 AND g.category_id = $2 AND g.active = 1
		ORDER BY g.created_at DESC, g.goal_id DESC
		LIMIT 1`,
		userID, categoryID,
	)
	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (l *PostgresLedger) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY category_id`)
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

func (l *PostgresLedger) categoryWhere(ctx context.Context, clause string, arg any) (*domain.Category, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE `+clause, arg)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (l *PostgresLedger) CategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	return l.categoryWhere(ctx, "name = $1", name)
}

func (l *PostgresLedger) CategoryByTextChannel(ctx context.Context, channel string) (*domain.Category, error) {
	return l.categoryWhere(ctx, "text_channel = $1", channel)
}

func (l *PostgresLedger) CategoryByVoiceChannel(ctx context.Context, channel string) (*domain.Category, error) {
	return l.categoryWhere(ctx, "voice_channel = $1", channel)
}

func (l *PostgresLedger) CreateSubmission(ctx context.Context, s domain.NewSubmission) (*domain.Submission, error) {
	if s.Amount < 0 {
		return nil, ErrNegativeAmount
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	var id int64
	err := l.pool.QueryRow(ctx, `
		INSERT INTO submissions (user_id, goal_id, amount, proof_url, is_voice, voice_channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING submission_id`,
		s.UserID, toNullInt64(s.GoalID), s.Amount, toNullString(s.ProofURL),
		boolToInt(s.IsVoice), toNullString(s.VoiceChannel), createdAt.Unix(),
	).Scan(&id)
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

func (l *PostgresLedger) UnprovedSubmissions(ctx context.Context, userID int64, window time.Duration) ([]domain.Submission, error) {
	cutoff := time.Now().Add(-window).UTC().Unix()

	rows, err := l.pool.Query(ctx, `
		SELECT submission_id, user_id, goal_id, amount, proof_url, is_voice, voice_channel, created_at
		FROM submissions
		WHERE user_id = $1
		  AND proof_url IS NULL
		  AND created_at >= $2
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

func (l *PostgresLedger) AttachProof(ctx context.Context, submissionID int64, url string) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE submissions
		SET proof_url = $1
		WHERE submission_id = $2`,
		url, submissionID,
	)
	return err
}

func (l *PostgresLedger) ClaimTextSubmission(ctx context.Context, userID int64, now time.Time, window time.Duration) (bool, error) {
	cutoff := now.Add(-window).UTC().Unix()

	tag, err := l.pool.Exec(ctx, `
		UPDATE users
		SET last_text_submission_at = $1
		WHERE user_id = $2
		  AND (last_text_submission_at IS NULL OR last_text_submission_at <= $3)`,
		now.UTC().Unix(), userID, cutoff,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (l *PostgresLedger) Connections(ctx context.Context) ([]domain.ExternalPlatformConnection, error) {
	rows, err := l.pool.Query(ctx, `
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

func (l *PostgresLedger) UpdateConnectionSnapshot(ctx context.Context, connectionID int64, snap domain.Snapshot) error {
	ns, err := marshalSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `
		UPDATE external_connections
		SET snapshot = $1, updated_at = $2
		WHERE connection_id = $3`,
		ns, time.Now().UTC().Unix(), connectionID,
	)
	return err
}
