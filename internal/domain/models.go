package domain

import "time"

// User is a community member identified by the chat platform's numeric id.
type User struct {
	ID                   int64
	Username             string
	Email                *string
	TZOffsetMin          *int       // minutes east of UTC, nullable
	LastTextSubmissionAt *time.Time // UTC, nullable; drives the text cooldown
	CreatedAt            time.Time  // UTC
}

// Category is a named tracking topic bound to one text channel and one
// voice-channel name prefix. Reference data; the engine never writes it.
type Category struct {
	ID            int64
	Name          string
	TextChannel   string
	VoiceChannel  string
	AllowFreeText bool // whether free-text (LLM) submissions are accepted
}

// Goal is a user's commitment within a category. A user may have several
// goal rows per category over time; the engine works with the most recent
// active one.
type Goal struct {
	ID          int64
	UserID      int64
	CategoryID  int64
	Description string
	Metric      string
	Target      float64
	Frequency   string
	Active      bool
	CreatedAt   time.Time // UTC
}

// Submission is one immutable progress record. Amount is always
// non-negative; zero with no proof means "completed, magnitude unknown".
// The only permitted mutation is attaching a proof URL after the fact.
type Submission struct {
	ID           int64
	UserID       int64
	GoalID       *int64
	Amount       int64
	ProofURL     *string
	IsVoice      bool
	VoiceChannel *string
	CreatedAt    time.Time // UTC
}

// NewSubmission carries the fields of a submission about to be recorded.
// A zero CreatedAt means "now".
type NewSubmission struct {
	UserID       int64
	GoalID       *int64
	Amount       int64
	ProofURL     *string
	IsVoice      bool
	VoiceChannel *string
	CreatedAt    time.Time
}

// Snapshot is the last-observed per-category count map from an external
// platform. It is the diff baseline for the poller.
type Snapshot map[string]int

// Total sums all counts in the snapshot.
func (s Snapshot) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// ExternalPlatformConnection links a user to an account handle on a named
// external platform. Snapshot is nil until the first successful poll.
type ExternalPlatformConnection struct {
	ID        int64
	UserID    int64
	Platform  string
	Handle    string
	Snapshot  Snapshot
	UpdatedAt time.Time // UTC
}
