package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
	"github.com/kellyjadams/break-into-data-bot/internal/gateway"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
)

const (
	replyNoSubmissions = "No submissions found in your message. Describe what you did, e.g. \"30 minutes of fitness today\"."
	replyCooldown      = "You submitted recently. Please try again later."
)

// Processor handles one inbound chat message end to end: cooldown gate,
// text parsing, ledger writes, and proof reconciliation for attachments
// on the same message.
type Processor struct {
	ledger   store.Ledger
	parser   *TextParser
	proofs   *ProofReconciler
	cooldown time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(ledger store.Ledger, parser *TextParser, proofs *ProofReconciler, cooldown time.Duration, log *zap.Logger) *Processor {
	return &Processor{
		ledger:   ledger,
		parser:   parser,
		proofs:   proofs,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
	}
}

// HandleSubmissionMessage processes a message posted to the submission
// channel and returns the reply to send ("" means no reply). Free text
// goes through the rate-limited LLM parse; attachments reconcile against
// outstanding unproved submissions afterwards.
func (p *Processor) HandleSubmissionMessage(ctx context.Context, ev gateway.MessageEvent) (string, error) {
	user, err := p.ledger.EnsureUser(ctx, ev.UserID, ev.Username)
	if err != nil {
		return "", fmt.Errorf("ensure user: %w", err)
	}

	var replies []string

	if text := strings.TrimSpace(ev.Text); text != "" {
		reply, err := p.handleText(ctx, user, text, ev.CreatedAt)
		if err != nil {
			return "", err
		}
		if reply != "" {
			replies = append(replies, reply)
		}
	}

	if len(ev.Attachments) > 0 {
		reply, err := p.proofs.Reconcile(ctx, user, ev.Attachments)
		if err != nil {
			return "", err
		}
		if reply != "" {
			replies = append(replies, reply)
		}
	}

	return strings.Join(replies, "\n\n"), nil
}

func (p *Processor) handleText(ctx context.Context, user *domain.User, text string, createdAt time.Time) (string, error) {
	allowed, err := p.ledger.ClaimTextSubmission(ctx, user.ID, p.now(), p.cooldown)
	if err != nil {
		return "", fmt.Errorf("claim text submission: %w", err)
	}
	if !allowed {
		return replyCooldown, nil
	}

	goals, err := p.ledger.ActiveGoals(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("load goals: %w", err)
	}

	items, err := p.parser.Parse(ctx, goals, text, createdAt)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return replyNoSubmissions, nil
	}

	for _, item := range items {
		var amount int64
		if item.Value != nil {
			amount = *item.Value
		}
		goalID := item.GoalID
		_, err := p.ledger.CreateSubmission(ctx, domain.NewSubmission{
			UserID:    user.ID,
			GoalID:    &goalID,
			Amount:    amount,
			CreatedAt: item.SubmissionTime,
		})
		if err != nil {
			return "", fmt.Errorf("create submission: %w", err)
		}
	}

	return formatSubmissionSummary(items), nil
}

// HandleCategoryUpload processes attachments posted to a category-bound
// channel: each becomes an amount-0 submission with the proof already
// attached, against the user's goal in that channel's category. Channels
// not bound to a category, and users without a goal there, are ignored.
func (p *Processor) HandleCategoryUpload(ctx context.Context, ev gateway.MessageEvent) error {
	if len(ev.Attachments) == 0 {
		return nil
	}

	category, err := p.ledger.CategoryByTextChannel(ctx, ev.Channel)
	if err != nil {
		return err
	}
	if category == nil {
		return nil
	}

	user, err := p.ledger.EnsureUser(ctx, ev.UserID, ev.Username)
	if err != nil {
		return err
	}

	goal, err := p.ledger.GoalForCategory(ctx, user.ID, category.ID)
	if err != nil {
		return err
	}
	if goal == nil {
		return nil
	}

	for _, url := range ev.Attachments {
		proofURL := url
		_, err := p.ledger.CreateSubmission(ctx, domain.NewSubmission{
			UserID:   user.ID,
			GoalID:   &goal.ID,
			Amount:   0,
			ProofURL: &proofURL,
		})
		if err != nil {
			return fmt.Errorf("create proof submission: %w", err)
		}
	}

	p.log.Info("recorded proof uploads",
		zap.Int64("user", user.ID),
		zap.String("category", category.Name),
		zap.Int("count", len(ev.Attachments)))
	return nil
}

func formatSubmissionSummary(items []domain.ParsedSubmissionItem) string {
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, "Your submission:")
	for _, item := range items {
		if item.Value != nil {
			lines = append(lines, fmt.Sprintf("%s: %d", item.Category, *item.Value))
		} else {
			lines = append(lines, fmt.Sprintf("%s: done", item.Category))
		}
	}
	return strings.Join(lines, "\n")
}
