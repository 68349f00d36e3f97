// Package submit turns inbound chat, voice and attachment activity into
// ledger submissions.
package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
	"github.com/kellyjadams/break-into-data-bot/internal/llm"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
)

const parsePrompt = `You will be given a user's message and your task is to extract all the metrics out of it and return them as CSV. Only output CSV, no thoughts.

Make sure to use this schema:
<day shift>, <category>, <value>
Day shift is 0 for today's submission, -1 for yesterday's submission and so on.
If no time is mentioned, then it is 0.
Only provide metrics from the user's goals, ignore others.

Possible categories:
%s

Only output data that matches the categories (and the "specifically" part if present).
If the user did not specify the value, but the category is mentioned as completed, then the value is "true" (meaning that the user completed the goal, but the value is unknown).
If the user says that they did not complete the goal, then the value is "false".`

// TextParser orchestrates the text-understanding collaborator: it builds
// the category context for a user's active goals, sends the message, and
// decodes the tabular response.
type TextParser struct {
	completer llm.Completer
	ledger    store.Ledger
	log       *zap.Logger
}

// NewTextParser creates a TextParser.
func NewTextParser(completer llm.Completer, ledger store.Ledger, log *zap.Logger) *TextParser {
	return &TextParser{completer: completer, ledger: ledger, log: log}
}

// Parse extracts submission items from a free-text message. Collaborator
// failures (timeout, quota, malformed output) degrade to zero items;
// only ledger failures are returned as errors. Categories that do not
// accept free-text submissions are excluded from the model's context, so
// it cannot attribute progress to them.
func (p *TextParser) Parse(ctx context.Context, goals []domain.Goal, text string, createdAt time.Time) ([]domain.ParsedSubmissionItem, error) {
	categories, err := p.ledger.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	byID := make(map[int64]domain.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	var blocks []string
	goalByCategory := make(map[string]int64)
	for _, g := range goals {
		c, ok := byID[g.CategoryID]
		if !ok || !c.AllowFreeText {
			continue
		}
		goalByCategory[c.Name] = g.ID
		blocks = append(blocks, formatCategoryContext(c.Name, g.Description, g.Metric))
	}
	if len(goalByCategory) == 0 {
		return nil, nil
	}

	system := fmt.Sprintf(parsePrompt, strings.Join(blocks, "\n"))
	raw, err := p.completer.Complete(ctx, system, text)
	if err != nil {
		// the caller's own retry policy decides what happens next; from
		// here a failed collaborator call is just an empty parse
		p.log.Warn("text understanding failed", zap.Error(err))
		return nil, nil
	}

	return domain.DecodeSubmissionTable(raw, goalByCategory, createdAt), nil
}

// formatCategoryContext renders one goal's context block for the model:
// the category, its optional specialization, and the metric label.
func formatCategoryContext(category, description, metric string) string {
	specialization := ""
	if description != "" {
		specialization = fmt.Sprintf("  - specifically: %s\n", description)
	}
	return fmt.Sprintf("- %s:\n%s  - value: %s", category, specialization, metric)
}
