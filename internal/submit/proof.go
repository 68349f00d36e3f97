package submit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
	"github.com/kellyjadams/break-into-data-bot/internal/store"
)

// ProofReconciler matches uploaded attachments against a user's recent
// submissions that lack proof.
type ProofReconciler struct {
	ledger store.Ledger
	window time.Duration
	log    *zap.Logger
}

// NewProofReconciler creates a ProofReconciler that considers
// submissions within the given window.
func NewProofReconciler(ledger store.Ledger, window time.Duration, log *zap.Logger) *ProofReconciler {
	return &ProofReconciler{ledger: ledger, window: window, log: log}
}

// Reconcile pairs attachments with the user's outstanding unproved
// submissions oldest-first and returns the reply to send. Attachments
// beyond the outstanding count are left unused; this flow never creates
// submissions from bare attachments.
func (r *ProofReconciler) Reconcile(ctx context.Context, user *domain.User, attachments []string) (string, error) {
	submissions, err := r.ledger.UnprovedSubmissions(ctx, user.ID, r.window)
	if err != nil {
		return "", fmt.Errorf("load unproved submissions: %w", err)
	}

	r.log.Info("reconciling proofs",
		zap.Int64("user", user.ID),
		zap.Int("attachments", len(attachments)),
		zap.Int("outstanding", len(submissions)))

	n := len(attachments)
	if n > len(submissions) {
		n = len(submissions)
	}
	for i := 0; i < n; i++ {
		if err := r.ledger.AttachProof(ctx, submissions[i].ID, attachments[i]); err != nil {
			return "", fmt.Errorf("attach proof to submission %d: %w", submissions[i].ID, err)
		}
	}

	if remaining := len(submissions) - n; remaining > 0 {
		return fmt.Sprintf("Please provide proof (image) for %d submissions", remaining), nil
	}
	return fmt.Sprintf("Thank you for your submissions, %s!", user.Username), nil
}
