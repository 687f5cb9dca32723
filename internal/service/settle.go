package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kursadbilgin/signature-gateway/internal/domain"
	"github.com/kursadbilgin/signature-gateway/internal/provider"
	"golang.org/x/sync/errgroup"
)

// SettleStatus mirrors the two terminal states of a dispatched call.
type SettleStatus string

const (
	SettleFulfilled SettleStatus = "fulfilled"
	SettleRejected  SettleStatus = "rejected"
)

func (s SettleStatus) String() string { return string(s) }

// DeletionOutcome reports how the delete call for one submission settled.
type DeletionOutcome struct {
	ID     domain.SubmissionID `json:"id"`
	Status SettleStatus        `json:"status"`
	Value  *provider.Result    `json:"value"`
	Reason *provider.Result    `json:"reason"`
}

func (o DeletionOutcome) Fulfilled() bool { return o.Status == SettleFulfilled }

// settleAll runs fn for every submission and waits for all of them. A failure
// never cancels the others, and outcomes keep the order of submissions.
func settleAll(
	ctx context.Context,
	submissions []domain.Submission,
	limit int,
	fn func(ctx context.Context, submission domain.Submission) *provider.Result,
) []DeletionOutcome {
	outcomes := make([]DeletionOutcome, len(submissions))
	if len(submissions) == 0 {
		return outcomes
	}

	// Calls already dispatched run to completion even if the caller goes away.
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, submission := range submissions {
		g.Go(func() error {
			outcomes[i] = settleOne(detached, submission, fn)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func settleOne(
	ctx context.Context,
	submission domain.Submission,
	fn func(ctx context.Context, submission domain.Submission) *provider.Result,
) (outcome DeletionOutcome) {
	outcome.ID = submission.ID

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = SettleRejected
			outcome.Value = nil
			outcome.Reason = provider.Failure(http.StatusInternalServerError, fmt.Sprintf("delete panicked: %v", r))
		}
	}()

	result := fn(ctx, submission)
	switch {
	case result == nil:
		outcome.Status = SettleRejected
		outcome.Reason = provider.Failure(http.StatusInternalServerError, "provider returned no result")
	case result.Success:
		outcome.Status = SettleFulfilled
		outcome.Value = result
	default:
		outcome.Status = SettleRejected
		outcome.Reason = result
	}

	return outcome
}
