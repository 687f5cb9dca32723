package service

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/signature-gateway/internal/domain"
	"github.com/kursadbilgin/signature-gateway/internal/provider"
)

func TestSettleAllRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	submissions := make([]domain.Submission, 12)
	for i := range submissions {
		submissions[i] = domain.Submission{ID: domain.NewSubmissionID(string(rune('a' + i)))}
	}

	var inFlight, peak atomic.Int32
	outcomes := settleAll(context.Background(), submissions, 3, func(ctx context.Context, s domain.Submission) *provider.Result {
		current := inFlight.Add(1)
		for {
			seen := peak.Load()
			if current <= seen || peak.CompareAndSwap(seen, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return &provider.Result{Success: true, Status: http.StatusOK}
	})

	if got := peak.Load(); got > 3 {
		t.Fatalf("peak concurrency = %d, want <= 3", got)
	}
	if len(outcomes) != len(submissions) {
		t.Fatalf("outcomes len = %d, want %d", len(outcomes), len(submissions))
	}
	for i, outcome := range outcomes {
		if outcome.ID != submissions[i].ID || !outcome.Fulfilled() {
			t.Fatalf("outcome[%d] = %+v, want fulfilled %s", i, outcome, submissions[i].ID)
		}
	}
}

func TestSettleAllEmptyInput(t *testing.T) {
	t.Parallel()

	outcomes := settleAll(context.Background(), nil, 4, func(ctx context.Context, s domain.Submission) *provider.Result {
		t.Error("fn must not be called")
		return nil
	})
	if outcomes == nil || len(outcomes) != 0 {
		t.Fatalf("outcomes = %#v, want empty non-nil slice", outcomes)
	}
}

func TestSettleOneClassifiesResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		result     *provider.Result
		wantStatus SettleStatus
		wantReason int
	}{
		{name: "success", result: &provider.Result{Success: true, Status: 200}, wantStatus: SettleFulfilled},
		{name: "provider failure", result: provider.Failure(404, "Not found"), wantStatus: SettleRejected, wantReason: 404},
		{name: "nil result", result: nil, wantStatus: SettleRejected, wantReason: 500},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			outcome := settleOne(context.Background(), domain.Submission{ID: domain.NumericSubmissionID("7")}, func(context.Context, domain.Submission) *provider.Result {
				return tc.result
			})
			if outcome.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", outcome.Status, tc.wantStatus)
			}
			if tc.wantStatus == SettleRejected {
				if outcome.Value != nil || outcome.Reason == nil || outcome.Reason.Status != tc.wantReason {
					t.Fatalf("outcome = %+v, want reason status %d", outcome, tc.wantReason)
				}
			} else if outcome.Value == nil || outcome.Reason != nil {
				t.Fatalf("outcome = %+v, want value only", outcome)
			}
		})
	}
}
