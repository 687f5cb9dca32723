package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kursadbilgin/signature-gateway/internal/domain"
	"github.com/kursadbilgin/signature-gateway/internal/observability"
	"github.com/kursadbilgin/signature-gateway/internal/provider"
	"go.uber.org/zap"
)

const (
	defaultDeleteConcurrency = 16

	msgFetchForDeletionFailed = "Failed to fetch submissions for deletion."
	msgCreateFailed           = "Failed to create new submission."
	msgFetchByNameFailed      = "Failed to fetch submissions by name."
	msgFetchByIDFailed        = "Failed to fetch submission by ID."
)

// UpstreamError is a failed provider call surfaced to the caller. Message is
// empty when the provider payload should be passed through as-is.
type UpstreamError struct {
	Status  int
	Payload json.RawMessage
	Message string
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream status %d", e.Status)
}

// HTTPStatus is the upstream status, or 500 when the provider gave none.
func (e *UpstreamError) HTTPStatus() int {
	if e == nil || e.Status < http.StatusBadRequest {
		return http.StatusInternalServerError
	}
	return e.Status
}

func newUpstreamError(result *provider.Result, message string) *UpstreamError {
	if result == nil {
		result = provider.Failure(http.StatusInternalServerError, "provider returned no result")
	}
	return &UpstreamError{
		Status:  result.Status,
		Payload: result.Error,
		Message: message,
	}
}

// ReconciliationReport is what replacing a keyed set of submissions produced.
type ReconciliationReport struct {
	Submission json.RawMessage   `json:"submission"`
	Deleted    []DeletionOutcome `json:"deleted"`
}

type SubmissionService struct {
	client            provider.Client
	logger            *zap.Logger
	metrics           *observability.Metrics
	deleteConcurrency int
}

func NewSubmissionService(client provider.Client, deleteConcurrency int, logger *zap.Logger) (*SubmissionService, error) {
	if client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if deleteConcurrency <= 0 {
		deleteConcurrency = defaultDeleteConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SubmissionService{
		client:            client,
		logger:            logger,
		deleteConcurrency: deleteConcurrency,
	}, nil
}

func (s *SubmissionService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Search lists submissions matching key. An upstream failure passes the
// provider payload through untouched.
func (s *SubmissionService) Search(ctx context.Context, key string, archived bool) ([]domain.Submission, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	submissions, failed := s.lookup(ctx, domain.SubmissionQuery{
		Key:      key,
		Archived: domain.BoolPtr(archived),
		Limit:    domain.DefaultLookupLimit,
	})
	if failed != nil {
		s.metrics.IncWorkflow("search", "upstream_error")
		return nil, newUpstreamError(failed, "")
	}
	if len(submissions) == 0 {
		s.metrics.IncWorkflow("search", "not_found")
		return nil, fmt.Errorf("%w: no submissions match %q", domain.ErrNotFound, key)
	}

	s.metrics.IncWorkflow("search", "success")
	return submissions, nil
}

// FindByKey resolves key to its first match and returns the full record,
// fetched by id.
func (s *SubmissionService) FindByKey(ctx context.Context, key string) (json.RawMessage, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	submissions, failed := s.lookup(ctx, domain.SubmissionQuery{
		Key:      key,
		Archived: domain.BoolPtr(false),
		Limit:    1,
	})
	if failed != nil {
		s.metrics.IncWorkflow("find", "upstream_error")
		return nil, newUpstreamError(failed, msgFetchByNameFailed)
	}
	if len(submissions) == 0 {
		s.metrics.IncWorkflow("find", "not_found")
		return nil, fmt.Errorf("%w: no submissions found for name %q", domain.ErrNotFound, key)
	}

	result := s.client.Call(ctx, http.MethodGet, domain.SubmissionEndpoint(submissions[0].ID), nil)
	if result == nil || !result.Success {
		s.metrics.IncWorkflow("find", "upstream_error")
		return nil, newUpstreamError(result, msgFetchByIDFailed)
	}

	s.metrics.IncWorkflow("find", "success")
	return result.Data, nil
}

// Purge permanently deletes every submission matching key, or every
// submission up to the purge limit when key is empty.
func (s *SubmissionService) Purge(ctx context.Context, key string) ([]DeletionOutcome, error) {
	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("key", key))

	submissions, failed := s.lookup(ctx, domain.SubmissionQuery{
		Key:   strings.TrimSpace(key),
		Limit: domain.PurgeLookupLimit,
	})
	if failed != nil {
		s.metrics.IncWorkflow("purge", "upstream_error")
		return nil, newUpstreamError(failed, "")
	}

	deleted := s.deleteAll(ctx, submissions)
	rejected := countRejected(deleted)

	logger.Info("purge completed",
		zap.Int("matched", len(submissions)),
		zap.Int("rejected", rejected),
	)
	s.metrics.IncWorkflow("purge", workflowResult(rejected))

	return deleted, nil
}

// Reconcile replaces every submission matching req.ID with one new
// submission. Steps are not transactional: deletions that already happened
// are reported even when creation fails.
func (s *SubmissionService) Reconcile(ctx context.Context, req domain.SubmissionRequest) (*ReconciliationReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("key", req.ID.String()))

	submissions, failed := s.lookup(ctx, domain.SubmissionQuery{
		Key:   req.ID.String(),
		Limit: domain.DefaultLookupLimit,
	})
	if failed != nil {
		logger.Warn("reconcile aborted: lookup failed", zap.Int("status", failed.Status))
		s.metrics.IncWorkflow("reconcile", "upstream_error")
		return nil, newUpstreamError(failed, msgFetchForDeletionFailed)
	}

	deleted := s.deleteAll(ctx, submissions)
	rejected := countRejected(deleted)

	report := &ReconciliationReport{Deleted: deleted}

	created := s.client.Call(ctx, http.MethodPost, domain.CreateFromPDFEndpoint, BuildCreatePayload(req))
	if created == nil || !created.Success {
		logger.Warn("reconcile failed to create replacement",
			zap.Int("matched", len(submissions)),
			zap.Int("rejected", rejected),
		)
		s.metrics.IncWorkflow("reconcile", "create_failed")
		return report, newUpstreamError(created, msgCreateFailed)
	}

	report.Submission = created.Data
	logger.Info("reconcile completed",
		zap.Int("matched", len(submissions)),
		zap.Int("rejected", rejected),
	)
	s.metrics.IncWorkflow("reconcile", workflowResult(rejected))

	return report, nil
}

// lookup is the query step shared by every workflow. A non-nil Result means
// the provider call failed.
func (s *SubmissionService) lookup(ctx context.Context, query domain.SubmissionQuery) ([]domain.Submission, *provider.Result) {
	result := s.client.Call(ctx, http.MethodGet, query.Endpoint(), nil)
	if result == nil {
		return nil, provider.Failure(http.StatusInternalServerError, "provider returned no result")
	}
	if !result.Success {
		return nil, result
	}

	submissions, err := domain.ParseSubmissionList(result.Data)
	if err != nil {
		observability.WithContextLogger(s.logger, ctx).Warn("unexpected submissions listing, treating as empty",
			zap.String("query", query.Endpoint()),
			zap.Error(err),
		)
	}
	return submissions, nil
}

func (s *SubmissionService) deleteAll(ctx context.Context, submissions []domain.Submission) []DeletionOutcome {
	outcomes := settleAll(ctx, submissions, s.deleteConcurrency, func(ctx context.Context, submission domain.Submission) *provider.Result {
		return s.client.Call(ctx, http.MethodDelete, domain.PermanentDeleteEndpoint(submission.ID), nil)
	})

	for _, outcome := range outcomes {
		s.metrics.IncDeletionOutcome(outcome.Status.String())
		if !outcome.Fulfilled() {
			observability.WithContextLogger(s.logger, ctx).Warn("submission delete rejected",
				zap.String("submissionId", outcome.ID.String()),
				zap.Int("status", outcome.Reason.Status),
			)
		}
	}
	return outcomes
}

func countRejected(outcomes []DeletionOutcome) int {
	rejected := 0
	for _, outcome := range outcomes {
		if !outcome.Fulfilled() {
			rejected++
		}
	}
	return rejected
}

func workflowResult(rejected int) string {
	if rejected > 0 {
		return "partial"
	}
	return "success"
}
