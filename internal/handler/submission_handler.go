package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/signature-gateway/internal/domain"
	"github.com/kursadbilgin/signature-gateway/internal/service"
)

type SubmissionService interface {
	Search(ctx context.Context, key string, archived bool) ([]domain.Submission, error)
	FindByKey(ctx context.Context, key string) (json.RawMessage, error)
	Purge(ctx context.Context, key string) ([]service.DeletionOutcome, error)
	Reconcile(ctx context.Context, req domain.SubmissionRequest) (*service.ReconciliationReport, error)
}

type SubmissionHandler struct {
	service SubmissionService
}

func NewSubmissionHandler(service SubmissionService) (*SubmissionHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("submission service is required")
	}
	return &SubmissionHandler{service: service}, nil
}

// RegisterSubmissionRoutes mounts the submission API under router. hasAPIKey
// is consulted on every request so a missing credential fails fast.
func RegisterSubmissionRoutes(router fiber.Router, service SubmissionService, hasAPIKey func() bool) error {
	h, err := NewSubmissionHandler(service)
	if err != nil {
		return err
	}

	api := router.Group("/api/docuseal", RequireAPIKey(hasAPIKey))
	api.Get("/submissions", h.SearchSubmissions)
	api.Get("/submissions/:name", h.GetSubmissionByName)
	api.Delete("/submissions", h.PurgeSubmissions)
	api.Post("/submit-agreement-with-signatures", h.SubmitAgreement)

	return nil
}

// RequireAPIKey rejects requests with a 500 when no provider credential is
// configured, before any provider call is attempted.
func RequireAPIKey(hasAPIKey func() bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if hasAPIKey == nil || !hasAPIKey() {
			return wrapAPIError(
				domain.ErrConfiguration,
				fiber.StatusInternalServerError,
				"DocuSeal API key not configured",
				"Please set DOCUSEAL_API_KEY in environment variables",
			)
		}
		return c.Next()
	}
}

func (h *SubmissionHandler) SearchSubmissions(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		return NewAPIError(fiber.StatusBadRequest, "The 'name' query parameter is required.", "")
	}

	archived, err := parseBoolQuery(c.Query("archived"), "archived")
	if err != nil {
		return err
	}

	submissions, err := h.service.Search(c.UserContext(), name, archived)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return NewAPIError(fiber.StatusNotFound, "No matching submissions found", "")
		}
		return h.upstreamOr(c, err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(submissions)
}

func (h *SubmissionHandler) GetSubmissionByName(c *fiber.Ctx) error {
	name, err := pathParam(c, "name")
	if err != nil {
		return err
	}
	if name == "" {
		return NewAPIError(fiber.StatusBadRequest, "The 'name' path parameter is required.", "")
	}

	record, err := h.service.FindByKey(c.UserContext(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return NewAPIError(
				fiber.StatusNotFound,
				"No matching submissions found",
				fmt.Sprintf("No submissions found for name: %s", name),
			)
		}
		return h.upstreamOr(c, err, nil)
	}

	return sendRawJSON(c, fiber.StatusOK, record)
}

func (h *SubmissionHandler) PurgeSubmissions(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Query("name"))

	deleted, err := h.service.Purge(c.UserContext(), name)
	if err != nil {
		return h.upstreamOr(c, err, nil)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"deleted": deleted,
	})
}

func (h *SubmissionHandler) SubmitAgreement(c *fiber.Ctx) error {
	var req domain.SubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return NewAPIError(fiber.StatusBadRequest, "invalid request body", "")
	}
	if err := req.Validate(); err != nil {
		return NewAPIError(fiber.StatusBadRequest, "The 'id' field is required.", "")
	}

	report, err := h.service.Reconcile(c.UserContext(), req)
	if err != nil {
		var deleted []service.DeletionOutcome
		if report != nil {
			deleted = report.Deleted
		}
		return h.upstreamOr(c, err, deleted)
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

// upstreamOr writes a provider failure with its upstream status. Errors that
// are not provider failures go to the error handler.
func (h *SubmissionHandler) upstreamOr(c *fiber.Ctx, err error, deleted []service.DeletionOutcome) error {
	var upstream *service.UpstreamError
	if !errors.As(err, &upstream) {
		return err
	}

	payload := upstream.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{"message":"Upstream request failed"}`)
	}

	if upstream.Message == "" {
		return sendRawJSON(c, upstream.HTTPStatus(), payload)
	}

	body := fiber.Map{
		"error":   payload,
		"message": upstream.Message,
	}
	if deleted != nil {
		body["deleted"] = deleted
	}
	return c.Status(upstream.HTTPStatus()).JSON(body)
}

func sendRawJSON(c *fiber.Ctx, status int, body json.RawMessage) error {
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(status).Send(body)
}

// pathParam returns the decoded value of a route parameter. Fiber hands back
// the raw escaped segment.
func pathParam(c *fiber.Ctx, key string) (string, error) {
	decoded, err := url.PathUnescape(c.Params(key))
	if err != nil {
		return "", NewAPIError(fiber.StatusBadRequest, fmt.Sprintf("The '%s' path parameter is not correctly escaped.", key), "")
	}
	return strings.TrimSpace(decoded), nil
}

func parseBoolQuery(value string, field string) (bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, NewAPIError(fiber.StatusBadRequest, fmt.Sprintf("The '%s' query parameter must be a boolean.", field), "")
	}
	return parsed, nil
}
