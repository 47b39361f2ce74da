package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"fraudsentry/internal/models"
	"fraudsentry/internal/repositories"
	"fraudsentry/internal/services/processor"
	"fraudsentry/internal/stream"
	"fraudsentry/internal/utils/response"
	"fraudsentry/internal/validation"
)

// TransactionHandler exposes the scoring pipeline over HTTP.
type TransactionHandler struct {
	processor *processor.Processor
}

// NewTransactionHandler creates a transaction handler.
func NewTransactionHandler(p *processor.Processor) *TransactionHandler {
	if p == nil {
		panic("processor is required")
	}
	return &TransactionHandler{processor: p}
}

type submitRequest struct {
	models.Transaction
	StreamMode bool `json:"stream_mode"`
}

// Submit accepts a transaction for fraud scoring. With stream_mode false
// the caller gets the assessment synchronously; with stream_mode true
// the caller gets an acceptance receipt and the assessment materializes
// via the consumer.
func (h *TransactionHandler) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	tx := req.Transaction

	if req.StreamMode {
		receipt, err := h.processor.SubmitQueued(c.Context(), &tx)
		if err != nil {
			return h.submitError(c, err)
		}
		return response.Accepted(c, receipt)
	}

	assessment, err := h.processor.ProcessDirect(c.Context(), &tx)
	if err != nil {
		return h.submitError(c, err)
	}
	return response.Success(c, "transaction scored", assessment)
}

// GetAssessment returns the persisted assessment for a transaction id.
func (h *TransactionHandler) GetAssessment(c *fiber.Ctx) error {
	txID := c.Params("id")
	if txID == "" {
		return response.BadRequest(c, "transaction id is required")
	}

	assessment, err := h.processor.GetAssessment(c.Context(), txID)
	if err != nil {
		if errors.Is(err, repositories.ErrAssessmentNotFound) {
			return response.NotFound(c, "no assessment for transaction")
		}
		log.Printf("assessment lookup failed for %s: %v", txID, err)
		return response.ServerError(c, "failed to retrieve assessment")
	}
	return response.Success(c, "assessment found", assessment)
}

func (h *TransactionHandler) submitError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, validation.ErrValidation):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, stream.ErrPublishFailed):
		// The client can retry or resubmit with stream_mode=false.
		return response.ServiceUnavailable(c, "queue unavailable, retry or use direct mode")
	default:
		log.Printf("transaction processing failed: %v", err)
		return response.ServerError(c, "failed to process transaction")
	}
}
