package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/enrolment-backend/internal/model"
	"github.com/stemsi/enrolment-backend/internal/response"
)

// PaymentEventReader reads the persisted payment audit trail.
// repository.PaymentEventRepository implements it.
type PaymentEventReader interface {
	ListByAccount(ctx context.Context, accountID int) ([]model.PaymentEvent, error)
}

// PaymentEventHandler exposes the payment audit trail to administrators.
type PaymentEventHandler struct {
	events PaymentEventReader
}

func NewPaymentEventHandler(events PaymentEventReader) *PaymentEventHandler {
	return &PaymentEventHandler{events: events}
}

// ListByAccount godoc
// GET /api/auth/users/:id/payment-events
func (h *PaymentEventHandler) ListByAccount(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	events, err := h.events.ListByAccount(c.Request.Context(), id)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"events": events})
}
