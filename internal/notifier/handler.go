package notifier

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
)

// OrderNotifier emits the side effect for one completed order.
type OrderNotifier interface {
	NotifyOrderProcessed(event *domain.OrderProcessed)
}

type Handler struct {
	notifier OrderNotifier
}

func NewHandler(notifier OrderNotifier) *Handler {
	return &Handler{notifier: notifier}
}

// HandleDelivery consumes OrderProcessed messages. Malformed or unexpected
// payloads are logged and dropped; returning an error here would only
// requeue a message that can never succeed.
func (h *Handler) HandleDelivery(_ context.Context, body []byte) error {
	var event domain.OrderProcessed
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error().Err(err).Msg("Discarding malformed notification payload")
		return nil
	}

	if event.Status != string(domain.StatusProcessed) {
		log.Warn().
			Str("order_id", event.OrderID.String()).
			Str("status", event.Status).
			Msg("Ignoring notification with unexpected status")
		return nil
	}

	h.notifier.NotifyOrderProcessed(&event)
	return nil
}
