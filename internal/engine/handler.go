package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
	"github.com/ecommerce-pipeline/order-pipeline/internal/messaging"
)

// Handler adapts channel deliveries to the engine.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// HandleDelivery is the consumer entry point for OrderCreated messages.
// Business outcomes resolve the delivery; only storage errors surface so
// the channel redelivers. Malformed bodies are permanent, they go straight
// to the dead-letter path instead of looping.
func (h *Handler) HandleDelivery(ctx context.Context, body []byte) error {
	var event domain.OrderCreated
	if err := json.Unmarshal(body, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("order created event deserialize error: %v", err))
	}

	outcome, err := h.engine.Process(ctx, &event)
	if err != nil {
		log.Error().
			Err(err).
			Str("order_id", event.OrderID.String()).
			Msg("Order processing error, delivery will be retried")
		return err
	}

	log.Info().
		Str("order_id", event.OrderID.String()).
		Stringer("outcome", outcome).
		Msg("Order delivery resolved")
	return nil
}
