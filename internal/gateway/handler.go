package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ecommerce-pipeline/order-pipeline/internal/domain"
	"github.com/ecommerce-pipeline/order-pipeline/internal/httpx"
)

type OrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Items      []domain.OrderItem `json:"items"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateOrder accepts an order submission. Validation is purely structural
// and never consults persistent state; the eventual PROCESSED/FAILED
// outcome is only observable downstream.
func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var request OrderRequest

	if err := c.BodyParser(&request); err != nil {
		return httpx.BadRequestResponse(c, "Invalid JSON format", map[string]interface{}{
			"parse_error": err.Error(),
		})
	}

	if request.CustomerID == "" {
		return httpx.BadRequestResponse(c, "Customer ID is required", nil)
	}

	if len(request.Items) == 0 {
		return httpx.BadRequestResponse(c, "At least one item is required", nil)
	}

	for i, item := range request.Items {
		if item.ProductID == "" {
			return httpx.BadRequestResponse(c, "Invalid product ID", map[string]interface{}{
				"item_index": i,
			})
		}
		if item.Quantity <= 0 {
			return httpx.BadRequestResponse(c, "Invalid quantity", map[string]interface{}{
				"item_index": i,
				"quantity":   item.Quantity,
			})
		}
	}

	orderID, err := h.service.AcceptOrder(&request)
	if err != nil {
		log.Error().Err(err).Msg("Order submission error")
		return httpx.InternalServerErrorResponse(c, "Order submission failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return httpx.AcceptedResponse(c, "Order accepted", map[string]interface{}{
		"order_id": orderID,
	})
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return httpx.SuccessResponse(c, "Intake gateway is healthy", map[string]interface{}{
		"service": "intake-gateway",
		"status":  "healthy",
	})
}
