package dispatch

import (
	"errors"
	"net/http"

	"mf-eats-backend/internal/models"

	"github.com/labstack/echo/v4"
)

// Handler exposes manual dispatch to admins; the sweeps run on tickers.
type Handler struct {
	svc ServiceInterface
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Dispatch(c echo.Context) error {
	orderID := c.Param("orderId")

	delivery, err := h.svc.Dispatch(c.Request().Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		case errors.Is(err, models.ErrAlreadyDispatched):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Order already dispatched"})
		case errors.Is(err, models.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Order is not ready for dispatch"})
		case errors.Is(err, models.ErrNoDriverAvailable):
			return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Message: "No driver available, order stays queued"})
		}
		c.Logger().Error("Handler.Dispatch: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to dispatch order"})
	}

	return c.JSON(http.StatusCreated, delivery)
}
