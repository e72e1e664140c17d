package ledger

import (
	"net/http"

	"mf-eats-backend/internal/models"

	"github.com/labstack/echo/v4"
)

// Handler exposes the admin read side of the ledger.
type Handler struct {
	svc ServiceInterface
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Summary(c echo.Context) error {
	summary, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		c.Logger().Error("Handler.Summary: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load ledger summary"})
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) OrderHistory(c echo.Context) error {
	transactions, err := h.svc.OrderHistory(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		c.Logger().Error("Handler.OrderHistory: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load order transactions"})
	}
	return c.JSON(http.StatusOK, transactions)
}
