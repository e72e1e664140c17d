package delivery

import (
	"errors"
	"net/http"

	"mf-eats-backend/internal/middleware"
	"mf-eats-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for deliveries.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *Handler) Advance(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	deliveryID := c.Param("deliveryId")

	var req models.AdvanceDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	d, err := h.svc.Advance(c.Request().Context(), res.PrincipalID, deliveryID, req.To)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Delivery not found"})
		case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrUnauthorized):
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Not your delivery"})
		case errors.Is(err, models.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Delivery is not in a state that allows this change"})
		}
		c.Logger().Error("Handler.Advance: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to update delivery"})
	}

	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Active(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	d, err := h.svc.Active(c.Request().Context(), res.PrincipalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "No active delivery"})
		}
		c.Logger().Error("Handler.Active: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load delivery"})
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Track(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	orderID := c.Param("orderId")

	d, err := h.svc.Track(c.Request().Context(), res.PrincipalID, res.Role, orderID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "No delivery for this order"})
		case errors.Is(err, models.ErrForbidden):
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Access denied"})
		}
		c.Logger().Error("Handler.Track: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load delivery"})
	}
	return c.JSON(http.StatusOK, d)
}
