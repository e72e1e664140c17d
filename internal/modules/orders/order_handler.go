package orders

import (
	"errors"
	"net/http"
	"strconv"

	"mf-eats-backend/internal/middleware"
	"mf-eats-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for orders.
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

func (h *Handler) Checkout(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var req models.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	order, err := h.svc.Checkout(c.Request().Context(), res.PrincipalID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyCart):
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Cart is empty"})
		case errors.Is(err, models.ErrOrderBelowMinimum):
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Order subtotal is below the minimum"})
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Restaurant or menu item not found"})
		}
		c.Logger().Error("Handler.Checkout: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to place order"})
	}

	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) Advance(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	orderID := c.Param("orderId")

	var req models.AdvanceOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	order, err := h.svc.Advance(c.Request().Context(), res.PrincipalID, res.Role, orderID, req.To)
	if err != nil {
		return h.transitionError(c, "Handler.Advance", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) Cancel(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	orderID := c.Param("orderId")

	if err := h.svc.Cancel(c.Request().Context(), res.PrincipalID, res.Role, orderID); err != nil {
		return h.transitionError(c, "Handler.Cancel", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) transitionError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Not allowed for this order"})
	case errors.Is(err, models.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Order is not in a state that allows this change"})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to update order"})
}

func (h *Handler) GetOrder(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	orderID := c.Param("orderId")

	order, err := h.svc.GetOrder(c.Request().Context(), res.PrincipalID, res.Role, orderID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Order not found"})
		}
		if errors.Is(err, models.ErrForbidden) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Access denied"})
		}
		c.Logger().Error("Handler.GetOrder: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve order"})
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) ListMine(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	page, limit := pagination(c)

	orders, total, err := h.svc.ListMine(c.Request().Context(), res.PrincipalID, page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListMine: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve orders"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func (h *Handler) RestaurantInbox(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	restaurantID := c.Param("restaurantId")
	page, limit := pagination(c)

	var status *models.OrderStatus
	if s := c.QueryParam("status"); s != "" {
		st := models.OrderStatus(s)
		status = &st
	}

	orders, total, err := h.svc.RestaurantInbox(c.Request().Context(), res.PrincipalID, restaurantID, status, page, limit)
	if err != nil {
		if errors.Is(err, models.ErrForbidden) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Access denied"})
		}
		c.Logger().Error("Handler.RestaurantInbox: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to retrieve orders"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": orders, "total": total})
}

func pagination(c echo.Context) (page, limit int) {
	page, limit = 1, 10
	if pageStr := c.QueryParam("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	return page, limit
}
