package restaurants

import (
	"errors"
	"net/http"
	"strconv"

	"mf-eats-backend/internal/middleware"
	"mf-eats-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for restaurants and menus.
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

func (h *Handler) Create(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var req models.CreateRestaurantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	rest, err := h.svc.Create(c.Request().Context(), res.PrincipalID, req)
	if err != nil {
		c.Logger().Error("Handler.Create: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to create restaurant"})
	}
	return c.JSON(http.StatusCreated, rest)
}

func (h *Handler) Mine(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	rest, err := h.svc.Mine(c.Request().Context(), res.PrincipalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "No restaurant for this account"})
		}
		c.Logger().Error("Handler.Mine: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load restaurant"})
	}
	return c.JSON(http.StatusOK, rest)
}

func (h *Handler) Get(c echo.Context) error {
	rest, err := h.svc.Get(c.Request().Context(), c.Param("restaurantId"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Restaurant not found"})
		}
		c.Logger().Error("Handler.Get: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load restaurant"})
	}
	return c.JSON(http.StatusOK, rest)
}

func (h *Handler) ListActive(c echo.Context) error {
	page, limit := 1, 20
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	restaurants, total, err := h.svc.ListActive(c.Request().Context(), page, limit)
	if err != nil {
		c.Logger().Error("Handler.ListActive: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list restaurants"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"restaurants": restaurants, "total": total})
}

func (h *Handler) SetActive(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	if err := h.svc.SetActive(c.Request().Context(), res.PrincipalID, c.Param("restaurantId"), req.IsActive); err != nil {
		return h.ownerError(c, "Handler.SetActive", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddMenuItem(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var req models.UpsertMenuItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	mi, err := h.svc.AddMenuItem(c.Request().Context(), res.PrincipalID, c.Param("restaurantId"), req)
	if err != nil {
		return h.ownerError(c, "Handler.AddMenuItem", err)
	}
	return c.JSON(http.StatusCreated, mi)
}

func (h *Handler) UpdateMenuItem(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var req models.UpsertMenuItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	mi, err := h.svc.UpdateMenuItem(c.Request().Context(), res.PrincipalID, c.Param("itemId"), req)
	if err != nil {
		return h.ownerError(c, "Handler.UpdateMenuItem", err)
	}
	return c.JSON(http.StatusOK, mi)
}

func (h *Handler) Menu(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	menu, err := h.svc.Menu(c.Request().Context(), res.PrincipalID, c.Param("restaurantId"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Restaurant not found"})
		}
		c.Logger().Error("Handler.Menu: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load menu"})
	}
	return c.JSON(http.StatusOK, menu)
}

func (h *Handler) ownerError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Not found"})
	case errors.Is(err, models.ErrForbidden):
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Not your restaurant"})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Request failed"})
}
