package drivers

import (
	"errors"
	"net/http"

	"mf-eats-backend/internal/middleware"
	"mf-eats-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for driver profiles.
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

func (h *Handler) Apply(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var req models.DriverApplication
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	d, err := h.svc.Apply(c.Request().Context(), res.PrincipalID, req)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Driver profile already exists"})
		}
		c.Logger().Error("Handler.Apply: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to submit application"})
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Me(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	d, err := h.svc.Me(c.Request().Context(), res.PrincipalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "No driver profile"})
		}
		c.Logger().Error("Handler.Me: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load driver profile"})
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) SetAvailability(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var req models.AvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	d, err := h.svc.SetAvailability(c.Request().Context(), res.PrincipalID, req.IsAvailable)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "No driver profile"})
		case errors.Is(err, models.ErrDriverUnavailableToggle):
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Cannot change availability during an active delivery"})
		}
		c.Logger().Error("Handler.SetAvailability: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to update availability"})
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Ping(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	var loc models.LocationPing
	if err := c.Bind(&loc); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(loc); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.Ping(c.Request().Context(), res.PrincipalID, loc); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "No driver profile"})
		}
		c.Logger().Error("Handler.Ping: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to record location"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Approve(c echo.Context) error {
	driverID := c.Param("driverId")

	if err := h.svc.Approve(c.Request().Context(), driverID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Driver not found"})
		}
		c.Logger().Error("Handler.Approve: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to approve driver"})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPendingApproval(c echo.Context) error {
	pending, err := h.svc.ListPendingApproval(c.Request().Context())
	if err != nil {
		c.Logger().Error("Handler.ListPendingApproval: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to list applications"})
	}
	return c.JSON(http.StatusOK, pending)
}
