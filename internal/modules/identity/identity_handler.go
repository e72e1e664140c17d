package identity

import (
	"errors"
	"net/http"

	"mf-eats-backend/internal/middleware"
	"mf-eats-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for signup, login and role resolution.
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

func (h *Handler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	session, err := h.svc.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Email is already registered"})
		}
		c.Logger().Error("Handler.Signup: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to create account"})
	}

	return c.JSON(http.StatusCreated, session)
}

func (h *Handler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	session, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Invalid email or password"})
		}
		c.Logger().Error("Handler.Login: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to log in"})
	}

	return c.JSON(http.StatusOK, session)
}

func (h *Handler) SignOut(c echo.Context) error {
	res := middleware.ResolutionFrom(c)
	h.svc.SignOut(c.Request().Context(), res.PrincipalID)
	return c.NoContent(http.StatusNoContent)
}

// Elevate issues the admin-override grant. Only principals whose role row
// says admin get one; everyone else is refused without detail.
func (h *Handler) Elevate(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	grant, err := h.svc.GrantElevated(c.Request().Context(), res.PrincipalID)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Elevated access denied"})
		}
		c.Logger().Error("Handler.Elevate: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to issue elevated grant"})
	}

	return c.JSON(http.StatusOK, map[string]string{"grant": grant})
}

func (h *Handler) Me(c echo.Context) error {
	res := middleware.ResolutionFrom(c)

	profile, err := h.svc.Profile(c.Request().Context(), res.PrincipalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Profile not found"})
		}
		c.Logger().Error("Handler.Me: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to load profile"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"profile":    profile,
		"resolution": res,
	})
}

// AssignRole is the admin out-of-band role reassignment.
func (h *Handler) AssignRole(c echo.Context) error {
	userID := c.Param("userId")

	var req struct {
		Role models.Role `json:"role" validate:"required,oneof=client restaurant driver admin"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.AssignRole(c.Request().Context(), userID, req.Role); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "User not found"})
		}
		c.Logger().Error("Handler.AssignRole: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to assign role"})
	}

	return c.NoContent(http.StatusNoContent)
}
