package triage

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the turn endpoint and the admin audit endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public turn endpoint on api and the audit
// endpoints on admin.
func (h *Handler) RegisterRoutes(api *echo.Group, admin *echo.Group) {
	api.POST("/triage/turn", h.Turn)
	admin.GET("/triage/sessions/:id", h.GetSession)
	admin.GET("/triage/sessions/:id/events", h.ListEvents)
}

// Turn runs one step of the conversation. The body is the turn request; the
// response is always a single envelope, with the HTTP status mirroring the
// envelope's error code for transport-level clients.
func (h *Handler) Turn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	env := h.svc.HandleTurn(c.Request().Context(), &req)
	return c.JSON(statusFor(env), env)
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.svc.GetSession(c.Request().Context(), c.Param("id"))
	if err == ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) ListEvents(c echo.Context) error {
	events, err := h.svc.Events(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func statusFor(env *Envelope) int {
	if env.EnvelopeType != EnvelopeError {
		return http.StatusOK
	}
	switch env.Error.Code {
	case CodeEmptyInput:
		return http.StatusBadRequest
	case CodeBadSession:
		return http.StatusNotFound
	case CodeBadState, CodeConcurrentTurn:
		return http.StatusConflict
	case CodeCatalogError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
