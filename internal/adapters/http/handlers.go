package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/app"
	"github.com/dkeye/meetd/internal/app/orch"
	"github.com/dkeye/meetd/internal/domain"
	"github.com/dkeye/meetd/internal/provider"
)

// Handlers converts orchestrator state and errors into the responses the
// UI shell renders. No session logic lives here.
type Handlers struct {
	Orch *orch.Orchestrator
}

// catalogResponse carries the cached room list plus the sticky error of
// the last failed refresh, dismissible on the client.
type catalogResponse struct {
	Rooms []domain.Room `json:"rooms"`
	Error string        `json:"error,omitempty"`
}

func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, err := h.Orch.Rooms()
	resp := catalogResponse{Rooms: rooms}
	if err != nil {
		resp.Error = userMessage(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) RefreshRooms(c *gin.Context) {
	if err := h.Orch.RefreshRooms(c.Request.Context()); err != nil {
		c.JSON(statusOf(err), gin.H{"error": userMessage(err)})
		return
	}
	rooms, _ := h.Orch.Rooms()
	c.JSON(http.StatusOK, catalogResponse{Rooms: rooms})
}

func (h *Handlers) DismissCatalogError(c *gin.Context) {
	h.Orch.ClearCatalogError()
	c.Status(http.StatusNoContent)
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	room, err := h.Orch.CreateRoom(c.Request.Context())
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handlers) DeleteRoom(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	confirmed := c.Query("confirm") == "true"
	err := h.Orch.DeleteRoom(c.Request.Context(), name, confirmed)
	switch {
	case errors.Is(err, orch.ErrConfirmationRequired):
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "confirm room deletion with ?confirm=true"})
	case err != nil:
		c.JSON(statusOf(err), gin.H{"error": userMessage(err)})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (h *Handlers) JoinByCode(c *gin.Context) {
	var req struct {
		Code        string `json:"code" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing meeting code"})
		return
	}
	if req.DisplayName != "" {
		if err := h.Orch.State.SetDisplayName(req.DisplayName); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.Orch.JoinByCode(c.Request.Context(), req.Code); err != nil {
		c.JSON(statusOf(err), gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, h.Orch.Snapshot())
}

func (h *Handlers) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.Orch.Snapshot())
}

func (h *Handlers) MeetingLink(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": h.Orch.MeetingLink()})
}

func (h *Handlers) Minimize(c *gin.Context) {
	if err := h.Orch.Minimize(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, h.Orch.Snapshot())
}

func (h *Handlers) Maximize(c *gin.Context) {
	if err := h.Orch.Maximize(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, h.Orch.Snapshot())
}

func (h *Handlers) EndMeeting(c *gin.Context) {
	h.Orch.EndMeeting(c.Request.Context())
	c.JSON(http.StatusOK, h.Orch.Snapshot())
}

func (h *Handlers) SetParticipantAudio(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing enabled flag"})
		return
	}
	id := domain.ParticipantID(c.Param("id"))
	// The orchestrator no-ops when we are not host; surfacing that as an
	// error would leak a control the UI should not have shown.
	if err := h.Orch.SetParticipantAudio(id, *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": userMessage(err)})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) RemoveParticipant(c *gin.Context) {
	id := domain.ParticipantID(c.Param("id"))
	if err := h.Orch.RemoveParticipant(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": userMessage(err)})
		return
	}
	c.Status(http.StatusNoContent)
}

// statusOf maps orchestrator-boundary errors onto HTTP statuses.
func statusOf(err error) int {
	var pe *provider.ProviderError
	var je *app.JoinError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadGateway
	case errors.As(err, &je):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyJoinCode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	var je *app.JoinError
	if errors.As(err, &je) {
		log.Debug().Err(err).Str("module", "adapters.http").Msg("join error surfaced")
		return "could not join the meeting: " + je.Err.Error()
	}
	return err.Error()
}
