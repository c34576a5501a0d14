package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/GoPolymarket/tradevault/internal/model"
	"github.com/GoPolymarket/tradevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradevault/internal/pkg/logger"
	"github.com/GoPolymarket/tradevault/internal/service"
	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	svc *service.EventService
	hub *service.EventHub
}

func NewEventHandler(svc *service.EventService, hub *service.EventHub) *EventHandler {
	return &EventHandler{svc: svc, hub: hub}
}

// List supports ?type=, ?after_seq=, ?from=, ?to= and ?limit=.
func (h *EventHandler) List(c *gin.Context) {
	filter := model.EventFilter{Type: c.Query("type")}
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Limit = parsed
		}
	}
	if raw := c.Query("after_seq"); raw != "" {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			_ = c.Error(apperrors.NewInvalidRequest("invalid after_seq"))
			return
		}
		filter.AfterSeq = seq
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			_ = c.Error(apperrors.NewInvalidRequest(key + ": " + err.Error()))
			return
		}
		*dst = &t
	}

	events, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		_ = c.Error(apperrors.NewNotFound("event stream disabled"))
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request); err != nil {
		logger.Warn("event stream upgrade failed", "error", err)
	}
}
