package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"token-alerts/internal/service"
	"token-alerts/internal/version"
)

// EventHandler processes one transaction event.
type EventHandler interface {
	HandleTransaction(ctx context.Context, ev service.Event) (service.Result, error)
}

// AlertView is the response shape of a raised alert.
type AlertView struct {
	Label     string `json:"label"`
	Account   string `json:"account"`
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	Balance   string `json:"balance"`
	Threshold string `json:"threshold"`
}

// EventResponse reports the outcome of an event.
type EventResponse struct {
	Heartbeat uint64      `json:"heartbeat"`
	Chain     uint64      `json:"chain,omitempty"`
	Skipped   string      `json:"skipped,omitempty"`
	Delivered int         `json:"delivered"`
	Alerts    []AlertView `json:"alerts"`
}

// Handlers serves the event intake endpoints.
type Handlers struct {
	events  EventHandler
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHandlers creates the intake handlers. A zero timeout leaves the request context as is.
func NewHandlers(events EventHandler, timeout time.Duration, logger zerolog.Logger) *Handlers {
	return &Handlers{
		events:  events,
		timeout: timeout,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// HandleEvent accepts a transaction event and runs it synchronously.
func (h *Handlers) HandleEvent(c *gin.Context) {
	var ev service.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.events.HandleTransaction(ctx, ev)
	if err != nil {
		h.logger.Error().Err(err).Str("tx", ev.Hash).Msg("event failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toResponse(res))
}

func toResponse(res service.Result) EventResponse {
	out := EventResponse{
		Heartbeat: res.Heartbeat,
		Chain:     uint64(res.Chain),
		Skipped:   res.Skipped,
		Delivered: res.Delivered,
		Alerts:    make([]AlertView, 0, len(res.Candidates)),
	}
	for _, c := range res.Candidates {
		symbol := c.Symbol
		if c.Native {
			symbol = "native"
		}
		out.Alerts = append(out.Alerts, AlertView{
			Label:     c.Label,
			Account:   c.Account.Hex(),
			Token:     c.Token.Hex(),
			Symbol:    symbol,
			Balance:   c.Balance.String(),
			Threshold: c.Threshold.String(),
		})
	}
	return out
}

// Health returns liveness information.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   version.Version,
		"timestamp": time.Now().Unix(),
	})
}

// Version returns build metadata.
func Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
