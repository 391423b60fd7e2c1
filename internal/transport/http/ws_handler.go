package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// SubscriberGauge counts open streams.
type SubscriberGauge interface {
	SubscriberOpened()
	SubscriberClosed()
}

type nopGauge struct{}

func (nopGauge) SubscriberOpened() {}
func (nopGauge) SubscriberClosed() {}

type WSHandler struct {
	service  ResultsService
	gauge    SubscriberGauge
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service ResultsService, gauge SubscriberGauge, log *slog.Logger) *WSHandler {
	if gauge == nil {
		gauge = nopGauge{}
	}
	return &WSHandler{
		service: service,
		gauge:   gauge,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and streams standings of the event until the
// client goes away. Clients only listen; inbound messages are discarded.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "event", eventID, "error", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), eventID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	h.gauge.SubscriberOpened()
	defer h.gauge.SubscriberClosed()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Only this goroutine writes to conn.
	for {
		select {
		case standings, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(outboundMessage[any]{Type: "standings", Payload: standings}); err != nil {
				h.log.Debug("ws write error", "event", eventID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}
