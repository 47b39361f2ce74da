package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"fraudsentry/internal/models"
	"fraudsentry/internal/services/broadcaster"
)

// alertEnvelope is the subscriber wire format.
type alertEnvelope struct {
	Type      string       `json:"type"`
	Data      models.Alert `json:"data"`
	Timestamp string       `json:"timestamp"`
}

type connectAck struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ClientID  string `json:"client_id"`
	Timestamp string `json:"timestamp"`
}

// AlertSocketHandler bridges websocket connections to the broadcaster.
type AlertSocketHandler struct {
	broadcaster *broadcaster.Broadcaster
}

// NewAlertSocketHandler creates the websocket alert handler.
func NewAlertSocketHandler(b *broadcaster.Broadcaster) *AlertSocketHandler {
	if b == nil {
		panic("broadcaster is required")
	}
	return &AlertSocketHandler{broadcaster: b}
}

// Upgrade gates the websocket route on a proper upgrade request.
func (h *AlertSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve handles one subscriber connection: registers it, relays alerts
// from its subscription channel, and treats inbound frames as
// keep-alives. Any read or write failure ends the subscription.
func (h *AlertSocketHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		clientID := conn.Query("client_id")
		if clientID == "" {
			clientID = uuid.NewString()
		}

		sub := h.broadcaster.Register(clientID)
		defer h.broadcaster.Unregister(sub)

		if err := conn.WriteJSON(connectAck{
			Type:      "connection",
			Message:   "connected to fraud detection alert system",
			ClientID:  clientID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			log.Printf("subscriber %s ack failed: %v", clientID, err)
			return
		}

		// Inbound frames are keep-alive tokens; their content is not
		// interpreted. A read error means the client went away.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
				h.broadcaster.Touch(clientID)
			}
		}()

		for {
			select {
			case alert, ok := <-sub.Alerts:
				if !ok {
					// Swept out by the broadcaster or replaced by a
					// reconnect with the same client id.
					return
				}
				env := alertEnvelope{
					Type:      "fraud_alert",
					Data:      alert,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				}
				if err := conn.WriteJSON(env); err != nil {
					log.Printf("alert delivery to %s failed: %v", clientID, err)
					return
				}
			case <-readDone:
				return
			}
		}
	})
}
