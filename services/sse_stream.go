package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"habitquest/events"
	"habitquest/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const sseKeepAlive = 15 * time.Second

// Subscriber is the read side of the event bus.
type Subscriber interface {
	Subscribe(userID string) (<-chan events.Event, func())
}

// EventStream pushes the authenticated user's events to an SSE client.
type EventStream struct {
	Bus Subscriber
}

func NewEventStream(bus Subscriber) *EventStream {
	return &EventStream{Bus: bus}
}

// StreamUserEventsSSE expects the user id in c.Locals("user_id").
func (s *EventStream) StreamUserEventsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return ErrNotAuthenticated
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ch, unsubscribe := s.Bus.Subscribe(userID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		utils.Logger.Debug("sse_connected", zap.String("user_id", userID))

		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		w.WriteString(": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := writeSSE(w, e); err != nil {
					utils.Logger.Debug("sse_disconnected", zap.String("user_id", userID), zap.Error(err))
					return
				}
			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}

func writeSSE(w *bufio.Writer, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload)
	return w.Flush()
}
