package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/service"
	"github.com/noah-isme/examguard-api/internal/utils"
)

const defaultKeepAlive = 30 * time.Second

// ExamEventHandler streams live exam activity to proctor dashboards over SSE and WebSocket.
type ExamEventHandler struct {
	events    service.ExamEventService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewExamEventHandler constructs a handler instance.
func NewExamEventHandler(events service.ExamEventService, keepAlive time.Duration, logger zerolog.Logger) *ExamEventHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &ExamEventHandler{
		events:    events,
		logger:    logger.With().Str("component", "exam_event_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the stream routes under the proctor group.
func (h *ExamEventHandler) Register(router fiber.Router) {
	router.Get("/exams/:id/events/ws", h.upgrade, websocket.New(h.handleConnection))
	router.Get("/exams/:id/events", h.stream)
}

func (h *ExamEventHandler) stream(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	stream, cleanup := h.events.Subscribe(examID)
	logger := requestLogger(h.logger, c).With().Uint("exam_id", examID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		// flush headers immediately so clients see the stream open
		if err := writeKeepAlive(w); err != nil {
			return
		}

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return
				}
				if err := writeExamEvent(w, event); err != nil {
					logger.Debug().Err(err).Msg("failed to write exam event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("failed to write exam event keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *ExamEventHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	examID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	c.Locals("exam_id", examID)
	return c.Next()
}

func (h *ExamEventHandler) handleConnection(conn *websocket.Conn) {
	examID, _ := conn.Locals("exam_id").(uint)
	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	logger := h.logger.With().Uint("exam_id", examID).Str("correlation_id", correlation).Logger()

	stream, cleanup := h.events.Subscribe(examID)
	defer cleanup()

	ready := dto.ExamEvent{Type: dto.ExamEventStreamReady, ExamID: examID, OccurredAt: time.Now().UTC()}
	if err := conn.WriteJSON(ready); err != nil {
		logger.Debug().Err(err).Msg("failed to write stream ready event")
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	logger.Info().Msg("exam event websocket connected")
	defer logger.Info().Msg("exam event websocket disconnected")

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("failed to write exam event")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeExamEvent(w *bufio.Writer, event dto.ExamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\n", event.ID, event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
