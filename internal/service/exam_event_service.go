package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/dto"
	"github.com/noah-isme/examguard-api/internal/observability"
)

const examEventBufferSize = 32

// ExamEventService fans exam changes out to local subscribers and, when
// configured, to other API nodes over Redis pub/sub and NATS.
type ExamEventService interface {
	EventPublisher
	Subscribe(examID uint) (<-chan dto.ExamEvent, func())
	Start(ctx context.Context)
}

type examEventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *examEventBroker
	nodeID       string
	now          func() time.Time
}

type examEventEnvelope struct {
	Source string        `json:"source"`
	Event  dto.ExamEvent `json:"event"`
}

type examEventBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.ExamEvent]struct{}
}

// NewExamEventService constructs the event fan-out. redisClient and natsConn may be nil.
func NewExamEventService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ExamEventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":exam-events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".exam-events"
	}

	return &examEventService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "exam_event_service").Logger(),
		broker: &examEventBroker{
			subscribers: make(map[uint]map[chan dto.ExamEvent]struct{}),
		},
		nodeID: uuid.NewString(),
		now:    time.Now,
	}
}

func (s *examEventService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *examEventService) PublishExamEvent(ctx context.Context, examID uint, eventType string, studentID *uint, data interface{}) {
	event := dto.ExamEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		ExamID:     examID,
		StudentID:  studentID,
		OccurredAt: s.now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.logger.Warn().Err(err).Str("type", eventType).Msg("dropping exam event with unencodable payload")
			return
		}
		event.Data = raw
	}

	s.deliver(event)
	if err := s.forward(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Uint("exam_id", examID).Msg("failed to forward exam event to broker")
	}
}

func (s *examEventService) Subscribe(examID uint) (<-chan dto.ExamEvent, func()) {
	channel := make(chan dto.ExamEvent, examEventBufferSize)

	s.broker.subscribe(examID, channel)
	observability.EventStreamsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(examID, channel)
			observability.EventStreamsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *examEventService) deliver(event dto.ExamEvent) {
	observability.EventsPublished().WithLabelValues(event.Type).Inc()
	s.broker.broadcast(event.ExamID, event)
}

func (s *examEventService) forward(ctx context.Context, event dto.ExamEvent) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(examEventEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *examEventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("exam event redis subscription closed")
			return
		}
		s.handleRemote([]byte(msg.Payload))
	}
}

func (s *examEventService) consumeNATS(ctx context.Context) {
	// each node needs every event for its own subscribers, so no queue group
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleRemote(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats exam events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain exam events nats subscription")
		}
	}()
}

func (s *examEventService) handleRemote(payload []byte) {
	var envelope examEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid exam event payload")
		return
	}
	if envelope.Source == s.nodeID || envelope.Event.ExamID == 0 {
		return
	}
	s.deliver(envelope.Event)
}

func (b *examEventBroker) subscribe(examID uint, ch chan dto.ExamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[examID]; !exists {
		b.subscribers[examID] = make(map[chan dto.ExamEvent]struct{})
	}
	b.subscribers[examID][ch] = struct{}{}
}

func (b *examEventBroker) unsubscribe(examID uint, ch chan dto.ExamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[examID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, examID)
		}
	}
}

func (b *examEventBroker) broadcast(examID uint, event dto.ExamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[examID] {
		select {
		case ch <- event:
		default:
		}
	}
}
