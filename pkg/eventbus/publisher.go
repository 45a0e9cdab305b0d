package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tellowai/admin-api-sub001/pkg/config"
	pkgerrors "github.com/tellowai/admin-api-sub001/pkg/errors"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
	"github.com/tellowai/admin-api-sub001/pkg/metrics"
)

const defaultPublishTimeout = 15 * time.Second

// Publisher puts lifecycle messages on the bus. Failures are returned as
// CodePublish errors and never retried.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type PublisherFactory func(topic string) TopicPublisher

type TopicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) PublishResult
}

type PublishResult interface {
	Get(context.Context) (string, error)
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

type ServiceParams struct {
	Config           config.PubSubConfig
	Logger           *logger.Logger
	PubSub           topicSource
	PublisherFactory PublisherFactory
	Metrics          *metrics.GenerationMetrics
	Clock            func() time.Time
}

type Service struct {
	cfg     config.PubSubConfig
	logg    *logger.Logger
	factory PublisherFactory
	metrics *metrics.GenerationMetrics
	now     func() time.Time
	timeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Config.Environment == "" || params.Config.Domain == "" {
		return nil, errors.New("pubsub environment and domain are required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		if params.PubSub == nil {
			return nil, errors.New("pubsub client or publisher factory is required")
		}
		factory = func(topic string) TopicPublisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return gcpPublisher{pub: pub}
		}
	}

	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := params.Config.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	return &Service{
		cfg:     params.Config,
		logg:    params.Logger,
		factory: factory,
		metrics: params.Metrics,
		now:     clock,
		timeout: timeout,
	}, nil
}

// TopicFor resolves the topic a message is routed to.
func (s *Service) TopicFor(msg Message) string {
	return Topic(s.cfg.Environment, s.cfg.Domain, msg.Kind, msg.Verb)
}

func (s *Service) Publish(ctx context.Context, msg Message) error {
	topic := s.TopicFor(msg)
	envelope, err := s.buildEnvelope(msg)
	if err != nil {
		return s.fail(ctx, msg, topic, "", err)
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return s.fail(ctx, msg, topic, envelope.EventID, fmt.Errorf("marshal envelope: %w", err))
	}

	pub := s.factory(topic)
	if pub == nil {
		return s.fail(ctx, msg, topic, envelope.EventID, fmt.Errorf("publisher not configured for topic %s", topic))
	}

	attrs := map[string]string{
		"event_id": envelope.EventID,
		"event":    envelope.Event,
		"version":  envelope.Version,
	}
	if msg.GenerationID != "" {
		attrs["generation_id"] = msg.GenerationID
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{Data: body, Attributes: attrs})
	if result == nil {
		return s.fail(ctx, msg, topic, envelope.EventID, fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	serverID, err := result.Get(publishCtx)
	if err != nil {
		return s.fail(ctx, msg, topic, envelope.EventID, err)
	}

	s.metrics.IncPublish(topic, metrics.OutcomePublished)
	fields := s.fields(msg, topic, envelope.EventID)
	fields["message_id"] = serverID
	s.logg.Info(s.logg.WithFields(ctx, fields), "event published")
	return nil
}

func (s *Service) buildEnvelope(msg Message) (Envelope, error) {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal data: %w", err)
	}
	return Envelope{
		EventID:   uuid.NewString(),
		Event:     msg.Event,
		EventTime: s.now().UTC(),
		Version:   EnvelopeVersion,
		Data:      data,
		Metadata: Metadata{
			Producer:    s.cfg.Producer,
			Environment: s.cfg.Environment,
		},
	}, nil
}

func (s *Service) fail(ctx context.Context, msg Message, topic, eventID string, err error) error {
	s.metrics.IncPublish(topic, metrics.OutcomeFailed)
	s.logg.Error(s.logg.WithFields(ctx, s.fields(msg, topic, eventID)), "event publish failed", err)
	return pkgerrors.Wrap(pkgerrors.CodePublish, err, fmt.Sprintf("publish %s", msg.Event))
}

func (s *Service) fields(msg Message, topic, eventID string) map[string]any {
	fields := map[string]any{
		"topic": topic,
		"event": msg.Event,
	}
	if eventID != "" {
		fields["event_id"] = eventID
	}
	if msg.GenerationID != "" {
		fields["generation_id"] = msg.GenerationID
	}
	return fields
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) PublishResult {
	return p.pub.Publish(ctx, msg)
}
