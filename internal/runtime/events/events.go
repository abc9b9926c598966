// Package events publishes a message for every handled request failure so
// other services can alert on or audit them.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
	"github.com/budget-analyzer/service-common/internal/runtime/ids"
	"github.com/budget-analyzer/service-common/internal/runtime/jsoncodec"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
	"github.com/budget-analyzer/service-common/internal/runtime/observability"
)

// Metadata keys set on every published message.
const (
	MetadataCorrelationID = "correlation_id"
	MetadataEventType     = "event_type"
	MetadataContentType   = "content_type"

	FailureEventType = "http.request.failed"
)

// FailureEvent is the JSON payload of a published failure.
type FailureEvent struct {
	CorrelationID string    `json:"correlationId"`
	Service       string    `json:"service,omitempty"`
	Stack         string    `json:"stack,omitempty"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	Status        int       `json:"status"`
	Type          string    `json:"type"`
	Code          string    `json:"code,omitempty"`
	Message       string    `json:"message"`
	Exception     string    `json:"exception,omitempty"`
	RootCause     string    `json:"rootCause,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher sends FailureEvents to a Watermill publisher.
type Publisher struct {
	pub     message.Publisher
	topic   string
	service string
	logger  logging.ServiceLogger
	now     func() time.Time

	inflight sync.WaitGroup
}

// NewPublisher validates its inputs. logger may be nil.
func NewPublisher(pub message.Publisher, topic, service string, logger logging.ServiceLogger) (*Publisher, error) {
	if pub == nil {
		return nil, errorspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errorspkg.ErrTopicRequired
	}
	return &Publisher{pub: pub, topic: topic, service: service, logger: logger, now: time.Now}, nil
}

// NewFailureEvent builds the event for res. The message is the one sent to
// the caller, so internal detail never leaves the service through events.
func (p *Publisher) NewFailureEvent(info observability.RequestInfo, res api.Resolution) FailureEvent {
	ev := FailureEvent{
		CorrelationID: info.CorrelationID,
		Service:       p.service,
		Stack:         info.Stack,
		Method:        info.Method,
		Path:          info.Path,
		Status:        res.Status,
		Type:          string(res.Type()),
		Code:          res.Response.Code,
		Message:       res.Response.Message,
		OccurredAt:    p.now().UTC(),
	}
	if res.Err != nil {
		ev.Exception = errorspkg.Describe(res.Err)
		if root := errorspkg.RootCause(res.Err); root != nil && root != res.Err {
			ev.RootCause = errorspkg.Describe(root)
		}
	}
	return ev
}

// Publish sends one failure event.
func (p *Publisher) Publish(ctx context.Context, info observability.RequestInfo, res api.Resolution) error {
	payload, err := jsoncodec.Marshal(p.NewFailureEvent(info, res))
	if err != nil {
		return err
	}
	msg := message.NewMessage(ids.NewRequestID(), payload)
	msg.Metadata.Set(MetadataCorrelationID, info.CorrelationID)
	msg.Metadata.Set(MetadataEventType, FailureEventType)
	msg.Metadata.Set(MetadataContentType, api.ContentType)
	if ctx != nil {
		msg.SetContext(ctx)
	}
	return p.pub.Publish(p.topic, msg)
}

// Hooks publishes on every handled failure. Each event is sent on its own
// goroutine so a slow broker never holds up the response; Wait drains them.
// Publishing errors are logged and never affect the response.
func (p *Publisher) Hooks() observability.Hooks {
	return observability.Hooks{
		OnRequestError: func(info observability.RequestInfo, res api.Resolution) {
			ctx := info.Context
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithoutCancel(ctx)
			p.inflight.Go(func() {
				if err := p.Publish(ctx, info, res); err != nil && p.logger != nil {
					logging.FromContext(ctx, p.logger).Error("Failed to publish failure event", err, logging.LogFields{
						"topic": p.topic,
					})
				}
			})
		},
	}
}

// Wait blocks until every event handed to the hooks has been published or ctx
// is done.
func (p *Publisher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
