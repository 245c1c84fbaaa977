package service

import (
	"context"
	"encoding/json"

	"art-curator-be/internal/dto"
	"art-curator-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	pipeline   IPipelineService
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	pipeline IPipelineService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		pipeline:   pipeline,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage acks before running: a run is never redelivered, and a
// new submission is the only way to retry.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PipelineRunMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Consumer", "Failed to unmarshal run message", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}
	msg.Ack()

	cs.logger.Info("Consumer", "Starting pipeline run", map[string]interface{}{
		"session_id": payload.SessionID,
		"generation": payload.Generation,
	})

	// Sessions run concurrently; each run owns its goroutine.
	go func() {
		_ = cs.pipeline.Run(ctx, payload.SessionID, payload.Query, payload.Generation)
	}()
}
