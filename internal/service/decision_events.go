package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
)

// DecisionPublisher fans decision events out to downstream consumers.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, event dto.DecisionEvent) error
}

type brokerDecisionPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
}

// NewDecisionPublisher publishes to Redis pub/sub and NATS. Either transport
// may be nil; with both nil the publisher is a no-op.
func NewDecisionPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string) DecisionPublisher {
	channel := ""
	subject := ""
	if base := strings.TrimSpace(channelBase); base != "" {
		channel = base + ":proposals:evaluated"
		subject = strings.ReplaceAll(base, ":", ".") + ".proposals.evaluated"
	}
	return &brokerDecisionPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
	}
}

func (p *brokerDecisionPublisher) PublishDecision(ctx context.Context, event dto.DecisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
