package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-proposal-api/internal/dto"
)

func TestDecisionPublisherRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	ctx := context.Background()
	sub := redisClient.Subscribe(ctx, "gema:proposals:evaluated")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewDecisionPublisher(redisClient, nil, "gema")
	event := dto.DecisionEvent{ID: "evt-1", Title: "Library", Status: dto.DecisionBlocked, Score: 10, EvaluatedAt: time.Now().UTC()}
	require.NoError(t, publisher.PublishDecision(ctx, event))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var received dto.DecisionEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &received))
	require.Equal(t, "evt-1", received.ID)
	require.Equal(t, dto.DecisionBlocked, received.Status)
}

func TestDecisionPublisherWithoutTransportsIsNoop(t *testing.T) {
	publisher := NewDecisionPublisher(nil, nil, "gema")
	require.NoError(t, publisher.PublishDecision(context.Background(), dto.DecisionEvent{ID: "x"}))
}
