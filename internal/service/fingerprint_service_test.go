package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFingerprintServiceParsesAndStringifies(t *testing.T) {
	completer := &stubCompleter{reply: "Here it is:\n```json\n{\"problem_statement\": \"Late book returns\", \"input_sources\": [\"QR scans\", \"due dates\"], \"core_process\": \"reminder scheduling\", \"expected_output\": 3, \"primary_tech\": null}\n```"}
	svc := NewFingerprintService(completer, nil, time.Hour, testLogger())

	fingerprint, err := svc.Extract(context.Background(), "Library", "QR checkout")
	require.NoError(t, err)
	require.Equal(t, "Late book returns", fingerprint.ProblemStatement)
	require.Equal(t, "QR scans, due dates", fingerprint.InputSources)
	require.Equal(t, "reminder scheduling", fingerprint.CoreProcess)
	require.Equal(t, "3", fingerprint.ExpectedOutput)
	require.Empty(t, fingerprint.PrimaryTech)
	require.True(t, completer.opts[0].ExpectJSON)
	require.Contains(t, completer.lastPrompt(), "Title: Library")
}

func TestFingerprintServiceUnavailable(t *testing.T) {
	svc := NewFingerprintService(exhausted(), nil, time.Hour, testLogger())
	fingerprint, err := svc.Extract(context.Background(), "t", "a")
	require.ErrorIs(t, err, ErrFingerprintUnavailable)
	require.Nil(t, fingerprint)

	svc = NewFingerprintService(&stubCompleter{reply: "no json here"}, nil, time.Hour, testLogger())
	_, err = svc.Extract(context.Background(), "t", "a")
	require.ErrorIs(t, err, ErrFingerprintUnavailable)
}

func TestFingerprintServiceCachesInRedis(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	completer := &stubCompleter{reply: `{"problem_statement":"p","core_process":"c"}`}
	svc := NewFingerprintService(completer, redisClient, time.Hour, testLogger())

	first, err := svc.Extract(context.Background(), "Title", "Abstract")
	require.NoError(t, err)
	second, err := svc.Extract(context.Background(), "Title", "Abstract")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, completer.callCount())

	key := fingerprintCacheKey("Title", "Abstract")
	require.True(t, server.Exists(key))
	require.Equal(t, time.Hour, server.TTL(key))
}
