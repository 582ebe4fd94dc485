package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonychat/anonychat-api/internal/infrastructure/config"
)

func TestConnectThrottle(t *testing.T) {
	mr := miniredis.RunT(t)

	throttle, client := connectThrottle(context.Background(), config.RedisConfig{
		Addr:    mr.Addr(),
		Timeout: time.Second,
	}, zerolog.Nop())
	require.NotNil(t, throttle)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	ok, err := throttle.Allow(context.Background(), "boot", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnectThrottle_UnreachableRedisDisablesThrottling(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	throttle, client := connectThrottle(context.Background(), config.RedisConfig{
		Addr:    addr,
		Timeout: 200 * time.Millisecond,
	}, zerolog.Nop())

	assert.Nil(t, client)
	// A nil interface, not a typed nil, so services see throttling as off.
	assert.True(t, throttle == nil)
}
