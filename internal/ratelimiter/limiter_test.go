package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/ratelimiter"
)

func TestChannelLimiters_BurstThenBlocks(t *testing.T) {
	l := ratelimiter.New(map[domain.Channel]int{domain.ChannelSMS: 2})

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, domain.ChannelSMS))
	require.NoError(t, l.Wait(ctx, domain.ChannelSMS))

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(short, domain.ChannelSMS))
}

func TestChannelLimiters_UnlimitedChannels(t *testing.T) {
	l := ratelimiter.New(map[domain.Channel]int{domain.ChannelEmail: 0})

	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Wait(context.Background(), domain.ChannelEmail))
		require.NoError(t, l.Wait(context.Background(), domain.ChannelPush))
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(cancelled, domain.ChannelPush), context.Canceled)
}
