package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsWithinWindow(t *testing.T) {
	rl := New(3, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"), "4. istek limiti aşmalı")

	// Farklı key etkilenmez
	assert.True(t, rl.Allow("u2"))
}

func TestLimiterWindowRollover(t *testing.T) {
	rl := New(2, 50*time.Millisecond)
	defer rl.Stop()

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))

	time.Sleep(60 * time.Millisecond)

	// Pencere devrildi — sayaç sıfırlanır
	assert.True(t, rl.Allow("u1"))
}

func TestLimiterReset(t *testing.T) {
	rl := New(1, time.Minute)
	defer rl.Stop()

	require.True(t, rl.Allow("ip1"))
	require.False(t, rl.Allow("ip1"))

	rl.Reset("ip1")
	assert.True(t, rl.Allow("ip1"))
}

func TestRetryAfterSeconds(t *testing.T) {
	rl := New(1, 10*time.Second)
	defer rl.Stop()

	assert.Equal(t, 0, rl.RetryAfterSeconds("u1"), "bucket yokken 0 döner")

	rl.Allow("u1")
	retry := rl.RetryAfterSeconds("u1")
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 11)
}

func TestNewBucketsDefaults(t *testing.T) {
	b := NewBuckets(BucketsConfig{})

	require.NotNil(t, b.MessageSend)
	require.NotNil(t, b.WebhookPost)
	require.NotNil(t, b.FriendRequest)
	require.NotNil(t, b.InviteCreate)
	require.NotNil(t, b.AuthLogin)
	require.NotNil(t, b.SocketEvent)

	// Varsayılan: 10 mesaj / 10 sn
	for i := 0; i < 10; i++ {
		assert.True(t, b.MessageSend.Allow("u1"))
	}
	assert.False(t, b.MessageSend.Allow("u1"))
}

func TestNewBucketsOverride(t *testing.T) {
	b := NewBuckets(BucketsConfig{
		MessageSend: BucketConfig{Max: 1, Window: time.Minute},
	})

	assert.True(t, b.MessageSend.Allow("u1"))
	assert.False(t, b.MessageSend.Allow("u1"))

	// Override edilmeyen bucket varsayılanda kalır
	assert.True(t, b.AuthLogin.Allow("ip"))
}
