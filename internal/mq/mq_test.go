package mq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus, err := New()
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan string, 1)
	bus.Subscribe("test-handler", TopicNewMessage, func(ctx context.Context, payload []byte, md map[string]string) error {
		received <- string(payload)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = bus.Run(ctx)
	}()
	<-bus.Running()

	require.NoError(t, bus.Publish(ctx, TopicNewMessage, []byte("hello"), nil))

	select {
	case got := <-received:
		require.Equal(t, "hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
