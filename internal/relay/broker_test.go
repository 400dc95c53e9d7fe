package relay

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/collabtext/collabtext/pkg/metrics"
)

func recv(t *testing.T, s *Subscription) Message {
	t.Helper()
	select {
	case m, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	b := NewBroker(4)
	a := b.Subscribe("/topic/updates/1")
	c := b.Subscribe("/topic/updates/1")
	other := b.Subscribe("/topic/updates/2")
	defer a.Close()
	defer c.Close()
	defer other.Close()

	require.NoError(t, b.Publish(context.Background(), "/topic/updates/1", map[string]string{"content": "Hello"}))

	require.JSONEq(t, `{"content":"Hello"}`, string(recv(t, a).Payload))
	require.JSONEq(t, `{"content":"Hello"}`, string(recv(t, c).Payload))
	select {
	case <-other.C():
		t.Fatal("other topic must not receive")
	default:
	}
}

func TestBroker_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBroker(4)
	b.PublishRaw("/topic/newDocument", []byte(`{}`))
	s := b.Subscribe("/topic/newDocument")
	defer s.Close()
	select {
	case <-s.C():
		t.Fatal("late subscriber must not see earlier messages")
	default:
	}
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := NewBroker(1)
	s := b.Subscribe("/topic/renameDocument")
	defer s.Close()

	before := testutil.ToFloat64(metrics.RelayDropped.WithLabelValues("renameDocument"))
	b.PublishRaw("/topic/renameDocument", []byte(`1`))
	b.PublishRaw("/topic/renameDocument", []byte(`2`))
	b.PublishRaw("/topic/renameDocument", []byte(`3`))

	require.Equal(t, before+2, testutil.ToFloat64(metrics.RelayDropped.WithLabelValues("renameDocument")))
	require.Equal(t, "1", string(recv(t, s).Payload))
}

func TestSubscription_Close(t *testing.T) {
	b := NewBroker(1)
	s := b.Subscribe("/topic/deleteDocument")
	require.Equal(t, 1, b.Subscribers("/topic/deleteDocument"))
	s.Close()
	s.Close()
	require.Equal(t, 0, b.Subscribers("/topic/deleteDocument"))
	_, ok := <-s.C()
	require.False(t, ok)

	// publishing after close must not panic
	b.PublishRaw("/topic/deleteDocument", []byte(`{}`))
}

func TestBroker_PublishEncodeError(t *testing.T) {
	b := NewBroker(1)
	require.Error(t, b.Publish(context.Background(), "/topic/x", make(chan int)))
}

func TestTopicKind(t *testing.T) {
	require.Equal(t, "updates", TopicKind("/topic/updates/12"))
	require.Equal(t, "activeUsers", TopicKind("/topic/activeUsers/3"))
	require.Equal(t, "newDocument", TopicKind("/topic/newDocument"))
	require.Equal(t, "unknown", TopicKind("/topic/"))
}
