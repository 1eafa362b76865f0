package renderer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/JFJun/kernel/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgePublishesOnBus(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.RendererPrefix, 4)
	defer unsub()

	NewBridge(b).Send(UpdateTotalFriends{TotalFriends: 3})

	select {
	case evt := <-ch:
		assert.Equal(t, "renderer.UpdateTotalFriends", evt.Kind)
		assert.Equal(t, UpdateTotalFriends{TotalFriends: 3}, evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for renderer event")
	}
}

func TestBridgeReadiness(t *testing.T) {
	b := bus.New()
	r := NewBridge(b)
	r.Start(context.Background())
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.WaitReady(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- r.WaitReady(context.Background()) }()
	b.Emit(bus.GatewayConnected, nil)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return after gateway connected")
	}

	r.SetReady(false)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.Error(t, r.WaitReady(ctx2), "disconnect must reset readiness")
}

func TestPayloadJSONShape(t *testing.T) {
	data, err := json.Marshal(JoinChannelError{ChannelError{ChannelID: "plaza", ErrorCode: ChannelErrorLimitExceeded}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"channelId":"plaza","errorCode":1}`, string(data))

	data, err = json.Marshal(AddMessageToChatWindow{ChatMessage{MessageID: "m1", MessageType: MessagePrivate, Timestamp: 5, Body: "hi"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"messageId":"m1","messageType":"PRIVATE","timestamp":5,"body":"hi"}`, string(data))
}

func TestRecorderFilters(t *testing.T) {
	r := NewRecorder()
	r.Send(UpdateTotalFriends{TotalFriends: 1})
	r.Send(UpdateTotalUnseenMessages{Total: 2})
	r.Send(UpdateTotalFriends{TotalFriends: 5})

	assert.Len(t, Sent[UpdateTotalFriends](r), 2)
	last, ok := Last[UpdateTotalFriends](r)
	require.True(t, ok)
	assert.Equal(t, 5, last.TotalFriends)
	_, ok = Last[ShowNotification](r)
	assert.False(t, ok)
}
