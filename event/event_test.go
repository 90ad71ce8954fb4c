package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	e, err := New(MessagesRead, StatusChangePayload{
		ChatID:     7,
		MessageIDs: []uint{1, 2, 3},
		Status:     "READ",
		UserID:     4,
	})
	require.NoError(t, err)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	decoded := Event{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, MessagesRead, decoded.Type)

	payload := StatusChangePayload{}
	require.NoError(t, json.Unmarshal(decoded.Payload, &payload))
	assert.Equal(t, uint(7), payload.ChatID)
	assert.Equal(t, []uint{1, 2, 3}, payload.MessageIDs)
	assert.Equal(t, uint(4), payload.UserID)
}

func TestTypeKnown(t *testing.T) {
	known := []Type{
		NewMessage, NewChat, MessagesDelivered, MessagesRead,
		MessageStatusUpdate, MessageDeleted, MessageReaction,
		ContactRequest, ContactRequestAccepted, ContactRequestRejected,
		ContactBlocked, ContactUnblocked, NotificationsCleared,
		ContactRequestsViewed,
	}
	for _, tp := range known {
		assert.True(t, tp.Known(), string(tp))
	}
	assert.False(t, Type("MESSAGE_EDITED").Known())
	assert.False(t, Type("").Known())
}

func TestDispatchRoutesToHandler(t *testing.T) {
	var got []Event
	handlers := HandlerTable{
		NewMessage: func(_ context.Context, e Event) { got = append(got, e) },
	}

	e, err := New(NewMessage, NewMessagePayload{ChatID: 1, SenderID: 2})
	require.NoError(t, err)
	raw, err := json.Marshal(e)
	require.NoError(t, err)

	Dispatch(context.Background(), zap.NewNop(), handlers, raw)
	require.Len(t, got, 1)
	assert.Equal(t, NewMessage, got[0].Type)
}

func TestDispatchDropsBadInput(t *testing.T) {
	called := false
	handlers := HandlerTable{
		NewMessage: func(context.Context, Event) { called = true },
	}
	log := zap.NewNop()
	ctx := context.Background()

	// Malformed JSON
	Dispatch(ctx, log, handlers, []byte("{nope"))
	// Unknown type
	Dispatch(ctx, log, handlers, []byte(`{"type":"MESSAGE_EDITED","payload":{}}`))
	// Known type without a registered handler
	Dispatch(ctx, log, handlers, []byte(`{"type":"NEW_CHAT","payload":{}}`))

	assert.False(t, called)
}

func TestRecipientOmitsEmptySocket(t *testing.T) {
	raw, err := json.Marshal(Recipient{UserID: 3})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "socket_id")
}
