package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeParticipants(t *testing.T) {
	a, b := NormalizeParticipants(7, 3)
	assert.Equal(t, uint64(3), a)
	assert.Equal(t, uint64(7), b)

	a, b = NormalizeParticipants(3, 7)
	assert.Equal(t, uint64(3), a)
	assert.Equal(t, uint64(7), b)

	a, b = NormalizeParticipants(5, 5)
	assert.Equal(t, uint64(5), a)
	assert.Equal(t, uint64(5), b)
}

func TestHasParticipant(t *testing.T) {
	conv := &Conversation{ID: 1, Participant1ID: 3, Participant2ID: 7}
	assert.True(t, conv.HasParticipant(3))
	assert.True(t, conv.HasParticipant(7))
	assert.False(t, conv.HasParticipant(4))
}

func TestNewMessageDefaults(t *testing.T) {
	msg := NewMessage(9, 3, "hello")
	assert.Equal(t, uint64(9), msg.ConversationID)
	assert.Equal(t, uint64(3), msg.SenderID)
	assert.Equal(t, MessageStatusSent, msg.Status)
	assert.False(t, msg.Timestamp.IsZero())

	msg.MarkDelivered()
	assert.Equal(t, MessageStatusDelivered, msg.Status)
}
