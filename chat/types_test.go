package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeerOf(t *testing.T) {
	ev := &MessageEvent{SenderID: 1, ReceiverID: 2}
	assert.EqualValues(t, 2, ev.PeerOf(1))
	assert.EqualValues(t, 1, ev.PeerOf(2))
	assert.EqualValues(t, 0, ev.PeerOf(3))
}

func TestSameIdentity(t *testing.T) {
	at := time.Now()
	m := &Message{SenderID: 1, ReceiverID: 2, Content: "hi", CreatedAt: at}

	ev := MessageEvent{SenderID: 1, ReceiverID: 2, Content: "hi", CreatedAt: at}
	assert.True(t, m.SameIdentity(&ev))

	skewed := ev
	skewed.CreatedAt = at.Add(DedupWindow)
	assert.True(t, m.SameIdentity(&skewed))

	late := ev
	late.CreatedAt = at.Add(DedupWindow + time.Millisecond)
	assert.False(t, m.SameIdentity(&late))

	other := ev
	other.Content = "bye"
	assert.False(t, m.SameIdentity(&other))
}
