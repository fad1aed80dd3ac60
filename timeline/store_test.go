package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/creatorlink/chatsync/chat"
)

var self = chat.Session{UserID: 10, Name: "me", Token: "10:me"}

func event(sender, receiver int64, content string, at time.Time) chat.MessageEvent {
	return chat.MessageEvent{SenderID: sender, ReceiverID: receiver, Content: content, CreatedAt: at}
}

func TestInboundCreatesConversation(t *testing.T) {
	s := NewStore(self)
	t1 := time.Now()

	s.ApplyInbound(event(7, self.UserID, "hi", t1))

	convs := s.Conversations()
	assert.Len(t, convs, 1)
	assert.EqualValues(t, 7, convs[0].PeerID)
	assert.Equal(t, "hi", convs[0].LastMessage)
	assert.Equal(t, 1, convs[0].Unread)
}

func TestInboundDedup(t *testing.T) {
	s := NewStore(self)
	s.Activate(7)
	base := time.Now()

	events := []chat.MessageEvent{
		event(7, self.UserID, "a", base),
		event(7, self.UserID, "b", base.Add(time.Second)),
		event(self.UserID, 7, "c", base.Add(2*time.Second)),
	}
	for _, ev := range events {
		s.ApplyInbound(ev)
	}
	// Same logical messages again, via the second delivery path, with
	// slightly skewed timestamps inside the tolerance window.
	for _, ev := range events {
		ev.CreatedAt = ev.CreatedAt.Add(500 * time.Millisecond)
		s.ApplyInbound(ev)
	}

	msgs := s.Timeline()
	assert.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "b", msgs[1].Content)
	assert.Equal(t, "c", msgs[2].Content)
}

func TestInboundOrdering(t *testing.T) {
	s := NewStore(self)
	s.Activate(7)
	base := time.Now()

	s.ApplyInbound(event(7, self.UserID, "late", base.Add(10*time.Second)))
	s.ApplyInbound(event(7, self.UserID, "early", base))

	msgs := s.Timeline()
	assert.Len(t, msgs, 2)
	assert.Equal(t, "early", msgs[0].Content)
	assert.Equal(t, "late", msgs[1].Content)
	assert.False(t, msgs[1].CreatedAt.Before(msgs[0].CreatedAt))
}

func TestUnreadLifecycle(t *testing.T) {
	s := NewStore(self)
	base := time.Now()

	for i := 0; i < 3; i++ {
		s.ApplyInbound(event(7, self.UserID, "msg", base.Add(time.Duration(i)*time.Hour)))
	}
	assert.Equal(t, 3, s.Conversations()[0].Unread)

	// Activation is the mark-read side effect.
	s.Activate(7)
	assert.Equal(t, 0, s.Conversations()[0].Unread)

	// While active, inbound events do not count as unread.
	s.ApplyInbound(event(7, self.UserID, "live", base.Add(4*time.Hour)))
	assert.Equal(t, 0, s.Conversations()[0].Unread)
	assert.Len(t, s.Timeline(), 1)
}

func TestOwnEchoDoesNotBumpUnread(t *testing.T) {
	s := NewStore(self)

	// Push echo of a message the local user sent from another view.
	s.ApplyInbound(event(self.UserID, 7, "mine", time.Now()))

	convs := s.Conversations()
	assert.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].Unread)
	assert.Equal(t, "mine", convs[0].LastMessage)
}

func TestStaleTimelineFetchDiscarded(t *testing.T) {
	s := NewStore(self)
	base := time.Now()

	epochA := s.Activate(1)
	epochB := s.Activate(2)

	okB := s.SeedTimeline(2, epochB, []chat.Message{
		{ID: 5, SenderID: 2, ReceiverID: self.UserID, Content: "from b", CreatedAt: base},
	})
	assert.True(t, okB)

	// A's slow response arrives after the selection moved on.
	okA := s.SeedTimeline(1, epochA, []chat.Message{
		{ID: 9, SenderID: 1, ReceiverID: self.UserID, Content: "from a", CreatedAt: base},
	})
	assert.False(t, okA)

	msgs := s.Timeline()
	assert.Len(t, msgs, 1)
	assert.Equal(t, "from b", msgs[0].Content)
}

func TestSeedTimelineKeepsInFlightEntries(t *testing.T) {
	s := NewStore(self)
	base := time.Now()
	epoch := s.Activate(7)

	// Between selection and fetch resolution: one live event and one
	// optimistic send.
	s.ApplyInbound(event(7, self.UserID, "live", base.Add(-time.Minute)))
	s.ApplyOutboundSend(7, "optimistic")

	ok := s.SeedTimeline(7, epoch, []chat.Message{
		{ID: 1, SenderID: 7, ReceiverID: self.UserID, Content: "old", CreatedAt: base.Add(-time.Hour)},
	})
	assert.True(t, ok)

	msgs := s.Timeline()
	assert.Len(t, msgs, 3)
	assert.Equal(t, "old", msgs[0].Content)
	assert.Equal(t, "live", msgs[1].Content)
	assert.Equal(t, "optimistic", msgs[2].Content)
	assert.True(t, msgs[2].Pending)
}

func TestOptimisticSendConfirm(t *testing.T) {
	s := NewStore(self)
	s.Activate(7)

	p := s.ApplyOutboundSend(7, "hello")

	msgs := s.Timeline()
	assert.Len(t, msgs, 1)
	assert.True(t, msgs[0].Pending)
	assert.EqualValues(t, 0, msgs[0].ID)

	t2 := time.Now().Add(time.Second)
	s.ConfirmSend(p, &chat.Message{
		ID: 42, SenderID: self.UserID, ReceiverID: 7, Content: "hello",
		CreatedAt: t2, SenderName: "me", ReceiverName: "peer",
	})

	msgs = s.Timeline()
	assert.Len(t, msgs, 1)
	assert.EqualValues(t, 42, msgs[0].ID)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.False(t, msgs[0].Pending)
	assert.Equal(t, t2, msgs[0].CreatedAt)
	assert.Equal(t, "peer", msgs[0].ReceiverName)
}

func TestOptimisticSendThenEchoIsSingleMessage(t *testing.T) {
	s := NewStore(self)
	s.Activate(7)

	p := s.ApplyOutboundSend(7, "hello")
	serverAt := time.Now().Add(300 * time.Millisecond)
	s.ConfirmSend(p, &chat.Message{ID: 42, SenderID: self.UserID, ReceiverID: 7, Content: "hello", CreatedAt: serverAt})

	// The advisory push path delivers the same logical message.
	s.ApplyInbound(event(self.UserID, 7, "hello", serverAt))

	msgs := s.Timeline()
	assert.Len(t, msgs, 1)
	assert.EqualValues(t, 42, msgs[0].ID)
}

func TestFailedSendStaysVisible(t *testing.T) {
	s := NewStore(self)
	s.Activate(7)

	p := s.ApplyOutboundSend(7, "doomed")
	s.FailSend(p)

	msgs := s.Timeline()
	assert.Len(t, msgs, 1)
	assert.True(t, msgs[0].Failed)
	assert.False(t, msgs[0].Pending)

	assert.True(t, s.RemoveFailed(msgs[0].LocalID))
	assert.Empty(t, s.Timeline())
}

func TestConfirmAfterSelectionSwitch(t *testing.T) {
	s := NewStore(self)
	s.Activate(7)
	p := s.ApplyOutboundSend(7, "hello")

	s.Activate(8)
	s.ConfirmSend(p, &chat.Message{ID: 42, SenderID: self.UserID, ReceiverID: 7, Content: "hello", CreatedAt: time.Now()})

	// 8's timeline is untouched; 7's preview was updated at send time.
	assert.Empty(t, s.Timeline())
	convs := s.Conversations()
	assert.EqualValues(t, 7, convs[0].PeerID)
	assert.Equal(t, "hello", convs[0].LastMessage)
}

func TestSeedListPreservesRacedUnread(t *testing.T) {
	s := NewStore(self)
	base := time.Now()

	// Fetch issued, then a live bump arrives before it resolves.
	token := s.BeginListFetch()
	s.ApplyInbound(event(7, self.UserID, "raced", base))

	s.SeedList([]chat.Conversation{
		{PeerID: 7, PeerName: "peer", LastMessage: "stale", LastMessageTime: base.Add(-time.Hour), Unread: 0},
	}, token)

	convs := s.Conversations()
	assert.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].Unread)
	assert.Equal(t, "peer", convs[0].PeerName)

	// A fetch issued after the bump is authoritative: last arrival wins.
	token = s.BeginListFetch()
	s.SeedList([]chat.Conversation{
		{PeerID: 7, PeerName: "peer", LastMessage: "read elsewhere", Unread: 0},
	}, token)
	assert.Equal(t, 0, s.Conversations()[0].Unread)
}

func TestSeedListKeepsConversationUnknownToStaleFetch(t *testing.T) {
	s := NewStore(self)

	token := s.BeginListFetch()
	s.ApplyInbound(event(9, self.UserID, "new peer", time.Now()))

	s.SeedList([]chat.Conversation{{PeerID: 7, PeerName: "old"}}, token)

	convs := s.Conversations()
	assert.Len(t, convs, 2)
	assert.EqualValues(t, 9, convs[0].PeerID)
	assert.Equal(t, 1, convs[0].Unread)
}

func TestSeedListKeepsSendCreatedConversation(t *testing.T) {
	s := NewStore(self)
	s.Activate(5)

	token := s.BeginListFetch()
	s.ApplyOutboundSend(5, "first contact")

	// The response predates the send and does not know peer 5.
	s.SeedList([]chat.Conversation{{PeerID: 7, PeerName: "old"}}, token)

	convs := s.Conversations()
	assert.Len(t, convs, 2)
	assert.EqualValues(t, 5, convs[0].PeerID)
	assert.Equal(t, "first contact", convs[0].LastMessage)
	assert.Len(t, s.Timeline(), 1)
}

func TestSeedListKeepsEnsuredConversation(t *testing.T) {
	s := NewStore(self)

	token := s.BeginListFetch()
	s.EnsureConversation(chat.User{UserID: 5, Name: "fresh"})

	s.SeedList([]chat.Conversation{{PeerID: 7, PeerName: "old"}}, token)

	convs := s.Conversations()
	assert.Len(t, convs, 2)
	assert.EqualValues(t, 5, convs[0].PeerID)
	assert.Equal(t, "fresh", convs[0].PeerName)
}

func TestSeedListPinsActiveUnreadToZero(t *testing.T) {
	s := NewStore(self)
	s.Activate(7)

	token := s.BeginListFetch()
	s.SeedList([]chat.Conversation{{PeerID: 7, Unread: 4}}, token)

	assert.Equal(t, 0, s.Conversations()[0].Unread)
}

func TestRecencyOrder(t *testing.T) {
	s := NewStore(self)
	base := time.Now()

	s.ApplyInbound(event(1, self.UserID, "one", base))
	s.ApplyInbound(event(2, self.UserID, "two", base.Add(time.Minute)))
	s.ApplyInbound(event(1, self.UserID, "one again", base.Add(2*time.Minute)))

	convs := s.Conversations()
	assert.EqualValues(t, 1, convs[0].PeerID)
	assert.EqualValues(t, 2, convs[1].PeerID)
}

func TestEnsureConversation(t *testing.T) {
	s := NewStore(self)
	u := chat.User{UserID: 5, Name: "candidate", UserType: "influencer"}

	s.EnsureConversation(u)
	s.EnsureConversation(u)

	convs := s.Conversations()
	assert.Len(t, convs, 1)
	assert.Equal(t, "candidate", convs[0].PeerName)
	assert.Equal(t, 0, convs[0].Unread)
}
