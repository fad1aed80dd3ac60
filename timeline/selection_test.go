package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/creatorlink/chatsync/api"
	"github.com/creatorlink/chatsync/chat"
)

// fakeHistory is a hand-rolled IHistory whose behavior is set per test.
// Selection tests need it instead of the generated mock because MarkRead
// is fired on a goroutine and may land after the test body returns.
type fakeHistory struct {
	mu sync.Mutex

	loadTimeline func(peerID int64) ([]chat.Message, error)
	marked       []int64
}

func (f *fakeHistory) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	return nil, nil
}

func (f *fakeHistory) LoadTimeline(ctx context.Context, peerID int64) ([]chat.Message, error) {
	if f.loadTimeline != nil {
		return f.loadTimeline(peerID)
	}
	return nil, nil
}

func (f *fakeHistory) Send(ctx context.Context, receiverID int64, content string) (*chat.Message, error) {
	return &chat.Message{ID: 1, SenderID: 0, ReceiverID: receiverID, Content: content, CreatedAt: time.Now()}, nil
}

func (f *fakeHistory) SearchUsers(ctx context.Context, query string) ([]chat.User, error) {
	return nil, nil
}

func (f *fakeHistory) MarkRead(ctx context.Context, peerID int64) error {
	f.mu.Lock()
	f.marked = append(f.marked, peerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeHistory) markedPeers() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.marked))
	copy(out, f.marked)
	return out
}

func TestSelectLoadsTimeline(t *testing.T) {
	s := NewStore(self)
	base := time.Now()
	h := &fakeHistory{
		loadTimeline: func(peerID int64) ([]chat.Message, error) {
			return []chat.Message{
				{ID: 1, SenderID: peerID, ReceiverID: self.UserID, Content: "hi", CreatedAt: base},
			}, nil
		},
	}
	c := NewController(s, h)

	assert.NoError(t, c.Select(context.Background(), 7))
	assert.EqualValues(t, 7, s.Active())

	msgs := s.Timeline()
	assert.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)

	// mark-read fires asynchronously
	assert.Eventually(t, func() bool {
		peers := h.markedPeers()
		return len(peers) == 1 && peers[0] == 7
	}, time.Second, 10*time.Millisecond)
}

func TestSelectSamePeerIsNoop(t *testing.T) {
	s := NewStore(self)
	var calls int
	h := &fakeHistory{
		loadTimeline: func(int64) ([]chat.Message, error) {
			calls++
			return nil, nil
		},
	}
	c := NewController(s, h)

	assert.NoError(t, c.Select(context.Background(), 7))
	assert.NoError(t, c.Select(context.Background(), 7))
	assert.Equal(t, 1, calls)
}

func TestSelectUnknownPeerStartsEmpty(t *testing.T) {
	s := NewStore(self)
	h := &fakeHistory{
		loadTimeline: func(peerID int64) ([]chat.Message, error) {
			return nil, &api.NotFoundError{PeerID: peerID}
		},
	}
	c := NewController(s, h)

	assert.NoError(t, c.Select(context.Background(), 99))
	assert.EqualValues(t, 99, s.Active())
	assert.Empty(t, s.Timeline())
}

func TestSelectTransportErrorSurfaced(t *testing.T) {
	s := NewStore(self)
	h := &fakeHistory{
		loadTimeline: func(int64) ([]chat.Message, error) {
			return nil, &api.TransportError{Op: "GET /api/messages/7", Err: context.DeadlineExceeded}
		},
	}
	c := NewController(s, h)

	err := c.Select(context.Background(), 7)
	assert.Error(t, err)
	// Selection moved anyway; retry is the caller's affordance.
	assert.EqualValues(t, 7, s.Active())
}

func TestSlowFetchDoesNotClobberNewerSelection(t *testing.T) {
	s := NewStore(self)
	base := time.Now()

	release := make(chan struct{})
	h := &fakeHistory{
		loadTimeline: func(peerID int64) ([]chat.Message, error) {
			if peerID == 1 {
				<-release // peer 1 is slow
			}
			return []chat.Message{
				{ID: peerID, SenderID: peerID, ReceiverID: self.UserID, Content: "from", CreatedAt: base},
			}, nil
		},
	}
	c := NewController(s, h)

	done := make(chan error, 1)
	go func() { done <- c.Select(context.Background(), 1) }()

	// Let the slow select register its epoch before moving on.
	assert.Eventually(t, func() bool { return s.Active() == 1 }, time.Second, time.Millisecond)

	assert.NoError(t, c.Select(context.Background(), 2))
	close(release)
	assert.NoError(t, <-done)

	msgs := s.Timeline()
	assert.EqualValues(t, 2, s.Active())
	assert.Len(t, msgs, 1)
	assert.EqualValues(t, 2, msgs[0].SenderID)
}

func TestDeselectStopsLiveAppend(t *testing.T) {
	s := NewStore(self)
	c := NewController(s, &fakeHistory{})

	assert.NoError(t, c.Select(context.Background(), 7))
	c.Deselect()

	s.ApplyInbound(event(7, self.UserID, "while away", time.Now()))
	assert.Empty(t, s.Timeline())
	assert.Equal(t, 1, s.Conversations()[0].Unread)
}

func TestStartConversation(t *testing.T) {
	s := NewStore(self)
	h := &fakeHistory{
		loadTimeline: func(peerID int64) ([]chat.Message, error) {
			return nil, &api.NotFoundError{PeerID: peerID}
		},
	}
	c := NewController(s, h)

	u := chat.User{UserID: 5, Name: "candidate", UserType: "agency"}
	assert.NoError(t, c.StartConversation(context.Background(), u))
	assert.EqualValues(t, 5, s.Active())

	convs := s.Conversations()
	assert.Len(t, convs, 1)
	assert.Equal(t, "candidate", convs[0].PeerName)
}
