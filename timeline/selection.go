package timeline

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/creatorlink/chatsync/api"
	"github.com/creatorlink/chatsync/chat"
)

const markReadTimeout = 5 * time.Second

// Controller tracks the active selection and drives timeline loads. The
// selection is bound to a shareable identifier (the peer id), so a deep
// link can pre-select a conversation.
type Controller struct {
	store   *Store
	history IHistory
}

func NewController(store *Store, history IHistory) *Controller {
	return &Controller{store: store, history: history}
}

// Select makes peerID the active conversation and (re)loads its history.
// Selecting the already-active peer is a no-op. Switching away from a peer
// with a timeline fetch still in flight needs no hard cancellation: the
// stale result is suppressed by the epoch guard when it resolves.
//
// A TransportError leaves the (empty) timeline as is and is returned as
// the retry affordance; an unknown peer yields an empty timeline and nil.
func (c *Controller) Select(ctx context.Context, peerID int64) error {
	if peerID == c.store.Active() {
		return nil
	}

	epoch := c.store.Activate(peerID)
	if peerID == 0 {
		return nil
	}

	// Durable mark-read is triggered, not awaited.
	go func() {
		ctx2, cancel := context.WithTimeout(context.Background(), markReadTimeout)
		defer cancel()
		if err := c.history.MarkRead(ctx2, peerID); err != nil {
			glog.Errorf("Select(): mark read peer %d error: %v", peerID, err)
		}
	}()

	msgs, err := c.history.LoadTimeline(ctx, peerID)
	if err != nil {
		if api.IsNotFound(err) {
			glog.V(5).Infof("Select(): peer %d unknown, starting empty timeline", peerID)
			c.store.SeedTimeline(peerID, epoch, nil)
			return nil
		}
		glog.Errorf("Select(): load timeline peer %d error: %v", peerID, err)
		return err
	}

	c.store.SeedTimeline(peerID, epoch, msgs)
	return nil
}

// Deselect deactivates live-append routing: inbound events for any peer
// then only update list-level previews and unread counts.
func (c *Controller) Deselect() {
	if c.store.Active() != 0 {
		c.store.Activate(0)
	}
}

// Refresh reloads the active timeline in place, keeping the selection.
func (c *Controller) Refresh(ctx context.Context) error {
	peerID := c.store.Active()
	if peerID == 0 {
		return nil
	}
	epoch := c.store.Activate(peerID)
	msgs, err := c.history.LoadTimeline(ctx, peerID)
	if err != nil {
		if api.IsNotFound(err) {
			c.store.SeedTimeline(peerID, epoch, nil)
			return nil
		}
		return err
	}
	c.store.SeedTimeline(peerID, epoch, msgs)
	return nil
}

// StartConversation selects a directory user who may have no history yet.
func (c *Controller) StartConversation(ctx context.Context, u chat.User) error {
	c.store.EnsureConversation(u)
	return c.Select(ctx, u.UserID)
}
