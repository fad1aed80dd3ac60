package timeline

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/creatorlink/chatsync/chat"
	"github.com/creatorlink/chatsync/metrics"
)

const (
	backoffMinInterval = 1 * time.Second
	backoffMaxInterval = 60 * time.Second
	backoffMultiplier  = 1.5
)

// Engine glues the pull and push sides together for one session: it seeds
// the store from history, owns the live channel for the session lifetime,
// routes inbound events into the store in arrival order and runs the
// send path (optimistic append, durable write, advisory publish).
type Engine struct {
	store      *Store
	controller *Controller
	history    IHistory
	dial       DialFunc

	mu      sync.Mutex
	channel ILiveChannel
}

func NewEngine(store *Store, history IHistory, dial DialFunc) *Engine {
	return &Engine{
		store:      store,
		controller: NewController(store, history),
		history:    history,
		dial:       dial,
	}
}

func (e *Engine) Store() *Store           { return e.store }
func (e *Engine) Controller() *Controller { return e.controller }

// RefreshList fetches the conversation list and seeds the store. The
// arrival token is captured before the fetch is issued, so live bumps
// that race the response survive it. On failure the prior list stays
// untouched and the error is the retry affordance.
func (e *Engine) RefreshList(ctx context.Context) error {
	token := e.store.BeginListFetch()
	convs, err := e.history.ListConversations(ctx)
	if err != nil {
		glog.Errorf("RefreshList(): %v", err)
		return err
	}
	e.store.SeedList(convs, token)
	return nil
}

// Send runs the full send path for the active conversation: optimistic
// append, durable HTTP write, then the advisory push notification. A
// publish failure is logged and swallowed: the write already succeeded
// and must not be rolled back.
func (e *Engine) Send(ctx context.Context, peerID int64, content string) error {
	pending := e.store.ApplyOutboundSend(peerID, content)

	durable, err := e.history.Send(ctx, peerID, content)
	if err != nil {
		glog.Errorf("Send(): durable write to peer %d failed: %v", peerID, err)
		e.store.FailSend(pending)
		return err
	}
	e.store.ConfirmSend(pending, durable)

	if ch := e.liveChannel(); ch != nil {
		if perr := ch.Publish(peerID, content); perr != nil {
			glog.Errorf("Send(): advisory publish to peer %d failed: %v", peerID, perr)
		}
	}
	return nil
}

func (e *Engine) liveChannel() ILiveChannel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel
}

func (e *Engine) setLiveChannel(ch ILiveChannel) {
	e.mu.Lock()
	e.channel = ch
	e.mu.Unlock()
}

// SearchUsers proxies the directory search.
func (e *Engine) SearchUsers(ctx context.Context, query string) ([]chat.User, error) {
	return e.history.SearchUsers(ctx, query)
}

// Run owns the live channel until ctx is cancelled: dial, drain events
// into the store, reconnect with truncated exponential backoff on remote
// disconnect. Cancelling ctx releases the connection; an abandoned
// reconnect loop after logout would leak one.
func (e *Engine) Run(ctx context.Context) {
	glog.Info("Run(): live loop enter")
	defer glog.Info("Run(): live loop exited")

	var sleep time.Duration

	for {
		ch, err := e.dial(ctx)
		if err != nil {
			glog.Errorf("Run(): dial error: %v", err)
			backoff(&sleep)
			select {
			case <-time.After(sleep):
				continue
			case <-ctx.Done():
				return
			}
		}

		sleep = 0
		e.setLiveChannel(ch)
		metrics.Reconnects.Inc()

		e.drain(ctx, ch)
		e.setLiveChannel(nil)

		select {
		case <-ctx.Done():
			return
		default:
		}

		if cause := ch.Err(); cause != nil {
			glog.Errorf("Run(): channel lost: %v, reconnecting", cause)
		} else {
			// Closed locally without ctx cancellation; stop anyway.
			return
		}

		backoff(&sleep)
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return
		}
	}
}

// drain applies events strictly in arrival order until the channel closes
// or ctx is cancelled.
func (e *Engine) drain(ctx context.Context, ch ILiveChannel) {
	for {
		select {
		case <-ctx.Done():
			ch.Close()
			// Drain the remainder so the read loop can exit.
			for range ch.Events() {
			}
			return
		case ev, ok := <-ch.Events():
			if !ok {
				return
			}
			glog.V(5).Infof("drain(): event from %d to %d", ev.SenderID, ev.ReceiverID)
			e.store.ApplyInbound(ev)
		}
	}
}

func backoff(d *time.Duration) {
	if *d == 0 {
		*d = backoffMinInterval
		return
	}
	*d = time.Duration(float64(*d) * backoffMultiplier)
	if *d > backoffMaxInterval {
		*d = backoffMaxInterval
	}
}
