package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/creatorlink/chatsync/chat"
)

// State is the channel lifecycle state. A channel never redials itself;
// its owner reconnects by dialing a fresh one.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ChannelError reports a push connection failure. The owner decides whether
// to reconnect; the channel itself never retries.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("live: %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

const (
	// Time allowed to write a frame to the peer.
	writeWait = 3 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 25 * time.Second

	readLimit = 4096

	dialTimeout = 5 * time.Second

	eventBuffer = 16
)

const (
	// Inbound frame: a new message observed by the backend.
	EventNewMessage = "new_message"
	// Outbound frame: advisory send notification, not the durable write.
	EventSendMessage = "send_message"
)

// frame is the websocket wire envelope, both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type sendNote struct {
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
}

// Channel manages one push-event connection for an authenticated session.
// Inbound events are delivered on Events() in transport order, without
// reordering or deduplication; reconciliation lives above this layer.
type Channel struct {
	mu sync.Mutex

	conn   *websocket.Conn
	events chan chat.MessageEvent
	out    chan *frame
	done   chan struct{}

	state   int32
	closing bool
	err     error
}

// Dial opens the push connection. wsURL is the websocket endpoint, e.g.
// "ws://127.0.0.1:3000/ws"; the session token authorizes the connection.
// On failure the channel is Disconnected and the error is returned; the
// caller may retry by dialing again.
func Dial(ctx context.Context, wsURL string, session chat.Session) (*Channel, error) {
	c := &Channel{
		events: make(chan chat.MessageEvent, eventBuffer),
		out:    make(chan *frame, eventBuffer),
		done:   make(chan struct{}),
	}
	c.setState(Connecting)

	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+session.Token)

	conn, _, err := dialer.DialContext(ctx, wsURL, hdr)
	if err != nil {
		c.setState(Disconnected)
		glog.Errorf("Dial(): %s error: %v", wsURL, err)
		return nil, &ChannelError{Op: "dial " + wsURL, Err: err}
	}

	c.conn = conn
	c.setState(Connected)
	glog.V(5).Infof("Dial(): connected to %s", wsURL)

	go c.recvLoop()
	go c.sendLoop()

	return c, nil
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Channel) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

// Events is the subscription stream. Closed when the channel disconnects
// for any reason; Err() then reports the cause, nil on local Close.
func (c *Channel) Events() <-chan chat.MessageEvent {
	return c.events
}

// Done is closed when the channel has fully shut down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the channel disconnected. nil for a local Close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Publish queues an advisory send notification to the peer. Best effort:
// it is not the durable write path and its failure rolls nothing back.
func (c *Channel) Publish(receiverID int64, content string) error {
	raw, err := json.Marshal(&sendNote{ReceiverID: receiverID, Content: content})
	if err != nil {
		return &ChannelError{Op: "publish", Err: err}
	}
	f := &frame{Event: EventSendMessage, Data: raw}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return &ChannelError{Op: "publish", Err: fmt.Errorf("channel is closed")}
	}
	select {
	case c.out <- f:
		return nil
	default:
		return &ChannelError{Op: "publish", Err: fmt.Errorf("outbound queue full")}
	}
}

// Close tears the connection down. Idempotent. Must be called when the
// session ends, or the connection leaks and keeps delivering events to a
// destroyed consumer.
func (c *Channel) Close() {
	c.shutdown(nil)
}

func (c *Channel) shutdown(cause error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.err = cause
	c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
	c.conn.Close()

	c.setState(Disconnected)
	close(c.done)

	if cause != nil {
		glog.Errorf("shutdown(): channel closed: %v", cause)
	} else {
		glog.V(5).Info("shutdown(): channel closed")
	}
}

func (c *Channel) recvLoop() {
	// Only the read loop closes the event stream, after it can no longer
	// produce into it.
	defer func() {
		close(c.events)
		glog.V(5).Info("recvLoop(): exited")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()
			if closing {
				return
			}
			c.shutdown(&ChannelError{Op: "read", Err: err})
			return
		}

		if msgType != websocket.TextMessage {
			glog.Errorf("recvLoop(): unexpected message type: %d", msgType)
			continue
		}

		glog.V(5).Infof("recvLoop(): incoming frame: %.100s", raw)

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			glog.Errorf("recvLoop(): bad frame: %.100s, err: %v", raw, err)
			continue
		}

		if f.Event != EventNewMessage {
			glog.V(5).Infof("recvLoop(): ignoring frame event: %s", f.Event)
			continue
		}

		var ev chat.MessageEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			glog.Errorf("recvLoop(): bad %s payload: %v", f.Event, err)
			continue
		}

		// Deliver in transport order. A slow consumer backpressures the
		// read loop rather than dropping events.
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Channel) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Info("sendLoop(): exited")
	}()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.out:
			raw, _ := json.Marshal(f)
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.shutdown(&ChannelError{Op: "write", Err: err})
				return
			}
		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(&ChannelError{Op: "ping", Err: err})
				return
			}
		}
	}
}
