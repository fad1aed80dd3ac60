// Demo backend: an in-memory implementation of both contracts the client
// consumes (JSON/HTTP history + websocket push), so the chatsync client
// can run end-to-end without a production backend.
//
// Run two clients against it to see live sync:
//
//	demo -addr 127.0.0.1:3000
//	chatsync -uid 1 -token 1:amelia -ws-url ws://127.0.0.1:3000/ws
//	chatsync -uid 2 -token 2:brightpr -ws-url ws://127.0.0.1:3000/ws
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/creatorlink/chatsync/auth"
	"github.com/creatorlink/chatsync/chat"
)

var flagAddr = flag.String("addr", "127.0.0.1:3000", "listen address, ip:port")

const (
	writeWait  = 3 * time.Second
	pingPeriod = 20 * time.Second
	pongWait   = 25 * time.Second
	readLimit  = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type wsSession struct {
	uid  int64
	conn *websocket.Conn
	out  chan *frame
}

type server struct {
	sync.Mutex

	authc  auth.Client
	users  map[int64]chat.User
	msgs   []*chat.Message
	nextID int64
	conns  map[*wsSession]struct{}
}

func newServer() *server {
	s := &server{
		authc: &auth.MockClient{},
		users: make(map[int64]chat.User),
		conns: make(map[*wsSession]struct{}),
	}
	for _, u := range []chat.User{
		{UserID: 1, Name: "amelia", Email: "amelia@example.com", UserType: "influencer", City: "Austin", State: "TX"},
		{UserID: 2, Name: "brightpr", Email: "team@brightpr.example.com", UserType: "pr_team"},
		{UserID: 3, Name: "northstar", Email: "hello@northstar.example.com", UserType: "agency", City: "Denver", State: "CO"},
	} {
		s.users[u.UserID] = u
	}
	return s
}

func main() {
	flag.Parse()
	defer glog.Flush()

	s := newServer()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages/conversations", s.handleConversations)
	mux.HandleFunc("/api/messages/users/search", s.handleSearch)
	mux.HandleFunc("/api/messages", s.handleSend)
	mux.HandleFunc("/api/messages/", s.handleTimelineOrRead)
	mux.HandleFunc("/ws", s.handleWs)

	glog.Infof("demo backend listening on %s", *flagAddr)
	if err := http.ListenAndServe(*flagAddr, mux); err != nil {
		glog.Fatal(errors.Wrap(err, "demo backend"))
	}
}

func (s *server) authenticate(w http.ResponseWriter, r *http.Request) (chat.Session, bool) {
	sess, err := s.authc.Auth(r)
	if err != nil {
		http.Error(w, "authenticate error", http.StatusForbidden)
		return chat.Session{}, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("writeJSON(): %v", err)
	}
}

func (s *server) handleConversations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	s.Lock()
	defer s.Unlock()

	byPeer := make(map[int64]*chat.Conversation)
	var order []int64
	for _, m := range s.msgs {
		var peer int64
		switch sess.UserID {
		case m.SenderID:
			peer = m.ReceiverID
		case m.ReceiverID:
			peer = m.SenderID
		default:
			continue
		}
		cv := byPeer[peer]
		if cv == nil {
			u := s.users[peer]
			cv = &chat.Conversation{PeerID: peer, PeerName: u.Name, PeerType: u.UserType}
			byPeer[peer] = cv
			order = append(order, peer)
		}
		cv.LastMessage = m.Content
		cv.LastMessageTime = m.CreatedAt
		if m.ReceiverID == sess.UserID && !m.Read {
			cv.Unread++
		}
	}

	out := make([]chat.Conversation, 0, len(order))
	for _, peer := range order {
		out = append(out, *byPeer[peer])
	}
	// Most recent first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	writeJSON(w, out)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	q := strings.ToLower(r.URL.Query().Get("query"))
	out := []chat.User{}
	if q != "" {
		s.Lock()
		for _, u := range s.users {
			if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
				out = append(out, u)
			}
		}
		s.Unlock()
	}
	writeJSON(w, out)
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		ReceiverID int64  `json:"receiverId"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverID == 0 || req.Content == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.Lock()
	s.nextID++
	m := &chat.Message{
		ID:           s.nextID,
		SenderID:     sess.UserID,
		ReceiverID:   req.ReceiverID,
		Content:      req.Content,
		CreatedAt:    time.Now(),
		SenderName:   s.users[sess.UserID].Name,
		ReceiverName: s.users[req.ReceiverID].Name,
	}
	s.msgs = append(s.msgs, m)
	s.Unlock()

	s.broadcast(m.SenderID, m.ReceiverID, chat.MessageEvent{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	})

	writeJSON(w, m)
}

// handleTimelineOrRead serves GET /api/messages/{peer} and
// POST /api/messages/{peer}/read.
func (s *server) handleTimelineOrRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	markRead := false
	if strings.HasSuffix(rest, "/read") {
		markRead = true
		rest = strings.TrimSuffix(rest, "/read")
	}
	peer, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		http.Error(w, "bad peer id", http.StatusBadRequest)
		return
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.users[peer]; !ok {
		http.Error(w, "unknown peer", http.StatusNotFound)
		return
	}

	if markRead {
		for _, m := range s.msgs {
			if m.SenderID == peer && m.ReceiverID == sess.UserID {
				m.Read = true
			}
		}
		writeJSON(w, map[string]bool{"ok": true})
		return
	}

	out := []chat.Message{}
	for _, m := range s.msgs {
		if (m.SenderID == sess.UserID && m.ReceiverID == peer) ||
			(m.SenderID == peer && m.ReceiverID == sess.UserID) {
			out = append(out, *m)
		}
	}
	writeJSON(w, out)
}

func (s *server) handleWs(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("handleWs(): upgrade error, uid: %d, err: %v", sess.UserID, err)
		return
	}

	ws := &wsSession{uid: sess.UserID, conn: conn, out: make(chan *frame, 16)}
	s.Lock()
	s.conns[ws] = struct{}{}
	s.Unlock()
	glog.Infof("handleWs(): uid %d connected", sess.UserID)

	go s.sendLoop(ws)
	go s.recvLoop(ws)
}

func (s *server) drop(ws *wsSession) {
	s.Lock()
	_, ok := s.conns[ws]
	if ok {
		delete(s.conns, ws)
		close(ws.out)
	}
	s.Unlock()
	if ok {
		ws.conn.Close()
		glog.Infof("drop(): uid %d disconnected", ws.uid)
	}
}

// broadcast pushes a new_message event to every session of both parties.
func (s *server) broadcast(senderID, receiverID int64, ev chat.MessageEvent) {
	f := &frame{Event: "new_message", Data: ev}
	s.Lock()
	defer s.Unlock()
	for ws := range s.conns {
		if ws.uid != senderID && ws.uid != receiverID {
			continue
		}
		select {
		case ws.out <- f:
		default:
			glog.Errorf("broadcast(): uid %d queue full, dropping event", ws.uid)
		}
	}
}

func (s *server) recvLoop(ws *wsSession) {
	defer s.drop(ws)

	ws.conn.SetReadLimit(readLimit)
	ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	ws.conn.SetPongHandler(func(string) error {
		ws.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := ws.conn.ReadMessage()
		if err != nil {
			return
		}
		var f struct {
			Event string `json:"event"`
			Data  struct {
				ReceiverID int64  `json:"receiverId"`
				Content    string `json:"content"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &f); err != nil || f.Event != "send_message" {
			glog.V(5).Infof("recvLoop(): ignoring frame: %.100s", raw)
			continue
		}
		// Advisory notification path: relay to the receiver without
		// persisting; the durable write already happened over HTTP.
		s.broadcast(ws.uid, f.Data.ReceiverID, chat.MessageEvent{
			SenderID:   ws.uid,
			ReceiverID: f.Data.ReceiverID,
			Content:    f.Data.Content,
			CreatedAt:  time.Now(),
		})
	}
}

func (s *server) sendLoop(ws *wsSession) {
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case f, ok := <-ws.out:
			if !ok {
				return
			}
			raw, _ := json.Marshal(f)
			ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				s.drop(ws)
				return
			}
		case <-pingTicker.C:
			ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drop(ws)
				return
			}
		}
	}
}
