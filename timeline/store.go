package timeline

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/creatorlink/chatsync/chat"
	"github.com/creatorlink/chatsync/metrics"
)

// Store is the reconciliation core. It exclusively owns the conversation
// list and the materialized timeline of the active conversation; every
// mutation funnels through its operations, so fetch results, live events
// and optimistic sends cannot race each other into a lost update.
//
// Operations are applied in call (arrival) order; the internal arrival
// clock is what makes "last arrival wins" and "discard stale fetch"
// well-defined.
type Store struct {
	sync.Mutex

	self chat.Session

	// arrivals is bumped on every applied mutation.
	arrivals uint64
	// lastBump records, per peer, the arrival seq of the last mutation
	// that touched its list entry: a live event bumping unread or
	// creating the entry, or an outbound send.
	lastBump map[int64]uint64

	// order holds the conversation list, most recent first.
	order []*chat.Conversation
	index map[int64]*chat.Conversation

	active int64
	epoch  uint64

	// msgs is the materialized timeline for the active peer, ordered
	// non-decreasing by CreatedAt, unique by identity.
	msgs []*chat.Message
}

// PendingSend is the handle for one optimistic send, resolved by
// ConfirmSend or FailSend.
type PendingSend struct {
	LocalID string
	PeerID  int64
	Content string
}

func NewStore(self chat.Session) *Store {
	return &Store{
		self:     self,
		lastBump: make(map[int64]uint64),
		index:    make(map[int64]*chat.Conversation),
	}
}

// Self returns the local session identity.
func (s *Store) Self() chat.Session {
	return s.self
}

// BeginListFetch snapshots the arrival clock. Call it before issuing
// listConversations and hand the token to SeedList, so a live unread bump
// that arrives while the fetch is in flight survives the stale response.
func (s *Store) BeginListFetch() uint64 {
	s.Lock()
	defer s.Unlock()
	return s.arrivals
}

// SeedList replaces the conversation list with a fetched one. A locally
// known unread count strictly greater than the fetched value is kept only
// when its live bump arrived after the fetch was issued (token); likewise
// a conversation created by a live event during the fetch is re-inserted
// rather than clobbered. The active conversation's unread stays 0.
func (s *Store) SeedList(convs []chat.Conversation, token uint64) {
	s.Lock()
	defer s.Unlock()
	s.arrivals++

	order := make([]*chat.Conversation, 0, len(convs))
	index := make(map[int64]*chat.Conversation, len(convs))

	for i := range convs {
		cv := convs[i]
		if old, ok := s.index[cv.PeerID]; ok {
			if old.Unread > cv.Unread && s.lastBump[cv.PeerID] > token {
				cv.Unread = old.Unread
			}
		}
		if cv.PeerID == s.active {
			cv.Unread = 0
		}
		order = append(order, &cv)
		index[cv.PeerID] = &cv
	}

	// Conversations the fetch does not know about yet.
	for i := len(s.order) - 1; i >= 0; i-- {
		old := s.order[i]
		if _, ok := index[old.PeerID]; ok {
			continue
		}
		if s.lastBump[old.PeerID] > token {
			glog.V(5).Infof("SeedList(): keeping peer %d unknown to stale fetch", old.PeerID)
			order = append([]*chat.Conversation{old}, order...)
			index[old.PeerID] = old
		}
	}

	s.order = order
	s.index = index
}

// Activate makes peerID the active selection (0 deactivates), clears its
// unread count and resets the materialized timeline. Returns the new
// selection epoch; a timeline fetched for an older epoch is discarded.
func (s *Store) Activate(peerID int64) uint64 {
	s.Lock()
	defer s.Unlock()
	s.arrivals++
	s.epoch++
	s.active = peerID
	s.msgs = nil
	if cv := s.index[peerID]; cv != nil {
		cv.Unread = 0
	}
	return s.epoch
}

// Active returns the active peer id, 0 for none.
func (s *Store) Active() int64 {
	s.Lock()
	defer s.Unlock()
	return s.active
}

// SeedTimeline materializes a fetched history for peerID. The result is
// dropped unless peerID is still the active selection at the epoch the
// fetch was issued for; a slow response for a since-deselected peer must
// not clobber a newer selection's timeline. Local entries that appeared
// while the fetch was in flight (optimistic sends, live appends) are
// merged back in unless the fetch already contains them.
func (s *Store) SeedTimeline(peerID int64, epoch uint64, msgs []chat.Message) bool {
	s.Lock()
	defer s.Unlock()

	if epoch != s.epoch || peerID != s.active {
		glog.V(5).Infof("SeedTimeline(): discarding stale fetch for peer %d, epoch %d/%d", peerID, epoch, s.epoch)
		metrics.StaleFetchesDiscarded.Inc()
		return false
	}
	s.arrivals++

	fetched := make([]*chat.Message, 0, len(msgs))
	for i := range msgs {
		m := msgs[i]
		if m.LocalID == "" {
			m.LocalID = newLocalID()
		}
		fetched = append(fetched, &m)
	}
	sort.SliceStable(fetched, func(i, j int) bool {
		return fetched[i].CreatedAt.Before(fetched[j].CreatedAt)
	})

	prior := s.msgs
	s.msgs = fetched

	for _, m := range prior {
		if s.materialized(m) {
			continue
		}
		s.insertOrdered(m)
	}
	return true
}

// materialized reports whether an equivalent message is already in the
// timeline, by server id or by identity tuple within the dedup window.
func (s *Store) materialized(m *chat.Message) bool {
	ev := chat.MessageEvent{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
	for _, x := range s.msgs {
		if m.ID != 0 && x.ID == m.ID {
			return true
		}
		if x.SameIdentity(&ev) {
			return true
		}
	}
	return false
}

// ApplyInbound reconciles one live event into the store: list entry and
// preview always, unread bump unless active, timeline append (deduped)
// only for the active peer.
func (s *Store) ApplyInbound(ev chat.MessageEvent) {
	s.Lock()
	defer s.Unlock()

	peer := ev.PeerOf(s.self.UserID)
	if peer == 0 {
		glog.Errorf("ApplyInbound(): event does not involve local user %d: %+v", s.self.UserID, ev)
		return
	}
	s.arrivals++

	cv := s.index[peer]
	if cv == nil {
		cv = &chat.Conversation{PeerID: peer}
		s.index[peer] = cv
		s.order = append(s.order, cv)
		s.lastBump[peer] = s.arrivals
	}

	// The event is always at least as recent as the preview: both sides
	// are ordered against the same server clock.
	cv.LastMessage = ev.Content
	cv.LastMessageTime = ev.CreatedAt
	s.moveToFront(cv)

	if peer != s.active {
		// Own sends echoed back by the push path must not look unread.
		if ev.SenderID != s.self.UserID {
			cv.Unread++
			s.lastBump[peer] = s.arrivals
		}
		metrics.EventsApplied.Inc()
		return
	}

	// Active conversation: append live, guarding against the dual
	// HTTP-write/push-notify delivery of the same logical message.
	for i := len(s.msgs) - 1; i >= 0; i-- {
		m := s.msgs[i]
		if m.SameIdentity(&ev) {
			glog.V(5).Infof("ApplyInbound(): duplicate of %s dropped", m.LocalID)
			metrics.DuplicatesDropped.Inc()
			return
		}
		if !m.Pending && ev.CreatedAt.Sub(m.CreatedAt) > chat.DedupWindow {
			break
		}
	}

	m := &chat.Message{
		LocalID:    newLocalID(),
		SenderID:   ev.SenderID,
		ReceiverID: ev.ReceiverID,
		Content:    ev.Content,
		CreatedAt:  ev.CreatedAt,
	}
	if ev.SenderID == s.self.UserID {
		m.SenderName = s.self.Name
	} else if ev.ReceiverID == s.self.UserID {
		m.ReceiverName = s.self.Name
	}
	s.insertOrdered(m)
	metrics.EventsApplied.Inc()
}

// ApplyOutboundSend appends a locally-authored message immediately and
// returns the handle the durable write resolves against.
func (s *Store) ApplyOutboundSend(peerID int64, content string) *PendingSend {
	s.Lock()
	defer s.Unlock()
	s.arrivals++

	m := &chat.Message{
		LocalID:    newLocalID(),
		SenderID:   s.self.UserID,
		ReceiverID: peerID,
		Content:    content,
		CreatedAt:  time.Now(),
		SenderName: s.self.Name,
		Pending:    true,
	}

	cv := s.index[peerID]
	if cv == nil {
		cv = &chat.Conversation{PeerID: peerID}
		s.index[peerID] = cv
		s.order = append(s.order, cv)
	}
	cv.LastMessage = content
	cv.LastMessageTime = m.CreatedAt
	s.lastBump[peerID] = s.arrivals
	s.moveToFront(cv)

	if peerID == s.active {
		s.insertOrdered(m)
	}

	metrics.PendingSends.Inc()
	return &PendingSend{LocalID: m.LocalID, PeerID: peerID, Content: content}
}

// ConfirmSend reconciles an optimistic entry with the durable write:
// position-based replacement of the most recent matching pending entry,
// never a re-append.
func (s *Store) ConfirmSend(p *PendingSend, durable *chat.Message) {
	s.Lock()
	defer s.Unlock()
	s.arrivals++
	metrics.PendingSends.Dec()

	if s.active != p.PeerID {
		// The optimistic entry left with its timeline; the conversation
		// preview was already updated at send time.
		return
	}

	i := s.findPending(p)
	if i < 0 {
		glog.V(5).Infof("ConfirmSend(): no pending entry for %s", p.LocalID)
		return
	}

	// If the confirmed message somehow materialized already (seed racing
	// the confirmation), drop the optimistic entry instead of duplicating.
	for j, x := range s.msgs {
		if j != i && durable.ID != 0 && x.ID == durable.ID {
			s.removeAt(i)
			return
		}
	}

	m := s.msgs[i]
	m.ID = durable.ID
	m.CreatedAt = durable.CreatedAt
	m.Read = durable.Read
	if durable.SenderName != "" {
		m.SenderName = durable.SenderName
	}
	if durable.ReceiverName != "" {
		m.ReceiverName = durable.ReceiverName
	}
	m.Pending = false
	m.Failed = false

	// The authoritative timestamp may move the entry.
	s.removeAt(i)
	s.insertOrdered(m)
}

// FailSend marks the optimistic entry failed. It stays visible: the user
// resolves it explicitly, it never silently vanishes.
func (s *Store) FailSend(p *PendingSend) {
	s.Lock()
	defer s.Unlock()
	s.arrivals++
	metrics.PendingSends.Dec()
	metrics.SendsFailed.Inc()

	if s.active != p.PeerID {
		return
	}
	if i := s.findPending(p); i >= 0 {
		s.msgs[i].Pending = false
		s.msgs[i].Failed = true
	}
}

// RemoveFailed discards a failed optimistic entry (the user chose discard
// over retry). Returns true if an entry was removed.
func (s *Store) RemoveFailed(localID string) bool {
	s.Lock()
	defer s.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Failed && s.msgs[i].LocalID == localID {
			s.arrivals++
			s.removeAt(i)
			return true
		}
	}
	return false
}

// EnsureConversation creates an empty list entry for a directory user, so
// a start-conversation flow has something to select before any message
// exists.
func (s *Store) EnsureConversation(u chat.User) {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.index[u.UserID]; ok {
		return
	}
	s.arrivals++
	cv := &chat.Conversation{
		PeerID:   u.UserID,
		PeerName: u.Name,
		PeerType: u.UserType,
	}
	s.index[u.UserID] = cv
	s.lastBump[u.UserID] = s.arrivals
	s.order = append([]*chat.Conversation{cv}, s.order...)
}

// Conversations returns a snapshot of the list, most recent first.
func (s *Store) Conversations() []chat.Conversation {
	s.Lock()
	defer s.Unlock()
	out := make([]chat.Conversation, 0, len(s.order))
	for _, cv := range s.order {
		out = append(out, *cv)
	}
	return out
}

// Timeline returns a snapshot of the active conversation's messages,
// oldest first.
func (s *Store) Timeline() []chat.Message {
	s.Lock()
	defer s.Unlock()
	out := make([]chat.Message, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, *m)
	}
	return out
}

func (s *Store) findPending(p *PendingSend) int {
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Pending && s.msgs[i].LocalID == p.LocalID {
			return i
		}
	}
	// Fall back to the most recent pending entry with the same
	// sender/receiver/content.
	for i := len(s.msgs) - 1; i >= 0; i-- {
		m := s.msgs[i]
		if m.Pending && m.SenderID == s.self.UserID && m.ReceiverID == p.PeerID && m.Content == p.Content {
			return i
		}
	}
	return -1
}

// insertOrdered places m keeping CreatedAt non-decreasing: append, then
// walk back past strictly newer entries.
func (s *Store) insertOrdered(m *chat.Message) {
	s.msgs = append(s.msgs, m)
	for i := len(s.msgs) - 1; i > 0; i-- {
		if !s.msgs[i-1].CreatedAt.After(m.CreatedAt) {
			break
		}
		s.msgs[i], s.msgs[i-1] = s.msgs[i-1], s.msgs[i]
	}
}

func (s *Store) removeAt(i int) {
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
}

func (s *Store) moveToFront(cv *chat.Conversation) {
	for i, x := range s.order {
		if x == cv {
			copy(s.order[1:i+1], s.order[:i])
			s.order[0] = cv
			return
		}
	}
}

func newLocalID() string {
	return strings.ReplaceAll(uuid.New(), "-", "")
}
