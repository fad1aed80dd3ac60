// Package cache persists a snapshot of the conversation list between runs,
// so a restarted client paints a list before the first fetch resolves. The
// snapshot is a hint only: it is always superseded wholesale by the first
// successful listConversations.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/creatorlink/chatsync/chat"
)

var bucketConversations = []byte("conversations")

// Snapshot is a bbolt-backed conversation list snapshot, one file per
// local user.
type Snapshot struct {
	db *bbolt.DB
}

func Open(path string) (*Snapshot, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot db %s", path)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConversations)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create snapshot bucket")
	}
	return &Snapshot{db: db}, nil
}

func (s *Snapshot) Close() error {
	return s.db.Close()
}

// SaveConversations replaces the stored snapshot.
func (s *Snapshot) SaveConversations(convs []chat.Conversation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketConversations); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketConversations)
		if err != nil {
			return err
		}
		for i := range convs {
			raw, err := json.Marshal(&convs[i])
			if err != nil {
				return err
			}
			if err := b.Put(peerKey(convs[i].PeerID), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadConversations reads the snapshot, most recent first. Entries that no
// longer decode are skipped, not fatal: the snapshot is disposable.
func (s *Snapshot) LoadConversations() ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConversations)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var cv chat.Conversation
			if err := json.Unmarshal(v, &cv); err != nil {
				glog.Errorf("LoadConversations(): skip bad entry %x: %v", k, err)
				return nil
			}
			out = append(out, cv)
			return nil
		})
	}); err != nil {
		return nil, errors.Wrap(err, "load snapshot")
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func peerKey(peerID int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(peerID))
	return k
}
