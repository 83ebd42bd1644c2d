// Package memory provides the in-process store implementation. State is
// sharded by session id so concurrent calls never contend on one lock.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/voxcall/pkg/convo"
	"github.com/harunnryd/voxcall/pkg/store"
)

const shardCount = 32

type shard struct {
	mu          sync.RWMutex
	sessions    map[string]convo.Session
	transcripts map[string][]convo.Turn
}

// Store is an in-memory store.Store backed by sharded maps.
type Store struct {
	shards [shardCount]*shard
}

func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{
			sessions:    make(map[string]convo.Session),
			transcripts: make(map[string][]convo.Turn),
		}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *Store) CreateSession(ctx context.Context, sess convo.Session) error {
	sh := s.shardFor(sess.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sh.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (convo.Session, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return convo.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, id string, fn func(*convo.Session) error) (convo.Session, error) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		return convo.Session{}, store.ErrNotFound
	}
	if err := fn(&sess); err != nil {
		return convo.Session{}, err
	}
	sess.UpdatedAt = time.Now()
	sh.sessions[id] = sess
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]convo.Session, error) {
	var out []convo.Session
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			out = append(out, sess)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Append(ctx context.Context, turn convo.Turn) (convo.Turn, error) {
	sh := s.shardFor(turn.SessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	turn.Seq = len(sh.transcripts[turn.SessionID]) + 1
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	sh.transcripts[turn.SessionID] = append(sh.transcripts[turn.SessionID], turn)
	return turn, nil
}

func (s *Store) Transcript(ctx context.Context, sessionID string) ([]convo.Turn, error) {
	sh := s.shardFor(sessionID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	turns, ok := sh.transcripts[sessionID]
	if !ok || len(turns) == 0 {
		return nil, store.ErrNotFound
	}
	out := make([]convo.Turn, len(turns))
	copy(out, turns)
	return out, nil
}
