package openai

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/diogo/perplexity-webui-go/pkg/perplexity"
)

// SessionStore keeps live conversations between chat completion calls, so a
// client resending the same chat gets a follow-up instead of a new thread.
// Entries expire after the TTL and each user holds at most perUserCap.
type SessionStore struct {
	ttl        time.Duration
	perUserCap int

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	stop     chan struct{}
	stopOnce sync.Once
}

type sessionEntry struct {
	conv     *perplexity.Conversation
	user     string
	lastUsed time.Time
}

// NewSessionStore creates a store and starts its expiry sweeper.
func NewSessionStore(ttl time.Duration, perUserCap int) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if perUserCap <= 0 {
		perUserCap = 20
	}

	s := &SessionStore{
		ttl:        ttl,
		perUserCap: perUserCap,
		sessions:   make(map[string]*sessionEntry),
		stop:       make(chan struct{}),
	}
	go s.sweep()
	return s
}

// SessionKey derives a stable key from the user and the opening message of a
// chat, so retransmissions of the same chat land on the same conversation.
func SessionKey(user, firstMessage string) string {
	h := sha256.Sum256([]byte(user + "\x00" + firstMessage))
	return hex.EncodeToString(h[:16])
}

// Get returns the live conversation for a key, refreshing its TTL.
func (s *SessionStore) Get(key string) (*perplexity.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.lastUsed) > s.ttl {
		delete(s.sessions, key)
		return nil, false
	}
	entry.lastUsed = time.Now()
	return entry.conv, true
}

// Put stores a conversation under a key, evicting the user's oldest session
// when the per-user cap is exceeded.
func (s *SessionStore) Put(key, user string, conv *perplexity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[key] = &sessionEntry{conv: conv, user: user, lastUsed: time.Now()}

	var count int
	oldestKey := ""
	oldest := time.Now()
	for k, e := range s.sessions {
		if e.user != user {
			continue
		}
		count++
		if e.lastUsed.Before(oldest) {
			oldest = e.lastUsed
			oldestKey = k
		}
	}
	if count > s.perUserCap && oldestKey != "" {
		delete(s.sessions, oldestKey)
	}
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the expiry sweeper.
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *SessionStore) sweep() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.expire()
		}
	}
}

func (s *SessionStore) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	for key, entry := range s.sessions {
		if entry.lastUsed.Before(cutoff) {
			delete(s.sessions, key)
		}
	}
}
