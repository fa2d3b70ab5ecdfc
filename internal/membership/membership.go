// Package membership decides who the bot may answer: the allow-list and
// admin predicates, and the per-process record of senders already served.
package membership

import (
	"sync"

	"whatsapp-autoresponder/internal/config"
)

// Identity is a chat participant. Phone is the normalized key used for
// every gating decision; Name is only for logs.
type Identity struct {
	Phone string
	Name  string
}

// NewIdentity normalizes phone and falls back to it when name is empty.
func NewIdentity(phone, name string) Identity {
	p := config.NormalizePhone(phone)
	if name == "" {
		name = p
	}
	return Identity{Phone: p, Name: name}
}

// Gate holds the allow-list and the admin list. It is immutable after
// construction.
type Gate struct {
	allowed map[string]struct{}
	admins  map[string]struct{}
}

// NewGate builds a Gate from phone lists. Entries are normalized, so
// "+55 11 9999" and "55119999" are the same sender.
func NewGate(allowed, admins []string) *Gate {
	return &Gate{
		allowed: toSet(allowed),
		admins:  toSet(admins),
	}
}

func toSet(phones []string) map[string]struct{} {
	set := make(map[string]struct{}, len(phones))
	for _, p := range phones {
		if n := config.NormalizePhone(p); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// IsAllowed reports whether id may use the bot. An empty allow-list
// permits everyone.
func (g *Gate) IsAllowed(id Identity) bool {
	if len(g.allowed) == 0 {
		return true
	}
	_, ok := g.allowed[id.Phone]
	return ok
}

// IsAdmin reports whether id is on the admin list.
func (g *Gate) IsAdmin(id Identity) bool {
	_, ok := g.admins[id.Phone]
	return ok
}

// SeenSet records the senders that already got their one reply. It lives
// as long as the process and is never persisted.
type SeenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSeenSet returns an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{})}
}

// Has reports whether id was already served.
func (s *SeenSet) Has(id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id.Phone]
	return ok
}

// Add marks id as served. It returns false if id was already present.
func (s *SeenSet) Add(id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id.Phone]; ok {
		return false
	}
	s.seen[id.Phone] = struct{}{}
	return true
}

// Len returns the number of served senders.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
