// Package chat persists per-persona chat transcripts.
//
// All sessions for every persona live in one JSON array under the
// "chat_sessions" key. Each mutation reads that array fresh, changes it and
// writes it back in a single Set.
package chat

import (
	"sort"
	"time"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable line of a transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	PersonaID string    `json:"personaId"`
}

// Session is an ordered transcript with one persona.
type Session struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"personaId"`
	Messages     []Message `json:"messages"`
	LastUpdated  time.Time `json:"lastUpdated"`
	MessageCount int       `json:"messageCount"`
}

// Stats summarizes the whole store.
type Stats struct {
	TotalSessions int            `json:"totalSessions"`
	TotalMessages int            `json:"totalMessages"`
	PerPersona    map[string]int `json:"perPersona"`
}

func (s Session) clone() Session {
	s.Messages = append([]Message(nil), s.Messages...)
	return s
}

// forPersona returns the indices of personaID's sessions in all, most recent
// first. Equal timestamps put the later-created (higher index) session first.
func forPersona(all []Session, personaID string) []int {
	var idx []int
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].PersonaID == personaID {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return all[idx[a]].LastUpdated.After(all[idx[b]].LastUpdated)
	})
	return idx
}

// prune drops personaID's oldest sessions until at most max remain.
func prune(all []Session, personaID string, max int) ([]Session, int) {
	idx := forPersona(all, personaID)
	if len(idx) <= max {
		return all, 0
	}
	drop := make(map[int]bool, len(idx)-max)
	for _, i := range idx[max:] {
		drop[i] = true
	}
	kept := make([]Session, 0, len(all)-len(drop))
	for i, s := range all {
		if !drop[i] {
			kept = append(kept, s)
		}
	}
	return kept, len(drop)
}

// personaIDs lists the distinct persona ids in first-seen order.
func personaIDs(all []Session) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range all {
		if !seen[s.PersonaID] {
			seen[s.PersonaID] = true
			ids = append(ids, s.PersonaID)
		}
	}
	return ids
}
