// Package memory is the long-lived state of each persona: personality
// scalars, a capped log of remembered events, lore and session counters.
//
// Each persona's memory is one JSON document under "persona_memory/<id>".
// Mutations are serialized by Service and always start from a fresh read.
package memory

import (
	"slices"
	"time"
)

// Kind classifies an Entry.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindOffering     Kind = "offering"
	KindRitual       Kind = "ritual"
	KindLore         Kind = "lore"
	KindInteraction  Kind = "interaction"
)

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindConversation, KindOffering, KindRitual, KindLore, KindInteraction:
		return true
	}
	return false
}

// Ranges of the personality scalars and of entry importance.
const (
	MinRelationship = -100
	MaxRelationship = 100
	MinLevel        = 0
	MaxLevel        = 100
	MinImportance   = 1
	MaxImportance   = 10

	// DefaultMaxEntries is the retention cap on Entries.
	DefaultMaxEntries = 100
)

// Personality holds the mutable scalars that colour a persona's replies.
type Personality struct {
	CurrentMood          string   `json:"currentMood"`
	RelationshipWithUser int      `json:"relationshipWithUser"`
	KnowledgeLevel       int      `json:"knowledgeLevel"`
	CorruptionLevel      int      `json:"corruptionLevel"`
	SpecialAbilities     []string `json:"specialAbilities"`
}

// Entry is one remembered event. Entries are never edited after creation.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Kind       Kind           `json:"kind"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Importance int            `json:"importance"`
	Tags       []string       `json:"tags"`
}

// NewEntry is what callers supply to AddEntry; the id and timestamp are
// assigned by the service.
type NewEntry struct {
	Kind       Kind
	Content    string
	Metadata   map[string]any
	Importance int
	Tags       []string
}

// Lore is the persona's mythology. Every list behaves as a set.
type Lore struct {
	CreationDate time.Time `json:"creationDate"`
	Domains      []string  `json:"domains"`
	SacredRules  []string  `json:"sacredRules"`
	Taboos       []string  `json:"taboos"`
	Allies       []string  `json:"allies"`
	Enemies      []string  `json:"enemies"`
	Achievements []string  `json:"achievements"`
}

// SessionStats counts summonings.
type SessionStats struct {
	TotalSessions   int       `json:"totalSessions"`
	LastSessionTime time.Time `json:"lastSessionTime"`
	FavoriteTopics  []string  `json:"favoriteTopics"`
}

// PersonaMemory is the whole persisted document for one persona.
type PersonaMemory struct {
	PersonaID   string       `json:"personaId"`
	PersonaName string       `json:"personaName"`
	Domain      string       `json:"domain"`
	Temperament string       `json:"temperament"`
	Personality Personality  `json:"personality"`
	Entries     []Entry      `json:"entries"`
	Lore        Lore         `json:"lore"`
	Sessions    SessionStats `json:"sessions"`
}

// RitualRecord is one line of the append-only ritual log.
type RitualRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	PersonaID      string    `json:"personaId"`
	RitualType     string    `json:"ritualType"`
	Participants   []string  `json:"participants"`
	Outcome        string    `json:"outcome"`
	Effects        []string  `json:"effects"`
	Offerings      []string  `json:"offerings"`
	DivineResponse string    `json:"divineResponse"`
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp forces every ranged scalar into bounds. Clamping twice is the same as
// clamping once.
func (p *Personality) Clamp() {
	p.RelationshipWithUser = clamp(p.RelationshipWithUser, MinRelationship, MaxRelationship)
	p.KnowledgeLevel = clamp(p.KnowledgeLevel, MinLevel, MaxLevel)
	p.CorruptionLevel = clamp(p.CorruptionLevel, MinLevel, MaxLevel)
	p.SpecialAbilities = dedupe(p.SpecialAbilities)
}

// ClampImportance forces v into [1, 10].
func ClampImportance(v int) int {
	return clamp(v, MinImportance, MaxImportance)
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// addUnique appends v when it is not already present.
func addUnique(values []string, v string) []string {
	if slices.Contains(values, v) {
		return values
	}
	return append(values, v)
}

func (m *PersonaMemory) clone() *PersonaMemory {
	c := *m
	c.Personality.SpecialAbilities = slices.Clone(m.Personality.SpecialAbilities)
	c.Entries = slices.Clone(m.Entries)
	c.Lore.Domains = slices.Clone(m.Lore.Domains)
	c.Lore.SacredRules = slices.Clone(m.Lore.SacredRules)
	c.Lore.Taboos = slices.Clone(m.Lore.Taboos)
	c.Lore.Allies = slices.Clone(m.Lore.Allies)
	c.Lore.Enemies = slices.Clone(m.Lore.Enemies)
	c.Lore.Achievements = slices.Clone(m.Lore.Achievements)
	c.Sessions.FavoriteTopics = slices.Clone(m.Sessions.FavoriteTopics)
	return &c
}
