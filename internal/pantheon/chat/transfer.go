package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bdobrica/pantheon/internal/pantheon/schema"
)

const importSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "personaId", "messages"],
		"properties": {
			"id":           {"type": "string", "minLength": 1},
			"personaId":    {"type": "string", "minLength": 1},
			"lastUpdated":  {"type": "string"},
			"messageCount": {"type": "integer", "minimum": 0},
			"messages": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "role", "content"],
					"properties": {
						"id":        {"type": "string"},
						"role":      {"enum": ["user", "assistant"]},
						"content":   {"type": "string"},
						"timestamp": {"type": "string"},
						"personaId": {"type": "string"}
					}
				}
			}
		}
	}
}`

var importValidator = schema.MustCompile("chat-import", importSchema)

// Export serializes every session as one JSON document.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []Session{}
	}
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("chat: export: %w", err)
	}
	return b, nil
}

// Import replaces the whole store with data. Data produced by Export imports
// back unchanged. Anything that is not an array of sessions is rejected with
// ErrInvalidImport before the store is touched.
func (s *Store) Import(ctx context.Context, data []byte) error {
	if err := importValidator.ValidateJSON(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	var all []Session
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	for i := range all {
		sess := &all[i]
		if sess.Messages == nil {
			sess.Messages = []Message{}
		}
		for j := range sess.Messages {
			if sess.Messages[j].PersonaID == "" {
				sess.Messages[j].PersonaID = sess.PersonaID
			}
		}
		sess.MessageCount = len(sess.Messages)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range personaIDs(all) {
		all = s.retain(all, id)
	}
	return s.save(ctx, all)
}
