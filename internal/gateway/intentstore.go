package gateway

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipflow/clipflow/internal/core/domain"
)

// callbackPrefix namespaces our callback data so foreign buttons are ignored.
const callbackPrefix = "cf:"

const intentTTL = 24 * time.Hour

// IntentStore keeps button intents server-side. Telegram caps callback data
// at 64 bytes, far below a URL plus options, so the button carries only a
// short ID.
type IntentStore struct {
	mu      sync.Mutex
	intents map[string]storedIntent
}

type storedIntent struct {
	intent  domain.ButtonIntent
	created time.Time
}

func NewIntentStore() *IntentStore {
	return &IntentStore{intents: make(map[string]storedIntent)}
}

// Put stores an intent and returns the callback data for its button.
func (s *IntentStore) Put(intent domain.ButtonIntent) string {
	id := uuid.NewString()[:8]

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.intents[id] = storedIntent{intent: intent, created: time.Now()}

	return callbackPrefix + id
}

// Take resolves callback data to its intent without consuming it; Delete
// drops the intent once the click is fully handled.
func (s *IntentStore) Take(callbackData string) (domain.ButtonIntent, bool) {
	id, ok := strings.CutPrefix(callbackData, callbackPrefix)
	if !ok {
		return domain.ButtonIntent{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.intents[id]
	if !ok {
		return domain.ButtonIntent{}, false
	}

	return stored.intent, true
}

// Delete removes a consumed intent.
func (s *IntentStore) Delete(callbackData string) {
	id, ok := strings.CutPrefix(callbackData, callbackPrefix)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.intents, id)
}

func (s *IntentStore) sweepLocked() {
	cutoff := time.Now().Add(-intentTTL)

	for id, stored := range s.intents {
		if stored.created.Before(cutoff) {
			delete(s.intents, id)
		}
	}
}
