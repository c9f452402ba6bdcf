package memory

import (
	"context"
	"sync"
)

// PresentationIndex remembers which presentation room a quiz broadcasts to.
type PresentationIndex struct {
	mu    sync.RWMutex
	rooms map[string]string
}

func NewPresentationIndex() *PresentationIndex {
	return &PresentationIndex{rooms: make(map[string]string)}
}

func (i *PresentationIndex) Remember(_ context.Context, quizID, presentationID string) error {
	i.mu.Lock()
	i.rooms[quizID] = presentationID
	i.mu.Unlock()
	return nil
}

func (i *PresentationIndex) Lookup(_ context.Context, quizID string) (string, bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	presentationID, ok := i.rooms[quizID]
	return presentationID, ok, nil
}
