package service

import (
	"context"
	"encoding/json"

	"github.com/sumire/bugtracker/internal/domain"
	"github.com/sumire/bugtracker/internal/repository"
)

// HistoryService exposes the per-issue change history.
type HistoryService struct {
	history HistoryStore
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(history HistoryStore) *HistoryService {
	return &HistoryService{history: history}
}

// List returns the issue's history entries visible to the user, newest first
// unless the caller orders otherwise.
func (s *HistoryService) List(ctx context.Context, issueID, userID int64, filter repository.HistoryFilter, params repository.ListParams) ([]domain.HistoryEntry, int, error) {
	return s.history.List(ctx, issueID, userID, filter, params)
}

// marshalChanges encodes a field -> [old, new] map for a history entry.
// Marshalling of plain scalars and pointers cannot fail, so the error is
// discarded.
func marshalChanges(changes map[string][2]any) json.RawMessage {
	raw, _ := json.Marshal(changes)
	return raw
}
