package activity

import (
	"context"
	"encoding/json"

	"studioflow/internal/logger"
)

// Emitter appends activity records. Record never fails from the caller's
// point of view: a store error is logged and swallowed so that audit logging
// cannot break the business operation that triggered it.
type Emitter struct {
	repo Repository
}

func NewEmitter(repo Repository) *Emitter {
	return &Emitter{repo: repo}
}

func (e *Emitter) Record(ctx context.Context, clientID int, actorID *int, action, description string, metadata map[string]interface{}) {
	var raw []byte
	if metadata != nil {
		var err error
		raw, err = json.Marshal(metadata)
		if err != nil {
			logger.Errorf("Failed to marshal activity metadata for client %d action %s: %v", clientID, action, err)
			raw = nil
		}
	}

	if err := e.repo.Insert(ctx, clientID, actorID, action, description, raw); err != nil {
		logger.Errorf("Failed to record activity for client %d action %s: %v", clientID, action, err)
	}
}

func (e *Emitter) ListByClient(ctx context.Context, clientID, limit, offset int) ([]Entry, error) {
	return e.repo.ListByClient(ctx, clientID, limit, offset)
}
