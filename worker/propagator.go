package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/npdadmin/syncengine/core"
)

// Propagator applies one claimed sync item to its destination side. The CRM
// client and the internal CRUD writers live behind this interface.
type Propagator interface {
	Propagate(ctx context.Context, item core.SyncQueueItem) error
}

// DocumentProcessor handles one claimed document item.
type DocumentProcessor interface {
	Process(ctx context.Context, item core.DocumentQueueItem) error
}

// ConflictError is returned by a Propagator that found the two sides had
// diverged since the item was enqueued. The worker records the conflict and
// fails the item with a reference to it.
type ConflictError struct {
	Input core.RecordConflictInput
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "worker: sync conflict detected"
	}
	entityID := strings.TrimSpace(e.Input.EntityID)
	if entityID == "" {
		return "worker: sync conflict detected"
	}
	return fmt.Sprintf("worker: sync conflict detected for %s %s", e.Input.EntityType, entityID)
}
