package syncengine

import (
	"fmt"

	synccommand "github.com/npdadmin/syncengine/command"
	syncquery "github.com/npdadmin/syncengine/query"
)

// CommandQueryService is the full engine surface the facade wraps.
// *core.Service satisfies it.
type CommandQueryService interface {
	synccommand.MutatingService
	syncquery.ConflictReader
	syncquery.SyncQueueReader
	syncquery.DocumentQueueReader
}

type Commands struct {
	RecordConflict  *synccommand.RecordConflictCommand
	ResolveConflict *synccommand.ResolveConflictCommand
	BulkResolve     *synccommand.BulkResolveCommand
	EnqueueSync     *synccommand.EnqueueSyncCommand
	RetrySync       *synccommand.RetrySyncCommand
	EnqueueDocument *synccommand.EnqueueDocumentCommand
	RetryDocument   *synccommand.RetryDocumentCommand
	CancelDocument  *synccommand.CancelDocumentCommand
	ReapStale       *synccommand.ReapStaleCommand
}

type Queries struct {
	GetConflict        *syncquery.GetConflictQuery
	ListConflicts      *syncquery.ListConflictsQuery
	ConflictStats      *syncquery.ConflictStatsQuery
	GetSyncItem        *syncquery.GetSyncItemQuery
	ListSyncQueue      *syncquery.ListSyncQueueQuery
	SyncQueueStats     *syncquery.SyncQueueStatsQuery
	GetDocumentItem    *syncquery.GetDocumentItemQuery
	ListDocumentQueue  *syncquery.ListDocumentQueueQuery
	DocumentQueueStats *syncquery.DocumentQueueStatsQuery
}

// Facade bundles the command and query handlers for embedding hosts so
// they can dispatch engine operations without wiring each handler.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("syncengine: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		RecordConflict:  synccommand.NewRecordConflictCommand(service),
		ResolveConflict: synccommand.NewResolveConflictCommand(service),
		BulkResolve:     synccommand.NewBulkResolveCommand(service),
		EnqueueSync:     synccommand.NewEnqueueSyncCommand(service),
		RetrySync:       synccommand.NewRetrySyncCommand(service),
		EnqueueDocument: synccommand.NewEnqueueDocumentCommand(service),
		RetryDocument:   synccommand.NewRetryDocumentCommand(service),
		CancelDocument:  synccommand.NewCancelDocumentCommand(service),
		ReapStale:       synccommand.NewReapStaleCommand(service),
	}
	facade.queries = Queries{
		GetConflict:        syncquery.NewGetConflictQuery(service),
		ListConflicts:      syncquery.NewListConflictsQuery(service),
		ConflictStats:      syncquery.NewConflictStatsQuery(service),
		GetSyncItem:        syncquery.NewGetSyncItemQuery(service),
		ListSyncQueue:      syncquery.NewListSyncQueueQuery(service),
		SyncQueueStats:     syncquery.NewSyncQueueStatsQuery(service),
		GetDocumentItem:    syncquery.NewGetDocumentItemQuery(service),
		ListDocumentQueue:  syncquery.NewListDocumentQueueQuery(service),
		DocumentQueueStats: syncquery.NewDocumentQueueStatsQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
