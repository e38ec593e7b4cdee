package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/npdadmin/syncengine/core"
)

var (
	_ gocmd.Querier[GetConflictMessage, core.SyncConflict]            = (*GetConflictQuery)(nil)
	_ gocmd.Querier[ListConflictsMessage, core.ConflictPage]          = (*ListConflictsQuery)(nil)
	_ gocmd.Querier[ConflictStatsMessage, core.ConflictStats]         = (*ConflictStatsQuery)(nil)
	_ gocmd.Querier[GetSyncItemMessage, core.SyncQueueItem]           = (*GetSyncItemQuery)(nil)
	_ gocmd.Querier[ListSyncQueueMessage, core.SyncQueuePage]         = (*ListSyncQueueQuery)(nil)
	_ gocmd.Querier[SyncQueueStatsMessage, core.QueueStats]           = (*SyncQueueStatsQuery)(nil)
	_ gocmd.Querier[GetDocumentItemMessage, core.DocumentQueueItem]   = (*GetDocumentItemQuery)(nil)
	_ gocmd.Querier[ListDocumentQueueMessage, core.DocumentQueuePage] = (*ListDocumentQueueQuery)(nil)
	_ gocmd.Querier[DocumentQueueStatsMessage, core.QueueStats]       = (*DocumentQueueStatsQuery)(nil)
)
