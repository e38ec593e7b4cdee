package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RecordConflictMessage]  = (*RecordConflictCommand)(nil)
	_ gocmd.Commander[ResolveConflictMessage] = (*ResolveConflictCommand)(nil)
	_ gocmd.Commander[BulkResolveMessage]     = (*BulkResolveCommand)(nil)
	_ gocmd.Commander[EnqueueSyncMessage]     = (*EnqueueSyncCommand)(nil)
	_ gocmd.Commander[RetrySyncMessage]       = (*RetrySyncCommand)(nil)
	_ gocmd.Commander[EnqueueDocumentMessage] = (*EnqueueDocumentCommand)(nil)
	_ gocmd.Commander[RetryDocumentMessage]   = (*RetryDocumentCommand)(nil)
	_ gocmd.Commander[CancelDocumentMessage]  = (*CancelDocumentCommand)(nil)
	_ gocmd.Commander[ReapStaleMessage]       = (*ReapStaleCommand)(nil)
)
