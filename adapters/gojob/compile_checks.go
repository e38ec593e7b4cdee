package gojob

import (
	"github.com/npdadmin/syncengine/core"

	"github.com/goliatone/go-job/queue"
)

var (
	_ MaintenanceService = (*core.Service)(nil)
	_ OutboxDispatcher   = (*core.AuditDispatcher)(nil)
	_ queue.Enqueuer     = (*EnqueuerAdapter)(nil)
)
