package sqlstore

import (
	"github.com/npdadmin/syncengine/core"
	"github.com/npdadmin/syncengine/ratelimit"
)

var (
	_ core.ConflictStore          = (*ConflictStore)(nil)
	_ core.SyncQueueStore         = (*SyncQueueStore)(nil)
	_ core.DocumentQueueStore     = (*DocumentQueueStore)(nil)
	_ core.AuditOutboxStore       = (*AuditOutboxStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ ratelimit.StateStore        = (*RateLimitStateStore)(nil)
	_ ratelimit.StateStore        = (*CachedRateLimitStateStore)(nil)
)
