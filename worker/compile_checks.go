package worker

import (
	"github.com/npdadmin/syncengine/core"
	"github.com/npdadmin/syncengine/ratelimit"
)

var (
	_ SyncService     = (*core.Service)(nil)
	_ DocumentService = (*core.Service)(nil)
	_ ThrottleGate    = (*ratelimit.AdaptivePolicy)(nil)
)
