package syncengine

import "github.com/npdadmin/syncengine/core"

var _ CommandQueryService = (*core.Service)(nil)
