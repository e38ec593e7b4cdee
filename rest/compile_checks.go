package rest

import "github.com/npdadmin/syncengine/core"

var _ EngineService = (*core.Service)(nil)
