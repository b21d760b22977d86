package metrics

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/util/panics"
)

var log = logger.RegisterSubSystem("METR")
var spawn = panics.GoroutineWrapperFunc(log)
