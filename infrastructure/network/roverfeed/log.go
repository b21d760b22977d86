package roverfeed

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/util/panics"
)

var log = logger.RegisterSubSystem("RVFD")
var spawn = panics.GoroutineWrapperFunc(log)
