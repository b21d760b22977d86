package coordinator

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/util/panics"
)

var log = logger.RegisterSubSystem("COOR")
var spawn = panics.GoroutineWrapperFunc(log)
