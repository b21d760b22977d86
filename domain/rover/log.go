package rover

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/util/panics"
)

var log = logger.RegisterSubSystem("ROVR")
var spawn = panics.GoroutineWrapperFunc(log)
