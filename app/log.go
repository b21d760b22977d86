package app

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/util/panics"
)

var log = logger.RegisterSubSystem("ANCD")
var spawn = panics.GoroutineWrapperFunc(log)
