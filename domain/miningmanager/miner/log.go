package miner

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
	"github.com/anchorchain/anchord/util/panics"
)

var log = logger.RegisterSubSystem("MINR")
var spawn = panics.GoroutineWrapperFunc(log)
