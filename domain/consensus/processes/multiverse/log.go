package multiverse

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
)

var log = logger.RegisterSubSystem("MVRS")
