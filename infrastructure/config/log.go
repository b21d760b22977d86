package config

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
)

var log = logger.RegisterSubSystem("CNFG")
