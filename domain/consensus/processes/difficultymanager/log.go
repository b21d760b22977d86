package difficultymanager

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
)

var log = logger.RegisterSubSystem("DIFF")
