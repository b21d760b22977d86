package worksetbuilder

import (
	"github.com/anchorchain/anchord/infrastructure/logger"
)

var log = logger.RegisterSubSystem("WSBD")
