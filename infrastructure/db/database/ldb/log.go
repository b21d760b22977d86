package ldb

import "github.com/anchorchain/anchord/infrastructure/logger"

var log = logger.RegisterSubSystem("LDB")
