package logger

import (
	"time"
)

// slowExecutionThreshold is the duration past which a measured function is
// reported at warn level instead of trace.
const slowExecutionThreshold = time.Second

// LogAndMeasureExecutionTime logs the start of functionName at trace level
// and returns a function that logs its end along with the elapsed time.
// Executions slower than slowExecutionThreshold are logged as warnings.
func LogAndMeasureExecutionTime(log *Logger, functionName string) (onEnd func()) {
	start := time.Now()
	log.Tracef("%s start", functionName)
	return func() {
		elapsed := time.Since(start)
		if elapsed > slowExecutionThreshold {
			log.Warnf("%s took %s", functionName, elapsed)
			return
		}
		log.Tracef("%s end. Took: %s", functionName, elapsed)
	}
}
