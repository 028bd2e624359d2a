package sim

import ilogger "rlbench-env/internal/logger"

func logDebug(msg string) { ilogger.LogDebug(msg) }
func logInfo(msg string)  { ilogger.LogInfo(msg) }
func logWarn(msg string)  { ilogger.LogWarn(msg) }
func logError(msg string) { ilogger.LogError(msg) }
