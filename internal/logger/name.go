package logger

// AppName prefixes every log file this tool writes.
const AppName = "rlbench-env"

// LogPrefixes returns the log file name prefixes cleanup looks for.
func LogPrefixes() []string { return []string{AppName} }

// PrimaryLogPrefix returns the filename prefix for new log files.
func PrimaryLogPrefix() string { return AppName }
