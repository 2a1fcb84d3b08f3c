package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"
	ErrCanceled        ErrorCode = "operation_canceled"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidRange    ErrorCode = "invalid_range"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Application errors
	ErrProbeDevice   ErrorCode = "probe_device_failed"
	ErrApplySettings ErrorCode = "apply_failed"
	ErrRestartDevice ErrorCode = "restart_failed"
	ErrSweep         ErrorCode = "sweep_failed"
	ErrWriteReport   ErrorCode = "report_write_failed"
	ErrFinalApply    ErrorCode = "final_apply_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrInvalidArgument: "Invalid argument provided",
	ErrAlreadyRunning:  "Another benchmark is already running against this miner",
	ErrCanceled:        "Operation canceled",
	ErrInvalidConfig:   "Invalid configuration",
	ErrReadConfig:      "Failed to read configuration",
	ErrBindFlags:       "Failed to bind flags",
	ErrInvalidRange:    "Invalid range, expected format: min,max with min < max",
	ErrInvalidInterval: "Invalid interval value",
	ErrInvalidLogLevel: "Invalid log level",
	ErrInitFailed:      "Initialization failed",
	ErrShutdownFailed:  "Shutdown failed",
	ErrProbeDevice:     "Failed to get system info, make sure the miner is online and the address is correct",
	ErrApplySettings:   "Failed to apply system settings",
	ErrRestartDevice:   "Failed to restart the miner",
	ErrSweep:           "Benchmark sweep failed",
	ErrWriteReport:     "Failed to write benchmark report",
	ErrFinalApply:      "Failed to apply the best settings",
	ErrOperationFailed: "Operation failed",
	ErrTimeout:         "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
