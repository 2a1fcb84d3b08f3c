package errors

// ErrorCode names a class of failure. Codes survive wrapping and end up in
// the error_code log field.
type ErrorCode string

// Error is a coded error with an optional message, cause and log data
type Error interface {
	error
	Code() ErrorCode
	// Message is the human readable text, falling back to the code's
	// default message
	Message() string
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
