package device

import (
	"context"
	"net"

	"codeberg.org/mutker/axebench/internal/errors"
)

const (
	ErrTimeout       = errors.ErrorCode("device_timeout")
	ErrUnreachable   = errors.ErrorCode("device_unreachable")
	ErrRequestFailed = errors.ErrorCode("device_request_failed")
	ErrInvalidURL    = errors.ErrorCode("device_invalid_address")
)

// IsRetryable reports whether err is a timeout or a connection failure
func IsRetryable(err error) bool {
	return errors.HasCode(err, ErrTimeout) || errors.HasCode(err, ErrUnreachable)
}

// classify maps a transport error to the device error taxonomy
func classify(ctx context.Context, err error) error {
	errFactory := errors.New()

	if ctx.Err() != nil {
		return errFactory.Wrap(errors.ErrCanceled, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errFactory.Wrap(ErrTimeout, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errFactory.Wrap(ErrUnreachable, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return errFactory.Wrap(ErrUnreachable, err)
	}

	return errFactory.Wrap(ErrRequestFailed, err)
}
