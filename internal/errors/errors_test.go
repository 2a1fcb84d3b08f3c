package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/axebench/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrApplySettings)
	assert.Equal(t, errors.GetErrorMessage(errors.ErrApplySettings), err.Error())

	wrapped := errFactory.Wrap(errors.ErrApplySettings, fmt.Errorf("boom"))
	assert.Contains(t, wrapped.Error(), "boom")

	withData := errFactory.WithData(errors.ErrInvalidRange, "400-625")
	assert.Contains(t, withData.Error(), "400-625")

	custom := errFactory.WithMessage(errors.ErrInternal, "custom")
	assert.Equal(t, "custom", custom.Error())
}

func TestCodeOf(t *testing.T) {
	errFactory := errors.New()

	inner := errFactory.New(errors.ErrTimeout)
	outer := errFactory.Wrap(errors.ErrProbeDevice, inner)
	plain := fmt.Errorf("context: %w", outer)

	assert.Equal(t, errors.ErrProbeDevice, errors.CodeOf(plain))
	assert.True(t, errors.HasCode(plain, errors.ErrTimeout))
	assert.True(t, errors.HasCode(plain, errors.ErrProbeDevice))
	assert.False(t, errors.HasCode(plain, errors.ErrInternal))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(fmt.Errorf("plain")))
}

func TestMessage(t *testing.T) {
	errFactory := errors.New()

	wrapped := fmt.Errorf("run: %w", errFactory.Wrap(errors.ErrFinalApply, fmt.Errorf("boom")))
	assert.Equal(t, errors.GetErrorMessage(errors.ErrFinalApply), errors.Message(wrapped))

	custom := errFactory.WithMessage(errors.ErrInvalidArgument, "--axe_ip is required")
	assert.Equal(t, "--axe_ip is required", errors.Message(custom))

	assert.Equal(t, "plain", errors.Message(fmt.Errorf("plain")))
	assert.Empty(t, errors.Message(nil))
}
