package firmware_test

import (
	"testing"

	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
	"codeberg.org/mutker/axebench/internal/firmware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		sign int
	}{
		{"v2.5.21", "v2.5.21", 0},
		{"v2.5.20", "v2.5.21", -1},
		{"v2.6.0", "v2.5.21", 1},
		{"v2.5.21a", "v2.5.21", -1},
		{"v2.5.21", "v2.5.21a", 1},
		{"v2.5.21a", "v2.5.21b", -1},
		{"3.0.0", "v2.9.99", 1},
		{"v2.10.0", "v2.9.0", 1},
		{"v2.5.21-dirty", "v2.5.21", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got, err := firmware.Compare(tt.a, tt.b)
			require.NoError(t, err)
			switch {
			case tt.sign < 0:
				assert.Negative(t, got)
			case tt.sign > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestCompareInvalid(t *testing.T) {
	for _, bad := range []string{"", "latest", "v2.5", "x2.5.21", "2.x.1"} {
		_, err := firmware.Compare(bad, "v2.5.21")
		require.Error(t, err, bad)
		assert.True(t, errors.HasCode(err, firmware.ErrInvalidVersion), bad)

		_, err = firmware.Compare("v2.5.21", bad)
		require.Error(t, err, bad)
	}
}

func TestParse(t *testing.T) {
	v, err := firmware.Parse("v2.5.21a")
	require.NoError(t, err)
	assert.Equal(t, firmware.Version{Major: 2, Minor: 5, Patch: 21, Suffix: "a"}, v)
	assert.Equal(t, "v2.5.21a", v.String())
}

func TestCheck(t *testing.T) {
	policy := firmware.DefaultPolicy()

	require.NoError(t, firmware.Check(&device.Info{BoardType: "NMAxe", Version: "v2.5.21"}, policy))
	require.NoError(t, firmware.Check(&device.Info{BoardType: "NMAxe", Version: "v2.6.1"}, policy))

	err := firmware.Check(&device.Info{BoardType: "NMAxe", Version: "v2.5.20"}, policy)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, firmware.ErrUnsupported))

	err = firmware.Check(&device.Info{BoardType: "nmaxe-gamma"}, policy)
	require.Error(t, err, "missing version is treated as v0.0.00")
	assert.True(t, errors.HasCode(err, firmware.ErrUnsupported))

	err = firmware.Check(&device.Info{Version: "v1.0.0"}, policy)
	require.Error(t, err, "unknown board type is gated")

	require.NoError(t, firmware.Check(&device.Info{BoardType: "401", Version: "v1.0.0"}, policy),
		"other boards skip the gate")

	err = firmware.Check(&device.Info{BoardType: "NMAxe", Version: "garbage"}, policy)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, firmware.ErrInvalidVersion))
}
