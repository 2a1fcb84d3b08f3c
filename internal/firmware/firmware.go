// Package firmware gates benchmarking on a minimum miner firmware version.
package firmware

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/axebench/internal/device"
	"codeberg.org/mutker/axebench/internal/errors"
)

const (
	ErrInvalidVersion = errors.ErrorCode("firmware_invalid_version")
	ErrUnsupported    = errors.ErrorCode("firmware_unsupported")

	// DefaultRequired is the oldest firmware that accepts the settings API
	DefaultRequired = "v2.5.21"
	// DefaultBoardFamily is the board type the version gate applies to
	DefaultBoardFamily = "NMAxe"
	// unknownVersion stands in for a miner that does not report one
	unknownVersion = "v0.0.00"
)

var versionPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)([a-z]?)`)

// Version is a parsed vMAJOR.MINOR.PATCH[suffix] firmware version
type Version struct {
	Major, Minor, Patch int
	Suffix             string
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Suffix)
}

// Parse reads a version from the start of s. Trailing text after the
// optional suffix letter is ignored.
func Parse(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errors.New().WithData(ErrInvalidVersion, s)
	}

	var v Version
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, errors.New().Wrap(ErrInvalidVersion, err)
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return Version{}, errors.New().Wrap(ErrInvalidVersion, err)
	}
	if v.Patch, err = strconv.Atoi(m[3]); err != nil {
		return Version{}, errors.New().Wrap(ErrInvalidVersion, err)
	}
	v.Suffix = m[4]

	return v, nil
}

// Compare returns a negative number when v is older than o, zero when they
// are equal and a positive number when v is newer. A suffixed release is
// older than the same release without a suffix.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		return v.Major - o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor - o.Minor
	}
	if v.Patch != o.Patch {
		return v.Patch - o.Patch
	}
	if v.Suffix != o.Suffix {
		if v.Suffix == "" {
			return 1
		}
		if o.Suffix == "" {
			return -1
		}
		return int(v.Suffix[0]) - int(o.Suffix[0])
	}

	return 0
}

// Compare parses both strings and compares them
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}

	return va.Compare(vb), nil
}

// Policy decides which miners are gated and on what version
type Policy struct {
	Required    string
	BoardFamily string
}

func DefaultPolicy() Policy {
	return Policy{
		Required:    DefaultRequired,
		BoardFamily: DefaultBoardFamily,
	}
}

// Applies reports whether the gate covers the given board type. A miner
// that reports no board type is assumed to be of the gated family.
func (p Policy) Applies(boardType string) bool {
	if p.BoardFamily == "" || boardType == "" {
		return true
	}

	return strings.Contains(strings.ToLower(boardType), strings.ToLower(p.BoardFamily))
}

// Check returns an ErrUnsupported error when a gated miner runs firmware
// older than the policy requires.
func Check(info *device.Info, policy Policy) error {
	if !policy.Applies(info.BoardType) {
		return nil
	}

	installed := info.Version
	if installed == "" {
		installed = unknownVersion
	}

	result, err := Compare(installed, policy.Required)
	if err != nil {
		return err
	}

	if result < 0 {
		return errors.New().WithData(ErrUnsupported, struct {
			Installed string
			Required  string
		}{
			Installed: installed,
			Required:  policy.Required,
		})
	}

	return nil
}
