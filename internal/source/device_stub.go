//go:build !cgo

package source

import (
	"fmt"

	"github.com/rs/zerolog"
)

// newDeviceSource returns an error when built without cgo.
func newDeviceSource(cfg Config, logger zerolog.Logger) (Source, error) {
	return nil, fmt.Errorf("%w: capture device requires a cgo build", ErrDevice)
}

// CheckDevice reports that no capture device is available without cgo.
func CheckDevice() error {
	return fmt.Errorf("%w: capture device requires a cgo build", ErrDevice)
}
