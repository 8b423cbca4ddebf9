package gfx

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rhi/driver"
)

// Fatal at initialization.
var (
	ErrMissingDriver           = errors.New("no usable graphics driver")
	ErrMissingExtensions       = errors.New("required extensions are missing")
	ErrMissingLayers           = errors.New("required layers are missing")
	ErrNoSuitableDevice        = errors.New("no physical device exposes the required queues")
	ErrQueuePresentUnsupported = errors.New("queue cannot present to the surface")
	ErrInvalidImageCount       = errors.New("image count outside the surface's supported range")
	ErrUnknown                 = errors.New("unknown graphics error")
)

// Runtime conditions. All but ErrDeviceLost drop the current frame only.
var (
	ErrOutOfDate      = driver.ErrOutOfDate
	ErrSurfaceLost    = driver.ErrSurfaceLost
	ErrAcquireTimeout = errors.New("timed out acquiring a swapchain image")
	ErrMinimized      = errors.New("window has no drawable area")
	ErrDeviceLost     = driver.ErrDeviceLost
)

// IsTransient reports whether err only cost the current frame.
func IsTransient(err error) bool {
	return errors.IsAny(err, ErrOutOfDate, ErrSurfaceLost, ErrAcquireTimeout, ErrMinimized)
}

// IsFatal reports whether the renderer cannot continue after err.
func IsFatal(err error) bool {
	return err != nil && !IsTransient(err) && !errors.IsAssertionFailure(err)
}

// creationError classifies a driver failure that happened while building the instance or
// the device.
func creationError(err error, format string, args ...interface{}) error {
	wrapped := errors.Wrapf(err, format, args...)
	switch {
	case errors.Is(err, driver.ErrIncompatibleDriver), errors.Is(err, driver.ErrInitializationFailed):
		return errors.Mark(wrapped, ErrMissingDriver)
	case errors.Is(err, driver.ErrExtensionNotPresent):
		return errors.Mark(wrapped, ErrMissingExtensions)
	case errors.Is(err, driver.ErrLayerNotPresent):
		return errors.Mark(wrapped, ErrMissingLayers)
	case errors.Is(err, driver.ErrSurfaceLost), errors.Is(err, driver.ErrDeviceLost):
		return wrapped
	}
	return errors.Mark(wrapped, ErrUnknown)
}

// waitError turns an expired host wait into a lost device: nothing in the frame protocol
// can make progress once a fence stops signaling.
func waitError(err error, what string) error {
	if errors.IsAny(err, driver.ErrTimeout, driver.ErrNotReady) {
		return errors.Mark(errors.Wrapf(err, "%s", what), ErrDeviceLost)
	}
	return errors.Wrapf(err, "%s", what)
}
