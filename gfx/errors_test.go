package gfx

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/rhi/driver"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
	}{
		{name: "nil", err: nil},
		{name: "out of date", err: errors.Wrap(ErrOutOfDate, "acquire"), transient: true},
		{name: "surface lost", err: errors.Wrap(driver.ErrSurfaceLost, "present"), transient: true},
		{name: "acquire timeout", err: errors.Mark(errors.New("slow"), ErrAcquireTimeout), transient: true},
		{name: "minimized", err: errors.Mark(errors.New("0x0"), ErrMinimized), transient: true},
		{name: "device lost", err: errors.Wrap(ErrDeviceLost, "wait"), fatal: true},
		{name: "missing driver", err: errors.Wrap(ErrMissingDriver, "init"), fatal: true},
		{name: "invalid image count", err: ErrInvalidImageCount, fatal: true},
		{name: "assertion", err: errors.AssertionFailedf("misuse")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.transient, IsTransient(tt.err))
			require.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestCreationError(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  error
	}{
		{name: "incompatible driver", cause: driver.ErrIncompatibleDriver, want: ErrMissingDriver},
		{name: "initialization failed", cause: driver.ErrInitializationFailed, want: ErrMissingDriver},
		{name: "extension", cause: driver.ErrExtensionNotPresent, want: ErrMissingExtensions},
		{name: "layer", cause: driver.ErrLayerNotPresent, want: ErrMissingLayers},
		{name: "surface lost", cause: driver.ErrSurfaceLost, want: ErrSurfaceLost},
		{name: "out of memory", cause: driver.ErrOutOfMemory, want: ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := creationError(errors.Wrap(tt.cause, "fake"), "create %s", "thing")
			require.True(t, errors.Is(err, tt.want), "%+v", err)
			require.True(t, errors.Is(err, tt.cause))
			require.Contains(t, err.Error(), "create thing")
		})
	}
}

func TestWaitError(t *testing.T) {
	require.True(t, errors.Is(waitError(driver.ErrTimeout, "wait"), ErrDeviceLost))
	require.True(t, errors.Is(waitError(driver.ErrNotReady, "wait"), ErrDeviceLost))

	err := waitError(driver.ErrOutOfMemory, "wait")
	require.False(t, errors.Is(err, ErrDeviceLost))
	require.True(t, errors.Is(err, driver.ErrOutOfMemory))
}
