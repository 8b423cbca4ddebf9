package gfx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver"
	"github.com/vkngwrapper/rhi/driver/fake"
)

func TestNewInstance_Extensions(t *testing.T) {
	opts := fake.DefaultOptions()
	opts.InstanceExtensions = append(opts.InstanceExtensions, driver.ExtensionPortabilityEnumeration)
	loader := fake.NewLoader(opts)

	instance, err := NewInstance(loader, fake.NewWindow(800, 600), DefaultConfig())
	require.NoError(t, err)

	info := loader.Instances()[0].CreateInfo()
	require.Equal(t, []string{driver.ExtensionSurface, driver.ExtensionPortabilityEnumeration}, info.Extensions)
	require.Empty(t, info.Layers)
	require.Nil(t, info.DebugCallback)
	require.Equal(t, "rhi", info.ApplicationName)

	require.NoError(t, instance.Destroy())
	require.True(t, loader.Instances()[0].Destroyed())
	require.NoError(t, instance.Destroy())
	require.Empty(t, loader.Violations())
}

func TestNewInstance_Headless(t *testing.T) {
	loader := fake.NewLoader(fake.DefaultOptions())

	_, err := NewInstance(loader, nil, DefaultConfig())
	require.NoError(t, err)
	require.Empty(t, loader.Instances()[0].CreateInfo().Extensions)
}

func TestNewInstance_Failures(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*fake.Options)
		validation bool
		want       error
	}{
		{
			name:   "no adapters",
			mutate: func(o *fake.Options) { o.Adapters = nil },
			want:   ErrMissingDriver,
		},
		{
			name:   "no surface extension",
			mutate: func(o *fake.Options) { o.InstanceExtensions = []string{driver.ExtensionDebugUtils} },
			want:   ErrMissingExtensions,
		},
		{
			name:       "no debug utils",
			mutate:     func(o *fake.Options) { o.InstanceExtensions = []string{driver.ExtensionSurface} },
			validation: true,
			want:       ErrMissingExtensions,
		},
		{
			name:       "no validation layer",
			mutate:     func(o *fake.Options) { o.Layers = nil },
			validation: true,
			want:       ErrMissingLayers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fake.DefaultOptions()
			tt.mutate(&opts)
			cfg := DefaultConfig()
			cfg.EnableValidation = tt.validation

			_, err := NewInstance(fake.NewLoader(opts), fake.NewWindow(800, 600), cfg)
			require.True(t, errors.Is(err, tt.want), "%+v", err)
			require.True(t, IsFatal(err))
		})
	}
}

func TestNewInstance_ValidationMessagesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.EnableValidation = true
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	loader := fake.NewLoader(fake.DefaultOptions())
	_, err := NewInstance(loader, fake.NewWindow(800, 600), cfg)
	require.NoError(t, err)

	info := loader.Instances()[0].CreateInfo()
	require.Equal(t, []string{driver.LayerKhronosValidation}, info.Layers)
	require.Contains(t, info.Extensions, driver.ExtensionDebugUtils)

	loader.Instances()[0].Emit(driver.DebugSeverityWarning, "image layout mismatch")
	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "image layout mismatch")
	require.Contains(t, buf.String(), "type=Validation")
}

func TestNewInstance_DebugSeverityFollowsLogger(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		want  driver.DebugSeverity
	}{
		{name: "debug", level: slog.LevelDebug, want: driver.DebugSeverityVerbose},
		{name: "info", level: slog.LevelInfo, want: driver.DebugSeverityInfo},
		{name: "warn", level: slog.LevelWarn, want: driver.DebugSeverityWarning},
		{name: "error", level: slog.LevelError, want: driver.DebugSeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := DefaultConfig()
			cfg.EnableValidation = true
			cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level}))

			loader := fake.NewLoader(fake.DefaultOptions())
			_, err := NewInstance(loader, fake.NewWindow(800, 600), cfg)
			require.NoError(t, err)

			instance := loader.Instances()[0]
			require.Equal(t, tt.want, instance.CreateInfo().DebugSeverity)

			instance.Emit(driver.DebugSeverityVerbose, "loader scanned icd manifests")
			instance.Emit(driver.DebugSeverityInfo, "device extension enabled")
			instance.Emit(driver.DebugSeverityError, "invalid image layout")
			require.Equal(t, tt.level <= slog.LevelDebug, strings.Contains(buf.String(), "loader scanned icd manifests"))
			require.Equal(t, tt.level <= slog.LevelInfo, strings.Contains(buf.String(), "device extension enabled"))
			require.Contains(t, buf.String(), "invalid image layout")
		})
	}
}

func TestInstanceDestroy_WithLiveDevice(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())

	err := r.instance.Destroy()
	require.True(t, errors.IsAssertionFailure(err), "%+v", err)
	require.False(t, r.loader.Instances()[0].Destroyed())
}
