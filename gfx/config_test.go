package gfx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/rhi/driver"
)

func TestLoadConfig_Empty(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
application_name: triangle
image_count: 3
enable_validation: true
device_extensions: [VK_KHR_swapchain]
fence_timeout: 250ms
clear_color: [0.5, 0.25, 0, 1]
`))
	require.NoError(t, err)

	require.Equal(t, "triangle", cfg.ApplicationName)
	require.Equal(t, "rhi", cfg.EngineName)
	require.Equal(t, 3, cfg.ImageCount)
	require.True(t, cfg.EnableValidation)
	require.Equal(t, []string{driver.LayerKhronosValidation}, cfg.ValidationLayers)
	require.Equal(t, []string{driver.ExtensionSwapchain}, cfg.DeviceExtensions)
	require.Equal(t, 250*time.Millisecond, cfg.FenceTimeout)
	require.Zero(t, cfg.AcquireTimeout)
	require.Equal(t, mgl32.Vec4{0.5, 0.25, 0, 1}, cfg.ClearColor)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("imagecount: 3\n"))
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("image_count: 0\n"))
	require.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rhi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image_count: 3\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.ImageCount)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "no images", mutate: func(c *Config) { c.ImageCount = 0 }, wantErr: true},
		{name: "negative fence timeout", mutate: func(c *Config) { c.FenceTimeout = -time.Second }, wantErr: true},
		{name: "negative acquire timeout", mutate: func(c *Config) { c.AcquireTimeout = -time.Second }, wantErr: true},
		{name: "clear color above one", mutate: func(c *Config) { c.ClearColor[1] = 1.5 }, wantErr: true},
		{name: "clear color below zero", mutate: func(c *Config) { c.ClearColor[3] = -0.1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestEffectiveTimeout(t *testing.T) {
	require.Equal(t, driver.NoTimeout, effectiveTimeout(0))
	require.Equal(t, time.Second, effectiveTimeout(time.Second))
}
