package gfx

import (
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"

	"github.com/vkngwrapper/rhi/driver"
)

type Config struct {
	ApplicationName string `yaml:"application_name"`
	EngineName      string `yaml:"engine_name"`

	// ImageCount is the number of swapchain images requested and of frames in flight.
	ImageCount int `yaml:"image_count"`

	EnableValidation bool     `yaml:"enable_validation"`
	ValidationLayers []string `yaml:"validation_layers"`
	DeviceExtensions []string `yaml:"device_extensions"`

	// Zero waits forever.
	FenceTimeout   time.Duration `yaml:"fence_timeout"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	ClearColor mgl32.Vec4 `yaml:"clear_color"`

	Logger *slog.Logger `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		ApplicationName:  "rhi",
		EngineName:       "rhi",
		ImageCount:       2,
		ValidationLayers: []string{driver.LayerKhronosValidation},
		ClearColor:       mgl32.Vec4{0, 0, 0, 1},
	}
}

// LoadConfig reads YAML over DefaultConfig. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfigFile(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open config %s", path)
	}
	defer file.Close()

	return LoadConfig(file)
}

func (c Config) Validate() error {
	if c.ImageCount < 1 {
		return errors.Newf("image_count must be at least 1, got %d", c.ImageCount)
	}
	if c.FenceTimeout < 0 || c.AcquireTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	for i, component := range c.ClearColor {
		if component < 0 || component > 1 {
			return errors.Newf("clear_color[%d] = %v is outside [0, 1]", i, component)
		}
	}
	return nil
}

func effectiveTimeout(timeout time.Duration) time.Duration {
	if timeout == 0 {
		return driver.NoTimeout
	}
	return timeout
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return nopLogger
	}
	return c.Logger
}
