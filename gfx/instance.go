package gfx

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver"
)

// Instance is the connection to the driver. It outlives every Device created from it.
type Instance struct {
	raw     driver.Instance
	logger  *slog.Logger
	devices int

	destroyed bool
}

func appendUnique(names []string, more ...string) []string {
	for _, name := range more {
		found := false
		for _, existing := range names {
			if existing == name {
				found = true
				break
			}
		}
		if !found {
			names = append(names, name)
		}
	}
	return names
}

func missingNames(wanted []string, available map[string]struct{}) []string {
	var missing []string
	for _, name := range wanted {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// NewInstance creates an instance with the extensions window needs to present. A nil
// window creates a headless instance. With cfg.EnableValidation the validation layers are
// enabled and driver messages are forwarded to the logger.
func NewInstance(loader driver.Loader, window driver.Window, cfg Config) (*Instance, error) {
	logger := cfg.logger()

	available, err := loader.AvailableExtensions()
	if err != nil {
		return nil, creationError(err, "enumerate instance extensions")
	}

	var extensions []string
	if window != nil {
		extensions = appendUnique(extensions, window.RequiredInstanceExtensions()...)
	}
	if cfg.EnableValidation {
		extensions = appendUnique(extensions, driver.ExtensionDebugUtils)
	}
	if missing := missingNames(extensions, available); len(missing) > 0 {
		return nil, errors.Mark(errors.Newf("missing instance extensions: %s", strings.Join(missing, ", ")), ErrMissingExtensions)
	}
	if _, ok := available[driver.ExtensionPortabilityEnumeration]; ok {
		extensions = appendUnique(extensions, driver.ExtensionPortabilityEnumeration)
	}

	var layers []string
	if cfg.EnableValidation {
		availableLayers, err := loader.AvailableLayers()
		if err != nil {
			return nil, creationError(err, "enumerate instance layers")
		}
		if missing := missingNames(cfg.ValidationLayers, availableLayers); len(missing) > 0 {
			return nil, errors.Mark(errors.Newf("missing validation layers: %s", strings.Join(missing, ", ")), ErrMissingLayers)
		}
		layers = append(layers, cfg.ValidationLayers...)
	}

	info := driver.InstanceCreateInfo{
		ApplicationName: cfg.ApplicationName,
		EngineName:      cfg.EngineName,
		Extensions:      extensions,
		Layers:          layers,
	}
	if cfg.EnableValidation {
		info.DebugCallback = func(msg driver.DebugMessage) {
			logger.Log(context.Background(), debugLevel(msg.Severity), msg.Message, slog.String("type", msg.Type))
		}
		info.DebugSeverity = debugSeverityFor(logger)
	}

	raw, err := loader.CreateInstance(info)
	if err != nil {
		return nil, creationError(err, "create instance")
	}

	logger.Info("instance created",
		slog.String("application", cfg.ApplicationName),
		slog.Any("extensions", extensions),
		slog.Bool("validation", cfg.EnableValidation))

	return &Instance{raw: raw, logger: logger}, nil
}

func (i *Instance) RawHandle() driver.Instance {
	return i.raw
}

func (i *Instance) PhysicalDevices() ([]driver.PhysicalDevice, error) {
	devices, err := i.raw.PhysicalDevices()
	if err != nil {
		return nil, creationError(err, "enumerate physical devices")
	}
	return devices, nil
}

// Destroy fails while a Device created from this instance is still alive.
func (i *Instance) Destroy() error {
	if i.destroyed {
		return nil
	}
	if i.devices > 0 {
		return errors.AssertionFailedf("instance destroyed while %d device(s) are alive", i.devices)
	}
	i.raw.Destroy()
	i.destroyed = true
	i.logger.Info("instance destroyed")
	return nil
}
