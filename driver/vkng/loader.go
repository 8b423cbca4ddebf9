package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_surface"

	"github.com/vkngwrapper/rhi/driver"
)

type Loader struct {
	loader core.Loader
}

var _ driver.Loader = (*Loader)(nil)

// NewLoader wraps a vkngwrapper loader, usually created from the windowing library's
// vkGetInstanceProcAddr.
func NewLoader(loader core.Loader) *Loader {
	return &Loader{loader: loader}
}

func (l *Loader) AvailableExtensions() (map[string]struct{}, error) {
	extensions, res, err := l.loader.AvailableExtensions()
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}

	names := make(map[string]struct{}, len(extensions))
	for name := range extensions {
		names[name] = struct{}{}
	}
	return names, nil
}

func (l *Loader) AvailableLayers() (map[string]struct{}, error) {
	layers, res, err := l.loader.AvailableLayers()
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "enumerate instance layers")
	}

	names := make(map[string]struct{}, len(layers))
	for name := range layers {
		names[name] = struct{}{}
	}
	return names, nil
}

func debugSeverity(severity ext_debug_utils.DebugUtilsMessageSeverityFlags) driver.DebugSeverity {
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		return driver.DebugSeverityError
	case severity&ext_debug_utils.SeverityWarning != 0:
		return driver.DebugSeverityWarning
	case severity&ext_debug_utils.SeverityInfo != 0:
		return driver.DebugSeverityInfo
	}
	return driver.DebugSeverityVerbose
}

// debugSeverities subscribes to every severity from least upwards.
func debugSeverities(least driver.DebugSeverity) ext_debug_utils.DebugUtilsMessageSeverityFlags {
	flags := ext_debug_utils.SeverityError
	if least <= driver.DebugSeverityWarning {
		flags |= ext_debug_utils.SeverityWarning
	}
	if least <= driver.DebugSeverityInfo {
		flags |= ext_debug_utils.SeverityInfo
	}
	if least <= driver.DebugSeverityVerbose {
		flags |= ext_debug_utils.SeverityVerbose
	}
	return flags
}

func debugMessengerOptions(callback func(driver.DebugMessage), least driver.DebugSeverity) ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: debugSeverities(least),
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback: func(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
			callback(driver.DebugMessage{
				Severity: debugSeverity(severity),
				Type:     msgType.String(),
				Message:  data.Message,
			})
			return false
		},
	}
}

func (l *Loader) CreateInstance(info driver.InstanceCreateInfo) (driver.Instance, error) {
	options := core1_0.InstanceCreateInfo{
		ApplicationName:       info.ApplicationName,
		ApplicationVersion:    common.CreateVersion(1, 0, 0),
		EngineName:            info.EngineName,
		EngineVersion:         common.CreateVersion(1, 0, 0),
		APIVersion:            common.Vulkan1_2,
		EnabledExtensionNames: info.Extensions,
		EnabledLayerNames:     info.Layers,
	}

	for _, ext := range info.Extensions {
		if ext == khr_portability_enumeration.ExtensionName {
			options.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
		}
	}
	if info.DebugCallback != nil {
		// Covers messages emitted while the instance itself is created and destroyed.
		options.Next = debugMessengerOptions(info.DebugCallback, info.DebugSeverity)
	}

	instance, res, err := l.loader.CreateInstance(nil, options)
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "create instance")
	}

	result := &Instance{
		instance: instance,
		surfaces: khr_surface.CreateExtensionFromInstance(instance),
	}
	if info.DebugCallback != nil {
		debugLoader := ext_debug_utils.CreateExtensionFromInstance(instance)
		result.messenger, res, err = debugLoader.CreateDebugUtilsMessenger(instance, nil, debugMessengerOptions(info.DebugCallback, info.DebugSeverity))
		if err := resultError(res, err); err != nil {
			instance.Destroy(nil)
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}
	return result, nil
}

type Instance struct {
	instance  core1_0.Instance
	messenger ext_debug_utils.DebugUtilsMessenger
	surfaces  khr_surface.Extension
}

var _ driver.Instance = (*Instance)(nil)

func (i *Instance) PhysicalDevices() ([]driver.PhysicalDevice, error) {
	devices, res, err := i.instance.EnumeratePhysicalDevices()
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	physical := make([]driver.PhysicalDevice, 0, len(devices))
	for _, device := range devices {
		physical = append(physical, &PhysicalDevice{instance: i, device: device})
	}
	return physical, nil
}

func (i *Instance) Destroy() {
	if i.messenger != nil {
		i.messenger.Destroy(nil)
	}
	i.instance.Destroy(nil)
}
