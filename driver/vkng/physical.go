package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/rhi/driver"
)

type PhysicalDevice struct {
	instance *Instance
	device   core1_0.PhysicalDevice
}

var _ driver.PhysicalDevice = (*PhysicalDevice)(nil)

func (p *PhysicalDevice) Info() driver.PhysicalDeviceInfo {
	var info driver.PhysicalDeviceInfo

	properties, err := p.device.Properties()
	if err == nil {
		info.Name = properties.DriverName
		info.Limits.MaxImageDimension2D = properties.Limits.MaxImageDimension2D
	}

	for index, family := range p.device.QueueFamilyProperties() {
		var flags driver.QueueFlags
		if family.QueueFlags&core1_0.QueueGraphics != 0 {
			flags |= driver.QueueGraphics
		}
		if family.QueueFlags&core1_0.QueueCompute != 0 {
			flags |= driver.QueueCompute
		}
		if family.QueueFlags&core1_0.QueueTransfer != 0 {
			flags |= driver.QueueTransfer
		}

		info.QueueFamilies = append(info.QueueFamilies, driver.QueueFamily{
			Index:      index,
			Flags:      flags,
			QueueCount: family.QueueCount,
		})
	}

	for _, memoryType := range p.device.MemoryProperties().MemoryTypes {
		info.MemoryTypes = append(info.MemoryTypes, driver.MemoryType{
			PropertyFlags: uint32(memoryType.PropertyFlags),
			HeapIndex:     memoryType.HeapIndex,
		})
	}
	return info
}

func (p *PhysicalDevice) Extensions() (map[string]struct{}, error) {
	extensions, res, err := p.device.EnumerateDeviceExtensionProperties()
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}

	names := make(map[string]struct{}, len(extensions))
	for name := range extensions {
		names[name] = struct{}{}
	}
	return names, nil
}

func (p *PhysicalDevice) SupportsPresent(family int, surface driver.Surface) (bool, error) {
	s, ok := surface.(*Surface)
	if !ok {
		return false, errors.AssertionFailedf("surface %T was not created by the vkng driver", surface)
	}

	supported, res, err := s.surface.PhysicalDeviceSurfaceSupport(p.device, family)
	if err := resultError(res, err); err != nil {
		return false, errors.Wrapf(err, "query present support for family %d", family)
	}
	return supported, nil
}

func (p *PhysicalDevice) CreateDevice(info driver.DeviceCreateInfo) (driver.Device, error) {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	for _, queue := range info.Queues {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queue.FamilyIndex,
			QueuePriorities:  queue.Priorities,
		})
	}

	device, res, err := p.device.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: info.Extensions,
	})
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	return newDevice(p, device, info.Extensions), nil
}
