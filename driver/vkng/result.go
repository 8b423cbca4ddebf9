// Package vkng implements the rhi driver interfaces on top of github.com/vkngwrapper/core,
// with SDL2 providing windows and surfaces.
package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/rhi/driver"
)

// resultError maps a Vulkan result onto the driver sentinels. Positive results that are
// not errors to vkngwrapper, such as VK_TIMEOUT, still produce an error here.
func resultError(res common.VkResult, err error) error {
	var sentinel error
	switch res {
	case core1_0.VKSuccess, khr_swapchain.VKSuboptimal:
		return err
	case core1_0.VKTimeout:
		sentinel = driver.ErrTimeout
	case core1_0.VKNotReady:
		sentinel = driver.ErrNotReady
	case khr_swapchain.VKErrorOutOfDate:
		sentinel = driver.ErrOutOfDate
	case khr_surface.VKErrorSurfaceLost:
		sentinel = driver.ErrSurfaceLost
	case core1_0.VKErrorDeviceLost:
		sentinel = driver.ErrDeviceLost
	case core1_0.VKErrorOutOfHostMemory, core1_0.VKErrorOutOfDeviceMemory:
		sentinel = driver.ErrOutOfMemory
	case core1_0.VKErrorIncompatibleDriver:
		sentinel = driver.ErrIncompatibleDriver
	case core1_0.VKErrorExtensionNotPresent:
		sentinel = driver.ErrExtensionNotPresent
	case core1_0.VKErrorLayerNotPresent:
		sentinel = driver.ErrLayerNotPresent
	case core1_0.VKErrorInitializationFailed:
		sentinel = driver.ErrInitializationFailed
	default:
		if err == nil {
			return nil
		}
		sentinel = driver.ErrUnknown
	}

	if err == nil {
		return sentinel
	}
	return errors.Mark(err, sentinel)
}
