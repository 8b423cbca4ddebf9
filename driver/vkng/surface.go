package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"

	"github.com/vkngwrapper/rhi/driver"
)

// NewSDLLoader creates a Loader from the Vulkan library SDL loaded for its windows.
func NewSDLLoader() (*Loader, error) {
	loader, err := core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "create vulkan loader")
	}
	return NewLoader(loader), nil
}

// Window adapts an SDL window created with sdl.WINDOW_VULKAN.
type Window struct {
	window *sdl.Window
}

var _ driver.Window = (*Window)(nil)

func NewWindow(window *sdl.Window) *Window {
	return &Window{window: window}
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance driver.Instance) (driver.Surface, error) {
	inst, ok := instance.(*Instance)
	if !ok {
		return nil, errors.AssertionFailedf("instance %T was not created by the vkng driver", instance)
	}

	surface, err := vkng_sdl2.CreateSurface(inst.instance, inst.surfaces, w.window)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create window surface"), driver.ErrInitializationFailed)
	}
	return &Surface{surface: surface}, nil
}

func (w *Window) DrawableSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

type Surface struct {
	surface khr_surface.Surface
}

var _ driver.Surface = (*Surface)(nil)

func physicalHandle(physical driver.PhysicalDevice) (core1_0.PhysicalDevice, error) {
	p, ok := physical.(*PhysicalDevice)
	if !ok {
		return nil, errors.AssertionFailedf("physical device %T was not created by the vkng driver", physical)
	}
	return p.device, nil
}

func (s *Surface) Capabilities(physical driver.PhysicalDevice) (driver.SurfaceCapabilities, error) {
	device, err := physicalHandle(physical)
	if err != nil {
		return driver.SurfaceCapabilities{}, err
	}

	capabilities, res, err := s.surface.PhysicalDeviceSurfaceCapabilities(device)
	if err := resultError(res, err); err != nil {
		return driver.SurfaceCapabilities{}, errors.Wrap(err, "query surface capabilities")
	}

	return driver.SurfaceCapabilities{
		MinImageCount:    capabilities.MinImageCount,
		MaxImageCount:    capabilities.MaxImageCount,
		CurrentExtent:    driver.Extent{Width: capabilities.CurrentExtent.Width, Height: capabilities.CurrentExtent.Height},
		MinImageExtent:   driver.Extent{Width: capabilities.MinImageExtent.Width, Height: capabilities.MinImageExtent.Height},
		MaxImageExtent:   driver.Extent{Width: capabilities.MaxImageExtent.Width, Height: capabilities.MaxImageExtent.Height},
		CurrentTransform: uint32(capabilities.CurrentTransform),
	}, nil
}

func (s *Surface) Formats(physical driver.PhysicalDevice) ([]driver.SurfaceFormat, error) {
	device, err := physicalHandle(physical)
	if err != nil {
		return nil, err
	}

	formats, res, err := s.surface.PhysicalDeviceSurfaceFormats(device)
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}

	result := make([]driver.SurfaceFormat, 0, len(formats))
	for _, format := range formats {
		result = append(result, driver.SurfaceFormat{
			Format:     driver.Format(format.Format),
			ColorSpace: driver.ColorSpace(format.ColorSpace),
		})
	}
	return result, nil
}

func (s *Surface) PresentModes(physical driver.PhysicalDevice) ([]driver.PresentMode, error) {
	device, err := physicalHandle(physical)
	if err != nil {
		return nil, err
	}

	modes, res, err := s.surface.PhysicalDeviceSurfacePresentModes(device)
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "query surface present modes")
	}

	result := make([]driver.PresentMode, 0, len(modes))
	for _, mode := range modes {
		result = append(result, driver.PresentMode(mode))
	}
	return result, nil
}

func (s *Surface) Destroy() {
	s.surface.Destroy(nil)
}
