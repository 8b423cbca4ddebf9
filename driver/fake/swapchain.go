package fake

import (
	"time"

	"github.com/vkngwrapper/rhi/driver"
)

type Image struct {
	swapchain *Swapchain
	index     int
}

func (i *Image) Index() int {
	return i.index
}

type Swapchain struct {
	dev        *Device
	surface    *Surface
	info       driver.SwapchainCreateInfo
	images     []*Image
	generation int
	next       int
	held       map[int]bool
	retired    bool
	destroyed  bool
}

var _ driver.Swapchain = (*Swapchain)(nil)

func (d *Device) CreateSwapchain(info driver.SwapchainCreateInfo) (driver.Swapchain, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	surface, ok := info.Surface.(*Surface)
	if !ok || surface.destroyed {
		return nil, d.st.violate("swapchain needs a live surface")
	}
	if surface.lost {
		return nil, driver.ErrSurfaceLost
	}

	caps := surface.capabilities()
	if info.MinImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && info.MinImageCount > caps.MaxImageCount) {
		return nil, d.st.violate("swapchain image count %d outside [%d, %d]", info.MinImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	if info.Extent.Empty() {
		return nil, d.st.violate("swapchain with empty extent %s", info.Extent)
	}

	if info.OldSwapchain != nil {
		old := info.OldSwapchain.(*Swapchain)
		if old.surface != surface {
			return nil, d.st.violate("old swapchain belongs to another surface")
		}
		old.retired = true
	}

	_, generation := surface.window.state()
	swapchain := &Swapchain{
		dev:        d,
		surface:    surface,
		info:       info,
		generation: generation,
		held:       map[int]bool{},
	}
	for i := 0; i < info.MinImageCount+surface.opts.ExtraImages; i++ {
		swapchain.images = append(swapchain.images, &Image{swapchain: swapchain, index: i})
	}
	d.created("swapchain")
	return swapchain, nil
}

// CreateInfo returns the parameters the swapchain was created with.
func (s *Swapchain) CreateInfo() driver.SwapchainCreateInfo {
	return s.info
}

func (s *Swapchain) Destroyed() bool {
	s.dev.st.mu.Lock()
	defer s.dev.st.mu.Unlock()
	return s.destroyed
}

func (s *Swapchain) outOfDate() bool {
	_, generation := s.surface.window.state()
	return s.retired || generation != s.generation
}

func (s *Swapchain) Images() ([]driver.Image, error) {
	images := make([]driver.Image, 0, len(s.images))
	for _, image := range s.images {
		images = append(images, image)
	}
	return images, nil
}

func (s *Swapchain) AcquireNextImage(timeout time.Duration, semaphore driver.Semaphore, fence driver.Fence) (int, bool, error) {
	st := s.dev.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if s.destroyed {
		return 0, false, st.violate("acquire from a destroyed swapchain")
	}
	if s.surface.lost {
		return 0, false, driver.ErrSurfaceLost
	}
	if s.outOfDate() {
		return 0, false, driver.ErrOutOfDate
	}

	caps := s.surface.capabilities()
	if len(s.held) > len(s.images)-caps.MinImageCount {
		if timeout == 0 {
			return 0, false, driver.ErrNotReady
		}
		return 0, false, driver.ErrTimeout
	}

	index := s.next
	for s.held[index] {
		index = (index + 1) % len(s.images)
	}
	s.held[index] = true
	s.next = (index + 1) % len(s.images)

	if semaphore != nil {
		semaphore.(*Semaphore).signal("acquire")
	}
	if fence != nil {
		fence.(*Fence).signaled = true
	}
	return index, s.surface.suboptimal, nil
}

func (s *Swapchain) Destroy() {
	st := s.dev.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if s.destroyed {
		st.violate("swapchain destroyed twice")
		return
	}
	for _, framebuffer := range s.dev.framebuffers {
		if !framebuffer.destroyed && framebuffer.image.swapchain == s {
			st.violate("swapchain destroyed while a framebuffer uses its image %d", framebuffer.image.index)
		}
	}
	s.destroyed = true
	s.dev.destroyedObject("swapchain")
}
