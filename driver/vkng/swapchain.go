package vkng

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/rhi/driver"
)

type Swapchain struct {
	device    *Device
	swapchain khr_swapchain.Swapchain
}

var _ driver.Swapchain = (*Swapchain)(nil)

func (s *Swapchain) Images() ([]driver.Image, error) {
	images, res, err := s.swapchain.SwapchainImages()
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "get swapchain images")
	}

	result := make([]driver.Image, 0, len(images))
	for _, image := range images {
		result = append(result, image)
	}
	return result, nil
}

func (s *Swapchain) AcquireNextImage(timeout time.Duration, semaphore driver.Semaphore, fence driver.Fence) (int, bool, error) {
	var semaphoreHandle core1_0.Semaphore
	if semaphore != nil {
		sem, ok := semaphore.(*Semaphore)
		if !ok {
			return 0, false, errors.AssertionFailedf("semaphore %T was not created by the vkng driver", semaphore)
		}
		semaphoreHandle = sem.semaphore
	}

	var fenceHandle core1_0.Fence
	if fence != nil {
		f, ok := fence.(*Fence)
		if !ok {
			return 0, false, errors.AssertionFailedf("fence %T was not created by the vkng driver", fence)
		}
		fenceHandle = f.fence
	}

	imageIndex, res, err := s.swapchain.AcquireNextImage(vulkanTimeout(timeout), semaphoreHandle, fenceHandle)
	if res == khr_swapchain.VKSuboptimal {
		return imageIndex, true, nil
	}
	if err := resultError(res, err); err != nil {
		return 0, false, err
	}
	return imageIndex, false, nil
}

func (s *Swapchain) Destroy() {
	s.swapchain.Destroy(nil)
}

type RenderPass struct {
	renderPass core1_0.RenderPass
}

func (r *RenderPass) Destroy() {
	r.renderPass.Destroy(nil)
}

type Framebuffer struct {
	framebuffer core1_0.Framebuffer
	imageView   core1_0.ImageView
}

func (f *Framebuffer) Destroy() {
	f.framebuffer.Destroy(nil)
	f.imageView.Destroy(nil)
}
