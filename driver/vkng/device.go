package vkng

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/rhi/driver"
)

type Device struct {
	physical   *PhysicalDevice
	device     core1_0.Device
	swapchains khr_swapchain.Extension
	queues     map[[2]int]*Queue
}

var _ driver.Device = (*Device)(nil)

func newDevice(physical *PhysicalDevice, device core1_0.Device, extensions []string) *Device {
	d := &Device{
		physical: physical,
		device:   device,
		queues:   make(map[[2]int]*Queue),
	}
	for _, ext := range extensions {
		if ext == khr_swapchain.ExtensionName {
			d.swapchains = khr_swapchain.CreateExtensionFromDevice(device)
		}
	}
	return d
}

func vulkanTimeout(timeout time.Duration) time.Duration {
	if timeout == driver.NoTimeout {
		return common.NoTimeout
	}
	return timeout
}

func (d *Device) Queue(family, index int) driver.Queue {
	key := [2]int{family, index}
	if queue, ok := d.queues[key]; ok {
		return queue
	}

	queue := &Queue{
		device: d,
		queue:  d.device.GetQueue(family, index),
		family: family,
	}
	d.queues[key] = queue
	return queue
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	semaphore, res, err := d.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return &Semaphore{semaphore: semaphore}, nil
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	options := core1_0.FenceCreateInfo{}
	if signaled {
		options.Flags = core1_0.FenceCreateSignaled
	}

	fence, res, err := d.device.CreateFence(nil, options)
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &Fence{fence: fence}, nil
}

func fenceHandles(fences []driver.Fence) ([]core1_0.Fence, error) {
	handles := make([]core1_0.Fence, 0, len(fences))
	for _, fence := range fences {
		f, ok := fence.(*Fence)
		if !ok {
			return nil, errors.AssertionFailedf("fence %T was not created by the vkng driver", fence)
		}
		handles = append(handles, f.fence)
	}
	return handles, nil
}

func (d *Device) WaitForFences(fences []driver.Fence, waitAll bool, timeout time.Duration) error {
	handles, err := fenceHandles(fences)
	if err != nil {
		return err
	}

	res, err := d.device.WaitForFences(waitAll, vulkanTimeout(timeout), handles)
	return resultError(res, err)
}

func (d *Device) ResetFences(fences []driver.Fence) error {
	handles, err := fenceHandles(fences)
	if err != nil {
		return err
	}

	res, err := d.device.ResetFences(handles)
	return resultError(res, err)
}

func (d *Device) CreateCommandPool(family int, flags driver.CommandPoolFlags) (driver.CommandPool, error) {
	options := core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: family,
	}
	if flags&driver.CommandPoolTransient != 0 {
		options.Flags |= core1_0.CommandPoolCreateTransient
	}
	if flags&driver.CommandPoolResetBuffer != 0 {
		options.Flags |= core1_0.CommandPoolCreateResetBuffer
	}

	pool, res, err := d.device.CreateCommandPool(nil, options)
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrapf(err, "create command pool for family %d", family)
	}
	return &CommandPool{device: d, pool: pool}, nil
}

func (d *Device) CreateSwapchain(info driver.SwapchainCreateInfo) (driver.Swapchain, error) {
	if d.swapchains == nil {
		return nil, errors.Mark(errors.Newf("device was created without %s", khr_swapchain.ExtensionName), driver.ErrExtensionNotPresent)
	}

	surface, ok := info.Surface.(*Surface)
	if !ok {
		return nil, errors.AssertionFailedf("surface %T was not created by the vkng driver", info.Surface)
	}

	// The binding's transform type is only available from a fresh capabilities query.
	capabilities, res, err := surface.surface.PhysicalDeviceSurfaceCapabilities(d.physical.device)
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if len(info.QueueFamilies) > 1 {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = info.QueueFamilies
	}

	options := khr_swapchain.SwapchainCreateInfo{
		Surface: surface.surface,

		MinImageCount:    info.MinImageCount,
		ImageFormat:      core1_0.Format(info.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.ColorSpace),
		ImageExtent:      core1_0.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        true,
	}
	if info.OldSwapchain != nil {
		old, ok := info.OldSwapchain.(*Swapchain)
		if !ok {
			return nil, errors.AssertionFailedf("swapchain %T was not created by the vkng driver", info.OldSwapchain)
		}
		options.OldSwapchain = old.swapchain
	}

	swapchain, res, err := d.swapchains.CreateSwapchain(d.device, nil, options)
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	return &Swapchain{device: d, swapchain: swapchain}, nil
}

func (d *Device) CreateRenderPass(info driver.RenderPassCreateInfo) (driver.RenderPass, error) {
	renderPass, res, err := d.device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         core1_0.Format(info.ColorFormat),
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	return &RenderPass{renderPass: renderPass}, nil
}

func (d *Device) CreateFramebuffer(info driver.FramebufferCreateInfo) (driver.Framebuffer, error) {
	renderPass, ok := info.RenderPass.(*RenderPass)
	if !ok {
		return nil, errors.AssertionFailedf("render pass %T was not created by the vkng driver", info.RenderPass)
	}
	image, ok := info.Image.(core1_0.Image)
	if !ok {
		return nil, errors.AssertionFailedf("image %T was not created by the vkng driver", info.Image)
	}

	imageView, res, err := d.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(info.Format),
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrap(err, "create image view")
	}

	framebuffer, res, err := d.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  renderPass.renderPass,
		Layers:      1,
		Attachments: []core1_0.ImageView{imageView},
		Width:       info.Extent.Width,
		Height:      info.Extent.Height,
	})
	if err := resultError(res, err); err != nil {
		imageView.Destroy(nil)
		return nil, errors.Wrap(err, "create framebuffer")
	}
	return &Framebuffer{framebuffer: framebuffer, imageView: imageView}, nil
}

func (d *Device) WaitIdle() error {
	res, err := d.device.WaitIdle()
	return resultError(res, err)
}

func (d *Device) Destroy() {
	d.device.Destroy(nil)
}
