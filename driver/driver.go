// Package driver defines the boundary between the rhi core and a concrete explicit GPU API.
//
// Every handle is an interface so that the core can run against the Vulkan binding in
// driver/vkng or against the in-process simulation in driver/fake. Values mirror their
// Vulkan counterparts closely; enum values share Vulkan's numbering.
package driver

import "time"

// NoTimeout blocks a wait until it completes.
const NoTimeout time.Duration = 1<<63 - 1

const (
	ExtensionSurface                = "VK_KHR_surface"
	ExtensionSwapchain              = "VK_KHR_swapchain"
	ExtensionDebugUtils             = "VK_EXT_debug_utils"
	ExtensionPortabilityEnumeration = "VK_KHR_portability_enumeration"
	ExtensionPortabilitySubset      = "VK_KHR_portability_subset"

	LayerKhronosValidation = "VK_LAYER_KHRONOS_validation"
)

// Loader is the entry point of a driver. It is the only object that exists before an
// instance is created.
type Loader interface {
	AvailableExtensions() (map[string]struct{}, error)
	AvailableLayers() (map[string]struct{}, error)
	CreateInstance(info InstanceCreateInfo) (Instance, error)
}

type Instance interface {
	PhysicalDevices() ([]PhysicalDevice, error)
	Destroy()
}

type PhysicalDevice interface {
	Info() PhysicalDeviceInfo
	Extensions() (map[string]struct{}, error)
	SupportsPresent(family int, surface Surface) (bool, error)
	CreateDevice(info DeviceCreateInfo) (Device, error)
}

// Surface is a presentable target created by a Window. Queries are made against the
// physical device that will present to it.
type Surface interface {
	Capabilities(physical PhysicalDevice) (SurfaceCapabilities, error)
	Formats(physical PhysicalDevice) ([]SurfaceFormat, error)
	PresentModes(physical PhysicalDevice) ([]PresentMode, error)
	Destroy()
}

// Window is supplied by the platform layer.
type Window interface {
	RequiredInstanceExtensions() []string
	CreateSurface(instance Instance) (Surface, error)
	DrawableSize() (width, height int)
}

type Device interface {
	Queue(family, index int) Queue
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	WaitForFences(fences []Fence, waitAll bool, timeout time.Duration) error
	ResetFences(fences []Fence) error
	CreateCommandPool(family int, flags CommandPoolFlags) (CommandPool, error)
	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	CreateRenderPass(info RenderPassCreateInfo) (RenderPass, error)
	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	WaitIdle() error
	Destroy()
}

type Queue interface {
	Submit(info SubmitInfo, fence Fence) error
	// Present returns true when the presentation succeeded but the swapchain no longer
	// matches the surface exactly.
	Present(info PresentInfo) (suboptimal bool, err error)
	WaitIdle() error
}

type Semaphore interface {
	Destroy()
}

type Fence interface {
	Destroy()
}

type CommandPool interface {
	Allocate(count int) ([]CommandBuffer, error)
	Free(buffers []CommandBuffer)
	Reset(releaseResources bool) error
	Destroy()
}

type CommandBuffer interface {
	Begin(oneTimeSubmit bool) error
	End() error
	Reset(releaseResources bool) error

	CmdBeginRenderPass(info RenderPassBeginInfo)
	CmdBindPipeline(pipeline Pipeline)
	CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance int)
	CmdEndRenderPass()
}

type Swapchain interface {
	Images() ([]Image, error)
	// AcquireNextImage signals semaphore (and fence, when not nil) once the returned image
	// may be rendered to.
	AcquireNextImage(timeout time.Duration, semaphore Semaphore, fence Fence) (index int, suboptimal bool, err error)
	Destroy()
}

type RenderPass interface {
	Destroy()
}

// Framebuffer owns the image view it was created with.
type Framebuffer interface {
	Destroy()
}

// Image is a presentable image owned by a swapchain.
type Image interface{}

// Pipeline is produced by the pipeline layer, outside of rhi.
type Pipeline interface{}
