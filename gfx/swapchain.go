package gfx

import (
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver"
)

// SwapchainConfig is what was negotiated with the surface. ImageCount is the number of
// images the driver created, which may exceed the requested count; the number of frame
// slots is always the requested count (see FrameSlots).
type SwapchainConfig struct {
	Format      driver.Format
	ColorSpace  driver.ColorSpace
	PresentMode driver.PresentMode
	Extent      driver.Extent
	ImageCount  int
}

type SwapchainOptions struct {
	// RenderQueue is the queue whose submit-complete semaphore a present waits on.
	// Defaults to the present queue.
	RenderQueue *Queue
	// Extent is used when the surface lets the swapchain pick its size.
	Extent driver.Extent
	// OwnsSurface makes Destroy destroy the surface too.
	OwnsSurface bool

	// Zero waits forever.
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
}

// Swapchain cycles through its images one frame slot at a time. Each slot has a fence
// and an acquire semaphore; the fence guards the slot until the work submitted with it
// has finished.
type Swapchain struct {
	device       *Device
	presentQueue *Queue
	renderQueue  *Queue
	surface      driver.Surface
	ownsSurface  bool
	requested    int
	logger       *slog.Logger

	fenceTimeout   time.Duration
	acquireTimeout time.Duration

	raw          driver.Swapchain
	images       []driver.Image
	config       SwapchainConfig
	capabilities driver.SurfaceCapabilities
	sync         *SyncSet

	currentFrame  int
	currentImage  int
	acquired      bool
	needsRecreate bool
	destroyed     bool
}

// NewSwapchain creates a swapchain of imageCount images presented by presentQueue.
// It fails with ErrQueuePresentUnsupported when the queue cannot present to surface
// and with ErrInvalidImageCount when the surface does not accept imageCount images.
func NewSwapchain(device *Device, presentQueue *Queue, surface driver.Surface, imageCount int, opts SwapchainOptions) (*Swapchain, error) {
	supported, err := device.physical.SupportsPresent(presentQueue.family, surface)
	if err != nil {
		return nil, errors.Wrap(err, "query present support")
	}
	if !supported {
		return nil, errors.Mark(errors.Newf("queue family %d cannot present to the surface", presentQueue.family), ErrQueuePresentUnsupported)
	}

	renderQueue := opts.RenderQueue
	if renderQueue == nil {
		renderQueue = presentQueue
	}

	s := &Swapchain{
		device:       device,
		presentQueue: presentQueue,
		renderQueue:  renderQueue,
		surface:      surface,
		ownsSurface:  opts.OwnsSurface,
		requested:    imageCount,
		logger:       device.logger,

		fenceTimeout:   effectiveTimeout(opts.FenceTimeout),
		acquireTimeout: effectiveTimeout(opts.AcquireTimeout),
	}
	if err := s.create(surface, nil, opts.Extent); err != nil {
		return nil, err
	}

	s.sync, err = NewSyncSet(device, imageCount)
	if err != nil {
		s.raw.Destroy()
		return nil, err
	}

	device.retain("swapchain")
	s.logger.Info("swapchain created",
		slog.Int("images", len(s.images)),
		slog.Int("format", int(s.config.Format)),
		slog.String("presentMode", s.config.PresentMode.String()),
		extentAttr("extent", s.config.Extent))
	return s, nil
}

// chooseSurfaceFormat prefers 8-bit sRGB in the sRGB color space and otherwise takes the
// first format the surface reports.
func chooseSurfaceFormat(formats []driver.SurfaceFormat) driver.SurfaceFormat {
	for _, preferred := range []driver.Format{driver.FormatB8G8R8A8SRGB, driver.FormatR8G8B8A8SRGB} {
		for _, format := range formats {
			if format.Format == preferred && format.ColorSpace == driver.ColorSpaceSRGBNonlinear {
				return format
			}
		}
	}
	return formats[0]
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func chooseExtent(caps driver.SurfaceCapabilities, requested driver.Extent) driver.Extent {
	if caps.CurrentExtent.Width != driver.UndefinedExtent {
		return caps.CurrentExtent
	}
	return driver.Extent{
		Width:  clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// create builds a swapchain on surface chained to old, and destroys the current swapchain
// once the new one exists. On failure the current swapchain is left untouched.
func (s *Swapchain) create(surface driver.Surface, old driver.Swapchain, extent driver.Extent) error {
	physical := s.device.physical

	caps, err := surface.Capabilities(physical)
	if err != nil {
		return errors.Wrap(err, "query surface capabilities")
	}
	if s.requested < caps.MinImageCount || (caps.MaxImageCount > 0 && s.requested > caps.MaxImageCount) {
		return errors.Mark(errors.Newf("requested %d swapchain images, surface supports [%d, %d]", s.requested, caps.MinImageCount, caps.MaxImageCount), ErrInvalidImageCount)
	}

	formats, err := surface.Formats(physical)
	if err != nil {
		return errors.Wrap(err, "query surface formats")
	}
	if len(formats) == 0 {
		return errors.Mark(errors.New("surface reports no formats"), ErrUnknown)
	}
	modes, err := surface.PresentModes(physical)
	if err != nil {
		return errors.Wrap(err, "query surface present modes")
	}
	s.logger.Debug("surface present modes", slog.Any("available", modes))

	format := chooseSurfaceFormat(formats)
	swapExtent := chooseExtent(caps, extent)
	if swapExtent.Empty() {
		return errors.Mark(errors.Newf("surface extent %s has no area", swapExtent), ErrOutOfDate)
	}

	families := []int{s.renderQueue.family}
	if s.presentQueue.family != s.renderQueue.family {
		families = append(families, s.presentQueue.family)
	}

	raw, err := s.device.raw.CreateSwapchain(driver.SwapchainCreateInfo{
		Surface:       surface,
		MinImageCount: s.requested,
		Format:        format.Format,
		ColorSpace:    format.ColorSpace,
		Extent:        swapExtent,
		PresentMode:   driver.PresentModeFIFO,
		PreTransform:  caps.CurrentTransform,
		QueueFamilies: families,
		OldSwapchain:  old,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	images, err := raw.Images()
	if err != nil {
		raw.Destroy()
		return errors.Wrap(err, "get swapchain images")
	}

	if s.raw != nil {
		s.raw.Destroy()
	}
	s.raw = raw
	s.images = images
	s.capabilities = caps
	s.config = SwapchainConfig{
		Format:      format.Format,
		ColorSpace:  format.ColorSpace,
		PresentMode: driver.PresentModeFIFO,
		Extent:      swapExtent,
		ImageCount:  len(images),
	}
	return nil
}

// AcquireNextImage advances to the next frame slot, waits until the work last submitted
// with that slot's fence has finished, and acquires an image. The slot's acquire semaphore
// is signaled once the image may be written. ErrOutOfDate, ErrSurfaceLost and
// ErrAcquireTimeout mean the swapchain must be recreated before trying again.
func (s *Swapchain) AcquireNextImage() (int, error) {
	if s.acquired {
		return 0, errors.AssertionFailedf("image %d acquired again before it was presented", s.currentImage)
	}

	s.currentFrame = (s.currentFrame + 1) % s.sync.Len()
	fence := s.sync.Fence(s.currentFrame)
	if err := fence.Wait(s.fenceTimeout); err != nil {
		return 0, errors.Wrapf(err, "frame slot %d", s.currentFrame)
	}

	index, suboptimal, err := s.raw.AcquireNextImage(s.acquireTimeout, s.sync.AcquireSemaphore(s.currentFrame), nil)
	if err != nil {
		if errors.IsAny(err, driver.ErrTimeout, driver.ErrNotReady) {
			return 0, errors.Mark(errors.Wrap(err, "acquire next image"), ErrAcquireTimeout)
		}
		if errors.IsAny(err, ErrOutOfDate, ErrSurfaceLost) {
			s.needsRecreate = true
		}
		return 0, errors.Wrap(err, "acquire next image")
	}

	// A failed acquire leaves the fence signaled for the slot's next turn.
	if err := fence.Reset(); err != nil {
		return 0, err
	}

	if suboptimal {
		s.needsRecreate = true
	}
	s.currentImage = index
	s.acquired = true
	return index, nil
}

// Present queues the acquired image for display once the render queue's submission has
// completed. A failed present is logged and marks the swapchain for recreation; the next
// acquire reports the cause.
func (s *Swapchain) Present() error {
	if !s.acquired {
		return errors.AssertionFailedf("present without an acquired image")
	}
	s.acquired = false

	suboptimal, err := s.presentQueue.raw.Present(driver.PresentInfo{
		WaitSemaphores: []driver.Semaphore{s.renderQueue.consumeSubmitComplete()},
		Swapchain:      s.raw,
		ImageIndex:     s.currentImage,
	})
	if err != nil {
		s.needsRecreate = true
		s.logger.Warn("present failed", slog.Int("image", s.currentImage), slog.Any("error", err))
		return nil
	}
	if suboptimal {
		s.needsRecreate = true
		s.logger.Debug("swapchain is suboptimal", slog.Int("image", s.currentImage))
	}
	return nil
}

// NeedsRecreate reports whether an acquire or present found the swapchain out of date or
// suboptimal since the last recreation.
func (s *Swapchain) NeedsRecreate() bool {
	return s.needsRecreate
}

// Recreate rebuilds the swapchain on the same surface for the new extent, handing the old
// swapchain to the driver before destroying it. The device must be idle and every
// framebuffer using the old images destroyed.
func (s *Swapchain) Recreate(extent driver.Extent) error {
	if s.acquired {
		return errors.AssertionFailedf("swapchain recreated while image %d is acquired", s.currentImage)
	}
	if err := s.create(s.surface, s.raw, extent); err != nil {
		return err
	}
	s.needsRecreate = false
	s.logger.Info("swapchain recreated",
		slog.Int("images", len(s.images)),
		extentAttr("extent", s.config.Extent))
	return nil
}

// RecreateWithSurface replaces a lost surface. The old swapchain cannot be handed over
// across surfaces; it is kept until the new one is built, so a failure leaves the
// swapchain as it was and the call can be retried. An owning swapchain destroys surface
// when it fails.
func (s *Swapchain) RecreateWithSurface(surface driver.Surface, extent driver.Extent) error {
	if s.acquired {
		return errors.AssertionFailedf("swapchain recreated while image %d is acquired", s.currentImage)
	}
	supported, err := s.device.physical.SupportsPresent(s.presentQueue.family, surface)
	if err == nil && !supported {
		err = errors.Mark(errors.Newf("queue family %d cannot present to the new surface", s.presentQueue.family), ErrQueuePresentUnsupported)
	}
	if err == nil {
		err = s.create(surface, nil, extent)
	}
	if err != nil {
		if s.ownsSurface {
			surface.Destroy()
		}
		return errors.Wrap(err, "recreate swapchain on a new surface")
	}

	if s.ownsSurface {
		s.surface.Destroy()
	}
	s.surface = surface
	s.needsRecreate = false
	s.logger.Info("swapchain recreated on a new surface", extentAttr("extent", s.config.Extent))
	return nil
}

// CurrentImage is the index of the last acquired image.
func (s *Swapchain) CurrentImage() int {
	return s.currentImage
}

// CurrentFrame is the frame slot used by the last acquire.
func (s *Swapchain) CurrentFrame() int {
	return s.currentFrame
}

// FrameSlots is the number of frames in flight: the image count passed to NewSwapchain.
func (s *Swapchain) FrameSlots() int {
	return s.sync.Len()
}

func (s *Swapchain) Images() []driver.Image {
	return s.images
}

func (s *Swapchain) Extent() driver.Extent {
	return s.config.Extent
}

func (s *Swapchain) Config() SwapchainConfig {
	return s.config
}

func (s *Swapchain) Capabilities() driver.SurfaceCapabilities {
	return s.capabilities
}

func (s *Swapchain) Surface() driver.Surface {
	return s.surface
}

func (s *Swapchain) RawHandle() driver.Swapchain {
	return s.raw
}

// AcquireSemaphore is signaled when the image of the current frame slot is available.
func (s *Swapchain) AcquireSemaphore() driver.Semaphore {
	return s.sync.AcquireSemaphore(s.currentFrame)
}

// CurrentFence guards the current frame slot. Submit the slot's work with it.
func (s *Swapchain) CurrentFence() *Fence {
	return s.sync.Fence(s.currentFrame)
}

// Destroy releases the swapchain, its synchronization objects and, when owned, the
// surface. The device must be idle.
func (s *Swapchain) Destroy() {
	if s.destroyed {
		return
	}
	s.sync.Destroy()
	if s.raw != nil {
		s.raw.Destroy()
	}
	if s.ownsSurface && s.surface != nil {
		s.surface.Destroy()
	}
	s.destroyed = true
	s.device.release("swapchain")
	s.logger.Info("swapchain destroyed")
}
