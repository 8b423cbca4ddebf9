package gfx

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver"
)

type frameState int

const (
	frameIdle frameState = iota
	frameAcquired
	frameRecorded
	frameSubmitted
)

func (s frameState) String() string {
	switch s {
	case frameIdle:
		return "idle"
	case frameAcquired:
		return "acquired"
	case frameRecorded:
		return "recorded"
	case frameSubmitted:
		return "submitted"
	}
	return fmt.Sprintf("frameState(%d)", int(s))
}

// Frame describes the frame being built between BeginFrame and Present.
type Frame struct {
	// Slot is the frame-in-flight slot, ImageIndex the swapchain image.
	Slot        int
	ImageIndex  int
	Extent      driver.Extent
	CmdBuffer   *CmdBuffer
	RenderPass  *RenderPass
	Framebuffer driver.Framebuffer
}

// RecordFunc records draw commands inside the frame's render pass.
type RecordFunc func(frame *Frame) error

type FrameStats struct {
	Frames      uint64
	Dropped     uint64
	Recreations uint64
	// FrameTime is the host time from BeginFrame to Present of the last frame.
	FrameTime time.Duration
	// AcquireTime is the part of it spent waiting for the frame slot and the image.
	AcquireTime time.Duration
}

// Renderer owns every GPU object of a windowed application and drives the frame
// protocol: BeginFrame, Record, Submit, Present. It is not safe for concurrent use.
type Renderer struct {
	cfg    Config
	logger *slog.Logger
	window driver.Window

	instance     *Instance
	surface      driver.Surface
	device       *Device
	graphics     *Queue
	compute      *Queue
	transfer     *Queue
	present      *Queue
	swapchain    *Swapchain
	renderPass   *RenderPass
	framebuffers *FramebufferSet
	pool         *CmdPool
	buffers      []*CmdBuffer

	clearColor mgl32.Vec4
	state      frameState
	frame      Frame
	frameStart time.Duration
	stats      FrameStats

	resizeRequested bool
	requestedExtent driver.Extent
	stale           bool
	surfaceLost     bool
	shutdown        bool
}

// NewRenderer builds the instance, device, queues, swapchain, render pass, framebuffers
// and one command buffer per frame slot for window.
func NewRenderer(loader driver.Loader, window driver.Window, cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Renderer{
		cfg:        cfg,
		logger:     cfg.logger(),
		window:     window,
		clearColor: cfg.ClearColor,
	}
	if err := r.init(loader); err != nil {
		if shutdownErr := r.Shutdown(); shutdownErr != nil {
			r.logger.Error("failed to tear down a partially built renderer", slog.Any("error", shutdownErr))
		}
		return nil, err
	}
	return r, nil
}

func (r *Renderer) windowExtent() driver.Extent {
	width, height := r.window.DrawableSize()
	return driver.Extent{Width: width, Height: height}
}

func (r *Renderer) init(loader driver.Loader) error {
	var err error

	r.instance, err = NewInstance(loader, r.window, r.cfg)
	if err != nil {
		return err
	}

	r.surface, err = r.window.CreateSurface(r.instance.raw)
	if err != nil {
		return creationError(err, "create surface")
	}

	r.device, err = NewDevice(r.instance, r.surface, r.cfg)
	if err != nil {
		return err
	}
	families := r.device.QueueFamilies()

	if r.graphics, err = NewQueue(r.device, families.Graphics, RoleGraphics); err != nil {
		return err
	}
	if r.compute, err = NewQueue(r.device, families.Compute, RoleCompute); err != nil {
		return err
	}
	if r.transfer, err = NewQueue(r.device, families.Transfer, RoleTransfer); err != nil {
		return err
	}
	if *families.Present == families.Graphics {
		r.present = r.graphics
	} else if r.present, err = NewQueue(r.device, *families.Present, RolePresent); err != nil {
		return err
	}

	r.swapchain, err = NewSwapchain(r.device, r.present, r.surface, r.cfg.ImageCount, SwapchainOptions{
		RenderQueue:    r.graphics,
		Extent:         r.windowExtent(),
		OwnsSurface:    true,
		FenceTimeout:   r.cfg.FenceTimeout,
		AcquireTimeout: r.cfg.AcquireTimeout,
	})
	if err != nil {
		return err
	}
	r.surface = nil

	if r.renderPass, err = NewRenderPass(r.device, r.swapchain.Config().Format); err != nil {
		return err
	}
	if r.framebuffers, err = NewFramebufferSet(r.device, r.renderPass, r.swapchain); err != nil {
		return err
	}
	if r.pool, err = NewCmdPool(r.device, r.graphics); err != nil {
		return err
	}
	if r.buffers, err = r.pool.Allocate(r.swapchain.FrameSlots()); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) Instance() *Instance {
	return r.instance
}

func (r *Renderer) Device() *Device {
	return r.device
}

func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

func (r *Renderer) RenderPass() *RenderPass {
	return r.renderPass
}

func (r *Renderer) GraphicsQueue() *Queue {
	return r.graphics
}

func (r *Renderer) ComputeQueue() *Queue {
	return r.compute
}

func (r *Renderer) TransferQueue() *Queue {
	return r.transfer
}

func (r *Renderer) PresentQueue() *Queue {
	return r.present
}

func (r *Renderer) Stats() FrameStats {
	return r.stats
}

// SetClearColor changes the color the render pass clears to from the next Record on.
func (r *Renderer) SetClearColor(color mgl32.Vec4) {
	r.clearColor = color
}

// Resize records a new drawable size. The swapchain is rebuilt at the start of the next
// frame, never in the middle of one.
func (r *Renderer) Resize(width, height int) {
	r.resizeRequested = true
	r.requestedExtent = driver.Extent{Width: width, Height: height}
}

// recreateSwapchain waits for the device to go idle, rebuilds the swapchain for the
// current window size and rebuilds everything that refers to its images.
func (r *Renderer) recreateSwapchain() error {
	extent := r.windowExtent()
	if r.resizeRequested {
		extent = r.requestedExtent
	}
	if extent.Empty() {
		return errors.Mark(errors.Newf("drawable size %s", extent), ErrMinimized)
	}

	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	r.framebuffers.Release()

	if r.surfaceLost {
		surface, err := r.window.CreateSurface(r.instance.raw)
		if err != nil {
			return errors.Wrap(err, "create replacement surface")
		}
		if err := r.swapchain.RecreateWithSurface(surface, extent); err != nil {
			return err
		}
		r.surfaceLost = false
	} else if err := r.swapchain.Recreate(extent); err != nil {
		return err
	}

	if format := r.swapchain.Config().Format; format != r.renderPass.Format() {
		r.renderPass.Destroy()
		pass, err := NewRenderPass(r.device, format)
		if err != nil {
			return err
		}
		r.renderPass = pass
		r.framebuffers.pass = pass
	}
	if err := r.framebuffers.Rebuild(r.swapchain); err != nil {
		return err
	}

	r.resizeRequested = false
	r.stale = false
	r.stats.Recreations++
	return nil
}

func (r *Renderer) dropFrame(err error) error {
	r.stats.Dropped++
	if errors.Is(err, ErrSurfaceLost) {
		r.surfaceLost = true
	}
	if !errors.Is(err, ErrMinimized) {
		r.stale = true
	}
	r.logger.Debug("frame dropped", slog.Any("error", err))
	return err
}

// BeginFrame applies a pending resize, then acquires the next swapchain image. Transient
// errors (see IsTransient) mean this frame is skipped; call BeginFrame again next frame.
func (r *Renderer) BeginFrame() (*Frame, error) {
	if r.shutdown {
		return nil, errors.AssertionFailedf("BeginFrame after Shutdown")
	}
	if r.state != frameIdle {
		return nil, errors.AssertionFailedf("BeginFrame while the previous frame is %s", r.state)
	}

	if r.resizeRequested || r.stale || r.swapchain.NeedsRecreate() {
		if err := r.recreateSwapchain(); err != nil {
			if IsTransient(err) {
				return nil, r.dropFrame(err)
			}
			return nil, err
		}
	}

	r.frameStart = hrtime.Now()
	index, err := r.swapchain.AcquireNextImage()
	r.stats.AcquireTime = hrtime.Since(r.frameStart)
	if err != nil {
		if IsTransient(err) {
			return nil, r.dropFrame(err)
		}
		return nil, err
	}

	slot := r.swapchain.CurrentFrame()
	r.frame = Frame{
		Slot:        slot,
		ImageIndex:  index,
		Extent:      r.swapchain.Extent(),
		CmdBuffer:   r.buffers[slot],
		RenderPass:  r.renderPass,
		Framebuffer: r.framebuffers.At(index),
	}
	r.state = frameAcquired
	return &r.frame, nil
}

// Record rerecords the frame slot's command buffer: the render pass is begun on the
// acquired image's framebuffer with the clear color, fn records into it, and the pass and
// buffer are ended. When fn fails the buffer still holds the clear so the frame can be
// submitted and presented; the error is returned. When the buffer itself cannot be
// recorded, for instance because fn left the render pass, the frame is finished with a
// plain clear, presented and counted as dropped; the error is returned and the frame is
// over.
func (r *Renderer) Record(fn RecordFunc) error {
	if r.state != frameAcquired {
		return errors.AssertionFailedf("Record while the frame is %s", r.state)
	}

	cb := r.frame.CmdBuffer
	var recordErr error
	err := r.record(cb, func(frame *Frame) error {
		if fn != nil {
			recordErr = fn(frame)
		}
		return nil
	})
	if err != nil {
		return r.salvageFrame(errors.Wrap(err, "record frame"))
	}
	r.state = frameRecorded
	if recordErr != nil {
		return errors.Wrap(recordErr, "record frame")
	}
	return nil
}

func (r *Renderer) record(cb *CmdBuffer, fn RecordFunc) error {
	if err := cb.Reset(false); err != nil {
		return err
	}
	if err := cb.Begin(); err != nil {
		return err
	}
	cb.BeginRenderPass(r.renderPass, r.frame.Framebuffer, r.frame.Extent, r.clearColor)
	if fn != nil {
		if err := fn(&r.frame); err != nil {
			return err
		}
	}
	cb.EndRenderPass()
	return cb.End()
}

// salvageFrame submits and presents a plain clear in place of the current frame. The
// submission consumes the slot's acquire semaphore and signals its fence, so the next
// turn of the slot does not wait forever.
func (r *Renderer) salvageFrame(cause error) error {
	if err := r.record(r.frame.CmdBuffer, nil); err != nil {
		return errors.CombineErrors(cause, errors.Wrap(err, "record replacement frame"))
	}
	if err := r.graphics.Submit(r.frame.CmdBuffer, r.swapchain.AcquireSemaphore(), r.swapchain.CurrentFence()); err != nil {
		return errors.CombineErrors(cause, err)
	}
	if err := r.swapchain.Present(); err != nil {
		return errors.CombineErrors(cause, err)
	}
	r.state = frameIdle
	r.stats.Dropped++
	r.logger.Warn("frame replaced by a clear", slog.Int("image", r.frame.ImageIndex), slog.Any("error", cause))
	return cause
}

// AbortFrame ends the current frame without the caller's commands. An acquired or
// recorded frame is replaced by a plain clear and presented, a submitted one is
// presented as is. Between frames it does nothing.
func (r *Renderer) AbortFrame() error {
	switch r.state {
	case frameIdle:
		return nil
	case frameSubmitted:
		return r.Present()
	}
	return r.salvageFrame(nil)
}

// Submit queues the recorded buffer on the graphics queue. It waits on the slot's acquire
// semaphore and signals the slot's fence.
func (r *Renderer) Submit() error {
	if r.state != frameRecorded {
		return errors.AssertionFailedf("Submit while the frame is %s", r.state)
	}
	if err := r.graphics.Submit(r.frame.CmdBuffer, r.swapchain.AcquireSemaphore(), r.swapchain.CurrentFence()); err != nil {
		return err
	}
	r.state = frameSubmitted
	return nil
}

// Present hands the image to the presentation engine and ends the frame.
func (r *Renderer) Present() error {
	if r.state != frameSubmitted {
		return errors.AssertionFailedf("Present while the frame is %s", r.state)
	}
	if err := r.swapchain.Present(); err != nil {
		return err
	}
	r.state = frameIdle
	r.stats.Frames++
	r.stats.FrameTime = hrtime.Since(r.frameStart)
	return nil
}

// DrawFrame runs one whole frame. Dropped frames are not errors.
func (r *Renderer) DrawFrame(fn RecordFunc) error {
	if _, err := r.BeginFrame(); err != nil {
		if IsTransient(err) {
			return nil
		}
		return err
	}

	recordErr := r.Record(fn)
	if r.state != frameRecorded {
		return recordErr
	}
	if err := r.Submit(); err != nil {
		return err
	}
	if err := r.Present(); err != nil {
		return err
	}
	return recordErr
}

// Shutdown waits for the device to go idle and destroys everything in reverse order of
// creation: command buffers, pool, framebuffers, render pass, swapchain, queues, device,
// instance. It is safe on a partially built renderer and only runs once.
func (r *Renderer) Shutdown() error {
	if r.shutdown {
		return nil
	}
	r.shutdown = true

	var errs error
	if r.device != nil {
		if err := r.device.WaitIdle(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}

	if r.pool != nil {
		if err := r.pool.Free(r.buffers...); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
		if err := r.pool.Destroy(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if r.framebuffers != nil {
		r.framebuffers.Destroy()
	}
	if r.renderPass != nil {
		r.renderPass.Destroy()
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
	}
	if r.surface != nil {
		r.surface.Destroy()
	}

	for _, queue := range []*Queue{r.present, r.transfer, r.compute, r.graphics} {
		if queue == nil {
			continue
		}
		if err := queue.Destroy(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}

	if r.device != nil {
		if err := r.device.Destroy(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if r.instance != nil {
		if err := r.instance.Destroy(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}

	r.logger.Info("renderer shut down", slog.Uint64("frames", r.stats.Frames), slog.Uint64("dropped", r.stats.Dropped))
	return errs
}
