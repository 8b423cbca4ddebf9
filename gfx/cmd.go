package gfx

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/rhi/driver"
)

type CmdBufferState int

const (
	CmdBufferInitial CmdBufferState = iota
	CmdBufferRecording
	CmdBufferExecutable
	CmdBufferPending
	CmdBufferInvalid
)

func (s CmdBufferState) String() string {
	switch s {
	case CmdBufferInitial:
		return "Initial"
	case CmdBufferRecording:
		return "Recording"
	case CmdBufferExecutable:
		return "Executable"
	case CmdBufferPending:
		return "Pending"
	case CmdBufferInvalid:
		return "Invalid"
	}
	return fmt.Sprintf("CmdBufferState(%d)", int(s))
}

// CmdPool allocates primary command buffers for one queue family. Its buffers can be
// reset one by one.
type CmdPool struct {
	device  *Device
	family  int
	raw     driver.CommandPool
	buffers []*CmdBuffer

	destroyed bool
}

func NewCmdPool(device *Device, queue *Queue) (*CmdPool, error) {
	raw, err := device.raw.CreateCommandPool(queue.family, driver.CommandPoolResetBuffer)
	if err != nil {
		return nil, errors.Wrapf(err, "create command pool for %s queue", queue.role)
	}
	device.retain("command pool")
	return &CmdPool{device: device, family: queue.family, raw: raw}, nil
}

func (p *CmdPool) FamilyIndex() int {
	return p.family
}

func (p *CmdPool) Allocate(count int) ([]*CmdBuffer, error) {
	if p.destroyed {
		return nil, errors.AssertionFailedf("allocate from a destroyed command pool")
	}
	raw, err := p.raw.Allocate(count)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d command buffers", count)
	}

	buffers := make([]*CmdBuffer, 0, len(raw))
	for _, handle := range raw {
		buffer := &CmdBuffer{pool: p, raw: handle}
		buffers = append(buffers, buffer)
		p.buffers = append(p.buffers, buffer)
	}
	return buffers, nil
}

func (p *CmdPool) anyPending() bool {
	for _, buffer := range p.buffers {
		if buffer.State() == CmdBufferPending {
			return true
		}
	}
	return false
}

// Free returns buffers to the pool. None of them may be pending.
func (p *CmdPool) Free(buffers ...*CmdBuffer) error {
	raw := make([]driver.CommandBuffer, 0, len(buffers))
	for _, buffer := range buffers {
		if buffer.pool != p {
			return errors.AssertionFailedf("command buffer freed to a pool that did not allocate it")
		}
		if buffer.State() == CmdBufferPending {
			return errors.AssertionFailedf("free of a pending command buffer")
		}
		if !buffer.freed {
			raw = append(raw, buffer.raw)
		}
	}
	if len(raw) > 0 {
		p.raw.Free(raw)
	}

	for _, buffer := range buffers {
		buffer.freed = true
	}
	kept := p.buffers[:0]
	for _, buffer := range p.buffers {
		if !buffer.freed {
			kept = append(kept, buffer)
		}
	}
	p.buffers = kept
	return nil
}

// Reset returns every buffer of the pool to Initial, or to Invalid when releaseResources
// is set. It is an error to reset a pool while any of its buffers is pending.
func (p *CmdPool) Reset(releaseResources bool) error {
	if p.anyPending() {
		return errors.AssertionFailedf("reset of a command pool with pending command buffers")
	}
	if err := p.raw.Reset(releaseResources); err != nil {
		return errors.Wrap(err, "reset command pool")
	}

	state := CmdBufferInitial
	if releaseResources {
		state = CmdBufferInvalid
	}
	for _, buffer := range p.buffers {
		buffer.state = state
		buffer.inRenderPass = false
		buffer.err = nil
	}
	return nil
}

// Destroy frees every buffer still allocated from the pool.
func (p *CmdPool) Destroy() error {
	if p.destroyed {
		return nil
	}
	if p.anyPending() {
		return errors.AssertionFailedf("command pool destroyed with pending command buffers")
	}
	if err := p.Free(p.buffers...); err != nil {
		return err
	}
	p.raw.Destroy()
	p.destroyed = true
	p.device.release("command pool")
	return nil
}

// CmdBuffer is a primary command buffer. Commands recorded while it is not recording
// poison it: End reports the first such error.
type CmdBuffer struct {
	pool  *CmdPool
	raw   driver.CommandBuffer
	state CmdBufferState

	queue           *Queue
	fence           *Fence
	fenceGeneration uint64
	queueIdle       uint64
	deviceIdle      uint64

	inRenderPass bool
	err          error
	freed        bool
}

// RawHandle exposes the driver buffer to the pipeline layer.
func (b *CmdBuffer) RawHandle() driver.CommandBuffer {
	return b.raw
}

// State reports the buffer's state. A pending buffer becomes Invalid once the host has
// observed its completion through its fence or an idle wait.
func (b *CmdBuffer) State() CmdBufferState {
	if b.state == CmdBufferPending && b.completed() {
		// Recorded with one-time-submit.
		b.state = CmdBufferInvalid
		b.queue, b.fence = nil, nil
	}
	return b.state
}

func (b *CmdBuffer) completed() bool {
	if b.fence != nil && b.fence.generation > b.fenceGeneration {
		return true
	}
	return b.queue.idleGeneration > b.queueIdle || b.queue.device.idleGeneration > b.deviceIdle
}

func (b *CmdBuffer) markPending(queue *Queue, fence *Fence) {
	b.state = CmdBufferPending
	b.queue = queue
	b.fence = fence
	if fence != nil {
		b.fenceGeneration = fence.generation
	}
	b.queueIdle = queue.idleGeneration
	b.deviceIdle = queue.device.idleGeneration
}

func (b *CmdBuffer) checkSubmittable() error {
	if b.freed {
		return errors.AssertionFailedf("submit of a freed command buffer")
	}
	if state := b.State(); state != CmdBufferExecutable {
		return errors.AssertionFailedf("submit of a command buffer in state %s", state)
	}
	return nil
}

// Begin starts recording a one-time-submit buffer. The buffer must be in the Initial
// state.
func (b *CmdBuffer) Begin() error {
	if state := b.State(); state != CmdBufferInitial {
		return errors.AssertionFailedf("begin of a command buffer in state %s", state)
	}
	if err := b.raw.Begin(true); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	b.state = CmdBufferRecording
	b.err = nil
	return nil
}

func (b *CmdBuffer) End() error {
	if b.state != CmdBufferRecording {
		return errors.AssertionFailedf("end of a command buffer in state %s", b.state)
	}
	if b.err == nil && b.inRenderPass {
		b.err = errors.AssertionFailedf("command buffer ended inside a render pass")
	}
	if b.err != nil {
		b.state = CmdBufferInvalid
		return b.err
	}
	if err := b.raw.End(); err != nil {
		b.state = CmdBufferInvalid
		return errors.Wrap(err, "end command buffer")
	}
	b.state = CmdBufferExecutable
	return nil
}

// Reset returns the buffer to Initial. It is an error to reset a pending buffer.
func (b *CmdBuffer) Reset(releaseResources bool) error {
	if state := b.State(); state == CmdBufferPending {
		return errors.AssertionFailedf("reset of a pending command buffer")
	}
	if err := b.raw.Reset(releaseResources); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	b.state = CmdBufferInitial
	b.inRenderPass = false
	b.err = nil
	return nil
}

func (b *CmdBuffer) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *CmdBuffer) recording(command string) bool {
	if b.state != CmdBufferRecording {
		b.fail(errors.AssertionFailedf("%s recorded into a command buffer in state %s", command, b.state))
		return false
	}
	return b.err == nil
}

func (b *CmdBuffer) BeginRenderPass(pass *RenderPass, framebuffer driver.Framebuffer, extent driver.Extent, clear mgl32.Vec4) {
	if !b.recording("BeginRenderPass") {
		return
	}
	if b.inRenderPass {
		b.fail(errors.AssertionFailedf("render pass begun inside a render pass"))
		return
	}
	b.raw.CmdBeginRenderPass(driver.RenderPassBeginInfo{
		RenderPass:  pass.raw,
		Framebuffer: framebuffer,
		Extent:      extent,
		ClearColor:  clear,
	})
	b.inRenderPass = true
}

func (b *CmdBuffer) BindPipeline(pipeline driver.Pipeline) {
	if !b.recording("BindPipeline") {
		return
	}
	b.raw.CmdBindPipeline(pipeline)
}

func (b *CmdBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	if !b.recording("Draw") {
		return
	}
	if !b.inRenderPass {
		b.fail(errors.AssertionFailedf("draw outside a render pass"))
		return
	}
	b.raw.CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (b *CmdBuffer) EndRenderPass() {
	if !b.recording("EndRenderPass") {
		return
	}
	if !b.inRenderPass {
		b.fail(errors.AssertionFailedf("end of a render pass that was not begun"))
		return
	}
	b.raw.CmdEndRenderPass()
	b.inRenderPass = false
}
