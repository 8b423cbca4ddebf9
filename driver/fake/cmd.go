package fake

import (
	"fmt"

	"github.com/vkngwrapper/rhi/driver"
)

type bufferState int

const (
	bufferInitial bufferState = iota
	bufferRecording
	bufferExecutable
	bufferInvalid
)

func (s bufferState) String() string {
	switch s {
	case bufferInitial:
		return "initial"
	case bufferRecording:
		return "recording"
	case bufferExecutable:
		return "executable"
	case bufferInvalid:
		return "invalid"
	}
	return fmt.Sprintf("bufferState(%d)", int(s))
}

type CommandPool struct {
	dev       *Device
	family    int
	flags     driver.CommandPoolFlags
	buffers   []*CommandBuffer
	resets    int
	destroyed bool
}

var _ driver.CommandPool = (*CommandPool)(nil)

func (p *CommandPool) Resets() int {
	p.dev.st.mu.Lock()
	defer p.dev.st.mu.Unlock()
	return p.resets
}

func (p *CommandPool) Allocate(count int) ([]driver.CommandBuffer, error) {
	p.dev.st.mu.Lock()
	defer p.dev.st.mu.Unlock()

	if p.destroyed {
		return nil, p.dev.st.violate("allocate from a destroyed command pool")
	}
	buffers := make([]driver.CommandBuffer, 0, count)
	for i := 0; i < count; i++ {
		buffer := &CommandBuffer{pool: p}
		p.buffers = append(p.buffers, buffer)
		buffers = append(buffers, buffer)
	}
	p.dev.live["commandbuffer"] += count
	return buffers, nil
}

func (p *CommandPool) Free(buffers []driver.CommandBuffer) {
	p.dev.st.mu.Lock()
	defer p.dev.st.mu.Unlock()

	for _, b := range buffers {
		buffer := b.(*CommandBuffer)
		if buffer.freed {
			p.dev.st.violate("command buffer freed twice")
			continue
		}
		if buffer.pending {
			p.dev.st.violate("free of a pending command buffer")
		}
		buffer.freed = true
		p.dev.destroyedObject("commandbuffer")
	}
	kept := p.buffers[:0]
	for _, buffer := range p.buffers {
		if !buffer.freed {
			kept = append(kept, buffer)
		}
	}
	p.buffers = kept
}

func (p *CommandPool) Reset(releaseResources bool) error {
	p.dev.st.mu.Lock()
	defer p.dev.st.mu.Unlock()

	for _, buffer := range p.buffers {
		if buffer.pending {
			return p.dev.st.violate("reset of a command pool with a pending command buffer")
		}
	}
	for _, buffer := range p.buffers {
		buffer.state = bufferInitial
		buffer.commands = nil
	}
	p.resets++
	return nil
}

func (p *CommandPool) Destroy() {
	p.dev.st.mu.Lock()
	defer p.dev.st.mu.Unlock()

	if p.destroyed {
		p.dev.st.violate("command pool destroyed twice")
		return
	}
	for _, buffer := range p.buffers {
		if buffer.pending {
			p.dev.st.violate("command pool destroyed with a pending command buffer")
		}
		buffer.freed = true
		p.dev.live["commandbuffer"]--
	}
	p.buffers = nil
	p.destroyed = true
	p.dev.destroyedObject("commandpool")
}

// CommandBuffer records command names so tests can inspect what was encoded.
type CommandBuffer struct {
	pool     *CommandPool
	state    bufferState
	oneTime  bool
	pending  bool
	freed    bool
	commands []string
}

var _ driver.CommandBuffer = (*CommandBuffer)(nil)

// Commands returns the commands recorded since the last begin.
func (b *CommandBuffer) Commands() []string {
	b.pool.dev.st.mu.Lock()
	defer b.pool.dev.st.mu.Unlock()
	return append([]string(nil), b.commands...)
}

func (b *CommandBuffer) Pending() bool {
	b.pool.dev.st.mu.Lock()
	defer b.pool.dev.st.mu.Unlock()
	return b.pending
}

func (b *CommandBuffer) Begin(oneTimeSubmit bool) error {
	st := b.pool.dev.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if b.pending {
		return st.violate("begin of a pending command buffer")
	}
	switch b.state {
	case bufferInitial:
	case bufferExecutable, bufferInvalid:
		if b.pool.flags&driver.CommandPoolResetBuffer == 0 {
			return st.violate("implicit reset of a command buffer whose pool does not allow it")
		}
	default:
		return st.violate("begin of a command buffer in state %s", b.state)
	}
	b.state = bufferRecording
	b.oneTime = oneTimeSubmit
	b.commands = nil
	return nil
}

func (b *CommandBuffer) End() error {
	st := b.pool.dev.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if b.state != bufferRecording {
		return st.violate("end of a command buffer in state %s", b.state)
	}
	b.state = bufferExecutable
	return nil
}

func (b *CommandBuffer) Reset(releaseResources bool) error {
	st := b.pool.dev.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if b.pool.flags&driver.CommandPoolResetBuffer == 0 {
		return st.violate("reset of a command buffer whose pool does not allow it")
	}
	if b.pending {
		return st.violate("reset of a pending command buffer")
	}
	b.state = bufferInitial
	b.commands = nil
	return nil
}

func (b *CommandBuffer) record(command string) {
	if b.state != bufferRecording {
		b.pool.dev.st.violate("%s recorded into a command buffer in state %s", command, b.state)
		return
	}
	b.commands = append(b.commands, command)
}

func (b *CommandBuffer) CmdBeginRenderPass(info driver.RenderPassBeginInfo) {
	b.pool.dev.st.mu.Lock()
	defer b.pool.dev.st.mu.Unlock()

	c := info.ClearColor
	b.record(fmt.Sprintf("BeginRenderPass(%s, clear=%.2f,%.2f,%.2f,%.2f)", info.Extent, c[0], c[1], c[2], c[3]))
}

func (b *CommandBuffer) CmdBindPipeline(pipeline driver.Pipeline) {
	b.pool.dev.st.mu.Lock()
	defer b.pool.dev.st.mu.Unlock()

	b.record(fmt.Sprintf("BindPipeline(%v)", pipeline))
}

func (b *CommandBuffer) CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	b.pool.dev.st.mu.Lock()
	defer b.pool.dev.st.mu.Unlock()

	b.record(fmt.Sprintf("Draw(%d, %d, %d, %d)", vertexCount, instanceCount, firstVertex, firstInstance))
}

func (b *CommandBuffer) CmdEndRenderPass() {
	b.pool.dev.st.mu.Lock()
	defer b.pool.dev.st.mu.Unlock()

	b.record("EndRenderPass")
}
