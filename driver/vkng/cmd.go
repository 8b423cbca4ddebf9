package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/vkngwrapper/rhi/driver"
)

type CommandPool struct {
	device *Device
	pool   core1_0.CommandPool
}

var _ driver.CommandPool = (*CommandPool)(nil)

func (p *CommandPool) Allocate(count int) ([]driver.CommandBuffer, error) {
	buffers, res, err := p.device.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err := resultError(res, err); err != nil {
		return nil, errors.Wrapf(err, "allocate %d command buffers", count)
	}

	result := make([]driver.CommandBuffer, 0, len(buffers))
	for _, buffer := range buffers {
		result = append(result, &CommandBuffer{buffer: buffer})
	}
	return result, nil
}

func (p *CommandPool) Free(buffers []driver.CommandBuffer) {
	handles := make([]core1_0.CommandBuffer, 0, len(buffers))
	for _, buffer := range buffers {
		if b, ok := buffer.(*CommandBuffer); ok {
			handles = append(handles, b.buffer)
		}
	}
	if len(handles) > 0 {
		p.device.device.FreeCommandBuffers(handles)
	}
}

func (p *CommandPool) Reset(releaseResources bool) error {
	var res common.VkResult
	var err error
	if releaseResources {
		res, err = p.pool.Reset(core1_0.CommandPoolResetReleaseResources)
	} else {
		res, err = p.pool.Reset(0)
	}
	return resultError(res, err)
}

func (p *CommandPool) Destroy() {
	p.pool.Destroy(nil)
}

// CommandBuffer records into a vkngwrapper command buffer. Recording calls that fail are
// remembered and reported by End.
type CommandBuffer struct {
	buffer core1_0.CommandBuffer
	err    error
}

var _ driver.CommandBuffer = (*CommandBuffer)(nil)

func (b *CommandBuffer) Begin(oneTimeSubmit bool) error {
	b.err = nil

	options := core1_0.CommandBufferBeginInfo{}
	if oneTimeSubmit {
		options.Flags = core1_0.CommandBufferUsageOneTimeSubmit
	}

	res, err := b.buffer.Begin(options)
	return resultError(res, err)
}

func (b *CommandBuffer) End() error {
	if b.err != nil {
		return b.err
	}

	res, err := b.buffer.End()
	return resultError(res, err)
}

func (b *CommandBuffer) Reset(releaseResources bool) error {
	b.err = nil

	var res common.VkResult
	var err error
	if releaseResources {
		res, err = b.buffer.Reset(core1_0.CommandBufferResetReleaseResources)
	} else {
		res, err = b.buffer.Reset(0)
	}
	return resultError(res, err)
}

func (b *CommandBuffer) CmdBeginRenderPass(info driver.RenderPassBeginInfo) {
	renderPass, ok := info.RenderPass.(*RenderPass)
	if !ok {
		b.err = errors.AssertionFailedf("render pass %T was not created by the vkng driver", info.RenderPass)
		return
	}
	framebuffer, ok := info.Framebuffer.(*Framebuffer)
	if !ok {
		b.err = errors.AssertionFailedf("framebuffer %T was not created by the vkng driver", info.Framebuffer)
		return
	}

	clear := info.ClearColor
	err := b.buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  renderPass.renderPass,
			Framebuffer: framebuffer.framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: core1_0.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{clear[0], clear[1], clear[2], clear[3]},
			},
		})
	if err != nil && b.err == nil {
		b.err = errors.Wrap(err, "begin render pass")
	}
}

func (b *CommandBuffer) CmdBindPipeline(pipeline driver.Pipeline) {
	p, ok := pipeline.(core1_0.Pipeline)
	if !ok {
		if b.err == nil {
			b.err = errors.AssertionFailedf("pipeline %T was not created through vkngwrapper", pipeline)
		}
		return
	}
	b.buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, p)
}

func (b *CommandBuffer) CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	b.buffer.CmdDraw(vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

func (b *CommandBuffer) CmdEndRenderPass() {
	b.buffer.CmdEndRenderPass()
}
