package gfx

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rhi/driver"
)

// RenderPass is a single-subpass pass that clears one color attachment and leaves it
// ready for presentation. Pipelines are built against it outside of rhi.
type RenderPass struct {
	device *Device
	raw    driver.RenderPass
	format driver.Format

	destroyed bool
}

func NewRenderPass(device *Device, format driver.Format) (*RenderPass, error) {
	raw, err := device.raw.CreateRenderPass(driver.RenderPassCreateInfo{ColorFormat: format})
	if err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	device.retain("render pass")
	return &RenderPass{device: device, raw: raw, format: format}, nil
}

func (r *RenderPass) RawHandle() driver.RenderPass {
	return r.raw
}

func (r *RenderPass) Format() driver.Format {
	return r.format
}

func (r *RenderPass) Destroy() {
	if r.destroyed {
		return
	}
	r.raw.Destroy()
	r.destroyed = true
	r.device.release("render pass")
}

// FramebufferSet holds one framebuffer per swapchain image. It has to be rebuilt whenever
// the swapchain is recreated.
type FramebufferSet struct {
	device       *Device
	pass         *RenderPass
	framebuffers []driver.Framebuffer
	extent       driver.Extent

	destroyed bool
}

func NewFramebufferSet(device *Device, pass *RenderPass, swapchain *Swapchain) (*FramebufferSet, error) {
	set := &FramebufferSet{device: device, pass: pass}
	if err := set.build(swapchain); err != nil {
		return nil, err
	}
	device.retain("framebuffer set")
	return set, nil
}

func (s *FramebufferSet) build(swapchain *Swapchain) error {
	extent := swapchain.Extent()
	for i, image := range swapchain.Images() {
		framebuffer, err := s.device.raw.CreateFramebuffer(driver.FramebufferCreateInfo{
			RenderPass: s.pass.raw,
			Image:      image,
			Format:     swapchain.Config().Format,
			Extent:     extent,
		})
		if err != nil {
			s.release()
			return errors.Wrapf(err, "create framebuffer for swapchain image %d", i)
		}
		s.framebuffers = append(s.framebuffers, framebuffer)
	}
	s.extent = extent
	return nil
}

func (s *FramebufferSet) release() {
	for _, framebuffer := range s.framebuffers {
		framebuffer.Destroy()
	}
	s.framebuffers = nil
}

func (s *FramebufferSet) Len() int {
	return len(s.framebuffers)
}

// At returns the framebuffer of swapchain image index.
func (s *FramebufferSet) At(index int) driver.Framebuffer {
	return s.framebuffers[index]
}

func (s *FramebufferSet) Extent() driver.Extent {
	return s.extent
}

// Release destroys the framebuffers but keeps the set usable for Rebuild. Call it before
// the swapchain whose images they use is recreated.
func (s *FramebufferSet) Release() {
	s.release()
}

func (s *FramebufferSet) Rebuild(swapchain *Swapchain) error {
	s.release()
	return s.build(swapchain)
}

func (s *FramebufferSet) Destroy() {
	if s.destroyed {
		return
	}
	s.release()
	s.destroyed = true
	s.device.release("framebuffer set")
}
