package fake

import (
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rhi/driver"
)

type PhysicalDevice struct {
	st      *state
	adapter Adapter
	devices []*Device
}

var _ driver.PhysicalDevice = (*PhysicalDevice)(nil)

func (p *PhysicalDevice) Info() driver.PhysicalDeviceInfo {
	return driver.PhysicalDeviceInfo{
		Name:          p.adapter.Name,
		QueueFamilies: append([]driver.QueueFamily(nil), p.adapter.QueueFamilies...),
		MemoryTypes:   append([]driver.MemoryType(nil), p.adapter.MemoryTypes...),
		Limits:        driver.Limits{MaxImageDimension2D: 16384},
	}
}

func (p *PhysicalDevice) Extensions() (map[string]struct{}, error) {
	return toSet(p.adapter.Extensions), nil
}

func (p *PhysicalDevice) SupportsPresent(family int, surface driver.Surface) (bool, error) {
	fakeSurface, ok := surface.(*Surface)
	if !ok {
		return false, errors.Newf("fake: unexpected surface %T", surface)
	}

	p.st.mu.Lock()
	defer p.st.mu.Unlock()

	if fakeSurface.lost {
		return false, driver.ErrSurfaceLost
	}
	for _, index := range p.adapter.PresentFamilies {
		if index == family {
			return true, nil
		}
	}
	return false, nil
}

// Devices returns the logical devices created from this adapter.
func (p *PhysicalDevice) Devices() []*Device {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()
	return append([]*Device(nil), p.devices...)
}

func (p *PhysicalDevice) CreateDevice(info driver.DeviceCreateInfo) (driver.Device, error) {
	p.st.mu.Lock()
	defer p.st.mu.Unlock()

	seen := map[int]bool{}
	for _, queue := range info.Queues {
		if queue.FamilyIndex < 0 || queue.FamilyIndex >= len(p.adapter.QueueFamilies) {
			return nil, p.st.violate("queue family %d does not exist", queue.FamilyIndex)
		}
		if seen[queue.FamilyIndex] {
			return nil, p.st.violate("queue family %d requested twice", queue.FamilyIndex)
		}
		if len(queue.Priorities) == 0 {
			return nil, p.st.violate("queue family %d requested without priorities", queue.FamilyIndex)
		}
		seen[queue.FamilyIndex] = true
	}

	available := toSet(p.adapter.Extensions)
	for _, ext := range info.Extensions {
		if _, ok := available[ext]; !ok {
			return nil, errors.Wrapf(driver.ErrExtensionNotPresent, "fake: %s", ext)
		}
	}

	device := &Device{
		st:       p.st,
		physical: p,
		info:     info,
		queues:   map[int]*Queue{},
		live:     map[string]int{},
	}
	for _, queue := range info.Queues {
		device.queues[queue.FamilyIndex] = &Queue{dev: device, family: queue.FamilyIndex}
	}
	p.devices = append(p.devices, device)
	return device, nil
}

type Device struct {
	st           *state
	physical     *PhysicalDevice
	info         driver.DeviceCreateInfo
	queues       map[int]*Queue
	live         map[string]int
	framebuffers []*Framebuffer
	idleWaits    int
	destroyed    bool
}

var _ driver.Device = (*Device)(nil)

// CreateInfo returns the parameters the device was opened with.
func (d *Device) CreateInfo() driver.DeviceCreateInfo {
	return d.info
}

func (d *Device) IdleWaits() int {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	return d.idleWaits
}

func (d *Device) Destroyed() bool {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()
	return d.destroyed
}

// Live returns the number of objects of each kind created from this device that have not
// been destroyed.
func (d *Device) Live() map[string]int {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	live := map[string]int{}
	for kind, count := range d.live {
		if count != 0 {
			live[kind] = count
		}
	}
	return live
}

func (d *Device) created(kind string) {
	d.live[kind]++
}

func (d *Device) destroyedObject(kind string) {
	d.live[kind]--
	d.st.event(kind)
}

func (d *Device) Queue(family, index int) driver.Queue {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	queue, ok := d.queues[family]
	if !ok {
		d.st.violate("queue requested from family %d that was not opened", family)
		return nil
	}
	return queue
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	d.created("semaphore")
	return &Semaphore{dev: d}, nil
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	d.created("fence")
	return &Fence{dev: d, signaled: signaled}, nil
}

func (d *Device) WaitForFences(fences []driver.Fence, waitAll bool, timeout time.Duration) error {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	signaled := 0
	for _, f := range fences {
		fence := f.(*Fence)
		fence.waits++
		if !fence.signaled {
			d.retireUntil(fence)
		}
		if fence.signaled {
			signaled++
		}
	}

	if signaled == len(fences) || (!waitAll && signaled > 0) {
		return nil
	}
	// Nothing queued will ever signal the rest.
	if timeout == 0 {
		return driver.ErrNotReady
	}
	return driver.ErrTimeout
}

func (d *Device) ResetFences(fences []driver.Fence) error {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	for _, f := range fences {
		fence := f.(*Fence)
		if fence.inUse {
			return d.st.violate("reset of a fence used by a pending submission")
		}
		fence.signaled = false
		fence.waits = 0
		fence.resets++
	}
	return nil
}

// retireUntil completes queued work up to and including the submission that signals fence.
func (d *Device) retireUntil(fence *Fence) {
	for _, queue := range d.queues {
		for i, sub := range queue.pending {
			if sub.fence == fence {
				queue.retire(i + 1)
				return
			}
		}
	}
}

func (d *Device) retireAll() {
	families := make([]int, 0, len(d.queues))
	for family := range d.queues {
		families = append(families, family)
	}
	sort.Ints(families)
	for _, family := range families {
		queue := d.queues[family]
		queue.retire(len(queue.pending))
	}
}

func (d *Device) CreateCommandPool(family int, flags driver.CommandPoolFlags) (driver.CommandPool, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	if _, ok := d.queues[family]; !ok {
		return nil, d.st.violate("command pool for family %d that was not opened", family)
	}
	d.created("commandpool")
	return &CommandPool{dev: d, family: family, flags: flags}, nil
}

func (d *Device) CreateRenderPass(info driver.RenderPassCreateInfo) (driver.RenderPass, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	if info.ColorFormat == driver.FormatUndefined {
		return nil, d.st.violate("render pass with undefined color format")
	}
	d.created("renderpass")
	return &RenderPass{dev: d, format: info.ColorFormat}, nil
}

func (d *Device) CreateFramebuffer(info driver.FramebufferCreateInfo) (driver.Framebuffer, error) {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	pass, ok := info.RenderPass.(*RenderPass)
	if !ok || pass.destroyed {
		return nil, d.st.violate("framebuffer needs a live render pass")
	}
	image, ok := info.Image.(*Image)
	if !ok || image.swapchain.destroyed {
		return nil, d.st.violate("framebuffer needs an image of a live swapchain")
	}
	if pass.format != info.Format {
		return nil, d.st.violate("framebuffer format %d does not match render pass format %d", info.Format, pass.format)
	}
	d.created("framebuffer")
	framebuffer := &Framebuffer{dev: d, image: image, extent: info.Extent}
	d.framebuffers = append(d.framebuffers, framebuffer)
	return framebuffer, nil
}

func (d *Device) WaitIdle() error {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	d.idleWaits++
	d.retireAll()
	return nil
}

func (d *Device) Destroy() {
	d.st.mu.Lock()
	defer d.st.mu.Unlock()

	if d.destroyed {
		d.st.violate("device destroyed twice")
		return
	}
	var leaked []string
	for kind, count := range d.live {
		if count > 0 {
			leaked = append(leaked, kind)
		}
	}
	if len(leaked) > 0 {
		sort.Strings(leaked)
		d.st.violate("device destroyed with live objects: %s", strings.Join(leaked, ", "))
	}
	d.destroyed = true
	d.st.event("device")
}

type RenderPass struct {
	dev       *Device
	format    driver.Format
	destroyed bool
}

func (r *RenderPass) Destroy() {
	r.dev.st.mu.Lock()
	defer r.dev.st.mu.Unlock()

	if r.destroyed {
		r.dev.st.violate("render pass destroyed twice")
		return
	}
	r.destroyed = true
	r.dev.destroyedObject("renderpass")
}

type Framebuffer struct {
	dev       *Device
	image     *Image
	extent    driver.Extent
	destroyed bool
}

func (f *Framebuffer) Extent() driver.Extent {
	return f.extent
}

func (f *Framebuffer) Destroy() {
	f.dev.st.mu.Lock()
	defer f.dev.st.mu.Unlock()

	if f.destroyed {
		f.dev.st.violate("framebuffer destroyed twice")
		return
	}
	f.destroyed = true
	f.dev.destroyedObject("framebuffer")
}
