package gfx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/rhi/driver"
	"github.com/vkngwrapper/rhi/driver/fake"
)

// rig is a windowed device on the fake driver with a single graphics queue that also
// presents.
type rig struct {
	loader   *fake.Loader
	window   *fake.Window
	instance *Instance
	surface  driver.Surface
	device   *Device
	queue    *Queue
}

func newRig(t *testing.T, opts fake.Options) *rig {
	t.Helper()

	cfg := DefaultConfig()
	r := &rig{
		loader: fake.NewLoader(opts),
		window: fake.NewWindow(800, 600),
	}

	var err error
	r.instance, err = NewInstance(r.loader, r.window, cfg)
	require.NoError(t, err)
	r.surface, err = r.window.CreateSurface(r.instance.RawHandle())
	require.NoError(t, err)
	r.device, err = NewDevice(r.instance, r.surface, cfg)
	require.NoError(t, err)
	r.queue, err = NewQueue(r.device, r.device.QueueFamilies().Graphics, RoleGraphics)
	require.NoError(t, err)
	return r
}

func (r *rig) swapchain(t *testing.T, imageCount int) *Swapchain {
	t.Helper()

	sc, err := NewSwapchain(r.device, r.queue, r.surface, imageCount, SwapchainOptions{
		Extent: driver.Extent{Width: 800, Height: 600},
	})
	require.NoError(t, err)
	return sc
}

func (r *rig) buffers(t *testing.T, count int) (*CmdPool, []*CmdBuffer) {
	t.Helper()

	pool, err := NewCmdPool(r.device, r.queue)
	require.NoError(t, err)
	buffers, err := pool.Allocate(count)
	require.NoError(t, err)
	return pool, buffers
}

// frame acquires an image, submits an empty buffer for the frame slot and presents it.
func (r *rig) frame(t *testing.T, sc *Swapchain, buffers []*CmdBuffer) int {
	t.Helper()

	index, err := sc.AcquireNextImage()
	require.NoError(t, err)

	cb := buffers[sc.CurrentFrame()]
	require.NoError(t, cb.Reset(false))
	require.NoError(t, cb.Begin())
	require.NoError(t, cb.End())
	require.NoError(t, r.queue.Submit(cb, sc.AcquireSemaphore(), sc.CurrentFence()))
	require.NoError(t, sc.Present())
	return index
}

func (r *rig) rawDevice() *fake.Device {
	return r.device.LogicalHandle().(*fake.Device)
}

func (r *rig) rawQueue() *fake.Queue {
	return r.queue.RawHandle().(*fake.Queue)
}

// multiFamilyOptions describes an adapter with a combined family, an async compute
// family and a transfer-only family. Only the first can present.
func multiFamilyOptions() fake.Options {
	opts := fake.DefaultOptions()
	opts.Adapters = []fake.Adapter{
		{
			Name: "Fake Discrete GPU",
			QueueFamilies: []driver.QueueFamily{
				{Index: 0, Flags: driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer, QueueCount: 1},
				{Index: 1, Flags: driver.QueueCompute | driver.QueueTransfer, QueueCount: 2},
				{Index: 2, Flags: driver.QueueTransfer, QueueCount: 1},
			},
			PresentFamilies: []int{0},
			Extensions:      []string{driver.ExtensionSwapchain},
		},
	}
	return opts
}

// splitPresentOptions describes an adapter whose graphics family cannot present.
func splitPresentOptions() fake.Options {
	opts := fake.DefaultOptions()
	opts.Adapters = []fake.Adapter{
		{
			Name: "Fake Split GPU",
			QueueFamilies: []driver.QueueFamily{
				{Index: 0, Flags: driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer, QueueCount: 1},
				{Index: 1, Flags: driver.QueueTransfer, QueueCount: 1},
			},
			PresentFamilies: []int{1},
			Extensions:      []string{driver.ExtensionSwapchain},
		},
	}
	return opts
}
