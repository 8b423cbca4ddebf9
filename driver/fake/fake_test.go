package fake

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/rhi/driver"
)

func openDevice(t *testing.T) (*Loader, *Window, driver.Instance, driver.Device) {
	t.Helper()

	loader := NewLoader(DefaultOptions())
	instance, err := loader.CreateInstance(driver.InstanceCreateInfo{
		Extensions: []string{driver.ExtensionSurface},
	})
	require.NoError(t, err)
	physicals, err := instance.PhysicalDevices()
	require.NoError(t, err)
	device, err := physicals[0].CreateDevice(driver.DeviceCreateInfo{
		Queues:     []driver.DeviceQueueCreateInfo{{FamilyIndex: 0, Priorities: []float32{1}}},
		Extensions: []string{driver.ExtensionSwapchain},
	})
	require.NoError(t, err)
	return loader, NewWindow(800, 600), instance, device
}

func TestLoader_CreateInstance(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		info   driver.InstanceCreateInfo
		want   error
	}{
		{
			name:   "no adapters",
			mutate: func(o *Options) { o.Adapters = nil },
			want:   driver.ErrIncompatibleDriver,
		},
		{
			name: "missing extension",
			info: driver.InstanceCreateInfo{Extensions: []string{"VK_KHR_unknown"}},
			want: driver.ErrExtensionNotPresent,
		},
		{
			name:   "missing layer",
			mutate: func(o *Options) { o.Layers = nil },
			info:   driver.InstanceCreateInfo{Layers: []string{driver.LayerKhronosValidation}},
			want:   driver.ErrLayerNotPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			loader := NewLoader(opts)

			_, err := loader.CreateInstance(tt.info)
			require.True(t, errors.Is(err, tt.want), "%+v", err)
			require.Empty(t, loader.Instances())
		})
	}
}

func TestSemaphore_DoubleSignal(t *testing.T) {
	loader, window, instance, device := openDevice(t)
	surface, err := window.CreateSurface(instance)
	require.NoError(t, err)
	swapchain, err := device.CreateSwapchain(driver.SwapchainCreateInfo{
		Surface:       surface,
		MinImageCount: 3,
		Extent:        driver.Extent{Width: 800, Height: 600},
	})
	require.NoError(t, err)
	semaphore, err := device.CreateSemaphore()
	require.NoError(t, err)

	_, _, err = swapchain.AcquireNextImage(driver.NoTimeout, semaphore, nil)
	require.NoError(t, err)
	require.True(t, semaphore.(*Semaphore).Signaled())
	require.Empty(t, loader.Violations())

	_, _, err = swapchain.AcquireNextImage(driver.NoTimeout, semaphore, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"acquire signals a semaphore that is already signaled"}, loader.Violations())

	// Only one more image than the surface minimum may be held.
	_, _, err = swapchain.AcquireNextImage(driver.NoTimeout, nil, nil)
	require.True(t, errors.Is(err, driver.ErrTimeout), "%+v", err)
}

func TestQueue_RetiresLazily(t *testing.T) {
	loader, _, _, device := openDevice(t)
	queue := device.Queue(0, 0).(*Queue)

	pool, err := device.CreateCommandPool(0, driver.CommandPoolResetBuffer)
	require.NoError(t, err)
	buffers, err := pool.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, buffers[0].Begin(true))
	buffers[0].CmdDraw(3, 1, 0, 0)
	require.NoError(t, buffers[0].End())

	signal, err := device.CreateSemaphore()
	require.NoError(t, err)
	fence, err := device.CreateFence(false)
	require.NoError(t, err)

	require.NoError(t, queue.Submit(driver.SubmitInfo{
		CommandBuffers:   buffers,
		SignalSemaphores: []driver.Semaphore{signal},
	}, fence))
	require.Equal(t, 1, queue.Pending())
	require.False(t, fence.(*Fence).Signaled())
	require.False(t, signal.(*Semaphore).Signaled())

	require.Error(t, queue.Submit(driver.SubmitInfo{CommandBuffers: buffers}, nil))
	require.Len(t, loader.Violations(), 1)

	require.NoError(t, device.WaitForFences([]driver.Fence{fence}, true, driver.NoTimeout))
	require.Zero(t, queue.Pending())
	require.True(t, signal.(*Semaphore).Signaled())
	require.Equal(t, 1, fence.(*Fence).WaitsSinceReset())
	require.False(t, buffers[0].(*CommandBuffer).Pending())

	// One-time-submit buffers are invalid once they complete.
	require.Error(t, queue.Submit(driver.SubmitInfo{CommandBuffers: buffers}, nil))
	require.Len(t, loader.Violations(), 2)
}

func TestDevice_WaitForUnsubmittedFence(t *testing.T) {
	_, _, _, device := openDevice(t)
	fence, err := device.CreateFence(false)
	require.NoError(t, err)

	err = device.WaitForFences([]driver.Fence{fence}, true, 0)
	require.True(t, errors.Is(err, driver.ErrNotReady), "%+v", err)
	err = device.WaitForFences([]driver.Fence{fence}, true, driver.NoTimeout)
	require.True(t, errors.Is(err, driver.ErrTimeout), "%+v", err)
}

func TestSwapchain_OutOfDateAfterResize(t *testing.T) {
	loader, window, instance, device := openDevice(t)
	surface, err := window.CreateSurface(instance)
	require.NoError(t, err)
	info := driver.SwapchainCreateInfo{
		Surface:       surface,
		MinImageCount: 2,
		Extent:        driver.Extent{Width: 800, Height: 600},
	}
	swapchain, err := device.CreateSwapchain(info)
	require.NoError(t, err)

	window.Resize(1024, 768)
	_, _, err = swapchain.AcquireNextImage(driver.NoTimeout, nil, nil)
	require.True(t, errors.Is(err, driver.ErrOutOfDate), "%+v", err)

	caps, err := surface.Capabilities(nil)
	require.NoError(t, err)
	require.Equal(t, driver.Extent{Width: 1024, Height: 768}, caps.CurrentExtent)

	info.Extent = caps.CurrentExtent
	info.OldSwapchain = swapchain
	replacement, err := device.CreateSwapchain(info)
	require.NoError(t, err)
	swapchain.Destroy()

	index, suboptimal, err := replacement.AcquireNextImage(driver.NoTimeout, nil, nil)
	require.NoError(t, err)
	require.False(t, suboptimal)
	require.Equal(t, 0, index)
	require.Empty(t, loader.Violations())
}

func TestSurface_Lost(t *testing.T) {
	_, window, instance, device := openDevice(t)
	surface, err := window.CreateSurface(instance)
	require.NoError(t, err)
	surface.(*Surface).Lose()

	_, err = surface.Formats(nil)
	require.True(t, errors.Is(err, driver.ErrSurfaceLost), "%+v", err)
	_, err = device.CreateSwapchain(driver.SwapchainCreateInfo{
		Surface:       surface,
		MinImageCount: 2,
		Extent:        driver.Extent{Width: 800, Height: 600},
	})
	require.True(t, errors.Is(err, driver.ErrSurfaceLost), "%+v", err)
}

func TestDevice_DestroyWithLiveObjects(t *testing.T) {
	loader, _, instance, device := openDevice(t)
	_, err := device.CreateSemaphore()
	require.NoError(t, err)

	instance.Destroy()
	device.Destroy()
	require.Equal(t, []string{
		"instance destroyed before device",
		"device destroyed with live objects: semaphore",
	}, loader.Violations())
	require.Equal(t, []string{"instance", "device"}, loader.Events())
}
