package gfx

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/rhi/driver"
	"github.com/vkngwrapper/rhi/driver/fake"
)

func TestSwapchain_AcquirePresent(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)

	index, err := sc.AcquireNextImage()
	require.NoError(t, err)
	require.Contains(t, []int{0, 1}, index)
	require.Equal(t, index, sc.CurrentImage())

	_, buffers := r.buffers(t, 2)
	cb := buffers[sc.CurrentFrame()]
	recordEmpty(t, cb)
	require.NoError(t, r.queue.Submit(cb, sc.AcquireSemaphore(), sc.CurrentFence()))
	require.NoError(t, sc.Present())

	require.Equal(t, []int{index}, r.rawQueue().Presented())
	require.False(t, sc.NeedsRecreate())
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_Negotiation(t *testing.T) {
	tests := []struct {
		name    string
		formats []driver.SurfaceFormat
		want    driver.Format
	}{
		{
			name: "prefers srgb",
			formats: []driver.SurfaceFormat{
				{Format: driver.FormatB8G8R8A8UNorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
				{Format: driver.FormatB8G8R8A8SRGB, ColorSpace: driver.ColorSpaceSRGBNonlinear},
			},
			want: driver.FormatB8G8R8A8SRGB,
		},
		{
			name: "rgba srgb",
			formats: []driver.SurfaceFormat{
				{Format: driver.FormatR8G8B8A8UNorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
				{Format: driver.FormatR8G8B8A8SRGB, ColorSpace: driver.ColorSpaceSRGBNonlinear},
			},
			want: driver.FormatR8G8B8A8SRGB,
		},
		{
			name: "falls back to first",
			formats: []driver.SurfaceFormat{
				{Format: driver.FormatR8G8B8A8UNorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
				{Format: driver.FormatB8G8R8A8UNorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
			},
			want: driver.FormatR8G8B8A8UNorm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fake.DefaultOptions()
			opts.Surface.Formats = tt.formats
			r := newRig(t, opts)
			sc := r.swapchain(t, 2)

			require.Equal(t, tt.want, sc.Config().Format)
			require.Equal(t, driver.PresentModeFIFO, sc.Config().PresentMode)
			require.Equal(t, 2, sc.Config().ImageCount)
			require.Len(t, sc.Images(), 2)
			require.Equal(t, driver.Extent{Width: 800, Height: 600}, sc.Extent())

			info := sc.RawHandle().(*fake.Swapchain).CreateInfo()
			require.Equal(t, tt.want, info.Format)
			require.Equal(t, driver.PresentModeFIFO, info.PresentMode)
			require.Equal(t, []int{0}, info.QueueFamilies)
		})
	}
}

func TestSwapchain_InvalidImageCount(t *testing.T) {
	for _, count := range []int{1, 4} {
		r := newRig(t, fake.DefaultOptions())

		_, err := NewSwapchain(r.device, r.queue, r.surface, count, SwapchainOptions{})
		require.True(t, errors.Is(err, ErrInvalidImageCount), "%d: %+v", count, err)
		require.True(t, IsFatal(err))
		require.Equal(t, map[string]int{"semaphore": 1}, r.rawDevice().Live())
	}
}

func TestSwapchain_PresentUnsupported(t *testing.T) {
	opts := fake.DefaultOptions()
	opts.Adapters[0].PresentFamilies = nil
	loader := fake.NewLoader(opts)
	window := fake.NewWindow(800, 600)

	instance, err := NewInstance(loader, window, DefaultConfig())
	require.NoError(t, err)
	surface, err := window.CreateSurface(instance.RawHandle())
	require.NoError(t, err)
	device, err := NewDevice(instance, nil, DefaultConfig())
	require.NoError(t, err)
	queue, err := NewQueue(device, device.QueueFamilies().Graphics, RoleGraphics)
	require.NoError(t, err)

	_, err = NewSwapchain(device, queue, surface, 2, SwapchainOptions{})
	require.True(t, errors.Is(err, ErrQueuePresentUnsupported), "%+v", err)
}

func TestSwapchain_FrameSlots(t *testing.T) {
	for _, imageCount := range []int{2, 3} {
		r := newRig(t, fake.DefaultOptions())
		sc := r.swapchain(t, imageCount)
		_, buffers := r.buffers(t, imageCount)

		var acquired []int
		for n := 1; n <= 10; n++ {
			acquired = append(acquired, r.frame(t, sc, buffers))
			require.Equal(t, n%imageCount, sc.CurrentFrame())
			require.Less(t, sc.CurrentImage(), imageCount)
		}

		require.Equal(t, acquired, r.rawQueue().Presented())
		require.Empty(t, r.loader.Violations())
	}
}

func TestSwapchain_FenceWaitedOncePerSubmission(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)
	_, buffers := r.buffers(t, 2)

	for i := 0; i < 6; i++ {
		r.frame(t, sc, buffers)
	}

	for slot := 0; slot < 2; slot++ {
		raw := sc.sync.Fence(slot).RawHandle().(*fake.Fence)
		require.Equal(t, 3, raw.Resets())
		require.Zero(t, raw.WaitsSinceReset())
	}
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_ResizeMidLoop(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)
	_, buffers := r.buffers(t, 2)

	r.frame(t, sc, buffers)
	r.window.Resize(1024, 768)

	_, err := sc.AcquireNextImage()
	require.True(t, errors.Is(err, ErrOutOfDate), "%+v", err)
	require.True(t, IsTransient(err))
	require.True(t, sc.NeedsRecreate())

	old := sc.RawHandle().(*fake.Swapchain)
	require.NoError(t, r.device.WaitIdle())
	require.NoError(t, sc.Recreate(driver.Extent{Width: 1024, Height: 768}))
	require.False(t, sc.NeedsRecreate())
	require.True(t, old.Destroyed())
	require.Equal(t, old, sc.RawHandle().(*fake.Swapchain).CreateInfo().OldSwapchain)
	require.Equal(t, driver.Extent{Width: 1024, Height: 768}, sc.Extent())

	index := r.frame(t, sc, buffers)
	require.Less(t, index, len(sc.Images()))
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_RecreateIsIdempotent(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 3)
	extent := driver.Extent{Width: 800, Height: 600}

	require.NoError(t, sc.Recreate(extent))
	first := sc.Config()
	require.NoError(t, sc.Recreate(extent))
	require.Equal(t, first, sc.Config())
	require.Equal(t, 3, sc.Config().ImageCount)
	require.Equal(t, map[string]int{"swapchain": 1, "fence": 3, "semaphore": 4}, r.rawDevice().Live())
}

func TestSwapchain_UndefinedSurfaceExtent(t *testing.T) {
	opts := fake.DefaultOptions()
	opts.Surface.UndefinedExtent = true
	r := newRig(t, opts)

	sc, err := NewSwapchain(r.device, r.queue, r.surface, 2, SwapchainOptions{
		Extent: driver.Extent{Width: 640, Height: 480},
	})
	require.NoError(t, err)
	require.Equal(t, driver.Extent{Width: 640, Height: 480}, sc.Extent())

	require.NoError(t, sc.Recreate(driver.Extent{Width: 100000, Height: 0}))
	require.Equal(t, driver.Extent{Width: 16384, Height: 1}, sc.Extent())
}

func TestSwapchain_EmptyExtent(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)

	r.window.Resize(0, 0)
	err := sc.Recreate(driver.Extent{})
	require.True(t, errors.Is(err, ErrOutOfDate), "%+v", err)
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_SurfaceLost(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)
	_, buffers := r.buffers(t, 2)

	r.frame(t, sc, buffers)
	r.surface.(*fake.Surface).Lose()

	_, err := sc.AcquireNextImage()
	require.True(t, errors.Is(err, ErrSurfaceLost), "%+v", err)
	require.True(t, IsTransient(err))

	surface, err := r.window.CreateSurface(r.instance.RawHandle())
	require.NoError(t, err)
	require.NoError(t, r.device.WaitIdle())
	require.NoError(t, sc.RecreateWithSurface(surface, driver.Extent{Width: 800, Height: 600}))
	require.Equal(t, surface, sc.Surface())
	require.Nil(t, sc.RawHandle().(*fake.Swapchain).CreateInfo().OldSwapchain)

	r.frame(t, sc, buffers)
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_SuboptimalPresent(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)
	_, buffers := r.buffers(t, 2)

	r.surface.(*fake.Surface).SetSuboptimal(true)
	r.frame(t, sc, buffers)
	require.True(t, sc.NeedsRecreate())

	r.surface.(*fake.Surface).SetSuboptimal(false)
	require.NoError(t, r.device.WaitIdle())
	require.NoError(t, sc.Recreate(sc.Extent()))
	require.False(t, sc.NeedsRecreate())
}

func TestSwapchain_AcquireTwice(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)

	_, err := sc.AcquireNextImage()
	require.NoError(t, err)
	_, err = sc.AcquireNextImage()
	require.True(t, errors.IsAssertionFailure(err), "%+v", err)
	err = sc.Recreate(sc.Extent())
	require.True(t, errors.IsAssertionFailure(err), "%+v", err)
}

func TestSwapchain_DestroyOwnedSurface(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())

	sc, err := NewSwapchain(r.device, r.queue, r.surface, 2, SwapchainOptions{OwnsSurface: true})
	require.NoError(t, err)
	sc.Destroy()
	sc.Destroy()

	require.True(t, r.surface.(*fake.Surface).Destroyed())
	require.Equal(t, map[string]int{"semaphore": 1}, r.rawDevice().Live())
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_SurfaceReplacementFailureKeepsSwapchain(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc := r.swapchain(t, 2)
	_, buffers := r.buffers(t, 2)

	r.frame(t, sc, buffers)
	lost := sc.RawHandle()
	r.surface.(*fake.Surface).Lose()
	r.window.Resize(0, 0)

	surface, err := r.window.CreateSurface(r.instance.RawHandle())
	require.NoError(t, err)
	require.NoError(t, r.device.WaitIdle())
	err = sc.RecreateWithSurface(surface, driver.Extent{Width: 800, Height: 600})
	require.True(t, errors.Is(err, ErrOutOfDate), "%+v", err)
	require.Equal(t, lost, sc.RawHandle())
	require.Equal(t, r.surface, sc.Surface())
	require.False(t, lost.(*fake.Swapchain).Destroyed())

	_, err = sc.AcquireNextImage()
	require.True(t, errors.Is(err, ErrSurfaceLost), "%+v", err)

	r.window.Resize(800, 600)
	require.NoError(t, sc.RecreateWithSurface(surface, driver.Extent{Width: 800, Height: 600}))
	require.True(t, lost.(*fake.Swapchain).Destroyed())
	require.Equal(t, surface, sc.Surface())

	r.frame(t, sc, buffers)
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_OwnedReplacementSurfaceDestroyedOnFailure(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	sc, err := NewSwapchain(r.device, r.queue, r.surface, 2, SwapchainOptions{OwnsSurface: true})
	require.NoError(t, err)

	r.surface.(*fake.Surface).Lose()
	r.window.Resize(0, 0)
	surface, err := r.window.CreateSurface(r.instance.RawHandle())
	require.NoError(t, err)

	err = sc.RecreateWithSurface(surface, driver.Extent{})
	require.True(t, errors.Is(err, ErrOutOfDate), "%+v", err)
	require.True(t, surface.(*fake.Surface).Destroyed())
	require.False(t, r.surface.(*fake.Surface).Destroyed())

	sc.Destroy()
	require.True(t, r.surface.(*fake.Surface).Destroyed())
	require.Empty(t, r.loader.Violations())
}

func TestSwapchain_DriverAddsImages(t *testing.T) {
	opts := fake.DefaultOptions()
	opts.Surface.ExtraImages = 1
	r := newRig(t, opts)
	sc := r.swapchain(t, 2)
	_, buffers := r.buffers(t, sc.FrameSlots())

	require.Equal(t, 3, sc.Config().ImageCount)
	require.Len(t, sc.Images(), 3)
	require.Equal(t, 2, sc.FrameSlots())

	var acquired []int
	for n := 1; n <= 6; n++ {
		acquired = append(acquired, r.frame(t, sc, buffers))
		require.Equal(t, n%2, sc.CurrentFrame())
		require.Less(t, sc.CurrentImage(), 3)
	}
	require.Equal(t, acquired, r.rawQueue().Presented())
	require.Empty(t, r.loader.Violations())
}
