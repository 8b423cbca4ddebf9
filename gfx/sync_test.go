package gfx

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/rhi/driver"
	"github.com/vkngwrapper/rhi/driver/fake"
)

func TestFence_WaitedOnceBetweenResets(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())

	fence, err := NewFence(r.device, true)
	require.NoError(t, err)
	raw := fence.RawHandle().(*fake.Fence)

	require.NoError(t, fence.Wait(driver.NoTimeout))
	require.NoError(t, fence.Wait(driver.NoTimeout))
	require.Equal(t, 1, raw.WaitsSinceReset())

	require.NoError(t, fence.Reset())
	require.NoError(t, fence.Reset())
	require.Equal(t, 1, raw.Resets())
	require.Zero(t, raw.WaitsSinceReset())
}

func TestFence_Misuse(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())
	_, buffers := r.buffers(t, 1)
	recordEmpty(t, buffers[0])

	fence, err := NewFence(r.device, false)
	require.NoError(t, err)

	err = fence.Wait(driver.NoTimeout)
	require.True(t, errors.IsAssertionFailure(err), "%+v", err)

	require.NoError(t, r.queue.Submit(buffers[0], nil, fence))
	err = fence.Reset()
	require.True(t, errors.IsAssertionFailure(err), "%+v", err)

	require.NoError(t, fence.Wait(driver.NoTimeout))
	require.NoError(t, fence.Reset())
	require.Empty(t, r.loader.Violations())
}

func TestSyncSet(t *testing.T) {
	r := newRig(t, fake.DefaultOptions())

	set, err := NewSyncSet(r.device, 3)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())
	require.Equal(t, map[string]int{"fence": 3, "semaphore": 4}, r.rawDevice().Live())

	for slot := 0; slot < set.Len(); slot++ {
		require.Equal(t, fenceSignaled, set.Fence(slot).state)
		require.NotNil(t, set.AcquireSemaphore(slot))
	}

	set.Destroy()
	require.Equal(t, map[string]int{"semaphore": 1}, r.rawDevice().Live())
}
