package fake

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rhi/driver"
)

type submission struct {
	buffers []*CommandBuffer
	waits   []*Semaphore
	signals []*Semaphore
	fence   *Fence
}

// Queue holds submissions until something on the host waits for them: a fence wait
// retires work up to that fence, an idle wait or a present retires everything.
type Queue struct {
	dev       *Device
	family    int
	pending   []*submission
	submitted int
	presented []int
}

var _ driver.Queue = (*Queue)(nil)

func (q *Queue) Family() int {
	return q.family
}

// Submissions counts every submission accepted by the queue.
func (q *Queue) Submissions() int {
	q.dev.st.mu.Lock()
	defer q.dev.st.mu.Unlock()
	return q.submitted
}

// Pending counts the submissions the queue has not retired yet.
func (q *Queue) Pending() int {
	q.dev.st.mu.Lock()
	defer q.dev.st.mu.Unlock()
	return len(q.pending)
}

// Presented lists the image indices presented through this queue, in order.
func (q *Queue) Presented() []int {
	q.dev.st.mu.Lock()
	defer q.dev.st.mu.Unlock()
	return append([]int(nil), q.presented...)
}

func (q *Queue) Submit(info driver.SubmitInfo, fence driver.Fence) error {
	st := q.dev.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if len(info.WaitSemaphores) != len(info.WaitStages) {
		return st.violate("submit with %d wait semaphores and %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
	}

	sub := &submission{}
	for _, b := range info.CommandBuffers {
		buffer := b.(*CommandBuffer)
		if buffer.pool.family != q.family {
			return st.violate("command buffer of family %d submitted to family %d", buffer.pool.family, q.family)
		}
		if buffer.pending {
			return st.violate("submit of a pending command buffer")
		}
		if buffer.state != bufferExecutable {
			return st.violate("submit of a command buffer in state %s", buffer.state)
		}
		sub.buffers = append(sub.buffers, buffer)
	}
	for _, s := range info.WaitSemaphores {
		sub.waits = append(sub.waits, s.(*Semaphore))
	}
	for _, s := range info.SignalSemaphores {
		sub.signals = append(sub.signals, s.(*Semaphore))
	}
	if fence != nil {
		sub.fence = fence.(*Fence)
		if sub.fence.signaled || sub.fence.inUse {
			return st.violate("submit with a fence that is not reset")
		}
		sub.fence.inUse = true
	}
	for _, buffer := range sub.buffers {
		buffer.pending = true
	}

	q.pending = append(q.pending, sub)
	q.submitted++
	return nil
}

// retire executes the first n pending submissions in order.
func (q *Queue) retire(n int) {
	for _, sub := range q.pending[:n] {
		for _, s := range sub.waits {
			s.consume("submission")
		}
		for _, buffer := range sub.buffers {
			buffer.pending = false
			if buffer.oneTime {
				buffer.state = bufferInvalid
			}
		}
		for _, s := range sub.signals {
			s.signal("submission")
		}
		if sub.fence != nil {
			sub.fence.signaled = true
			sub.fence.inUse = false
		}
	}
	q.pending = q.pending[n:]
}

func (q *Queue) Present(info driver.PresentInfo) (bool, error) {
	st := q.dev.st
	st.mu.Lock()
	defer st.mu.Unlock()

	swapchain, ok := info.Swapchain.(*Swapchain)
	if !ok {
		return false, errors.Newf("fake: unexpected swapchain %T", info.Swapchain)
	}
	if swapchain.destroyed {
		return false, st.violate("present to a destroyed swapchain")
	}
	surface := swapchain.surface
	found := false
	for _, family := range q.dev.physical.adapter.PresentFamilies {
		if family == q.family {
			found = true
		}
	}
	if !found {
		return false, st.violate("present from family %d that cannot present", q.family)
	}

	q.dev.retireAll()
	for _, s := range info.WaitSemaphores {
		s.(*Semaphore).consume("present")
	}
	if !swapchain.held[info.ImageIndex] {
		return false, st.violate("present of image %d that was not acquired", info.ImageIndex)
	}
	delete(swapchain.held, info.ImageIndex)
	q.presented = append(q.presented, info.ImageIndex)

	if surface.lost {
		return false, driver.ErrSurfaceLost
	}
	if swapchain.outOfDate() {
		return false, driver.ErrOutOfDate
	}
	return surface.suboptimal, nil
}

func (q *Queue) WaitIdle() error {
	q.dev.st.mu.Lock()
	defer q.dev.st.mu.Unlock()

	q.retire(len(q.pending))
	return nil
}
