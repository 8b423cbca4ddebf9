package gfx

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver"
)

// Queue is one queue of a family opened by the Device, together with the semaphore every
// submission on it signals. Several Queues may share a family.
type Queue struct {
	device         *Device
	raw            driver.Queue
	family         int
	role           QueueRole
	submitComplete driver.Semaphore
	logger         *slog.Logger

	// completeSignaled is set while a signal of submitComplete has not been waited on.
	completeSignaled bool
	idleGeneration   uint64
	destroyed        bool
}

func NewQueue(device *Device, family int, role QueueRole) (*Queue, error) {
	raw := device.raw.Queue(family, 0)
	if raw == nil {
		return nil, errors.Newf("device has no queue in family %d", family)
	}

	semaphore, err := newSemaphore(device)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s queue", role)
	}

	device.retain("queue")
	return &Queue{
		device:         device,
		raw:            raw,
		family:         family,
		role:           role,
		submitComplete: semaphore,
		logger:         device.logger.With(slog.String("queue", role.String())),
	}, nil
}

func (q *Queue) RawHandle() driver.Queue {
	return q.raw
}

func (q *Queue) FamilyIndex() int {
	return q.family
}

func (q *Queue) Role() QueueRole {
	return q.role
}

// SubmitCompleteSemaphore is signaled by every submission made through Submit.
func (q *Queue) SubmitCompleteSemaphore() driver.Semaphore {
	return q.submitComplete
}

// Submit queues cb for execution. When wait is set the submission waits on it before
// writing color attachments. The queue's submit-complete semaphore is always signaled, and
// fence too when it is set. A signal of the submit-complete semaphore that nothing consumed
// is waited on first, so the binary semaphore is never signaled twice.
func (q *Queue) Submit(cb *CmdBuffer, wait driver.Semaphore, fence *Fence) error {
	if cb.pool.family != q.family {
		return errors.AssertionFailedf("command buffer of family %d submitted to %s queue of family %d", cb.pool.family, q.role, q.family)
	}
	if err := cb.checkSubmittable(); err != nil {
		return err
	}

	info := driver.SubmitInfo{
		CommandBuffers:   []driver.CommandBuffer{cb.raw},
		SignalSemaphores: []driver.Semaphore{q.submitComplete},
	}
	if wait != nil {
		info.WaitSemaphores = append(info.WaitSemaphores, wait)
		info.WaitStages = append(info.WaitStages, driver.PipelineStageColorAttachmentOutput)
	}
	if q.completeSignaled {
		info.WaitSemaphores = append(info.WaitSemaphores, q.submitComplete)
		info.WaitStages = append(info.WaitStages, driver.PipelineStageTopOfPipe)
	}

	var rawFence driver.Fence
	if fence != nil {
		if err := fence.checkSubmittable(); err != nil {
			return err
		}
		rawFence = fence.raw
	}

	if err := q.raw.Submit(info, rawFence); err != nil {
		return errors.Wrapf(err, "submit to %s queue", q.role)
	}

	if fence != nil {
		fence.state = fenceSubmitted
	}
	q.completeSignaled = true
	cb.markPending(q, fence)
	return nil
}

// consumeSubmitComplete hands the pending submit-complete signal to a waiter outside the
// queue, such as a present.
func (q *Queue) consumeSubmitComplete() driver.Semaphore {
	q.completeSignaled = false
	return q.submitComplete
}

// WaitIdle blocks until everything submitted to the queue has completed.
func (q *Queue) WaitIdle() error {
	if err := q.raw.WaitIdle(); err != nil {
		return errors.Wrapf(err, "wait for %s queue idle", q.role)
	}
	q.idleGeneration++
	return nil
}

// Destroy drains the queue before releasing its semaphore.
func (q *Queue) Destroy() error {
	if q.destroyed {
		return nil
	}
	if err := q.WaitIdle(); err != nil {
		return err
	}
	destroySemaphore(q.device, q.submitComplete)
	q.destroyed = true
	q.device.release("queue")
	return nil
}
