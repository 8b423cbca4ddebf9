package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"

	"github.com/vkngwrapper/rhi/driver"
)

type Queue struct {
	device *Device
	queue  core1_0.Queue
	family int
}

var _ driver.Queue = (*Queue)(nil)

func semaphoreHandles(semaphores []driver.Semaphore) ([]core1_0.Semaphore, error) {
	handles := make([]core1_0.Semaphore, 0, len(semaphores))
	for _, semaphore := range semaphores {
		s, ok := semaphore.(*Semaphore)
		if !ok {
			return nil, errors.AssertionFailedf("semaphore %T was not created by the vkng driver", semaphore)
		}
		handles = append(handles, s.semaphore)
	}
	return handles, nil
}

func pipelineStages(stages []driver.PipelineStage) []core1_0.PipelineStageFlags {
	flags := make([]core1_0.PipelineStageFlags, 0, len(stages))
	for _, stage := range stages {
		switch stage {
		case driver.PipelineStageTopOfPipe:
			flags = append(flags, core1_0.PipelineStageTopOfPipe)
		case driver.PipelineStageBottomOfPipe:
			flags = append(flags, core1_0.PipelineStageBottomOfPipe)
		default:
			flags = append(flags, core1_0.PipelineStageColorAttachmentOutput)
		}
	}
	return flags
}

func (q *Queue) Submit(info driver.SubmitInfo, fence driver.Fence) error {
	waitSemaphores, err := semaphoreHandles(info.WaitSemaphores)
	if err != nil {
		return err
	}
	signalSemaphores, err := semaphoreHandles(info.SignalSemaphores)
	if err != nil {
		return err
	}

	buffers := make([]core1_0.CommandBuffer, 0, len(info.CommandBuffers))
	for _, buffer := range info.CommandBuffers {
		b, ok := buffer.(*CommandBuffer)
		if !ok {
			return errors.AssertionFailedf("command buffer %T was not created by the vkng driver", buffer)
		}
		buffers = append(buffers, b.buffer)
	}

	var fenceHandle core1_0.Fence
	if fence != nil {
		f, ok := fence.(*Fence)
		if !ok {
			return errors.AssertionFailedf("fence %T was not created by the vkng driver", fence)
		}
		fenceHandle = f.fence
	}

	res, err := q.queue.Submit(fenceHandle, []core1_0.SubmitInfo{
		{
			WaitSemaphores:   waitSemaphores,
			WaitDstStageMask: pipelineStages(info.WaitStages),
			CommandBuffers:   buffers,
			SignalSemaphores: signalSemaphores,
		},
	})
	if err := resultError(res, err); err != nil {
		return errors.Wrapf(err, "submit to queue family %d", q.family)
	}
	return nil
}

func (q *Queue) Present(info driver.PresentInfo) (bool, error) {
	if q.device.swapchains == nil {
		return false, errors.Mark(errors.Newf("device was created without %s", khr_swapchain.ExtensionName), driver.ErrExtensionNotPresent)
	}

	waitSemaphores, err := semaphoreHandles(info.WaitSemaphores)
	if err != nil {
		return false, err
	}
	swapchain, ok := info.Swapchain.(*Swapchain)
	if !ok {
		return false, errors.AssertionFailedf("swapchain %T was not created by the vkng driver", info.Swapchain)
	}

	var res common.VkResult
	res, err = q.device.swapchains.QueuePresent(q.queue, khr_swapchain.PresentInfo{
		WaitSemaphores: waitSemaphores,
		Swapchains:     []khr_swapchain.Swapchain{swapchain.swapchain},
		ImageIndices:   []int{info.ImageIndex},
	})
	if res == khr_swapchain.VKSuboptimal {
		return true, nil
	}
	return false, resultError(res, err)
}

func (q *Queue) WaitIdle() error {
	res, err := q.queue.WaitIdle()
	return resultError(res, err)
}

type Semaphore struct {
	semaphore core1_0.Semaphore
}

func (s *Semaphore) Destroy() {
	s.semaphore.Destroy(nil)
}

type Fence struct {
	fence core1_0.Fence
}

func (f *Fence) Destroy() {
	f.fence.Destroy(nil)
}
