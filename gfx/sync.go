package gfx

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rhi/driver"
)

type fenceState int

const (
	// fenceSignaled: created signaled, the host has not looked at it yet.
	fenceSignaled fenceState = iota
	// fenceObserved: the host has seen the signal; waiting again is a no-op.
	fenceObserved
	// fenceReset: unsignaled and not referenced by any submission.
	fenceReset
	// fenceSubmitted: a submission will signal it.
	fenceSubmitted
)

// Fence tracks which side of the frame protocol it is on, so the driver is asked to wait
// at most once between resets and never asked to wait on a fence nothing will signal.
type Fence struct {
	device *Device
	raw    driver.Fence
	state  fenceState
	// generation advances each time the host observes the fence signaled.
	generation uint64
	destroyed  bool
}

func NewFence(device *Device, signaled bool) (*Fence, error) {
	raw, err := device.raw.CreateFence(signaled)
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}

	state := fenceReset
	if signaled {
		state = fenceSignaled
	}
	device.retain("fence")
	return &Fence{device: device, raw: raw, state: state}, nil
}

func (f *Fence) RawHandle() driver.Fence {
	return f.raw
}

// Wait blocks until the fence signals. An expired timeout is reported as ErrDeviceLost.
func (f *Fence) Wait(timeout time.Duration) error {
	switch f.state {
	case fenceObserved:
		return nil
	case fenceReset:
		return errors.AssertionFailedf("wait on a fence that no submission will signal")
	}

	if err := f.device.raw.WaitForFences([]driver.Fence{f.raw}, true, timeout); err != nil {
		return waitError(err, "wait for fence")
	}
	f.state = fenceObserved
	f.generation++
	return nil
}

// Reset returns the fence to the unsignaled state. The host must have observed the
// signal of the last submission first.
func (f *Fence) Reset() error {
	switch f.state {
	case fenceReset:
		return nil
	case fenceSubmitted:
		return errors.AssertionFailedf("reset of a fence whose submission has not been waited on")
	}

	if err := f.device.raw.ResetFences([]driver.Fence{f.raw}); err != nil {
		return errors.Wrap(err, "reset fence")
	}
	f.state = fenceReset
	return nil
}

func (f *Fence) checkSubmittable() error {
	if f.state != fenceReset {
		return errors.AssertionFailedf("submit with a fence that has not been reset")
	}
	return nil
}

func (f *Fence) Destroy() {
	if f.destroyed {
		return
	}
	f.raw.Destroy()
	f.destroyed = true
	f.device.release("fence")
}

func newSemaphore(device *Device) (driver.Semaphore, error) {
	semaphore, err := device.raw.CreateSemaphore()
	if err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	device.retain("semaphore")
	return semaphore, nil
}

func destroySemaphore(device *Device, semaphore driver.Semaphore) {
	semaphore.Destroy()
	device.release("semaphore")
}

// SyncSet holds one fence and one acquire semaphore per frame slot. Fences start
// signaled so the first wait on every slot returns immediately.
type SyncSet struct {
	device  *Device
	fences  []*Fence
	acquire []driver.Semaphore
}

func NewSyncSet(device *Device, count int) (*SyncSet, error) {
	set := &SyncSet{device: device}
	for i := 0; i < count; i++ {
		fence, err := NewFence(device, true)
		if err != nil {
			set.Destroy()
			return nil, err
		}
		set.fences = append(set.fences, fence)

		semaphore, err := newSemaphore(device)
		if err != nil {
			set.Destroy()
			return nil, err
		}
		set.acquire = append(set.acquire, semaphore)
	}
	return set, nil
}

func (s *SyncSet) Len() int {
	return len(s.fences)
}

func (s *SyncSet) Fence(slot int) *Fence {
	return s.fences[slot]
}

func (s *SyncSet) AcquireSemaphore(slot int) driver.Semaphore {
	return s.acquire[slot]
}

// Destroy must only be called once the device is idle.
func (s *SyncSet) Destroy() {
	for _, fence := range s.fences {
		fence.Destroy()
	}
	for _, semaphore := range s.acquire {
		destroySemaphore(s.device, semaphore)
	}
	s.fences = nil
	s.acquire = nil
}
