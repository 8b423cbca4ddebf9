package fake

import "github.com/vkngwrapper/rhi/driver"

// Semaphore is a binary semaphore. Signaling it twice without a wait in between, or
// waiting on it when nothing will signal it, is recorded as a violation.
type Semaphore struct {
	dev       *Device
	signaled  bool
	destroyed bool
}

var _ driver.Semaphore = (*Semaphore)(nil)

func (s *Semaphore) Signaled() bool {
	s.dev.st.mu.Lock()
	defer s.dev.st.mu.Unlock()
	return s.signaled
}

func (s *Semaphore) signal(by string) {
	if s.signaled {
		s.dev.st.violate("%s signals a semaphore that is already signaled", by)
	}
	s.signaled = true
}

func (s *Semaphore) consume(by string) {
	if !s.signaled {
		s.dev.st.violate("%s waits on a semaphore that nothing signaled", by)
	}
	s.signaled = false
}

func (s *Semaphore) Destroy() {
	s.dev.st.mu.Lock()
	defer s.dev.st.mu.Unlock()

	if s.destroyed {
		s.dev.st.violate("semaphore destroyed twice")
		return
	}
	s.destroyed = true
	s.dev.destroyedObject("semaphore")
}

type Fence struct {
	dev       *Device
	signaled  bool
	inUse     bool
	waits     int
	resets    int
	destroyed bool
}

var _ driver.Fence = (*Fence)(nil)

func (f *Fence) Signaled() bool {
	f.dev.st.mu.Lock()
	defer f.dev.st.mu.Unlock()
	return f.signaled
}

// WaitsSinceReset counts the host waits issued on the fence since it was last reset.
func (f *Fence) WaitsSinceReset() int {
	f.dev.st.mu.Lock()
	defer f.dev.st.mu.Unlock()
	return f.waits
}

func (f *Fence) Resets() int {
	f.dev.st.mu.Lock()
	defer f.dev.st.mu.Unlock()
	return f.resets
}

func (f *Fence) Destroy() {
	f.dev.st.mu.Lock()
	defer f.dev.st.mu.Unlock()

	if f.destroyed {
		f.dev.st.violate("fence destroyed twice")
		return
	}
	if f.inUse {
		f.dev.st.violate("fence destroyed while a submission uses it")
	}
	f.destroyed = true
	f.dev.destroyedObject("fence")
}
