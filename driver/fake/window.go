package fake

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rhi/driver"
)

// Window stands in for a platform window. Resizing it makes every swapchain created on
// its surfaces out of date.
type Window struct {
	mu         sync.Mutex
	width      int
	height     int
	generation int
	surfaces   []*Surface
}

var _ driver.Window = (*Window)(nil)

func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

func (w *Window) RequiredInstanceExtensions() []string {
	return []string{driver.ExtensionSurface}
}

func (w *Window) DrawableSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *Window) Resize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width, w.height = width, height
	w.generation++
}

func (w *Window) state() (driver.Extent, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return driver.Extent{Width: w.width, Height: w.height}, w.generation
}

// Surfaces returns every surface created for this window, oldest first.
func (w *Window) Surfaces() []*Surface {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Surface(nil), w.surfaces...)
}

func (w *Window) CreateSurface(instance driver.Instance) (driver.Surface, error) {
	fakeInstance, ok := instance.(*Instance)
	if !ok {
		return nil, errors.Newf("fake: cannot create a surface for instance %T", instance)
	}

	surface := &Surface{
		st:     fakeInstance.st,
		window: w,
		opts:   fakeInstance.loader.opts.Surface,
	}

	w.mu.Lock()
	w.surfaces = append(w.surfaces, surface)
	w.mu.Unlock()
	return surface, nil
}

type Surface struct {
	st         *state
	window     *Window
	opts       SurfaceOptions
	lost       bool
	suboptimal bool
	destroyed  bool
}

var _ driver.Surface = (*Surface)(nil)

// Lose simulates the platform revoking the surface.
func (s *Surface) Lose() {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.lost = true
}

// SetSuboptimal makes acquires and presents on this surface report a suboptimal swapchain.
func (s *Surface) SetSuboptimal(suboptimal bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.suboptimal = suboptimal
}

func (s *Surface) Destroyed() bool {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.destroyed
}

func (s *Surface) capabilities() driver.SurfaceCapabilities {
	extent, _ := s.window.state()
	caps := driver.SurfaceCapabilities{
		MinImageCount:  s.opts.MinImageCount,
		MaxImageCount:  s.opts.MaxImageCount,
		CurrentExtent:  extent,
		MinImageExtent: driver.Extent{Width: 1, Height: 1},
		MaxImageExtent: driver.Extent{Width: 16384, Height: 16384},
	}
	if s.opts.UndefinedExtent {
		caps.CurrentExtent = driver.Extent{Width: driver.UndefinedExtent, Height: driver.UndefinedExtent}
	}
	return caps
}

func (s *Surface) Capabilities(physical driver.PhysicalDevice) (driver.SurfaceCapabilities, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.lost {
		return driver.SurfaceCapabilities{}, driver.ErrSurfaceLost
	}
	return s.capabilities(), nil
}

func (s *Surface) Formats(physical driver.PhysicalDevice) ([]driver.SurfaceFormat, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.lost {
		return nil, driver.ErrSurfaceLost
	}
	return append([]driver.SurfaceFormat(nil), s.opts.Formats...), nil
}

func (s *Surface) PresentModes(physical driver.PhysicalDevice) ([]driver.PresentMode, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.lost {
		return nil, driver.ErrSurfaceLost
	}
	return append([]driver.PresentMode(nil), s.opts.PresentModes...), nil
}

func (s *Surface) Destroy() {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.destroyed {
		s.st.violate("surface destroyed twice")
		return
	}
	s.destroyed = true
	s.st.event("surface")
}
