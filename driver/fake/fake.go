// Package fake is an in-process driver that simulates the execution model of an explicit
// GPU API: queues retire submissions lazily, fences and binary semaphores carry real state,
// and a window-backed surface can be resized or lost. Misuse that a validation layer would
// report is recorded as a violation instead of crashing, so tests can assert on it.
package fake

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/rhi/driver"
)

type Options struct {
	Adapters           []Adapter
	InstanceExtensions []string
	Layers             []string
	Surface            SurfaceOptions
}

type Adapter struct {
	Name            string
	QueueFamilies   []driver.QueueFamily
	PresentFamilies []int
	Extensions      []string
	MemoryTypes     []driver.MemoryType
}

type SurfaceOptions struct {
	MinImageCount int
	MaxImageCount int
	Formats       []driver.SurfaceFormat
	PresentModes  []driver.PresentMode
	// UndefinedExtent makes the surface report driver.UndefinedExtent and leave the
	// size to the swapchain.
	UndefinedExtent bool
	// ExtraImages is added to the requested image count, as drivers are free to do.
	ExtraImages int
}

// DefaultOptions describes a single adapter with one family that does everything and a
// surface accepting two or three images.
func DefaultOptions() Options {
	return Options{
		Adapters: []Adapter{
			{
				Name: "Fake Combined GPU",
				QueueFamilies: []driver.QueueFamily{
					{Index: 0, Flags: driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer, QueueCount: 16},
				},
				PresentFamilies: []int{0},
				Extensions:      []string{driver.ExtensionSwapchain},
				MemoryTypes: []driver.MemoryType{
					{PropertyFlags: 0x1, HeapIndex: 0},
					{PropertyFlags: 0x6, HeapIndex: 1},
				},
			},
		},
		InstanceExtensions: []string{driver.ExtensionSurface, driver.ExtensionDebugUtils},
		Layers:             []string{driver.LayerKhronosValidation},
		Surface: SurfaceOptions{
			MinImageCount: 2,
			MaxImageCount: 3,
			Formats: []driver.SurfaceFormat{
				{Format: driver.FormatB8G8R8A8UNorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
				{Format: driver.FormatB8G8R8A8SRGB, ColorSpace: driver.ColorSpaceSRGBNonlinear},
			},
			PresentModes: []driver.PresentMode{driver.PresentModeMailbox, driver.PresentModeFIFO},
		},
	}
}

// state is shared by every object created from one Loader.
type state struct {
	mu         sync.Mutex
	violations []string
	events     []string
}

func (s *state) violate(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	s.violations = append(s.violations, msg)
	return errors.Newf("fake: %s", msg)
}

func (s *state) event(format string, args ...interface{}) {
	s.events = append(s.events, fmt.Sprintf(format, args...))
}

type Loader struct {
	st        *state
	opts      Options
	instances []*Instance
}

var _ driver.Loader = (*Loader)(nil)

func NewLoader(opts Options) *Loader {
	return &Loader{st: &state{}, opts: opts}
}

// Violations returns every usage error recorded so far by any object of this loader.
func (l *Loader) Violations() []string {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()
	return append([]string(nil), l.st.violations...)
}

// Events returns the ordered log of object destructions.
func (l *Loader) Events() []string {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()
	return append([]string(nil), l.st.events...)
}

func (l *Loader) Instances() []*Instance {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()
	return append([]*Instance(nil), l.instances...)
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (l *Loader) AvailableExtensions() (map[string]struct{}, error) {
	return toSet(l.opts.InstanceExtensions), nil
}

func (l *Loader) AvailableLayers() (map[string]struct{}, error) {
	return toSet(l.opts.Layers), nil
}

func (l *Loader) CreateInstance(info driver.InstanceCreateInfo) (driver.Instance, error) {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()

	if len(l.opts.Adapters) == 0 {
		return nil, errors.Wrap(driver.ErrIncompatibleDriver, "fake: no adapters configured")
	}

	available := toSet(l.opts.InstanceExtensions)
	for _, ext := range info.Extensions {
		if _, ok := available[ext]; !ok {
			return nil, errors.Wrapf(driver.ErrExtensionNotPresent, "fake: %s", ext)
		}
	}
	layers := toSet(l.opts.Layers)
	for _, layer := range info.Layers {
		if _, ok := layers[layer]; !ok {
			return nil, errors.Wrapf(driver.ErrLayerNotPresent, "fake: %s", layer)
		}
	}

	instance := &Instance{st: l.st, loader: l, info: info}
	for i := range l.opts.Adapters {
		instance.physical = append(instance.physical, &PhysicalDevice{
			st:      l.st,
			adapter: l.opts.Adapters[i],
		})
	}
	l.instances = append(l.instances, instance)
	return instance, nil
}

type Instance struct {
	st        *state
	loader    *Loader
	info      driver.InstanceCreateInfo
	physical  []*PhysicalDevice
	destroyed bool
}

func (i *Instance) PhysicalDevices() ([]driver.PhysicalDevice, error) {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()

	devices := make([]driver.PhysicalDevice, 0, len(i.physical))
	for _, device := range i.physical {
		devices = append(devices, device)
	}
	return devices, nil
}

// CreateInfo returns the parameters the instance was created with.
func (i *Instance) CreateInfo() driver.InstanceCreateInfo {
	return i.info
}

// Emit delivers a message to the debug callback, as a validation layer would. Messages
// below the instance's DebugSeverity are dropped.
func (i *Instance) Emit(severity driver.DebugSeverity, message string) {
	if i.info.DebugCallback != nil && severity >= i.info.DebugSeverity {
		i.info.DebugCallback(driver.DebugMessage{Severity: severity, Type: "Validation", Message: message})
	}
}

func (i *Instance) Destroyed() bool {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()
	return i.destroyed
}

func (i *Instance) Destroy() {
	i.st.mu.Lock()
	defer i.st.mu.Unlock()

	if i.destroyed {
		i.st.violate("instance destroyed twice")
		return
	}
	for _, physical := range i.physical {
		for _, device := range physical.devices {
			if !device.destroyed {
				i.st.violate("instance destroyed before device")
			}
		}
	}
	i.destroyed = true
	i.st.event("instance")
}
