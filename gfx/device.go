package gfx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/rhi/driver"
)

type QueueRole int

const (
	RoleGraphics QueueRole = iota
	RoleCompute
	RoleTransfer
	RolePresent
)

func (r QueueRole) String() string {
	switch r {
	case RoleGraphics:
		return "graphics"
	case RoleCompute:
		return "compute"
	case RoleTransfer:
		return "transfer"
	case RolePresent:
		return "present"
	}
	return fmt.Sprintf("QueueRole(%d)", int(r))
}

// QueueFamilyIndices records the family chosen for each role. Present is nil for a
// headless device.
type QueueFamilyIndices struct {
	Graphics int
	Compute  int
	Transfer int
	Present  *int
}

func (i QueueFamilyIndices) Family(role QueueRole) (int, bool) {
	switch role {
	case RoleGraphics:
		return i.Graphics, true
	case RoleCompute:
		return i.Compute, true
	case RoleTransfer:
		return i.Transfer, true
	case RolePresent:
		if i.Present != nil {
			return *i.Present, true
		}
	}
	return 0, false
}

// Unique returns the distinct families in ascending order.
func (i QueueFamilyIndices) Unique() []int {
	seen := map[int]bool{i.Graphics: true, i.Compute: true, i.Transfer: true}
	if i.Present != nil {
		seen[*i.Present] = true
	}
	families := make([]int, 0, len(seen))
	for family := range seen {
		families = append(families, family)
	}
	sort.Ints(families)
	return families
}

const allQueueCapabilities = driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer

// dedicatedFamily finds the family exposing want with the fewest other capabilities and
// none of exclude. It returns fallback when no such family exists.
func dedicatedFamily(families []driver.QueueFamily, want, exclude driver.QueueFlags, fallback int) int {
	best := -1
	bestExtra := 0
	for _, family := range families {
		if family.QueueCount == 0 || family.Flags&want != want || family.Flags&exclude != 0 {
			continue
		}
		extra := bitCount(uint32(family.Flags & allQueueCapabilities &^ want))
		if best < 0 || extra < bestExtra {
			best, bestExtra = family.Index, extra
		}
	}
	if best < 0 {
		return fallback
	}
	return best
}

func bitCount(v uint32) int {
	count := 0
	for ; v != 0; v &= v - 1 {
		count++
	}
	return count
}

func selectQueueFamilies(physical driver.PhysicalDevice, surface driver.Surface) (QueueFamilyIndices, error) {
	info := physical.Info()

	var graphics []int
	for _, family := range info.QueueFamilies {
		if family.QueueCount > 0 && family.Flags&driver.QueueGraphics != 0 {
			graphics = append(graphics, family.Index)
		}
	}
	if len(graphics) == 0 {
		return QueueFamilyIndices{}, errors.Mark(errors.Newf("%s has no graphics queue family", info.Name), ErrNoSuitableDevice)
	}

	indices := QueueFamilyIndices{Graphics: graphics[0]}
	if surface != nil {
		supports := func(family int) (bool, error) {
			ok, err := physical.SupportsPresent(family, surface)
			if err != nil {
				return false, errors.Wrapf(err, "query present support of family %d", family)
			}
			return ok, nil
		}

		present := -1
		// Presenting from the graphics family avoids an ownership transfer per frame.
		for _, family := range graphics {
			ok, err := supports(family)
			if err != nil {
				return QueueFamilyIndices{}, err
			}
			if ok {
				indices.Graphics, present = family, family
				break
			}
		}
		if present < 0 {
			for _, family := range info.QueueFamilies {
				if family.QueueCount == 0 {
					continue
				}
				ok, err := supports(family.Index)
				if err != nil {
					return QueueFamilyIndices{}, err
				}
				if ok {
					present = family.Index
					break
				}
			}
		}
		if present < 0 {
			return QueueFamilyIndices{}, errors.Mark(errors.Newf("no queue family of %s can present to the surface", info.Name), ErrQueuePresentUnsupported)
		}
		indices.Present = &present
	}

	indices.Compute = dedicatedFamily(info.QueueFamilies, driver.QueueCompute, driver.QueueGraphics, indices.Graphics)
	// A compute family is left to compute work; transfer only takes a transfer-only family.
	indices.Transfer = dedicatedFamily(info.QueueFamilies, driver.QueueTransfer, driver.QueueGraphics|driver.QueueCompute, indices.Graphics)
	return indices, nil
}

// Device owns the logical device and the physical device it was opened on. Queues,
// pools, swapchains and render passes created from it register as dependents, and the
// device refuses to be destroyed while any is alive.
type Device struct {
	instance *Instance
	physical driver.PhysicalDevice
	raw      driver.Device
	info     driver.PhysicalDeviceInfo
	families QueueFamilyIndices
	logger   *slog.Logger

	dependents     map[string]int
	idleGeneration uint64
	destroyed      bool
}

// NewDevice picks the first physical device that has the queues and extensions needed
// and opens one queue on each distinct family it uses. A nil surface opens a headless
// device with no present family.
func NewDevice(instance *Instance, surface driver.Surface, cfg Config) (*Device, error) {
	logger := cfg.logger()

	physicals, err := instance.PhysicalDevices()
	if err != nil {
		return nil, err
	}
	if len(physicals) == 0 {
		return nil, errors.Mark(errors.New("failed to find GPUs with graphics support"), ErrMissingDriver)
	}

	required := append([]string(nil), cfg.DeviceExtensions...)
	if surface != nil {
		required = appendUnique(required, driver.ExtensionSwapchain)
	}

	var lastErr error
	for _, physical := range physicals {
		info := physical.Info()

		available, err := physical.Extensions()
		if err != nil {
			return nil, creationError(err, "enumerate extensions of %s", info.Name)
		}
		if missing := missingNames(required, available); len(missing) > 0 {
			lastErr = errors.Mark(errors.Newf("%s is missing device extensions: %s", info.Name, strings.Join(missing, ", ")), ErrMissingExtensions)
			logger.Debug("skipping physical device", slog.String("device", info.Name), slog.Any("missing", missing))
			continue
		}

		families, err := selectQueueFamilies(physical, surface)
		if errors.Is(err, driver.ErrSurfaceLost) {
			return nil, err
		}
		if err != nil {
			lastErr = err
			logger.Debug("skipping physical device", slog.String("device", info.Name), slog.Any("error", err))
			continue
		}

		extensions := required
		if _, ok := available[driver.ExtensionPortabilitySubset]; ok {
			extensions = appendUnique(append([]string(nil), required...), driver.ExtensionPortabilitySubset)
		}
		return openDevice(instance, physical, families, extensions, logger)
	}

	if lastErr == nil {
		lastErr = errors.Mark(errors.New("failed to find a suitable GPU"), ErrNoSuitableDevice)
	}
	return nil, lastErr
}

func openDevice(instance *Instance, physical driver.PhysicalDevice, families QueueFamilyIndices, extensions []string, logger *slog.Logger) (*Device, error) {
	info := physical.Info()

	var queues []driver.DeviceQueueCreateInfo
	for _, family := range families.Unique() {
		queues = append(queues, driver.DeviceQueueCreateInfo{
			FamilyIndex: family,
			Priorities:  []float32{1.0},
		})
	}

	raw, err := physical.CreateDevice(driver.DeviceCreateInfo{
		Queues:     queues,
		Extensions: extensions,
	})
	if err != nil {
		return nil, creationError(err, "create logical device on %s", info.Name)
	}

	presentFamily := -1
	if families.Present != nil {
		presentFamily = *families.Present
	}
	logger.Info("device created",
		slog.String("device", info.Name),
		slog.Int("graphicsFamily", families.Graphics),
		slog.Int("computeFamily", families.Compute),
		slog.Int("transferFamily", families.Transfer),
		slog.Int("presentFamily", presentFamily))

	instance.devices++
	return &Device{
		instance:   instance,
		physical:   physical,
		raw:        raw,
		info:       info,
		families:   families,
		logger:     logger,
		dependents: map[string]int{},
	}, nil
}

// LogicalHandle exposes the driver device to layers built on top of rhi.
func (d *Device) LogicalHandle() driver.Device {
	return d.raw
}

func (d *Device) PhysicalHandle() driver.PhysicalDevice {
	return d.physical
}

// Info is the snapshot of the physical device taken when it was selected.
func (d *Device) Info() driver.PhysicalDeviceInfo {
	return d.info
}

func (d *Device) QueueFamilies() QueueFamilyIndices {
	return d.families
}

func (d *Device) retain(kind string) {
	d.dependents[kind]++
}

func (d *Device) release(kind string) {
	d.dependents[kind]--
}

func (d *Device) liveDependents() []string {
	var live []string
	for kind, count := range d.dependents {
		if count > 0 {
			live = append(live, fmt.Sprintf("%d %s", count, kind))
		}
	}
	sort.Strings(live)
	return live
}

// WaitIdle blocks until every queue of the device has drained.
func (d *Device) WaitIdle() error {
	if err := d.raw.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	d.idleGeneration++
	return nil
}

// Destroy waits for the device to go idle and releases it. It fails while queues,
// pools, swapchains or other objects created from the device are still alive.
func (d *Device) Destroy() error {
	if d.destroyed {
		return nil
	}
	if live := d.liveDependents(); len(live) > 0 {
		return errors.AssertionFailedf("device destroyed while %s are alive", strings.Join(live, ", "))
	}
	if err := d.WaitIdle(); err != nil {
		d.logger.Warn("device did not go idle before destruction", slog.Any("error", err))
	}
	d.raw.Destroy()
	d.destroyed = true
	d.instance.devices--
	d.logger.Info("device destroyed", slog.String("device", d.info.Name))
	return nil
}
