package core

import (
	"github.com/pkg/errors"
)

// PhysicalDeviceInfo describes one physical device for reporting and
// selection purposes.
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint64
	QueueFamilies []QueueFamilyProperties
}

// QueueCapability names one capability a caller wants a queue for.
type QueueCapability int

// Queue capabilities.
const (
	CapabilityGraphics QueueCapability = iota
	CapabilityCompute
	CapabilityTransfer
	CapabilityPresent
)

// DeviceRequirements states what a physical device must provide to be
// selected. A non-nil Surface requires presentation support to it.
type DeviceRequirements struct {
	Graphics   bool
	Compute    bool
	Transfer   bool
	Surface    SurfaceHandle
	Extensions []string
}

// QueueFamilyIndices holds the resolved family index per requested
// capability. A nil entry means the capability was not requested.
type QueueFamilyIndices struct {
	Graphics *uint32
	Compute  *uint32
	Transfer *uint32
	Present  *uint32
}

// Distinct returns the deduplicated family indices in first-seen
// order, the shape device creation wants.
func (q QueueFamilyIndices) Distinct() []uint32 {
	var out []uint32
	seen := make(map[uint32]bool)
	for _, idx := range []*uint32{q.Graphics, q.Compute, q.Transfer, q.Present} {
		if idx == nil || seen[*idx] {
			continue
		}
		seen[*idx] = true
		out = append(out, *idx)
	}
	return out
}

// findQueueFamily picks a family for the requested flags. A pure
// compute request prefers a family without graphics, a pure transfer
// request prefers a family without graphics and compute, so that
// async work lands on dedicated hardware queues when they exist.
// Otherwise the first family whose flags cover the request wins.
func findQueueFamily(families []QueueFamilyProperties, want QueueFlags) (uint32, bool) {
	if want == QueueCompute {
		for i, fam := range families {
			if fam.Flags&QueueCompute != 0 && fam.Flags&QueueGraphics == 0 {
				return uint32(i), true
			}
		}
	}
	if want == QueueTransfer {
		for i, fam := range families {
			if fam.Flags&QueueTransfer != 0 && fam.Flags&QueueGraphics == 0 && fam.Flags&QueueCompute == 0 {
				return uint32(i), true
			}
		}
	}
	for i, fam := range families {
		if fam.Flags&want == want {
			return uint32(i), true
		}
	}
	return 0, false
}

// ResolveQueueFamilies maps the requested capabilities onto the queue
// families of the physical device. Presentation prefers the family
// already picked for graphics so that common hardware ends up with a
// single combined queue.
func ResolveQueueFamilies(backend Backend, phy PhysicalHandle, req DeviceRequirements) (QueueFamilyIndices, error) {
	var indices QueueFamilyIndices
	families := backend.QueueFamilies(phy)

	if req.Graphics {
		idx, ok := findQueueFamily(families, QueueGraphics)
		if !ok {
			return indices, errors.Wrap(ErrNoSuitableDevice, "no graphics queue family")
		}
		indices.Graphics = &idx
	}
	if req.Compute {
		idx, ok := findQueueFamily(families, QueueCompute)
		if !ok {
			return indices, errors.Wrap(ErrNoSuitableDevice, "no compute queue family")
		}
		indices.Compute = &idx
	}
	if req.Transfer {
		idx, ok := findQueueFamily(families, QueueTransfer)
		if !ok {
			return indices, errors.Wrap(ErrNoSuitableDevice, "no transfer queue family")
		}
		indices.Transfer = &idx
	}
	if req.Surface != nil {
		if indices.Graphics != nil && backend.SupportsPresent(phy, *indices.Graphics, req.Surface) {
			indices.Present = indices.Graphics
		} else {
			found := false
			for i := range families {
				idx := uint32(i)
				if backend.SupportsPresent(phy, idx, req.Surface) {
					indices.Present = &idx
					found = true
					break
				}
			}
			if !found {
				return indices, errors.Wrap(ErrNoSuitableDevice, "no presentation queue family")
			}
		}
	}
	return indices, nil
}

// SelectPhysicalDevice returns the first enumerated device that
// satisfies the requirements, along with its resolved queue families.
func SelectPhysicalDevice(backend Backend, req DeviceRequirements) (PhysicalHandle, QueueFamilyIndices, error) {
	devices, err := backend.PhysicalDevices()
	if err != nil {
		return nil, QueueFamilyIndices{}, errors.Wrapf(ErrNoSuitableDevice, "enumerate devices: %v", err)
	}
	for _, phy := range devices {
		indices, err := ResolveQueueFamilies(backend, phy, req)
		if err != nil {
			continue
		}
		if !hasExtensions(backend, phy, req.Extensions) {
			continue
		}
		if req.Surface != nil && !surfaceUsable(backend, phy, req.Surface) {
			continue
		}
		return phy, indices, nil
	}
	return nil, QueueFamilyIndices{}, errors.Wrapf(ErrNoSuitableDevice, "%d devices enumerated", len(devices))
}

func hasExtensions(backend Backend, phy PhysicalHandle, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	supported, err := backend.DeviceExtensions(phy)
	if err != nil {
		return false
	}
	available := make(map[string]bool, len(supported))
	for _, ext := range supported {
		available[ext] = true
	}
	for _, ext := range wanted {
		if !available[ext] {
			return false
		}
	}
	return true
}

// surfaceUsable requires at least one surface format and one present
// mode, a device that reports none cannot drive a swap chain.
func surfaceUsable(backend Backend, phy PhysicalHandle, surface SurfaceHandle) bool {
	formats, err := backend.SurfaceFormats(phy, surface)
	if err != nil || len(formats) == 0 {
		return false
	}
	modes, err := backend.SurfacePresentModes(phy, surface)
	if err != nil || len(modes) == 0 {
		return false
	}
	return true
}
