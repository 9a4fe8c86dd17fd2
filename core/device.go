package core

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DeviceContext owns a logical device, its per-capability queues and
// the default graphics command pool. Create with NewDeviceContext,
// destroy with Destroy after every child object is gone.
type DeviceContext struct {
	backend  Backend
	physical PhysicalHandle
	device   DeviceHandle
	indices  QueueFamilyIndices

	queues      map[QueueCapability]QueueHandle
	commandPool CommandPoolHandle
	missing     []string
}

// NewDeviceContext creates the logical device with one queue per
// distinct resolved family at priority 1.0. Requested extensions the
// device does not support are logged and skipped, creation proceeds
// with reduced functionality.
func NewDeviceContext(backend Backend, phy PhysicalHandle, indices QueueFamilyIndices, extensions []string) (*DeviceContext, error) {
	ctx := &DeviceContext{
		backend:  backend,
		physical: phy,
		indices:  indices,
		queues:   make(map[QueueCapability]QueueHandle),
	}

	enabled := extensions
	if supported, err := backend.DeviceExtensions(phy); err == nil {
		enabled = enabled[:0:0]
		available := make(map[string]bool, len(supported))
		for _, ext := range supported {
			available[ext] = true
		}
		for _, ext := range extensions {
			if !available[ext] {
				log.WithField("extension", ext).Warn("requested device extension not supported, skipping")
				ctx.missing = append(ctx.missing, ext)
				continue
			}
			enabled = append(enabled, ext)
		}
	}

	dev, err := backend.CreateDevice(phy, DeviceCreateInfo{
		QueueFamilies: indices.Distinct(),
		Extensions:    enabled,
	})
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceCreation, "create device: %v", err)
	}
	ctx.device = dev

	for capability, idx := range map[QueueCapability]*uint32{
		CapabilityGraphics: indices.Graphics,
		CapabilityCompute:  indices.Compute,
		CapabilityTransfer: indices.Transfer,
		CapabilityPresent:  indices.Present,
	} {
		if idx != nil {
			ctx.queues[capability] = backend.DeviceQueue(dev, *idx, 0)
		}
	}

	if indices.Graphics != nil {
		pool, err := backend.CreateCommandPool(dev, *indices.Graphics, true)
		if err != nil {
			backend.DestroyDevice(dev)
			return nil, errors.Wrapf(ErrDeviceCreation, "create command pool: %v", err)
		}
		ctx.commandPool = pool
	}
	return ctx, nil
}

// Device returns the logical device handle.
func (d *DeviceContext) Device() DeviceHandle {
	return d.device
}

// Physical returns the physical device the context was created on.
func (d *DeviceContext) Physical() PhysicalHandle {
	return d.physical
}

// Indices returns the resolved queue family indices.
func (d *DeviceContext) Indices() QueueFamilyIndices {
	return d.indices
}

// Queue returns the queue serving the capability, nil when the
// capability was not requested at selection time.
func (d *DeviceContext) Queue(capability QueueCapability) QueueHandle {
	return d.queues[capability]
}

// DefaultCommandPool returns the graphics command pool. Its buffers
// can be reset individually.
func (d *DeviceContext) DefaultCommandPool() CommandPoolHandle {
	return d.commandPool
}

// MissingExtensions lists requested extensions the device lacked.
func (d *DeviceContext) MissingExtensions() []string {
	return d.missing
}

// WaitIdle blocks until the device finishes all submitted work.
func (d *DeviceContext) WaitIdle() error {
	return d.backend.DeviceWaitIdle(d.device)
}

// Destroy destroys the command pool and the device. The caller must
// destroy swap chains, synchronization objects and renderer state
// first, destruction order is strictly inverse to creation.
func (d *DeviceContext) Destroy() {
	if d.device == nil {
		return
	}
	if d.commandPool != nil {
		d.backend.DestroyCommandPool(d.device, d.commandPool)
		d.commandPool = nil
	}
	d.backend.DestroyDevice(d.device)
	d.device = nil
}
