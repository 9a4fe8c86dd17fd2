package core

import "time"

// Opaque handles of the underlying graphics API. The concrete types
// depend on the Backend implementation, code above the Backend seam
// only passes them around.
type (
	// PhysicalHandle identifies one physical GPU.
	PhysicalHandle interface{}

	// DeviceHandle identifies a created logical device.
	DeviceHandle interface{}

	// SurfaceHandle identifies a window surface.
	SurfaceHandle interface{}

	// QueueHandle identifies a device queue.
	QueueHandle interface{}

	// CommandPoolHandle identifies a command pool.
	CommandPoolHandle interface{}

	// CommandBufferHandle identifies a recorded command buffer.
	CommandBufferHandle interface{}

	// SwapchainHandle identifies a swap chain.
	SwapchainHandle interface{}

	// ImageHandle identifies a swap chain image.
	ImageHandle interface{}

	// ImageViewHandle identifies an image view.
	ImageViewHandle interface{}

	// SemaphoreHandle identifies a GPU-GPU synchronization primitive.
	SemaphoreHandle interface{}

	// FenceHandle identifies a GPU-CPU synchronization primitive.
	FenceHandle interface{}
)

// UndefinedExtent marks a surface extent the windowing system leaves
// up to the application.
const UndefinedExtent = ^uint32(0)

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Format enumerates the pixel formats the presentation core cares about.
type Format int

// Surface and depth formats.
const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatR8G8B8A8Unorm
	FormatA8B8G8R8UnormPack32
	FormatB8G8R8A8Srgb
	FormatD16Unorm
	FormatD24UnormS8Uint
	FormatD32Sfloat
	FormatD32SfloatS8Uint
)

// ColorSpace enumerates surface color spaces.
type ColorSpace int

// ColorSpaceSRGBNonlinear is the baseline color space every
// presentation engine supports.
const ColorSpaceSRGBNonlinear ColorSpace = iota

// SurfaceFormat pairs a pixel format with a color space, as reported
// by the surface.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode enumerates presentation engine queueing modes.
type PresentMode int

// Present modes, in the underlying API's numbering.
const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

// CompositeAlpha is a bitmask of window compositing modes.
type CompositeAlpha uint32

// Composite alpha bits.
const (
	CompositeAlphaOpaque CompositeAlpha = 1 << iota
	CompositeAlphaPreMultiplied
	CompositeAlphaPostMultiplied
	CompositeAlphaInherit
)

// SurfaceTransform is a bitmask of surface pre-transforms.
type SurfaceTransform uint32

// TransformIdentity is the only transform the core picks on its own,
// any other current transform is passed through untouched.
const TransformIdentity SurfaceTransform = 1 << 0

// ImageUsage is a bitmask of swap chain image usages.
type ImageUsage uint32

// Image usage bits.
const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageTransferSrc
	ImageUsageTransferDst
)

// SurfaceCapabilities mirrors the surface capability query. A
// CurrentExtent width of UndefinedExtent means the surface size is
// determined by the swap chain.
type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of zero means no upper bound.
	MaxImageCount uint32

	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D

	SupportedTransforms SurfaceTransform
	CurrentTransform    SurfaceTransform

	SupportedCompositeAlpha CompositeAlpha
	SupportedUsage          ImageUsage
}

// QueueFlags is a bitmask of queue family capabilities.
type QueueFlags uint32

// Queue capability bits.
const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

// QueueFamilyProperties describes one queue family of a physical device.
type QueueFamilyProperties struct {
	Flags QueueFlags
	Count uint32
}

// DeviceCreateInfo carries everything a logical device is created with.
// QueueFamilies must already be deduplicated, each listed family gets
// one queue at priority 1.0.
type DeviceCreateInfo struct {
	QueueFamilies []uint32
	Extensions    []string
}

// SwapchainCreateInfo carries everything a swap chain is created with.
// An empty SharingQueueFamilies means exclusive sharing mode.
type SwapchainCreateInfo struct {
	Surface              SurfaceHandle
	MinImageCount        uint32
	Format               Format
	ColorSpace           ColorSpace
	Extent               Extent2D
	ArrayLayers          uint32
	Usage                ImageUsage
	SharingQueueFamilies []uint32
	PreTransform         SurfaceTransform
	CompositeAlpha       CompositeAlpha
	PresentMode          PresentMode
	Clipped              bool
	OldSwapchain         SwapchainHandle
}

// ImageViewCreateInfo carries the parameters for a color view over a
// swap chain image.
type ImageViewCreateInfo struct {
	Image  ImageHandle
	Format Format
}

// PipelineStage enumerates the pipeline stages submits can wait at.
type PipelineStage uint32

// PipelineStageColorAttachmentOutput is where presentation waits
// meet the graphics pipeline.
const PipelineStageColorAttachmentOutput PipelineStage = 1 << 10

// SubmitInfo describes one queue submission. WaitStages pairs with
// WaitSemaphores index for index.
type SubmitInfo struct {
	WaitSemaphores   []SemaphoreHandle
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBufferHandle
	SignalSemaphores []SemaphoreHandle
}

// PresentInfo describes one presentation request.
type PresentInfo struct {
	WaitSemaphores []SemaphoreHandle
	Swapchain      SwapchainHandle
	ImageIndex     uint32
}

// Outcome is the tri-state result of acquire and present calls that
// can succeed while the surface needs attention.
type Outcome int

// Acquire/present outcomes.
const (
	OutcomeSuccess Outcome = iota
	OutcomeSuboptimal
	OutcomeOutOfDate
)

// Backend is the device-level surface the presentation core runs on.
// The production implementation lives in this package over the Vulkan
// bindings, tests substitute an in-memory fake.
type Backend interface {
	// PhysicalDevices enumerates the GPUs the instance can see.
	PhysicalDevices() ([]PhysicalHandle, error)

	// QueueFamilies lists the queue families of a physical device.
	QueueFamilies(phy PhysicalHandle) []QueueFamilyProperties

	// SupportsPresent reports whether the queue family can present
	// to the surface.
	SupportsPresent(phy PhysicalHandle, family uint32, surface SurfaceHandle) bool

	// DeviceExtensions lists the device extensions a physical device
	// supports.
	DeviceExtensions(phy PhysicalHandle) ([]string, error)

	// SurfaceCapabilities queries the surface capabilities of the
	// physical device.
	SurfaceCapabilities(phy PhysicalHandle, surface SurfaceHandle) (SurfaceCapabilities, error)

	// SurfaceFormats lists the surface formats the device can present.
	SurfaceFormats(phy PhysicalHandle, surface SurfaceHandle) ([]SurfaceFormat, error)

	// SurfacePresentModes lists the supported presentation modes.
	SurfacePresentModes(phy PhysicalHandle, surface SurfaceHandle) ([]PresentMode, error)

	// CreateDevice creates a logical device.
	CreateDevice(phy PhysicalHandle, info DeviceCreateInfo) (DeviceHandle, error)

	// DestroyDevice destroys a logical device. All child objects must
	// already be destroyed.
	DestroyDevice(dev DeviceHandle)

	// DeviceQueue retrieves a queue created with the device.
	DeviceQueue(dev DeviceHandle, family, index uint32) QueueHandle

	// DeviceWaitIdle blocks until the device finishes all work.
	DeviceWaitIdle(dev DeviceHandle) error

	// CreateCommandPool creates a command pool on the queue family.
	// When resettable, buffers from the pool can be reset individually.
	CreateCommandPool(dev DeviceHandle, family uint32, resettable bool) (CommandPoolHandle, error)

	// DestroyCommandPool destroys a command pool and its buffers.
	DestroyCommandPool(dev DeviceHandle, pool CommandPoolHandle)

	// CreateSwapchain creates a swap chain. A non-nil OldSwapchain is
	// handed to the presentation engine for resource reuse and remains
	// the caller's to destroy.
	CreateSwapchain(dev DeviceHandle, info SwapchainCreateInfo) (SwapchainHandle, error)

	// DestroySwapchain destroys a swap chain handle.
	DestroySwapchain(dev DeviceHandle, chain SwapchainHandle)

	// SwapchainImages retrieves the images owned by the swap chain.
	SwapchainImages(dev DeviceHandle, chain SwapchainHandle) ([]ImageHandle, error)

	// CreateImageView creates a color view over a swap chain image.
	CreateImageView(dev DeviceHandle, info ImageViewCreateInfo) (ImageViewHandle, error)

	// DestroyImageView destroys an image view.
	DestroyImageView(dev DeviceHandle, view ImageViewHandle)

	// CreateSemaphore creates an unsignaled semaphore.
	CreateSemaphore(dev DeviceHandle) (SemaphoreHandle, error)

	// DestroySemaphore destroys a semaphore.
	DestroySemaphore(dev DeviceHandle, sem SemaphoreHandle)

	// CreateFence creates a fence, signaled on request.
	CreateFence(dev DeviceHandle, signaled bool) (FenceHandle, error)

	// DestroyFence destroys a fence.
	DestroyFence(dev DeviceHandle, fence FenceHandle)

	// WaitForFence blocks until the fence signals. A timeout of zero
	// or less waits without bound, expiry returns ErrFenceTimeout.
	WaitForFence(dev DeviceHandle, fence FenceHandle, timeout time.Duration) error

	// ResetFence returns the fence to the unsignaled state.
	ResetFence(dev DeviceHandle, fence FenceHandle) error

	// AcquireNextImage acquires the next presentable image, signaling
	// the semaphore when it is ready. A timeout of zero or less waits
	// without bound. The index is only valid for OutcomeSuccess and
	// OutcomeSuboptimal.
	AcquireNextImage(dev DeviceHandle, chain SwapchainHandle, timeout time.Duration, sem SemaphoreHandle) (uint32, Outcome, error)

	// Submit submits command buffers to the queue, signaling the
	// fence when execution completes.
	Submit(queue QueueHandle, info SubmitInfo, fence FenceHandle) error

	// Present queues an image for presentation.
	Present(queue QueueHandle, info PresentInfo) (Outcome, error)
}
