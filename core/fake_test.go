package core_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/devblok/tinyrhi/core"
)

// The fake backend completes all GPU work immediately and records
// every call into an ordered event log, so the tests can assert on
// protocol ordering without a device.

type fakePhysical struct{ name string }
type fakeSurface struct{}
type fakeDevice struct{ id int }
type fakeQueue struct{ family uint32 }
type fakePool struct {
	family     uint32
	resettable bool
}
type fakeBuffer struct{ id int }
type fakeImage struct{ id int }
type fakeImageView struct{ id int }
type fakeSemaphore struct{ id int }

type fakeFence struct {
	id       int
	signaled bool
}

type fakeSwapchain struct {
	id         int
	imageCount uint32
}

type fakeBackend struct {
	physicals  []core.PhysicalHandle
	families   []core.QueueFamilyProperties
	presentOn  map[uint32]bool
	extensions []string

	caps    core.SurfaceCapabilities
	capsErr error
	formats []core.SurfaceFormat
	modes   []core.PresentMode

	// Scripted outcomes, consumed front to back. Empty means success.
	acquireOutcomes []core.Outcome
	presentOutcomes []core.Outcome

	// When stalled, submits no longer signal their fences.
	stalled bool

	// Scripted failures. failViewCall fails the n-th CreateImageView,
	// counting from 1.
	imagesErr    error
	failViewCall int
	viewCalls    int
	submitErr    error

	nextID    int
	nextImage uint32
	events    []string

	deviceInfos    []core.DeviceCreateInfo
	swapchainInfos []core.SwapchainCreateInfo
	pools          []fakePool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		physicals: []core.PhysicalHandle{&fakePhysical{name: "fake gpu"}},
		families: []core.QueueFamilyProperties{
			{Flags: core.QueueGraphics | core.QueueCompute | core.QueueTransfer, Count: 1},
		},
		extensions: []string{"VK_KHR_swapchain"},
		caps: core.SurfaceCapabilities{
			MinImageCount:           2,
			CurrentExtent:           core.Extent2D{Width: core.UndefinedExtent, Height: core.UndefinedExtent},
			MinImageExtent:          core.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          core.Extent2D{Width: 8192, Height: 8192},
			SupportedTransforms:     core.TransformIdentity,
			CurrentTransform:        core.TransformIdentity,
			SupportedCompositeAlpha: core.CompositeAlphaOpaque,
			SupportedUsage:          core.ImageUsageColorAttachment,
		},
		formats: []core.SurfaceFormat{
			{Format: core.FormatB8G8R8A8Unorm, ColorSpace: core.ColorSpaceSRGBNonlinear},
		},
		modes: []core.PresentMode{core.PresentModeFifo},
	}
}

func (f *fakeBackend) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) record(format string, args ...interface{}) {
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

// indexOf returns the position of the first event with the prefix,
// failing the test when there is none.
func (f *fakeBackend) indexOf(t *testing.T, prefix string) int {
	t.Helper()
	for i, event := range f.events {
		if strings.HasPrefix(event, prefix) {
			return i
		}
	}
	t.Fatalf("no event with prefix %q in %v", prefix, f.events)
	return -1
}

func (f *fakeBackend) count(prefix string) int {
	n := 0
	for _, event := range f.events {
		if strings.HasPrefix(event, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeBackend) PhysicalDevices() ([]core.PhysicalHandle, error) {
	return f.physicals, nil
}

func (f *fakeBackend) QueueFamilies(phy core.PhysicalHandle) []core.QueueFamilyProperties {
	return f.families
}

func (f *fakeBackend) SupportsPresent(phy core.PhysicalHandle, family uint32, surface core.SurfaceHandle) bool {
	if f.presentOn == nil {
		return true
	}
	return f.presentOn[family]
}

func (f *fakeBackend) DeviceExtensions(phy core.PhysicalHandle) ([]string, error) {
	return f.extensions, nil
}

func (f *fakeBackend) SurfaceCapabilities(phy core.PhysicalHandle, surface core.SurfaceHandle) (core.SurfaceCapabilities, error) {
	if f.capsErr != nil {
		return core.SurfaceCapabilities{}, f.capsErr
	}
	return f.caps, nil
}

func (f *fakeBackend) SurfaceFormats(phy core.PhysicalHandle, surface core.SurfaceHandle) ([]core.SurfaceFormat, error) {
	return f.formats, nil
}

func (f *fakeBackend) SurfacePresentModes(phy core.PhysicalHandle, surface core.SurfaceHandle) ([]core.PresentMode, error) {
	return f.modes, nil
}

func (f *fakeBackend) CreateDevice(phy core.PhysicalHandle, info core.DeviceCreateInfo) (core.DeviceHandle, error) {
	f.deviceInfos = append(f.deviceInfos, info)
	dev := &fakeDevice{id: f.id()}
	f.record("createDevice:%d", dev.id)
	return dev, nil
}

func (f *fakeBackend) DestroyDevice(dev core.DeviceHandle) {
	f.record("destroyDevice:%d", dev.(*fakeDevice).id)
}

func (f *fakeBackend) DeviceQueue(dev core.DeviceHandle, family, index uint32) core.QueueHandle {
	return &fakeQueue{family: family}
}

func (f *fakeBackend) DeviceWaitIdle(dev core.DeviceHandle) error {
	f.record("deviceWaitIdle")
	return nil
}

func (f *fakeBackend) CreateCommandPool(dev core.DeviceHandle, family uint32, resettable bool) (core.CommandPoolHandle, error) {
	pool := fakePool{family: family, resettable: resettable}
	f.pools = append(f.pools, pool)
	f.record("createCommandPool:family=%d:resettable=%t", family, resettable)
	return &pool, nil
}

func (f *fakeBackend) DestroyCommandPool(dev core.DeviceHandle, pool core.CommandPoolHandle) {
	f.record("destroyCommandPool")
}

func (f *fakeBackend) CreateSwapchain(dev core.DeviceHandle, info core.SwapchainCreateInfo) (core.SwapchainHandle, error) {
	f.swapchainInfos = append(f.swapchainInfos, info)
	oldID := 0
	if info.OldSwapchain != nil {
		oldID = info.OldSwapchain.(*fakeSwapchain).id
	}
	chain := &fakeSwapchain{id: f.id(), imageCount: info.MinImageCount}
	f.record("createSwapchain:%d:old=%d", chain.id, oldID)
	return chain, nil
}

func (f *fakeBackend) DestroySwapchain(dev core.DeviceHandle, chain core.SwapchainHandle) {
	f.record("destroySwapchain:%d", chain.(*fakeSwapchain).id)
}

func (f *fakeBackend) SwapchainImages(dev core.DeviceHandle, chain core.SwapchainHandle) ([]core.ImageHandle, error) {
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	count := chain.(*fakeSwapchain).imageCount
	images := make([]core.ImageHandle, count)
	for i := range images {
		images[i] = &fakeImage{id: f.id()}
	}
	return images, nil
}

func (f *fakeBackend) CreateImageView(dev core.DeviceHandle, info core.ImageViewCreateInfo) (core.ImageViewHandle, error) {
	f.viewCalls++
	if f.failViewCall != 0 && f.viewCalls == f.failViewCall {
		return nil, fmt.Errorf("fake backend: image view creation failed")
	}
	view := &fakeImageView{id: f.id()}
	f.record("createImageView:%d", view.id)
	return view, nil
}

func (f *fakeBackend) DestroyImageView(dev core.DeviceHandle, view core.ImageViewHandle) {
	f.record("destroyImageView:%d", view.(*fakeImageView).id)
}

func (f *fakeBackend) CreateSemaphore(dev core.DeviceHandle) (core.SemaphoreHandle, error) {
	sem := &fakeSemaphore{id: f.id()}
	f.record("createSemaphore:%d", sem.id)
	return sem, nil
}

func (f *fakeBackend) DestroySemaphore(dev core.DeviceHandle, sem core.SemaphoreHandle) {
	f.record("destroySemaphore:%d", sem.(*fakeSemaphore).id)
}

func (f *fakeBackend) CreateFence(dev core.DeviceHandle, signaled bool) (core.FenceHandle, error) {
	fence := &fakeFence{id: f.id(), signaled: signaled}
	f.record("createFence:%d:signaled=%t", fence.id, signaled)
	return fence, nil
}

func (f *fakeBackend) DestroyFence(dev core.DeviceHandle, fence core.FenceHandle) {
	f.record("destroyFence:%d", fence.(*fakeFence).id)
}

func (f *fakeBackend) WaitForFence(dev core.DeviceHandle, fence core.FenceHandle, timeout time.Duration) error {
	fake := fence.(*fakeFence)
	f.record("waitFence:%d", fake.id)
	if fake.signaled {
		return nil
	}
	if timeout > 0 {
		return core.ErrFenceTimeout
	}
	return fmt.Errorf("fake backend: unbounded wait on fence %d that will never signal", fake.id)
}

func (f *fakeBackend) ResetFence(dev core.DeviceHandle, fence core.FenceHandle) error {
	fake := fence.(*fakeFence)
	fake.signaled = false
	f.record("resetFence:%d", fake.id)
	return nil
}

func (f *fakeBackend) AcquireNextImage(dev core.DeviceHandle, chain core.SwapchainHandle, timeout time.Duration, sem core.SemaphoreHandle) (uint32, core.Outcome, error) {
	outcome := core.OutcomeSuccess
	if len(f.acquireOutcomes) > 0 {
		outcome = f.acquireOutcomes[0]
		f.acquireOutcomes = f.acquireOutcomes[1:]
	}
	if outcome == core.OutcomeOutOfDate {
		f.record("acquire:outOfDate")
		return 0, outcome, nil
	}
	index := f.nextImage % chain.(*fakeSwapchain).imageCount
	f.nextImage++
	f.record("acquire:sem=%d:image=%d", sem.(*fakeSemaphore).id, index)
	return index, outcome, nil
}

func (f *fakeBackend) Submit(queue core.QueueHandle, info core.SubmitInfo, fence core.FenceHandle) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	waitID, signalID, fenceID := 0, 0, 0
	if len(info.WaitSemaphores) > 0 {
		waitID = info.WaitSemaphores[0].(*fakeSemaphore).id
	}
	if len(info.SignalSemaphores) > 0 {
		signalID = info.SignalSemaphores[0].(*fakeSemaphore).id
	}
	if fence != nil {
		fake := fence.(*fakeFence)
		fenceID = fake.id
		if !f.stalled {
			fake.signaled = true
		}
	}
	f.record("submit:wait=%d:signal=%d:fence=%d:buffers=%d", waitID, signalID, fenceID, len(info.CommandBuffers))
	return nil
}

func (f *fakeBackend) Present(queue core.QueueHandle, info core.PresentInfo) (core.Outcome, error) {
	outcome := core.OutcomeSuccess
	if len(f.presentOutcomes) > 0 {
		outcome = f.presentOutcomes[0]
		f.presentOutcomes = f.presentOutcomes[1:]
	}
	waitID := 0
	if len(info.WaitSemaphores) > 0 {
		waitID = info.WaitSemaphores[0].(*fakeSemaphore).id
	}
	f.record("present:wait=%d:image=%d", waitID, info.ImageIndex)
	return outcome, nil
}
