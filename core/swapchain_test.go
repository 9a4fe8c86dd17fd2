package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/devblok/tinyrhi/core"
)

func boundSwapChain(t *testing.T, backend *fakeBackend) *core.SwapChain {
	t.Helper()
	dev, err := backend.CreateDevice(backend.physicals[0], core.DeviceCreateInfo{QueueFamilies: []uint32{0}})
	if err != nil {
		t.Fatal(err)
	}
	chain := core.NewSwapChain(backend)
	if err := chain.Bind(backend.physicals[0], dev, &fakeSurface{}); err != nil {
		t.Fatal(err)
	}
	return chain
}

func TestSwapChainUsesCallerExtentWhenUndefined(t *testing.T) {
	backend := newFakeBackend()
	chain := boundSwapChain(t, backend)

	width, height := uint32(800), uint32(600)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}

	if extent := chain.Extent(); extent != (core.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("unexpected extent %+v", extent)
	}
	if width != 800 || height != 600 {
		t.Errorf("caller values changed to %dx%d", width, height)
	}
	if got := backend.swapchainInfos[0].Extent; got != (core.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("swapchain created with extent %+v", got)
	}
}

func TestSwapChainAdoptsSurfaceExtent(t *testing.T) {
	backend := newFakeBackend()
	backend.caps.CurrentExtent = core.Extent2D{Width: 1024, Height: 768}
	chain := boundSwapChain(t, backend)

	width, height := uint32(800), uint32(600)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}

	if width != 1024 || height != 768 {
		t.Errorf("caller extent not overwritten, got %dx%d", width, height)
	}
	if got := backend.swapchainInfos[0].Extent; got != (core.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("swapchain created with extent %+v", got)
	}
}

func TestSwapChainPresentModeSelection(t *testing.T) {
	for _, tc := range []struct {
		modes []core.PresentMode
		vsync bool
		want  core.PresentMode
	}{
		{[]core.PresentMode{core.PresentModeFifo, core.PresentModeMailbox, core.PresentModeImmediate}, true, core.PresentModeFifo},
		{[]core.PresentMode{core.PresentModeFifo, core.PresentModeMailbox, core.PresentModeImmediate}, false, core.PresentModeMailbox},
		{[]core.PresentMode{core.PresentModeFifo, core.PresentModeImmediate, core.PresentModeMailbox}, false, core.PresentModeMailbox},
		{[]core.PresentMode{core.PresentModeFifo, core.PresentModeImmediate}, false, core.PresentModeImmediate},
		{[]core.PresentMode{core.PresentModeFifo}, false, core.PresentModeFifo},
	} {
		t.Run(fmt.Sprintf("modes=%v vsync=%t", tc.modes, tc.vsync), func(t *testing.T) {
			backend := newFakeBackend()
			backend.modes = tc.modes
			chain := boundSwapChain(t, backend)

			width, height := uint32(640), uint32(480)
			if err := chain.Create(&width, &height, tc.vsync); err != nil {
				t.Fatal(err)
			}
			if got := chain.PresentMode(); got != tc.want {
				t.Errorf("got present mode %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSwapChainImageCount(t *testing.T) {
	for _, tc := range []struct {
		min, max uint32
		want     uint32
	}{
		{min: 2, max: 0, want: 3},
		{min: 2, max: 3, want: 3},
		{min: 3, max: 3, want: 3},
		{min: 2, max: 8, want: 3},
	} {
		backend := newFakeBackend()
		backend.caps.MinImageCount = tc.min
		backend.caps.MaxImageCount = tc.max
		chain := boundSwapChain(t, backend)

		width, height := uint32(640), uint32(480)
		if err := chain.Create(&width, &height, true); err != nil {
			t.Fatal(err)
		}
		if got := backend.swapchainInfos[0].MinImageCount; got != tc.want {
			t.Errorf("min=%d max=%d: requested %d images, want %d", tc.min, tc.max, got, tc.want)
		}
	}
}

func TestSwapChainFormatSelection(t *testing.T) {
	backend := newFakeBackend()
	backend.formats = []core.SurfaceFormat{
		{Format: core.FormatB8G8R8A8Srgb, ColorSpace: core.ColorSpaceSRGBNonlinear},
		{Format: core.FormatA8B8G8R8UnormPack32, ColorSpace: core.ColorSpaceSRGBNonlinear},
		{Format: core.FormatB8G8R8A8Unorm, ColorSpace: core.ColorSpaceSRGBNonlinear},
	}
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}
	if got := chain.Format(); got != core.FormatA8B8G8R8UnormPack32 {
		t.Errorf("got format %v, want first preferred reported format", got)
	}
}

func TestSwapChainFormatFallsBackToFirstReported(t *testing.T) {
	backend := newFakeBackend()
	backend.formats = []core.SurfaceFormat{
		{Format: core.FormatB8G8R8A8Srgb, ColorSpace: core.ColorSpaceSRGBNonlinear},
	}
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}
	if got := chain.Format(); got != core.FormatB8G8R8A8Srgb {
		t.Errorf("got format %v, want the only reported format", got)
	}
}

func TestSwapChainCompositeAlphaFallback(t *testing.T) {
	backend := newFakeBackend()
	backend.caps.SupportedCompositeAlpha = core.CompositeAlphaPostMultiplied | core.CompositeAlphaInherit
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}
	if got := backend.swapchainInfos[0].CompositeAlpha; got != core.CompositeAlphaPostMultiplied {
		t.Errorf("got composite alpha %v, want first supported in preference order", got)
	}
}

func TestSwapChainTransferUsageBits(t *testing.T) {
	backend := newFakeBackend()
	backend.caps.SupportedUsage = core.ImageUsageColorAttachment | core.ImageUsageTransferSrc | core.ImageUsageTransferDst
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}
	usage := backend.swapchainInfos[0].Usage
	if usage&core.ImageUsageTransferSrc == 0 || usage&core.ImageUsageTransferDst == 0 {
		t.Errorf("transfer usage not enabled, got %b", usage)
	}
}

func TestSwapChainFirstCreateSkipsTeardown(t *testing.T) {
	backend := newFakeBackend()
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}

	if backend.swapchainInfos[0].OldSwapchain != nil {
		t.Error("first creation passed an old swapchain")
	}
	if n := backend.count("destroySwapchain"); n != 0 {
		t.Errorf("first creation destroyed %d chains", n)
	}
	if n := backend.count("destroyImageView"); n != 0 {
		t.Errorf("first creation destroyed %d views", n)
	}
}

func TestSwapChainRecreationOrdering(t *testing.T) {
	backend := newFakeBackend()
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}
	oldHandle := chain.Handle()
	oldViews := make([]int, 0, len(chain.Buffers()))
	for _, buf := range chain.Buffers() {
		oldViews = append(oldViews, buf.View.(*fakeImageView).id)
	}

	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}

	if got := backend.swapchainInfos[1].OldSwapchain; got != oldHandle {
		t.Error("recreation did not hand the retired chain to the presentation engine")
	}

	// The replacement chain must exist before any teardown, old views
	// must go before the old handle.
	newChain := backend.indexOf(t, fmt.Sprintf("createSwapchain:%d", chain.Handle().(*fakeSwapchain).id))
	oldChainGone := backend.indexOf(t, fmt.Sprintf("destroySwapchain:%d", oldHandle.(*fakeSwapchain).id))
	for _, viewID := range oldViews {
		viewGone := backend.indexOf(t, fmt.Sprintf("destroyImageView:%d", viewID))
		if viewGone < newChain {
			t.Error("old view destroyed before replacement chain existed")
		}
		if viewGone > oldChainGone {
			t.Error("old view destroyed after the old chain handle")
		}
	}
	if oldChainGone < newChain {
		t.Error("old chain destroyed before replacement existed")
	}
}

func TestSwapChainDestroyOrdering(t *testing.T) {
	backend := newFakeBackend()
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}
	handleID := chain.Handle().(*fakeSwapchain).id
	viewIDs := make([]int, 0, len(chain.Buffers()))
	for _, buf := range chain.Buffers() {
		viewIDs = append(viewIDs, buf.View.(*fakeImageView).id)
	}

	chain.Destroy()

	chainGone := backend.indexOf(t, fmt.Sprintf("destroySwapchain:%d", handleID))
	for _, viewID := range viewIDs {
		if backend.indexOf(t, fmt.Sprintf("destroyImageView:%d", viewID)) > chainGone {
			t.Error("view destroyed after the chain handle")
		}
	}
}

func TestSwapChainCreateUnbound(t *testing.T) {
	chain := core.NewSwapChain(newFakeBackend())

	width, height := uint32(640), uint32(480)
	err := chain.Create(&width, &height, true)
	if !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("got %v, want ErrInvalidState", err)
	}
}

func TestSwapChainQueryFailureWrapsCreationError(t *testing.T) {
	backend := newFakeBackend()
	backend.capsErr = errors.New("surface gone")
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	err := chain.Create(&width, &height, true)
	if !errors.Is(err, core.ErrSwapChainCreation) {
		t.Errorf("got %v, want ErrSwapChainCreation", err)
	}
}

func TestSwapChainNoFormatsWrapsCreationError(t *testing.T) {
	backend := newFakeBackend()
	backend.formats = nil
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	err := chain.Create(&width, &height, true)
	if !errors.Is(err, core.ErrSwapChainCreation) {
		t.Errorf("got %v, want ErrSwapChainCreation", err)
	}
}

func TestSwapChainViewFailureCleansUpPartialViews(t *testing.T) {
	backend := newFakeBackend()
	backend.failViewCall = 2
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	err := chain.Create(&width, &height, true)
	if !errors.Is(err, core.ErrSwapChainCreation) {
		t.Fatalf("got %v, want ErrSwapChainCreation", err)
	}
	if n := chain.ImageCount(); n != 0 {
		t.Errorf("chain holds %d buffers after a failed create", n)
	}

	// Destroy after the failed create must not panic and must not
	// touch any view twice, the partial view was already released.
	chain.Destroy()
	if created, destroyed := backend.count("createImageView"), backend.count("destroyImageView"); created != destroyed {
		t.Errorf("created %d views, destroyed %d", created, destroyed)
	}
}

func TestSwapChainFailedRecreationLeavesNoStaleViews(t *testing.T) {
	backend := newFakeBackend()
	chain := boundSwapChain(t, backend)

	width, height := uint32(640), uint32(480)
	if err := chain.Create(&width, &height, true); err != nil {
		t.Fatal(err)
	}

	// The old chain is torn down before the image query of the
	// replacement runs, a failure there must not leave the destroyed
	// old views in the buffer list.
	backend.imagesErr = errors.New("device lost mid-recreation")
	err := chain.Create(&width, &height, true)
	if !errors.Is(err, core.ErrSwapChainCreation) {
		t.Fatalf("got %v, want ErrSwapChainCreation", err)
	}

	chain.Destroy()
	if created, destroyed := backend.count("createImageView"), backend.count("destroyImageView"); created != destroyed {
		t.Errorf("created %d views, destroyed %d", created, destroyed)
	}
}

func TestSwapChainDestroyNeverCreated(t *testing.T) {
	backend := newFakeBackend()
	chain := boundSwapChain(t, backend)

	// Must not panic or emit destroy events.
	chain.Destroy()
	if n := backend.count("destroySwapchain"); n != 0 {
		t.Errorf("destroyed %d chains", n)
	}
}
