package core_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/devblok/tinyrhi/core"
)

type presentHarness struct {
	backend     *fakeBackend
	chain       *core.SwapChain
	sync        *core.FrameSync
	width       uint32
	height      uint32
	recreations int
}

func newPresentHarness(t *testing.T, cfg core.FrameSyncConfiguration) *presentHarness {
	t.Helper()
	backend := newFakeBackend()

	dev, err := backend.CreateDevice(backend.physicals[0], core.DeviceCreateInfo{QueueFamilies: []uint32{0}})
	if err != nil {
		t.Fatal(err)
	}
	queue := backend.DeviceQueue(dev, 0, 0)

	h := &presentHarness{backend: backend, width: 800, height: 600}
	h.chain = core.NewSwapChain(backend)
	if err := h.chain.Bind(backend.physicals[0], dev, &fakeSurface{}); err != nil {
		t.Fatal(err)
	}
	if err := h.chain.Create(&h.width, &h.height, true); err != nil {
		t.Fatal(err)
	}

	h.sync, err = core.NewFrameSync(backend, dev, queue, queue, h.chain, cfg)
	if err != nil {
		t.Fatal(err)
	}
	h.sync.OnRecreate(func() error {
		h.recreations++
		return h.chain.Create(&h.width, &h.height, true)
	})
	return h
}

func (h *presentHarness) runFrame(t *testing.T) core.Frame {
	t.Helper()
	frame, err := h.sync.BeginFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := h.sync.EndFrame(frame, &fakeBuffer{id: frame.Slot}); err != nil {
		t.Fatal(err)
	}
	return frame
}

func TestFrameSyncFencesStartSignaled(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})

	if n := h.backend.count("createFence:"); n != core.DefaultFramesInFlight {
		t.Fatalf("created %d fences, want %d", n, core.DefaultFramesInFlight)
	}
	for _, event := range h.backend.events {
		if strings.HasPrefix(event, "createFence:") && !strings.HasSuffix(event, "signaled=true") {
			t.Errorf("fence created unsignaled: %s", event)
		}
	}

	// The very first frame must not deadlock on its own fence.
	h.runFrame(t)
}

func TestFrameSyncSlotRotation(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{FramesInFlight: 2})

	var slots []int
	for i := 0; i < 5; i++ {
		slots = append(slots, h.runFrame(t).Slot)
	}
	want := []int{0, 1, 0, 1, 0}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot sequence %v, want %v", slots, want)
		}
	}
}

func TestFrameSyncWaitAcquireResetOrder(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})
	h.runFrame(t)

	wait := h.backend.indexOf(t, "waitFence:")
	acquire := h.backend.indexOf(t, "acquire:")
	reset := h.backend.indexOf(t, "resetFence:")
	if !(wait < acquire && acquire < reset) {
		t.Errorf("expected wait < acquire < reset, got events %v", h.backend.events)
	}
}

func TestFrameSyncSubmitSignalsWhatPresentAwaits(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})
	h.runFrame(t)

	submitIdx := h.backend.indexOf(t, "submit:")
	presentIdx := h.backend.indexOf(t, "present:")
	if submitIdx > presentIdx {
		t.Fatal("present recorded before submit")
	}

	submit := h.backend.events[submitIdx]
	present := h.backend.events[presentIdx]
	signal := submit[strings.Index(submit, "signal=")+len("signal=") : strings.Index(submit, ":fence=")]
	wait := present[strings.Index(present, "wait=")+len("wait=") : strings.Index(present, ":image=")]
	if signal != wait {
		t.Errorf("present waits on semaphore %s, submit signals %s", wait, signal)
	}
}

func TestFrameSyncOutOfDateAcquireRecreatesOnce(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})
	h.backend.acquireOutcomes = []core.Outcome{core.OutcomeOutOfDate, core.OutcomeSuccess}

	frame, err := h.sync.BeginFrame()
	if err != nil {
		t.Fatalf("out-of-date acquire escaped as error: %v", err)
	}
	if h.recreations != 1 {
		t.Errorf("recreated %d times, want 1", h.recreations)
	}
	if err := h.sync.EndFrame(frame, &fakeBuffer{}); err != nil {
		t.Fatal(err)
	}
	if h.recreations != 1 {
		t.Errorf("recreated %d times after present, want 1", h.recreations)
	}
}

func TestFrameSyncOutOfDateWithoutCallback(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})
	h.sync.OnRecreate(nil)
	h.backend.acquireOutcomes = []core.Outcome{core.OutcomeOutOfDate}

	if _, err := h.sync.BeginFrame(); err == nil {
		t.Fatal("expected an error without a recreation callback")
	}
}

func TestFrameSyncSuboptimalAcquireRecreatesAfterPresent(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})
	h.backend.acquireOutcomes = []core.Outcome{core.OutcomeSuboptimal}

	frame, err := h.sync.BeginFrame()
	if err != nil {
		t.Fatalf("suboptimal acquire escaped as error: %v", err)
	}
	if h.recreations != 0 {
		t.Fatal("recreated before the frame was presented")
	}
	if err := h.sync.EndFrame(frame, &fakeBuffer{}); err != nil {
		t.Fatal(err)
	}
	if h.recreations != 1 {
		t.Errorf("recreated %d times, want 1", h.recreations)
	}

	// The frame itself must have been presented before recreation.
	present := h.backend.indexOf(t, "present:")
	recreated := indexOfNth(t, h.backend, "createSwapchain:", 2)
	if present > recreated {
		t.Error("recreation happened before the present")
	}
}

// indexOfNth returns the position of the n-th event with the prefix,
// counting from 1.
func indexOfNth(t *testing.T, backend *fakeBackend, prefix string, n int) int {
	t.Helper()
	seen := 0
	for i, event := range backend.events {
		if strings.HasPrefix(event, prefix) {
			seen++
			if seen == n {
				return i
			}
		}
	}
	t.Fatalf("fewer than %d events with prefix %q in %v", n, prefix, backend.events)
	return -1
}

func TestFrameSyncPresentOutOfDateRecreates(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})
	h.backend.presentOutcomes = []core.Outcome{core.OutcomeOutOfDate}

	h.runFrame(t)
	if h.recreations != 1 {
		t.Errorf("recreated %d times, want 1", h.recreations)
	}
}

func TestFrameSyncFenceTimeout(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{
		FramesInFlight:   2,
		FenceWaitTimeout: time.Millisecond,
	})
	h.backend.stalled = true

	// Two frames consume the initially signaled fences, the third
	// wraps around to a fence the stalled GPU never signals.
	h.runFrame(t)
	h.runFrame(t)

	_, err := h.sync.BeginFrame()
	if !errors.Is(err, core.ErrFenceTimeout) {
		t.Errorf("got %v, want ErrFenceTimeout", err)
	}
}

func TestFrameSyncSubmitFailurePropagates(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{})
	h.backend.submitErr = errors.New("queue submission failed")

	frame, err := h.sync.BeginFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := h.sync.EndFrame(frame, &fakeBuffer{}); err == nil {
		t.Fatal("submit failure swallowed by EndFrame")
	}
	if n := h.backend.count("present:"); n != 0 {
		t.Errorf("presented %d frames after a failed submit", n)
	}
}

func TestFrameSyncDestroy(t *testing.T) {
	h := newPresentHarness(t, core.FrameSyncConfiguration{FramesInFlight: 3})
	h.sync.Destroy()

	if n := h.backend.count("destroySemaphore:"); n != 6 {
		t.Errorf("destroyed %d semaphores, want 6", n)
	}
	if n := h.backend.count("destroyFence:"); n != 3 {
		t.Errorf("destroyed %d fences, want 3", n)
	}
}
