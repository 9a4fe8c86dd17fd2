package core

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultFramesInFlight is how many frames the CPU may run ahead of
// the GPU when the configuration does not say otherwise.
const DefaultFramesInFlight = 2

// FrameSyncConfiguration tunes the frame synchronizer.
type FrameSyncConfiguration struct {
	// FramesInFlight is the number of frame slots. Zero means
	// DefaultFramesInFlight.
	FramesInFlight int

	// FenceWaitTimeout bounds the per-frame completion wait. Zero
	// waits without bound.
	FenceWaitTimeout time.Duration
}

// frameSlot is one in-flight frame's synchronization set.
type frameSlot struct {
	acquire        SemaphoreHandle
	renderComplete SemaphoreHandle
	fence          FenceHandle
}

// Frame is the token BeginFrame hands out and EndFrame consumes.
type Frame struct {
	// Slot is the frame slot index the frame runs in.
	Slot int

	// ImageIndex is the acquired swap chain image.
	ImageIndex uint32

	recreateAfterPresent bool
}

// FrameSync rotates a fixed ring of frame slots, each holding an
// acquire semaphore, a render-complete semaphore and a completion
// fence created signaled so the first wait on every slot passes.
// Out-of-date and suboptimal surface conditions are absorbed here by
// invoking the registered recreation callback, they never surface to
// the caller as errors.
type FrameSync struct {
	backend   Backend
	device    DeviceHandle
	graphics  QueueHandle
	present   QueueHandle
	swapchain *SwapChain

	slots    []frameSlot
	current  int
	timeout  time.Duration
	recreate func() error
}

// NewFrameSync creates the slot ring on the device. The swap chain is
// read through on every acquire so recreation swaps transparently.
func NewFrameSync(backend Backend, dev DeviceHandle, graphics, present QueueHandle, chain *SwapChain, cfg FrameSyncConfiguration) (*FrameSync, error) {
	inFlight := cfg.FramesInFlight
	if inFlight <= 0 {
		inFlight = DefaultFramesInFlight
	}

	f := &FrameSync{
		backend:   backend,
		device:    dev,
		graphics:  graphics,
		present:   present,
		swapchain: chain,
		timeout:   cfg.FenceWaitTimeout,
		slots:     make([]frameSlot, inFlight),
	}
	for i := range f.slots {
		acquire, err := backend.CreateSemaphore(dev)
		if err != nil {
			f.Destroy()
			return nil, errors.Wrap(err, "create acquire semaphore")
		}
		f.slots[i].acquire = acquire

		renderComplete, err := backend.CreateSemaphore(dev)
		if err != nil {
			f.Destroy()
			return nil, errors.Wrap(err, "create render semaphore")
		}
		f.slots[i].renderComplete = renderComplete

		fence, err := backend.CreateFence(dev, true)
		if err != nil {
			f.Destroy()
			return nil, errors.Wrap(err, "create frame fence")
		}
		f.slots[i].fence = fence
	}
	return f, nil
}

// OnRecreate registers the callback run when the presentation engine
// reports the surface out of date or suboptimal. The callback must
// recreate the swap chain and any size-dependent renderer state.
func (f *FrameSync) OnRecreate(fn func() error) {
	f.recreate = fn
}

// CurrentSlot returns the slot index the next BeginFrame will use.
func (f *FrameSync) CurrentSlot() int {
	return f.current
}

// BeginFrame waits for the slot's previous submission, acquires the
// next swap chain image and resets the slot fence. An out-of-date
// acquire runs the recreation callback once and retries, a suboptimal
// acquire proceeds and schedules recreation for after the present.
func (f *FrameSync) BeginFrame() (Frame, error) {
	slot := &f.slots[f.current]

	if err := f.backend.WaitForFence(f.device, slot.fence, f.timeout); err != nil {
		return Frame{}, errors.Wrap(err, "wait for frame fence")
	}

	index, outcome, err := f.backend.AcquireNextImage(f.device, f.swapchain.Handle(), 0, slot.acquire)
	if err != nil {
		return Frame{}, errors.Wrap(err, "acquire image")
	}
	if outcome == OutcomeOutOfDate {
		if err := f.runRecreate(); err != nil {
			return Frame{}, err
		}
		index, outcome, err = f.backend.AcquireNextImage(f.device, f.swapchain.Handle(), 0, slot.acquire)
		if err != nil {
			return Frame{}, errors.Wrap(err, "acquire image after recreation")
		}
		if outcome == OutcomeOutOfDate {
			return Frame{}, errors.Wrap(ErrSwapChainCreation, "surface still out of date after recreation")
		}
	}

	// The fence is reset only after a successful acquire so an
	// early return above leaves the slot reusable.
	if err := f.backend.ResetFence(f.device, slot.fence); err != nil {
		return Frame{}, errors.Wrap(err, "reset frame fence")
	}

	return Frame{
		Slot:                 f.current,
		ImageIndex:           index,
		recreateAfterPresent: outcome == OutcomeSuboptimal,
	}, nil
}

// EndFrame submits the recorded command buffers and presents the
// frame's image. The submission waits on the acquire semaphore at the
// color attachment output stage and signals the render-complete
// semaphore plus the slot fence, presentation waits on the
// render-complete semaphore. The slot cursor advances regardless of
// whether presentation scheduled a recreation.
//
// A failed submit is fatal: the slot fence stays unsignaled, so the
// frame loop must stop on the error rather than wrap around to this
// slot again.
func (f *FrameSync) EndFrame(frame Frame, buffers ...CommandBufferHandle) error {
	slot := &f.slots[frame.Slot]

	err := f.backend.Submit(f.graphics, SubmitInfo{
		WaitSemaphores:   []SemaphoreHandle{slot.acquire},
		WaitStages:       []PipelineStage{PipelineStageColorAttachmentOutput},
		CommandBuffers:   buffers,
		SignalSemaphores: []SemaphoreHandle{slot.renderComplete},
	}, slot.fence)
	if err != nil {
		return errors.Wrap(err, "submit frame")
	}

	outcome, err := f.backend.Present(f.present, PresentInfo{
		WaitSemaphores: []SemaphoreHandle{slot.renderComplete},
		Swapchain:      f.swapchain.Handle(),
		ImageIndex:     frame.ImageIndex,
	})
	f.current = (f.current + 1) % len(f.slots)
	if err != nil {
		return errors.Wrap(err, "present frame")
	}
	if outcome == OutcomeOutOfDate || outcome == OutcomeSuboptimal || frame.recreateAfterPresent {
		if err := f.runRecreate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *FrameSync) runRecreate() error {
	if f.recreate == nil {
		return errors.Wrap(ErrSwapChainCreation, "surface out of date and no recreation callback registered")
	}
	log.Debug("surface changed, recreating swap chain")
	if err := f.recreate(); err != nil {
		return errors.Wrap(err, "recreate swap chain")
	}
	return nil
}

// Destroy destroys every slot's semaphores and fence. The device must
// be idle.
func (f *FrameSync) Destroy() {
	for i := range f.slots {
		slot := &f.slots[i]
		if slot.acquire != nil {
			f.backend.DestroySemaphore(f.device, slot.acquire)
		}
		if slot.renderComplete != nil {
			f.backend.DestroySemaphore(f.device, slot.renderComplete)
		}
		if slot.fence != nil {
			f.backend.DestroyFence(f.device, slot.fence)
		}
	}
	f.slots = nil
}
