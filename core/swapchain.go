package core

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// swapChainState tracks the lifecycle of a SwapChain.
type swapChainState int

const (
	swapChainUnbound swapChainState = iota
	swapChainBound
	swapChainCreated
	swapChainDestroyed
)

// SwapChainBuffer pairs a swap chain image with its color view.
type SwapChainBuffer struct {
	Image ImageHandle
	View  ImageViewHandle
}

// preferredFormats is scanned against the surface-reported formats,
// the first reported format found here wins. When none match, the
// first reported format is used as is.
var preferredFormats = []Format{
	FormatB8G8R8A8Unorm,
	FormatR8G8B8A8Unorm,
	FormatA8B8G8R8UnormPack32,
}

// SwapChain owns the presentable image chain of one surface. Bind it
// to a device and surface once, then Create on startup and again on
// every resize. Create hands the retired chain to the presentation
// engine and tears it down only after the replacement exists.
type SwapChain struct {
	backend  Backend
	physical PhysicalHandle
	device   DeviceHandle
	surface  SurfaceHandle
	state    swapChainState

	handle      SwapchainHandle
	format      Format
	colorSpace  ColorSpace
	presentMode PresentMode
	extent      Extent2D
	buffers     []SwapChainBuffer
}

// NewSwapChain returns an unbound swap chain on the backend.
func NewSwapChain(backend Backend) *SwapChain {
	return &SwapChain{backend: backend}
}

// Bind connects the swap chain to a physical device, logical device
// and surface. Must be called exactly once before Create.
func (s *SwapChain) Bind(phy PhysicalHandle, dev DeviceHandle, surface SurfaceHandle) error {
	if s.state != swapChainUnbound {
		return errors.Wrap(ErrInvalidState, "swap chain already bound")
	}
	s.physical = phy
	s.device = dev
	s.surface = surface
	s.state = swapChainBound
	return nil
}

// Create builds the swap chain, or rebuilds it when one already
// exists. Width and height are in/out: they feed the extent when the
// surface leaves the size undefined, and are overwritten with the
// extent actually used. With vsync the presentation mode is FIFO,
// otherwise MAILBOX is preferred with IMMEDIATE as the fallback.
func (s *SwapChain) Create(width, height *uint32, vsync bool) error {
	if s.state != swapChainBound && s.state != swapChainCreated {
		return errors.Wrap(ErrInvalidState, "swap chain not bound")
	}

	caps, err := s.backend.SurfaceCapabilities(s.physical, s.surface)
	if err != nil {
		return errors.Wrapf(ErrSwapChainCreation, "query surface capabilities: %v", err)
	}
	modes, err := s.backend.SurfacePresentModes(s.physical, s.surface)
	if err != nil {
		return errors.Wrapf(ErrSwapChainCreation, "query present modes: %v", err)
	}
	formats, err := s.backend.SurfaceFormats(s.physical, s.surface)
	if err != nil {
		return errors.Wrapf(ErrSwapChainCreation, "query surface formats: %v", err)
	}
	if len(formats) == 0 {
		return errors.Wrap(ErrSwapChainCreation, "surface reports no formats")
	}

	// An undefined current extent means the surface takes its size
	// from the swap chain, otherwise the surface dictates it and the
	// caller's values are overwritten.
	var extent Extent2D
	if caps.CurrentExtent.Width == UndefinedExtent {
		extent = Extent2D{Width: *width, Height: *height}
	} else {
		extent = caps.CurrentExtent
		*width = extent.Width
		*height = extent.Height
	}
	s.extent = extent

	// FIFO is the only mode guaranteed to exist and the one vsync
	// wants. Without vsync, MAILBOX gives the lowest latency that
	// still avoids tearing, IMMEDIATE is only taken when MAILBOX is
	// absent.
	presentMode := PresentModeFifo
	if !vsync {
		for _, mode := range modes {
			if mode == PresentModeMailbox {
				presentMode = PresentModeMailbox
				break
			}
			if mode == PresentModeImmediate {
				presentMode = PresentModeImmediate
			}
		}
	}
	s.presentMode = presentMode

	// One image over the minimum keeps the pipeline fed. MaxImageCount
	// of zero means the implementation sets no limit.
	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	preTransform := caps.CurrentTransform
	if caps.SupportedTransforms&TransformIdentity != 0 {
		preTransform = TransformIdentity
	}

	compositeAlpha := CompositeAlphaOpaque
	for _, alpha := range []CompositeAlpha{
		CompositeAlphaOpaque,
		CompositeAlphaPreMultiplied,
		CompositeAlphaPostMultiplied,
		CompositeAlphaInherit,
	} {
		if caps.SupportedCompositeAlpha&alpha != 0 {
			compositeAlpha = alpha
			break
		}
	}

	surfaceFormat := formats[0]
	for _, reported := range formats {
		if formatPreferred(reported.Format) {
			surfaceFormat = reported
			break
		}
	}
	s.format = surfaceFormat.Format
	s.colorSpace = surfaceFormat.ColorSpace

	usage := ImageUsageColorAttachment
	if caps.SupportedUsage&ImageUsageTransferSrc != 0 {
		usage |= ImageUsageTransferSrc
	}
	if caps.SupportedUsage&ImageUsageTransferDst != 0 {
		usage |= ImageUsageTransferDst
	}

	oldHandle := s.handle
	oldBuffers := s.buffers

	handle, err := s.backend.CreateSwapchain(s.device, SwapchainCreateInfo{
		Surface:        s.surface,
		MinImageCount:  imageCount,
		Format:         surfaceFormat.Format,
		ColorSpace:     surfaceFormat.ColorSpace,
		Extent:         extent,
		ArrayLayers:    1,
		Usage:          usage,
		PreTransform:   preTransform,
		CompositeAlpha: compositeAlpha,
		PresentMode:    presentMode,
		Clipped:        true,
		OldSwapchain:   oldHandle,
	})
	if err != nil {
		return errors.Wrapf(ErrSwapChainCreation, "create swapchain: %v", err)
	}
	s.handle = handle

	// The retired chain is released only now that the replacement
	// exists, views strictly before the handle. The buffer list is
	// cleared immediately so a failure below never leaves destroyed
	// views behind for Destroy to release a second time.
	if oldHandle != nil {
		for _, buf := range oldBuffers {
			s.backend.DestroyImageView(s.device, buf.View)
		}
		s.backend.DestroySwapchain(s.device, oldHandle)
	}
	s.buffers = nil

	images, err := s.backend.SwapchainImages(s.device, handle)
	if err != nil {
		return errors.Wrapf(ErrSwapChainCreation, "get swapchain images: %v", err)
	}
	buffers := make([]SwapChainBuffer, 0, len(images))
	for _, img := range images {
		view, err := s.backend.CreateImageView(s.device, ImageViewCreateInfo{
			Image:  img,
			Format: surfaceFormat.Format,
		})
		if err != nil {
			for _, buf := range buffers {
				s.backend.DestroyImageView(s.device, buf.View)
			}
			return errors.Wrapf(ErrSwapChainCreation, "create image view: %v", err)
		}
		buffers = append(buffers, SwapChainBuffer{Image: img, View: view})
	}
	s.buffers = buffers

	log.WithFields(log.Fields{
		"extent":      extent,
		"images":      len(images),
		"presentMode": presentMode,
	}).Debug("swap chain created")

	s.state = swapChainCreated
	return nil
}

func formatPreferred(format Format) bool {
	for _, preferred := range preferredFormats {
		if format == preferred {
			return true
		}
	}
	return false
}

// Handle returns the current swap chain handle.
func (s *SwapChain) Handle() SwapchainHandle {
	return s.handle
}

// Extent returns the extent of the last successful Create.
func (s *SwapChain) Extent() Extent2D {
	return s.extent
}

// Format returns the selected image format.
func (s *SwapChain) Format() Format {
	return s.format
}

// ColorSpace returns the selected color space.
func (s *SwapChain) ColorSpace() ColorSpace {
	return s.colorSpace
}

// PresentMode returns the selected presentation mode.
func (s *SwapChain) PresentMode() PresentMode {
	return s.presentMode
}

// ImageCount returns the number of images in the current chain.
func (s *SwapChain) ImageCount() int {
	return len(s.buffers)
}

// Buffers returns the image/view pairs of the current chain.
func (s *SwapChain) Buffers() []SwapChainBuffer {
	return s.buffers
}

// Destroy tears down views and the chain handle. Safe to call on a
// chain that never completed a Create.
func (s *SwapChain) Destroy() {
	if s.state == swapChainDestroyed {
		return
	}
	for _, buf := range s.buffers {
		if buf.View != nil {
			s.backend.DestroyImageView(s.device, buf.View)
		}
	}
	s.buffers = nil
	if s.handle != nil {
		s.backend.DestroySwapchain(s.device, s.handle)
		s.handle = nil
	}
	s.state = swapChainDestroyed
}
