package core

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DefaultVulkanApplicationInfo application info describes a Vulkan application
var DefaultVulkanApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   "tinyrhi\x00",
	PEngineName:        "tinyrhi\x00",
}

// NewVulkanInstance creates a Vulkan instance
func NewVulkanInstance(appInfo *vk.ApplicationInfo, procAddr unsafe.Pointer, cfg InstanceConfiguration) (Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, "VK_LAYER_LUNARG_standard_validation")
		cfg.Extensions = append(cfg.Extensions, "VK_EXT_debug_report")
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	/* Create instance */
	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateInstance()")
	}
	vk.InitInstance(instance)

	/* Enumerate devices */
	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		return nil, errors.Wrap(err, "core.enumerateDevices()")
	}

	return &VulkanInstance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
	}, nil
}

// VulkanInstance describes a Vulkan API Instance
type VulkanInstance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, fmt.Errorf("vulkan physical device enumeration failed: %s", err)
	}
	return availableDevices, nil
}

// Backend implements interface
func (v *VulkanInstance) Backend() Backend {
	return &vulkanBackend{instance: v}
}

// PhysicalDevicesInfo implements interface
func (v *VulkanInstance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	backend := v.Backend()
	pdi := make([]PhysicalDeviceInfo, len(v.availableDevices))
	for i := 0; i < len(v.availableDevices); i++ {
		// Get extension info
		extensions, err := backend.DeviceExtensions(v.availableDevices[i])
		if err != nil {
			pdi[i].Invalid = true
		}
		pdi[i].Extensions = extensions

		// Get layers info
		var numDeviceLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(v.availableDevices[i], &numDeviceLayers, nil)); err != nil {
			pdi[i].Invalid = true
		}
		deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(v.availableDevices[i], &numDeviceLayers, deviceLayers)); err != nil {
			pdi[i].Invalid = true
		}
		for _, layer := range deviceLayers {
			layer.Deref()
			pdi[i].Layers = append(pdi[i].Layers, vk.ToString(layer.LayerName[:]))
		}

		// Get memory info
		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(v.availableDevices[i], &memoryProperties)
		memoryProperties.Deref()
		for iMem := (uint32)(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
			memoryProperties.MemoryHeaps[iMem].Deref()
			pdi[i].Memory = pdi[i].Memory + uint64(memoryProperties.MemoryHeaps[iMem].Size)
		}

		// Get queue family info
		pdi[i].QueueFamilies = backend.QueueFamilies(v.availableDevices[i])

		// Get general device info
		var physicalDeviceProperties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(v.availableDevices[i], &physicalDeviceProperties)
		physicalDeviceProperties.Deref()
		pdi[i].ID = (int)(physicalDeviceProperties.DeviceID)
		pdi[i].VendorID = (int)(physicalDeviceProperties.VendorID)
		pdi[i].Name = vk.ToString(physicalDeviceProperties.DeviceName[:])
		pdi[i].DriverVersion = (int)(physicalDeviceProperties.DriverVersion)
	}
	return pdi
}

// SetSurface implements interface
func (v *VulkanInstance) SetSurface(pSurface unsafe.Pointer) {
	v.surface = vk.SurfaceFromPointer(uintptr(pSurface))
}

// Surface implements interface
func (v *VulkanInstance) Surface() SurfaceHandle {
	if v.surface == nil {
		return vk.NullSurface
	}
	return v.surface
}

// Inner implements interface
func (v *VulkanInstance) Inner() interface{} {
	return v.instance
}

// Extensions implements interface
func (v *VulkanInstance) Extensions() []string {
	return v.configuration.Extensions
}

// AvailableDevices implements interface
func (v *VulkanInstance) AvailableDevices() []PhysicalHandle {
	devices := make([]PhysicalHandle, len(v.availableDevices))
	for i, dev := range v.availableDevices {
		devices[i] = dev
	}
	return devices
}

// Destroy implements interface
func (v *VulkanInstance) Destroy() {
	v.availableDevices = nil
	vk.DestroyInstance(v.instance, nil)
}

// SupportedDepthFormat returns the first depth format the device
// supports as an optimal-tiling depth/stencil attachment, highest
// precision first.
func SupportedDepthFormat(phy PhysicalHandle) (Format, bool) {
	device := phy.(vk.PhysicalDevice)
	candidates := []Format{
		FormatD32SfloatS8Uint,
		FormatD32Sfloat,
		FormatD24UnormS8Uint,
		FormatD16Unorm,
	}
	for _, format := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device, VulkanFormat(format), &props)
		props.Deref()
		if props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return format, true
		}
	}
	return FormatUndefined, false
}

// vulkanBackend implements Backend over the Vulkan bindings. All
// handles passed in must originate from the same instance.
type vulkanBackend struct {
	instance *VulkanInstance
}

func (b *vulkanBackend) PhysicalDevices() ([]PhysicalHandle, error) {
	return b.instance.AvailableDevices(), nil
}

func (b *vulkanBackend) QueueFamilies(phy PhysicalHandle) []QueueFamilyProperties {
	device := phy.(vk.PhysicalDevice)

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	out := make([]QueueFamilyProperties, count)
	for i := range families {
		families[i].Deref()
		var flags QueueFlags
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			flags |= QueueGraphics
		}
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			flags |= QueueCompute
		}
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueTransferBit) != 0 {
			flags |= QueueTransfer
		}
		out[i] = QueueFamilyProperties{Flags: flags, Count: families[i].QueueCount}
	}
	return out
}

func (b *vulkanBackend) SupportsPresent(phy PhysicalHandle, family uint32, surface SurfaceHandle) bool {
	var supported vk.Bool32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(phy.(vk.PhysicalDevice), family, surface.(vk.Surface), &supported)); err != nil {
		return false
	}
	return supported.B()
}

func (b *vulkanBackend) DeviceExtensions(phy PhysicalHandle) ([]string, error) {
	device := phy.(vk.PhysicalDevice)

	var count uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumerateDeviceExtensionProperties()")
	}
	properties := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(device, "", &count, properties)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumerateDeviceExtensionProperties()")
	}

	extensions := make([]string, 0, count)
	for _, ext := range properties {
		ext.Deref()
		extensions = append(extensions, vk.ToString(ext.ExtensionName[:]))
	}
	return extensions, nil
}

func (b *vulkanBackend) SurfaceCapabilities(phy PhysicalHandle, surface SurfaceHandle) (SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(phy.(vk.PhysicalDevice), surface.(vk.Surface), &caps)); err != nil {
		return SurfaceCapabilities{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceCapabilities()")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent:          Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent:          Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		SupportedTransforms:     transformsFromVulkan(caps.SupportedTransforms),
		CurrentTransform:        transformsFromVulkan(vk.SurfaceTransformFlags(caps.CurrentTransform)),
		SupportedCompositeAlpha: compositeAlphaFromVulkan(caps.SupportedCompositeAlpha),
		SupportedUsage:          usageFromVulkan(caps.SupportedUsageFlags),
	}, nil
}

func (b *vulkanBackend) SurfaceFormats(phy PhysicalHandle, surface SurfaceHandle) ([]SurfaceFormat, error) {
	device := phy.(vk.PhysicalDevice)
	vkSurface := surface.(vk.Surface)

	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(device, vkSurface, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(device, vkSurface, &count, formats)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}

	out := make([]SurfaceFormat, 0, count)
	for _, format := range formats {
		format.Deref()
		out = append(out, SurfaceFormat{
			Format:     formatFromVulkan(format.Format),
			ColorSpace: ColorSpace(format.ColorSpace),
		})
	}
	return out, nil
}

func (b *vulkanBackend) SurfacePresentModes(phy PhysicalHandle, surface SurfaceHandle) ([]PresentMode, error) {
	device := phy.(vk.PhysicalDevice)
	vkSurface := surface.(vk.Surface)

	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(device, vkSurface, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}
	modes := make([]vk.PresentMode, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(device, vkSurface, &count, modes)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}

	out := make([]PresentMode, 0, count)
	for _, mode := range modes {
		out = append(out, PresentMode(mode))
	}
	return out, nil
}

func (b *vulkanBackend) CreateDevice(phy PhysicalHandle, info DeviceCreateInfo) (DeviceHandle, error) {
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(info.QueueFamilies))
	for _, family := range info.QueueFamilies {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(phy.(vk.PhysicalDevice), &dci, nil, &device)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDevice()")
	}
	return device, nil
}

func (b *vulkanBackend) DestroyDevice(dev DeviceHandle) {
	vk.DestroyDevice(dev.(vk.Device), nil)
}

func (b *vulkanBackend) DeviceQueue(dev DeviceHandle, family, index uint32) QueueHandle {
	var queue vk.Queue
	vk.GetDeviceQueue(dev.(vk.Device), family, index, &queue)
	return queue
}

func (b *vulkanBackend) DeviceWaitIdle(dev DeviceHandle) error {
	if err := vk.Error(vk.DeviceWaitIdle(dev.(vk.Device))); err != nil {
		return errors.Wrap(err, "vk.DeviceWaitIdle()")
	}
	return nil
}

func (b *vulkanBackend) CreateCommandPool(dev DeviceHandle, family uint32, resettable bool) (CommandPoolHandle, error) {
	var flags vk.CommandPoolCreateFlags
	if resettable {
		flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            flags,
	}

	var pool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(dev.(vk.Device), &cpci, nil, &pool)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateCommandPool()")
	}
	return pool, nil
}

func (b *vulkanBackend) DestroyCommandPool(dev DeviceHandle, pool CommandPoolHandle) {
	vk.DestroyCommandPool(dev.(vk.Device), pool.(vk.CommandPool), nil)
}

func (b *vulkanBackend) CreateSwapchain(dev DeviceHandle, info SwapchainCreateInfo) (SwapchainHandle, error) {
	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          info.Surface.(vk.Surface),
		MinImageCount:    info.MinImageCount,
		ImageFormat:      VulkanFormat(info.Format),
		ImageColorSpace:  vk.ColorSpace(info.ColorSpace),
		ImageExtent:      vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: info.ArrayLayers,
		ImageUsage:       usageToVulkan(info.Usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     transformToVulkan(info.PreTransform),
		CompositeAlpha:   compositeAlphaToVulkan(info.CompositeAlpha),
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vkBool(info.Clipped),
	}
	if len(info.SharingQueueFamilies) > 0 {
		scci.ImageSharingMode = vk.SharingModeConcurrent
		scci.QueueFamilyIndexCount = uint32(len(info.SharingQueueFamilies))
		scci.PQueueFamilyIndices = info.SharingQueueFamilies
	}
	if info.OldSwapchain != nil {
		scci.OldSwapchain = info.OldSwapchain.(vk.Swapchain)
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(dev.(vk.Device), &scci, nil, &swapchain)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateSwapchain()")
	}
	return swapchain, nil
}

func (b *vulkanBackend) DestroySwapchain(dev DeviceHandle, chain SwapchainHandle) {
	vk.DestroySwapchain(dev.(vk.Device), chain.(vk.Swapchain), nil)
}

func (b *vulkanBackend) SwapchainImages(dev DeviceHandle, chain SwapchainHandle) ([]ImageHandle, error) {
	device := dev.(vk.Device)
	swapchain := chain.(vk.Swapchain)

	var count uint32
	if err := vk.Error(vk.GetSwapchainImages(device, swapchain, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages()")
	}
	images := make([]vk.Image, count)
	if err := vk.Error(vk.GetSwapchainImages(device, swapchain, &count, images)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages()")
	}

	out := make([]ImageHandle, count)
	for i, img := range images {
		out[i] = img
	}
	return out, nil
}

func (b *vulkanBackend) CreateImageView(dev DeviceHandle, info ImageViewCreateInfo) (ImageViewHandle, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    info.Image.(vk.Image),
		ViewType: vk.ImageViewType2d,
		Format:   VulkanFormat(info.Format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(dev.(vk.Device), &ivci, nil, &view)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateImageView()")
	}
	return view, nil
}

func (b *vulkanBackend) DestroyImageView(dev DeviceHandle, view ImageViewHandle) {
	vk.DestroyImageView(dev.(vk.Device), view.(vk.ImageView), nil)
}

func (b *vulkanBackend) CreateSemaphore(dev DeviceHandle) (SemaphoreHandle, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(dev.(vk.Device), &sci, nil, &semaphore)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateSemaphore()")
	}
	return semaphore, nil
}

func (b *vulkanBackend) DestroySemaphore(dev DeviceHandle, sem SemaphoreHandle) {
	vk.DestroySemaphore(dev.(vk.Device), sem.(vk.Semaphore), nil)
}

func (b *vulkanBackend) CreateFence(dev DeviceHandle, signaled bool) (FenceHandle, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(dev.(vk.Device), &fci, nil, &fence)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateFence()")
	}
	return fence, nil
}

func (b *vulkanBackend) DestroyFence(dev DeviceHandle, fence FenceHandle) {
	vk.DestroyFence(dev.(vk.Device), fence.(vk.Fence), nil)
}

func (b *vulkanBackend) WaitForFence(dev DeviceHandle, fence FenceHandle, timeout time.Duration) error {
	timeoutNs := uint64(math.MaxUint64)
	if timeout > 0 {
		timeoutNs = uint64(timeout.Nanoseconds())
	}
	result := vk.WaitForFences(dev.(vk.Device), 1, []vk.Fence{fence.(vk.Fence)}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		return ErrFenceTimeout
	case vk.ErrorDeviceLost:
		return ErrDeviceLost
	default:
		return errors.Wrap(vk.Error(result), "vk.WaitForFences()")
	}
}

func (b *vulkanBackend) ResetFence(dev DeviceHandle, fence FenceHandle) error {
	if err := vk.Error(vk.ResetFences(dev.(vk.Device), 1, []vk.Fence{fence.(vk.Fence)})); err != nil {
		return errors.Wrap(err, "vk.ResetFences()")
	}
	return nil
}

func (b *vulkanBackend) AcquireNextImage(dev DeviceHandle, chain SwapchainHandle, timeout time.Duration, sem SemaphoreHandle) (uint32, Outcome, error) {
	timeoutNs := uint64(math.MaxUint64)
	if timeout > 0 {
		timeoutNs = uint64(timeout.Nanoseconds())
	}

	var index uint32
	result := vk.AcquireNextImage(dev.(vk.Device), chain.(vk.Swapchain), timeoutNs, sem.(vk.Semaphore), nil, &index)
	switch result {
	case vk.Success:
		return index, OutcomeSuccess, nil
	case vk.Suboptimal:
		return index, OutcomeSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, OutcomeOutOfDate, nil
	case vk.ErrorDeviceLost:
		return 0, OutcomeSuccess, ErrDeviceLost
	default:
		return 0, OutcomeSuccess, errors.Wrap(vk.Error(result), "vk.AcquireNextImage()")
	}
}

func (b *vulkanBackend) Submit(queue QueueHandle, info SubmitInfo, fence FenceHandle) error {
	waitSemaphores := make([]vk.Semaphore, len(info.WaitSemaphores))
	for i, sem := range info.WaitSemaphores {
		waitSemaphores[i] = sem.(vk.Semaphore)
	}
	waitStages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, stage := range info.WaitStages {
		waitStages[i] = stageToVulkan(stage)
	}
	buffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, buf := range info.CommandBuffers {
		buffers[i] = buf.(vk.CommandBuffer)
	}
	signalSemaphores := make([]vk.Semaphore, len(info.SignalSemaphores))
	for i, sem := range info.SignalSemaphores {
		signalSemaphores[i] = sem.(vk.Semaphore)
	}

	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSemaphores)),
		PWaitSemaphores:      waitSemaphores,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signalSemaphores)),
		PSignalSemaphores:    signalSemaphores,
	}}

	var vkFence vk.Fence
	if fence != nil {
		vkFence = fence.(vk.Fence)
	}
	result := vk.QueueSubmit(queue.(vk.Queue), 1, submit, vkFence)
	if result == vk.ErrorDeviceLost {
		return ErrDeviceLost
	}
	if err := vk.Error(result); err != nil {
		return errors.Wrap(err, "vk.QueueSubmit()")
	}
	return nil
}

func (b *vulkanBackend) Present(queue QueueHandle, info PresentInfo) (Outcome, error) {
	waitSemaphores := make([]vk.Semaphore, len(info.WaitSemaphores))
	for i, sem := range info.WaitSemaphores {
		waitSemaphores[i] = sem.(vk.Semaphore)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waitSemaphores)),
		PWaitSemaphores:    waitSemaphores,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{info.Swapchain.(vk.Swapchain)},
		PImageIndices:      []uint32{info.ImageIndex},
	}

	result := vk.QueuePresent(queue.(vk.Queue), &presentInfo)
	switch result {
	case vk.Success:
		return OutcomeSuccess, nil
	case vk.Suboptimal:
		return OutcomeSuboptimal, nil
	case vk.ErrorOutOfDate:
		return OutcomeOutOfDate, nil
	case vk.ErrorDeviceLost:
		return OutcomeSuccess, ErrDeviceLost
	default:
		return OutcomeSuccess, errors.Wrap(vk.Error(result), "vk.QueuePresent()")
	}
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// VulkanFormat maps a core format onto the Vulkan enum. Renderers use
// it to build passes against the swap chain's chosen format.
func VulkanFormat(format Format) vk.Format {
	switch format {
	case FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case FormatA8B8G8R8UnormPack32:
		return vk.FormatA8b8g8r8UnormPack32
	case FormatB8G8R8A8Srgb:
		return vk.FormatB8g8r8a8Srgb
	case FormatD16Unorm:
		return vk.FormatD16Unorm
	case FormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	case FormatD32Sfloat:
		return vk.FormatD32Sfloat
	case FormatD32SfloatS8Uint:
		return vk.FormatD32SfloatS8Uint
	default:
		return vk.FormatUndefined
	}
}

func formatFromVulkan(format vk.Format) Format {
	switch format {
	case vk.FormatB8g8r8a8Unorm:
		return FormatB8G8R8A8Unorm
	case vk.FormatR8g8b8a8Unorm:
		return FormatR8G8B8A8Unorm
	case vk.FormatA8b8g8r8UnormPack32:
		return FormatA8B8G8R8UnormPack32
	case vk.FormatB8g8r8a8Srgb:
		return FormatB8G8R8A8Srgb
	default:
		return FormatUndefined
	}
}

func usageToVulkan(usage ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlags
	if usage&ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if usage&ImageUsageTransferSrc != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}
	if usage&ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	return flags
}

func usageFromVulkan(flags vk.ImageUsageFlags) ImageUsage {
	var usage ImageUsage
	if flags&vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) != 0 {
		usage |= ImageUsageColorAttachment
	}
	if flags&vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit) != 0 {
		usage |= ImageUsageTransferSrc
	}
	if flags&vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) != 0 {
		usage |= ImageUsageTransferDst
	}
	return usage
}

func transformsFromVulkan(flags vk.SurfaceTransformFlags) SurfaceTransform {
	// Identity shares the bit position, the remaining bits are opaque
	// to the core and passed through unchanged.
	return SurfaceTransform(flags)
}

func transformToVulkan(transform SurfaceTransform) vk.SurfaceTransformFlagBits {
	return vk.SurfaceTransformFlagBits(transform)
}

func compositeAlphaFromVulkan(flags vk.CompositeAlphaFlags) CompositeAlpha {
	var alpha CompositeAlpha
	if flags&vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit) != 0 {
		alpha |= CompositeAlphaOpaque
	}
	if flags&vk.CompositeAlphaFlags(vk.CompositeAlphaPreMultipliedBit) != 0 {
		alpha |= CompositeAlphaPreMultiplied
	}
	if flags&vk.CompositeAlphaFlags(vk.CompositeAlphaPostMultipliedBit) != 0 {
		alpha |= CompositeAlphaPostMultiplied
	}
	if flags&vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit) != 0 {
		alpha |= CompositeAlphaInherit
	}
	return alpha
}

func compositeAlphaToVulkan(alpha CompositeAlpha) vk.CompositeAlphaFlagBits {
	switch alpha {
	case CompositeAlphaPreMultiplied:
		return vk.CompositeAlphaPreMultipliedBit
	case CompositeAlphaPostMultiplied:
		return vk.CompositeAlphaPostMultipliedBit
	case CompositeAlphaInherit:
		return vk.CompositeAlphaInheritBit
	default:
		return vk.CompositeAlphaOpaqueBit
	}
}

func stageToVulkan(stage PipelineStage) vk.PipelineStageFlags {
	switch stage {
	case PipelineStageColorAttachmentOutput:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	default:
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}
