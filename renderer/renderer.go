// Package renderer draws into the swap chain images the core hands
// out. It owns pipelines, passes and buffers, never synchronization,
// FrameSync decides when its command buffers run.
package renderer

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/tinyrhi/core"
	"github.com/devblok/tinyrhi/model"
)

// Configuration is used to configure the triangle renderer
type Configuration struct {
	// FramesInFlight must match the frame synchronizer's slot count,
	// one command buffer is kept per slot.
	FramesInFlight int

	ClearColor [4]float32

	// Shader module names resolved through the module source.
	VertexShader   string
	FragmentShader string
}

// NewVulkanRenderer builds the triangle pipeline against the current
// swap chain state. The device context's default command pool backs
// the per-slot command buffers.
func NewVulkanRenderer(ctx *core.DeviceContext, chain *core.SwapChain, modules core.ModuleSource, cfg Configuration) (*VulkanRenderer, error) {
	if cfg.FramesInFlight <= 0 {
		cfg.FramesInFlight = core.DefaultFramesInFlight
	}

	v := &VulkanRenderer{
		configuration:  cfg,
		chain:          chain,
		device:         ctx.Device().(vk.Device),
		physicalDevice: ctx.Physical().(vk.PhysicalDevice),
		commandPool:    ctx.DefaultCommandPool().(vk.CommandPool),
	}

	if err := v.createRenderPass(); err != nil {
		return nil, err
	}
	if err := v.loadShaders(modules); err != nil {
		return nil, err
	}
	if err := v.createPipeline(); err != nil {
		return nil, err
	}
	if err := v.createVertexBuffer(); err != nil {
		return nil, err
	}
	if err := v.createFramebuffers(); err != nil {
		return nil, err
	}
	if err := v.allocateCommandBuffers(); err != nil {
		return nil, err
	}
	return v, nil
}

// VulkanRenderer is the Vulkan triangle renderer
type VulkanRenderer struct {
	configuration Configuration

	chain          *core.SwapChain
	device         vk.Device
	physicalDevice vk.PhysicalDevice
	commandPool    vk.CommandPool

	renderPass     vk.RenderPass
	pipelineLayout vk.PipelineLayout
	pipelineCache  vk.PipelineCache
	pipeline       vk.Pipeline

	vertexShader   vk.ShaderModule
	fragmentShader vk.ShaderModule

	vertexBuffer vk.Buffer
	vertexMemory vk.DeviceMemory
	vertexCount  uint32

	framebuffers   []vk.Framebuffer
	commandBuffers []vk.CommandBuffer
}

func (v *VulkanRenderer) createRenderPass() error {
	attachments := []vk.AttachmentDescription{{
		Format:         core.VulkanFormat(v.chain.Format()),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}

	colorRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorRef,
	}}

	// The external dependency delays the clear until the acquire
	// semaphore wait at color attachment output.
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(v.device, &rpci, nil, &renderPass)); err != nil {
		return errors.Wrap(err, "vk.CreateRenderPass()")
	}
	v.renderPass = renderPass
	return nil
}

func (v *VulkanRenderer) loadShaders(modules core.ModuleSource) error {
	load := func(name string) (vk.ShaderModule, error) {
		code, err := modules.LoadModule(name)
		if err != nil {
			return nil, errors.Wrapf(err, "load shader %s", name)
		}
		smci := vk.ShaderModuleCreateInfo{
			SType:    vk.StructureTypeShaderModuleCreateInfo,
			CodeSize: uint(len(code)),
			PCode:    core.SliceUint32(code),
		}
		var module vk.ShaderModule
		if err := vk.Error(vk.CreateShaderModule(v.device, &smci, nil, &module)); err != nil {
			return nil, errors.Wrap(err, "vk.CreateShaderModule()")
		}
		return module, nil
	}

	vertex, err := load(v.configuration.VertexShader)
	if err != nil {
		return err
	}
	v.vertexShader = vertex

	fragment, err := load(v.configuration.FragmentShader)
	if err != nil {
		return err
	}
	v.fragmentShader = fragment
	return nil
}

func (v *VulkanRenderer) createPipeline() error {
	plci := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(v.device, &plci, nil, &layout)); err != nil {
		return errors.Wrap(err, "vk.CreatePipelineLayout()")
	}
	v.pipelineLayout = layout

	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	var cache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(v.device, &pcci, nil, &cache)); err != nil {
		return errors.Wrap(err, "vk.CreatePipelineCache()")
	}
	v.pipelineCache = cache

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: v.vertexShader,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: v.fragmentShader,
			PName:  "main\x00",
		},
	}

	bindings := model.VertexBindingDescriptions()
	attributes := model.VertexAttributeDescriptions()

	// Viewport and scissor are dynamic so the pipeline survives swap
	// chain recreation.
	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(vk.CullModeNone),
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1.0,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: vk.ColorComponentFlags(
					vk.ColorComponentRBit | vk.ColorComponentGBit |
						vk.ColorComponentBBit | vk.ColorComponentABit),
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateViewport,
				vk.DynamicStateScissor,
			},
		},
		Layout:     v.pipelineLayout,
		RenderPass: v.renderPass,
	}}

	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateGraphicsPipelines(v.device, v.pipelineCache, 1, gpci, nil, pipelines)); err != nil {
		return errors.Wrap(err, "vk.CreateGraphicsPipelines()")
	}
	v.pipeline = pipelines[0]
	return nil
}

func (v *VulkanRenderer) createVertexBuffer() error {
	vertices := model.Triangle()
	v.vertexCount = uint32(len(vertices))
	size := vk.DeviceSize(int(unsafe.Sizeof(model.Vertex{})) * len(vertices))

	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(v.device, &bci, nil, &buffer)); err != nil {
		return errors.Wrap(err, "vk.CreateBuffer()")
	}
	v.vertexBuffer = buffer

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(v.device, buffer, &requirements)
	requirements.Deref()

	memoryType, err := v.findMemoryType(requirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(v.device, &mai, nil, &memory)); err != nil {
		return errors.Wrap(err, "vk.AllocateMemory()")
	}
	v.vertexMemory = memory

	if err := vk.Error(vk.BindBufferMemory(v.device, buffer, memory, 0)); err != nil {
		return errors.Wrap(err, "vk.BindBufferMemory()")
	}

	var data unsafe.Pointer
	if err := vk.Error(vk.MapMemory(v.device, memory, 0, size, 0, &data)); err != nil {
		return errors.Wrap(err, "vk.MapMemory()")
	}
	raw := (*[1 << 24]byte)(unsafe.Pointer(&vertices[0]))[:int(size):int(size)]
	vk.Memcopy(data, raw)
	vk.UnmapMemory(v.device, memory)
	return nil
}

func (v *VulkanRenderer) findMemoryType(typeBits uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(v.physicalDevice, &memoryProperties)
	memoryProperties.Deref()
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if typeBits&(1<<i) != 0 && memoryProperties.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, errors.New("no suitable memory type on device")
}

func (v *VulkanRenderer) createFramebuffers() error {
	extent := v.chain.Extent()
	buffers := v.chain.Buffers()
	v.framebuffers = make([]vk.Framebuffer, len(buffers))
	for i, buf := range buffers {
		fbci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      v.renderPass,
			AttachmentCount: 1,
			PAttachments:    []vk.ImageView{buf.View.(vk.ImageView)},
			Width:           extent.Width,
			Height:          extent.Height,
			Layers:          1,
		}
		if err := vk.Error(vk.CreateFramebuffer(v.device, &fbci, nil, &v.framebuffers[i])); err != nil {
			return errors.Wrap(err, "vk.CreateFramebuffer()")
		}
	}
	return nil
}

func (v *VulkanRenderer) allocateCommandBuffers() error {
	count := v.configuration.FramesInFlight
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        v.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	v.commandBuffers = make([]vk.CommandBuffer, count)
	if err := vk.Error(vk.AllocateCommandBuffers(v.device, &cbai, v.commandBuffers)); err != nil {
		return errors.Wrap(err, "vk.AllocateCommandBuffers()")
	}
	return nil
}

// RecordFrame re-records the slot's command buffer against the swap
// chain image at imageIndex. The slot fence guarantees the buffer is
// no longer in flight, the pool's reset flag allows the implicit
// reset on begin.
func (v *VulkanRenderer) RecordFrame(slot int, imageIndex uint32) (core.CommandBufferHandle, error) {
	buffer := v.commandBuffers[slot]
	extent := v.chain.Extent()

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if err := vk.Error(vk.BeginCommandBuffer(buffer, &cbbi)); err != nil {
		return nil, errors.Wrap(err, "vk.BeginCommandBuffer()")
	}

	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetColor(v.configuration.ClearColor[:])

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  v.renderPass,
		Framebuffer: v.framebuffers[imageIndex],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: 1,
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(buffer, &rpbi, vk.SubpassContentsInline)
	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipeline)
	vk.CmdSetViewport(buffer, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(buffer, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}})
	vk.CmdBindVertexBuffers(buffer, 0, 1, []vk.Buffer{v.vertexBuffer}, []vk.DeviceSize{0})
	vk.CmdDraw(buffer, v.vertexCount, 1, 0, 0)
	vk.CmdEndRenderPass(buffer)

	if err := vk.Error(vk.EndCommandBuffer(buffer)); err != nil {
		return nil, errors.Wrap(err, "vk.EndCommandBuffer()")
	}
	return buffer, nil
}

// Recreate rebuilds the framebuffers over the recreated swap chain.
// The pipeline survives, viewport and scissor are dynamic. The caller
// must have the device idle.
func (v *VulkanRenderer) Recreate() error {
	for _, fb := range v.framebuffers {
		vk.DestroyFramebuffer(v.device, fb, nil)
	}
	v.framebuffers = nil
	return v.createFramebuffers()
}

// Destroy implements interface
func (v *VulkanRenderer) Destroy() {
	if len(v.commandBuffers) > 0 {
		vk.FreeCommandBuffers(v.device, v.commandPool, uint32(len(v.commandBuffers)), v.commandBuffers)
		v.commandBuffers = nil
	}
	for _, fb := range v.framebuffers {
		vk.DestroyFramebuffer(v.device, fb, nil)
	}
	v.framebuffers = nil

	vk.DestroyPipeline(v.device, v.pipeline, nil)
	vk.DestroyPipelineCache(v.device, v.pipelineCache, nil)
	vk.DestroyPipelineLayout(v.device, v.pipelineLayout, nil)
	vk.DestroyRenderPass(v.device, v.renderPass, nil)

	vk.DestroyShaderModule(v.device, v.vertexShader, nil)
	vk.DestroyShaderModule(v.device, v.fragmentShader, nil)

	vk.DestroyBuffer(v.device, v.vertexBuffer, nil)
	vk.FreeMemory(v.device, v.vertexMemory, nil)
}
