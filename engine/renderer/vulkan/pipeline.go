package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline. Every pipeline uses the shared pipeline layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	Desc   metadata.PipelineDesc
}

// vertexAttributes describes the vertex layouts in binding 0. Locations match the shader inputs.
func vertexAttributes(layout metadata.VertexLayout) []vk.VertexInputAttributeDescription {
	switch layout {
	case metadata.LAYOUT_DRAW_VERT:
		return []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR16g16Sfloat, Offset: 12},
			{Location: 2, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 16},
			{Location: 3, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 20},
			{Location: 4, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 24},
			{Location: 5, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 28},
		}
	case metadata.LAYOUT_DRAW_SHADOW_VERT:
		return []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: 0},
		}
	case metadata.LAYOUT_DRAW_SHADOW_VERT_SKINNED:
		return []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 16},
			{Location: 2, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 20},
		}
	}
	return nil
}

/**
 * @brief Builds a graphics pipeline for the program and state word in desc.
 * Viewport, scissor, depth bounds and depth bias are dynamic.
 */
func (d *Driver) CreatePipeline(desc metadata.PipelineDesc) (metadata.Pipeline, error) {
	attributes := vertexAttributes(desc.Layout)
	if attributes == nil {
		return nil, fmt.Errorf("CreatePipeline: program '%s' has no vertex layout", desc.Program)
	}
	stages, err := d.shaderStages(desc.Program)
	if err != nil {
		return nil, err
	}
	stateBits := desc.StateBits
	renderpass := d.context.MainRenderpass

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    uint32(desc.Layout.Stride()),
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	// Viewport and scissor are set per draw.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                cullMode(stateBits),
		FrontFace:               frontFace(stateBits),
		DepthBiasEnable:         vk.False,
	}
	if stateBits&metadata.GLS_POLYMODE_LINE != 0 {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}
	if stateBits&metadata.GLS_POLYGON_OFFSET != 0 {
		rasterizerCreateInfo.DepthBiasEnable = vk.True
	}

	// Multisampling.
	samples := toVkSamples(desc.Samples)
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  samples,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}
	if renderpass != nil && samples != renderpass.Samples {
		core.LogWarn("CreatePipeline: %d samples for a %d sample render pass", samples, renderpass.Samples)
	}
	if d.context.Targets != nil && d.context.Targets.Desc.Supersampling && samples > vk.SampleCount1Bit {
		multisamplingCreateInfo.SampleShadingEnable = vk.True
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   depthCompareOp(stateBits),
		MinDepthBounds:   0.0,
		MaxDepthBounds:   1.0,
	}
	if stateBits&metadata.GLS_DEPTHMASK != 0 {
		depthStencil.DepthWriteEnable = vk.False
	}
	if stateBits&metadata.GLS_DEPTH_TEST_MASK != 0 && d.context.Device.DepthBounds {
		depthStencil.DepthBoundsTestEnable = vk.True
	}
	if stencilTestEnabled(stateBits, desc.StencilFront, desc.StencilBack) {
		depthStencil.StencilTestEnable = vk.True
		depthStencil.Front = stencilFace(stateBits, desc.StencilFront)
		depthStencil.Back = stencilFace(stateBits, desc.StencilBack)
	}

	src, dst, op := blendState(stateBits)
	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.False,
		SrcColorBlendFactor: src,
		DstColorBlendFactor: dst,
		ColorBlendOp:        op,
		SrcAlphaBlendFactor: src,
		DstAlphaBlendFactor: dst,
		AlphaBlendOp:        op,
		ColorWriteMask:      colorWriteMask(stateBits),
	}
	if blendEnabled(src, dst) {
		colorBlendAttachmentState.BlendEnable = vk.True
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
		vk.DynamicStateDepthBias,
	}
	if d.context.Device.DepthBounds {
		dynamicStates = append(dynamicStates, vk.DynamicStateDepthBounds)
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	shaderStages := stages.createInfos()
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              d.context.PipelineLayout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	err = d.locks.SafeCall(PipelineManagement, func() error {
		return vkCheck("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(
			d.context.Device.LogicalDevice,
			vk.PipelineCache(vk.NullHandle),
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			d.context.Allocator,
			pipelines))
	})
	if err != nil {
		return nil, err
	}

	core.LogDebug("Graphics pipeline created for '%s' (state 0x%016x).", desc.Program, stateBits)
	return &VulkanPipeline{Handle: pipelines[0], Desc: desc}, nil
}

func (d *Driver) DestroyPipeline(p metadata.Pipeline) {
	pipeline, ok := p.(*VulkanPipeline)
	if !ok || pipeline.Handle == vk.NullPipeline {
		return
	}
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(d.context.Device.LogicalDevice, pipeline.Handle, d.context.Allocator)
		pipeline.Handle = vk.NullPipeline
		return nil
	})
}

func (d *Driver) BindPipeline(cb metadata.CommandBuffer, p metadata.Pipeline) {
	vcb, err := asCommandBuffer(cb, "BindPipeline")
	if err != nil {
		core.LogError(err.Error())
		return
	}
	pipeline, ok := p.(*VulkanPipeline)
	if !ok {
		core.LogError("BindPipeline: %T is not a vulkan pipeline", p)
		return
	}
	if vcb.pipeline == pipeline {
		return
	}
	vk.CmdBindPipeline(vcb.Handle, vk.PipelineBindPointGraphics, pipeline.Handle)
	vcb.pipeline = pipeline
}
