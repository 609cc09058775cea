package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

var formats = map[metadata.Format]vk.Format{
	metadata.FORMAT_UNDEFINED:          vk.FormatUndefined,
	metadata.FORMAT_B8G8R8A8_UNORM:     vk.FormatB8g8r8a8Unorm,
	metadata.FORMAT_B8G8R8A8_SRGB:      vk.FormatB8g8r8a8Srgb,
	metadata.FORMAT_R8G8B8A8_UNORM:     vk.FormatR8g8b8a8Unorm,
	metadata.FORMAT_D32_SFLOAT_S8_UINT: vk.FormatD32SfloatS8Uint,
	metadata.FORMAT_D24_UNORM_S8_UINT:  vk.FormatD24UnormS8Uint,
}

func toVkFormat(f metadata.Format) vk.Format {
	if vf, ok := formats[f]; ok {
		return vf
	}
	return vk.FormatUndefined
}

func fromVkFormat(vf vk.Format) metadata.Format {
	for f, v := range formats {
		if v == vf {
			return f
		}
	}
	return metadata.FORMAT_UNDEFINED
}

func fromVkColorSpace(cs vk.ColorSpace) metadata.ColorSpace {
	if cs == vk.ColorSpaceSrgbNonlinear {
		return metadata.COLOR_SPACE_SRGB_NONLINEAR
	}
	return metadata.COLOR_SPACE_EXTENDED_SRGB_LINEAR
}

func toVkColorSpace(cs metadata.ColorSpace) vk.ColorSpace {
	if cs == metadata.COLOR_SPACE_SRGB_NONLINEAR {
		return vk.ColorSpaceSrgbNonlinear
	}
	return vk.ColorSpaceExtendedSrgbLinear
}

var presentModes = map[metadata.PresentMode]vk.PresentMode{
	metadata.PRESENT_MODE_IMMEDIATE:    vk.PresentModeImmediate,
	metadata.PRESENT_MODE_MAILBOX:      vk.PresentModeMailbox,
	metadata.PRESENT_MODE_FIFO:         vk.PresentModeFifo,
	metadata.PRESENT_MODE_FIFO_RELAXED: vk.PresentModeFifoRelaxed,
}

func toVkPresentMode(m metadata.PresentMode) vk.PresentMode {
	if vm, ok := presentModes[m]; ok {
		return vm
	}
	return vk.PresentModeFifo
}

// fromVkPresentMode reports false for modes the backend does not know.
func fromVkPresentMode(vm vk.PresentMode) (metadata.PresentMode, bool) {
	for m, v := range presentModes {
		if v == vm {
			return m, true
		}
	}
	return 0, false
}

// The sample count bits share their values with VkSampleCountFlagBits.
func toVkSamples(s metadata.SampleCount) vk.SampleCountFlagBits {
	if s == 0 {
		return vk.SampleCount1Bit
	}
	return vk.SampleCountFlagBits(s)
}

func deviceTypeName(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}

var blendFactors = [8]vk.BlendFactor{
	vk.BlendFactorOne,
	vk.BlendFactorZero,
	vk.BlendFactorDstColor,
	vk.BlendFactorOneMinusDstColor,
	vk.BlendFactorSrcAlpha,
	vk.BlendFactorOneMinusSrcAlpha,
	vk.BlendFactorDstAlpha,
	vk.BlendFactorOneMinusDstAlpha,
}

var dstBlendFactors = [8]vk.BlendFactor{
	vk.BlendFactorZero,
	vk.BlendFactorOne,
	vk.BlendFactorSrcColor,
	vk.BlendFactorOneMinusSrcColor,
	vk.BlendFactorSrcAlpha,
	vk.BlendFactorOneMinusSrcAlpha,
	vk.BlendFactorDstAlpha,
	vk.BlendFactorOneMinusDstAlpha,
}

// blendState decodes the blend factors and operation of a state word.
func blendState(stateBits uint64) (src, dst vk.BlendFactor, op vk.BlendOp) {
	src = blendFactors[stateBits&metadata.GLS_SRCBLEND_BITS]
	dst = dstBlendFactors[(stateBits&metadata.GLS_DSTBLEND_BITS)>>3]
	switch stateBits & metadata.GLS_BLENDOP_BITS {
	case metadata.GLS_BLENDOP_SUB:
		op = vk.BlendOpSubtract
	case metadata.GLS_BLENDOP_MIN:
		op = vk.BlendOpMin
	case metadata.GLS_BLENDOP_MAX:
		op = vk.BlendOpMax
	default:
		op = vk.BlendOpAdd
	}
	return src, dst, op
}

func blendEnabled(src, dst vk.BlendFactor) bool {
	return src != vk.BlendFactorOne || dst != vk.BlendFactorZero
}

func colorWriteMask(stateBits uint64) vk.ColorComponentFlags {
	var mask vk.ColorComponentFlags
	if stateBits&metadata.GLS_REDMASK == 0 {
		mask |= vk.ColorComponentFlags(vk.ColorComponentRBit)
	}
	if stateBits&metadata.GLS_GREENMASK == 0 {
		mask |= vk.ColorComponentFlags(vk.ColorComponentGBit)
	}
	if stateBits&metadata.GLS_BLUEMASK == 0 {
		mask |= vk.ColorComponentFlags(vk.ColorComponentBBit)
	}
	if stateBits&metadata.GLS_ALPHAMASK == 0 {
		mask |= vk.ColorComponentFlags(vk.ColorComponentABit)
	}
	return mask
}

func depthCompareOp(stateBits uint64) vk.CompareOp {
	switch stateBits & metadata.GLS_DEPTHFUNC_BITS {
	case metadata.GLS_DEPTHFUNC_ALWAYS:
		return vk.CompareOpAlways
	case metadata.GLS_DEPTHFUNC_GREATER:
		return vk.CompareOpGreaterOrEqual
	case metadata.GLS_DEPTHFUNC_EQUAL:
		return vk.CompareOpEqual
	}
	return vk.CompareOpLessOrEqual
}

// cullMode resolves the cull bits against the view's winding. Mirror views flip the culled face.
func cullMode(stateBits uint64) vk.CullModeFlags {
	switch stateBits & metadata.GLS_CULL_BITS {
	case metadata.GLS_CULL_TWOSIDED:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.GLS_CULL_BACKSIDED:
		if stateBits&metadata.GLS_MIRROR_VIEW != 0 {
			return vk.CullModeFlags(vk.CullModeFrontBit)
		}
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	if stateBits&metadata.GLS_MIRROR_VIEW != 0 {
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
	return vk.CullModeFlags(vk.CullModeFrontBit)
}

func frontFace(stateBits uint64) vk.FrontFace {
	if stateBits&metadata.GLS_CLOCKWISE != 0 {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

var stencilCompareOps = [8]vk.CompareOp{
	vk.CompareOpAlways,
	vk.CompareOpLess,
	vk.CompareOpLessOrEqual,
	vk.CompareOpGreater,
	vk.CompareOpGreaterOrEqual,
	vk.CompareOpEqual,
	vk.CompareOpNotEqual,
	vk.CompareOpNever,
}

var stencilOps = [8]vk.StencilOp{
	vk.StencilOpKeep,
	vk.StencilOpZero,
	vk.StencilOpReplace,
	vk.StencilOpIncrementAndClamp,
	vk.StencilOpDecrementAndClamp,
	vk.StencilOpInvert,
	vk.StencilOpIncrementAndWrap,
	vk.StencilOpDecrementAndWrap,
}

// stencilTestEnabled reports whether the state word or a per-face op needs the stencil test.
func stencilTestEnabled(stateBits, front, back uint64) bool {
	return stateBits&(metadata.GLS_STENCIL_FUNC_BITS|metadata.GLS_STENCIL_OP_BITS) != 0 || front != 0 || back != 0
}

// stencilFace builds one face. A zero per-face word falls back to the ops of the state word.
func stencilFace(stateBits, faceOps uint64) vk.StencilOpState {
	ops := faceOps
	if ops == 0 {
		ops = stateBits
	}
	fail, zfail, pass := metadata.StencilOps(ops)
	ref := uint32((stateBits & metadata.GLS_STENCIL_FUNC_REF_BITS) >> metadata.GLS_STENCIL_FUNC_REF_SHIFT)
	mask := uint32((stateBits & metadata.GLS_STENCIL_FUNC_MASK_BITS) >> metadata.GLS_STENCIL_FUNC_MASK_SHIFT)
	return vk.StencilOpState{
		FailOp:      stencilOps[fail],
		PassOp:      stencilOps[pass],
		DepthFailOp: stencilOps[zfail],
		CompareOp:   stencilCompareOps[(stateBits&metadata.GLS_STENCIL_FUNC_BITS)>>36],
		CompareMask: mask,
		WriteMask:   0xFF,
		Reference:   ref,
	}
}
