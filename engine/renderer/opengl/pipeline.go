package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief A linked program plus the fixed function state of one state word.
 * Binding it replays the state onto the context.
 */
type Pipeline struct {
	Desc       metadata.PipelineDesc
	program    *program
	attributes []vertexAttribute
	stride     int32
}

func (d *Driver) CreatePipeline(desc metadata.PipelineDesc) (metadata.Pipeline, error) {
	if d.renderPass == nil {
		return nil, fmt.Errorf("CreatePipeline: program '%s' without render pass", desc.Program)
	}
	attributes := vertexAttributes(desc.Layout)
	if attributes == nil {
		return nil, fmt.Errorf("CreatePipeline: program '%s' has no vertex layout", desc.Program)
	}
	p, err := d.loadProgram(desc.Program)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Desc:       desc,
		program:    p,
		attributes: attributes,
		stride:     int32(desc.Layout.Stride()),
	}, nil
}

// Programs are shared between pipelines and released with the device.
func (d *Driver) DestroyPipeline(p metadata.Pipeline) {
	if gp, ok := p.(*Pipeline); ok {
		gp.program = nil
	}
}

func (d *Driver) BindPipeline(cb metadata.CommandBuffer, p metadata.Pipeline) {
	gcb := recording(cb, "BindPipeline")
	if gcb == nil {
		return
	}
	gp, ok := p.(*Pipeline)
	if !ok || gp.program == nil {
		core.LogError("BindPipeline: %T is not a live opengl pipeline", p)
		return
	}
	gcb.record(func() {
		if d.replay.pipeline == gp {
			return
		}
		gl.UseProgram(gp.program.handle)
		applyState(gp.Desc)
		if d.replay.pipeline == nil || d.replay.pipeline.Desc.Layout != gp.Desc.Layout {
			d.replay.attribsDirty = true
		}
		d.replay.pipeline = gp
	})
}

func applyState(desc metadata.PipelineDesc) {
	stateBits := desc.StateBits

	src, dst, op := blendState(stateBits)
	if src == gl.ONE && dst == gl.ZERO {
		gl.Disable(gl.BLEND)
	} else {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(src, dst)
		gl.BlendEquation(op)
	}

	gl.DepthFunc(depthFunc(stateBits))
	gl.DepthMask(stateBits&metadata.GLS_DEPTHMASK == 0)
	gl.ColorMask(
		stateBits&metadata.GLS_REDMASK == 0,
		stateBits&metadata.GLS_GREENMASK == 0,
		stateBits&metadata.GLS_BLUEMASK == 0,
		stateBits&metadata.GLS_ALPHAMASK == 0)

	face, cull := cullFace(stateBits)
	setEnabled(gl.CULL_FACE, cull)
	if cull {
		gl.CullFace(face)
	}
	gl.FrontFace(frontFace(stateBits))

	setEnabled(gl.POLYGON_OFFSET_FILL, stateBits&metadata.GLS_POLYGON_OFFSET != 0)
	if stateBits&metadata.GLS_POLYMODE_LINE != 0 {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}

	stencil := stencilTestEnabled(stateBits, desc.StencilFront, desc.StencilBack)
	setEnabled(gl.STENCIL_TEST, stencil)
	if stencil {
		for _, f := range []struct {
			face uint32
			ops  uint64
		}{{gl.FRONT, desc.StencilFront}, {gl.BACK, desc.StencilBack}} {
			s := stencilFace(stateBits, f.ops)
			gl.StencilFuncSeparate(f.face, s.fn, s.ref, s.mask)
			gl.StencilOpSeparate(f.face, s.fail, s.zfail, s.pass)
		}
	}
}
