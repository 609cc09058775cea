package backend

import (
	"cmp"
	"slices"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// State every 2D surface is drawn with on top of its own bits.
const GUI_STATE_BITS = metadata.GLS_DEPTHFUNC_ALWAYS | metadata.GLS_DEPTHMASK | metadata.GLS_CULL_TWOSIDED

// Blending applied to 2D surfaces that bring none of their own.
const GUI_BLEND_BITS = metadata.GLS_SRCBLEND_SRC_ALPHA | metadata.GLS_DSTBLEND_ONE_MINUS_SRC_ALPHA

// Shadow volumes only touch the stencil buffer.
const SHADOW_STATE_BITS = metadata.GLS_DEPTHMASK | metadata.GLS_COLORMASK | metadata.GLS_ALPHAMASK |
	metadata.GLS_CULL_TWOSIDED | metadata.GLS_STENCIL_FUNC_ALWAYS

// Stencil operations of the two shadow volume techniques.
const (
	STENCIL_ZPASS_FRONT = metadata.GLS_STENCIL_OP_FAIL_KEEP | metadata.GLS_STENCIL_OP_ZFAIL_KEEP | metadata.GLS_STENCIL_OP_PASS_INCR
	STENCIL_ZPASS_BACK  = metadata.GLS_STENCIL_OP_FAIL_KEEP | metadata.GLS_STENCIL_OP_ZFAIL_KEEP | metadata.GLS_STENCIL_OP_PASS_DECR

	STENCIL_PRELOAD_FRONT = metadata.GLS_STENCIL_OP_FAIL_KEEP | metadata.GLS_STENCIL_OP_ZFAIL_DECR | metadata.GLS_STENCIL_OP_PASS_DECR
	STENCIL_PRELOAD_BACK  = metadata.GLS_STENCIL_OP_FAIL_KEEP | metadata.GLS_STENCIL_OP_ZFAIL_INCR | metadata.GLS_STENCIL_OP_PASS_INCR
)

/**
 * @brief Draws every surface of a view. Surfaces are submitted in sort order;
 * the ones that cannot be drawn are dropped with a warning.
 */
func (b *Backend) DrawView(cmd *metadata.RenderCommand) {
	view := cmd.ViewDef
	if view == nil {
		return
	}
	b.viewDef = view
	defer func() { b.viewDef = nil }()

	b.pc.Surfaces.Add(int64(len(view.DrawSurfs)))

	vp := view.Viewport
	b.Viewport(vp.X1, vp.Y1, vp.X2-vp.X1, vp.Y2-vp.Y1)
	b.currentScissor = view.Scissor
	b.setScissor(view.Scissor)

	if !view.Is2DGui {
		b.Clear(false, true, true, STENCIL_SHADOW_TEST_VALUE, 0, 0, 0, 0)
	}

	slices.SortStableFunc(view.DrawSurfs, func(a, c *metadata.DrawSurface) int {
		return cmp.Compare(a.Sort, c.Sort)
	})

	program := -1
	for _, surf := range view.DrawSurfs {
		if surf.Material == nil {
			b.dropDraw("null-material", "DrawView: surface without material")
			continue
		}
		if surf.Space == nil {
			b.dropDraw("null-space", "DrawView: surface of '%s' without space", surf.Material.Name())
			continue
		}
		if surf.ScissorRect != b.currentScissor {
			b.currentScissor = surf.ScissorRect
			b.setScissor(surf.ScissorRect)
		}

		if surf.ShadowCache.IsValid() {
			shadow := metadata.BUILTIN_SHADOW
			if surf.JointCache.IsValid() {
				shadow = metadata.BUILTIN_SHADOW_SKINNED
			}
			program = b.bindProgram(int(shadow), program)
			b.progs.SetMVP(surf.Space.Mvp)
			b.GLState(SHADOW_STATE_BITS | surf.ExtraGLState)
			b.DrawStencilShadowPass(surf, !surf.RenderZFail)
			continue
		}

		program = b.bindProgram(int(surf.Material.Program()), program)
		b.progs.SetMVP(surf.Space.Mvp)
		b.progs.SetRenderParm(metadata.RENDERPARM_COLOR, surfaceColor(surf.ShaderRegisters))

		stateBits := surf.ExtraGLState
		if view.Is2DGui {
			if stateBits&(metadata.GLS_SRCBLEND_BITS|metadata.GLS_DSTBLEND_BITS) == 0 {
				stateBits |= GUI_BLEND_BITS
			}
			stateBits |= GUI_STATE_BITS
		}
		b.GLState(stateBits)
		b.DrawElementsWithCounters(surf)
	}
}

func (b *Backend) bindProgram(program, current int) int {
	if program != current {
		b.progs.BindProgram(program)
		b.pc.Shaders.Add(1)
	}
	return program
}

// surfaceColor reads the first four registers as the surface color, white when absent.
func surfaceColor(regs []float32) [4]float32 {
	if len(regs) < 4 {
		return [4]float32{1, 1, 1, 1}
	}
	return [4]float32{regs[0], regs[1], regs[2], regs[3]}
}

// setScissor places a view-relative rectangle inside the viewport.
func (b *Backend) setScissor(r math.ScreenRect) {
	vp := math.ScreenRect{}
	if b.viewDef != nil {
		vp = b.viewDef.Viewport
	}
	b.Scissor(vp.X1+r.X1, vp.Y1+r.Y1, r.X2-r.X1, r.Y2-r.Y1)
}

/**
 * @brief Copies the requested region of the frame into the command's image.
 */
func (b *Backend) CopyRender(cmd *metadata.RenderCommand) {
	if cmd.Image == nil {
		return
	}
	b.CopyFrameBuffer(cmd.Image, cmd.X, cmd.Y, cmd.ImageWidth, cmd.ImageHeight)
	if cmd.ClearColorAfterCopy {
		b.Clear(true, false, false, STENCIL_SHADOW_TEST_VALUE, 0, 0, 0, 0)
	}
}

func (b *Backend) dropDraw(site, msg string, args ...interface{}) {
	b.pc.DroppedDraws.Add(1)
	b.warnings.Warn(b.counter, site, msg, args...)
}

/**
 * @brief Checks the joint binding against the bound program. False means the
 * draw must be skipped.
 */
func (b *Backend) jointsMatch(surf *metadata.DrawSurface, desc metadata.ProgramDesc) bool {
	if surf.JointCache.IsValid() {
		if !desc.UsesJoints {
			if b.opts.Debug {
				core.LogDebug("'%s' got joints but is not skinned", desc.Name)
			}
			return false
		}
	} else if desc.UsesJoints && !desc.OptionalSkinning {
		if b.opts.Debug {
			core.LogDebug("'%s' is skinned but got no joints", desc.Name)
		}
		return false
	}
	return true
}

// commit binds the pipeline for the current state and uploads the render parms.
func (b *Backend) commit(cb metadata.CommandBuffer, site string) bool {
	pipeline, err := b.progs.GetPipeline(b.glStateBits,
		b.stencilOperations[metadata.STENCIL_FACE_FRONT],
		b.stencilOperations[metadata.STENCIL_FACE_BACK])
	if err != nil {
		b.dropDraw(site+"-pipeline", "%s: %s", site, err)
		return false
	}
	b.driver.BindPipeline(cb, pipeline)
	if err := b.progs.CommitUniforms(cb, b.currentFrameData); err != nil {
		b.dropDraw(site+"-uniforms", "%s: %s", site, err)
		return false
	}
	return true
}

func (b *Backend) bindJoints(cb metadata.CommandBuffer, surf *metadata.DrawSurface, site string) bool {
	if !surf.JointCache.IsValid() {
		return true
	}
	jb, offset, err := b.cache.ResolveJoint(surf.JointCache)
	if err != nil {
		b.dropDraw(site+"-joints", "%s: %s", site, err)
		return false
	}
	b.driver.BindUniformBuffer(cb, metadata.BINDING_JOINTS, jb.Native(), jb.Offset()+offset, surf.JointCache.Size())
	return true
}

/**
 * @brief Binds the surface's buffers and the pipeline for the current state
 * and issues one indexed draw. Stale handles drop the draw.
 */
func (b *Backend) DrawElementsWithCounters(surf *metadata.DrawSurface) {
	const site = "DrawElementsWithCounters"
	cb, ok := b.commandBuffer(site)
	if !ok {
		return
	}

	vb, vertOffset, err := b.cache.ResolveVertex(surf.AmbientCache)
	if err != nil {
		b.dropDraw("stale-vertex", "%s: vertex buffer: %s", site, err)
		return
	}
	ib, indexOffset, err := b.cache.ResolveIndex(surf.IndexCache)
	if err != nil {
		b.dropDraw("stale-index", "%s: index buffer: %s", site, err)
		return
	}

	desc, ok := b.progs.CurrentDesc()
	if !ok {
		b.dropDraw("no-program", "%s: no program bound", site)
		return
	}
	if !b.jointsMatch(surf, desc) {
		return
	}

	if !b.commit(cb, site) || !b.bindJoints(cb, surf, site) {
		return
	}

	b.driver.BindIndexBuffer(cb, ib.Native(), ib.Offset())
	// vertex allocations are only 16 byte aligned, so the binding carries the offset
	b.driver.BindVertexBuffer(cb, vb.Native(), vb.Offset()+vertOffset)
	b.driver.DrawIndexed(cb, surf.NumIndexes, 1, indexOffset>>1, 0, 0)

	b.pc.DrawElements.Add(1)
	b.pc.DrawIndexes.Add(int64(surf.NumIndexes))
}

/**
 * @brief Draws a shadow volume into the stencil buffer. renderZPass selects
 * the Z-pass operations; otherwise the Z-fail operations already set stay in
 * effect, or with stencil preload the volume is drawn twice.
 */
func (b *Backend) DrawStencilShadowPass(surf *metadata.DrawSurface, renderZPass bool) {
	const site = "DrawStencilShadowPass"
	cb, ok := b.commandBuffer(site)
	if !ok {
		return
	}

	if renderZPass {
		b.SeparateStencil(metadata.STENCIL_FACE_FRONT, STENCIL_ZPASS_FRONT)
		b.SeparateStencil(metadata.STENCIL_FACE_BACK, STENCIL_ZPASS_BACK)
	} else if b.opts.UseStencilShadowPreload {
		b.SeparateStencil(metadata.STENCIL_FACE_FRONT, STENCIL_PRELOAD_FRONT)
		b.SeparateStencil(metadata.STENCIL_FACE_BACK, STENCIL_PRELOAD_BACK)
	}

	vb, vertOffset, err := b.cache.ResolveVertex(surf.ShadowCache)
	if err != nil {
		b.dropDraw("stale-shadow-vertex", "%s: vertex buffer: %s", site, err)
		return
	}
	ib, indexOffset, err := b.cache.ResolveIndex(surf.IndexCache)
	if err != nil {
		b.dropDraw("stale-shadow-index", "%s: index buffer: %s", site, err)
		return
	}

	desc, ok := b.progs.CurrentDesc()
	if !ok {
		b.dropDraw("no-program", "%s: no program bound", site)
		return
	}
	if !b.jointsMatch(surf, desc) {
		return
	}
	if !b.commit(cb, site) || !b.bindJoints(cb, surf, site) {
		return
	}

	b.driver.BindIndexBuffer(cb, ib.Native(), ib.Offset())
	b.driver.BindVertexBuffer(cb, vb.Native(), vb.Offset()+vertOffset)

	b.driver.DrawIndexed(cb, surf.NumIndexes, 1, indexOffset>>1, 0, 0)
	b.pc.ShadowElements.Add(1)
	b.pc.ShadowIndexes.Add(int64(surf.NumIndexes))

	if !renderZPass && b.opts.UseStencilShadowPreload {
		// render again with Z-pass
		b.SeparateStencil(metadata.STENCIL_FACE_FRONT, STENCIL_ZPASS_FRONT)
		b.SeparateStencil(metadata.STENCIL_FACE_BACK, STENCIL_ZPASS_BACK)
		if !b.commit(cb, site) {
			return
		}
		b.driver.DrawIndexed(cb, surf.NumIndexes, 1, indexOffset>>1, 0, 0)
		b.pc.ShadowElements.Add(1)
		b.pc.ShadowIndexes.Add(int64(surf.NumIndexes))
	}
}
