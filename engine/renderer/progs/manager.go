package progs

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/math"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/buffer"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

// Uniform blocks one frame slot can commit before draws start failing.
const DEFAULT_MAX_COMMITS_PER_FRAME = 4096

type pipelineKey struct {
	program      int
	stateBits    uint64
	stencilFront uint64
	stencilBack  uint64
	generation   uint64
}

type renderProg struct {
	id   uuid.UUID
	desc metadata.ProgramDesc
}

/**
 * @brief Resolves the bound program plus GL state bits to a native pipeline
 * and uploads the global render parms for each draw.
 */
type Manager struct {
	driver metadata.Driver

	programs []renderProg
	current  int

	pipelines  map[pipelineKey]metadata.Pipeline
	generation uint64
	samples    metadata.SampleCount

	renderParms [metadata.RENDERPARM_TOTAL]math.Vec4

	// One uniform buffer per frame slot, bump allocated per commit.
	parmBuffers  []*buffer.UniformBuffer
	parmOffsets  []int
	blockSize    int
	maxCommits   int
	frameSlot    int
	warnings     *core.FrameWarnings
	frameCounter uint64
}

func NewManager(driver metadata.Driver, frameData, uniformAlignment int) *Manager {
	if uniformAlignment <= 0 {
		uniformAlignment = core.DEFAULT_BUFFER_ALIGNMENT
	}
	return &Manager{
		driver:      driver,
		current:     -1,
		pipelines:   make(map[pipelineKey]metadata.Pipeline),
		samples:     metadata.SAMPLE_COUNT_1,
		parmBuffers: make([]*buffer.UniformBuffer, frameData),
		parmOffsets: make([]int, frameData),
		blockSize:   math.Align(metadata.RENDERPARM_BLOCK_SIZE, uniformAlignment),
		maxCommits:  DEFAULT_MAX_COMMITS_PER_FRAME,
		warnings:    core.NewFrameWarnings(),
	}
}

/**
 * @brief Registers the builtin programs and allocates the per-slot parm buffers.
 */
func (m *Manager) Init(builtins []metadata.ProgramDesc, samples metadata.SampleCount) error {
	core.LogInfo("----- Initializing Render Shaders -----")
	m.samples = samples
	for _, desc := range builtins {
		m.FindProgram(desc.Name, desc.Layout, desc.UsesJoints, desc.OptionalSkinning)
	}
	for i := range m.parmBuffers {
		ub := buffer.NewUniformBuffer(m.driver)
		if err := ub.AllocBufferObject(nil, m.blockSize*m.maxCommits, metadata.BU_DYNAMIC); err != nil {
			err = fmt.Errorf("render parm buffer %d: %w", i, err)
			core.LogError(err.Error())
			m.Shutdown()
			return err
		}
		m.parmBuffers[i] = ub
	}
	m.current = -1
	return nil
}

func (m *Manager) Shutdown() {
	m.destroyPipelines()
	for i, ub := range m.parmBuffers {
		if ub != nil {
			ub.FreeBufferObject()
			m.parmBuffers[i] = nil
		}
	}
	for _, p := range m.programs {
		_ = core.IdentifierReleaseID(p.id)
	}
	m.programs = nil
	m.current = -1
}

/**
 * @brief Returns the index of the named program, registering it on first use.
 */
func (m *Manager) FindProgram(name string, layout metadata.VertexLayout, usesJoints, optionalSkinning bool) int {
	for i := range m.programs {
		if m.programs[i].desc.Name == name {
			return i
		}
	}
	m.programs = append(m.programs, renderProg{
		id: core.IdentifierAquireNewID("renderprog:" + name),
		desc: metadata.ProgramDesc{
			Name:             name,
			Layout:           layout,
			UsesJoints:       usesJoints,
			OptionalSkinning: optionalSkinning,
		},
	})
	core.LogDebug("registered render program '%s' (%d)", name, len(m.programs)-1)
	return len(m.programs) - 1
}

// BindProgram selects the program used by the next draws. -1 unbinds.
func (m *Manager) BindProgram(index int) {
	if index >= len(m.programs) {
		core.LogError("BindProgram: program %d out of range", index)
		index = -1
	}
	m.current = index
}

func (m *Manager) Current() int {
	return m.current
}

// CurrentDesc describes the bound program. ok is false when nothing is bound.
func (m *Manager) CurrentDesc() (metadata.ProgramDesc, bool) {
	if m.current < 0 {
		return metadata.ProgramDesc{}, false
	}
	return m.programs[m.current].desc, true
}

func (m *Manager) NumPrograms() int {
	return len(m.programs)
}

func (m *Manager) SetRenderParm(rp metadata.RenderParm, value [4]float32) {
	m.renderParms[rp] = math.Vec4{X: value[0], Y: value[1], Z: value[2], W: value[3]}
}

// SetRenderParms writes consecutive vec4 slots starting at rp.
func (m *Manager) SetRenderParms(rp metadata.RenderParm, values []float32) {
	for i := 0; i+3 < len(values) && int(rp)+i/4 < int(metadata.RENDERPARM_TOTAL); i += 4 {
		m.renderParms[int(rp)+i/4] = math.Vec4{X: values[i], Y: values[i+1], Z: values[i+2], W: values[i+3]}
	}
}

func (m *Manager) RenderParm(rp metadata.RenderParm) math.Vec4 {
	return m.renderParms[rp]
}

// SetMVP loads the rows of a column-major matrix into the MVP parms.
func (m *Manager) SetMVP(mvp math.Mat4) {
	t := mvp.Transposed()
	m.SetRenderParms(metadata.RENDERPARM_MVPMATRIX_X, t.Data[:])
}

/**
 * @brief Returns the pipeline for the bound program and the given state,
 * creating it on first use. Pipelines built for an older render pass are
 * never returned.
 */
func (m *Manager) GetPipeline(stateBits, stencilFront, stencilBack uint64) (metadata.Pipeline, error) {
	if m.current < 0 {
		return nil, fmt.Errorf("GetPipeline: no program bound")
	}
	key := pipelineKey{
		program:      m.current,
		stateBits:    stateBits,
		stencilFront: stencilFront,
		stencilBack:  stencilBack,
		generation:   m.generation,
	}
	if p, ok := m.pipelines[key]; ok {
		return p, nil
	}

	desc := m.programs[m.current].desc
	p, err := m.driver.CreatePipeline(metadata.PipelineDesc{
		Program:      desc.Name,
		Layout:       desc.Layout,
		UsesJoints:   desc.UsesJoints,
		StateBits:    stateBits,
		StencilFront: stencilFront,
		StencilBack:  stencilBack,
		Samples:      m.samples,
	})
	if err != nil {
		err = fmt.Errorf("failed to create pipeline for '%s' state 0x%x: %w", desc.Name, stateBits, err)
		core.LogError(err.Error())
		return nil, err
	}
	m.pipelines[key] = p
	core.LogDebug("created pipeline for '%s' state 0x%x (%d cached)", desc.Name, stateBits, len(m.pipelines))
	return p, nil
}

func (m *Manager) NumPipelines() int {
	return len(m.pipelines)
}

/**
 * @brief Drops every cached pipeline after the render pass was recreated.
 */
func (m *Manager) InvalidatePipelines(samples metadata.SampleCount) {
	m.destroyPipelines()
	m.samples = samples
	m.generation++
}

func (m *Manager) destroyPipelines() {
	for k, p := range m.pipelines {
		m.driver.DestroyPipeline(p)
		delete(m.pipelines, k)
	}
}

/**
 * @brief Starts a new frame on slot, recycling that slot's parm buffer.
 * The caller guarantees the GPU finished reading it.
 */
func (m *Manager) StartFrame(slot int) {
	m.frameSlot = slot
	m.parmOffsets[slot] = 0
	m.frameCounter++
}

/**
 * @brief Copies the render parms into the slot's parm buffer and binds them
 * for the next draw.
 */
func (m *Manager) CommitUniforms(cb metadata.CommandBuffer, slot int) error {
	ub := m.parmBuffers[slot]
	if ub == nil {
		return fmt.Errorf("CommitUniforms: %w", core.ErrNotInitialized)
	}
	offset := m.parmOffsets[slot]
	if offset+m.blockSize > ub.Size() {
		m.warnings.Warn(m.frameCounter, "render-parms", "out of render parm memory after %d commits", m.maxCommits)
		return fmt.Errorf("CommitUniforms: %w", core.ErrOverrun)
	}
	if err := ub.Update(metadata.AsBytes(m.renderParms[:]), offset); err != nil {
		return err
	}
	m.driver.BindUniformBuffer(cb, metadata.BINDING_RENDERPARMS, ub.Native(), ub.Offset()+offset, metadata.RENDERPARM_BLOCK_SIZE)
	m.parmOffsets[slot] = offset + m.blockSize
	return nil
}

func (m *Manager) FrameSlot() int {
	return m.frameSlot
}
