package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief Creates the descriptor set layout and pipeline layout every program
 * shares: set 0 holds the render parm block at binding 0 and the joint
 * matrices at binding 1.
 */
func (d *Driver) createLayouts() error {
	device := d.context.Device.LogicalDevice
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)

	bindings := make([]vk.DescriptorSetLayoutBinding, VULKAN_UNIFORM_BINDING_COUNT)
	for i := range bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      stages,
		}
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var setLayout vk.DescriptorSetLayout
	if err := vkCheck("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(device, &layoutInfo, d.context.Allocator, &setLayout)); err != nil {
		return err
	}
	d.context.DescriptorSetLayout = setLayout

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	var pipelineLayout vk.PipelineLayout
	err := d.locks.SafeCall(PipelineManagement, func() error {
		return vkCheck("vkCreatePipelineLayout", vk.CreatePipelineLayout(device, &pipelineLayoutInfo, d.context.Allocator, &pipelineLayout))
	})
	if err != nil {
		return err
	}
	d.context.PipelineLayout = pipelineLayout
	core.LogDebug("Shared pipeline layout created.")
	return nil
}

func (d *Driver) destroyLayouts() {
	device := d.context.Device.LogicalDevice
	if d.context.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, d.context.PipelineLayout, d.context.Allocator)
		d.context.PipelineLayout = vk.NullPipelineLayout
	}
	if d.context.DescriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, d.context.DescriptorSetLayout, d.context.Allocator)
		d.context.DescriptorSetLayout = vk.NullDescriptorSetLayout
	}
}

func (d *Driver) createDescriptorPool() (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: VULKAN_MAX_DESCRIPTOR_SETS * VULKAN_UNIFORM_BINDING_COUNT,
	}}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       VULKAN_MAX_DESCRIPTOR_SETS,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	err := d.locks.SafeCall(DescriptorManagement, func() error {
		return vkCheck("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.context.Device.LogicalDevice, &poolInfo, d.context.Allocator, &pool))
	})
	return pool, err
}

func (d *Driver) destroyDescriptorPool(pool vk.DescriptorPool) {
	if pool == vk.NullDescriptorPool {
		return
	}
	_ = d.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(d.context.Device.LogicalDevice, pool, d.context.Allocator)
		return nil
	})
}

/**
 * @brief Writes the pending uniform bindings of vcb into a fresh set from its
 * pool and binds it. Unbound slots reuse the render parm buffer so every
 * descriptor in the set is valid.
 */
func (d *Driver) flushBindings(vcb *VulkanCommandBuffer) error {
	if !vcb.bindingsDirty {
		return nil
	}
	if vcb.setsAllocated >= VULKAN_MAX_DESCRIPTOR_SETS {
		return core.NewFatalError("flushBindings", "descriptor pool exhausted")
	}
	device := d.context.Device.LogicalDevice

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     vcb.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.context.DescriptorSetLayout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if err := vkCheck("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(device, &allocateInfo, &sets[0])); err != nil {
		return err
	}
	vcb.setsAllocated++

	fallback := vcb.bindings[metadata.BINDING_RENDERPARMS]
	writes := make([]vk.WriteDescriptorSet, 0, VULKAN_UNIFORM_BINDING_COUNT)
	for i, b := range vcb.bindings {
		if b.buffer == vk.NullBuffer {
			b = fallback
		}
		if b.buffer == vk.NullBuffer {
			continue
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      uint32(i),
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: b.buffer,
				Offset: b.offset,
				Range:  b.size,
			}},
		})
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
	}
	vk.CmdBindDescriptorSets(vcb.Handle, vk.PipelineBindPointGraphics, d.context.PipelineLayout, 0, 1, sets, 0, nil)
	vcb.bindingsDirty = false
	return nil
}
