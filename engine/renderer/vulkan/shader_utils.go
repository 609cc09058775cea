package vulkan

import (
	"fmt"
	"os"
	"path/filepath"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/anima-renderer/engine/core"
	"github.com/spaghettifunk/anima-renderer/engine/renderer/metadata"
)

/**
 * @brief The vertex and fragment modules of one program.
 */
type VulkanShaderStages struct {
	Vertex   vk.ShaderModule
	Fragment vk.ShaderModule
}

func (s *VulkanShaderStages) createInfos() []vk.PipelineShaderStageCreateInfo {
	return []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: s.Vertex,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: s.Fragment,
			PName:  VulkanSafeString("main"),
		},
	}
}

func shaderFileName(dir, program, stage string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.spv", program, stage))
}

func (d *Driver) createShaderModule(fileName string) (vk.ShaderModule, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return vk.NullShaderModule, errors.Wrapf(err, "unable to read shader module %s", fileName)
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return vk.NullShaderModule, fmt.Errorf("shader module %s is not SPIR-V (%d bytes)", fileName, len(data))
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(data)),
		PCode:    metadata.FromBytes[uint32](data),
	}
	var module vk.ShaderModule
	if err := vkCheck("vkCreateShaderModule", vk.CreateShaderModule(d.context.Device.LogicalDevice, &createInfo, d.context.Allocator, &module)); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}

// shaderStages loads the modules of program once and caches them until the device is destroyed.
func (d *Driver) shaderStages(program string) (*VulkanShaderStages, error) {
	if stages, ok := d.shaders[program]; ok {
		return stages, nil
	}
	vert, err := d.createShaderModule(shaderFileName(d.opts.ShaderPath, program, "vert"))
	if err != nil {
		return nil, err
	}
	frag, err := d.createShaderModule(shaderFileName(d.opts.ShaderPath, program, "frag"))
	if err != nil {
		vk.DestroyShaderModule(d.context.Device.LogicalDevice, vert, d.context.Allocator)
		return nil, err
	}
	stages := &VulkanShaderStages{Vertex: vert, Fragment: frag}
	d.shaders[program] = stages
	core.LogDebug("Loaded shader modules for program '%s'.", program)
	return stages, nil
}

func (d *Driver) destroyShaders() {
	device := d.context.Device.LogicalDevice
	for name, stages := range d.shaders {
		if stages.Vertex != vk.NullShaderModule {
			vk.DestroyShaderModule(device, stages.Vertex, d.context.Allocator)
		}
		if stages.Fragment != vk.NullShaderModule {
			vk.DestroyShaderModule(device, stages.Fragment, d.context.Allocator)
		}
		delete(d.shaders, name)
	}
}
