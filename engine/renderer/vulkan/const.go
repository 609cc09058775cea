package vulkan

/**
 * @brief Max number of descriptor sets one command buffer allocates per frame.
 * Every draw that changes a uniform binding takes one.
 */
const VULKAN_MAX_DESCRIPTOR_SETS uint32 = 16384

// Uniform buffer bindings declared by the shared descriptor set layout.
const VULKAN_UNIFORM_BINDING_COUNT = 2

const VULKAN_VALIDATION_LAYER = "VK_LAYER_KHRONOS_validation"

const VULKAN_PORTABILITY_SUBSET = "VK_KHR_portability_subset"
