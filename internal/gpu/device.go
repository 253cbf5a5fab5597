package gpu

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

type queueFamilyIndices struct {
	graphicsFamily uint32
	presentFamily  uint32
	hasGraphics    bool
	hasPresent     bool
}

func (q queueFamilyIndices) complete() bool {
	return q.hasGraphics && q.hasPresent
}

// DeviceInfo describes a physical device as reported by the driver.
type DeviceInfo struct {
	Name       string
	Type       string
	APIVersion string
	Score      int
}

// scoreDeviceType ranks discrete GPUs above integrated ones above anything else.
func scoreDeviceType(t vulkan.PhysicalDeviceType) int {
	switch t {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func deviceTypeName(t vulkan.PhysicalDeviceType) string {
	switch t {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vulkan.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vulkan.PhysicalDeviceTypeCpu:
		return "cpu"
	default:
		return "other"
	}
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

func describeDevice(device vulkan.PhysicalDevice) DeviceInfo {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(device, &props)
	props.Deref()
	return DeviceInfo{
		Name:       vulkan.ToString(props.DeviceName[:]),
		Type:       deviceTypeName(props.DeviceType),
		APIVersion: versionString(props.ApiVersion),
		Score:      scoreDeviceType(props.DeviceType),
	}
}

func enumeratePhysicalDevices(instance vulkan.Instance) ([]vulkan.PhysicalDevice, error) {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(instance, &count, nil); res != vulkan.Success {
		return nil, errors.Wrap(resultError(res), "count physical devices")
	}
	if count == 0 {
		return nil, nil
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(instance, &count, devices); res != vulkan.Success {
		return nil, errors.Wrap(resultError(res), "list physical devices")
	}
	return devices[:count], nil
}

// ListDevices reports every physical device visible to a throwaway instance.
// InitLoader must have been called first.
func ListDevices(appName string) ([]DeviceInfo, error) {
	instance, err := createInstance(appName, nil, false)
	if err != nil {
		return nil, err
	}
	defer vulkan.DestroyInstance(instance, nil)

	devices, err := enumeratePhysicalDevices(instance)
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, describeDevice(dev))
	}
	return infos, nil
}

func (r *Renderer) pickPhysicalDevice() error {
	devices, err := enumeratePhysicalDevices(r.instance)
	if err != nil {
		return err
	}

	var (
		selected       vulkan.PhysicalDevice
		selectedQueues queueFamilyIndices
		selectedInfo   DeviceInfo
		bestScore      = -1
	)
	for _, dev := range devices {
		info := describeDevice(dev)
		q := r.findQueueFamilies(dev)
		switch {
		case !q.hasGraphics:
			logger.Infof("skipping device %q: no graphics queue family", info.Name)
			continue
		case !q.hasPresent:
			logger.Infof("skipping device %q: cannot present to the window surface", info.Name)
			continue
		case !deviceExtensionsSupported(dev):
			logger.Infof("skipping device %q: VK_KHR_swapchain not supported", info.Name)
			continue
		case !querySwapchainSupport(dev, r.surface).adequate():
			logger.Infof("skipping device %q: surface reports no formats or present modes", info.Name)
			continue
		}
		if info.Score > bestScore {
			bestScore = info.Score
			selected = dev
			selectedQueues = q
			selectedInfo = info
		}
	}

	if bestScore < 0 {
		return errors.Wrapf(ErrNoSuitableDevice, "checked %d devices", len(devices))
	}

	r.physicalDevice = selected
	r.queues = selectedQueues
	r.deviceInfo = selectedInfo
	logger.Noticef("using %s GPU %q (vulkan %s)", selectedInfo.Type, selectedInfo.Name, selectedInfo.APIVersion)
	return nil
}

func deviceExtensionsSupported(device vulkan.PhysicalDevice) bool {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vulkan.Success {
		return false
	}
	names := make([]string, 0, len(props))
	for i := range props {
		props[i].Deref()
		names = append(names, vulkan.ToString(props[i].ExtensionName[:]))
	}
	return containsAll(names, deviceExtensions)
}

func (r *Renderer) findQueueFamilies(device vulkan.PhysicalDevice) queueFamilyIndices {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if !indices.hasGraphics && props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
			indices.graphicsFamily = uint32(i)
			indices.hasGraphics = true
		}
		var present vulkan.Bool32
		vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), r.surface, &present)
		if !indices.hasPresent && present == vulkan.True {
			indices.presentFamily = uint32(i)
			indices.hasPresent = true
		}
		if indices.complete() {
			break
		}
	}
	return indices
}

func (r *Renderer) createLogicalDevice() error {
	families := []uint32{r.queues.graphicsFamily}
	if r.queues.presentFamily != r.queues.graphicsFamily {
		families = append(families, r.queues.presentFamily)
	}
	queueInfos := make([]vulkan.DeviceQueueCreateInfo, 0, len(families))
	for _, family := range families {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{{}},
		PpEnabledExtensionNames: deviceExtensions,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
	}
	if r.opts.EnableValidation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	var device vulkan.Device
	if res := vulkan.CreateDevice(r.physicalDevice, &createInfo, nil, &device); res != vulkan.Success {
		return errors.Wrap(resultError(res), "create logical device")
	}
	r.device = device
	r.longLived.push("device", func() {
		vulkan.DestroyDevice(device, nil)
	})

	vulkan.GetDeviceQueue(device, r.queues.graphicsFamily, 0, &r.graphicsQueue)
	vulkan.GetDeviceQueue(device, r.queues.presentFamily, 0, &r.presentQueue)
	return nil
}
