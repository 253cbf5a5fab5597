package gpu

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation\x00"}
	deviceExtensions = []string{"VK_KHR_swapchain\x00"}
)

const debugReportExtension = "VK_EXT_debug_report\x00"

// InitLoader points the bindings at the loader's vkGetInstanceProcAddr, as
// exposed by the windowing library, and loads the global entry points.
func InitLoader(getInstanceProcAddr unsafe.Pointer) error {
	vulkan.SetGetInstanceProcAddr(getInstanceProcAddr)
	if err := vulkan.Init(); err != nil {
		return errors.Wrap(err, "initialise vulkan loader")
	}
	return nil
}

func createInstance(appName string, extensions []string, validation bool) (vulkan.Instance, error) {
	if validation && !validationLayersSupported() {
		return nil, ErrValidationUnavailable
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   safeString(appName),
		ApplicationVersion: vulkan.MakeVersion(0, 1, 0),
		PEngineName:        "No Engine\x00",
		EngineVersion:      vulkan.MakeVersion(0, 1, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions = safeStrings(extensions)
	if validation {
		extensions = append(extensions, debugReportExtension)
	}

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	if validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	var instance vulkan.Instance
	if res := vulkan.CreateInstance(&createInfo, nil, &instance); res != vulkan.Success {
		return nil, errors.Wrap(resultError(res), "create instance")
	}
	if err := vulkan.InitInstance(instance); err != nil {
		vulkan.DestroyInstance(instance, nil)
		return nil, errors.Wrap(err, "load instance entry points")
	}
	return instance, nil
}

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	names := make([]string, 0, len(props))
	for i := range props {
		props[i].Deref()
		names = append(names, vulkan.ToString(props[i].LayerName[:]))
	}
	return containsAll(names, validationLayers)
}

// containsAll reports whether every wanted name appears in available. Both
// sides may carry the trailing NUL the C API expects.
func containsAll(available, wanted []string) bool {
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[trimNul(name)] = struct{}{}
	}
	for _, name := range wanted {
		if _, ok := set[trimNul(name)]; !ok {
			return false
		}
	}
	return true
}

func (r *Renderer) setupDebugCallback() error {
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	var callback vulkan.DebugReportCallback
	if res := vulkan.CreateDebugReportCallback(r.instance, &createInfo, nil, &callback); res != vulkan.Success {
		return errors.Wrap(resultError(res), "create debug report callback")
	}
	instance := r.instance
	r.longLived.push("debug report callback", func() {
		vulkan.DestroyDebugReportCallback(instance, callback, nil)
	})
	return nil
}

func debugReport(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
	if flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0 {
		logger.Errorf("[%s] %s (code=%d)", layerPrefix, message, messageCode)
	} else {
		logger.Warningf("[%s] %s (code=%d)", layerPrefix, message, messageCode)
	}
	return vulkan.False
}

func (r *Renderer) createSurface() error {
	surface, err := r.window.CreateSurface(r.instance)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}
	r.surface = surface
	instance := r.instance
	r.longLived.push("surface", func() {
		vulkan.DestroySurface(instance, surface, nil)
		r.surface = vulkan.NullSurface
	})
	return nil
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, safeString(s))
	}
	return out
}

func trimNul(s string) string {
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}
