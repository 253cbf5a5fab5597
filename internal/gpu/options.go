package gpu

import (
	"os"

	"github.com/hellhand/kube/internal/frame"
)

type Options struct {
	// Application name reported to the driver.
	AppName string

	// Enable VK_LAYER_KHRONOS_validation and route its reports to the log.
	EnableValidation bool

	// Directory holding vert.spv and frag.spv.
	ShaderDir string

	// Number of frame slots; one set of sync primitives is created per slot.
	FramesInFlight int
}

// DefaultOptions returns the settings used when no flags are given.
func DefaultOptions() Options {
	return Options{
		AppName:          "Kube",
		EnableValidation: ValidationFromEnv(),
		ShaderDir:        "shaders",
		FramesInFlight:   frame.DefaultFramesInFlight,
	}
}

// ValidationFromEnv reads VK_VALIDATION. Validation stays on unless the
// variable is set to a false value.
func ValidationFromEnv() bool {
	switch os.Getenv("VK_VALIDATION") {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}
