package gpu

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellhand/kube/internal/frame"
	"github.com/hellhand/kube/internal/log"
	"github.com/vulkan-go/vulkan"
)

var logger = log.New("gpu")

// Surface is the window the renderer presents to.
type Surface interface {
	// RequiredInstanceExtensions lists the instance extensions needed to
	// create a surface for this window.
	RequiredInstanceExtensions() []string

	CreateSurface(instance vulkan.Instance) (vulkan.Surface, error)

	// FramebufferSize returns the drawable size in pixels.
	FramebufferSize() (width, height int)

	// WaitForFramebuffer blocks until the drawable has a non-zero size. It
	// returns false if the window closes while waiting.
	WaitForFramebuffer() bool
}

// Renderer owns every Vulkan object needed to draw the spinning cube and
// implements frame.Backend on top of them.
//
// Objects live on one of two destroy lists. The long-lived list holds the
// instance, device, layouts, pools, static buffers and per-slot sync objects.
// The swapchain batch holds everything sized by the surface extent and is
// torn down and rebuilt by RebuildSwapchain.
type Renderer struct {
	opts   Options
	window Surface

	instance       vulkan.Instance
	surface        vulkan.Surface
	physicalDevice vulkan.PhysicalDevice
	deviceInfo     DeviceInfo
	device         vulkan.Device
	queues         queueFamilyIndices
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
	depthFormat    vulkan.Format

	vertexShader   []uint32
	fragmentShader []uint32

	descriptorSetLayout vulkan.DescriptorSetLayout
	commandPool         vulkan.CommandPool
	vertexBuffer        vulkan.Buffer
	indexBuffer         vulkan.Buffer
	frames              []frameSync

	swapchain       vulkan.Swapchain
	swapchainImages []vulkan.Image
	swapchainFormat vulkan.Format
	swapchainExtent vulkan.Extent2D
	swapchainViews  []vulkan.ImageView
	depthImageView  vulkan.ImageView
	renderPass      vulkan.RenderPass
	pipelineLayout  vulkan.PipelineLayout
	pipeline        vulkan.Pipeline
	framebuffers    []vulkan.Framebuffer
	uniformBuffers  []vulkan.Buffer
	uniformMemory   []vulkan.DeviceMemory
	descriptorSets  []vulkan.DescriptorSet
	commandBuffers  []vulkan.CommandBuffer

	longLived teardown
	batch     teardown
	closed    bool
	startTime time.Time
}

var _ frame.Backend = (*Renderer)(nil)

// New brings up Vulkan for window: instance, device, static resources and a
// first swapchain. If any step fails, everything created so far is released.
// InitLoader must have been called first.
func New(window Surface, opts Options) (*Renderer, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = frame.DefaultFramesInFlight
	}
	if opts.FramesInFlight < 1 {
		return nil, frame.ErrInvalidSlot
	}

	r := &Renderer{
		opts:      opts,
		window:    window,
		longLived: teardown{name: "long-lived"},
		batch:     teardown{name: "swapchain"},
	}

	var err error
	if r.vertexShader, err = loadShader(opts.ShaderDir, vertexShaderFile); err != nil {
		return nil, err
	}
	if r.fragmentShader, err = loadShader(opts.ShaderDir, fragmentShaderFile); err != nil {
		return nil, err
	}

	if err := r.init(); err != nil {
		r.Close()
		return nil, err
	}
	r.startTime = time.Now()
	return r, nil
}

func (r *Renderer) init() error {
	instance, err := createInstance(r.opts.AppName, r.window.RequiredInstanceExtensions(), r.opts.EnableValidation)
	if err != nil {
		return err
	}
	r.instance = instance
	r.longLived.push("instance", func() {
		vulkan.DestroyInstance(instance, nil)
	})

	var steps []buildStep
	if r.opts.EnableValidation {
		steps = append(steps, buildStep{"debug report callback", r.setupDebugCallback})
	}
	steps = append(steps,
		buildStep{"surface", r.createSurface},
		buildStep{"physical device", r.pickPhysicalDevice},
		buildStep{"logical device", r.createLogicalDevice},
		buildStep{"depth format", r.findDepthFormat},
		buildStep{"descriptor set layout", r.createDescriptorSetLayout},
		buildStep{"command pool", r.createCommandPool},
		buildStep{"mesh buffers", r.createMeshBuffers},
		buildStep{"sync objects", r.createSyncObjects},
	)
	if err := runSteps("set up", steps); err != nil {
		return err
	}

	return r.buildSwapchainBatch()
}

type buildStep struct {
	name  string
	build func() error
}

func runSteps(verb string, steps []buildStep) error {
	for _, step := range steps {
		if err := step.build(); err != nil {
			return errors.Wrapf(err, "%s %s", verb, step.name)
		}
	}
	return nil
}

// ImageCount returns the number of images in the current swapchain.
func (r *Renderer) ImageCount() int {
	return len(r.swapchainImages)
}

// Device describes the physical device in use.
func (r *Renderer) Device() DeviceInfo {
	return r.deviceInfo
}

// Extent returns the current swapchain extent in pixels.
func (r *Renderer) Extent() (width, height uint32) {
	return r.swapchainExtent.Width, r.swapchainExtent.Height
}

// Close waits for the device to finish all submitted work and destroys every
// object, swapchain batch first. Calling Close again does nothing.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true

	if r.device != nil {
		if res := vulkan.DeviceWaitIdle(r.device); res != vulkan.Success {
			logger.Warningf("device did not go idle before teardown: %v", resultError(res))
		}
	}
	r.batch.unwind()
	r.longLived.unwind()
	r.device = nil
	r.instance = nil
}
