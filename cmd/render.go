package cmd

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellhand/kube/internal/frame"
	"github.com/hellhand/kube/internal/gpu"
	"github.com/hellhand/kube/internal/window"
	"github.com/urfave/cli"
	"github.com/xlab/closer"
)

const windowTitle = "Kube"

var _ gpu.Surface = (*window.Window)(nil)

type renderConfig struct {
	window window.Options
	gpu    gpu.Options
	frame  frame.Options
}

func renderOptions(ctx *cli.Context) (renderConfig, error) {
	cfg := renderConfig{
		window: window.Options{
			Title:  windowTitle,
			Width:  ctx.Int("width"),
			Height: ctx.Int("height"),
		},
		gpu: gpu.DefaultOptions(),
		frame: frame.Options{
			FramesInFlight: ctx.Int("frames-in-flight"),
			FenceTimeout:   ctx.Duration("fence-timeout"),
		},
	}
	cfg.gpu.AppName = windowTitle
	cfg.gpu.FramesInFlight = cfg.frame.FramesInFlight
	cfg.gpu.EnableValidation = ctx.BoolT("validation")
	if dir := ctx.String("shaders"); dir != "" {
		cfg.gpu.ShaderDir = dir
	}

	if cfg.frame.FramesInFlight < 1 {
		return cfg, errors.Newf("frames-in-flight must be at least 1; got %d", cfg.frame.FramesInFlight)
	}
	if cfg.frame.FenceTimeout < 0 {
		return cfg, errors.Newf("fence-timeout must not be negative; got %s", cfg.frame.FenceTimeout)
	}
	return cfg, nil
}

// Render opens the window and draws the spinning cube until the window is
// closed or the process is interrupted.
func Render(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	// An interrupt asks the draw loop to stop and waits until everything
	// below has been torn down on this thread.
	exitC := make(chan struct{}, 1)
	doneC := make(chan struct{})
	defer close(doneC)
	closer.Bind(func() {
		select {
		case exitC <- struct{}{}:
		default:
		}
		<-doneC
	})

	if err := window.Init(); err != nil {
		return err
	}
	defer window.Terminate()

	win, err := window.New(cfg.window)
	if err != nil {
		return err
	}
	defer win.Destroy()

	if err := gpu.InitLoader(window.VulkanProcAddr()); err != nil {
		return err
	}
	r, err := gpu.New(win, cfg.gpu)
	if err != nil {
		return err
	}
	defer r.Close()

	sched, err := frame.New(r, win.Resize(), cfg.frame, r.ImageCount())
	if err != nil {
		return err
	}

	meter := frame.NewMeter(time.Second)
	draw := func() error {
		if err := sched.DrawFrame(); err != nil {
			return err
		}
		if fps, ok := meter.Tick(time.Now()); ok {
			logger.Infof("%.1f fps", fps)
		}
		return nil
	}

	width, height := r.Extent()
	logger.Noticef("rendering at %dx%d with %d frames in flight and %d swapchain images", width, height, cfg.frame.FramesInFlight, r.ImageCount())
	err = win.Run(draw, exitC)

	displayFrameStats(sched.Stats(), time.Now())
	return err
}
