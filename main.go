package main

import (
	"os"
	"runtime"
	"time"

	"github.com/hellhand/kube/cmd"
	"github.com/hellhand/kube/internal/log"
	"github.com/urfave/cli"
	"github.com/xlab/closer"
)

var logger = log.New("kube")

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	defer closer.Close()

	renderFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: 800,
			Usage: "initial window width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: 600,
			Usage: "initial window height",
		},
		cli.IntFlag{
			Name:  "frames-in-flight",
			Value: 2,
			Usage: "number of frames the CPU may record ahead of the GPU",
		},
		cli.DurationFlag{
			Name:  "fence-timeout",
			Value: 10 * time.Second,
			Usage: "give up on the GPU after waiting this long for a frame (0 waits forever)",
		},
		cli.StringFlag{
			Name:  "shaders",
			Value: "shaders",
			Usage: "directory containing vert.spv and frag.spv",
		},
		cli.BoolTFlag{
			Name:   "validation",
			Usage:  "enable the Khronos validation layer",
			EnvVar: "VK_VALIDATION",
		},
	}

	app := cli.NewApp()
	app.Name = "kube"
	app.Usage = "render a spinning cube with Vulkan"
	app.Version = "0.1.0"
	app.Flags = append([]cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}, renderFlags...)
	app.Action = cmd.Render
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "open a window and render until it is closed (default)",
			Description: `
Draw the cube with the given number of frames in flight. Resizing or
minimizing the window rebuilds the swapchain; frame statistics are printed
on exit.`,
			Flags:  renderFlags,
			Action: cmd.Render,
		},
		{
			Name:   "list-devices",
			Usage:  "list available vulkan devices",
			Action: cmd.ListDevices,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		closer.Exit(1)
	}
}
