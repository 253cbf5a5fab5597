package cmd

import (
	"bytes"
	"fmt"

	"github.com/hellhand/kube/internal/gpu"
	"github.com/hellhand/kube/internal/window"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

func deviceTable(devices []gpu.DeviceInfo) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Name", "Type", "Vulkan", "Score"})
	for i, dev := range devices {
		table.Append([]string{
			fmt.Sprintf("%02d", i),
			dev.Name,
			dev.Type,
			dev.APIVersion,
			fmt.Sprintf("%d", dev.Score),
		})
	}
	table.Render()
	return buf.String()
}

// ListDevices prints the Vulkan devices visible to this system.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	if err := window.Init(); err != nil {
		return err
	}
	defer window.Terminate()

	if err := gpu.InitLoader(window.VulkanProcAddr()); err != nil {
		return err
	}
	devices, err := gpu.ListDevices(windowTitle)
	if err != nil {
		return err
	}

	logger.Noticef("system provides %d vulkan device(s)\n%s", len(devices), deviceTable(devices))
	return nil
}
