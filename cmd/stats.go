package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/hellhand/kube/internal/frame"
	"github.com/olekukonko/tablewriter"
)

func frameStatsTable(stats frame.Stats, now time.Time) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Counter", "Value"})
	table.Append([]string{"Frames presented", fmt.Sprintf("%d", stats.Frames)})
	table.Append([]string{"Swapchain rebuilds", fmt.Sprintf("%d", stats.Recreations)})
	table.Append([]string{"  out of date on acquire", fmt.Sprintf("%d", stats.StaleAcquires)})
	table.Append([]string{"  stale on present", fmt.Sprintf("%d", stats.StalePresents)})
	table.Append([]string{"  window resized", fmt.Sprintf("%d", stats.ResizeRebuilds)})
	table.Append([]string{"Image reuse waits", fmt.Sprintf("%d", stats.CrossWaits)})
	table.SetFooter([]string{"AVG FPS", fmt.Sprintf("%.1f", stats.AverageFPS(now))})

	table.Render()
	return buf.String()
}

func displayFrameStats(stats frame.Stats, now time.Time) {
	logger.Noticef("frame statistics after %s\n%s", now.Sub(stats.Started).Round(time.Millisecond), frameStatsTable(stats, now))
}
