package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"

	"dockyard/internal/store"
	"dockyard/internal/types"
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline draws the last width values scaled to the largest of them.
func sparkline(values []float64, width int) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	peak := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		level := 0
		if peak > 0 && v > 0 {
			level = int(v / peak * float64(len(sparkLevels)-1))
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

func cpuSeries(points []store.StatsPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.CPUPercent
	}
	return out
}

func memSeries(points []store.StatsPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = float64(p.MemUsed)
	}
	return out
}

// summary is the header's right-hand side: container counts by status and
// the image count with their total size.
func summary(snap store.Snapshot) string {
	var running, paused, stopped int
	for _, c := range snap.Containers {
		switch c.Status {
		case types.StatusRunning:
			running++
		case types.StatusPaused:
			paused++
		case types.StatusStopped:
			stopped++
		}
	}

	var size int64
	for _, img := range snap.Images {
		size += img.Size
	}

	scope := ""
	if !snap.ShowAll {
		scope = " (running only)"
	}
	return fmt.Sprintf("%d containers%s: %d running, %d paused, %d stopped | %d images, %s",
		len(snap.Containers), scope, running, paused, stopped, len(snap.Images), units.HumanSize(float64(size)))
}

// formatAge renders "3 hours ago" style ages.
func formatAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return units.HumanDuration(now.Sub(t)) + " ago"
}

func formatCPU(percent float64) string {
	return fmt.Sprintf("%.1f%%", percent)
}

func formatMem(used uint64) string {
	return units.BytesSize(float64(used))
}

// formatLayer renders one pull progress line.
func formatLayer(ev types.LayerEvent) string {
	line := ev.Status
	if ev.LayerID != "" {
		line = ev.LayerID + ": " + ev.Status
	}
	if ev.Total > 0 {
		line += fmt.Sprintf(" %s/%s", units.HumanSize(float64(ev.Current)), units.HumanSize(float64(ev.Total)))
	}
	return line
}
