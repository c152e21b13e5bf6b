package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"

	"dockyard/internal/types"
)

// ListContainers retrieves containers. With all set, stopped containers are included.
func (c *Client) ListContainers(ctx context.Context, all bool) ([]types.Container, error) {
	ctx, cancel := withTimeout(ctx, TimeoutQuick)
	defer cancel()

	result, err := c.cli.ContainerList(ctx, client.ContainerListOptions{All: all})
	if err != nil {
		return nil, wrapErr("list containers", TimeoutQuick, err)
	}

	containers := make([]types.Container, 0, len(result.Items))
	for _, summary := range result.Items {
		containers = append(containers, parseContainer(summary))
	}

	SortContainers(containers)
	return containers, nil
}

// SortContainers orders containers by status priority, then by name
func SortContainers(containers []types.Container) {
	sort.SliceStable(containers, func(i, j int) bool {
		pi, pj := getStatusPriority(containers[i].Status), getStatusPriority(containers[j].Status)
		if pi != pj {
			return pi < pj
		}
		return containers[i].Name < containers[j].Name
	})
}

// parseContainer converts a Docker API container to our record type
func parseContainer(summary container.Summary) types.Container {
	name := "unknown"
	if len(summary.Names) > 0 {
		name = strings.TrimPrefix(summary.Names[0], "/")
	}

	return types.Container{
		ID:         summary.ID,
		Name:       name,
		Image:      summary.Image,
		Status:     parseContainerStatus(string(summary.State)),
		State:      string(summary.State),
		StatusText: summary.Status,
		Health:     parseHealth(summary.Status),
		Ports:      formatPorts(summary.Ports),
		Created:    time.Unix(summary.Created, 0),
		Labels:     summary.Labels,
		Volumes:    containerVolumes(summary.Mounts),
		Networks:   containerNetworks(summary.NetworkSettings),
	}
}

// statsJSON is the subset of the stats payload dockyard reads
type statsJSON struct {
	CPUStats    cpuStatsJSON `json:"cpu_stats"`
	PreCPUStats cpuStatsJSON `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64            `json:"usage"`
		Limit uint64            `json:"limit"`
		Stats map[string]uint64 `json:"stats"`
	} `json:"memory_stats"`
}

type cpuStatsJSON struct {
	CPUUsage struct {
		TotalUsage  uint64   `json:"total_usage"`
		PercpuUsage []uint64 `json:"percpu_usage"`
	} `json:"cpu_usage"`
	SystemUsage uint64 `json:"system_cpu_usage"`
	OnlineCPUs  uint32 `json:"online_cpus"`
}

// ContainerStats takes one stats reading for a container. The sample is stamped
// with the time the request was issued.
func (c *Client) ContainerStats(ctx context.Context, containerID string) (types.StatsSample, error) {
	started := time.Now()

	ctx, cancel := withTimeout(ctx, TimeoutQuick)
	defer cancel()

	statsResp, err := c.cli.ContainerStats(ctx, containerID, client.ContainerStatsOptions{Stream: false})
	if err != nil {
		return types.StatsSample{}, wrapErr("fetch stats", TimeoutQuick, err)
	}
	defer statsResp.Body.Close()

	var raw statsJSON
	if err := json.NewDecoder(statsResp.Body).Decode(&raw); err != nil {
		return types.StatsSample{}, fmt.Errorf("failed to decode stats: %w", err)
	}

	sample := calculateStats(raw)
	sample.ContainerID = containerID
	sample.Timestamp = started
	return sample, nil
}

// calculateStats derives CPU percentage and memory usage the way `docker stats` does
func calculateStats(raw statsJSON) types.StatsSample {
	var sample types.StatsSample

	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)

	cpus := float64(raw.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = float64(len(raw.CPUStats.CPUUsage.PercpuUsage))
	}
	if cpus == 0 {
		cpus = 1
	}
	if systemDelta > 0.0 && cpuDelta > 0.0 {
		sample.CPUPercent = (cpuDelta / systemDelta) * cpus * 100.0
	}

	// Page cache is reclaimable, so it is not reported as used memory.
	used := raw.MemoryStats.Usage
	cache, ok := raw.MemoryStats.Stats["inactive_file"]
	if !ok {
		cache = raw.MemoryStats.Stats["cache"]
	}
	if cache < used {
		used -= cache
	}
	sample.MemUsed = used
	sample.MemLimit = raw.MemoryStats.Limit

	return sample
}

// StartContainer starts a container
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	ctx, cancel := withTimeout(ctx, TimeoutMedium)
	defer cancel()

	if _, err := c.cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return wrapErr("start container", TimeoutMedium, err)
	}
	return nil
}

// StopContainer stops a container
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	ctx, cancel := withTimeout(ctx, TimeoutMedium)
	defer cancel()

	// Allow 10 seconds for graceful shutdown
	timeout := 10
	if _, err := c.cli.ContainerStop(ctx, containerID, client.ContainerStopOptions{Timeout: &timeout}); err != nil {
		return wrapErr("stop container", TimeoutMedium, err)
	}
	return nil
}

// RestartContainer restarts a container
func (c *Client) RestartContainer(ctx context.Context, containerID string) error {
	ctx, cancel := withTimeout(ctx, TimeoutMedium)
	defer cancel()

	timeout := 10
	if _, err := c.cli.ContainerRestart(ctx, containerID, client.ContainerRestartOptions{Timeout: &timeout}); err != nil {
		return wrapErr("restart container", TimeoutMedium, err)
	}
	return nil
}

// PauseContainer freezes all processes in a container
func (c *Client) PauseContainer(ctx context.Context, containerID string) error {
	ctx, cancel := withTimeout(ctx, TimeoutMedium)
	defer cancel()

	if _, err := c.cli.ContainerPause(ctx, containerID, client.ContainerPauseOptions{}); err != nil {
		return wrapErr("pause container", TimeoutMedium, err)
	}
	return nil
}

// UnpauseContainer resumes a paused container
func (c *Client) UnpauseContainer(ctx context.Context, containerID string) error {
	ctx, cancel := withTimeout(ctx, TimeoutMedium)
	defer cancel()

	if _, err := c.cli.ContainerUnpause(ctx, containerID, client.ContainerUnpauseOptions{}); err != nil {
		return wrapErr("unpause container", TimeoutMedium, err)
	}
	return nil
}

// RemoveContainer removes a container
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	ctx, cancel := withTimeout(ctx, TimeoutMedium)
	defer cancel()

	_, err := c.cli.ContainerRemove(ctx, containerID, client.ContainerRemoveOptions{
		Force:         force,
		RemoveVolumes: false,
	})
	if err != nil {
		return wrapErr("remove container", TimeoutMedium, err)
	}
	return nil
}

// InspectContainer retrieves container details formatted for display
func (c *Client) InspectContainer(ctx context.Context, containerID string) (string, error) {
	ctx, cancel := withTimeout(ctx, TimeoutQuick)
	defer cancel()

	inspectResult, err := c.cli.ContainerInspect(ctx, containerID, client.ContainerInspectOptions{})
	if err != nil {
		return "", wrapErr("inspect container", TimeoutQuick, err)
	}

	return formatContainerInspect(inspectResult.Container), nil
}

// Helper functions

func parseContainerStatus(state string) types.ContainerStatus {
	switch state {
	case "running":
		return types.StatusRunning
	case "paused":
		return types.StatusPaused
	case "exited", "dead", "created":
		return types.StatusStopped
	default:
		return types.StatusOther
	}
}

func parseHealth(status string) types.Health {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "(unhealthy)"):
		return types.HealthUnhealthy
	case strings.Contains(s, "(healthy)"):
		return types.HealthHealthy
	case strings.Contains(s, "(health: starting)"):
		return types.HealthStarting
	default:
		return types.HealthNone
	}
}

func formatPorts(ports []container.PortSummary) []string {
	if len(ports) == 0 {
		return nil
	}

	var portStrs []string
	seen := make(map[string]bool)

	for _, port := range ports {
		var s string
		if port.PublicPort > 0 {
			s = fmt.Sprintf("%d→%d", port.PublicPort, port.PrivatePort)
		} else if port.PrivatePort > 0 {
			s = fmt.Sprintf("%d", port.PrivatePort)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		portStrs = append(portStrs, s)
	}

	return portStrs
}

// containerVolumes lists named volumes and bind sources mounted into a container
func containerVolumes(mounts []container.MountPoint) []string {
	var volumes []string
	for _, mount := range mounts {
		if mount.Type == "volume" && mount.Name != "" {
			volumes = append(volumes, mount.Name)
		} else if mount.Source != "" {
			volumes = append(volumes, mount.Source)
		}
	}
	return volumes
}

// containerNetworks lists the networks a container is attached to, sorted by name
func containerNetworks(settings *container.NetworkSettingsSummary) []string {
	if settings == nil {
		return nil
	}
	networks := make([]string, 0, len(settings.Networks))
	for name := range settings.Networks {
		networks = append(networks, name)
	}
	sort.Strings(networks)
	return networks
}

func getStatusPriority(status types.ContainerStatus) int {
	switch status {
	case types.StatusRunning:
		return 1
	case types.StatusPaused:
		return 2
	case types.StatusOther:
		return 3
	case types.StatusStopped:
		return 4
	default:
		return 5
	}
}

func formatContainerInspect(inspect container.InspectResponse) string {
	var b strings.Builder

	b.WriteString("=== CONTAINER ===\n")
	id := inspect.ID
	if len(id) > 12 {
		id = id[:12]
	}
	b.WriteString(fmt.Sprintf("ID: %s\n", id))
	b.WriteString(fmt.Sprintf("Name: %s\n", strings.TrimPrefix(inspect.Name, "/")))
	if inspect.State != nil {
		b.WriteString(fmt.Sprintf("Status: %s\n", inspect.State.Status))
		if inspect.State.Running {
			b.WriteString(fmt.Sprintf("Started: %s\n", inspect.State.StartedAt))
		}
	}
	b.WriteString(fmt.Sprintf("Created: %s\n", inspect.Created))

	if inspect.Config != nil {
		b.WriteString("\n=== IMAGE ===\n")
		b.WriteString(fmt.Sprintf("Image: %s\n", inspect.Config.Image))

		if len(inspect.Config.Env) > 0 {
			b.WriteString("\n=== ENVIRONMENT ===\n")
			for _, env := range inspect.Config.Env {
				b.WriteString(fmt.Sprintf("  %s\n", env))
			}
		}

		if len(inspect.Config.Labels) > 0 {
			b.WriteString("\n=== LABELS ===\n")
			keys := make([]string, 0, len(inspect.Config.Labels))
			for k := range inspect.Config.Labels {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b.WriteString(fmt.Sprintf("  %s=%s\n", k, inspect.Config.Labels[k]))
			}
		}
	}

	b.WriteString("\n=== MOUNTS ===\n")
	if len(inspect.Mounts) == 0 {
		b.WriteString("No mounts\n")
	} else {
		for _, mount := range inspect.Mounts {
			b.WriteString(fmt.Sprintf("  %s -> %s (%s, rw=%t)\n", mount.Source, mount.Destination, string(mount.Type), mount.RW))
		}
	}

	return b.String()
}
