package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	streamer  SegmentStreamer
	checks    map[string]func() error
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithStreamer sets the streamer whose active job count is reported.
func (h *HealthHandler) WithStreamer(streamer SegmentStreamer) *HealthHandler {
	h.streamer = streamer
	return h
}

// WithBinaryCheck adds a named readiness check for an external binary
// dependency (the encoder, the extractor).
func (h *HealthHandler) WithBinaryCheck(name string, check func() error) *HealthHandler {
	if h.checks == nil {
		h.checks = map[string]func() error{}
	}
	h.checks[name] = check
	return h
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// LivezInput is the input for the liveness endpoint.
type LivezInput struct{}

// LivezOutput is the output for the liveness endpoint.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// ReadyzInput is the input for the readiness endpoint.
type ReadyzInput struct{}

// ReadyzOutput is the output for the readiness endpoint.
type ReadyzOutput struct {
	Status int
	Body   struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
}

// CPUInfo holds CPU load information.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds memory usage information.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMB         float64 `json:"process_mb"`
	// EncoderTreeMB sums the RSS of child processes, which here means
	// the running ffmpeg encoders.
	EncoderTreeMB float64 `json:"encoder_tree_mb"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string     `json:"status"`
	Timestamp     string     `json:"timestamp"`
	Version       string     `json:"version"`
	Uptime        string     `json:"uptime"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	ActiveJobs    int64      `json:"active_jobs"`
	CPUInfo       CPUInfo    `json:"cpu"`
	Memory        MemoryInfo `json:"memory"`
}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics and the number of running encode jobs",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      "GET",
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Reports whether the external binaries the service depends on are available",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// GetLivez reports process liveness.
func (h *HealthHandler) GetLivez(ctx context.Context, input *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// GetReadyz reports whether the service can take work.
func (h *HealthHandler) GetReadyz(ctx context.Context, input *ReadyzInput) (*ReadyzOutput, error) {
	out := &ReadyzOutput{}
	out.Body.Status = "ready"
	out.Body.Components = map[string]string{}

	for name, check := range h.checks {
		if err := check(); err != nil {
			out.Body.Status = "not_ready"
			out.Body.Components[name] = err.Error()
		} else {
			out.Body.Components[name] = "ok"
		}
	}

	if out.Body.Status != "ready" {
		out.Status = 503
	}
	return out, nil
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	var activeJobs int64
	if h.streamer != nil {
		activeJobs = h.streamer.ActiveJobs()
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        "healthy",
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			ActiveJobs:    activeJobs,
			CPUInfo:       h.getCPUInfo(),
			Memory:        h.getMemoryInfo(),
		},
	}, nil
}

// getCPUInfo returns CPU load information.
func (h *HealthHandler) getCPUInfo() CPUInfo {
	cores := runtime.NumCPU()
	info := CPUInfo{Cores: cores}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(cores)) * 100
		}
	}

	return info
}

// getMemoryInfo returns memory usage information.
func (h *HealthHandler) getMemoryInfo() MemoryInfo {
	info := MemoryInfo{}

	vmStat, err := mem.VirtualMemory()
	if err == nil && vmStat != nil {
		info.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
		info.AvailableMemoryMB = float64(vmStat.Available) / 1024 / 1024
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}

	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		info.ProcessMB = float64(memInfo.RSS) / 1024 / 1024
	}

	if children, err := proc.Children(); err == nil {
		for _, child := range children {
			if childMem, err := child.MemoryInfo(); err == nil && childMem != nil {
				info.EncoderTreeMB += float64(childMem.RSS) / 1024 / 1024
			}
		}
	}

	return info
}
