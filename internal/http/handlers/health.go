package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and system status.
type HealthHandler struct {
	version   string
	backend   string
	startTime time.Time
	db        Pinger
}

// NewHealthHandler creates a health handler for the given build version and
// storage backend name.
func NewHealthHandler(version, backend string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		backend:   backend,
		startTime: time.Now(),
	}
}

// WithDB sets the database checked by readiness probes.
func (h *HealthHandler) WithDB(db Pinger) *HealthHandler {
	h.db = db
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Reports whether the fixed playlist store is reachable",
		Tags:        []string{"System"},
	}, h.GetReadyz)

	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Service status",
		Description: "Returns version, uptime and host resource usage",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the output for the liveness probe.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// GetLivez always reports ok while the process serves requests.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// ReadyzInput is the input for the readiness probe.
type ReadyzInput struct{}

// ReadyzOutput is the output for the readiness probe.
type ReadyzOutput struct {
	Body ReadyzResponse
}

// ReadyzResponse lists component states.
type ReadyzResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// GetReadyz pings the database when the store uses one. Memory and file
// stores are always ready.
func (h *HealthHandler) GetReadyz(ctx context.Context, _ *ReadyzInput) (*ReadyzOutput, error) {
	resp := ReadyzResponse{
		Status:     "ready",
		Components: map[string]string{"storage": h.backend},
	}

	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.db.Ping(pingCtx); err != nil {
			return nil, huma.Error503ServiceUnavailable("database unreachable", err)
		}
		resp.Components["database"] = "ok"
	}

	return &ReadyzOutput{Body: resp}, nil
}

// HealthInput is the input for the status endpoint.
type HealthInput struct{}

// HealthOutput is the output for the status endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse describes the running service.
type HealthResponse struct {
	Status        string     `json:"status"`
	Version       string     `json:"version"`
	Storage       string     `json:"storage"`
	Timestamp     string     `json:"timestamp"`
	Uptime        string     `json:"uptime"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	CPU           CPUInfo    `json:"cpu"`
	Memory        MemoryInfo `json:"memory"`
}

// CPUInfo holds load averages.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds host and process memory usage in MiB.
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb"`
	AvailableMB float64 `json:"available_mb"`
	UsedMB      float64 `json:"used_mb"`
	ProcessMB   float64 `json:"process_mb"`
	// ProcessPercent is the process RSS as a share of total memory.
	ProcessPercent float64 `json:"process_percent"`
	HeapMB         float64 `json:"heap_mb"`
	Goroutines     int     `json:"goroutines"`
}

// GetHealth returns the service status. Host metrics that cannot be read
// on this platform are reported as zero.
func (h *HealthHandler) GetHealth(_ context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	return &HealthOutput{
		Body: HealthResponse{
			Status:        "healthy",
			Version:       h.version,
			Storage:       h.backend,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			CPU:           cpuInfo(),
			Memory:        memoryInfo(),
		},
	}, nil
}

func cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	avg, err := load.Avg()
	if err == nil && avg != nil {
		info.Load1Min = avg.Load1
		info.Load5Min = avg.Load5
		info.Load15Min = avg.Load15
		if info.Cores > 0 {
			info.LoadPercentage1Min = avg.Load1 / float64(info.Cores) * 100
		}
	}
	return info
}

const mib = 1024 * 1024

func memoryInfo() MemoryInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info := MemoryInfo{
		HeapMB:     float64(ms.HeapAlloc) / mib,
		Goroutines: runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalMB = float64(vm.Total) / mib
		info.AvailableMB = float64(vm.Available) / mib
		info.UsedMB = float64(vm.Used) / mib
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if pm, err := proc.MemoryInfo(); err == nil && pm != nil {
			info.ProcessMB = float64(pm.RSS) / mib
			if info.TotalMB > 0 {
				info.ProcessPercent = info.ProcessMB / info.TotalMB * 100
			}
		}
	}
	return info
}
