package domain

import "time"

// HealthStatus 是健康探测的判定结果。
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthRunning   HealthStatus = "running"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStopped   HealthStatus = "stopped"
)

// HealthRecord 是应用最近一次健康探测的结果。
type HealthRecord struct {
	Status         HealthStatus `json:"status"`
	CheckedAt      time.Time    `json:"checked_at"`
	ResponseTimeMS int64        `json:"response_time_ms,omitempty"`
}

// ResourceSample 是运行中子进程的一次资源采样，不落盘。
type ResourceSample struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}
