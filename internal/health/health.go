// Package health builds process and job store health snapshots.
package health

import "strings"

// Options selects what the snapshot includes.
type Options struct {
	ConfigPath string
	StorePath  string
}

func (o Options) normalize() Options {
	o.ConfigPath = strings.TrimSpace(o.ConfigPath)
	o.StorePath = strings.TrimSpace(o.StorePath)
	return o
}

// Snapshot is a point-in-time health report.
type Snapshot struct {
	Status     string      `json:"status" yaml:"status"`
	Timestamp  string      `json:"timestamp" yaml:"timestamp"`
	Goroutines int         `json:"goroutines" yaml:"goroutines"`
	Memory     MemoryInfo  `json:"memory" yaml:"memory"`
	Runtime    RuntimeInfo `json:"runtime" yaml:"runtime"`
	Paths      *PathsInfo  `json:"paths,omitempty" yaml:"paths,omitempty"`
	Store      *StoreInfo  `json:"store,omitempty" yaml:"store,omitempty"`
}

// MemoryInfo reports process memory statistics.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB" yaml:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB" yaml:"totalAllocMB"`
	SysMB        float64 `json:"sysMB" yaml:"sysMB"`
	NumGC        uint32  `json:"numGC" yaml:"numGC"`
}

// RuntimeInfo reports Go runtime details.
type RuntimeInfo struct {
	Version string `json:"version" yaml:"version"`
	OS      string `json:"os" yaml:"os"`
	Arch    string `json:"arch" yaml:"arch"`
	CPUs    int    `json:"cpus" yaml:"cpus"`
}

// PathsInfo reports the file locations in use.
type PathsInfo struct {
	ConfigPath string `json:"configPath,omitempty" yaml:"configPath,omitempty"`
	StorePath  string `json:"storePath,omitempty" yaml:"storePath,omitempty"`
}

// StoreInfo reports the state of the persisted job store.
type StoreInfo struct {
	Path           string    `json:"path" yaml:"path"`
	Exists         bool      `json:"exists" yaml:"exists"`
	FileSizeBytes  int64     `json:"fileSizeBytes,omitempty" yaml:"fileSizeBytes,omitempty"`
	UpdatedAt      string    `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Version        int       `json:"version,omitempty" yaml:"version,omitempty"`
	JobsCount      int       `json:"jobsCount" yaml:"jobsCount"`
	MalformedCount int       `json:"malformedCount,omitempty" yaml:"malformedCount,omitempty"`
	Jobs           []JobInfo `json:"jobs,omitempty" yaml:"jobs,omitempty"`
	ParseError     string    `json:"parseError,omitempty" yaml:"parseError,omitempty"`
}

// JobInfo summarizes one stored job.
type JobInfo struct {
	ID          string `json:"id" yaml:"id"`
	Cron        string `json:"cron" yaml:"cron"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	OneShot     bool   `json:"oneShot,omitempty" yaml:"oneShot,omitempty"`
	CreatedBy   string `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	Actions     int    `json:"actions" yaml:"actions"`
	LastRun     string `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
}
