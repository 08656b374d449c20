package health

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mordomohq/mordomo/scheduler"
)

func inspectStoreFile(path string) *StoreInfo {
	info := &StoreInfo{Path: path}

	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			info.Exists = false
			return info
		}
		info.ParseError = err.Error()
		return info
	}

	info.Exists = true
	info.FileSizeBytes = stat.Size()
	info.UpdatedAt = stat.ModTime().Format(time.RFC3339)

	data, err := os.ReadFile(path)
	if err != nil {
		info.ParseError = err.Error()
		return info
	}

	var state scheduler.State
	if err := json.Unmarshal(data, &state); err != nil {
		info.ParseError = err.Error()
		return info
	}
	info.Version = state.Version

	jobs := make([]JobInfo, 0, len(state.Jobs))
	for _, raw := range state.Jobs {
		var job scheduler.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			info.MalformedCount++
			continue
		}
		// Records written before the enabled flag existed stay enabled.
		if !gjson.GetBytes(raw, "enabled").Exists() {
			job.Enabled = true
		}

		entry := JobInfo{
			ID:          strings.TrimSpace(job.ID),
			Cron:        strings.TrimSpace(job.CronExpression),
			Description: strings.TrimSpace(job.Description),
			Enabled:     job.Enabled,
			OneShot:     job.OneShot,
			CreatedBy:   strings.TrimSpace(job.CreatedBy),
			Actions:     len(job.Actions),
		}
		if job.LastRun != nil {
			entry.LastRun = job.LastRun.Format(time.RFC3339)
		}
		jobs = append(jobs, entry)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })

	info.JobsCount = len(jobs)
	info.Jobs = jobs
	return info
}
