package scheduler

import (
	"context"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes the job once; the scheduler owns retries
	Run(ctx context.Context) error

	// Schedule returns the cron expression, e.g. "*/5 * * * *",
	// "30 2 * * 6" (Saturday 02:30) or "@hourly"
	Schedule() string
}

// JobResult is the outcome of one triggered execution, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory is the number of results kept per job
const maxHistory = 100

// JobHistory is a bounded, oldest-first log of results for one job
type JobHistory struct {
	Results []JobResult `json:"results"`
}

// Record appends a result, dropping the oldest beyond maxHistory
func (h *JobHistory) Record(result JobResult) {
	if len(h.Results) == maxHistory {
		copy(h.Results, h.Results[1:])
		h.Results = h.Results[:maxHistory-1]
	}
	h.Results = append(h.Results, result)
}

// Latest returns up to n most recent results, oldest first
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// LastWhere returns the start time of the newest result with the given
// outcome, or nil
func (h *JobHistory) LastWhere(success bool) *time.Time {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if h.Results[i].Success == success {
			t := h.Results[i].StartTime
			return &t
		}
	}
	return nil
}

// Counts returns the number of successful and failed results
func (h *JobHistory) Counts() (ok, failed int) {
	for _, r := range h.Results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// SuccessRate is ok/total in [0, 1]; 0 with no history
func (h *JobHistory) SuccessRate() float64 {
	ok, failed := h.Counts()
	if ok+failed == 0 {
		return 0
	}
	return float64(ok) / float64(ok+failed)
}
