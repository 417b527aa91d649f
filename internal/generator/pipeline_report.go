package generator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type ReportSignal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Subject  string  `json:"subject,omitempty"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

// StageMetric carries no clock values so two runs over the same input
// produce the same stage list. Durations go to ReportMetadata.
type StageMetric struct {
	Name     string             `json:"name"`
	Status   string             `json:"status"`
	Counters map[string]float64 `json:"counters,omitempty"`
	Notes    []string           `json:"notes,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type StageTiming struct {
	Name       string `json:"name"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	DurationMS int64  `json:"duration_ms"`
}

// ReportMetadata holds everything that varies between otherwise identical runs.
type ReportMetadata struct {
	GeneratedAt string        `json:"generated_at"`
	Stages      []StageTiming `json:"stages"`
}

type ReportSummary struct {
	StageCount        int            `json:"stage_count"`
	FailedStages      int            `json:"failed_stages"`
	Components        map[string]int `json:"components,omitempty"`
	Statuses          map[string]int `json:"statuses,omitempty"`
	Placeholders      int            `json:"placeholders"`
	Pipelines         int            `json:"pipelines"`
	FailedPipelines   int            `json:"failed_pipelines"`
	DeploymentLevels  int            `json:"deployment_levels"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

type MigrationReport struct {
	Version   string         `json:"version"`
	Mode      string         `json:"mode"`
	Source    string         `json:"source"`
	OutputDir string         `json:"output_dir"`
	Stages    []StageMetric  `json:"stages"`
	Signals   []ReportSignal `json:"signals,omitempty"`

	// DeploymentOrder lists pipeline names in the order they must be created.
	DeploymentOrder []string       `json:"deployment_order,omitempty"`
	Summary         ReportSummary  `json:"summary"`
	Metadata        ReportMetadata `json:"metadata"`

	now func() time.Time
}

type StageHandle struct {
	name    string
	started time.Time
}

func (h StageHandle) Name() string { return h.name }

func NewMigrationReport(mode, source, outputDir string) *MigrationReport {
	return &MigrationReport{
		Version:   "v1",
		Mode:      mode,
		Source:    source,
		OutputDir: outputDir,
		Stages:    []StageMetric{},
		Signals:   []ReportSignal{},
		Metadata:  ReportMetadata{Stages: []StageTiming{}},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *MigrationReport) clock() time.Time {
	if r.now == nil {
		return time.Now().UTC()
	}
	return r.now()
}

func (r *MigrationReport) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: r.clock()}
}

// EndStage records the stage and returns its duration.
func (r *MigrationReport) EndStage(h StageHandle, status string, counters map[string]float64, notes []string, err error) time.Duration {
	if r == nil || strings.TrimSpace(h.name) == "" {
		return 0
	}
	if strings.TrimSpace(status) == "" {
		status = "ok"
	}
	finished := r.clock()
	m := StageMetric{
		Name:     h.name,
		Status:   status,
		Counters: cleanCounters(counters),
		Notes:    cleanNotes(notes),
	}
	if err != nil {
		m.Error = err.Error()
		if status == "ok" {
			m.Status = "error"
		}
	}
	r.Stages = append(r.Stages, m)
	elapsed := finished.Sub(h.started)
	r.Metadata.Stages = append(r.Metadata.Stages, StageTiming{
		Name:       h.name,
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: elapsed.Milliseconds(),
	})
	return elapsed
}

func (r *MigrationReport) AddSignal(code, stage, severity, subject, message string, value float64) {
	if r == nil {
		return
	}
	s := ReportSignal{
		Code:     strings.TrimSpace(code),
		Stage:    strings.TrimSpace(stage),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Subject:  strings.TrimSpace(subject),
		Message:  strings.TrimSpace(message),
		Value:    value,
	}
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

// Finalize sorts signals and fills the summary fields derived from stages
// and signals. Counts set by the caller are kept.
func (r *MigrationReport) Finalize() {
	if r == nil {
		return
	}
	r.Metadata.GeneratedAt = r.clock().Format(time.RFC3339)
	severityCount := map[string]int{
		"critical": 0,
		"warning":  0,
		"info":     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		a, b := r.Signals[i], r.Signals[j]
		pi := signalPriority(a.Severity)
		pj := signalPriority(b.Severity)
		if pi != pj {
			return pi > pj
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Subject < b.Subject
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}

	r.Summary.StageCount = len(r.Stages)
	r.Summary.FailedStages = failed
	r.Summary.SignalsBySeverity = severityCount
}

func (r *MigrationReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanNotes(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
