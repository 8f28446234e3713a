// Package report collects the findings of every module run against one
// target and persists them as a single JSON document. Re-running a module
// replaces its previous finding; findings of modules not run this time are
// carried over from the existing report on disk.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"

	"github.com/soda-recon/soda/pkg/defaults"
	"github.com/soda-recon/soda/pkg/jsonutil"
	"github.com/soda-recon/soda/pkg/result"
)

// FileName is the report document inside an output directory.
const FileName = "report.json"

// Metadata describes the scan that produced a report.
type Metadata struct {
	Tool            string    `json:"tool"`
	Version         string    `json:"version"`
	Target          string    `json:"target"`
	ScanID          string    `json:"scan_id"`
	ScanStarted     time.Time `json:"scan_started"`
	ScanCompleted   time.Time `json:"scan_completed,omitzero"`
	DurationSeconds float64   `json:"scan_duration_seconds,omitzero"`
}

// Finding is the output of one module in one category.
type Finding struct {
	Module    string         `json:"module"`
	Category  string         `json:"category"`
	Timestamp time.Time      `json:"timestamp"`
	Data      jsontext.Value `json:"data"`
}

// Key identifies a finding: one per module and category.
func (f Finding) Key() string { return f.Module + "/" + f.Category }

// Decode unmarshals the finding data into v.
func (f Finding) Decode(v any) error {
	return jsonutil.Unmarshal(f.Data, v)
}

// Traversal decodes a map finding into a traversal result.
func (f Finding) Traversal() (*result.TraversalResult, error) {
	var tr result.TraversalResult
	if err := f.Decode(&tr); err != nil {
		return nil, fmt.Errorf("report: finding %s: %w", f.Key(), err)
	}
	return &tr, nil
}

// document is the on-disk shape.
type document struct {
	Metadata Metadata  `json:"metadata"`
	Findings []Finding `json:"findings"`
}

// Report accumulates findings for one target. It is safe for concurrent use.
type Report struct {
	mu       sync.Mutex
	metadata Metadata
	findings []Finding
	logger   *slog.Logger
	now      func() time.Time
}

// New starts a report for target.
func New(target string, logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Report{
		logger: logger.With(slog.String("module", "report")),
		now:    time.Now,
	}
	r.metadata = Metadata{
		Tool:        defaults.ToolName,
		Version:     defaults.Version,
		Target:      target,
		ScanID:      uuid.NewString(),
		ScanStarted: r.now(),
	}
	return r
}

// Metadata returns a copy of the report metadata.
func (r *Report) Metadata() Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata
}

// Findings returns a copy of the findings in insertion order.
func (r *Report) Findings() []Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.findings)
}

// AddFinding records data as the finding of module in category, replacing
// any previous finding with the same module and category.
func (r *Report) AddFinding(module, category string, data any) error {
	raw, err := jsonutil.Marshal(data)
	if err != nil {
		return fmt.Errorf("report: encode %s/%s: %w", module, category, err)
	}
	f := Finding{Module: module, Category: category, Timestamp: r.now(), Data: raw}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.index(f.Key()); i >= 0 {
		r.findings[i] = f
		r.logger.Debug("finding updated", slog.String("key", f.Key()))
		return nil
	}
	r.findings = append(r.findings, f)
	r.logger.Debug("finding added", slog.String("key", f.Key()))
	return nil
}

// ByCategory returns the findings of category in insertion order.
func (r *Report) ByCategory(category string) []Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Finding
	for _, f := range r.findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

// LoadExisting merges the findings of the report at path whose module and
// category are not already present. A missing file is not an error and
// loads nothing. It returns how many findings were merged.
func (r *Report) LoadExisting(path string) (int, error) {
	var doc document
	if err := jsonutil.ReadFile(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("no previous report", slog.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("report: load %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	merged := 0
	for _, f := range doc.Findings {
		if f.Module == "" || r.index(f.Key()) >= 0 {
			continue
		}
		r.findings = append(r.findings, f)
		merged++
	}
	r.logger.Debug("previous report merged", slog.String("path", path), slog.Int("findings", merged))
	return merged, nil
}

// ExportJSON stamps the completion time and duration and writes the report
// to path, creating parent directories.
func (r *Report) ExportJSON(path string) error {
	r.mu.Lock()
	end := r.now()
	r.metadata.ScanCompleted = end
	r.metadata.DurationSeconds = end.Sub(r.metadata.ScanStarted).Seconds()
	doc := document{Metadata: r.metadata, Findings: slices.Clone(r.findings)}
	r.mu.Unlock()

	if doc.Findings == nil {
		doc.Findings = []Finding{}
	}
	if err := jsonutil.WriteFile(path, doc); err != nil {
		return fmt.Errorf("report: export %s: %w", path, err)
	}
	r.logger.Info("report exported",
		slog.String("path", path),
		slog.Int("findings", len(doc.Findings)),
		slog.Float64("duration_seconds", doc.Metadata.DurationSeconds),
	)
	return nil
}

// Load reads a report from path without merging it into anything.
func Load(path string) (Metadata, []Finding, error) {
	var doc document
	if err := jsonutil.ReadFile(path, &doc); err != nil {
		return Metadata{}, nil, fmt.Errorf("report: load %s: %w", path, err)
	}
	return doc.Metadata, doc.Findings, nil
}

func (r *Report) index(key string) int {
	return slices.IndexFunc(r.findings, func(f Finding) bool { return f.Key() == key })
}
