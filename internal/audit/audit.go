// Package audit persists decision outcomes and agent reports as immutable
// per-event JSON files.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ShayCichocki/boardroom/pkg/models"
)

// Subdirectories created under the audit root.
const (
	DecisionsDir = "decisions"
	ProjectsDir  = "projects"
)

// Kind selects which trail List reads.
type Kind string

const (
	KindDecision Kind = "decision"
	KindReport   Kind = "report"
)

// DecisionRecord is the persisted outcome of one decision request.
type DecisionRecord struct {
	ID                string                `json:"id"`
	Type              string                `json:"type"`
	Data              map[string]any        `json:"data,omitempty"`
	RequesterID       string                `json:"requester_id"`
	Priority          models.Priority       `json:"priority"`
	Timeout           time.Duration         `json:"timeout"`
	Status            models.DecisionStatus `json:"status"`
	Result            any                   `json:"result,omitempty"`
	Error             string                `json:"error,omitempty"`
	DecisionMaker     string                `json:"decision_maker,omitempty"`
	DecisionMakerType string                `json:"decision_maker_type,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	ResolvedAt        time.Time             `json:"resolved_at"`
	Duration          time.Duration         `json:"duration"`
}

// NewDecisionRecord builds a record from a terminal request.
func NewDecisionRecord(req *models.DecisionRequest, makerType string, duration time.Duration) DecisionRecord {
	return DecisionRecord{
		ID:                req.ID,
		Type:              req.Type,
		Data:              req.Data,
		RequesterID:       req.RequesterID,
		Priority:          req.Priority,
		Timeout:           req.Timeout,
		Status:            req.Status,
		Result:            req.Result,
		Error:             req.Error,
		DecisionMaker:     req.DecisionMaker,
		DecisionMakerType: makerType,
		CreatedAt:         req.CreatedAt,
		ResolvedAt:        req.ResolvedAt,
		Duration:          duration,
	}
}

// Sink accepts audit records. Writes are best effort: callers log failures
// and carry on.
type Sink interface {
	WriteDecision(rec DecisionRecord) error
	WriteReport(r models.Report) error
}

// FileSink writes one JSON file per record under a root directory.
type FileSink struct {
	root string
}

// NewFileSink creates the root, decisions/ and projects/ directories.
func NewFileSink(root string) (*FileSink, error) {
	for _, dir := range []string{root, filepath.Join(root, DecisionsDir), filepath.Join(root, ProjectsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create audit directory %s: %w", dir, err)
		}
	}
	return &FileSink{root: root}, nil
}

// Root returns the audit root directory.
func (s *FileSink) Root() string {
	return s.root
}

// WriteDecision writes rec to decisions/, keyed by requester and decision type.
func (s *FileSink) WriteDecision(rec DecisionRecord) error {
	return s.write(DecisionsDir, rec.RequesterID, rec.Type, rec)
}

// WriteReport writes r to projects/, keyed by agent and report type.
func (s *FileSink) WriteReport(r models.Report) error {
	return s.write(ProjectsDir, r.AgentID, r.Type, r)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitize makes a value safe to use as a file name component.
func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "unknown"
	}
	return s
}

// FileName returns <agent>_<type>_<timestamp>_<ulid>.json. The ULID suffix
// keeps names unique when two records share a timestamp.
func FileName(agentID, recordType string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.json",
		sanitize(agentID),
		sanitize(recordType),
		t.UTC().Format("20060102T150405.000000000Z"),
		ulid.Make().String(),
	)
}

func (s *FileSink) write(subdir, agentID, recordType string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	path := filepath.Join(s.root, subdir, FileName(agentID, recordType, time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create audit record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write audit record %s: %w", path, err)
	}
	return f.Close()
}

// List returns the record files of the given kind, oldest first.
func (s *FileSink) List(kind Kind) ([]string, error) {
	dir := DecisionsDir
	if kind == KindReport {
		dir = ProjectsDir
	}

	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}

	type item struct {
		path string
		ts   string
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		items = append(items, item{path: filepath.Join(s.root, dir, e.Name()), ts: sortKey(e.Name())})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ts < items[j].ts })

	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.path
	}
	return paths, nil
}

// sortKey extracts "<timestamp>_<ulid>" from a record file name.
func sortKey(name string) string {
	name = strings.TrimSuffix(name, ".json")
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return name
	}
	return parts[len(parts)-2] + "_" + parts[len(parts)-1]
}

// ReadDecision loads a decision record file.
func ReadDecision(path string) (*DecisionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decision record: %w", err)
	}
	var rec DecisionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse decision record %s: %w", path, err)
	}
	return &rec, nil
}

// ReadReport loads a report file.
func ReadReport(path string) (*models.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r models.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

// MemorySink keeps records in memory, in write order.
type MemorySink struct {
	mu        sync.Mutex
	decisions []DecisionRecord
	reports   []models.Report
	// Err, when set, is returned from every write after the record is kept.
	Err error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// WriteDecision implements Sink.
func (m *MemorySink) WriteDecision(rec DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, rec)
	return m.Err
}

// WriteReport implements Sink.
func (m *MemorySink) WriteReport(r models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return m.Err
}

// Decisions returns a copy of the recorded decisions.
func (m *MemorySink) Decisions() []DecisionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DecisionRecord(nil), m.decisions...)
}

// Reports returns a copy of the recorded reports.
func (m *MemorySink) Reports() []models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Report(nil), m.reports...)
}
