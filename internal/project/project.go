package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/lamap-cli/internal/sample"
	"github.com/KaramelBytes/lamap-cli/internal/utils"
	"github.com/google/uuid"
)

// ErrSampleNotFound is returned when a name or ID matches no registered sample.
var ErrSampleNotFound = errors.New("sample not found in project")

// Project represents a lamap project persisted on disk.
type Project struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Samples     map[string]*SampleRef `json:"samples"`
	Config      *ProjectConfig        `json:"config"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`

	// Not serialized: on-disk location of the project.json
	rootDir string `json:"-"`
}

// ProjectConfig overrides global processing defaults for one project.
type ProjectConfig struct {
	NegativeMethod string `json:"negative_method,omitempty"`
	OutlierMethod  string `json:"outlier_method,omitempty"`
	ClusterMethod  string `json:"cluster_method,omitempty"`
	ClusterK       int    `json:"cluster_k,omitempty"`
	XColumn        string `json:"x_column,omitempty"`
	YColumn        string `json:"y_column,omitempty"`
}

// NewProject constructs an in-memory project. Call Save() to persist.
func NewProject(name, description, rootDir string) *Project {
	return &Project{
		Name:        name,
		Description: description,
		Samples:     make(map[string]*SampleRef),
		// Leave Config fields empty to inherit from global defaults unless explicitly set per project.
		Config:    &ProjectConfig{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		rootDir:   rootDir,
	}
}

// LoadProject loads a project.json from the provided directory.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, utils.ProjectFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if p.Samples == nil {
		p.Samples = make(map[string]*SampleRef)
	}
	if p.Config == nil {
		p.Config = &ProjectConfig{}
	}
	p.rootDir = dir
	return &p, nil
}

// RootDir returns the on-disk project directory path.
func (p *Project) RootDir() string { return p.rootDir }

// Save writes project.json using atomic write.
func (p *Project) Save() error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	if err := utils.EnsureDir(p.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(p.rootDir, utils.ProjectFileName), data)
}

// AddSample loads a map to validate it and registers it in the project.
func (p *Project) AddSample(path, description string, opt sample.LoadOptions) (*SampleRef, error) {
	s, err := sample.Load(path, opt)
	if err != nil {
		return nil, fmt.Errorf("load sample: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	ref := &SampleRef{
		ID:          uuid.NewString(),
		Path:        abs,
		Name:        s.Name,
		Description: description,
		AddedAt:     time.Now(),
	}
	ref.refresh(s)
	if p.Samples == nil {
		p.Samples = make(map[string]*SampleRef)
	}
	p.Samples[ref.ID] = ref
	p.UpdatedAt = time.Now()
	return ref, nil
}

func (r *SampleRef) refresh(s *sample.Sample) {
	r.Rows = s.Rows()
	r.Analytes = s.Analytes()
	r.Attrs = s.AttrSnapshot()
}

// FindSample looks a sample up by ID, ID prefix, or file name.
func (p *Project) FindSample(key string) (*SampleRef, error) {
	if r, ok := p.Samples[key]; ok {
		return r, nil
	}
	var hits []*SampleRef
	for _, id := range p.SampleIDs() {
		r := p.Samples[id]
		if strings.HasPrefix(r.ID, key) || r.Name == key || strings.TrimSuffix(r.Name, filepath.Ext(r.Name)) == key {
			hits = append(hits, r)
		}
	}
	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, key)
	case 1:
		return hits[0], nil
	}
	return nil, fmt.Errorf("sample %q is ambiguous (%d matches)", key, len(hits))
}

// SampleIDs returns sample IDs in a deterministic order.
func (p *Project) SampleIDs() []string {
	ids := make([]string, 0, len(p.Samples))
	for id := range p.Samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordStep appends a processing step to a sample's history and refreshes
// its cached column metadata when the processed sample is given.
func (p *Project) RecordStep(id string, step Step, s *sample.Sample) error {
	r, ok := p.Samples[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSampleNotFound, id)
	}
	if step.At.IsZero() {
		step.At = time.Now()
	}
	r.History = append(r.History, step)
	if s != nil {
		r.refresh(s)
	}
	p.UpdatedAt = time.Now()
	return nil
}

// LoadSamples reads every registered map into store, applying the column
// attributes recorded for each sample.
func (p *Project) LoadSamples(store *sample.Store, opt sample.LoadOptions) error {
	for _, id := range p.SampleIDs() {
		r := p.Samples[id]
		opt.Attrs = r.Attrs
		s, err := sample.Load(r.Path, opt)
		if err != nil {
			return fmt.Errorf("sample %s: %w", r.Name, err)
		}
		s.ID = r.ID
		store.Add(s)
	}
	return nil
}

// Overview renders the project contents as markdown.
func (p *Project) Overview() (string, error) {
	if p == nil {
		return "", errors.New("project is nil")
	}
	var sb strings.Builder
	sb.WriteString("[PROJECT]\n")
	sb.WriteString(p.Name)
	if p.Description != "" {
		sb.WriteString(" (")
		sb.WriteString(p.Description)
		sb.WriteString(")")
	}
	sb.WriteString("\n\n[SAMPLES]\n")
	if len(p.Samples) == 0 {
		sb.WriteString("(none)\n")
		return sb.String(), nil
	}
	for _, id := range p.SampleIDs() {
		r := p.Samples[id]
		sb.WriteString(fmt.Sprintf("--- Sample: %s [%s] ---\n", r.Name, shortID(r.ID)))
		if r.Description != "" {
			sb.WriteString(r.Description)
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("pixels %d, analytes %d: %s\n", r.Rows, len(r.Analytes), strings.Join(r.Analytes, ", ")))
		for _, st := range r.History {
			sb.WriteString(fmt.Sprintf("  • %s %s", st.At.Format("2006-01-02 15:04"), st.Command))
			if st.Detail != "" {
				sb.WriteString(" (" + st.Detail + ")")
			}
			if st.Output != "" {
				sb.WriteString(" -> " + filepath.Base(st.Output))
			}
			sb.WriteString("\n")
		}
		if r.Summary != "" {
			sb.WriteString("summary: " + filepath.Base(r.Summary) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
