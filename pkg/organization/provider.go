package organization

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// MemoryProvider keeps organization settings in memory.
type MemoryProvider struct {
	mu   sync.RWMutex
	orgs map[string]*Settings
}

// NewMemoryProvider creates a provider seeded with the given settings.
func NewMemoryProvider(settings ...*Settings) (*MemoryProvider, error) {
	p := &MemoryProvider{orgs: make(map[string]*Settings, len(settings))}
	for _, s := range settings {
		if err := p.Put(s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Put stores or replaces the settings of one organization.
func (p *MemoryProvider) Put(s *Settings) error {
	if s == nil {
		return fmt.Errorf("%w: settings cannot be nil", ErrInvalidSettings)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orgs[s.ID] = cloneSettings(s)
	return nil
}

func (p *MemoryProvider) Get(_ context.Context, orgID string) (*Settings, error) {
	p.mu.RLock()
	s, ok := p.orgs[orgID]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSettings(s), nil
}

// fileDocument is the YAML layout read by FileProvider.
type fileDocument struct {
	Organizations []*Settings `yaml:"organizations"`
}

// FileProvider serves settings loaded from a YAML file. Call Reload to pick up edits.
type FileProvider struct {
	path string
	mem  atomic.Pointer[MemoryProvider]
}

// NewFileProvider reads the YAML file at path.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the file, replacing all settings atomically.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return errors.Join(ErrInvalidSettings, err)
	}
	mem, err := ParseYAML(data)
	if err != nil {
		return err
	}
	p.mem.Store(mem)
	return nil
}

func (p *FileProvider) Get(ctx context.Context, orgID string) (*Settings, error) {
	return p.mem.Load().Get(ctx, orgID)
}

// ParseYAML decodes a settings document into a MemoryProvider.
func ParseYAML(data []byte) (*MemoryProvider, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidSettings, err)
	}
	return NewMemoryProvider(doc.Organizations...)
}

func cloneSettings(s *Settings) *Settings {
	c := *s
	c.Environments = make([]Environment, len(s.Environments))
	for i, env := range s.Environments {
		env.Projects = slices.Clone(env.Projects)
		c.Environments[i] = env
	}
	c.RampUp.Steps = slices.Clone(s.RampUp.Steps)
	return &c
}
