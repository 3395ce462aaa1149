package organization

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Environment is a deployment target configured for an organization.
type Environment struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description"`

	// Parent is the environment whose feature settings a new environment inherits.
	Parent string `json:"parent,omitempty" yaml:"parent"`

	// DefaultState is the enabled state used when nothing can be inherited.
	DefaultState bool `json:"default_state" yaml:"default_state"`

	// Projects restricts the environment to the listed projects. Empty means all projects.
	Projects []string `json:"projects,omitempty" yaml:"projects"`
}

// RampUpConfig seeds safe-rollout scheduling.
type RampUpConfig struct {
	SnapshotInterval time.Duration `json:"snapshot_interval" yaml:"snapshot_interval"`
	StepInterval     time.Duration `json:"step_interval" yaml:"step_interval"`
	Steps            []float64     `json:"steps,omitempty" yaml:"steps"`
}

// ExperimentSync configures mirroring of feature changes to an external experimentation system.
type ExperimentSync struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url,omitempty" yaml:"url"`
	Secret  string `json:"-" yaml:"secret"`
}

// Integrations groups optional third-party hooks.
type Integrations struct {
	ExperimentSync ExperimentSync `json:"experiment_sync" yaml:"experiment_sync"`
}

// Settings is the organization configuration consumed by feature operations.
type Settings struct {
	ID           string        `json:"id" yaml:"id"`
	Environments []Environment `json:"environments" yaml:"environments"`
	RampUp       RampUpConfig  `json:"ramp_up" yaml:"ramp_up"`
	Integrations Integrations  `json:"integrations" yaml:"integrations"`
}

// DefaultRampUp is applied when an organization leaves ramp-up settings empty.
var DefaultRampUp = RampUpConfig{
	SnapshotInterval: time.Hour,
	StepInterval:     24 * time.Hour,
	Steps:            []float64{10, 25, 50, 75, 100},
}

// EnvironmentIDs returns the configured environment ids in declaration order.
func (s *Settings) EnvironmentIDs() []string {
	ids := make([]string, 0, len(s.Environments))
	for _, env := range s.Environments {
		ids = append(ids, env.ID)
	}
	return ids
}

// Environment looks up an environment by id.
func (s *Settings) Environment(id string) (Environment, bool) {
	for _, env := range s.Environments {
		if env.ID == id {
			return env, true
		}
	}
	return Environment{}, false
}

// HasEnvironment reports whether id is a configured environment.
func (s *Settings) HasEnvironment(id string) bool {
	_, ok := s.Environment(id)
	return ok
}

// EffectiveRampUp returns the ramp-up config with defaults filled in.
func (s *Settings) EffectiveRampUp() RampUpConfig {
	cfg := s.RampUp
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = DefaultRampUp.SnapshotInterval
	}
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = DefaultRampUp.StepInterval
	}
	if len(cfg.Steps) == 0 {
		cfg.Steps = slices.Clone(DefaultRampUp.Steps)
	}
	return cfg
}

// Validate checks ids are present and unique and that parents reference known environments.
func (s *Settings) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: organization id is required", ErrInvalidSettings)
	}
	seen := make(map[string]struct{}, len(s.Environments))
	for _, env := range s.Environments {
		if env.ID == "" {
			return fmt.Errorf("%w: environment id is required", ErrInvalidSettings)
		}
		if _, dup := seen[env.ID]; dup {
			return fmt.Errorf("%w: duplicate environment %q", ErrInvalidSettings, env.ID)
		}
		seen[env.ID] = struct{}{}
	}
	for _, env := range s.Environments {
		if env.Parent == "" {
			continue
		}
		if _, ok := seen[env.Parent]; !ok || env.Parent == env.ID {
			return fmt.Errorf("%w: environment %q has invalid parent %q", ErrInvalidSettings, env.ID, env.Parent)
		}
	}
	if s.Integrations.ExperimentSync.Enabled && s.Integrations.ExperimentSync.URL == "" {
		return fmt.Errorf("%w: experiment sync enabled without url", ErrInvalidSettings)
	}
	return nil
}

// Provider loads organization settings.
type Provider interface {
	// Get returns the settings for the organization or ErrNotFound.
	Get(ctx context.Context, orgID string) (*Settings, error)
}

// Authorizer answers capability checks for the acting user.
type Authorizer interface {
	CanReadSingleProjectResource(project string) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(project string) bool

func (f AuthorizerFunc) CanReadSingleProjectResource(project string) bool {
	return f(project)
}

// AllowAll grants every capability. Used for system actors such as the scheduler.
var AllowAll Authorizer = AuthorizerFunc(func(string) bool { return true })

// ProjectAuthorizer allows resources without a project and resources in the listed projects.
func ProjectAuthorizer(projects ...string) Authorizer {
	allowed := slices.Clone(projects)
	return AuthorizerFunc(func(project string) bool {
		return project == "" || slices.Contains(allowed, project)
	})
}
