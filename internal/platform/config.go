package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigFile is looked up from the working directory upwards.
	ProjectConfigFile = "nodebook.yaml"
	// UserConfigDir is the directory of the user config, relative to home.
	UserConfigDir = ".config/nodebook"
	// UserConfigFile is the file name of the user config.
	UserConfigFile = "config.yaml"
)

// Config is the client configuration file.
type Config struct {
	User    string        `yaml:"user" validate:"required"`
	Adapter string        `yaml:"adapter" validate:"oneof=fs http"`
	FS      FSConfig      `yaml:"fs"`
	HTTP    HTTPConfig    `yaml:"http"`
	Diagram DiagramConfig `yaml:"diagram"`
	Events  EventsConfig  `yaml:"events"`
}

// FSConfig configures the filesystem collaborator.
type FSConfig struct {
	Path string `yaml:"path"`
	// Versioning commits every change with git. Unset means auto-detect.
	Versioning *bool `yaml:"versioning,omitempty"`
}

// HTTPConfig configures the remote collaborator.
type HTTPConfig struct {
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// DiagramConfig configures the diagram controller.
type DiagramConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=0"`
	// Layout overrides the layout derived from the difficulty tier.
	Layout string `yaml:"layout,omitempty" validate:"omitempty,oneof=grid circle breadthfirst cose dagre"`
}

// EventsConfig configures the session event channel.
type EventsConfig struct {
	Buffer int `yaml:"buffer" validate:"gte=0"`
}

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	user := os.Getenv("USER")
	if user == "" {
		user = "local"
	}
	return &Config{
		User:    user,
		Adapter: AdapterFS,
		FS:      FSConfig{Path: "."},
		HTTP:    HTTPConfig{Timeout: 30 * time.Second},
		Diagram: DiagramConfig{PollInterval: 50 * time.Millisecond},
		Events:  EventsConfig{Buffer: 64},
	}
}

// Validate checks field constraints and the adapter-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Adapter == AdapterHTTP && c.HTTP.BaseURL == "" {
		return errors.New("http.base_url is required for the http adapter")
	}
	return nil
}

// Merge overlays the non-zero fields of other.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.User != "" {
		c.User = other.User
	}
	if other.Adapter != "" {
		c.Adapter = other.Adapter
	}
	if other.FS.Path != "" {
		c.FS.Path = other.FS.Path
	}
	if other.FS.Versioning != nil {
		v := *other.FS.Versioning
		c.FS.Versioning = &v
	}
	if other.HTTP.BaseURL != "" {
		c.HTTP.BaseURL = other.HTTP.BaseURL
	}
	if other.HTTP.Token != "" {
		c.HTTP.Token = other.HTTP.Token
	}
	if other.HTTP.Timeout != 0 {
		c.HTTP.Timeout = other.HTTP.Timeout
	}
	if other.Diagram.PollInterval != 0 {
		c.Diagram.PollInterval = other.Diagram.PollInterval
	}
	if other.Diagram.Layout != "" {
		c.Diagram.Layout = other.Diagram.Layout
	}
	if other.Events.Buffer != 0 {
		c.Events.Buffer = other.Events.Buffer
	}
}

// Options translates the configuration into backend options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithAdapter(c.Adapter),
		WithEventBuffer(c.Events.Buffer),
		WithToken(c.HTTP.Token),
		WithTimeout(c.HTTP.Timeout),
	}
	if c.FS.Versioning != nil {
		opts = append(opts, WithVersioning(*c.FS.Versioning))
	}
	return opts
}

// URI returns the adapter-specific location: a path or a base URL.
func (c *Config) URI() string {
	if c.Adapter == AdapterHTTP {
		return c.HTTP.BaseURL
	}
	return c.FS.Path
}

// LoadFile reads a single configuration file. Fields it leaves out stay zero.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Loader loads configuration with layered precedence.
type Loader struct {
	logger *slog.Logger
	// HomeDir and WorkDir default to the user's home and the working directory.
	HomeDir string
	WorkDir string
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load merges, in order: defaults, the user config
// (~/.config/nodebook/config.yaml), the project config (nodebook.yaml in the
// working directory or a parent) and explicit, if non-empty. A relative
// fs.path from the project config is resolved against that file's directory.
func (l *Loader) Load(explicit string) (*Config, error) {
	cfg := DefaultConfig()

	if home := l.homeDir(); home != "" {
		path := filepath.Join(home, UserConfigDir, UserConfigFile)
		if user, err := LoadFile(path); err == nil {
			l.logger.Debug("loaded user config", "path", path)
			cfg.Merge(user)
		} else if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("failed to load user config", "path", path, "error", err)
		}
	}

	if path := l.findProjectConfig(); path != "" {
		project, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if project.FS.Path != "" && !filepath.IsAbs(project.FS.Path) {
			project.FS.Path = filepath.Join(filepath.Dir(path), project.FS.Path)
		}
		l.logger.Debug("loaded project config", "path", path)
		cfg.Merge(project)
	}

	if explicit != "" {
		file, err := LoadFile(explicit)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config", "path", explicit)
		cfg.Merge(file)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) homeDir() string {
	if l.HomeDir != "" {
		return l.HomeDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func (l *Loader) findProjectConfig() string {
	dir := l.WorkDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		if hasFile(dir, ProjectConfigFile) {
			return filepath.Join(dir, ProjectConfigFile)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must not be negative", field))
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
