package livehydrate

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/livefir/livehydrate/internal/lifecycle"
	"github.com/livefir/livehydrate/internal/sanitize"
	"github.com/livefir/livehydrate/internal/slotconfig"
)

// Config holds the engine settings. It is usually loaded from YAML.
type Config struct {
	// SlotTag is the tag name of slot declarations.
	SlotTag string `yaml:"slot_tag" validate:"required,lowercase,excludesall= <>/\"'="`

	// BindingTag is the tag name of scalar bindings.
	BindingTag string `yaml:"binding_tag" validate:"required,lowercase,excludesall= <>/\"'=,nefield=SlotTag"`

	// ExtraTags and ExtraAttributes extend the sanitizer allow-list.
	ExtraTags       []string `yaml:"extra_tags,omitempty" validate:"dive,required,lowercase,excludesall= <>/\"'="`
	ExtraAttributes []string `yaml:"extra_attributes,omitempty" validate:"dive,required,lowercase,excludesall= <>/\"'=,ne=data-slot-id"`

	// MountClass is the class of widget mount points; EmptyClass the class
	// of the empty block left by unknown or failed widgets.
	MountClass string `yaml:"mount_class" validate:"required"`
	EmptyClass string `yaml:"empty_class" validate:"required"`

	// ConfigCacheSize bounds the slot config parse cache. 0 disables it.
	ConfigCacheSize int `yaml:"config_cache_size" validate:"gte=0"`

	// Minify makes HTML() return minified markup.
	Minify bool `yaml:"minify,omitempty"`

	// TraceDB, when set, is a SQLite file stage events are recorded to.
	TraceDB string `yaml:"trace_db,omitempty"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		SlotTag:         sanitize.DefaultSlotTag,
		BindingTag:      sanitize.DefaultBindingTag,
		MountClass:      lifecycle.DefaultMountClass,
		EmptyClass:      lifecycle.DefaultEmptyClass,
		ConfigCacheSize: slotconfig.DefaultCacheSize,
	}
}

// LoadConfig loads the configuration from path.
// If the file doesn't exist, returns a default config
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields missing from the file keep their defaults.
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the config. Errors are returned as a MultiError.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		if fields := ValidationToMultiError(err); len(fields) > 0 {
			return fields
		}
		return err
	}
	return nil
}
