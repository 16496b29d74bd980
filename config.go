package stagepipe

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding a configuration file.
const EnvPrefix = "STAGEPIPE"

// Config describes a pipeline. It is usually loaded from a file with LoadConfig:
//
//	name: photos
//	stages:
//	  - name: download
//	    workers: 3
//	    queue_capacity: 100
//	  - name: resize
//	    workers: 4
//	    queue_capacity: 100
type Config struct {
	Name         string        `mapstructure:"name" yaml:"name"`
	SinkCapacity int           `mapstructure:"sink_capacity" yaml:"sink_capacity" validate:"gt=0"`
	Stages       []StageConfig `mapstructure:"stages" yaml:"stages" validate:"required,min=1,dive"`
}

// StageConfig describes one stage of a pipeline.
type StageConfig struct {
	Name          string `mapstructure:"name" yaml:"name" validate:"required"`
	Workers       int    `mapstructure:"workers" yaml:"workers" validate:"gt=0"`
	QueueCapacity int    `mapstructure:"queue_capacity" yaml:"queue_capacity" validate:"gt=0"`
}

// ApplyDefaults names the anonymous stages and sizes the terminal queue like the last stage queue.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "pipeline"
	}
	for i := range c.Stages {
		if c.Stages[i].Name == "" {
			c.Stages[i].Name = fmt.Sprintf("stage-%d", i)
		}
	}
	if c.SinkCapacity == 0 && len(c.Stages) > 0 {
		c.SinkCapacity = c.Stages[len(c.Stages)-1].QueueCapacity
	}
}

// Validate checks worker counts and queue capacities are positive and stage names unique.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	names := lo.Map(c.Stages, func(s StageConfig, _ int) string { return s.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return fmt.Errorf("%w: duplicated stage names %v", ErrInvalidConfig, dup)
	}
	if lo.Contains(names, SinkStageName) {
		return fmt.Errorf("%w: stage name %q is reserved", ErrInvalidConfig, SinkStageName)
	}
	return nil
}

// LoadConfig reads a configuration file (any format viper supports) and applies the
// STAGEPIPE_* environment overrides, e.g. STAGEPIPE_SINK_CAPACITY=10.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only applies to known keys
	_ = v.BindEnv("name")
	_ = v.BindEnv("sink_capacity")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromConfig builds a pipeline from cfg, taking each stage transform from transforms by stage name.
func FromConfig[T any](cfg *Config, transforms map[string]Transform[T, T], opts ...Option) (*Pipeline[T], error) {
	specs, err := Specs(cfg, transforms)
	if err != nil {
		return nil, err
	}
	return New(cfg.Name, specs, append([]Option{WithSinkCapacity(cfg.SinkCapacity)}, opts...)...)
}

// Specs turns cfg into stage specs.
func Specs[T any](cfg *Config, transforms map[string]Transform[T, T]) ([]StageSpec[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	specs := make([]StageSpec[T], 0, len(cfg.Stages))
	for _, sc := range cfg.Stages {
		tr, ok := transforms[sc.Name]
		if !ok {
			return nil, fmt.Errorf("%w: no transform for stage %q", ErrInvalidConfig, sc.Name)
		}
		specs = append(specs, StageSpec[T]{
			Name:          sc.Name,
			Workers:       sc.Workers,
			QueueCapacity: sc.QueueCapacity,
			Transform:     tr,
		})
	}
	return specs, nil
}
