package annotation

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lewtec/mosaico/internal/domain"
)

// Label formats a previous save can be read as
const (
	LabelFormatAuto    = "auto"
	LabelFormatLabels  = "labels"
	LabelFormatIndices = "indices"
)

type Config struct {
	Meta struct {
		Description string `yaml:"description"`
	} `yaml:"meta"`

	PatchTable   string `yaml:"patch_df"`
	ParentTable  string `yaml:"parent_df"`
	PatchPaths   string `yaml:"patch_paths"`
	ParentPaths  string `yaml:"parent_paths"`
	MetadataPath string `yaml:"metadata_path"`

	// Labels is decoded by hand so that a scalar is rejected instead of coerced
	Labels    []string  `yaml:"-"`
	LabelsRaw yaml.Node `yaml:"labels"`

	AnnotationsDir string             `yaml:"annotations_dir"`
	PatchPathsCol  string             `yaml:"patch_paths_col"`
	LabelCol       string             `yaml:"label_col"`
	ShowContext    bool               `yaml:"show_context"`
	AutoSave       *bool              `yaml:"auto_save"`
	Delimiter      string             `yaml:"delimiter"`
	SortBy         string             `yaml:"sortby"`
	Ascending      *bool              `yaml:"ascending"`
	Username       string             `yaml:"username"`
	TaskName       string             `yaml:"task_name"`
	MinValues      map[string]float64 `yaml:"min_values"`
	MaxValues      map[string]float64 `yaml:"max_values"`
	Surrounding    *int               `yaml:"surrounding"`
	MaxSize        int                `yaml:"max_size"`
	ResizeTo       int                `yaml:"resize_to"`
	LabelFormat    string             `yaml:"label_format"`
	Seed           *uint64            `yaml:"seed"`
}

// AutoSaveEnabled defaults to true
func (c *Config) AutoSaveEnabled() bool {
	return c.AutoSave == nil || *c.AutoSave
}

// SortAscending defaults to true
func (c *Config) SortAscending() bool {
	return c.Ascending == nil || *c.Ascending
}

// Radius is the context radius, 1 unless configured
func (c *Config) Radius() int {
	if c.Surrounding == nil {
		return 1
	}
	return *c.Surrounding
}

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

// NewConfig returns a configuration holding only defaults
func NewConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig reads and validates a YAML session configuration
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil, &domain.InputNotFoundError{Path: filename}
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration, applies defaults and validates it
func ParseConfig(data []byte) (*Config, error) {
	var ret Config
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("while parsing config: %w", err)
	}
	if err := ret.decodeLabels(); err != nil {
		return nil, err
	}
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Config) decodeLabels() error {
	switch c.LabelsRaw.Kind {
	case 0:
		return nil
	case yaml.SequenceNode:
		var labels []string
		if err := c.LabelsRaw.Decode(&labels); err != nil {
			return &domain.SchemaError{Column: "labels", Reason: fmt.Sprintf("labels must be strings: %s", err)}
		}
		c.Labels = labels
		return nil
	default:
		return &domain.ConfigurationError{Option: "labels", Reason: "labels provided must be a list"}
	}
}

func (c *Config) applyDefaults() {
	if c.AnnotationsDir == "" {
		c.AnnotationsDir = "./annotations"
	}
	if c.PatchPathsCol == "" {
		c.PatchPathsCol = "image_path"
	}
	if c.LabelCol == "" {
		c.LabelCol = "label"
	}
	if c.AutoSave == nil {
		c.AutoSave = boolPtr(true)
	}
	if c.Delimiter == "" {
		c.Delimiter = ","
	}
	if c.Ascending == nil {
		c.Ascending = boolPtr(true)
	}
	if c.Username == "" {
		c.Username = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if c.TaskName == "" {
		c.TaskName = "task"
	}
	if c.Surrounding == nil {
		c.Surrounding = intPtr(1)
	}
	if c.MaxSize == 0 {
		c.MaxSize = 1000
	}
	if c.LabelFormat == "" {
		c.LabelFormat = LabelFormatAuto
	}
	c.Labels = uniqueLabels(c.Labels)
}

// Validate checks the options that do not depend on the item table
func (c *Config) Validate() error {
	if _, err := delimiterRune(c.Delimiter); err != nil {
		return err
	}
	for _, label := range c.Labels {
		if label == "" {
			return &domain.SchemaError{Column: "labels", Reason: "labels must not be empty strings"}
		}
	}
	if c.Surrounding != nil && *c.Surrounding < 0 {
		return &domain.ConfigurationError{Option: "surrounding", Reason: "must be a non-negative integer"}
	}
	if c.MaxSize < 0 {
		return &domain.ConfigurationError{Option: "max_size", Reason: "must be a positive number of pixels"}
	}
	if c.ResizeTo < 0 {
		return &domain.ConfigurationError{Option: "resize_to", Reason: "must be a positive number of pixels"}
	}
	switch c.LabelFormat {
	case LabelFormatAuto, LabelFormatLabels, LabelFormatIndices:
	default:
		return &domain.ConfigurationError{Option: "label_format", Reason: fmt.Sprintf("%q is not one of auto, labels, indices", c.LabelFormat)}
	}
	if strings.ContainsAny(c.Username, "#/") {
		return &domain.ConfigurationError{Option: "username", Reason: "must not contain '#' or '/'"}
	}
	return nil
}

func uniqueLabels(labels []string) []string {
	seen := map[string]bool{}
	ret := make([]string, 0, len(labels))
	for _, label := range labels {
		if seen[label] {
			continue
		}
		seen[label] = true
		ret = append(ret, label)
	}
	return ret
}
