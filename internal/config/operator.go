package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissingInput is returned when a required input file does not exist
var ErrMissingInput = errors.New("missing input")

// AgencyConfig describes the operator published as the feed's agency
type AgencyConfig struct {
	ID        string `yaml:"id" validate:"required"`
	Name      string `yaml:"name" validate:"required"`
	URL       string `yaml:"url" validate:"required,url"`
	Phone     string `yaml:"phone"`
	Email     string `yaml:"email" validate:"omitempty,email"`
	FareURL   string `yaml:"fare_url" validate:"omitempty,url"`
	Color     string `yaml:"color" validate:"omitempty,hexadecimal,len=6"`
	TextColor string `yaml:"text_color" validate:"omitempty,hexadecimal,len=6"`
}

// FeedInfoConfig describes the feed publisher
type FeedInfoConfig struct {
	PublisherName string `yaml:"publisher_name"`
	PublisherURL  string `yaml:"publisher_url" validate:"omitempty,url"`
	Lang          string `yaml:"lang"`
	ContactEmail  string `yaml:"contact_email" validate:"omitempty,email"`
}

// ShapesConfig points the shape matcher at its geometry source
type ShapesConfig struct {
	OSMPath string `yaml:"osm_path"`
}

// OutputConfig names the published archive
type OutputConfig struct {
	FeedName string `yaml:"feed_name"`
}

// ToolsConfig names the post-processing binaries. Empty disables a tool.
type ToolsConfig struct {
	GTFSClean string `yaml:"gtfsclean"`
	Pfaedle   string `yaml:"pfaedle"`
}

// Operator is the operator document
type Operator struct {
	Agency         AgencyConfig    `yaml:"operator" validate:"required"`
	Timezone       string          `yaml:"timezone" validate:"required"`
	Feed           FeedInfoConfig  `yaml:"feed"`
	Stations       []string        `yaml:"stations" validate:"required,min=1,dive,required"`
	Products       map[string]bool `yaml:"products"`
	Shapes         ShapesConfig    `yaml:"shapes"`
	NamePriority   []string        `yaml:"name_priority"`
	StopQualifiers []string        `yaml:"stop_qualifiers"`
	Output         OutputConfig    `yaml:"output"`
	Tools          ToolsConfig     `yaml:"tools"`

	location *time.Location
}

// DefaultProducts requests rail products only
var DefaultProducts = map[string]bool{
	"nationalExpress": true,
	"national":        true,
	"regionalExpress": true,
	"regional":        true,
	"suburban":        true,
	"bus":             false,
	"ferry":           false,
	"subway":          false,
	"tram":            false,
	"taxi":            false,
}

// LoadOperator reads, defaults and validates the operator document at path
func LoadOperator(path string) (*Operator, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: operator document %s", ErrMissingInput, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read operator document: %w", err)
	}

	var op Operator
	if err := yaml.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to parse operator document: %w", err)
	}

	v := validator.New()
	if err := v.Struct(op); err != nil {
		return nil, fmt.Errorf("invalid operator document: %w", err)
	}

	op.location, err = time.LoadLocation(op.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", op.Timezone, err)
	}

	if len(op.Products) == 0 {
		op.Products = DefaultProducts
	}
	if len(op.NamePriority) == 0 {
		op.NamePriority = []string{"name:sr-Latn", "name:en", "name"}
	}
	if op.StopQualifiers == nil {
		op.StopQualifiers = []string{"stajaliste"}
	}
	if op.Output.FeedName == "" {
		op.Output.FeedName = op.Agency.ID + ".gtfs.zip"
	}

	return &op, nil
}

// Location returns the feed timezone
func (o *Operator) Location() *time.Location {
	if o.location == nil {
		return time.UTC
	}
	return o.location
}

// RequireFile returns ErrMissingInput when path does not exist
func RequireFile(path, what string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s %s", ErrMissingInput, what, path)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return nil
}
