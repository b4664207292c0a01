// Package content holds the texts and reference data shown on the screening page.
package content

import (
	"bytes"
	_ "embed"
	"log/slog"
	"os"

	"github.com/bchaitanya92/Oral-Cancer-Prediction/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

var ErrInvalidContent = errors.NewSentinel("invalid content")

// ClassPlaceholder is substituted with the predicted class in [Messages.SeedFallback].
const ClassPlaceholder = "{class}"

type Content struct {
	// Descriptions maps an exact predicted class label to its explanation.
	Descriptions        map[string]string `yaml:"descriptions"`
	FallbackDescription string            `yaml:"fallbackDescription"`
	Questions           []string          `yaml:"questions"`
	Messages            Messages          `yaml:"messages"`
	Etiology            []EtiologyRecord  `yaml:"etiology"`
	Prevalence          []RegionStat      `yaml:"prevalence"`
}

type Messages struct {
	MissingImage   string `yaml:"missingImage"`
	AnalysisFailed string `yaml:"analysisFailed"`
	SeedGreeting   string `yaml:"seedGreeting"`
	SeedFallback   string `yaml:"seedFallback"`
	ReplyEmpty     string `yaml:"replyEmpty"`
	ReplyFallback  string `yaml:"replyFallback"`
}

type EtiologyRecord struct {
	Country  string     `yaml:"country" json:"country"`
	Position [2]float64 `yaml:"position" json:"position"`
	Notes    string     `yaml:"notes" json:"notes"`
}

type RegionStat struct {
	Region     string `yaml:"region" json:"region"`
	Percentage int    `yaml:"percentage" json:"percentage"`
}

// Default returns the built-in content.
func Default() *Content {
	c, err := Parse(defaultContent)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads content from the YAML file at path. An empty path returns [Default].
func Load(path string) (*Content, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read content file", slog.String("path", path))
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse content file", slog.String("path", path))
	}
	return c, nil
}

// Parse decodes YAML content. Unknown keys are rejected.
func Parse(data []byte) (*Content, error) {
	var c Content
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(ErrInvalidContent, "decode yaml", slog.String("cause", err.Error()))
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Content) validate() error {
	if len(c.Questions) == 0 {
		return errors.Wrap(ErrInvalidContent, "no questions")
	}
	required := map[string]string{
		"fallbackDescription":     c.FallbackDescription,
		"messages.missingImage":   c.Messages.MissingImage,
		"messages.analysisFailed": c.Messages.AnalysisFailed,
		"messages.seedGreeting":   c.Messages.SeedGreeting,
		"messages.seedFallback":   c.Messages.SeedFallback,
		"messages.replyEmpty":     c.Messages.ReplyEmpty,
		"messages.replyFallback":  c.Messages.ReplyFallback,
	}
	for key, value := range required {
		if value == "" {
			return errors.Wrap(ErrInvalidContent, "missing text", slog.String("key", key))
		}
	}
	return nil
}

// Description returns the explanation for an exact label match or the fallback description.
func (c *Content) Description(label string) string {
	if d, ok := c.Descriptions[label]; ok {
		return d
	}
	return c.FallbackDescription
}
