// Package questionnaire loads the static question content.
package questionnaire

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"vocalsilence/internal/model"
	"vocalsilence/internal/parser"
)

//go:embed default.yaml
var defaultContent []byte

// Dimension is a psychosocial category scored by likert questions
type Dimension struct {
	Name        string `json:"name" bson:"name" yaml:"name"`
	Description string `json:"description" bson:"description" yaml:"description"`
}

// Catalog is the immutable questionnaire content
type Catalog struct {
	Version    string           `json:"version,omitempty" bson:"version,omitempty" yaml:"version,omitempty"`
	Questions  []model.Question `json:"questionnaire" bson:"questionnaire" yaml:"questionnaire"`
	Followups  []model.Question `json:"followups" bson:"followups" yaml:"followups"`
	Origin     []model.Question `json:"origin" bson:"origin" yaml:"origin"`
	Dimensions []Dimension      `json:"dimensions" bson:"dimensions" yaml:"dimensions"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultContent)
}

// DefaultContent returns the raw embedded YAML.
func DefaultContent() []byte {
	return defaultContent
}

// Load reads a YAML or JSON catalog file. An empty path loads the default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questionnaire %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog content. JSON is accepted as YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode questionnaire: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkRequired flags the questions whose ids are listed.
func (c *Catalog) MarkRequired(ids []string) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range c.Questions {
		if set[c.Questions[i].ID] {
			c.Questions[i].Required = true
		}
	}
}

// Validate checks the structural assumptions the state machine relies on.
func (c *Catalog) Validate() error {
	var errs []error
	if len(c.Questions) == 0 {
		errs = append(errs, errors.New("questionnaire has no questions"))
	}
	if len(c.Followups) == 0 {
		errs = append(errs, errors.New("questionnaire has no follow-up questions"))
	}
	if len(c.Origin) != 2 {
		errs = append(errs, fmt.Errorf("origin section needs exactly 2 questions, got %d", len(c.Origin)))
	} else {
		if c.Origin[0].Type != model.QuestionMultipleChoice {
			errs = append(errs, errors.New("first origin question must be multiple choice"))
		}
		if c.Origin[1].Type != model.QuestionText {
			errs = append(errs, errors.New("second origin question must be text"))
		}
	}

	seen := map[string]bool{}
	check := func(section string, qs []model.Question) {
		for i, q := range qs {
			switch {
			case q.ID == "":
				errs = append(errs, fmt.Errorf("%s[%d]: missing id", section, i))
			case seen[q.ID]:
				errs = append(errs, fmt.Errorf("%s[%d]: duplicate id %q", section, i, q.ID))
			}
			seen[q.ID] = true
			if strings.TrimSpace(q.Text) == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: missing question text", section, i))
			}
			switch q.Type {
			case model.QuestionLikert, model.QuestionText:
			case model.QuestionMultipleChoice:
				if len(q.Options) == 0 {
					errs = append(errs, fmt.Errorf("%s[%d]: multiple choice without options", section, i))
				}
			default:
				errs = append(errs, fmt.Errorf("%s[%d]: unknown type %q", section, i, q.Type))
			}
		}
	}
	check("questionnaire", c.Questions)
	check("followups", c.Followups)
	check("origin", c.Origin)
	for _, q := range c.Followups {
		if q.Type != model.QuestionMultipleChoice {
			errs = append(errs, fmt.Errorf("follow-up %s must be multiple choice", q.ID))
		}
	}
	return errors.Join(errs...)
}

// IsTarget reports whether a dimension tag counts toward the assessment.
func (c *Catalog) IsTarget(dimension string) bool {
	n := parser.Normalize(dimension)
	for _, d := range c.Dimensions {
		if parser.Normalize(d.Name) == n {
			return true
		}
	}
	return false
}

// Describe returns the dimension's description, or the name itself.
func (c *Catalog) Describe(dimension string) string {
	n := parser.Normalize(dimension)
	for _, d := range c.Dimensions {
		if parser.Normalize(d.Name) == n && d.Description != "" {
			return d.Description
		}
	}
	return dimension
}

func (c *Catalog) normalize() {
	for _, qs := range [][]model.Question{c.Questions, c.Followups, c.Origin} {
		for i := range qs {
			qs[i].Type = normalizeType(qs[i].Type)
		}
	}
}

func normalizeType(t model.QuestionType) model.QuestionType {
	switch strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(strings.TrimSpace(string(t)))) {
	case "likert", "scale":
		return model.QuestionLikert
	case "multiple choice", "choice", "mcq":
		return model.QuestionMultipleChoice
	case "text", "", "free text", "open":
		return model.QuestionText
	default:
		return t
	}
}
