// Package replay drives a tracked document through a scripted sequence of user
// actions, so form analytics can be exercised without a browser.
package replay

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidStep   = errors.New("invalid step")
	ErrUnknownTarget = errors.New("unknown target")
)

// Step actions.
const (
	ActionSet    = "set"
	ActionCheck  = "check"
	ActionSubmit = "submit"
	ActionInsert = "insert"
)

// Script is a page plus the actions to apply to it, in order.
type Script struct {
	URL   string `yaml:"url" json:"url"`
	HTML  string `yaml:"html" json:"html"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one user action. Form and Field address elements by form id and
// field name; an empty Form searches the whole body. Parent is an element id
// for inserts, empty meaning body.
type Step struct {
	Action  string `yaml:"action" json:"action"`
	Form    string `yaml:"form,omitempty" json:"form,omitempty"`
	Field   string `yaml:"field,omitempty" json:"field,omitempty"`
	Value   string `yaml:"value,omitempty" json:"value,omitempty"`
	Checked bool   `yaml:"checked,omitempty" json:"checked,omitempty"`
	Parent  string `yaml:"parent,omitempty" json:"parent,omitempty"`
	HTML    string `yaml:"html,omitempty" json:"html,omitempty"`
}

// Load reads a YAML (or JSON) script from path.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := script.Validate(); err != nil {
		return Script{}, err
	}
	return script, nil
}

// Validate checks that every step carries the fields its action needs.
func (s Script) Validate() error {
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Action {
	case ActionSet, ActionCheck:
		if s.Field == "" {
			return fmt.Errorf("%w: %s requires field", ErrInvalidStep, s.Action)
		}
	case ActionSubmit:
		if s.Form == "" {
			return fmt.Errorf("%w: submit requires form", ErrInvalidStep)
		}
	case ActionInsert:
		if s.HTML == "" {
			return fmt.Errorf("%w: insert requires html", ErrInvalidStep)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidStep, s.Action)
	}
	return nil
}
