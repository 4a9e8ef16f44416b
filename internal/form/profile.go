// internal/form/profile.go
package form

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Field kinds supported by the filler.
const (
	KindText   = "text"
	KindSelect = "select"
)

// FieldSpec describes how to locate a single form field. Selectors are CSS
// candidates tried in order; the first visible match wins.
type FieldSpec struct {
	Selectors []string `yaml:"selectors"`
	Kind      string   `yaml:"kind,omitempty"`
}

// FieldSet holds the locator specs for the four registration fields.
type FieldSet struct {
	Name  FieldSpec `yaml:"name"`
	Email FieldSpec `yaml:"email"`
	Phone FieldSpec `yaml:"phone"`
	Event FieldSpec `yaml:"event"`
}

// SubmitSpec lists the candidate selectors for the form's submit control.
type SubmitSpec struct {
	Selectors []string `yaml:"selectors"`
}

// PhraseSet holds the substrings used to classify the post-submission page.
// All matching is lowercase substring matching.
type PhraseSet struct {
	Success  []string `yaml:"success"`
	Error    []string `yaml:"error"`
	URLHints []string `yaml:"url_hints,omitempty"`
}

// Profile is the externalized lookup table for a registration form. A YAML
// file can override any section; unset sections keep the built-in defaults.
type Profile struct {
	Fields  FieldSet   `yaml:"fields"`
	Submit  SubmitSpec `yaml:"submit"`
	Phrases PhraseSet  `yaml:"phrases"`
}

// DefaultProfile returns the built-in profile. The candidates mirror the
// attribute conventions of common registration forms.
func DefaultProfile() *Profile {
	return &Profile{
		Fields: FieldSet{
			Name: FieldSpec{
				Selectors: []string{`input[name='name']`, `#name`, `input[name='full_name']`, `#full_name`},
				Kind:      KindText,
			},
			Email: FieldSpec{
				Selectors: []string{`input[type='email']`, `input[name='email']`, `#email`},
				Kind:      KindText,
			},
			Phone: FieldSpec{
				Selectors: []string{`input[type='tel']`, `input[name='phone']`, `#phone`, `#phone_number`, `#telephone`, `#mobile`},
				Kind:      KindText,
			},
			Event: FieldSpec{
				Selectors: []string{`select[name='event']`, `#event`},
				Kind:      KindSelect,
			},
		},
		Submit: SubmitSpec{
			Selectors: []string{`button[type='submit']`, `input[type='submit']`, `#submit`, `#register`},
		},
		Phrases: PhraseSet{
			Success:  []string{"success", "thank you", "registered", "confirmation", "submitted", "complete", "received", "congratulations"},
			Error:    []string{"error", "invalid", "required", "missing", "failed", "incorrect", "please", "must", "cannot"},
			URLHints: []string{"success", "thank", "confirm"},
		},
	}
}

// LoadProfile reads a YAML profile from path, layered over the defaults.
// Sections absent from the file keep their default values. Unknown keys are
// rejected so a typo in an override does not silently fall back.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open form profile: %w", err)
	}
	defer f.Close()

	p := DefaultProfile()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("cannot parse form profile '%s': %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid form profile '%s': %w", path, err)
	}
	return p, nil
}

// Validate checks that every locator has at least one candidate and that the
// classification phrase lists are usable.
func (p *Profile) Validate() error {
	fields := []struct {
		name string
		spec FieldSpec
	}{
		{"name", p.Fields.Name},
		{"email", p.Fields.Email},
		{"phone", p.Fields.Phone},
		{"event", p.Fields.Event},
	}
	for _, f := range fields {
		if len(f.spec.Selectors) == 0 {
			return fmt.Errorf("field '%s' has no selector candidates", f.name)
		}
		switch f.spec.Kind {
		case "", KindText, KindSelect:
		default:
			return fmt.Errorf("field '%s' has unknown kind '%s'", f.name, f.spec.Kind)
		}
	}
	if len(p.Submit.Selectors) == 0 {
		return fmt.Errorf("submit control has no selector candidates")
	}
	if len(p.Phrases.Success) == 0 {
		return fmt.Errorf("phrase set has no success phrases")
	}
	if len(p.Phrases.Error) == 0 {
		return fmt.Errorf("phrase set has no error phrases")
	}
	return nil
}
