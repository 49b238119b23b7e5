// Package suite models validation test cases and discovers them on disk.
//
// A suite directory holds one subdirectory per case, each with a case.yaml
// manifest next to the solver input file it names.
package suite

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds a case that does not set its own.
const DefaultTimeout = time.Hour

// Duration wraps time.Duration for YAML manifests ("10m", "1h30m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Case is one validation test case. Immutable once loaded from discovery.
type Case struct {
	Name       string `yaml:"name"`       // defaults to the case directory name
	Tier       int    `yaml:"tier"`       // ordinal grouping; lower tiers run first
	Executable string `yaml:"executable"` // binary name under the build directory
	Input      string `yaml:"input"`      // input file, relative to the case directory

	// Variable is the snapshot dataset holding the computed field; Reference,
	// when set, names the exact-solution dataset in the same archive.
	Variable  string `yaml:"variable"`
	Reference string `yaml:"reference,omitempty"`

	// Family groups cases that run the same problem at different grid
	// spacings h; the analyzer fits a convergence rate per family.
	Family string  `yaml:"family,omitempty"`
	H      float64 `yaml:"h,omitempty"`

	ExpectedOrder *float64 `yaml:"expected_order,omitempty"`
	L2Tolerance   float64  `yaml:"l2_tolerance,omitempty"`
	MassTolerance float64  `yaml:"mass_tolerance,omitempty"`

	Timeout Duration `yaml:"timeout,omitempty"`
	Ranks   int      `yaml:"ranks,omitempty"` // MPI rank override, 0 = runner default

	// Dir is the absolute case directory, set during discovery.
	Dir string `yaml:"-"`
}

// TimeoutOrDefault returns the case timeout, falling back to DefaultTimeout.
func (c *Case) TimeoutOrDefault() time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout)
	}
	return DefaultTimeout
}

// HasReference reports whether error metrics apply to this case.
func (c *Case) HasReference() bool { return c.Reference != "" }

// HasExpectedOrder reports whether the convergence rate rule applies.
func (c *Case) HasExpectedOrder() bool { return c.ExpectedOrder != nil }

// InFamily reports whether the case contributes to a convergence series.
func (c *Case) InFamily() bool { return c.Family != "" && c.H > 0 }

func (c *Case) validate() error {
	if c.Executable == "" {
		return fmt.Errorf("case %s: executable is required", c.Name)
	}
	if c.Input == "" {
		return fmt.Errorf("case %s: input is required", c.Name)
	}
	if c.Variable == "" {
		return fmt.Errorf("case %s: variable is required", c.Name)
	}
	if c.L2Tolerance < 0 || c.MassTolerance < 0 {
		return fmt.Errorf("case %s: tolerances must be non-negative", c.Name)
	}
	if c.Family != "" && !(c.H > 0) {
		return fmt.Errorf("case %s: family %q needs a positive h", c.Name, c.Family)
	}
	return nil
}
