package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestName is the per-case manifest filename.
const ManifestName = "case.yaml"

// Discover scans a suite directory for case manifests. Cases come back
// sorted by tier, then name. A directory without a manifest is skipped; a
// manifest that fails to parse or validate is an error, not a skip.
func Discover(dir string) ([]*Case, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read suite dir %s: %w", dir, err)
	}

	var cases []*Case
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		caseDir := filepath.Join(dir, e.Name())
		manifest := filepath.Join(caseDir, ManifestName)
		if _, err := os.Stat(manifest); err != nil {
			continue
		}

		c, err := LoadCase(manifest)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	sort.Slice(cases, func(i, j int) bool {
		if cases[i].Tier != cases[j].Tier {
			return cases[i].Tier < cases[j].Tier
		}
		return cases[i].Name < cases[j].Name
	})
	return cases, nil
}

// LoadCase reads and validates one manifest. The case name defaults to the
// manifest's directory name.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve case dir for %s: %w", path, err)
	}
	c.Dir = dir
	if c.Name == "" {
		c.Name = filepath.Base(dir)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &c, nil
}

// Filter keeps the cases named in the comma-separated list. An empty list
// keeps everything; a name that matches no case is an error so a typo in
// --tests does not silently run nothing.
func Filter(cases []*Case, names string) ([]*Case, error) {
	names = strings.TrimSpace(names)
	if names == "" {
		return cases, nil
	}

	want := make(map[string]bool)
	for _, n := range strings.Split(names, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			want[n] = true
		}
	}

	var out []*Case
	for _, c := range cases {
		if want[c.Name] {
			out = append(out, c)
			delete(want, c.Name)
		}
	}
	if len(want) > 0 {
		var missing []string
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown test case(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Families groups cases by convergence family, preserving discovery order.
func Families(cases []*Case) map[string][]*Case {
	fams := make(map[string][]*Case)
	for _, c := range cases {
		if c.InFamily() {
			fams[c.Family] = append(fams[c.Family], c)
		}
	}
	return fams
}
