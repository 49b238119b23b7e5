package field

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/sbinet/npyio"
)

// FileSpec describes one snapshot archive to write. All variables share the
// grid. Used to generate reference solutions and test fixtures.
type FileSpec struct {
	Vars    map[string][]float64
	Shape   []int
	Spacing []float64
	Time    float64
	Step    int
}

// WriteFile writes a snapshot archive in the layout Load expects.
func WriteFile(path string, fs FileSpec) error {
	n := 1
	for _, d := range fs.Shape {
		n *= d
	}
	for name, vals := range fs.Vars {
		if len(vals) != n {
			return fmt.Errorf("write snapshot %s: dataset %q has %d samples, shape %v wants %d",
				path, name, len(vals), fs.Shape, n)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	write := func(name string, v interface{}) error {
		w, err := zw.Create(name + ".npy")
		if err != nil {
			return err
		}
		return npyio.Write(w, v)
	}

	for name, vals := range fs.Vars {
		if err := write(name, vals); err != nil {
			return fmt.Errorf("write snapshot %s: dataset %q: %w", path, name, err)
		}
	}

	dims := make([]int64, len(fs.Shape))
	for i, d := range fs.Shape {
		dims[i] = int64(d)
	}
	if err := write("shape", dims); err != nil {
		return fmt.Errorf("write snapshot %s: shape: %w", path, err)
	}
	if err := write("spacing", fs.Spacing); err != nil {
		return fmt.Errorf("write snapshot %s: spacing: %w", path, err)
	}
	if err := write("time", []float64{fs.Time}); err != nil {
		return fmt.Errorf("write snapshot %s: time: %w", path, err)
	}
	if err := write("step", []int64{int64(fs.Step)}); err != nil {
		return fmt.Errorf("write snapshot %s: step: %w", path, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize snapshot %s: %w", path, err)
	}
	return f.Close()
}
