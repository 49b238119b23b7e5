package field

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sbinet/npyio"
)

// ErrDatasetNotFound marks a requested variable that is absent from an
// otherwise readable archive. Callers distinguish this from a malformed file.
var ErrDatasetNotFound = errors.New("dataset not found")

// Load reads the named variable from an .npz snapshot archive.
func Load(path, variable string) (*Snapshot, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer zr.Close()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[strings.TrimSuffix(f.Name, ".npy")] = f
	}

	vf, ok := entries[variable]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s (available: %s)",
			ErrDatasetNotFound, variable, path, strings.Join(datasetNames(entries), ", "))
	}

	snap := &Snapshot{Source: path}
	if err := readFloats(vf, &snap.Values); err != nil {
		return nil, fmt.Errorf("snapshot %s: dataset %q: %w", path, variable, err)
	}

	if sf, ok := entries["shape"]; ok {
		var dims []int64
		if err := readInts(sf, &dims); err != nil {
			return nil, fmt.Errorf("snapshot %s: shape: %w", path, err)
		}
		snap.Shape = make([]int, len(dims))
		for i, d := range dims {
			snap.Shape[i] = int(d)
		}
	} else {
		snap.Shape = []int{len(snap.Values)}
	}

	if sf, ok := entries["spacing"]; ok {
		if err := readFloats(sf, &snap.Spacing); err != nil {
			return nil, fmt.Errorf("snapshot %s: spacing: %w", path, err)
		}
	} else {
		snap.Spacing = ones(len(snap.Shape))
	}

	if tf, ok := entries["time"]; ok {
		var ts []float64
		if err := readFloats(tf, &ts); err != nil {
			return nil, fmt.Errorf("snapshot %s: time: %w", path, err)
		}
		if len(ts) > 0 {
			snap.Time = ts[0]
		}
	}

	if sf, ok := entries["step"]; ok {
		var steps []int64
		if err := readInts(sf, &steps); err != nil {
			return nil, fmt.Errorf("snapshot %s: step: %w", path, err)
		}
		if len(steps) > 0 {
			snap.Step = int(steps[0])
		}
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Datasets lists the variable datasets in an archive, metadata excluded.
func Datasets(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer zr.Close()

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[strings.TrimSuffix(f.Name, ".npy")] = f
	}
	return datasetNames(entries), nil
}

var metaEntries = map[string]bool{"shape": true, "spacing": true, "time": true, "step": true}

func datasetNames(entries map[string]*zip.File) []string {
	var names []string
	for name := range entries {
		if !metaEntries[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func readFloats(f *zip.File, dst *[]float64) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return readNpy(rc, dst)
}

func readInts(f *zip.File, dst *[]int64) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return readNpy(rc, dst)
}

func readNpy(r io.Reader, dst interface{}) error {
	if err := npyio.Read(r, dst); err != nil {
		return fmt.Errorf("parse npy: %w", err)
	}
	return nil
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
