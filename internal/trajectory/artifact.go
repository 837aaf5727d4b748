package trajectory

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"
)

const artifactVersion = 1

// artifact is the on-disk layout: matrices are flattened row-major so the
// file does not depend on gonum's binary format.
type artifact struct {
	Version      int
	Features     []string
	Modes        []string
	Mean         []float64
	Std          []float64
	Trajectories []storedTrajectory
}

type storedTrajectory struct {
	Key     string
	Steps   int
	States  []float64
	Actions []float64
	Rewards []float64
}

// FileName returns the conventional artifact name for a dataset part.
func FileName(dir, name, part string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.gob.zst", name, part))
}

// Save writes the dataset as a zstd-compressed gob stream.
func Save(path string, d *Dataset) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if err := Encode(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func Encode(w io.Writer, d *Dataset) error {
	a := artifact{
		Version:  artifactVersion,
		Features: d.Features,
		Modes:    d.Modes,
		Mean:     d.Norm.Mean,
		Std:      d.Norm.Std,
	}
	a.Trajectories = make([]storedTrajectory, len(d.Trajectories))
	for i, t := range d.Trajectories {
		a.Trajectories[i] = storedTrajectory{
			Key:     t.Key,
			Steps:   t.Len(),
			States:  flatten(t.States),
			Actions: flatten(t.Actions),
			Rewards: t.Rewards,
		}
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(&a); err != nil {
		zw.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	return zw.Close()
}

// Load reads and validates an artifact written by Save.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*Dataset, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var a artifact
	if err := gob.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", a.Version)
	}

	d := &Dataset{
		Features:     a.Features,
		Modes:        a.Modes,
		Norm:         Norm{Mean: a.Mean, Std: a.Std},
		Trajectories: make([]Trajectory, len(a.Trajectories)),
	}
	nf, nm := len(a.Features), len(a.Modes)
	if len(a.Trajectories) > 0 && (nf == 0 || nm == 0) {
		return nil, fmt.Errorf("%w: %d features, %d modes", ErrShapeMismatch, nf, nm)
	}
	for i, st := range a.Trajectories {
		if st.Steps <= 0 || len(st.States) != st.Steps*nf || len(st.Actions) != st.Steps*nm || len(st.Rewards) != st.Steps {
			return nil, fmt.Errorf("%w: stored trajectory %d (%s)", ErrShapeMismatch, i, st.Key)
		}
		d.Trajectories[i] = Trajectory{
			Key:     st.Key,
			States:  mat.NewDense(st.Steps, nf, st.States),
			Actions: mat.NewDense(st.Steps, nm, st.Actions),
			Rewards: st.Rewards,
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
