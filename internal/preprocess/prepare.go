package preprocess

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"modechoice-env/internal/table"
	"modechoice-env/internal/trajectory"
)

type Options struct {
	// MinTripsPerDay is carried for compatibility with existing pipelines but
	// is not applied: person-days are never filtered by trip count.
	MinTripsPerDay int
	// DropColumns are removed together with the geometry columns.
	DropColumns []string
	// MaxMissingRatio drops feature columns with a larger share of missing cells.
	MaxMissingRatio float64
}

func DefaultOptions() Options {
	return Options{MinTripsPerDay: 500, MaxMissingRatio: 0.1}
}

// CellError reports a feature or mode cell that is present but not numeric.
type CellError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("row %d column %q: invalid value %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

type tripRow struct {
	idx      int
	person   string
	day      string
	origin   string
	originAt time.Time
	originOK bool
}

func (r tripRow) personDay() (string, bool) {
	if table.IsMissing(r.person) || r.day == "" {
		return "", false
	}
	return r.person + r.day, true
}

// Prepare turns a trip table into person-day trajectories with globally
// z-scored features.
func Prepare(t *table.Table, opts Options) (*trajectory.Dataset, error) {
	if opts.MinTripsPerDay > 0 {
		log.Printf("min trips per day (%d) is not applied as a filter", opts.MinTripsPerDay)
	}
	t = t.Drop(lo.Uniq(append(append([]string{}, GeometryColumns...), opts.DropColumns...))...)

	schema, err := ResolveSchema(t)
	if err != nil {
		return nil, err
	}
	rows, err := sortedRows(t)
	if err != nil {
		return nil, err
	}
	log.Printf("dataset raw: %d rows", len(rows))
	log.Printf("included modes: %v", schema.Modes)

	features := keepAvailable(t, schema.Features, opts.MaxMissingRatio)
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: all exceed missing ratio %.2f", ErrNoFeatureColumns, opts.MaxMissingRatio)
	}
	if dropped := len(schema.Features) - len(features); dropped > 0 {
		log.Printf("dropped %d feature columns with more than %.0f%% missing values", dropped, opts.MaxMissingRatio*100)
	}

	nf, nm := len(features), len(schema.Modes)
	var (
		keys    []string
		featBuf []float64
		modeBuf []float64
	)
	for _, r := range rows {
		key, ok := r.personDay()
		if !ok {
			continue
		}
		fv, ok, err := parseCells(t, r.idx, features)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		mv, ok, err := parseCells(t, r.idx, schema.Modes)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		keys = append(keys, key)
		featBuf = append(featBuf, fv...)
		modeBuf = append(modeBuf, mv...)
	}
	log.Printf("dataset after dropping missing values: %d rows", len(keys))

	norm := normalize(featBuf, len(keys), nf)
	for _, i := range norm.Degenerate() {
		log.Printf("feature %q has zero or undefined variance; normalized values are not finite", features[i])
	}

	groups := make(map[string][]int)
	for i, k := range keys {
		groups[k] = append(groups[k], i)
	}
	order := lo.Keys(groups)
	sort.Strings(order)

	ds := &trajectory.Dataset{
		Features:     features,
		Modes:        schema.Modes,
		Norm:         norm,
		Trajectories: make([]trajectory.Trajectory, 0, len(order)),
	}
	for _, k := range order {
		idx := groups[k]
		states := make([]float64, 0, len(idx)*nf)
		actions := make([]float64, 0, len(idx)*nm)
		rewards := make([]float64, len(idx))
		for j, i := range idx {
			states = append(states, featBuf[i*nf:(i+1)*nf]...)
			actions = append(actions, modeBuf[i*nm:(i+1)*nm]...)
			rewards[j] = 1
		}
		ds.Trajectories = append(ds.Trajectories, trajectory.Trajectory{
			Key:     k,
			States:  mat.NewDense(len(idx), nf, states),
			Actions: mat.NewDense(len(idx), nm, actions),
			Rewards: rewards,
		})
	}
	log.Printf("built %d person-day trajectories", len(ds.Trajectories))
	return ds, nil
}

// sortedRows orders rows by person, calendar day and origin time. Rows
// without a destination time sort last within their person, and origin
// times that do not parse sort after those that do. A destination cell that
// is present but not a timestamp is an error.
func sortedRows(t *table.Table) ([]tripRow, error) {
	rows := make([]tripRow, t.Len())
	for i := range rows {
		r := tripRow{
			idx:    i,
			person: strings.TrimSpace(t.Cell(i, ColPersonID)),
			origin: strings.TrimSpace(t.Cell(i, ColOrigin)),
		}
		if raw := t.Cell(i, ColDestination); !table.IsMissing(raw) {
			dest, ok := parseTimestamp(raw)
			if !ok {
				return nil, &CellError{Row: i, Column: ColDestination, Value: raw, Err: ErrInvalidTimestamp}
			}
			r.day = dest.Format("2006-01-02")
		}
		r.originAt, r.originOK = parseTimestamp(r.origin)
		rows[i] = r
	}
	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if ra.person != rb.person {
			return ra.person < rb.person
		}
		if ra.day != rb.day {
			if ra.day == "" || rb.day == "" {
				return rb.day == ""
			}
			return ra.day < rb.day
		}
		if ra.originOK != rb.originOK {
			return ra.originOK
		}
		if ra.originOK {
			return ra.originAt.Before(rb.originAt)
		}
		return ra.origin < rb.origin
	})
	return rows, nil
}

// keepAvailable returns the feature columns whose missing ratio over all
// rows does not exceed maxMissing.
func keepAvailable(t *table.Table, features []string, maxMissing float64) []string {
	if t.Len() == 0 {
		return features
	}
	return lo.Filter(features, func(c string, _ int) bool {
		missing := 0
		for r := 0; r < t.Len(); r++ {
			if table.IsMissing(t.Cell(r, c)) {
				missing++
			}
		}
		return float64(missing)/float64(t.Len()) <= maxMissing
	})
}

// parseCells returns ok=false when any cell is missing.
func parseCells(t *table.Table, r int, cols []string) ([]float64, bool, error) {
	out := make([]float64, len(cols))
	for j, c := range cols {
		raw := t.Cell(r, c)
		if table.IsMissing(raw) {
			return nil, false, nil
		}
		v, err := parseNumber(raw)
		if err != nil {
			return nil, false, &CellError{Row: r, Column: c, Value: raw, Err: err}
		}
		out[j] = v
	}
	return out, true, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// normalize z-scores the row-major buffer in place with the sample standard
// deviation and returns the parameters. Zero variance is not guarded.
func normalize(buf []float64, n, nf int) trajectory.Norm {
	norm := trajectory.Norm{Mean: make([]float64, nf), Std: make([]float64, nf)}
	col := make([]float64, n)
	for j := 0; j < nf; j++ {
		if n == 0 {
			norm.Mean[j], norm.Std[j] = math.NaN(), math.NaN()
			continue
		}
		for i := 0; i < n; i++ {
			col[i] = buf[i*nf+j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		norm.Mean[j], norm.Std[j] = mean, std
		for i := 0; i < n; i++ {
			buf[i*nf+j] = (buf[i*nf+j] - mean) / std
		}
	}
	return norm
}
