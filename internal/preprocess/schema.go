package preprocess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"modechoice-env/internal/table"
)

const (
	ColPersonID    = "person_id"
	ColOrigin      = "started_at_origin"
	ColDestination = "started_at_destination"

	FeaturePrefix = "feat"
	ModePrefix    = "Mode:"
)

// GeometryColumns are dropped before the schema is resolved.
var GeometryColumns = []string{"geom", "geom_origin", "geom_destination"}

var (
	ErrMissingColumn    = errors.New("required column missing")
	ErrNoFeatureColumns = errors.New("no feature columns")
	ErrNoModeColumns    = errors.New("no mode columns")
)

// Schema names the feature and label columns of a trip table.
type Schema struct {
	Features []string
	Modes    []string
}

// ResolveSchema checks the key columns and selects feature and mode columns
// by prefix, in table order.
func ResolveSchema(t *table.Table) (Schema, error) {
	for _, c := range []string{ColPersonID, ColOrigin, ColDestination} {
		if !t.Has(c) {
			return Schema{}, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	s := Schema{
		Features: lo.Filter(t.Columns, func(c string, _ int) bool { return strings.HasPrefix(c, FeaturePrefix) }),
		Modes:    lo.Filter(t.Columns, func(c string, _ int) bool { return strings.HasPrefix(c, ModePrefix) }),
	}
	if len(s.Modes) == 0 {
		return Schema{}, ErrNoModeColumns
	}
	if len(s.Features) == 0 {
		return Schema{}, ErrNoFeatureColumns
	}
	return s, nil
}
