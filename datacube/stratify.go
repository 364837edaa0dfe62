package datacube

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// stratumRun is one maximal span of the stratified dimension's sorted,
// distinct values for which the set of covering units is constant.
type stratumRun struct {
	values  []float64
	members []bool // indexed by unit position
}

// Stratify partitions the irregular dimension dim so that any two returned
// units either share the exact same value-set along dim or have disjoint
// value-sets, the precondition the grouper and Stack depend on. Units
// spanning several coverage runs are split into IrregularSlice proxies, one
// per run; a unit whose whole extent falls in a single run is returned
// unchanged.
func Stratify(units []StorageUnit, dim string, opts ...Option) ([]StorageUnit, error) {
	o := applyOptions(opts)
	if len(units) == 0 {
		return nil, nil
	}

	// Fetch each unit's complete label array once.
	unitLabels := make([][]float64, len(units))
	memberOf := make([]map[float64]bool, len(units))
	for i, u := range units {
		labels, _, err := u.Coord(dim, nil)
		if err != nil {
			return nil, errors.WithMessagef(err, "unit %d", i)
		}
		unitLabels[i] = labels
		set := make(map[float64]bool, len(labels))
		for _, v := range labels {
			set[v] = true
		}
		memberOf[i] = set
	}

	// Sorted union of all distinct values.
	var union []float64
	seen := make(map[float64]bool)
	for _, labels := range unitLabels {
		for _, v := range labels {
			if !seen[v] {
				seen[v] = true
				union = append(union, v)
			}
		}
	}
	sort.Float64s(union)

	// Walk the union, closing the current run whenever the covering set
	// changes.
	var runs []stratumRun
	runOf := make(map[float64]int, len(union))
	for _, v := range union {
		cover := make([]bool, len(units))
		for i := range units {
			cover[i] = memberOf[i][v]
		}
		if len(runs) == 0 || !sameMembers(runs[len(runs)-1].members, cover) {
			runs = append(runs, stratumRun{members: cover})
		}
		r := len(runs) - 1
		runs[r].values = append(runs[r].values, v)
		runOf[v] = r
	}
	o.log.Debug("stratified dimension",
		zap.String("dim", dim),
		zap.Int("units", len(units)),
		zap.Int("values", len(union)),
		zap.Int("runs", len(runs)))

	// Slice each unit at run boundaries. Membership is tested by run
	// inclusion rather than value equality so duplicate labels stay in one
	// run.
	var out []StorageUnit
	for i, u := range units {
		labels := unitLabels[i]
		segStart := 0
		for j := 1; j <= len(labels); j++ {
			if j < len(labels) && runID(runOf, labels[j]) == runID(runOf, labels[segStart]) {
				continue
			}
			if runID(runOf, labels[segStart]) < 0 {
				return nil, errors.Wrapf(ErrStratification,
					"value %v of unit %d belongs to no run", labels[segStart], i)
			}
			if segStart == 0 && j == len(labels) {
				out = append(out, u)
			} else {
				sliced, err := NewIrregularSlice(u, dim, segStart, j, labels)
				if err != nil {
					return nil, errors.WithMessagef(err, "slicing unit %d", i)
				}
				out = append(out, sliced)
			}
			segStart = j
		}
	}
	return out, nil
}

func runID(runOf map[float64]int, v float64) int {
	if id, ok := runOf[v]; ok {
		return id
	}
	return -1
}

func sameMembers(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
