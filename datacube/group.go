package datacube

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// GroupBySignature partitions units by the ordered dimension tuple their
// copy of variable is defined over. Queries spanning heterogeneous schemas
// are answered per group; picking or combining groups is the caller's
// policy.
func GroupBySignature(units []StorageUnit, variable string) (map[string][]StorageUnit, error) {
	groups := make(map[string][]StorageUnit)
	for i, u := range units {
		v, ok := u.Variables()[variable]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownVariable, "%s in unit %d", variable, i)
		}
		key := strings.Join(v.Dimensions, "/")
		groups[key] = append(groups[key], u)
	}
	return groups, nil
}

// LargestGroup returns the group with the highest dimensionality, the
// common "largest wins" policy at the caller boundary. Ties break towards
// the lexicographically smallest signature so the choice is deterministic.
func LargestGroup(groups map[string][]StorageUnit) []StorageUnit {
	best := ""
	bestDims := -1
	for key := range groups {
		dims := len(strings.Split(key, "/"))
		if dims > bestDims || (dims == bestDims && key < best) {
			best, bestDims = key, dims
		}
	}
	return groups[best]
}

// dimProps is the per-query, read-only description of how a group of units
// tiles each dimension: label direction, the sorted distinct begin values,
// per-ordinal chunk lengths, and the lazily fetched label blocks. Built
// once per query and discarded after the chunk graph is emitted.
type dimProps struct {
	dims      []string
	reverse   map[string]bool
	dimVals   map[string][]float64
	ordinalOf map[string]map[float64]int
	susSize   map[string][]int
	labels    map[string][][]float64
}

// buildDimProps derives dimProps for one signature group; it also returns
// each unit's ordinal key. Label blocks are fetched at most once per
// ordinal, from the first unit that claims it, so the fewest possible
// backends are opened.
func buildDimProps(units []StorageUnit, variable string) (*dimProps, [][]int, error) {
	sample, ok := units[0].Variables()[variable]
	if !ok {
		return nil, nil, errors.Wrap(ErrUnknownVariable, variable)
	}
	p := &dimProps{
		dims:      sample.Dimensions,
		reverse:   make(map[string]bool),
		dimVals:   make(map[string][]float64),
		ordinalOf: make(map[string]map[float64]int),
		susSize:   make(map[string][]int),
		labels:    make(map[string][][]float64),
	}

	for _, dim := range p.dims {
		// Direction comes from a representative unit with more than one
		// label; groups are assumed direction-consistent.
		for _, u := range units {
			if c, ok := u.Coordinates()[dim]; ok && c.Length > 1 {
				p.reverse[dim] = c.Descending()
				break
			}
		}

		seen := make(map[float64]bool)
		var vals []float64
		for i, u := range units {
			c, ok := u.Coordinates()[dim]
			if !ok {
				return nil, nil, errors.Wrapf(ErrMissingDimension, "%s in unit %d", dim, i)
			}
			if !seen[c.Begin] {
				seen[c.Begin] = true
				vals = append(vals, c.Begin)
			}
		}
		if p.reverse[dim] {
			sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
		} else {
			sort.Float64s(vals)
		}
		p.dimVals[dim] = vals
		ord := make(map[float64]int, len(vals))
		for i, v := range vals {
			ord[v] = i
		}
		p.ordinalOf[dim] = ord
		p.susSize[dim] = make([]int, len(vals))
		p.labels[dim] = make([][]float64, len(vals))
	}

	keys := make([][]int, len(units))
	for i, u := range units {
		key := make([]int, len(p.dims))
		for d, dim := range p.dims {
			c := u.Coordinates()[dim]
			ord := p.ordinalOf[dim][c.Begin]
			key[d] = ord

			if prev := p.susSize[dim][ord]; prev != 0 && prev != c.Length {
				return nil, nil, errors.Wrapf(ErrInconsistentUnits,
					"dimension %s ordinal %d has chunk lengths %d and %d", dim, ord, prev, c.Length)
			}
			p.susSize[dim][ord] = c.Length

			if p.labels[dim][ord] == nil {
				labels, _, err := u.Coord(dim, nil)
				if err != nil {
					return nil, nil, errors.WithMessagef(err, "labels of %s in unit %d", dim, i)
				}
				p.labels[dim][ord] = labels
			}
		}
		keys[i] = key
	}
	return p, keys, nil
}
