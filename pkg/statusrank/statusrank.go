// Package statusrank supplies the deployment-configurable total order over
// item statuses used as the primary sort key in rendered trees.
package statusrank

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"fieldline/ordering/pkg/model/mitem"
)

// unrankedOffset pushes statuses missing from a ranking behind every
// configured one while keeping them mutually ordered.
const unrankedOffset = 1000

// Ranking maps each status to its sort rank. Lower ranks sort first.
type Ranking map[mitem.Status]int

// Default mirrors the product's stock ordering: in-flight work first,
// finished and abandoned work last.
func Default() Ranking {
	return Ranking{
		mitem.StatusActive:     1,
		mitem.StatusPaused:     2,
		mitem.StatusNotStarted: 4,
		mitem.StatusDone:       6,
		mitem.StatusCancelled:  8,
	}
}

// Rank returns the configured rank for s. Statuses absent from the ranking
// sort after all configured ones, deterministically by status value.
func (r Ranking) Rank(s mitem.Status) int {
	if rank, ok := r[s]; ok {
		return rank
	}
	return unrankedOffset + int(s)
}

// Load reads a ranking from YAML of the form `active: 1`, keyed by the
// status labels of mitem.Status.String.
func Load(src io.Reader) (Ranking, error) {
	raw := map[string]int{}
	dec := yaml.NewDecoder(src)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("statusrank: decode ranking: %w", err)
	}
	ranking := make(Ranking, len(raw))
	for label, rank := range raw {
		status, ok := mitem.StatusFromString(label)
		if !ok {
			return nil, fmt.Errorf("statusrank: unknown status label %q", label)
		}
		ranking[status] = rank
	}
	return ranking, nil
}
