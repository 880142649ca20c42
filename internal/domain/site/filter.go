package site

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// DefaultTopN is the length of the ranked list when the caller does not ask for another.
const DefaultTopN = 10

// Facet is a boolean site attribute usable as an extra filter predicate.
type Facet string

const (
	FacetParkingOnly   Facet = "parkingOnly"
	FacetMunicipalOnly Facet = "municipalOnly"
)

// Facets lists the supported facets.
var Facets = []Facet{FacetParkingOnly, FacetMunicipalOnly}

// Valid reports whether f is a known facet.
func (f Facet) Valid() bool {
	return f == FacetParkingOnly || f == FacetMunicipalOnly
}

// Match reports whether s carries the attribute behind f.
func (f Facet) Match(s Site) bool {
	switch f {
	case FacetParkingOnly:
		return s.ParkingLot
	case FacetMunicipalOnly:
		return s.MunicipalParcel
	}
	return false
}

// ThresholdPolicy selects which score the minimum threshold is compared against.
type ThresholdPolicy string

const (
	// ThresholdOverall treats minScore as a global opportunity floor.
	ThresholdOverall ThresholdPolicy = "overall"
	// ThresholdDisplayed applies minScore to the metric currently on display.
	ThresholdDisplayed ThresholdPolicy = "displayed"
)

// FilterConfig is the operator's current filter selection.
type FilterConfig struct {
	Metric    Metric          `json:"metric"`
	MinScore  float64         `json:"minScore"`
	Facets    map[Facet]bool  `json:"facets,omitempty"`
	Threshold ThresholdPolicy `json:"thresholdPolicy,omitempty"`
}

// DefaultFilterConfig mirrors the initial state of the explorer page.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Metric:    MetricOverall,
		MinScore:  50,
		Threshold: ThresholdOverall,
	}
}

// Validate rejects configurations no filter run could honour.
func (c FilterConfig) Validate() error {
	if !c.Metric.Valid() {
		return InvalidMetricError(string(c.Metric))
	}
	if math.IsNaN(c.MinScore) || c.MinScore < 0 || c.MinScore > 100 {
		return InvalidArgumentError(fmt.Sprintf("minScore must be within [0,100], got %v", c.MinScore))
	}
	for facet := range c.Facets {
		if !facet.Valid() {
			return InvalidArgumentError(fmt.Sprintf("unknown facet %q", facet))
		}
	}
	switch c.Threshold {
	case "", ThresholdOverall, ThresholdDisplayed:
	default:
		return InvalidArgumentError(fmt.Sprintf("unknown threshold policy %q", c.Threshold))
	}
	return nil
}

// ActiveFacets returns the enabled facets in declaration order.
func (c FilterConfig) ActiveFacets() []Facet {
	active := make([]Facet, 0, len(c.Facets))
	for _, facet := range Facets {
		if c.Facets[facet] {
			active = append(active, facet)
		}
	}
	return active
}

// ThresholdMetric is the metric minScore is compared against.
func (c FilterConfig) ThresholdMetric() Metric {
	if c.Threshold == ThresholdDisplayed {
		return c.Metric
	}
	return MetricOverall
}

// Equal compares two configurations, treating disabled facets as absent.
func (c FilterConfig) Equal(other FilterConfig) bool {
	if c.Metric != other.Metric || c.MinScore != other.MinScore || c.ThresholdMetric() != other.ThresholdMetric() {
		return false
	}
	return slices.Equal(c.ActiveFacets(), other.ActiveFacets())
}

// Filter keeps the sites whose threshold score reaches cfg.MinScore and that satisfy
// every active facet. The input slice is not modified and input order is preserved.
func Filter(sites []Site, cfg FilterConfig) ([]Site, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metric := cfg.ThresholdMetric()
	facets := cfg.ActiveFacets()

	out := make([]Site, 0, len(sites))
	for _, s := range sites {
		score, err := Resolve(s, metric)
		if err != nil {
			return nil, err
		}
		if score < cfg.MinScore {
			continue
		}
		if !matchesAll(s, facets) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func matchesAll(s Site, facets []Facet) bool {
	for _, facet := range facets {
		if !facet.Match(s) {
			return false
		}
	}
	return true
}

// Rank orders sites by descending metric score and returns at most n of them.
// Equal scores keep their input order.
func Rank(sites []Site, metric Metric, n int) ([]Site, error) {
	if n < 0 {
		return nil, InvalidArgumentError(fmt.Sprintf("rank size must be non-negative, got %d", n))
	}
	if !metric.Valid() {
		return nil, InvalidMetricError(string(metric))
	}

	type scored struct {
		site  Site
		score float64
	}
	ranked := make([]scored, 0, len(sites))
	for _, s := range sites {
		score, err := Resolve(s, metric)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, scored{site: s, score: score})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Site, n)
	for i := range out {
		out[i] = ranked[i].site
	}
	return out, nil
}
