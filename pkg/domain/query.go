package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Label is a single label matcher of the visual query.
type Label struct {
	Label string `json:"label" yaml:"label" mapstructure:"label"`
	Op    string `json:"op" yaml:"op" mapstructure:"op"`
	Value string `json:"value" yaml:"value" mapstructure:"value"`
}

// Query is the query context the drawer was opened for.
// It is forwarded to the suggestion service with every request.
type Query struct {
	Metric string  `json:"metric" yaml:"metric" mapstructure:"metric"`
	Labels []Label `json:"labels,omitempty" yaml:"labels,omitempty" mapstructure:"labels"`
}

// Selector renders the query as a PromQL series selector, e.g. up{job="api"}.
// Labels are rendered in name order; an empty operator defaults to "=".
func (q Query) Selector() string {
	if len(q.Labels) == 0 {
		return q.Metric
	}

	labels := make([]Label, len(q.Labels))
	copy(labels, q.Labels)
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Label < labels[j].Label })

	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		op := l.Op
		if op == "" {
			op = "="
		}
		parts = append(parts, l.Label+op+strconv.Quote(l.Value))
	}
	return q.Metric + "{" + strings.Join(parts, ",") + "}"
}

// Clone returns a copy that shares no slices with q.
func (q Query) Clone() Query {
	out := q
	if q.Labels != nil {
		out.Labels = make([]Label, len(q.Labels))
		copy(out.Labels, q.Labels)
	}
	return out
}
