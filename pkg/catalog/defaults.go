package catalog

import "github.com/aretw0/wizards/pkg/domain"

var defaults = []domain.Suggestion{
	{
		Title:       "Raw series",
		Query:       "{{selector}}",
		Description: "Every series of {{metric}} matching the current labels.",
	},
	{
		Title:       "Per-second rate",
		Query:       "rate({{selector}}[5m])",
		Description: "Per-second average increase of the counter {{metric}} over the last five minutes.",
		Link:        "https://prometheus.io/docs/prometheus/latest/querying/functions/#rate",
	},
	{
		Title:       "Increase over an hour",
		Query:       "increase({{selector}}[1h])",
		Description: "Total increase of the counter {{metric}} over the last hour.",
		Link:        "https://prometheus.io/docs/prometheus/latest/querying/functions/#increase",
	},
	{
		Title:       "Rate summed by instance",
		Query:       "sum by (instance) (rate({{selector}}[5m]))",
		Description: "Per-second rate of {{metric}} aggregated per instance.",
		Link:        "https://prometheus.io/docs/prometheus/latest/querying/operators/#aggregation-operators",
	},
	{
		Title:       "Top 5 series",
		Query:       "topk(5, {{selector}})",
		Description: "The five largest series of {{metric}} at each step.",
		Link:        "https://prometheus.io/docs/prometheus/latest/querying/operators/#aggregation-operators",
	},
	{
		Title:       "90th percentile",
		Query:       "histogram_quantile(0.9, sum by (le) (rate({{metric}}_bucket[5m])))",
		Description: "90th percentile of the histogram {{metric}} computed from its buckets.",
		Link:        "https://prometheus.io/docs/prometheus/latest/querying/functions/#histogram_quantile",
	},
	{
		Title:       "Missing series",
		Query:       "absent({{selector}})",
		Description: "Returns 1 when no series of {{metric}} exists, useful for alerting.",
		Link:        "https://prometheus.io/docs/prometheus/latest/querying/functions/#absent",
	},
	{
		Title:       "Targets up",
		Query:       "up",
		Description: "1 for every scrape target that is reachable, 0 otherwise.",
	},
}

// Default returns the built-in PromQL template set.
func Default() *Catalog {
	c, err := New(defaults...)
	if err != nil {
		panic(err)
	}
	return c
}
