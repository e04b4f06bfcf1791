package cli

import (
	"fmt"
	"strings"

	"github.com/aretw0/wizards/pkg/domain"
)

// ParseQuery builds a query from a metric and label matchers written as
// name=value, name!=value, name=~regex or name!~regex.
func ParseQuery(metric string, matchers []string) (domain.Query, error) {
	q := domain.Query{Metric: strings.TrimSpace(metric)}
	for _, m := range matchers {
		l, err := parseMatcher(m)
		if err != nil {
			return domain.Query{}, err
		}
		q.Labels = append(q.Labels, l)
	}
	return q, nil
}

func parseMatcher(s string) (domain.Label, error) {
	for i := 0; i < len(s); i++ {
		var op string
		switch {
		case s[i] == '!' && i+1 < len(s) && (s[i+1] == '=' || s[i+1] == '~'):
			op = s[i : i+2]
		case s[i] == '=' && i+1 < len(s) && s[i+1] == '~':
			op = "=~"
		case s[i] == '=':
			op = "="
		default:
			continue
		}
		name := strings.TrimSpace(s[:i])
		if name == "" {
			break
		}
		return domain.Label{
			Label: name,
			Op:    op,
			Value: strings.Trim(strings.TrimSpace(s[i+len(op):]), `"`),
		}, nil
	}
	return domain.Label{}, fmt.Errorf("invalid label matcher %q", s)
}
