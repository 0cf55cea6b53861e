package pushschema

import (
	"strings"

	"github.com/leapstack-labs/pushset/internal/dag"
	"github.com/leapstack-labs/pushset/pkg/tabular"
)

// MeasureGraph builds the reference graph of the measures of m. Node IDs are
// measure names and node data is the tabular.MeasureRef. An edge A -> B means
// the expression of B contains [A], using the same case-insensitive textual
// match as ClassifyMeasures. Self references are ignored.
func MeasureGraph(m *tabular.Model) *dag.Graph {
	g := dag.NewGraph()
	refs := m.AllMeasures()
	for _, ref := range refs {
		g.AddNode(ref.Name(), ref)
	}

	for _, child := range refs {
		expr := strings.ToLower(child.Measure.Expression.Text())
		for _, parent := range refs {
			if parent.Name() == child.Name() {
				continue
			}
			if strings.Contains(expr, "["+strings.ToLower(parent.Name())+"]") {
				// both nodes exist and differ, AddEdge cannot fail
				_ = g.AddEdge(parent.Name(), child.Name())
			}
		}
	}
	return g
}
