package workflows

import (
	"fmt"
	"math"
	"strconv"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

var quadraticSchema = stepgraph.MustSchema(
	stepgraph.Float("a"),
	stepgraph.Float("b"),
	stepgraph.Float("c"),
	stepgraph.String("equation"),
	stepgraph.Float("discriminant"),
	stepgraph.List("roots"),
	stepgraph.String("result"),
)

// Quadratic compiles the root-finding workflow: equation computes the
// discriminant, and its sign picks one of three terminal steps.
func Quadratic() (*stepgraph.CompiledGraph, error) {
	return stepgraph.NewGraph(quadraticSchema).
		AddNode("equation", equation).
		AddNode("real_roots", realRoots).
		AddNode("repeated_root", repeatedRoot).
		AddNode("no_real_roots", noRealRoots).
		AddEdge(stepgraph.START, "equation").
		AddConditionalEdges("equation", discriminantSign, stepgraph.Direct("real_roots", "repeated_root", "no_real_roots")).
		AddEdge("real_roots", stepgraph.END).
		AddEdge("repeated_root", stepgraph.END).
		AddEdge("no_real_roots", stepgraph.END).
		Compile(stepgraph.WithName("quadratic"))
}

func equation(_ stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	a, b, c := s.Float("a"), s.Float("b"), s.Float("c")
	if a == 0 {
		return nil, fmt.Errorf("%w: a must be non-zero", ErrInvalidInput)
	}
	return stepgraph.Update{
		"equation":     fmt.Sprintf("%sx^2%sx%s = 0", formatNumber(a), signed(b), signed(c)),
		"discriminant": b*b - 4*a*c,
	}, nil
}

func discriminantSign(_ stepgraph.Context, s stepgraph.State) string {
	d := s.Float("discriminant")
	switch {
	case d > 0:
		return "real_roots"
	case d == 0:
		return "repeated_root"
	default:
		return "no_real_roots"
	}
}

func realRoots(_ stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	a, b, d := s.Float("a"), s.Float("b"), s.Float("discriminant")
	sq := math.Sqrt(d)
	r1 := (-b + sq) / (2 * a)
	r2 := (-b - sq) / (2 * a)
	return stepgraph.Update{
		"roots":  []float64{r1, r2},
		"result": fmt.Sprintf("The roots are %s and %s", formatNumber(r1), formatNumber(r2)),
	}, nil
}

func repeatedRoot(_ stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	r := -s.Float("b") / (2 * s.Float("a"))
	return stepgraph.Update{
		"roots":  []float64{r},
		"result": fmt.Sprintf("The only repeating root is %s", formatNumber(r)),
	}, nil
}

func noRealRoots(_ stepgraph.Context, _ stepgraph.State) (stepgraph.Update, error) {
	return stepgraph.Update{
		"roots":  []float64{},
		"result": "No real roots",
	}, nil
}

func formatNumber(f float64) string {
	if f == 0 {
		// Avoid "-0".
		f = 0
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func signed(f float64) string {
	if f < 0 {
		return " - " + formatNumber(-f)
	}
	return " + " + formatNumber(f)
}
