package workflows

import (
	"fmt"

	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
)

var cricketSchema = stepgraph.MustSchema(
	stepgraph.Int("runs"),
	stepgraph.Int("balls"),
	stepgraph.Int("fours"),
	stepgraph.Int("sixes"),
	stepgraph.Float("strike_rate"),
	stepgraph.Float("balls_per_boundary"),
	stepgraph.Float("boundary_percent"),
	stepgraph.String("summary"),
)

// Cricket compiles the batting statistics workflow. The three statistics run
// as parallel branches from START and join in summary.
func Cricket() (*stepgraph.CompiledGraph, error) {
	return stepgraph.NewGraph(cricketSchema).
		AddNode("strike_rate", strikeRate).
		AddNode("balls_per_boundary", ballsPerBoundary).
		AddNode("boundary_percent", boundaryPercent).
		AddNode("summary", cricketSummary).
		AddEdge(stepgraph.START, "strike_rate").
		AddEdge(stepgraph.START, "balls_per_boundary").
		AddEdge(stepgraph.START, "boundary_percent").
		AddEdge("strike_rate", "summary").
		AddEdge("balls_per_boundary", "summary").
		AddEdge("boundary_percent", "summary").
		AddEdge("summary", stepgraph.END).
		Compile(stepgraph.WithName("cricket"))
}

func strikeRate(_ stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	balls := s.Int("balls")
	if balls <= 0 {
		return nil, fmt.Errorf("%w: balls must be positive, got %d", ErrInvalidInput, balls)
	}
	return stepgraph.Update{"strike_rate": float64(s.Int("runs")) / float64(balls) * 100}, nil
}

func ballsPerBoundary(_ stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	boundaries := s.Int("fours") + s.Int("sixes")
	if boundaries == 0 {
		return stepgraph.Update{"balls_per_boundary": 0.0}, nil
	}
	return stepgraph.Update{"balls_per_boundary": float64(s.Int("balls")) / float64(boundaries)}, nil
}

func boundaryPercent(_ stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	runs := s.Int("runs")
	if runs == 0 {
		return stepgraph.Update{"boundary_percent": 0.0}, nil
	}
	fromBoundaries := s.Int("fours")*4 + s.Int("sixes")*6
	if fromBoundaries > runs {
		return nil, fmt.Errorf("%w: %d runs from boundaries exceeds %d total", ErrInvalidInput, fromBoundaries, runs)
	}
	return stepgraph.Update{"boundary_percent": float64(fromBoundaries) / float64(runs) * 100}, nil
}

func cricketSummary(_ stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
	summary := fmt.Sprintf("Strike Rate - %.2f\nBalls per boundary - %.2f\nBoundary percent - %.2f",
		s.Float("strike_rate"), s.Float("balls_per_boundary"), s.Float("boundary_percent"))
	return stepgraph.Update{"summary": summary}, nil
}
