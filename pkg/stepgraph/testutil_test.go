package stepgraph

import (
	"context"
	"sync"
)

// testSchema is the field set most tests run over.
var testSchema = MustSchema(
	Int("x"),
	Int("y"),
	String("p"),
	String("q"),
	String("winner"),
	Int("count"),
	Bool("done"),
	List("history").Accumulating(),
	List("trace").Accumulating(),
)

// tracker records node executions across goroutines.
type tracker struct {
	mu    sync.Mutex
	order []string
}

func (tr *tracker) add(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.order = append(tr.order, name)
}

func (tr *tracker) names() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.order...)
}

func (tr *tracker) count(name string) int {
	n := 0
	for _, got := range tr.names() {
		if got == name {
			n++
		}
	}
	return n
}

// setStep returns a step that sets one field.
func setStep(field string, value any) StepFunc {
	return func(ctx Context, s State) (Update, error) {
		return Update{field: value}, nil
	}
}

// trackingStep records its execution and appends its name to "trace".
func trackingStep(name string, tr *tracker) StepFunc {
	return func(ctx Context, s State) (Update, error) {
		tr.add(name)
		return Update{"trace": name}, nil
	}
}

// failingStep returns err.
func failingStep(err error) StepFunc {
	return func(ctx Context, s State) (Update, error) {
		return nil, err
	}
}

// panicStep panics with value.
func panicStep(value any) StepFunc {
	return func(ctx Context, s State) (Update, error) {
		panic(value)
	}
}

// noop returns an empty update.
func noop(ctx Context, s State) (Update, error) {
	return nil, nil
}

// linearGraph builds START -> names[0] -> ... -> names[n-1] -> END.
func linearGraph(steps map[string]StepFunc, names ...string) *Graph {
	g := NewGraph(testSchema)
	for _, name := range names {
		g.AddNode(name, steps[name])
	}
	prev := START
	for _, name := range names {
		g.AddEdge(prev, name)
		prev = name
	}
	return g.AddEdge(prev, END)
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
