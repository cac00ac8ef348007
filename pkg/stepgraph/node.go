package stepgraph

// START is the entry sentinel. Edges may leave it but never enter it.
const START = "__start__"

// END is the terminal sentinel. Edges may enter it but never leave it.
const END = "__end__"

// StepFunc is the signature for all node functions.
// A step receives a snapshot of the current state and returns the fields it
// wants to change. The snapshot is the step's own copy: mutating it has no
// effect on the run. Only the returned Update is merged.
//
// Example:
//
//	func draft(ctx stepgraph.Context, s stepgraph.State) (stepgraph.Update, error) {
//	    return stepgraph.Update{"draft": "Hello, " + s.String("name")}, nil
//	}
type StepFunc func(ctx Context, state State) (Update, error)

// RouterFunc picks the label of the next node for a conditional edge set.
// The label is resolved through the edge set's Routes. Routers run
// synchronously between steps and must not have side effects.
//
// Example:
//
//	func review(ctx stepgraph.Context, s stepgraph.State) string {
//	    if s.String("verdict") == "approved" {
//	        return "approved"
//	    }
//	    return "needs_improvement"
//	}
type RouterFunc func(ctx Context, state State) string

// Routes fixes how a conditional edge set turns router labels into node names.
// Build one with LabelMap or Direct.
type Routes struct {
	labels       map[string]string
	destinations []string
	direct       bool
}

// LabelMap resolves labels through an explicit label -> node table.
// A label missing from the table is a RoutingError at run time.
func LabelMap(m map[string]string) Routes {
	labels := make(map[string]string, len(m))
	for label, to := range m {
		labels[label] = to
	}
	return Routes{labels: labels}
}

// Direct treats the router's label as the destination node name.
// When destinations are listed, labels outside the list are rejected and
// compile-time analysis knows the possible targets. With no destinations the
// router may return any registered node or END.
func Direct(destinations ...string) Routes {
	return Routes{
		destinations: append([]string(nil), destinations...),
		direct:       true,
	}
}

// IsDirect reports whether labels are used as node names.
func (r Routes) IsDirect() bool {
	return r.direct
}

// open reports whether the possible targets are unknown before run time.
func (r Routes) open() bool {
	return r.direct && len(r.destinations) == 0
}

// targets returns the statically known destinations, deduplicated.
func (r Routes) targets() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(to string) {
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	if r.direct {
		for _, to := range r.destinations {
			add(to)
		}
		return out
	}
	for _, label := range sortedKeys(r.labels) {
		add(r.labels[label])
	}
	return out
}

// resolve maps a router label to a destination name.
func (r Routes) resolve(label string) (string, error) {
	if r.direct {
		if len(r.destinations) == 0 {
			return label, nil
		}
		for _, to := range r.destinations {
			if to == label {
				return label, nil
			}
		}
		return "", ErrUnknownLabel
	}
	to, ok := r.labels[label]
	if !ok {
		return "", ErrUnknownLabel
	}
	return to, nil
}

// conditional is a registered conditional edge set.
type conditional struct {
	router RouterFunc
	routes Routes
}
