// Package workflows holds the demo graphs the CLI runs.
//
//   - cricket: fans out from START into three batting statistics that join in
//     a summary.
//   - quadratic: computes the discriminant and routes to one of three root
//     calculations.
//   - tweet: drafts a tweet with the injected LLM and loops through
//     evaluate and optimize until it is approved or the iteration cap is hit.
//
// Each constructor compiles a fresh graph. Default returns a Registry holding
// all of them.
package workflows
