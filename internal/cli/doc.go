// Package cli implements the stepgraph command line.
//
//	stepgraph [--json] [--config FILE] [--log-level LEVEL] <command>
//
// Commands:
//
//	run       Run a demo workflow
//	list      List the demo workflows
//	describe  Show a workflow's nodes and edges
//	version   Print the version
package cli
