/*
Package config reads stepgraph settings from YAML or JSON.

# Overview

Config wraps a map[string]any and provides typed accessors that fall back to
a default when a key is missing or holds the wrong type. Keys may be dotted
paths into nested sections, so "run.max_iterations" reads max_iterations from
the run mapping.

	cfg, err := config.FromFile("stepgraph.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	timeout := cfg.Duration("run.step_timeout", 30*time.Second)

# Settings

Load turns a Config into Settings: run options, logging, the checkpoint
backend, event publishing, the LLM client and default inputs. LoadFile reads a
file and loads it, rejecting top-level keys other than those sections.

	run:
	  max_iterations: 25
	  step_timeout: 45s
	  fail_fast: true
	log:
	  level: debug
	  format: text
	checkpoint:
	  backend: sqlite
	  path: ./checkpoints.db
	inputs:
	  topic: golang

	settings, err := config.LoadFile("stepgraph.yaml")
	store, err := settings.Checkpoint.Open(ctx)
	final, err := compiled.Invoke(ctx, settings.Inputs, settings.Run.Options()...)

# Type Coercion

Duration accepts a time.ParseDuration string, a number of seconds, or a
time.Duration. Int accepts whole floats, as produced by JSON decoding. Float
accepts ints.

Config is safe for concurrent reads.
*/
package config
