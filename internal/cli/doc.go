// Package cli implements the gpumon command-line interface.
//
// The root command runs the monitor: it loads the fleet config, asks once
// for the SSH password, starts the collector and shows the dashboard (or,
// with --headless, just logs). The other commands are one-shot helpers:
//
//	gpumon servers        - print the resolved fleet without connecting
//	gpumon check          - poll every server once and report reachability
//	gpumon parse [file]   - run the configured parser over saved output
//	gpumon version        - print build information
//
// Global flags (--config) live on the root command. Command logic sits in
// plain functions that take their writers and inputs explicitly, so tests
// can drive them without cobra.
package cli
