// Package dashboard renders the live fleet grid in the terminal.
//
// The model pulls a fleet.View from its Source on its own refresh tick, so
// redraw cadence is independent of how often the collector polls. It keeps
// a short utilization history per accelerator for the sparkline column.
package dashboard
