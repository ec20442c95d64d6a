// Package fleet polls a fixed set of GPU servers and publishes their
// readings into a shared in-memory snapshot.
//
// A Collector owns one Poller goroutine per server. Each poller opens a
// fresh SSH session per iteration, runs the configured command, parses the
// output and writes the result into its own partition of the Snapshot.
// Partitions never overlap, so writers need no locks; cells are atomic so
// consumers can read at any time. A reader may see one server updated and
// another not yet, or a server half-updated. That is accepted.
package fleet
