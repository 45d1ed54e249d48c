// Package monitor samples OS health metrics from remote hosts.
//
// A Sampler runs a battery of diagnostic commands through the command
// executor and folds their output into a Snapshot:
//
//	Snapshot   - CPU, memory, per-mount disk and network throughput
//	Source     - one command plus the parser that applies its output
//	Battery    - the sources for a platform (see package parsers)
//	Sampler    - detects the platform, runs the battery, assembles results
//
// # Sampling Flow
//
//  1. The platform is detected with uname once per connection and cached
//  2. Every source command runs in parallel, bounded by Options.Concurrency
//  3. Outputs are applied to the snapshot in battery order
//  4. A source that exits non-zero or fails to parse is recorded in
//     Snapshot.Missing and its record is left nil
//
// Only session-level failures (not connected, transport lost, session
// failed, canceled) fail the whole sample.
//
// # Rates
//
// CPU usage and network throughput need two readings. Each such command
// reads its counters, sleeps for the sample window on the remote host, and
// reads them again, so one sample costs roughly one window of wall time.
package monitor
