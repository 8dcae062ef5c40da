// Package toolexec runs the external analysis tools (barrnap, bedtools,
// mafft, FastTree, the embedder) as synchronous child processes, with
// stdout/stderr redirected to caller-named files.
//
// The only contract callers depend on is Runner. This keeps the pipelines
// swappable and testable.
package toolexec
