// Package extract implements the per-sample rRNA extraction pipeline:
// predict rRNA genes with barrnap, pull the annotated regions out with
// bedtools, keep the longest record carrying the region tag, and aggregate
// one summary row per sample.
//
// Each sample is an isolated unit of work. A missing input or a failed
// tool resolves to a sentinel row (length 0); only an unusable shared
// precondition (unwritable output directory, broken summary file) aborts
// the batch.
package extract
