// Package jobs manages background job submission, dispatch, and lifecycle.
// It owns the bounded worker pool that fans a job's work items out against
// a generation provider, the per-item retry policy, and the aggregation of
// progress counters into the durable job record polling clients read.
package jobs
