// Package worker provides a keyed worker pool: jobs sharing a key run one at
// a time in submission order, while jobs with different keys run in parallel
// across a fixed set of workers.
package worker
