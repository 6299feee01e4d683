// Package stitch combines sequences of audio tracks into single artifacts.
// Jobs run on a bounded worker pool in submission order, report progress at
// track granularity and can be cancelled at any point; a cancelled or
// failed job never leaves a partial artifact behind.
package stitch
