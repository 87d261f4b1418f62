package hls

// Package hls downloads segmented streams: it resolves a manifest into ordered
// segment descriptors, fetches segments through a bounded worker pool with
// per-request identities, and hands the ordered result to a muxer.
