package identity

// Package identity owns the network identity profiles used to vary outbound
// request fingerprints. A Rotator hands out freshly spoofed, per-request copies
// of immutable profile templates either uniformly at random or round-robin.
