package transport

// Package transport builds HTTP clients bound to one spoofed identity, with
// connect and idle-read timeouts, DNS result caching, unlimited connection
// counts, and a shared token bucket for global bandwidth limiting.
