package model

// Package model defines domain data structures shared across the app: download
// tasks and their kinds, segment descriptors, catalog channel entries, the night
// window and the error taxonomy surfaced on failed tasks.
