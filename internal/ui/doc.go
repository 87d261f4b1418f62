package ui

// Package ui contains the Fyne-based desktop user interface for the application.
// It forwards user actions to the download manager, renders task snapshots received
// from it and edits persisted settings. All UI strings are localized via Localization.
