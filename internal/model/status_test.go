package model

import (
	"errors"
	"testing"
)

func TestTaskStatus_IsActive(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		expected bool
	}{
		{TaskStatusQueued, false},
		{TaskStatusActive, true},
		{TaskStatusPaused, false},
		{TaskStatusCompleted, false},
		{TaskStatusFailed, false},
		{TaskStatusCancelled, false},
	}

	for _, test := range tests {
		result := test.status.IsActive()
		if result != test.expected {
			t.Errorf("TaskStatus(%s).IsActive() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestTaskStatus_IsFinished(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		expected bool
	}{
		{TaskStatusQueued, false},
		{TaskStatusActive, false},
		{TaskStatusPaused, false},
		{TaskStatusCompleted, true},
		{TaskStatusFailed, true},
		{TaskStatusCancelled, true},
	}

	for _, test := range tests {
		result := test.status.IsFinished()
		if result != test.expected {
			t.Errorf("TaskStatus(%s).IsFinished() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestTaskStatus_String(t *testing.T) {
	status := TaskStatusPaused
	expected := "Paused"
	result := status.String()

	if result != expected {
		t.Errorf("TaskStatus.String() = %s, expected %s", result, expected)
	}
}

func TestParseTaskKind(t *testing.T) {
	tests := []struct {
		input    string
		expected TaskKind
		wantErr  bool
	}{
		{"direct", KindDirect, false},
		{"segmented-stream", KindSegmented, false},
		{"hls", KindSegmented, false},
		{"xtream", KindCatalogImport, false},
		{"catalog-import", KindCatalogImport, false},
		{"torrent", "", true},
	}

	for _, test := range tests {
		kind, err := ParseTaskKind(test.input)
		if test.wantErr {
			if !errors.Is(err, ErrUnknownKind) {
				t.Errorf("ParseTaskKind(%q) error = %v, expected ErrUnknownKind", test.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTaskKind(%q) unexpected error: %v", test.input, err)
		}
		if kind != test.expected {
			t.Errorf("ParseTaskKind(%q) = %s, expected %s", test.input, kind, test.expected)
		}
	}
}
