package platform

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

func TestCreateDirectoryIfNotExists(t *testing.T) {
	testDir := filepath.Join(t.TempDir(), "nested", "test_dir")

	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if info, err := os.Stat(testDir); err != nil || !info.IsDir() {
		t.Fatalf("Directory was not created: %s", testDir)
	}

	// Second call should not fail
	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to handle existing directory: %v", err)
	}
}

func TestGetHomeDownloadsDir(t *testing.T) {
	downloadsDir, err := GetHomeDownloadsDir()
	if err != nil {
		t.Fatalf("Failed to get downloads directory: %v", err)
	}
	if filepath.Base(downloadsDir) != "Downloads" {
		t.Errorf("Expected directory to end with 'Downloads', got: %s", downloadsDir)
	}
}

func TestOpenFileInManager_NonExistentFile(t *testing.T) {
	err := OpenFileInManager(filepath.Join(t.TempDir(), "nonexistent.txt"))
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if !strings.Contains(err.Error(), "file does not exist:") {
		t.Errorf("Error message should contain 'file does not exist:', got: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "episode-01", "episode-01"},
		{"forbidden", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"control", "a\tb", "a_b"},
		{"unicode kept", "çğüşö", "çğüşö"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename_TruncatesOnRuneBoundary(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("ş", 200))
	if len(got) > MaxFilenameLength {
		t.Errorf("length %d exceeds %d", len(got), MaxFilenameLength)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated name is not valid UTF-8: %q", got)
	}
}

func TestDeriveOutputName(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"manifest extension stripped", "https://cdn.example.com/live/show.m3u8", "show"},
		{"uppercase extension", "https://cdn.example.com/live/SHOW.M3U8?token=1", "SHOW"},
		{"other extension kept", "https://cdn.example.com/files/movie.mp4", "movie.mp4"},
		{"escaped forbidden chars", "https://cdn.example.com/a%3Cb%3E.m3u8", "a_b_"},
		{"local path", "/tmp/streams/local.m3u8", "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveOutputName(tt.url, now); got != tt.expected {
				t.Errorf("DeriveOutputName(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestDeriveOutputName_Fallback(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	urls := []string{
		"https://cdn.example.com/",
		"https://cdn.example.com",
		"",
		"https://cdn.example.com/" + strings.Repeat("x", MaxPathComponentLength+1) + ".m3u8",
	}

	for _, u := range urls {
		got := DeriveOutputName(u, now)
		if got == "" {
			t.Errorf("DeriveOutputName(%q) returned empty name", u)
		}
		if len(got) > MaxFilenameLength {
			t.Errorf("DeriveOutputName(%q) length %d exceeds %d", u, len(got), MaxFilenameLength)
		}
		if strings.ContainsAny(got, ForbiddenFilenameChars) {
			t.Errorf("DeriveOutputName(%q) = %q contains forbidden characters", u, got)
		}
		if !strings.HasPrefix(got, FallbackNamePrefix) {
			t.Errorf("DeriveOutputName(%q) = %q, want fallback prefix", u, got)
		}
	}

	a := DeriveOutputName("https://a.example.com/", now)
	b := DeriveOutputName("https://b.example.com/", now)
	if a == b {
		t.Errorf("fallback names for different URLs should differ, both %q", a)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "video.mp4")

	if got := UniquePath(p); got != p {
		t.Errorf("Expected %s for a free path, got %s", p, got)
	}
	if err := os.WriteFile(p, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got, want := UniquePath(p), filepath.Join(dir, "video (1).mp4"); got != want {
		t.Errorf("UniquePath = %s, want %s", got, want)
	}
}

func TestPathClaims(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "index.mp4")
	claims := NewPathClaims()

	first := claims.Claim(p)
	second := claims.Claim(p)
	if first != p {
		t.Errorf("first claim = %s, want %s", first, p)
	}
	if want := filepath.Join(dir, "index (1).mp4"); second != want {
		t.Errorf("second claim = %s, want %s", second, want)
	}

	claims.Release(first)
	if got := claims.Claim(p); got != p {
		t.Errorf("claim after release = %s, want %s", got, p)
	}

	if err := os.WriteFile(filepath.Join(dir, "index (2).mp4"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got, want := claims.Claim(p), filepath.Join(dir, "index (3).mp4"); got != want {
		t.Errorf("claim past existing file = %s, want %s", got, want)
	}
}

func TestPathClaims_Concurrent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "index.mp4")
	claims := NewPathClaims()

	const n = 16
	got := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = claims.Claim(p)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, g := range got {
		if seen[g] {
			t.Fatalf("path %s claimed twice", g)
		}
		seen[g] = true
	}
}
