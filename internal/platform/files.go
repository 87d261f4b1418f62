package platform

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Command constants
const (
	OpenCommand        = "open"
	ExplorerCommand    = "explorer"
	XDGOpenCommand     = "xdg-open"
	MacOSSelectFlag    = "-R"
	WindowsSelectParam = "/select,"
)

// Filename derivation limits
const (
	MaxPathComponentLength = 100
	MaxFilenameLength      = 150
	FallbackNamePrefix     = "video_"
	urlHashLength          = 10
	forbiddenReplacement   = "_"
)

// ForbiddenFilenameChars are replaced when deriving filenames
const ForbiddenFilenameChars = `<>:"/\|?*`

// Manifest extensions stripped from derived names
var manifestExtensions = []string{".m3u8", ".m3u"}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, "Downloads"), nil
}

// OpenFileInManager opens the directory containing filePath in the system file manager
func OpenFileInManager(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("file does not exist: %w", err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case OSDarwin:
		cmd = exec.Command(OpenCommand, MacOSSelectFlag, absPath)
	case OSWindows:
		cmd = exec.Command(ExplorerCommand, WindowsSelectParam, absPath)
	case OSLinux:
		// File selection is not standardized on Linux, open the parent directory
		cmd = exec.Command(XDGOpenCommand, filepath.Dir(absPath))
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
	return cmd.Run()
}

// SanitizeFilename replaces forbidden filesystem characters and truncates the
// result to MaxFilenameLength bytes without splitting a UTF-8 sequence.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(ForbiddenFilenameChars, r) || r < 0x20 {
			b.WriteString(forbiddenReplacement)
			continue
		}
		b.WriteRune(r)
	}
	return truncateUTF8(b.String(), MaxFilenameLength)
}

// DeriveOutputName derives a filesystem-safe base name (without extension) from
// a source URL. When the last path component is empty or longer than
// MaxPathComponentLength a name built from now and a hash of the URL is used.
func DeriveOutputName(rawURL string, now time.Time) string {
	name := lastPathComponent(rawURL)
	for _, ext := range manifestExtensions {
		if strings.EqualFold(path.Ext(name), ext) {
			name = strings.TrimSuffix(name, path.Ext(name))
			break
		}
	}
	name = strings.TrimSpace(name)

	if name == "" || name == "." || len(name) > MaxPathComponentLength {
		sum := md5.Sum([]byte(rawURL))
		name = fmt.Sprintf("%s%d_%s", FallbackNamePrefix, now.Unix(), hex.EncodeToString(sum[:])[:urlHashLength])
	}
	return SanitizeFilename(name)
}

func lastPathComponent(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme == "" && u.Host == "" && u.Path == "") {
		return ""
	}
	p := u.Path
	if u.Scheme == "" || u.Scheme == "file" {
		p = filepath.ToSlash(p)
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base("/" + p)
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// UniquePath returns p, or p with a " (n)" suffix before the extension when p already exists
func UniquePath(p string) string {
	return uniquePath(p, func(string) bool { return false })
}

func uniquePath(p string, claimed func(string) bool) string {
	free := func(candidate string) bool {
		if claimed(candidate) {
			return false
		}
		_, err := os.Stat(candidate)
		return os.IsNotExist(err)
	}
	if free(p) {
		return p
	}
	ext := filepath.Ext(p)
	base := strings.TrimSuffix(p, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if free(candidate) {
			return candidate
		}
	}
}

// PathClaims hands out output paths that are free both on disk and among
// paths claimed by writers that have not produced their file yet
type PathClaims struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewPathClaims creates an empty claim set
func NewPathClaims() *PathClaims {
	return &PathClaims{claimed: make(map[string]struct{})}
}

// Claim reserves and returns the first free variant of p
func (c *PathClaims) Claim(p string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	got := uniquePath(p, func(candidate string) bool {
		_, ok := c.claimed[candidate]
		return ok
	})
	c.claimed[got] = struct{}{}
	return got
}

// Release drops the claim on p
func (c *PathClaims) Release(p string) {
	c.mu.Lock()
	delete(c.claimed, p)
	c.mu.Unlock()
}
