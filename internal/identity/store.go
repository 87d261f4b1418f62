package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/nexus-downloader/internal/model"
)

// Port hint bounds
const (
	MinPort = 1
	MaxPort = 65535
)

// File permissions
const (
	storeDirPermissions  = 0755
	storeFilePermissions = 0644
)

// Store loads and persists user supplied custom profiles
type Store interface {
	Load() ([]Profile, error)
	Save(custom []Profile) error
}

// profileRecord is the on-disk schema of a custom profile
type profileRecord struct {
	Name           string            `json:"name"`
	UserAgent      string            `json:"user_agent,omitempty"`
	Platform       string            `json:"platform,omitempty"`
	AcceptLanguage []string          `json:"accept_language_candidates,omitempty"`
	Headers        map[string]string `json:"headers"`
	PortRange      []int             `json:"port_range"`
}

type storeDocument struct {
	Custom []profileRecord `json:"custom"`
}

// FileStore keeps custom profiles in a JSON document
type FileStore struct {
	path   string
	logger *log.Entry
}

// NewFileStore creates a store backed by the JSON file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: log.WithField("component", "identity-store"),
	}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads custom profiles. Entries failing validation are dropped. A missing
// file yields no profiles and is created empty on a best-effort basis.
func (s *FileStore) Load() ([]Profile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.Save(nil); err != nil {
			s.logger.WithError(err).Debug("could not create empty profile store")
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile store: %w", err)
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile store: %w", err)
	}

	profiles := make([]Profile, 0, len(doc.Custom))
	for i, rec := range doc.Custom {
		p, err := rec.toProfile()
		if err != nil {
			s.logger.WithError(err).WithField("entry", i).Warn("dropping invalid custom profile")
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Save replaces the stored custom profiles. Failures are reported as
// *model.ConfigWriteError.
func (s *FileStore) Save(custom []Profile) error {
	doc := storeDocument{Custom: make([]profileRecord, 0, len(custom))}
	for _, p := range custom {
		doc.Custom = append(doc.Custom, recordFromProfile(p))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &model.ConfigWriteError{Path: s.path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), storeDirPermissions); err != nil {
		return &model.ConfigWriteError{Path: s.path, Err: err}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, storeFilePermissions); err != nil {
		return &model.ConfigWriteError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return &model.ConfigWriteError{Path: s.path, Err: err}
	}
	return nil
}

func (r profileRecord) toProfile() (Profile, error) {
	headers := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		headers[k] = v
	}
	if r.UserAgent != "" && !hasHeader(headers, HeaderUserAgent) {
		headers[HeaderUserAgent] = r.UserAgent
	}
	if len(r.PortRange) != 2 {
		return Profile{}, fmt.Errorf("profile %q: port_range must have exactly two values", r.Name)
	}

	p := Profile{
		Name:                     r.Name,
		Headers:                  headers,
		AcceptLanguageCandidates: r.AcceptLanguage,
		PortRange:                PortRange{Min: r.PortRange[0], Max: r.PortRange[1]},
		IsCustom:                 true,
	}
	if err := ValidateProfile(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func recordFromProfile(p Profile) profileRecord {
	return profileRecord{
		Name:           p.Name,
		AcceptLanguage: p.AcceptLanguageCandidates,
		Headers:        p.Headers,
		PortRange:      []int{p.PortRange.Min, p.PortRange.Max},
	}
}

// ValidateProfile checks required fields and bounds of a profile
func ValidateProfile(p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}
	if len(p.Headers) == 0 {
		return fmt.Errorf("profile %q: headers are required", p.Name)
	}
	seen := make(map[string]bool, len(p.Headers))
	for k := range p.Headers {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("profile %q: empty header name", p.Name)
		}
		canonical := http.CanonicalHeaderKey(k)
		if seen[canonical] {
			return fmt.Errorf("profile %q: duplicate header %q", p.Name, canonical)
		}
		seen[canonical] = true
	}
	if !seen[HeaderUserAgent] {
		return fmt.Errorf("profile %q: User-Agent header is required", p.Name)
	}
	if p.PortRange.Min < MinPort || p.PortRange.Max > MaxPort || p.PortRange.Min > p.PortRange.Max {
		return fmt.Errorf("profile %q: invalid port range %d-%d", p.Name, p.PortRange.Min, p.PortRange.Max)
	}
	for _, lang := range p.AcceptLanguageCandidates {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("profile %q: empty language tag", p.Name)
		}
	}
	return nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == name {
			return true
		}
	}
	return false
}
