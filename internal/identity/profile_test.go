package identity

import (
	"math/rand/v2"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func testProfile() Profile {
	return Profile{
		Name: "Test",
		Headers: map[string]string{
			"User-Agent": "test-agent/1.0",
			"Accept":     "*/*",
		},
		AcceptLanguageCandidates: []string{"en-US", "en", "de-DE", "fr-FR"},
		PortRange:                PortRange{Min: 40000, Max: 40010},
	}
}

func TestSpoof_DoesNotMutateTemplate(t *testing.T) {
	p := testProfile()
	before := testProfile()
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 100; i++ {
		s := Spoof(p, rng, 1.0)
		h := s.Header()
		h.Set("User-Agent", "mutated")
		h.Set("X-Extra", "1")
	}

	if !reflect.DeepEqual(p, before) {
		t.Errorf("Spoof modified the template: %+v", p)
	}
}

func TestSpoof_LanguageSample(t *testing.T) {
	p := testProfile()
	rng := rand.New(rand.NewPCG(7, 7))

	for i := 0; i < 200; i++ {
		s := Spoof(p, rng, 0)
		tags := strings.Split(s.AcceptLanguage, ", ")
		if len(tags) < 1 || len(tags) > MaxLanguageTags {
			t.Fatalf("Expected 1-3 language tags, got %d (%q)", len(tags), s.AcceptLanguage)
		}
		seen := make(map[string]bool)
		for _, tag := range tags {
			if seen[tag] {
				t.Fatalf("Language tag %q sampled twice in %q", tag, s.AcceptLanguage)
			}
			seen[tag] = true
			if !contains(p.AcceptLanguageCandidates, tag) {
				t.Fatalf("Language tag %q not among candidates", tag)
			}
		}
		if s.Header().Get(HeaderAcceptLanguage) != s.AcceptLanguage {
			t.Fatalf("Accept-Language header does not match sampled value")
		}
	}
}

func TestSpoof_DefaultLanguagePool(t *testing.T) {
	p := testProfile()
	p.AcceptLanguageCandidates = nil
	s := Spoof(p, rand.New(rand.NewPCG(3, 4)), 0)

	for _, tag := range strings.Split(s.AcceptLanguage, ", ") {
		if !contains(DefaultLanguagePool, tag) {
			t.Errorf("Tag %q not in default pool", tag)
		}
	}
}

func TestSpoof_PortWithinRange(t *testing.T) {
	p := testProfile()
	rng := rand.New(rand.NewPCG(11, 12))

	for i := 0; i < 200; i++ {
		s := Spoof(p, rng, 0)
		if s.Port < p.PortRange.Min || s.Port > p.PortRange.Max {
			t.Fatalf("Port %d outside range %d-%d", s.Port, p.PortRange.Min, p.PortRange.Max)
		}
		if s.Header().Get(HeaderForwardedPort) != strconv.Itoa(s.Port) {
			t.Fatalf("Port header does not match sampled port")
		}
	}
}

func TestSpoof_InvertedRangeUsesMin(t *testing.T) {
	p := testProfile()
	p.PortRange = PortRange{Min: 40010, Max: 40000}
	rng := rand.New(rand.NewPCG(13, 14))

	if s := Spoof(p, rng, 0); s.Port != 40010 {
		t.Errorf("Port = %d, want 40010", s.Port)
	}
}

func TestSpoof_RefererProbability(t *testing.T) {
	p := testProfile()
	rng := rand.New(rand.NewPCG(5, 6))

	for i := 0; i < 50; i++ {
		if s := Spoof(p, rng, 0); s.Referer != "" || s.Header().Get(HeaderReferer) != "" {
			t.Fatal("Expected no referer with probability 0")
		}
	}
	for i := 0; i < 50; i++ {
		s := Spoof(p, rng, 1)
		if !contains(DefaultReferers, s.Referer) {
			t.Fatalf("Unexpected referer %q", s.Referer)
		}
	}

	attached := 0
	for i := 0; i < 2000; i++ {
		if Spoof(p, rng, DefaultRefererProbability).Referer != "" {
			attached++
		}
	}
	if attached < 800 || attached > 1200 {
		t.Errorf("Expected roughly half of instances with referer, got %d/2000", attached)
	}
}

func TestSpoofed_HeaderIsCopy(t *testing.T) {
	s := Spoof(testProfile(), rand.New(rand.NewPCG(1, 1)), 0)
	h := s.Header()
	h.Set("User-Agent", "other")

	if s.UserAgent() != "test-agent/1.0" {
		t.Errorf("Spoofed instance changed through returned header: %s", s.UserAgent())
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
