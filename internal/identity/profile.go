package identity

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
)

// Header names attached by spoofing
const (
	HeaderAcceptLanguage = "Accept-Language"
	HeaderForwardedPort  = "X-Forwarded-Port"
	HeaderReferer        = "Referer"
	HeaderUserAgent      = "User-Agent"
)

// Spoofing defaults
const (
	DefaultRefererProbability = 0.5
	MaxLanguageTags           = 3
)

// DefaultLanguagePool is sampled when a profile declares no language candidates
var DefaultLanguagePool = []string{"tr-TR", "tr", "en-US", "en", "de-DE", "fr-FR"}

// DefaultReferers is the fixed set of referer values spoofing may attach
var DefaultReferers = []string{
	"https://www.google.com/",
	"https://www.youtube.com/",
	"https://www.netflix.com/",
}

// PortRange is an inclusive range of synthetic port hints
type PortRange struct {
	Min int
	Max int
}

// Profile is an immutable identity template. Never modify a Profile obtained
// from a Rotator; Rotator hands out copies.
type Profile struct {
	Name                     string
	Headers                  map[string]string
	AcceptLanguageCandidates []string
	PortRange                PortRange
	IsCustom                 bool
}

// clone returns a deep copy of the profile
func (p Profile) clone() Profile {
	c := p
	c.Headers = make(map[string]string, len(p.Headers))
	for k, v := range p.Headers {
		c.Headers[k] = v
	}
	c.AcceptLanguageCandidates = append([]string(nil), p.AcceptLanguageCandidates...)
	return c
}

// Spoofed is a per-request variant of a Profile. It is never mutated after
// creation; Header returns a fresh copy on every call.
type Spoofed struct {
	Profile        string
	AcceptLanguage string
	Port           int
	Referer        string
	headers        http.Header
}

// Header returns a copy of the outbound headers of this instance
func (s Spoofed) Header() http.Header {
	return s.headers.Clone()
}

// UserAgent returns the User-Agent header value
func (s Spoofed) UserAgent() string {
	return s.headers.Get(HeaderUserAgent)
}

// Spoof derives a randomized instance from p. It reads p but never modifies it.
func Spoof(p Profile, rng *rand.Rand, refererProbability float64) Spoofed {
	headers := make(http.Header, len(p.Headers)+3)
	for k, v := range p.Headers {
		headers.Set(k, v)
	}

	candidates := p.AcceptLanguageCandidates
	if len(candidates) == 0 {
		candidates = DefaultLanguagePool
	}
	count := 1 + rng.IntN(min(MaxLanguageTags, len(candidates)))
	picked := make([]string, 0, count)
	for _, i := range rng.Perm(len(candidates))[:count] {
		picked = append(picked, candidates[i])
	}
	acceptLanguage := strings.Join(picked, ", ")
	headers.Set(HeaderAcceptLanguage, acceptLanguage)

	port := p.PortRange.Min
	if span := p.PortRange.Max - p.PortRange.Min; span > 0 {
		port += rng.IntN(span + 1)
	}
	headers.Set(HeaderForwardedPort, strconv.Itoa(port))

	var referer string
	if rng.Float64() < refererProbability {
		referer = DefaultReferers[rng.IntN(len(DefaultReferers))]
		headers.Set(HeaderReferer, referer)
	}

	return Spoofed{
		Profile:        p.Name,
		AcceptLanguage: acceptLanguage,
		Port:           port,
		Referer:        referer,
		headers:        headers,
	}
}
