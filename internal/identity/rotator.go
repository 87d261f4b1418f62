package identity

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/ytget/nexus-downloader/internal/model"
)

// Rotator issues spoofed identities from an ordered profile set. It is safe for
// concurrent use; the round-robin cursor is only advanced atomically.
type Rotator struct {
	mu       sync.RWMutex
	profiles []Profile
	cursor   *atomic.Uint64

	rngMu sync.Mutex
	rng   *rand.Rand

	store              Store
	refererProbability float64
	logger             *log.Entry
}

// Option configures a Rotator
type Option func(*Rotator)

// WithProfiles replaces the built-in defaults. Invalid profiles are dropped;
// if none remain the defaults stay in place.
func WithProfiles(profiles []Profile) Option {
	return func(r *Rotator) {
		valid := make([]Profile, 0, len(profiles))
		for _, p := range profiles {
			if err := ValidateProfile(p); err != nil {
				r.logger.WithError(err).Warn("skipping invalid profile")
				continue
			}
			valid = append(valid, p.clone())
		}
		if len(valid) > 0 {
			r.profiles = valid
		}
	}
}

// WithSeed makes spoofing deterministic
func WithSeed(seed1, seed2 uint64) Option {
	return func(r *Rotator) {
		r.rng = rand.New(rand.NewPCG(seed1, seed2))
	}
}

// WithRefererProbability overrides the chance of attaching a referer
func WithRefererProbability(p float64) Option {
	return func(r *Rotator) {
		r.refererProbability = p
	}
}

// NewRotator builds a rotator from the built-in profiles plus the custom
// profiles in store. An unreadable or malformed store is ignored.
func NewRotator(store Store, opts ...Option) *Rotator {
	now := uint64(time.Now().UnixNano())
	r := &Rotator{
		profiles:           DefaultProfiles(),
		cursor:             atomic.NewUint64(0),
		rng:                rand.New(rand.NewPCG(now, now>>1|1)),
		store:              store,
		refererProbability: DefaultRefererProbability,
		logger:             log.WithField("component", "identity"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if store != nil {
		custom, err := store.Load()
		if err != nil {
			r.logger.WithError(err).Debug("custom profiles unavailable, using built-in defaults")
		}
		for _, p := range custom {
			if err := ValidateProfile(p); err != nil {
				r.logger.WithError(err).Warn("skipping invalid custom profile")
				continue
			}
			p.IsCustom = true
			r.profiles = append(r.profiles, p.clone())
		}
	}
	if len(r.profiles) == 0 {
		r.profiles = DefaultProfiles()
	}
	return r
}

// SampleRandom picks a profile uniformly at random and spoofs it
func (r *Rotator) SampleRandom() Spoofed {
	r.mu.RLock()
	r.rngMu.Lock()
	p := r.profiles[r.rng.IntN(len(r.profiles))]
	r.rngMu.Unlock()
	r.mu.RUnlock()

	return r.spoof(p)
}

// SampleNext advances the round-robin cursor and spoofs the selected profile.
// Every profile is issued once per full cycle before any repeats.
func (r *Rotator) SampleNext() Spoofed {
	r.mu.RLock()
	idx := (r.cursor.Inc() - 1) % uint64(len(r.profiles))
	p := r.profiles[idx]
	r.mu.RUnlock()

	return r.spoof(p)
}

// AddCustomProfile appends p and persists the custom set. On a persistence
// failure the profile stays in memory and a *model.ConfigWriteError is returned.
func (r *Rotator) AddCustomProfile(p Profile) error {
	if err := ValidateProfile(p); err != nil {
		return err
	}
	p = p.clone()
	p.IsCustom = true

	r.mu.Lock()
	r.profiles = append(r.profiles, p)
	custom := r.customLocked()
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	if err := r.store.Save(custom); err != nil {
		r.logger.WithError(err).WithField("profile", p.Name).Warn("failed to persist custom profile")
		var writeErr *model.ConfigWriteError
		if errors.As(err, &writeErr) {
			return writeErr
		}
		return &model.ConfigWriteError{Err: err}
	}
	return nil
}

// Profiles returns copies of all configured profiles in rotation order
func (r *Rotator) Profiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.clone())
	}
	return out
}

// Len returns the number of configured profiles
func (r *Rotator) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

func (r *Rotator) customLocked() []Profile {
	var custom []Profile
	for _, p := range r.profiles {
		if p.IsCustom {
			custom = append(custom, p.clone())
		}
	}
	return custom
}

func (r *Rotator) spoof(p Profile) Spoofed {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return Spoof(p, r.rng, r.refererProbability)
}
