// Package fingerprint supplies the browser identity of a session: one TLS
// ClientHello profile held for the whole session and a User-Agent drawn
// afresh for every request.
//
// Profiles map onto uTLS ClientHello IDs (github.com/refraction-networking/utls).
// Where uTLS has no exact parrot for a browser build the closest available
// ClientHello of the same family is used.
package fingerprint

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	utls "github.com/refraction-networking/utls"

	"github.com/soda-recon/soda/pkg/defaults"
)

// ErrUnknownProfile is returned when a profile name has no ClientHello.
var ErrUnknownProfile = errors.New("fingerprint: unknown TLS profile")

// ErrEmptyPool is returned when a pool would have no profiles or agents.
var ErrEmptyPool = errors.New("fingerprint: empty pool")

// Profile is a TLS impersonation profile.
type Profile struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// ClientHello is nil for the standard library TLS stack.
	ClientHello *utls.ClientHelloID `json:"-" yaml:"-"`
}

// Provider is the fingerprint capability the request layer depends on.
type Provider interface {
	// SessionProfile chooses the TLS profile for a new session.
	SessionProfile() *Profile

	// UserAgent returns the User-Agent for the next request.
	UserAgent() string
}

var registry = map[string]struct {
	id   *utls.ClientHelloID
	desc string
}{
	"chrome120":  {&utls.HelloChrome_120, "Chrome 120"},
	"chrome119":  {&utls.HelloChrome_120, "Chrome 119 (Chrome 120 ClientHello)"},
	"chrome110":  {&utls.HelloChrome_112_PSK_Shuf, "Chrome 110 (shuffled extensions)"},
	"chrome107":  {&utls.HelloChrome_106_Shuffle, "Chrome 107 (Chrome 106 shuffled ClientHello)"},
	"safari17_0": {&utls.HelloSafari_16_0, "Safari 17.0 (Safari 16 ClientHello)"},
	"safari15_5": {&utls.HelloIOS_14, "Safari 15.5 (iOS 14 ClientHello)"},
	"edge99":     {&utls.HelloEdge_106, "Edge 99 (Edge 106 ClientHello)"},
	"firefox120": {&utls.HelloFirefox_120, "Firefox 120"},
	"firefox105": {&utls.HelloFirefox_105, "Firefox 105"},
	"randomized": {&utls.HelloRandomizedNoALPN, "Randomized ClientHello"},
	"go":         {nil, "Go standard library TLS"},
}

// ProfileByName resolves a profile name (case-insensitive).
func ProfileByName(name string) (*Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	entry, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return &Profile{Name: key, Description: entry.desc, ClientHello: entry.id}, nil
}

// DefaultProfiles resolves defaults.TLSProfiles.
func DefaultProfiles() []*Profile {
	profiles := make([]*Profile, 0, len(defaults.TLSProfiles))
	for _, name := range defaults.TLSProfiles {
		if p, err := ProfileByName(name); err == nil {
			profiles = append(profiles, p)
		}
	}
	return profiles
}

// Pool is the production Provider: a uniform random choice from its
// profiles (per session) and agents (per request).
type Pool struct {
	mu       sync.Mutex
	profiles []*Profile
	agents   []string
}

// NewPool builds a pool from profile names and user agents. Empty inputs
// fall back to the built-in pools.
func NewPool(profileNames, agents []string) (*Pool, error) {
	profiles := DefaultProfiles()
	if len(profileNames) > 0 {
		profiles = nil
		for _, name := range profileNames {
			p, err := ProfileByName(name)
			if err != nil {
				return nil, err
			}
			profiles = append(profiles, p)
		}
	}
	if len(agents) == 0 {
		agents = defaults.UserAgents
	}
	if len(profiles) == 0 || len(agents) == 0 {
		return nil, ErrEmptyPool
	}
	return &Pool{profiles: profiles, agents: append([]string(nil), agents...)}, nil
}

// DefaultPool returns the built-in pool.
func DefaultPool() *Pool {
	p, _ := NewPool(nil, nil)
	return p
}

// SessionProfile implements Provider.
func (p *Pool) SessionProfile() *Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiles[randIndex(len(p.profiles))]
}

// UserAgent implements Provider.
func (p *Pool) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[randIndex(len(p.agents))]
}

// Profiles lists the profile names in the pool.
func (p *Pool) Profiles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.profiles))
	for i, pr := range p.profiles {
		names[i] = pr.Name
	}
	return names
}

// randIndex uses crypto/rand so the choice is not predictable across runs.
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// Static is a deterministic Provider for tests and reproducible runs.
type Static struct {
	Profile *Profile
	Agent   string
}

// SessionProfile implements Provider.
func (s Static) SessionProfile() *Profile {
	if s.Profile == nil {
		return &Profile{Name: "go", Description: registry["go"].desc}
	}
	return s.Profile
}

// UserAgent implements Provider.
func (s Static) UserAgent() string {
	if s.Agent == "" {
		return defaults.UserAgents[0]
	}
	return s.Agent
}
