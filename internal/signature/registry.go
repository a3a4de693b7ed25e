package signature

import (
	"sort"
	"sync"
)

// =============================================================================
// REGISTRY - SHARED PROFILE TABLE WITH PER-SIGNATURE WRITE DISCIPLINE
// =============================================================================

// Registry is the process-wide signature table. Reads happen on every
// judgment request; writes come from the adaptive learning engine. Each
// signature has its own lock so a sensitivity adjustment for one signature
// never contends with traffic on another, and concurrent adjustments to the
// same signature cannot interleave.
type Registry struct {
	mu       sync.RWMutex // guards the maps, not the profile fields
	profiles map[string]*lockedProfile
}

type lockedProfile struct {
	mu      sync.Mutex
	profile Profile
}

// NewRegistry creates a registry seeded with the given profiles. An empty
// seed falls back to the built-in roster.
func NewRegistry(seed []Profile) *Registry {
	if len(seed) == 0 {
		seed = defaultProfiles()
	}
	r := &Registry{profiles: make(map[string]*lockedProfile, len(seed))}
	for _, p := range seed {
		r.profiles[p.ID] = &lockedProfile{profile: p.Clone()}
	}
	return r
}

// Get returns a copy of the profile for id. Unknown ids return the default
// profile; selection never fails on a bad signature id.
func (r *Registry) Get(id string) Profile {
	if lp := r.lookup(id); lp != nil {
		lp.mu.Lock()
		defer lp.mu.Unlock()
		return lp.profile.Clone()
	}
	if lp := r.lookup(DefaultID); lp != nil {
		lp.mu.Lock()
		defer lp.mu.Unlock()
		return lp.profile.Clone()
	}
	// Registry seeded without the default roster; synthesize a neutral profile.
	return Profile{ID: id, Name: "Default", EmotionSensitivity: 0.5, MetaSensitivity: 0.5}
}

// Has reports whether the exact signature id is registered.
func (r *Registry) Has(id string) bool {
	return r.lookup(id) != nil
}

// IDs returns all registered signature ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ensure registers the profile if its id is not present yet and reports
// whether it was added. Used by create-specialized-signature adaptations.
func (r *Registry) Ensure(p Profile) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; ok {
		return false
	}
	r.profiles[p.ID] = &lockedProfile{profile: p.Clone()}
	return true
}

// AdjustEmotionSensitivity applies a delta to the signature's emotion
// sensitivity, clamped to [0,1]. Returns the new value and whether the
// signature exists.
func (r *Registry) AdjustEmotionSensitivity(id string, delta float64) (float64, bool) {
	lp := r.lookup(id)
	if lp == nil {
		return 0, false
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.profile.EmotionSensitivity = clamp01(lp.profile.EmotionSensitivity + delta)
	return lp.profile.EmotionSensitivity, true
}

// AdjustMetaSensitivity applies a delta to the signature's meta sensitivity,
// clamped to [0,1].
func (r *Registry) AdjustMetaSensitivity(id string, delta float64) (float64, bool) {
	lp := r.lookup(id)
	if lp == nil {
		return 0, false
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.profile.MetaSensitivity = clamp01(lp.profile.MetaSensitivity + delta)
	return lp.profile.MetaSensitivity, true
}

// AddStrategy appends a strategy preference if not already present.
func (r *Registry) AddStrategy(id, strategy string) bool {
	lp := r.lookup(id)
	if lp == nil {
		return false
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for _, s := range lp.profile.PrimaryStrategies {
		if s == strategy {
			return true
		}
	}
	lp.profile.PrimaryStrategies = append(lp.profile.PrimaryStrategies, strategy)
	return true
}

func (r *Registry) lookup(id string) *lockedProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[id]
}
