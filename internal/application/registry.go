package application

import (
	"sync"

	"github.com/arven-dev/botfleet/internal/domain"
)

// RegistryEntry is one currently-registered bot identity and its last
// reported in-world location.
type RegistryEntry struct {
	IdentityID string           `json:"uuid"`
	Name       string           `json:"name"`
	Location   *domain.Location `json:"location"`
}

// Registry is the authoritative in-memory map of live bots, keyed by
// identity rather than session so a restarted bot replaces its entry
// instead of duplicating it. Mutations are simple replace-or-filter
// operations applied atomically under one lock; the reporting server reads
// snapshots.
type Registry struct {
	mu      sync.Mutex
	entries []RegistryEntry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers an identity. Adding an identity that is already present is
// a no-op.
func (r *Registry) Add(entry RegistryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries {
		if existing.IdentityID == entry.IdentityID {
			return
		}
	}
	r.entries = append(r.entries, entry)
}

// UpdateLocation overwrites the location for an identity. Reports carry no
// ordering guarantee; last received wins. Unknown identities are ignored.
func (r *Registry) UpdateLocation(identityID string, location domain.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].IdentityID == identityID {
			r.entries[i].Location = &location
			return
		}
	}
}

// Remove deletes the entry for an identity. Removing an absent identity is
// a no-op.
func (r *Registry) Remove(identityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, entry := range r.entries {
		if entry.IdentityID != identityID {
			kept = append(kept, entry)
		}
	}
	r.entries = kept
}

// Snapshot returns a copy of the current entries in registration order.
func (r *Registry) Snapshot() []RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]RegistryEntry, len(r.entries))
	copy(snapshot, r.entries)
	return snapshot
}

// Target is an operator-posted location of interest, keyed by display name
// with a free-form location value.
type Target struct {
	Username string `json:"username"`
	Location string `json:"location"`
}

// TargetList holds operator targets, deduplicated by the exact
// (name, location) pair on add and removed by name.
type TargetList struct {
	mu      sync.Mutex
	targets []Target
}

func NewTargetList() *TargetList {
	return &TargetList{}
}

// Add appends a target unless the exact pair is already present. It
// reports whether the list changed.
func (l *TargetList) Add(target Target) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.targets {
		if existing == target {
			return false
		}
	}
	l.targets = append(l.targets, target)
	return true
}

// Remove drops every target with the given name.
func (l *TargetList) Remove(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.targets[:0]
	for _, target := range l.targets {
		if target.Username != username {
			kept = append(kept, target)
		}
	}
	l.targets = kept
}

// Snapshot returns a copy of the current targets.
func (l *TargetList) Snapshot() []Target {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]Target, len(l.targets))
	copy(snapshot, l.targets)
	return snapshot
}
