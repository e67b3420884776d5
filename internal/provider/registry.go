package provider

import (
	"fmt"
	"strings"

	"github.com/waabox/ontoloci/internal/domain"
)

// Registry maps remote URL host patterns to RepositoryProvider implementations.
type Registry struct {
	entries []entry
}

type entry struct {
	host     string
	provider domain.RepositoryProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register associates a host pattern (e.g., "github.com") with a provider.
func (r *Registry) Register(host string, p domain.RepositoryProvider) {
	r.entries = append(r.entries, entry{host: host, provider: p})
}

// Detect returns the provider matching the host in the given remote URL.
// An empty remote URL selects the first registered provider.
// Returns an error if no matching provider is registered.
func (r *Registry) Detect(remoteURL string) (domain.RepositoryProvider, error) {
	if remoteURL == "" && len(r.entries) > 0 {
		return r.entries[0].provider, nil
	}
	for _, e := range r.entries {
		if strings.Contains(remoteURL, e.host) {
			return e.provider, nil
		}
	}
	return nil, fmt.Errorf("no provider found for remote: %s", remoteURL)
}
