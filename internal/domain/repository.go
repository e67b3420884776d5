package domain

import "fmt"

// Repository identifies a forge-hosted repository.
type Repository struct {
	Owner     string
	Name      string
	RemoteURL string
}

// String returns "owner/name".
func (r Repository) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}
