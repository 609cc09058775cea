package core

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Identifiers tracks live owners by uuid so logs and leak reports can name them.
type Identifiers struct {
	mu     sync.Mutex
	owners map[uuid.UUID]string
}

var identifiers = &Identifiers{owners: make(map[uuid.UUID]string)}

// IdentifierAquireNewID registers owner under a fresh uuid.
func IdentifierAquireNewID(owner string) uuid.UUID {
	id := uuid.New()
	identifiers.mu.Lock()
	identifiers.owners[id] = owner
	identifiers.mu.Unlock()
	return id
}

func IdentifierReleaseID(id uuid.UUID) error {
	identifiers.mu.Lock()
	defer identifiers.mu.Unlock()
	if _, ok := identifiers.owners[id]; !ok {
		return fmt.Errorf("identifier_release_id: id '%s' is not registered. Nothing was done", id)
	}
	delete(identifiers.owners, id)
	return nil
}

// IdentifierLiveOwners lists the owners that were never released.
func IdentifierLiveOwners() []string {
	identifiers.mu.Lock()
	defer identifiers.mu.Unlock()
	out := make([]string, 0, len(identifiers.owners))
	for id, o := range identifiers.owners {
		out = append(out, o+"#"+id.String()[:8])
	}
	return out
}
