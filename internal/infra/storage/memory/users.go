package memory

import (
	"context"
	"strings"
	"sync"

	domainuser "booking-service/internal/domain/user"
)

// Directory stores guest and host profiles in memory. Not suitable for production.
type Directory struct {
	mu   sync.RWMutex
	byID map[domainuser.ID]domainuser.Profile
}

func NewDirectory() *Directory {
	return &Directory{byID: make(map[domainuser.ID]domainuser.Profile)}
}

func (d *Directory) ByID(ctx context.Context, id domainuser.ID) (*domainuser.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.byID[id]; ok {
		return &p, nil
	}
	return nil, domainuser.ErrNotFound
}

func (d *Directory) Save(ctx context.Context, p domainuser.Profile) error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return domainuser.ErrNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[p.ID] = p
	return nil
}

var _ domainuser.Directory = (*Directory)(nil)
