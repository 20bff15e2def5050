package memory

import (
	"context"
	"sync"

	"github.com/frankieli/base_tombala/internal/modules/tombala/domain"
)

// SnapshotRepository keeps the latest snapshot in process
type SnapshotRepository struct {
	snap *domain.Snapshot
	mu   sync.RWMutex
}

// NewSnapshotRepository creates a new memory snapshot repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{}
}

func (r *SnapshotRepository) Save(ctx context.Context, snap *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *snap
	copied.FilledNumbers = append([]int(nil), snap.FilledNumbers...)
	r.snap = &copied
	return nil
}

func (r *SnapshotRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snap == nil {
		return nil, domain.ErrGameNotFound
	}
	copied := *r.snap
	copied.FilledNumbers = append([]int(nil), r.snap.FilledNumbers...)
	return &copied, nil
}
