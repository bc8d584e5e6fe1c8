package task

import (
	"context"
	"time"
)

// OwnerEnumerator supplies the set of owner partitions a domain runs
// per-owner stages against (e.g. the 47 prefecture English names).
type OwnerEnumerator func(ctx context.Context) ([]string, error)

// GlobalOwner is the sentinel owner for domain-global tasks, matching the
// distilled system's "jp" convention.
const GlobalOwner = "jp"

// Registry materializes the full task roster for a domain on startup.
// OwnerTaskTypes are task types run once per enumerated owner;
// GlobalTaskTypes are task types run once for the whole domain under
// GlobalOwner.
type Registry struct {
	Domain          string
	Store           Store
	Owners          OwnerEnumerator
	OwnerTaskTypes  []string
	GlobalTaskTypes []string
}

// HealthCheck ensures a task row exists for every (task_type, owner) pair
// this domain declares. It never deletes or disables a row, and is safe
// to call repeatedly.
func (r *Registry) HealthCheck(ctx context.Context) error {
	now := time.Now().UTC()

	owners, err := r.Owners(ctx)
	if err != nil {
		return err
	}

	for _, taskType := range r.OwnerTaskTypes {
		for _, owner := range owners {
			if err := r.Store.EnsureExists(ctx, r.Domain, taskType, owner, now); err != nil {
				return err
			}
		}
	}

	for _, taskType := range r.GlobalTaskTypes {
		if err := r.Store.EnsureExists(ctx, r.Domain, taskType, GlobalOwner, now); err != nil {
			return err
		}
	}

	return nil
}
