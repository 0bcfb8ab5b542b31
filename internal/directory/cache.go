// Package directory resolves person identifiers to contact/channel
// records, with a time-bounded cache in front of the identity provider
package directory

import (
	"context"
	"log"
	"time"

	"github.com/cloud-shuttle/muster/pkg/telemetry"
	"github.com/cloud-shuttle/muster/pkg/types"
)

// Directory lists every known contact. Implemented by the Google
// Workspace adapter in production and by mocks in tests.
type Directory interface {
	ListAll(ctx context.Context) ([]types.Contact, error)
}

// Cache fronts a Directory with a whole-snapshot TTL. A miss inside
// the TTL window stays a miss rather than forcing a refetch, so one
// reconciliation run makes at most one directory call.
type Cache struct {
	dir Directory
	ttl time.Duration
	now func() time.Time

	contacts  map[string]types.Contact
	fetchedAt time.Time
}

// NewCache creates a cache over dir with the given TTL
func NewCache(dir Directory, ttl time.Duration) *Cache {
	return &Cache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}
}

// Resolve returns the contact for a person identifier, refreshing the
// snapshot first if the TTL has lapsed. A refresh failure degrades to
// serving the stale snapshot (or nothing at all) for the run.
func (c *Cache) Resolve(ctx context.Context, personID string) (types.Contact, bool) {
	if personID == "" {
		return types.Contact{}, false
	}

	if c.expired() {
		if err := c.Refresh(ctx); err != nil {
			log.Printf("[directory] refresh failed, serving stale snapshot: %v", err)
		}
	}

	contact, ok := c.contacts[personID]
	return contact, ok
}

// Refresh refetches the whole directory snapshot
func (c *Cache) Refresh(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDirectoryRefresh)
	defer span.End()

	all, err := c.dir.ListAll(ctx)
	if err != nil {
		telemetry.RecordError(span, err, telemetry.ErrorCategoryDirectory)
		// Keep the stale snapshot; bump fetchedAt so one failing
		// provider does not get hammered on every resolve of the run.
		c.fetchedAt = c.now()
		return err
	}

	contacts := make(map[string]types.Contact, len(all))
	for _, contact := range all {
		contacts[contact.ID] = contact
	}
	c.contacts = contacts
	c.fetchedAt = c.now()
	return nil
}

// Size returns the number of cached contacts
func (c *Cache) Size() int {
	return len(c.contacts)
}

func (c *Cache) expired() bool {
	return c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl
}
