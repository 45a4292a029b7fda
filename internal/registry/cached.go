package registry

import (
	"context"
	"time"

	"imeidesk/internal/cachemanager"
	"imeidesk/internal/log"
)

// cachedClient wraps a Client with a TTL cache over person lists.
// Verification is never cached: every Verify reflects the registry now.
type cachedClient struct {
	inner   Client
	persons cachemanager.CacheManager[string, []Person]
	ttl     time.Duration
}

// NewCachedClient wraps inner with per-company person list caching.
func NewCachedClient(inner Client, persons cachemanager.CacheManager[string, []Person], ttl time.Duration) Client {
	return &cachedClient{inner: inner, persons: persons, ttl: ttl}
}

var _ Client = (*cachedClient)(nil)

func (c *cachedClient) Verify(ctx context.Context, imei string) (VerificationResult, error) {
	return c.inner.Verify(ctx, imei)
}

func (c *cachedClient) Companies(ctx context.Context) ([]Company, error) {
	return c.inner.Companies(ctx)
}

func (c *cachedClient) PersonsByCompany(ctx context.Context, companyID string) ([]Person, error) {
	// A hit slides the TTL so the list stays warm while the operator
	// keeps working inside the same company.
	if cached, found := c.persons.GetWithRefresh(ctx, companyID, c.ttl); found {
		return cached, nil
	}

	persons, err := c.inner.PersonsByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	c.persons.Set(ctx, companyID, persons, c.ttl)
	return persons, nil
}

func (c *cachedClient) CreatePerson(ctx context.Context, person NewPerson) (Person, error) {
	created, err := c.inner.CreatePerson(ctx, person)
	if err != nil {
		return Person{}, err
	}

	// The cached list for this company no longer includes everyone
	if err := c.persons.Delete(ctx, created.CompanyID); err != nil {
		log.ErrorErr(log.CatCache, "invalidating person cache", err, "company", created.CompanyID)
	}
	return created, nil
}

func (c *cachedClient) Register(ctx context.Context, imei, personID string) (Device, error) {
	device, err := c.inner.Register(ctx, imei, personID)
	if err != nil {
		return Device{}, err
	}

	// Device counts for the owner's company are now stale
	if err := c.persons.Delete(ctx, device.Company.ID); err != nil {
		log.ErrorErr(log.CatCache, "invalidating person cache", err, "company", device.Company.ID)
	}
	return device, nil
}
