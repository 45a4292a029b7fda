package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"imeidesk/internal/cachemanager"
)

// countingClient records how many times each operation reached the backend.
type countingClient struct {
	personsCalls int
	persons      []Person
	created      Person
	device       Device
}

var _ Client = (*countingClient)(nil)

func (c *countingClient) Verify(ctx context.Context, imei string) (VerificationResult, error) {
	return VerificationResult{IMEI: imei}, nil
}

func (c *countingClient) Companies(ctx context.Context) ([]Company, error) {
	return nil, nil
}

func (c *countingClient) PersonsByCompany(ctx context.Context, companyID string) ([]Person, error) {
	c.personsCalls++
	return c.persons, nil
}

func (c *countingClient) CreatePerson(ctx context.Context, person NewPerson) (Person, error) {
	return c.created, nil
}

func (c *countingClient) Register(ctx context.Context, imei, personID string) (Device, error) {
	return c.device, nil
}

func newCachedTestClient(inner Client) Client {
	cache := cachemanager.NewInMemoryCacheManager[string, []Person](
		"persons", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval,
	)
	return NewCachedClient(inner, cache, time.Minute)
}

func TestCachedClient_SecondLookupServedFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingClient{persons: []Person{{ID: "per-1", Name: "Ada Mensah"}}}
	client := newCachedTestClient(inner)

	first, err := client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, 1, inner.personsCalls, "second lookup must not reach the backend")
}

func TestCachedClient_DistinctCompaniesCachedSeparately(t *testing.T) {
	ctx := context.Background()
	inner := &countingClient{}
	client := newCachedTestClient(inner)

	_, err := client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)
	_, err = client.PersonsByCompany(ctx, "beta")
	require.NoError(t, err)

	require.Equal(t, 2, inner.personsCalls)
}

func TestCachedClient_CreatePersonInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingClient{created: Person{ID: "per-2", CompanyID: "acme"}}
	client := newCachedTestClient(inner)

	_, err := client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)

	_, err = client.CreatePerson(ctx, NewPerson{CompanyID: "acme", Name: "Yaw", Identification: "GHA-1"})
	require.NoError(t, err)

	_, err = client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 2, inner.personsCalls, "creation must invalidate the company's cached list")
}

func TestCachedClient_RegisterInvalidatesOwnersCompany(t *testing.T) {
	ctx := context.Background()
	inner := &countingClient{device: Device{ID: "dev-1", Company: Company{ID: "acme"}}}
	client := newCachedTestClient(inner)

	_, err := client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)

	_, err = client.Register(ctx, "358879090123456", "per-1")
	require.NoError(t, err)

	_, err = client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, 2, inner.personsCalls, "device counts change on registration")
}

// refreshSpy counts reads that go through the TTL-sliding lookup.
type refreshSpy struct {
	cachemanager.CacheManager[string, []Person]
	refreshes int
}

func (s *refreshSpy) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) ([]Person, bool) {
	s.refreshes++
	return s.CacheManager.GetWithRefresh(ctx, key, ttl)
}

func TestCachedClient_HitSlidesTTL(t *testing.T) {
	ctx := context.Background()
	inner := &countingClient{persons: []Person{{ID: "per-1", Name: "Ada Mensah"}}}
	spy := &refreshSpy{CacheManager: cachemanager.NewInMemoryCacheManager[string, []Person](
		"persons", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval,
	)}
	client := NewCachedClient(inner, spy, time.Minute)

	_, err := client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)
	_, err = client.PersonsByCompany(ctx, "acme")
	require.NoError(t, err)

	require.Equal(t, 1, inner.personsCalls, "second read served from cache")
	require.Equal(t, 2, spy.refreshes, "person reads slide the entry's TTL")
}
