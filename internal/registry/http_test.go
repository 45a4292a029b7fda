package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Verify_Exists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/verify/358879090123456", r.URL.Path)
		_ = json.NewEncoder(w).Encode(VerificationResult{
			IMEI:   "358879090123456",
			Exists: true,
			Device: &Device{
				ID:   "dev-1",
				IMEI: "358879090123456",
				Owner: Person{
					ID: "per-1", Name: "Ada Mensah", Identification: "GHA-0012",
				},
				Company:      Company{ID: "acme", Name: "Acme Telecom"},
				RegisteredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)

	result, err := client.Verify(context.Background(), "358879090123456")
	require.NoError(t, err)
	require.True(t, result.Exists)
	require.NotNil(t, result.Device)
	require.Equal(t, "Ada Mensah", result.Device.Owner.Name)
	require.Equal(t, "Acme Telecom", result.Device.Company.Name)
}

func TestHTTPClient_Verify_NotRegistered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(VerificationResult{IMEI: "358879090123456", Exists: false})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)

	result, err := client.Verify(context.Background(), "358879090123456")
	require.NoError(t, err)
	require.False(t, result.Exists)
	require.Nil(t, result.Device)
}

func TestHTTPClient_ServerError_CarriesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error": "device is already registered"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)

	_, err := client.Register(context.Background(), "358879090123456", "per-1")
	require.Error(t, err)

	regErr := AsError(err)
	require.Equal(t, ErrServer, regErr.Kind)
	require.Equal(t, http.StatusConflict, regErr.Status)
	require.Equal(t, "device is already registered", regErr.Message)
}

func TestHTTPClient_ServerError_NoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)

	_, err := client.Companies(context.Background())
	regErr := AsError(err)
	require.Equal(t, ErrServer, regErr.Kind)
	require.Equal(t, http.StatusInternalServerError, regErr.Status)
	require.Empty(t, regErr.Message)
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 20*time.Millisecond)

	_, err := client.Verify(context.Background(), "358879090123456")
	require.Error(t, err)
	require.Equal(t, ErrTimeout, AsError(err).Kind)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	// Port from a closed listener: nothing is listening there
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewHTTPClient(url, time.Second)

	_, err := client.Companies(context.Background())
	require.Error(t, err)
	require.Equal(t, ErrNetwork, AsError(err).Kind)
}

func TestHTTPClient_CreatePerson(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/persons", r.URL.Path)

		var person NewPerson
		require.NoError(t, json.NewDecoder(r.Body).Decode(&person))
		require.Equal(t, "acme", person.CompanyID)

		_ = json.NewEncoder(w).Encode(Person{
			ID:             "per-served",
			CompanyID:      person.CompanyID,
			Name:           person.Name,
			Identification: person.Identification,
			Phone:          person.Phone,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)

	created, err := client.CreatePerson(context.Background(), NewPerson{
		CompanyID:      "acme",
		Name:           "Kofi Annan Jr",
		Identification: "GHA-4471",
	})
	require.NoError(t, err)
	require.Equal(t, "per-served", created.ID, "identity comes from the service")
}

func TestHTTPClient_PersonsByCompany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/companies/acme/persons", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Person{
			{ID: "per-1", Name: "Ada Mensah", DeviceCount: 2},
			{ID: "per-2", Name: "Yaw Boateng", DeviceCount: 0},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second)

	persons, err := client.PersonsByCompany(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, persons, 2)
	require.Equal(t, 2, persons[0].DeviceCount)
}

func TestErrorKind_UserMessage(t *testing.T) {
	require.NotEmpty(t, ErrNetwork.UserMessage())
	require.NotEmpty(t, ErrServer.UserMessage())
	require.NotEmpty(t, ErrTimeout.UserMessage())
	require.NotEqual(t, ErrNetwork.UserMessage(), ErrTimeout.UserMessage())
}
