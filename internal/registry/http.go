package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imeidesk/internal/log"
)

// httpClient talks to a remote registry service over JSON/HTTP.
type httpClient struct {
	base    string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClient creates a Client backed by the registry service at base.
// Each request is bounded by timeout.
func NewHTTPClient(base string, timeout time.Duration) Client {
	return &httpClient{
		base:    strings.TrimRight(base, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

var _ Client = (*httpClient)(nil)

func (c *httpClient) Verify(ctx context.Context, imei string) (VerificationResult, error) {
	var result VerificationResult
	err := c.get(ctx, "/v1/verify/"+url.PathEscape(imei), &result)
	if err != nil {
		return VerificationResult{}, err
	}
	return result, nil
}

func (c *httpClient) Companies(ctx context.Context) ([]Company, error) {
	var companies []Company
	if err := c.get(ctx, "/v1/companies", &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

func (c *httpClient) PersonsByCompany(ctx context.Context, companyID string) ([]Person, error) {
	var persons []Person
	path := "/v1/companies/" + url.PathEscape(companyID) + "/persons"
	if err := c.get(ctx, path, &persons); err != nil {
		return nil, err
	}
	return persons, nil
}

func (c *httpClient) CreatePerson(ctx context.Context, person NewPerson) (Person, error) {
	var created Person
	if err := c.post(ctx, "/v1/persons", person, &created); err != nil {
		return Person{}, err
	}
	return created, nil
}

func (c *httpClient) Register(ctx context.Context, imei, personID string) (Device, error) {
	body := struct {
		IMEI     string `json:"imei"`
		PersonID string `json:"person_id"`
	}{IMEI: imei, PersonID: personID}

	var device Device
	if err := c.post(ctx, "/v1/registrations", body, &device); err != nil {
		return Device{}, err
	}
	return device, nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &Error{Kind: ErrNetwork, Err: fmt.Errorf("encoding request: %w", err)}
	}
	return c.do(ctx, http.MethodPost, path, data, out)
}

func (c *httpClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return &Error{Kind: ErrNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		regErr := classifyTransport(err)
		log.ErrorErr(log.CatRegistry, "request failed", err, "method", method, "path", path, "kind", regErr.Kind)
		return regErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		regErr := &Error{Kind: ErrServer, Status: resp.StatusCode, Message: serverMessage(resp.Body)}
		log.Error(log.CatRegistry, "server error", "method", method, "path", path, "status", resp.StatusCode)
		return regErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: ErrServer, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// serverMessage extracts the error message from a failure response body.
// The service sends {"error": "..."}; anything else yields empty.
func serverMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Error
}
