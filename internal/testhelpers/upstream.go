package testhelpers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// TestAPIKey is long enough to pass client key validation.
const TestAPIKey = "test-access-key-0123456789"

// ProviderBody renders a weatherstack-style success body.
func ProviderBody(name, country, localtime string, temperature float64) string {
	return fmt.Sprintf(`{"location":{"name":%q,"country":%q,"localtime":%q},"current":{"temperature":%v}}`,
		name, country, localtime, temperature)
}

// FakeUpstream is an httptest server impersonating the weather provider.
// By default it echoes the query city as the resolved name.
type FakeUpstream struct {
	Server *httptest.Server

	mu      sync.Mutex
	status  int
	body    string
	delay   time.Duration
	queries []string
}

// NewFakeUpstream starts a FakeUpstream that is closed when t finishes.
func NewFakeUpstream(t testing.TB) *FakeUpstream {
	t.Helper()
	f := &FakeUpstream{status: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL to pass to the client.
func (f *FakeUpstream) URL() string {
	return f.Server.URL
}

// Respond fixes the status and body returned for every subsequent call.
// An empty body restores the echo behaviour.
func (f *FakeUpstream) Respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.body = body
}

// Delay holds every subsequent response for d, or until the request is abandoned.
func (f *FakeUpstream) Delay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Calls returns how many requests the server has received.
func (f *FakeUpstream) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// Queries returns the query parameter of every request received, in order.
func (f *FakeUpstream) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *FakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("query")

	f.mu.Lock()
	f.queries = append(f.queries, city)
	status, body, delay := f.status, f.body, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if body == "" && status == http.StatusOK {
		body = ProviderBody(city, "Testland", "2024-01-01 10:00", 20)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
