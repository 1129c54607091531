// Package testutil provides testing utilities for the enrollment sync.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockPage defines one page of a mocked partition.
type MockPage struct {
	// Results are raw JSON record objects
	Results []string

	// StatusCode overrides the 200 OK response when non-zero
	StatusCode int

	// Body replaces the generated JSON body when non-empty
	Body string

	// Next overrides the generated next-page URL when non-empty
	Next string

	// Drop closes the connection without a response (transport error)
	Drop bool

	Delay time.Duration
}

// MockAPI is a configurable mock Education Data API server for testing.
// Partitions are served at /{year}/{grade}/ and paginated with ?page=N.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount  int
	RequestedURLs []string
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.RequestedURLs = append(mock.RequestedURLs, r.URL.RequestURI())
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found."}`))
	}))

	return mock
}

// URL returns the mock server URL, usable as the API base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestedURLs = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// PartitionPath returns the request path of a partition's first page.
func PartitionPath(year int, grade string) string {
	return fmt.Sprintf("/%d/%s/", year, grade)
}

// SetPartition serves pages for the partition. Page N links to page N+1
// through "next"; the last page has "next": null.
func (m *MockAPI) SetPartition(year int, grade string, pages ...MockPage) {
	path := PartitionPath(year, grade)

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		n := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > len(pages) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			n = parsed
		}
		if len(pages) == 0 {
			writePage(w, []string{}, nil)
			return
		}

		page := pages[n-1]

		if page.Delay > 0 {
			time.Sleep(page.Delay)
		}

		if page.Drop {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					conn.Close()
					return
				}
			}
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		if page.StatusCode != 0 && page.StatusCode != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(page.StatusCode)
			w.Write([]byte(`{"detail": "mock error"}`))
			return
		}

		if page.Body != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(page.Body))
			return
		}

		var next *string
		switch {
		case page.Next != "":
			next = &page.Next
		case n < len(pages):
			u := fmt.Sprintf("%s%s?page=%d", m.server.URL, path, n+1)
			next = &u
		}

		writePage(w, page.Results, next)
	})
}

func writePage(w http.ResponseWriter, results []string, next *string) {
	raw := make([]json.RawMessage, len(results))
	for i, r := range results {
		raw[i] = json.RawMessage(r)
	}

	body := struct {
		Count   int               `json:"count"`
		Next    *string           `json:"next"`
		Results []json.RawMessage `json:"results"`
	}{
		Count:   len(raw),
		Next:    next,
		Results: raw,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedURLs returns the request URIs in arrival order.
func (m *MockAPI) GetRequestedURLs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.RequestedURLs...)
}

// Records builds n enrollment-like records for a partition.
func Records(year int, grade string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(`{"ncessch":"%012d","year":%d,"grade":%q,"enrollment":%d}`,
			i+1, year, strings.TrimPrefix(grade, "grade-"), (i+1)*10)
	}
	return out
}

// NewRecordPage creates a successful page with the given records.
func NewRecordPage(records ...string) MockPage {
	return MockPage{StatusCode: http.StatusOK, Results: records}
}

// NewServerErrorPage creates a 500 Internal Server Error page.
func NewServerErrorPage() MockPage {
	return MockPage{StatusCode: http.StatusInternalServerError}
}

// NewNotFoundPage creates a 404 Not Found page.
func NewNotFoundPage() MockPage {
	return MockPage{StatusCode: http.StatusNotFound}
}

// NewDroppedPage creates a page whose connection is closed mid-request.
func NewDroppedPage() MockPage {
	return MockPage{Drop: true}
}

// NewMalformedPage creates a 200 response without a "results" field.
func NewMalformedPage() MockPage {
	return MockPage{Body: `{"count": 0, "next": null}`}
}
