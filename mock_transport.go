// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package covenant

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// MockResponse represents a mock HTTP response
type MockResponse struct {
	// StatusCode is the HTTP status code to return (default: 200)
	StatusCode int
	// Body is the response body content (used if BodyFunc is nil)
	Body string
	// BodyFunc generates the body from the request. Takes precedence over Body.
	BodyFunc func(*http.Request) string
	// Headers are the HTTP headers to include in the response
	Headers http.Header
	// Delay simulates network latency before returning the response
	Delay time.Duration
	// Error simulates a network error
	Error error
	// OmitContentLength leaves the Content-Length header unset.
	OmitContentLength bool
}

type mockPattern struct {
	pattern  *regexp.Regexp
	response *MockResponse
}

// MockTransport implements http.RoundTripper for tests. Responses are
// registered per exact URL or per regexp; unregistered URLs get a 404 and
// unregistered hosts can be made to fail DNS resolution.
type MockTransport struct {
	responses   map[string]*MockResponse
	patterns    []mockPattern
	deadHosts   map[string]bool
	requests    []string
	concurrent  int
	maxInFlight int
	mutex       sync.Mutex
}

// NewMockTransport creates a new MockTransport instance
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[string]*MockResponse),
		deadHosts: make(map[string]bool),
	}
}

// RegisterResponse registers a mock response for an exact URL match
func (m *MockTransport) RegisterResponse(url string, response *MockResponse) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.responses[url] = withDefaults(response)
}

// RegisterHTML registers a 200 text/html response.
func (m *MockTransport) RegisterHTML(url, html string) {
	m.registerTyped(url, html, "text/html; charset=utf-8")
}

// RegisterXML registers a 200 application/xml response.
func (m *MockTransport) RegisterXML(url, xml string) {
	m.registerTyped(url, xml, "application/xml")
}

// RegisterText registers a 200 text/plain response.
func (m *MockTransport) RegisterText(url, text string) {
	m.registerTyped(url, text, "text/plain")
}

// RegisterStatus registers a response with the given status and body.
func (m *MockTransport) RegisterStatus(url string, status int, body string) {
	headers := make(http.Header)
	headers.Set("Content-Type", "text/html; charset=utf-8")
	m.RegisterResponse(url, &MockResponse{StatusCode: status, Body: body, Headers: headers})
}

// RegisterError registers a mock error for a URL (simulates network failure)
func (m *MockTransport) RegisterError(url string, err error) {
	m.RegisterResponse(url, &MockResponse{Error: err})
}

// RegisterDNSFailure makes every request to host fail with a "no such
// host" DNS error.
func (m *MockTransport) RegisterDNSFailure(host string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.deadHosts[host] = true
}

// RegisterPattern registers a mock response for URLs matching a regex pattern
func (m *MockTransport) RegisterPattern(pattern string, response *MockResponse) error {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.patterns = append(m.patterns, mockPattern{pattern: regex, response: withDefaults(response)})
	return nil
}

// Requests returns every requested URL in arrival order.
func (m *MockTransport) Requests() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.requests...)
}

// RequestCount returns how many times url was requested.
func (m *MockTransport) RequestCount(url string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	n := 0
	for _, r := range m.requests {
		if r == url {
			n++
		}
	}
	return n
}

// MaxInFlight returns the highest number of concurrent round trips seen.
func (m *MockTransport) MaxInFlight() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.maxInFlight
}

// RoundTrip implements the http.RoundTripper interface
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	m.mutex.Lock()
	m.requests = append(m.requests, url)
	m.concurrent++
	if m.concurrent > m.maxInFlight {
		m.maxInFlight = m.concurrent
	}
	dead := m.deadHosts[req.URL.Hostname()]
	mockResp, found := m.responses[url]
	if !found {
		for _, p := range m.patterns {
			if p.pattern.MatchString(url) {
				mockResp = p.response
				found = true
				break
			}
		}
	}
	m.mutex.Unlock()

	defer func() {
		m.mutex.Lock()
		m.concurrent--
		m.mutex.Unlock()
	}()

	if dead {
		return nil, &net.DNSError{Err: "no such host", Name: req.URL.Hostname(), IsNotFound: true}
	}

	if !found {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewBufferString("Not Found")),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	if mockResp.Delay > 0 {
		select {
		case <-time.After(mockResp.Delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	if mockResp.Error != nil {
		return nil, mockResp.Error
	}

	bodyContent := mockResp.Body
	if mockResp.BodyFunc != nil {
		bodyContent = mockResp.BodyFunc(req)
	}

	resp := &http.Response{
		StatusCode: mockResp.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(bodyContent)),
		Header:     mockResp.Headers.Clone(),
		Request:    req,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	if mockResp.OmitContentLength {
		resp.ContentLength = -1
	} else if resp.Header.Get("Content-Length") == "" {
		resp.ContentLength = int64(len(bodyContent))
		resp.Header.Set("Content-Length", strconv.Itoa(len(bodyContent)))
	} else if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		resp.ContentLength = n
	}
	return resp, nil
}

func (m *MockTransport) registerTyped(url, body, contentType string) {
	headers := make(http.Header)
	headers.Set("Content-Type", contentType)
	m.RegisterResponse(url, &MockResponse{StatusCode: http.StatusOK, Body: body, Headers: headers})
}

func withDefaults(response *MockResponse) *MockResponse {
	if response.StatusCode == 0 {
		response.StatusCode = http.StatusOK
	}
	if response.Headers == nil {
		response.Headers = make(http.Header)
	}
	return response
}
