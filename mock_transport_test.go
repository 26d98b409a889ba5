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
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, mock *MockTransport, url string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := mock.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestMockTransport_RegisterHTML(t *testing.T) {
	mock := NewMockTransport()
	html := `<html><head><title>Test Page</title></head><body>Content</body></html>`
	mock.RegisterHTML("https://example.com/", html)

	resp, body := roundTrip(t, mock, "https://example.com/")
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.Contains(resp.Header.Get("Content-Type"), "text/html"))
	assert.Equal(t, html, body)
	assert.Equal(t, int64(len(html)), resp.ContentLength)
}

func TestMockTransport_Unregistered404(t *testing.T) {
	mock := NewMockTransport()
	resp, body := roundTrip(t, mock, "https://example.com/missing")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "Not Found", body)
}

func TestMockTransport_Pattern(t *testing.T) {
	mock := NewMockTransport()
	require.NoError(t, mock.RegisterPattern(`/page/\d+$`, &MockResponse{Body: "numbered"}))

	_, body := roundTrip(t, mock, "https://example.com/page/42")
	assert.Equal(t, "numbered", body)

	resp, _ := roundTrip(t, mock, "https://example.com/page/abc")
	assert.Equal(t, 404, resp.StatusCode)

	assert.Error(t, mock.RegisterPattern(`(`, &MockResponse{}))
}

func TestMockTransport_Errors(t *testing.T) {
	mock := NewMockTransport()
	boom := errors.New("connection reset")
	mock.RegisterError("https://example.com/reset", boom)
	mock.RegisterDNSFailure("gone.example.com")

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/reset", nil)
	_, err := mock.RoundTrip(req)
	assert.ErrorIs(t, err, boom)

	req, _ = http.NewRequest(http.MethodGet, "https://gone.example.com/", nil)
	_, err = mock.RoundTrip(req)
	assert.True(t, IsDNSError(err))
}

func TestMockTransport_RequestCounting(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterText("https://example.com/a", "a")

	roundTrip(t, mock, "https://example.com/a")
	roundTrip(t, mock, "https://example.com/a")
	roundTrip(t, mock, "https://example.com/b")

	assert.Equal(t, 2, mock.RequestCount("https://example.com/a"))
	assert.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/a",
		"https://example.com/b",
	}, mock.Requests())
	assert.Equal(t, 1, mock.MaxInFlight())
}

func TestMockTransport_BodyFunc(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterResponse("https://example.com/echo", &MockResponse{
		BodyFunc: func(r *http.Request) string { return r.Header.Get("Accept-Language") },
	})

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/echo", nil)
	req.Header.Set("Accept-Language", "es-ES")
	resp, err := mock.RoundTrip(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "es-ES", string(body))
}
