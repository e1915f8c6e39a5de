package publish

import (
	"context"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRegistry starts an in-memory registry on IPv4 loopback and returns
// its host.
func setupTestRegistry(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test registry: %v", err)
	}
	server := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: registry.New(registry.Logger(stdlog.New(io.Discard, "", 0)))},
	}
	server.Start()
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	return u.Host
}

func testOCIOptions(ref string) OCIOptions {
	return OCIOptions{
		Reference: ref,
		Insecure:  true,
		Keychain:  authn.NewMultiKeychain(),
		Now:       func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestOCIPublishAndFetch(t *testing.T) {
	host := setupTestRegistry(t)
	ref := host + "/acme/shop-blueprint:v1"
	archive := []byte("PK\x03\x04 fake zip payload")

	p := NewOCIPublisher(testOCIOptions(ref))
	assert.Equal(t, "oci", p.Target())

	location, err := p.Publish(context.Background(), "shop-blueprint.zip", archive)
	require.NoError(t, err)
	assert.Contains(t, location, host+"/acme/shop-blueprint@sha256:")

	data, filename, err := Fetch(context.Background(), testOCIOptions(ref))
	require.NoError(t, err)
	assert.Equal(t, archive, data)
	assert.Equal(t, "shop-blueprint.zip", filename)

	// The digest-pinned location resolves to the same artifact.
	data, _, err = Fetch(context.Background(), testOCIOptions(location))
	require.NoError(t, err)
	assert.Equal(t, archive, data)
}

func TestOCIPublishIsReproducible(t *testing.T) {
	host := setupTestRegistry(t)
	archive := []byte("same bytes")

	first, err := NewOCIPublisher(testOCIOptions(host+"/acme/a:1")).Publish(context.Background(), "a.zip", archive)
	require.NoError(t, err)
	second, err := NewOCIPublisher(testOCIOptions(host+"/acme/a:2")).Publish(context.Background(), "a.zip", archive)
	require.NoError(t, err)

	_, d1, _ := cutDigest(first)
	_, d2, _ := cutDigest(second)
	assert.Equal(t, d1, d2)
}

func cutDigest(ref string) (string, string, bool) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '@' {
			return ref[:i], ref[i+1:], true
		}
	}
	return ref, "", false
}

func TestFetchRejectsContainerImages(t *testing.T) {
	host := setupTestRegistry(t)
	ref := host + "/acme/app:latest"

	img, err := random.Image(64, 1)
	require.NoError(t, err)
	parsed, err := name.ParseReference(ref, name.Insecure)
	require.NoError(t, err)
	require.NoError(t, remote.Write(parsed, img))

	_, _, err = Fetch(context.Background(), testOCIOptions(ref))
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, ErrTypeInvalidArtifact, regErr.Type)
}

func TestFetchMissingTag(t *testing.T) {
	host := setupTestRegistry(t)

	_, _, err := Fetch(context.Background(), testOCIOptions(host+"/acme/missing:v9"))
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, ErrTypeNotFound, regErr.Type)
}

func TestOCIPublishInvalidReference(t *testing.T) {
	p := NewOCIPublisher(testOCIOptions("not a valid ref!!"))
	_, err := p.Publish(context.Background(), "a.zip", []byte("x"))

	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, ErrTypeInvalidRef, regErr.Type)
}

func TestClassifyRegistryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RegistryErrorType
	}{
		{"401", &transport.Error{StatusCode: http.StatusUnauthorized}, ErrTypeAuthentication},
		{"403", &transport.Error{StatusCode: http.StatusForbidden}, ErrTypePermission},
		{"404", &transport.Error{StatusCode: http.StatusNotFound}, ErrTypeNotFound},
		{"429", &transport.Error{StatusCode: http.StatusTooManyRequests}, ErrTypeNetwork},
		{"503", &transport.Error{StatusCode: http.StatusServiceUnavailable}, ErrTypeNetwork},
		{"418", &transport.Error{StatusCode: http.StatusTeapot}, ErrTypeUnknown},
		{"generic", assert.AnError, ErrTypeUnknown},
		{"timeout", &net.DNSError{IsTimeout: true}, ErrTypeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyRegistryError(tt.err, "ghcr.io/acme/x:1", "push")
			var regErr *RegistryError
			require.ErrorAs(t, err, &regErr)
			assert.Equal(t, tt.want, regErr.Type)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Nil(t, ClassifyRegistryError(nil, "r", "push"))
	wrapped := WrapRegistryError(&RegistryError{Type: ErrTypeNotFound}, "r", "pull")
	assert.Equal(t, ErrTypeNotFound, wrapped.(*RegistryError).Type, "no double wrapping")
}

func TestRegistryErrorCoded(t *testing.T) {
	e := &RegistryError{Type: ErrTypePermission, Message: "access forbidden: r", Suggestion: "log in"}
	coded := e.Coded()
	assert.Equal(t, "access forbidden: r", coded.Message)
	assert.Equal(t, []string{"log in"}, coded.Suggestions)
}
