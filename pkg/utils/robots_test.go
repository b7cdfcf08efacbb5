package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsChecker_DisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rc := NewRobotsChecker("NewsCrawler/1.0")
	allowed, err := rc.IsAllowed(srv.URL + "/private/article")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = rc.IsAllowed(srv.URL + "/public/article")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRobotsChecker_NoRobotsTxtAllowsByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	rc := NewRobotsChecker("NewsCrawler/1.0")
	allowed, err := rc.IsAllowed(srv.URL + "/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRobotsChecker_InProcessCacheAvoidsRefetch(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Write([]byte("User-agent: *\nDisallow: /blocked\n"))
	}))
	defer srv.Close()

	rc := NewRobotsChecker("NewsCrawler/1.0")
	_, err := rc.IsAllowed(srv.URL + "/blocked/a")
	require.NoError(t, err)
	_, err = rc.IsAllowed(srv.URL + "/blocked/b")
	require.NoError(t, err)

	assert.Equal(t, 1, fetches, "second check against the same host should hit the in-process cache")
}

func TestRobotsChecker_WithSharedCacheNilIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	rc := NewRobotsChecker("NewsCrawler/1.0").WithSharedCache(nil)
	allowed, err := rc.IsAllowed(srv.URL + "/ok")
	require.NoError(t, err)
	assert.True(t, allowed)
}
