package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/afero"
)

const payload = "PK\x03\x04 not really a zip"

// newServer serves payload at /bucket/key path-style.
func newServer(c *qt.C) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools/EternalModInjector-UWP.zip" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte(payload))
	}))
	c.Cleanup(srv.Close)
	return srv
}

func newTestClient(c *qt.C, fs afero.Fs) *Client {
	c.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	c.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")
	srv := newServer(c)
	client, err := NewClient(context.Background(), fs, "tools", "us-east-1", WithEndpoint(srv.URL))
	c.Assert(err, qt.IsNil)
	return client
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestDownload(t *testing.T) {
	c := qt.New(t)
	fs := afero.NewMemMapFs()
	client := newTestClient(c, fs)

	res, err := client.Download(context.Background(), "EternalModInjector-UWP.zip", "/cache/bundle.zip", sum(payload))
	c.Assert(err, qt.IsNil)
	c.Assert(res.Size, qt.Equals, int64(len(payload)))
	c.Assert(res.SHA256, qt.Equals, sum(payload))

	data, err := afero.ReadFile(fs, "/cache/bundle.zip")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, payload)
}

func TestDownload_ChecksumMismatch(t *testing.T) {
	c := qt.New(t)
	fs := afero.NewMemMapFs()
	client := newTestClient(c, fs)

	_, err := client.Download(context.Background(), "EternalModInjector-UWP.zip", "/cache/bundle.zip", sum("something else"))
	c.Assert(errors.Is(err, ErrChecksumMismatch), qt.IsTrue, qt.Commentf("got %v", err))

	entries, err := afero.ReadDir(fs, "/cache")
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.HasLen, 0)
}

func TestDownload_MissingObject(t *testing.T) {
	c := qt.New(t)
	fs := afero.NewMemMapFs()
	client := newTestClient(c, fs)

	_, err := client.Download(context.Background(), "missing.zip", "/cache/bundle.zip", "")
	c.Assert(err, qt.ErrorMatches, "failed to get object from S3: .*")

	ok, _ := afero.Exists(fs, "/cache/bundle.zip")
	c.Assert(ok, qt.IsFalse)
}
