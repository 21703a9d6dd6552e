package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_Success(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewBucketClient(srv.URL, "chatimages", "tok")

	var progress []int
	url, err := c.Upload(context.Background(), "c1/123_photo.png", "image/png", []byte("imagebytes"), func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, "/object/chatimages/c1/123_photo.png", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, []byte("imagebytes"), gotBody)
	assert.Equal(t, srv.URL+"/object/public/chatimages/c1/123_photo.png", url)

	// Progress runs 0..100, never decreasing, ending exactly at 100.
	require.NotEmpty(t, progress)
	assert.Equal(t, 0, progress[0])
	assert.Equal(t, 100, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestUpload_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bucket not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewBucketClient(srv.URL, "missing", "")

	var progress []int
	_, err := c.Upload(context.Background(), "k", "image/png", []byte("x"), func(p int) {
		progress = append(progress, p)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	// 100 is never reported for a failed upload.
	for _, p := range progress {
		assert.Less(t, p, 100)
	}
}

func TestUpload_EscapesKeySegments(t *testing.T) {
	var gotRawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRawPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewBucketClient(srv.URL, "b", "")
	_, err := c.Upload(context.Background(), "c1/a b.png", "image/png", []byte("x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "/object/b/c1/a%20b.png", gotRawPath)
}

func TestPublicURL(t *testing.T) {
	c := NewBucketClient("http://host/storage/v1/", "chatimages", "")
	assert.Equal(t,
		"http://host/storage/v1/object/public/chatimages/c1/img.png",
		c.PublicURL("c1/img.png"))
}
