package media_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/tourgen/internal/media"
	"github.com/bobarin/tourgen/internal/mocks"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestFetchBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Write([]byte("frame"))
		case "/missing.jpg":
			w.WriteHeader(http.StatusNotFound)
		case "/slow.jpg":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		}
	}))
	defer srv.Close()

	a := media.NewAdapter(&http.Client{Timeout: 50 * time.Millisecond}, nil, nil, nil)

	data, err := a.FetchBytes(t.Context(), srv.URL+"/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("frame"), data)

	_, err = a.FetchBytes(t.Context(), srv.URL+"/missing.jpg")
	var fe *media.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)

	_, err = a.FetchBytes(t.Context(), srv.URL+"/slow.jpg")
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.StatusCode)
}

func TestStageForVendor(t *testing.T) {
	gen := new(mocks.VideoGenerator)
	gen.On("StageImage", mock.Anything, pngHeader, "source.png", "image/png").Return("https://vendor/source.png", nil).Once()
	gen.On("StageImage", mock.Anything, []byte("x"), "tail.jpg", "image/jpeg").Return("", errors.New("status 403")).Once()

	a := media.NewAdapter(nil, gen, nil, nil)

	url, err := a.StageForVendor(t.Context(), pngHeader, "source.png", "")
	require.NoError(t, err)
	assert.Equal(t, "https://vendor/source.png", url)

	_, err = a.StageForVendor(t.Context(), []byte("x"), "tail.jpg", "image/jpeg")
	var se *media.VendorStorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "tail.jpg", se.Filename)
	assert.Contains(t, err.Error(), "status 403")

	gen.AssertExpectations(t)
}

func TestPersistAsset(t *testing.T) {
	store := new(mocks.ObjectStore)
	store.On("Upload", mock.Anything, "ws/proj/clip.mp4", []byte("video"), "video/mp4").Return(nil).Once()
	store.On("PublicURL", "ws/proj/clip.mp4").Return("https://cdn/ws/proj/clip.mp4")
	store.On("Upload", mock.Anything, "ws/proj/bad.mp4", mock.Anything, "video/mp4").Return(errors.New("bucket full")).Once()

	a := media.NewAdapter(nil, nil, store, nil)

	url, err := a.PersistAsset(t.Context(), []byte("video"), "ws/proj/clip.mp4", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/ws/proj/clip.mp4", url)

	_, err = a.PersistAsset(t.Context(), []byte("video"), "ws/proj/bad.mp4", "video/mp4")
	var se *media.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ws/proj/bad.mp4", se.Path)

	store.AssertExpectations(t)
}

func TestContentTypeAndFilename(t *testing.T) {
	assert.Equal(t, "image/png", media.ContentType(pngHeader))
	assert.Equal(t, "source.png", media.Filename("source", pngHeader))

	assert.Equal(t, "image/jpeg", media.ContentType([]byte("not an image")))
	assert.Equal(t, "tail.jpg", media.Filename("tail", []byte("not an image")))
}
