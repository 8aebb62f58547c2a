package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
)

type fakeMapper struct {
	url        string
	calls      int
	lastCenter string
	lastCount  int
}

func (f *fakeMapper) StaticMapURL(center string, markers []amap.Marker, path []string, size string, zoom int) string {
	f.calls++
	f.lastCenter = center
	f.lastCount = len(markers)
	return f.url
}

func TestResolveImagePremiumTierWins(t *testing.T) {
	unsplash := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"urls": {"regular": "https://images.unsplash.com/hangzhou"}}]}`)
	}))
	defer unsplash.Close()

	mapper := &fakeMapper{url: "https://maps.example.com/static"}
	svc := newTestService(t, mapper)
	svc.unsplashKey = "key"
	svc.unsplashURL = unsplash.URL

	got := svc.ResolveImage(context.Background(), "杭州", "120.15,30.25", nil)
	assert.Equal(t, "https://images.unsplash.com/hangzhou", got)
	assert.Zero(t, mapper.calls, "static map tier must not run when premium succeeds")
}

func TestResolveImageStaticMapTier(t *testing.T) {
	mapper := &fakeMapper{url: "https://maps.example.com/static?center=120.15,30.25"}
	svc := newTestService(t, mapper)

	got := svc.ResolveImage(context.Background(), "杭州", "120.15,30.25", []amap.Marker{{Location: "120.15,30.25"}})
	assert.Equal(t, mapper.url, got)
	assert.Equal(t, 1, mapper.calls)
	assert.Equal(t, "120.15,30.25", mapper.lastCenter, "map must be centered on the plan coordinate")
}

func TestResolveImageCapsStaticMapMarkers(t *testing.T) {
	mapper := &fakeMapper{url: "https://maps.example.com/static"}
	svc := newTestService(t, mapper)

	markers := make([]amap.Marker, maxStaticMapMarkers+5)
	for i := range markers {
		markers[i] = amap.Marker{Location: fmt.Sprintf("120.%d,30.25", i)}
	}
	got := svc.ResolveImage(context.Background(), "杭州", "120.15,30.25", markers)
	assert.Equal(t, mapper.url, got)
	assert.Equal(t, maxStaticMapMarkers, mapper.lastCount)
}

func TestResolveImageSkipsStaticMapWithoutCoordinate(t *testing.T) {
	mapper := &fakeMapper{url: "https://maps.example.com/static"}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>no token</html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestService(t, mapper)
	svc.ddgBaseURL = server.URL

	got := svc.ResolveImage(context.Background(), "杭州", "", nil)
	assert.Empty(t, got)
	assert.Zero(t, mapper.calls)
}

func TestAcceptImageURL(t *testing.T) {
	svc := newTestService(t, nil)

	assert.False(t, svc.acceptImageURL("http://example.com/a.jpg"), "non-HTTPS rejected")
	assert.False(t, svc.acceptImageURL("https://mmbiz.qpic.cn/pic.jpg"), "blocked domain rejected")
	assert.False(t, svc.acceptImageURL("https://wx.sinaimg.cn/large/photo.jpg"), "blocked substring rejected")
	assert.False(t, svc.acceptImageURL("https://example.com/page"), "no trusted marker rejected")
	assert.True(t, svc.acceptImageURL("https://example.com/photo.JPG"), "trusted extension accepted")
	assert.True(t, svc.acceptImageURL("https://upload.wikimedia.org/photo"), "trusted host accepted")
}

func TestWebImageFallbackVerification(t *testing.T) {
	var headPaths []string
	assets := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headPaths = append(headPaths, r.URL.Path)
		if r.URL.Path == "/dead.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
	}))
	defer assets.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `vqd="4-42";`)
	})
	mux.HandleFunc("/i.js", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"results": [
			{"image": "http://insecure.example.com/a.jpg"},
			{"image": "https://mmbiz.qpic.cn/blocked.jpg"},
			{"image": "%s/dead.jpg"},
			{"image": "%s/live.jpg"}
		]}`, assets.URL, assets.URL)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestService(t, nil)
	svc.ddgBaseURL = server.URL
	svc.verifyClient = assets.Client()

	got := svc.webImageFallback(context.Background(), "杭州")
	require.Equal(t, assets.URL+"/live.jpg", got)
	assert.Equal(t, []string{"/dead.jpg", "/live.jpg"}, headPaths, "only filtered candidates probed, in order")
}
