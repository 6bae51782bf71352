package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertmeta/rover-cli/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../testdata/" + name)
	require.NoError(t, err)
	return data
}

func photoRecords(n int, cameras ...string) []model.Photo {
	photos := make([]model.Photo, n)
	for i := range photos {
		sol := 1000
		photos[i] = model.Photo{
			ID:        int64(100 + i),
			Sol:       &sol,
			Camera:    model.Camera{FullName: cameras[i%len(cameras)]},
			ImgSrc:    fmt.Sprintf("https://mars.nasa.gov/%d.jpg", i),
			EarthDate: "2015-06-03",
			Rover:     model.RoverRef{Name: "Curiosity"},
		}
	}
	return photos
}

// catalogServer fakes the photo API and records the last query.
type catalogServer struct {
	t         *testing.T
	photos    []model.Photo
	lastQuery atomic.Value
	hits      atomic.Int32
}

func (s *catalogServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	s.lastQuery.Store(r.URL.Query())

	if r.URL.Query().Get("api_key") != "test-key" {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"API_KEY_INVALID","message":"An invalid api_key was supplied."}}`)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case path == "rovers":
		w.Write(fixture(s.t, "rovers.json"))
	case path == "rovers/curiosity":
		var all roversResponse
		require.NoError(s.t, json.Unmarshal(fixture(s.t, "rovers.json"), &all))
		json.NewEncoder(w).Encode(roverResponse{Rover: all.Rovers[0]})
	case path == "manifests/curiosity":
		w.Write(fixture(s.t, "manifest_curiosity.json"))
	case path == "rovers/curiosity/photos":
		json.NewEncoder(w).Encode(photosResponse{Photos: s.photos})
	case strings.HasPrefix(path, "rovers/") || strings.HasPrefix(path, "manifests/"):
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":"Invalid Rover Name"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, photos []model.Photo) (*Client, *catalogServer) {
	t.Helper()
	srv := &catalogServer{t: t, photos: photos}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	c := New("test-key", WithBaseURL(ts.URL), WithRateLimit(rate.Inf, 1))
	return c, srv
}

func TestClient_ListRovers(t *testing.T) {
	c, _ := newTestClient(t, nil)

	names, err := c.ListRovers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Curiosity", "Spirit", "Opportunity"}, names)
}

func TestClient_ListCameras(t *testing.T) {
	c, _ := newTestClient(t, nil)

	cams, err := c.ListCameras(context.Background(), "Curiosity")
	require.NoError(t, err)
	require.Len(t, cams, 7)
	assert.Equal(t, "Front Hazard Avoidance Camera", cams[0])
}

func TestClient_ListCamerasUnknownRover(t *testing.T) {
	c, _ := newTestClient(t, nil)

	_, err := c.ListCameras(context.Background(), "Sojourner")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRover)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindUnknownRover, fe.Kind)
	assert.Equal(t, http.StatusBadRequest, fe.StatusCode)
	assert.Equal(t, "cameras", fe.Op)
}

func TestClient_DateManifest(t *testing.T) {
	c, _ := newTestClient(t, nil)

	m, err := c.DateManifest(context.Background(), "Curiosity")
	require.NoError(t, err)
	assert.Equal(t, "Curiosity", m.Rover)
	assert.Equal(t, time.Date(2012, 8, 6, 0, 0, 0, 0, time.UTC), m.Min)
	assert.Equal(t, time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC), m.Max)
	assert.Equal(t, 4102, m.MaxSol)
	assert.True(t, m.Available())
}

func TestClient_SearchPhotosByEarthDate(t *testing.T) {
	c, srv := newTestClient(t, photoRecords(20, "Front Hazard Avoidance Camera", "Navigation Camera"))

	photos, err := c.SearchPhotos(context.Background(), model.SearchCriteria{
		Rover:     "Curiosity",
		Mode:      model.DateEarth,
		EarthDate: time.Date(2015, 6, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, photos, 20, "Empty camera filter returns everything")

	q := srv.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"2015-06-03"}, q["earth_date"])
	assert.NotContains(t, q, "sol")
	assert.NotContains(t, q, "camera", "Camera filter is never sent remotely")
}

func TestClient_SearchPhotosBySol(t *testing.T) {
	c, srv := newTestClient(t, photoRecords(4, "Navigation Camera"))

	_, err := c.SearchPhotos(context.Background(), model.SearchCriteria{
		Rover: "Curiosity",
		Mode:  model.DateSol,
		Sol:   1000,
	})
	require.NoError(t, err)

	q := srv.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"1000"}, q["sol"])
	assert.NotContains(t, q, "earth_date")
}

func TestClient_SearchPhotosCameraFilter(t *testing.T) {
	c, _ := newTestClient(t, photoRecords(9, "Front Hazard Avoidance Camera", "Navigation Camera", "Mast Camera"))

	photos, err := c.SearchPhotos(context.Background(), model.SearchCriteria{
		Rover:  "Curiosity",
		Camera: "Mast Camera",
		Mode:   model.DateSol,
		Sol:    1000,
	})
	require.NoError(t, err)
	require.Len(t, photos, 3)
	for _, p := range photos {
		assert.Equal(t, "Mast Camera", p.Camera.FullName)
	}
}

func TestClient_SearchPhotosNoCameraMatch(t *testing.T) {
	c, _ := newTestClient(t, photoRecords(5, "Navigation Camera"))

	photos, err := c.SearchPhotos(context.Background(), model.SearchCriteria{
		Rover:  "Curiosity",
		Camera: "Front Hazard Avoidance Camera",
		Mode:   model.DateSol,
		Sol:    1000,
	})
	require.NoError(t, err, "No match is an empty result, not an error")
	assert.Empty(t, photos)
}

func TestClient_SearchPhotosInvalidCriteria(t *testing.T) {
	c, srv := newTestClient(t, nil)

	_, err := c.SearchPhotos(context.Background(), model.SearchCriteria{Mode: model.DateSol})
	assert.Error(t, err)
	assert.Equal(t, int32(0), srv.hits.Load(), "Invalid criteria never reach the network")
}

func TestClient_InvalidAPIKey(t *testing.T) {
	srv := &catalogServer{t: t}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := New("wrong", WithBaseURL(ts.URL))
	_, err := c.ListRovers(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindStatus, fe.Kind)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Contains(t, fe.Error(), "invalid api_key")
}

func TestClient_RateLimitedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":"OVER_RATE_LIMIT","message":"You have exceeded your rate limit."}}`)
	}))
	defer ts.Close()

	c := New("k", WithBaseURL(ts.URL))
	_, err := c.ListRovers(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := New("k", WithBaseURL(ts.URL), WithTimeout(50*time.Millisecond))
	_, err := c.ListRovers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindTimeout, fe.Kind)
}

func TestClient_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rovers": [`)
	}))
	defer ts.Close()

	c := New("k", WithBaseURL(ts.URL))
	_, err := c.ListRovers(context.Background())

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindDecode, fe.Kind)
}

func TestClient_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c := New("k", WithBaseURL(addr))
	_, err := c.ListRovers(context.Background())
	require.Error(t, err)
	assert.True(t, IsFetchError(err))
}

func TestClient_RateLimiterExhausted(t *testing.T) {
	c, _ := newTestClient(t, nil)
	WithRateLimit(rate.Every(time.Hour), 1)(c)
	WithTimeout(100 * time.Millisecond)(c)

	_, err := c.ListRovers(context.Background())
	require.NoError(t, err, "First request uses the burst")

	_, err = c.ListRovers(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_RequestID(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(RequestIDHeader))
		mu.Unlock()
		w.Write(fixture(t, "rovers.json"))
	}))
	defer ts.Close()

	c := New("k", WithBaseURL(ts.URL), WithRateLimit(rate.Inf, 1))
	for i := 0; i < 2; i++ {
		_, err := c.ListRovers(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 2)
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, ids[0], ids[1], "Each request gets its own ID")
}
