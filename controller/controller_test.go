package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/robertmeta/rover-cli/favorites"
	"github.com/robertmeta/rover-cli/model"
	"github.com/robertmeta/rover-cli/store"
	"github.com/robertmeta/rover-cli/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog is an in-process Catalog. A gate for a rover blocks its
// camera lookup until the channel is closed.
type fakeCatalog struct {
	mu sync.Mutex

	rovers    []string
	roversErr error

	cameras     map[string][]string
	camerasErr  error
	gates       map[string]chan struct{}
	manifests   map[string]model.DateManifest
	manifestHit int

	photos       []model.Photo
	searchErr    error
	searches     int
	lastCriteria model.SearchCriteria
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		rovers: []string{"Curiosity", "Spirit", "Opportunity"},
		cameras: map[string][]string{
			"Curiosity": {"Front Hazard Avoidance Camera", "Navigation Camera", "Mast Camera"},
			"Spirit":    {"Front Hazard Avoidance Camera", "Panoramic Camera"},
		},
		gates: map[string]chan struct{}{},
		manifests: map[string]model.DateManifest{
			"Curiosity": {
				Rover:  "Curiosity",
				Min:    time.Date(2012, 8, 6, 0, 0, 0, 0, time.UTC),
				Max:    time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC),
				MaxSol: 4102,
			},
			"Spirit": {
				Rover:  "Spirit",
				Min:    time.Date(2004, 1, 4, 0, 0, 0, 0, time.UTC),
				Max:    time.Date(2010, 3, 21, 0, 0, 0, 0, time.UTC),
				MaxSol: 2208,
			},
		},
	}
}

func (f *fakeCatalog) ListRovers(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rovers, f.roversErr
}

func (f *fakeCatalog) ListCameras(ctx context.Context, rover string) ([]string, error) {
	f.mu.Lock()
	gate := f.gates[rover]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.camerasErr != nil {
		return nil, f.camerasErr
	}
	return f.cameras[rover], nil
}

func (f *fakeCatalog) DateManifest(ctx context.Context, rover string) (model.DateManifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manifestHit++
	m, ok := f.manifests[rover]
	if !ok {
		return model.DateManifest{}, fmt.Errorf("no manifest for %s", rover)
	}
	return m, nil
}

func (f *fakeCatalog) SearchPhotos(ctx context.Context, criteria model.SearchCriteria) ([]model.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.lastCriteria = criteria
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []model.Photo
	for _, p := range f.photos {
		if criteria.MatchesCamera(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func makePhotos(n int, camera string) []model.Photo {
	photos := make([]model.Photo, n)
	for i := range photos {
		sol := 1091
		photos[i] = model.Photo{
			ID:        int64(500 + i),
			Sol:       &sol,
			Camera:    model.Camera{FullName: camera},
			ImgSrc:    fmt.Sprintf("https://mars.nasa.gov/%d.jpg", i),
			EarthDate: "2015-06-03",
			Rover:     model.RoverRef{Name: "Curiosity"},
		}
	}
	return photos
}

type harness struct {
	ctrl *Controller
	cat  *fakeCatalog
	fav  *favorites.Store
	slot *store.Slot
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	slot := db.Slot(favorites.SlotKey)
	fav := favorites.New(slot)
	cat := newFakeCatalog()
	ctrl := New(fav, cat, opts...)
	require.NoError(t, ctrl.Init(context.Background()))

	return &harness{ctrl: ctrl, cat: cat, fav: fav, slot: slot}
}

func curiosityForm(date string) Form {
	return Form{Rover: "Curiosity", Mode: model.DateEarth, EarthDate: date}
}

func TestController_InitialState(t *testing.T) {
	h := newHarness(t)
	s := h.ctrl.Snapshot()

	assert.Equal(t, SearchView, s.View)
	assert.Equal(t, DefaultForm(), s.Form)
	assert.Equal(t, []string{"Curiosity", "Spirit", "Opportunity"}, s.Rovers)
	assert.Empty(t, s.Favorites)
	assert.Empty(t, s.Failure)
}

func TestController_InitLoadsSavedFavorites(t *testing.T) {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	slot := db.Slot(favorites.SlotKey)
	require.NoError(t, slot.Write([]byte(`[{"id":1,"img_src":"a","earth_date":"2015-06-03"}]`)))

	ctrl := New(favorites.New(slot), newFakeCatalog())
	require.NoError(t, ctrl.Init(context.Background()))
	assert.Len(t, ctrl.Snapshot().Favorites, 1)
}

func TestController_InitRoverFailure(t *testing.T) {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	cat := newFakeCatalog()
	cat.roversErr = errors.New("network down")
	ctrl := New(favorites.New(db.Slot(favorites.SlotKey)), cat)

	err = ctrl.Init(context.Background())
	assert.Error(t, err)
	assert.Contains(t, ctrl.Snapshot().Failure, "network down")
	assert.Equal(t, SearchView, ctrl.View(), "Failures leave the session interactive")
}

func TestController_ViewTransitions(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.fav.Add(makePhotos(1, "Mast Camera")[0]))

	h.ctrl.ShowFavorites()
	s := h.ctrl.Snapshot()
	assert.Equal(t, FavoritesView, s.View)
	assert.Len(t, s.Favorites, 1, "ShowFavorites refreshes the list")

	h.ctrl.ShowSearch()
	assert.Equal(t, SearchView, h.ctrl.View())
	assert.Equal(t, 1, h.fav.Len(), "Navigation never touches the collection")
}

func TestController_SelectRover(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))
	s := h.ctrl.Snapshot()
	assert.Equal(t, "Curiosity", s.Form.Rover)
	assert.Len(t, s.Cameras, 3)
	assert.True(t, s.Manifest.Available())

	// Manifest lookups are cached per rover.
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Spirit"))
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))
	assert.Equal(t, 2, h.cat.manifestHit)
}

func TestController_SelectRoverClearsCamera(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))
	h.ctrl.SetCamera("Mast Camera")

	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Spirit"))
	assert.Equal(t, "", h.ctrl.Form().Camera)
}

func TestController_SelectRoverFailure(t *testing.T) {
	h := newHarness(t)
	h.cat.camerasErr = errors.New("unknown rover")

	err := h.ctrl.SelectRover(context.Background(), "Sojourner")
	assert.Error(t, err)
	s := h.ctrl.Snapshot()
	assert.Empty(t, s.Cameras)
	assert.Contains(t, s.Failure, "unknown rover")
}

func TestController_StaleCameraResponseDiscarded(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.cat.gates["Curiosity"] = gate

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.SelectRover(context.Background(), "Curiosity")
	}()

	// Wait until the Curiosity selection has been recorded.
	require.Eventually(t, func() bool {
		return h.ctrl.Form().Rover == "Curiosity"
	}, time.Second, time.Millisecond)

	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Spirit"))
	close(gate)

	assert.ErrorIs(t, <-done, ErrStale)

	s := h.ctrl.Snapshot()
	assert.Equal(t, "Spirit", s.Form.Rover)
	assert.Equal(t, []string{"Front Hazard Avoidance Camera", "Panoramic Camera"}, s.Cameras)
	assert.Equal(t, "Spirit", s.Manifest.Rover)
}

func TestController_SubmitCapsResults(t *testing.T) {
	h := newHarness(t)
	h.cat.photos = makePhotos(20, "Navigation Camera")
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))

	photos, err := h.ctrl.Submit(context.Background(), curiosityForm("2015-06-03"))
	require.NoError(t, err)
	assert.Len(t, photos, DefaultMaxImages)

	s := h.ctrl.Snapshot()
	assert.Len(t, s.Results, 15)
	assert.Equal(t, int64(500), s.Results[0].ID, "The first results are kept")
	assert.False(t, s.NoResults)
	assert.True(t, s.Searched)
	assert.Equal(t, "2015-06-03", h.cat.lastCriteria.EarthDate.Format(model.DateLayout))
}

func TestController_SubmitNoCameraMatch(t *testing.T) {
	h := newHarness(t)
	h.cat.photos = makePhotos(8, "Navigation Camera")
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))

	form := curiosityForm("2015-06-03")
	form.Camera = "Front Hazard Avoidance Camera"
	photos, err := h.ctrl.Submit(context.Background(), form)
	require.NoError(t, err)
	assert.Empty(t, photos)

	s := h.ctrl.Snapshot()
	assert.True(t, s.NoResults)
	assert.Empty(t, s.Failure, "No images is not a fetch failure")
}

func TestController_SubmitInvalidSolMakesNoRequest(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))

	_, err := h.ctrl.Submit(context.Background(), Form{Rover: "Curiosity", Mode: model.DateSol, Sol: "-3"})
	assert.ErrorIs(t, err, validate.ErrNotAnInteger)
	assert.Equal(t, 0, h.cat.searches)

	s := h.ctrl.Snapshot()
	assert.Equal(t, "Sol value must be a non-negative integer.", s.FieldErrors[validate.FieldSol])
	assert.NotContains(t, s.FieldErrors, validate.FieldEarthDate, "Other fields are not blocked")
}

func TestController_SubmitClampsSol(t *testing.T) {
	h := newHarness(t)
	h.cat.photos = makePhotos(3, "Mast Camera")
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))

	photos, err := h.ctrl.Submit(context.Background(), Form{Rover: "Curiosity", Mode: model.DateSol, Sol: "9000"})
	require.NoError(t, err, "Clamping is an advisory, the search proceeds")
	assert.Len(t, photos, 3)
	assert.Equal(t, 4074, h.cat.lastCriteria.Sol)
	assert.Equal(t, model.DateSol, h.cat.lastCriteria.Mode)

	s := h.ctrl.Snapshot()
	assert.Equal(t, "4074", s.Form.Sol)
	assert.Equal(t, "Sol maximum value is 4074.", s.FieldErrors[validate.FieldSol])
}

func TestController_SubmitDerivedMaxSol(t *testing.T) {
	h := newHarness(t, WithDerivedMaxSol(true))
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))

	_, err := h.ctrl.Submit(context.Background(), Form{Rover: "Curiosity", Mode: model.DateSol, Sol: "4100"})
	require.NoError(t, err)
	assert.Equal(t, 4100, h.cat.lastCriteria.Sol, "Manifest max_sol 4102 replaces the fixed ceiling")
}

func TestController_SubmitEarthDateOutOfRange(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))

	_, err := h.ctrl.Submit(context.Background(), curiosityForm("2030-01-01"))
	assert.ErrorIs(t, err, validate.ErrOutOfRange)
	assert.Equal(t, 0, h.cat.searches)
	assert.NotEmpty(t, h.ctrl.Snapshot().FieldErrors[validate.FieldEarthDate])
}

func TestController_SubmitEarthDateBeforeManifest(t *testing.T) {
	h := newHarness(t)

	// The rover was never selected, so its date range is unknown.
	_, err := h.ctrl.Submit(context.Background(), curiosityForm("2015-06-03"))
	assert.ErrorIs(t, err, validate.ErrRangeUnavailable)
	assert.Equal(t, 0, h.cat.searches)
}

func TestController_SubmitWithoutRover(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.Submit(context.Background(), Form{Mode: model.DateSol, Sol: "10"})
	assert.ErrorIs(t, err, ErrNoRover)
	assert.Contains(t, h.ctrl.Snapshot().FieldErrors, FieldRover)
	assert.Equal(t, 0, h.cat.searches)
}

func TestController_SubmitFetchErrorKeepsResults(t *testing.T) {
	h := newHarness(t)
	h.cat.photos = makePhotos(2, "Mast Camera")
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))
	_, err := h.ctrl.Submit(context.Background(), curiosityForm("2015-06-03"))
	require.NoError(t, err)

	h.cat.searchErr = errors.New("error fetching photos data (timeout)")
	_, err = h.ctrl.Submit(context.Background(), curiosityForm("2015-06-04"))
	require.Error(t, err)

	s := h.ctrl.Snapshot()
	assert.Contains(t, s.Failure, "timeout")
	assert.Len(t, s.Results, 2, "Prior results stay on screen")
	assert.False(t, s.NoResults)
}

func TestController_SubmitClearsPreviousOutcome(t *testing.T) {
	h := newHarness(t)
	h.cat.photos = makePhotos(2, "Navigation Camera")
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))

	form := curiosityForm("2015-06-03")
	form.Camera = "Mast Camera"
	_, err := h.ctrl.Submit(context.Background(), form)
	require.NoError(t, err)
	require.True(t, h.ctrl.Snapshot().NoResults)

	h.cat.searchErr = errors.New("error fetching photos data")
	_, err = h.ctrl.Submit(context.Background(), curiosityForm("2015-06-04"))
	require.Error(t, err)

	s := h.ctrl.Snapshot()
	assert.NotEmpty(t, s.Failure)
	assert.False(t, s.NoResults, "A failed search does not also report no results")

	h.cat.searchErr = nil
	_, err = h.ctrl.Submit(context.Background(), curiosityForm("2015-06-05"))
	require.NoError(t, err)

	s = h.ctrl.Snapshot()
	assert.Empty(t, s.Failure, "A new search clears the previous failure")
	assert.False(t, s.NoResults)
	assert.Len(t, s.Results, 2)
}

func TestController_SaveTwice(t *testing.T) {
	h := newHarness(t)
	p := makePhotos(1, "Mast Camera")[0]

	require.NoError(t, h.ctrl.Save(p))
	assert.Equal(t, "The image has been successfully saved.", h.ctrl.Snapshot().Confirmation)

	err := h.ctrl.Save(p)
	assert.ErrorIs(t, err, favorites.ErrAlreadySaved)

	s := h.ctrl.Snapshot()
	assert.Contains(t, s.Notice, fmt.Sprintf("ID: %d", p.ID))
	assert.Len(t, s.Favorites, 1)
	assert.Equal(t, 1, h.fav.Len())
}

func TestController_SaveResult(t *testing.T) {
	h := newHarness(t)
	h.cat.photos = makePhotos(4, "Mast Camera")
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))
	_, err := h.ctrl.Submit(context.Background(), curiosityForm("2015-06-03"))
	require.NoError(t, err)

	require.NoError(t, h.ctrl.SaveResult(2))
	assert.True(t, h.fav.Exists(502))

	assert.ErrorIs(t, h.ctrl.SaveResult(4), favorites.ErrIndexOutOfRange)
	assert.Equal(t, "Invalid index: 4", h.ctrl.Snapshot().Notice)

	require.NoError(t, h.ctrl.SaveByID(503))
	assert.ErrorIs(t, h.ctrl.SaveByID(42), favorites.ErrNotFound)
	assert.Equal(t, 2, h.fav.Len())
}

func TestController_Delete(t *testing.T) {
	h := newHarness(t)
	for _, p := range makePhotos(3, "Mast Camera") {
		require.NoError(t, h.ctrl.Save(p))
	}
	h.ctrl.ShowFavorites()

	require.NoError(t, h.ctrl.Delete(0))
	s := h.ctrl.Snapshot()
	require.Len(t, s.Favorites, 2)
	assert.Equal(t, int64(501), s.Favorites[0].ID)

	assert.ErrorIs(t, h.ctrl.Delete(5), favorites.ErrIndexOutOfRange)
	assert.Equal(t, "Invalid index: 5", h.ctrl.Snapshot().Notice)
	assert.Equal(t, FavoritesView, h.ctrl.View())
}

func TestController_ResetAfterThreeSaves(t *testing.T) {
	h := newHarness(t)
	h.cat.photos = makePhotos(5, "Mast Camera")
	require.NoError(t, h.ctrl.SelectRover(context.Background(), "Curiosity"))
	_, err := h.ctrl.Submit(context.Background(), curiosityForm("2015-06-03"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.ctrl.SaveResult(i))
	}
	h.ctrl.ShowFavorites()
	require.NoError(t, h.ctrl.StartCarousel())

	require.NoError(t, h.ctrl.Reset())

	s := h.ctrl.Snapshot()
	assert.Empty(t, s.Favorites)
	assert.Equal(t, 0, h.fav.Len())
	assert.Equal(t, SearchView, s.View)
	assert.Equal(t, DefaultForm(), s.Form)
	assert.Empty(t, s.Results)
	assert.Empty(t, s.Cameras)
	assert.False(t, s.Searched)
	assert.False(t, s.Carousel.Running)
	assert.NotEmpty(t, s.Rovers, "The rover list survives a reset")

	data, err := h.slot.Read()
	require.NoError(t, err)
	assert.Nil(t, data, "Persistence slot is cleared")
}

func TestController_ResetDiscardsInFlightSelection(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.cat.gates["Curiosity"] = gate

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.SelectRover(context.Background(), "Curiosity")
	}()
	require.Eventually(t, func() bool {
		return h.ctrl.Form().Rover == "Curiosity"
	}, time.Second, time.Millisecond)

	require.NoError(t, h.ctrl.Reset())
	close(gate)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Empty(t, h.ctrl.Snapshot().Cameras)
}

func TestController_Carousel(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.ctrl.StartCarousel(), ErrNoFavorites)

	for _, p := range makePhotos(3, "Mast Camera") {
		require.NoError(t, h.ctrl.Save(p))
	}

	require.NoError(t, h.ctrl.StartCarousel())
	slide, ok := h.ctrl.Snapshot().CurrentSlide()
	require.True(t, ok)
	assert.Equal(t, int64(500), slide.ID)

	h.ctrl.NextSlide()
	h.ctrl.NextSlide()
	h.ctrl.NextSlide()
	assert.Equal(t, 0, h.ctrl.Snapshot().Carousel.Index, "Carousel wraps")

	h.ctrl.NextSlide()
	h.ctrl.NextSlide()
	require.NoError(t, h.ctrl.Delete(2))
	assert.Equal(t, 1, h.ctrl.Snapshot().Carousel.Index, "Index follows a shrinking collection")

	h.ctrl.StopCarousel()
	_, ok = h.ctrl.Snapshot().CurrentSlide()
	assert.False(t, ok)
}

func TestController_DismissAndDateMode(t *testing.T) {
	h := newHarness(t)
	p := makePhotos(1, "Mast Camera")[0]
	require.NoError(t, h.ctrl.Save(p))
	_ = h.ctrl.Save(p)

	h.ctrl.ClearConfirmation()
	s := h.ctrl.Snapshot()
	assert.Empty(t, s.Confirmation)
	assert.NotEmpty(t, s.Notice)

	h.ctrl.Dismiss()
	assert.Empty(t, h.ctrl.Snapshot().Notice)

	_, _ = h.ctrl.Submit(context.Background(), Form{Rover: "Curiosity", Mode: model.DateSol, Sol: "x"})
	require.Contains(t, h.ctrl.Snapshot().FieldErrors, validate.FieldSol)
	h.ctrl.SelectDateMode(model.DateEarth)
	s = h.ctrl.Snapshot()
	assert.Equal(t, model.DateEarth, s.Form.Mode)
	assert.NotContains(t, s.FieldErrors, validate.FieldSol)
}

func TestController_SnapshotIsCopy(t *testing.T) {
	h := newHarness(t)
	s := h.ctrl.Snapshot()
	s.Rovers[0] = "Zhurong"
	s.FieldErrors["x"] = "y"

	s2 := h.ctrl.Snapshot()
	assert.Equal(t, "Curiosity", s2.Rovers[0])
	assert.NotContains(t, s2.FieldErrors, "x")
}
