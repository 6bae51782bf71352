// Package controller mediates between the search view and the favorites view.
//
// Every UI action maps to one Controller method. The controller owns the
// visible view, the search form, the last result set and the notices shown
// to the user; renderers read it through Snapshot. Methods are safe for
// concurrent use and never hold the lock across a catalog request.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/robertmeta/rover-cli/favorites"
	"github.com/robertmeta/rover-cli/model"
	"github.com/robertmeta/rover-cli/validate"
)

// DefaultMaxImages caps how many search results are rendered.
const DefaultMaxImages = 15

// FieldRover is the form field for rover selection errors.
const FieldRover = "rover"

var (
	// ErrStale indicates a response for a selection the user has moved away from.
	ErrStale = errors.New("response superseded by a newer selection")

	// ErrNoRover indicates a search without a selected rover.
	ErrNoRover = errors.New("no rover selected")

	// ErrNoFavorites indicates a carousel start with nothing saved.
	ErrNoFavorites = errors.New("no saved images")
)

const savedMessage = "The image has been successfully saved."

// Catalog is the read side of the photo service.
type Catalog interface {
	ListRovers(ctx context.Context) ([]string, error)
	ListCameras(ctx context.Context, rover string) ([]string, error)
	DateManifest(ctx context.Context, rover string) (model.DateManifest, error)
	SearchPhotos(ctx context.Context, criteria model.SearchCriteria) ([]model.Photo, error)
}

// Controller holds the UI state.
type Controller struct {
	mu sync.Mutex

	fav    *favorites.Store
	cat    Catalog
	logger *log.Logger

	maxImages    int
	maxSol       int
	deriveMaxSol bool

	state     State
	manifests map[string]model.DateManifest

	// selection and search tag in-flight requests; a response is applied
	// only if its tag is still current.
	selection uint64
	search    uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxImages sets how many results are rendered per search.
func WithMaxImages(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxImages = n
		}
	}
}

// WithMaxSol sets the fixed sol ceiling.
func WithMaxSol(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxSol = n
		}
	}
}

// WithDerivedMaxSol uses the selected rover's manifest max_sol as the
// ceiling, when the manifest is known, instead of the fixed value.
func WithDerivedMaxSol(enabled bool) Option {
	return func(c *Controller) {
		c.deriveMaxSol = enabled
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Controller in the search view with a default form.
func New(fav *favorites.Store, cat Catalog, opts ...Option) *Controller {
	c := &Controller{
		fav:       fav,
		cat:       cat,
		logger:    log.New(io.Discard),
		maxImages: DefaultMaxImages,
		maxSol:    validate.MaxSol,
		manifests: make(map[string]model.DateManifest),
		state: State{
			View:        SearchView,
			Form:        DefaultForm(),
			FieldErrors: map[string]string{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// MaxImages returns the result cap.
func (c *Controller) MaxImages() int {
	return c.maxImages
}

// Init loads saved favorites and the rover list.
func (c *Controller) Init(ctx context.Context) error {
	photos := c.fav.Load()

	c.mu.Lock()
	c.state.Favorites = photos
	c.mu.Unlock()

	rovers, err := c.cat.ListRovers(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Error("failed to list rovers", "err", err)
		c.state.Failure = err.Error()
		return err
	}
	c.state.Rovers = rovers
	return nil
}

// SelectRover changes the rover and loads its cameras and date range.
// It returns ErrStale when another selection superseded this one while the
// requests were in flight; the stale response is discarded.
func (c *Controller) SelectRover(ctx context.Context, rover string) error {
	c.mu.Lock()
	c.selection++
	tag := c.selection
	c.state.Form.Rover = rover
	c.state.Form.Camera = ""
	c.state.Cameras = nil
	c.state.Manifest = c.manifests[rover]
	delete(c.state.FieldErrors, FieldRover)
	delete(c.state.FieldErrors, validate.FieldEarthDate)
	c.mu.Unlock()

	if rover == "" {
		return nil
	}

	cameras, err := c.cat.ListCameras(ctx, rover)
	if err := c.applySelection(tag, rover, err, func() { c.state.Cameras = cameras }); err != nil {
		return err
	}

	c.mu.Lock()
	manifest, cached := c.manifests[rover]
	c.mu.Unlock()
	if cached {
		return nil
	}

	manifest, err = c.cat.DateManifest(ctx, rover)
	return c.applySelection(tag, rover, err, func() {
		c.manifests[rover] = manifest
		c.state.Manifest = manifest
	})
}

// applySelection runs apply if tag is still the current selection.
func (c *Controller) applySelection(tag uint64, rover string, fetchErr error, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tag != c.selection || c.state.Form.Rover != rover {
		c.logger.Debug("discarding stale response", "rover", rover, "current", c.state.Form.Rover)
		return ErrStale
	}
	if fetchErr != nil {
		c.logger.Warn("rover lookup failed", "rover", rover, "err", fetchErr)
		c.state.Failure = fetchErr.Error()
		return fetchErr
	}
	apply()
	return nil
}

// SelectDateMode switches between Earth date and sol entry.
func (c *Controller) SelectDateMode(mode model.DateMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form.Mode = mode
	delete(c.state.FieldErrors, validate.FieldSol)
	delete(c.state.FieldErrors, validate.FieldEarthDate)
}

// SetCamera sets the camera filter; empty means any camera.
func (c *Controller) SetCamera(fullName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form.Camera = fullName
}

// SetEarthDate sets the Earth date input.
func (c *Controller) SetEarthDate(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form.EarthDate = raw
	delete(c.state.FieldErrors, validate.FieldEarthDate)
}

// SetSol sets the sol input.
func (c *Controller) SetSol(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Form.Sol = raw
	delete(c.state.FieldErrors, validate.FieldSol)
}

// Form returns the current form.
func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Form
}

// ShowFavorites switches to the favorites view and refreshes its list.
func (c *Controller) ShowFavorites() {
	photos := c.fav.List()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.View = FavoritesView
	c.state.Favorites = photos
}

// ShowSearch switches back to the search view.
func (c *Controller) ShowSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.View = SearchView
}

// View returns the visible view.
func (c *Controller) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.View
}

// Submit validates form and runs the search. A validation failure is
// recorded against its field and no request is made. A sol above the
// ceiling is clamped, reported, and searched with the clamped value.
// An empty result is not an error: State.NoResults is set instead.
func (c *Controller) Submit(ctx context.Context, form Form) ([]model.Photo, error) {
	c.mu.Lock()
	c.state.Form = form
	c.state.FieldErrors = map[string]string{}
	// Outcome flags describe the latest search only. Results stay until
	// a search succeeds.
	c.state.Failure = ""
	c.state.NoResults = false

	criteria, err := c.criteriaLocked(form)
	if err != nil && !validate.IsAdvisory(err) {
		c.mu.Unlock()
		return nil, err
	}

	c.search++
	tag := c.search
	c.mu.Unlock()

	photos, err := c.cat.SearchPhotos(ctx, criteria)

	c.mu.Lock()
	defer c.mu.Unlock()

	if tag != c.search {
		return nil, ErrStale
	}
	if err != nil {
		c.logger.Warn("photo search failed", "rover", criteria.Rover, "err", err)
		c.state.Failure = err.Error()
		return nil, err
	}

	if len(photos) > c.maxImages {
		photos = photos[:c.maxImages]
	}
	c.state.Results = photos
	c.state.Searched = true
	c.state.NoResults = len(photos) == 0
	c.logger.Debug("photo search", "rover", criteria.Rover, "mode", criteria.Mode, "results", len(photos))
	return append([]model.Photo(nil), photos...), nil
}

// criteriaLocked validates the active date field. Callers hold mu.
func (c *Controller) criteriaLocked(form Form) (model.SearchCriteria, error) {
	criteria := model.SearchCriteria{
		Rover:  form.Rover,
		Camera: form.Camera,
		Mode:   form.Mode,
	}

	if form.Rover == "" {
		c.state.FieldErrors[FieldRover] = "Please select a rover."
		return criteria, &validate.Error{Field: FieldRover, Err: ErrNoRover}
	}

	manifest := c.manifests[form.Rover]

	if form.Mode == model.DateSol {
		max := c.maxSol
		if c.deriveMaxSol && manifest.MaxSol > 0 {
			max = manifest.MaxSol
		}
		sol, err := validate.Sol(form.Sol, max)
		if err != nil {
			c.state.FieldErrors[validate.FieldSol] = err.Error()
			if !validate.IsAdvisory(err) {
				return criteria, err
			}
			c.state.Form.Sol = strconv.Itoa(sol)
		}
		criteria.Sol = sol
		return criteria, err
	}

	day, err := validate.EarthDate(form.EarthDate, manifest.Min, manifest.Max)
	if err != nil {
		c.state.FieldErrors[validate.FieldEarthDate] = err.Error()
		return criteria, err
	}
	criteria.EarthDate = day
	return criteria, nil
}

// Save adds photo to favorites.
func (c *Controller) Save(photo model.Photo) error {
	err := c.fav.Add(photo)
	list := c.fav.List()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Favorites = list
	c.clampCarouselLocked()

	switch {
	case errors.Is(err, favorites.ErrAlreadySaved):
		c.state.Notice = err.Error()
		return err
	case err != nil:
		c.logger.Error("failed to save favorite", "id", photo.ID, "err", err)
		c.state.Failure = err.Error()
		return err
	}

	c.state.Confirmation = savedMessage
	c.logger.Info("favorite saved", "id", photo.ID)
	return nil
}

// SaveResult saves the search result at index.
func (c *Controller) SaveResult(index int) error {
	c.mu.Lock()
	if index < 0 || index >= len(c.state.Results) {
		n := len(c.state.Results)
		c.state.Notice = fmt.Sprintf("Invalid index: %d", index)
		c.mu.Unlock()
		return fmt.Errorf("result %d of %d: %w", index, n, favorites.ErrIndexOutOfRange)
	}
	photo := c.state.Results[index]
	c.mu.Unlock()

	return c.Save(photo)
}

// SaveByID saves the search result with the given photo id.
func (c *Controller) SaveByID(id int64) error {
	c.mu.Lock()
	for _, p := range c.state.Results {
		if p.ID == id {
			c.mu.Unlock()
			return c.Save(p)
		}
	}
	c.state.Notice = fmt.Sprintf("Image %d is not in the current results.", id)
	c.mu.Unlock()
	return fmt.Errorf("result %d: %w", id, favorites.ErrNotFound)
}

// Delete removes the favorite at position.
func (c *Controller) Delete(position int) error {
	err := c.fav.RemoveAt(position)
	list := c.fav.List()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Favorites = list
	c.clampCarouselLocked()

	switch {
	case errors.Is(err, favorites.ErrIndexOutOfRange):
		c.state.Notice = fmt.Sprintf("Invalid index: %d", position)
		return err
	case err != nil:
		c.logger.Error("failed to delete favorite", "position", position, "err", err)
		c.state.Failure = err.Error()
		return err
	}
	return nil
}

// Reset restores the default form, clears results and notices, empties the
// favorites and returns to the search view.
func (c *Controller) Reset() error {
	err := c.fav.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()

	// In-flight responses belong to the old form.
	c.selection++
	c.search++

	rovers := c.state.Rovers
	c.state = State{
		View:        SearchView,
		Form:        DefaultForm(),
		Rovers:      rovers,
		FieldErrors: map[string]string{},
	}

	if err != nil {
		c.logger.Error("failed to clear favorites", "err", err)
		c.state.Failure = err.Error()
	}
	return err
}

// StartCarousel starts the slideshow at the first saved photo.
func (c *Controller) StartCarousel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.state.Favorites) == 0 {
		return ErrNoFavorites
	}
	c.state.Carousel = Carousel{Running: true}
	return nil
}

// StopCarousel hides the slideshow.
func (c *Controller) StopCarousel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Carousel.Running = false
}

// NextSlide advances the slideshow, wrapping at the end.
func (c *Controller) NextSlide() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Carousel.Running || len(c.state.Favorites) == 0 {
		return
	}
	c.state.Carousel.Index = (c.state.Carousel.Index + 1) % len(c.state.Favorites)
}

func (c *Controller) clampCarouselLocked() {
	n := len(c.state.Favorites)
	switch {
	case n == 0:
		c.state.Carousel = Carousel{}
	case c.state.Carousel.Index >= n:
		c.state.Carousel.Index = n - 1
	}
}

// Dismiss clears the notice, failure and confirmation messages.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Notice = ""
	c.state.Failure = ""
	c.state.Confirmation = ""
}

// ClearConfirmation removes the transient confirmation only.
func (c *Controller) ClearConfirmation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Confirmation = ""
}
