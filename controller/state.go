package controller

import (
	"github.com/robertmeta/rover-cli/model"
)

// ViewState is the visible region of the UI.
type ViewState int

const (
	SearchView ViewState = iota
	FavoritesView
)

func (v ViewState) String() string {
	if v == FavoritesView {
		return "favorites"
	}
	return "search"
}

// Form is the raw, unvalidated search input.
type Form struct {
	Rover     string         `json:"rover"`
	Camera    string         `json:"camera"`
	Mode      model.DateMode `json:"mode"`
	EarthDate string         `json:"earth_date"`
	Sol       string         `json:"sol"`
}

// DefaultForm is the form after a reset: no rover, any camera, Earth date.
func DefaultForm() Form {
	return Form{Mode: model.DateEarth}
}

// Carousel is the slideshow over saved photos.
type Carousel struct {
	Running bool `json:"running"`
	Index   int  `json:"index"`
}

// State is a copy of everything a renderer needs.
type State struct {
	View     ViewState          `json:"view"`
	Form     Form               `json:"form"`
	Rovers   []string           `json:"rovers"`
	Cameras  []string           `json:"cameras"`
	Manifest model.DateManifest `json:"manifest"`

	// Results holds at most MaxImages photos of the last search.
	Results   []model.Photo `json:"results"`
	Searched  bool          `json:"searched"`
	NoResults bool          `json:"no_results"`

	// FieldErrors maps a form field to its inline message.
	FieldErrors  map[string]string `json:"field_errors,omitempty"`
	Notice       string            `json:"notice,omitempty"`
	Failure      string            `json:"failure,omitempty"`
	Confirmation string            `json:"confirmation,omitempty"`

	Favorites []model.Photo `json:"favorites"`
	Carousel  Carousel      `json:"carousel"`
}

// CurrentSlide returns the photo shown by the carousel.
func (s State) CurrentSlide() (model.Photo, bool) {
	if !s.Carousel.Running || len(s.Favorites) == 0 {
		return model.Photo{}, false
	}
	return s.Favorites[s.Carousel.Index%len(s.Favorites)], true
}

func (s State) clone() State {
	out := s
	out.Rovers = append([]string(nil), s.Rovers...)
	out.Cameras = append([]string(nil), s.Cameras...)
	out.Results = append([]model.Photo(nil), s.Results...)
	out.Favorites = append([]model.Photo(nil), s.Favorites...)
	out.FieldErrors = make(map[string]string, len(s.FieldErrors))
	for k, v := range s.FieldErrors {
		out.FieldErrors[k] = v
	}
	return out
}
