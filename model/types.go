// Package model defines the core data structures for rover-cli.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the catalog (earth_date).
const DateLayout = "2006-01-02"

// Camera is a rover camera as reported by the catalog.
type Camera struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	RoverID  int64  `json:"rover_id,omitempty"`
	FullName string `json:"full_name"`
}

// RoverRef is the rover summary embedded in every photo record.
type RoverRef struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	LandingDate string `json:"landing_date,omitempty"`
	LaunchDate  string `json:"launch_date,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Photo is a single rover photo. The JSON form is both the catalog wire
// format and the persisted favorites format.
type Photo struct {
	ID        int64    `json:"id"`
	Sol       *int     `json:"sol,omitempty"`
	Camera    Camera   `json:"camera"`
	ImgSrc    string   `json:"img_src"`
	EarthDate string   `json:"earth_date"`
	Rover     RoverRef `json:"rover"`
}

// Validate checks if the photo has the fields favorites rely on.
func (p *Photo) Validate() error {
	if p.ID == 0 {
		return errors.New("photo id is required")
	}
	if p.ImgSrc == "" {
		return errors.New("photo img_src is required")
	}
	return nil
}

// HasSol reports whether the record carries a sol value.
func (p *Photo) HasSol() bool {
	return p.Sol != nil
}

// SolValue returns the sol, or -1 when absent.
func (p *Photo) SolValue() int {
	if p.Sol == nil {
		return -1
	}
	return *p.Sol
}

// Rover is the full rover record returned by the rover endpoints.
type Rover struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	LandingDate string   `json:"landing_date"`
	LaunchDate  string   `json:"launch_date"`
	Status      string   `json:"status"`
	MaxSol      int      `json:"max_sol"`
	MaxDate     string   `json:"max_date"`
	TotalPhotos int      `json:"total_photos"`
	Cameras     []Camera `json:"cameras"`
}

// CameraNames returns the full names of the rover's cameras, in catalog order.
func (r *Rover) CameraNames() []string {
	names := make([]string, 0, len(r.Cameras))
	for _, c := range r.Cameras {
		names = append(names, c.FullName)
	}
	return names
}

// DateManifest is the range of dates for which a rover has photos.
type DateManifest struct {
	Rover       string    `json:"rover"`
	Min         time.Time `json:"min"`
	Max         time.Time `json:"max"`
	MaxSol      int       `json:"max_sol"`
	TotalPhotos int       `json:"total_photos"`
}

// Available reports whether both bounds are known.
func (m DateManifest) Available() bool {
	return !m.Min.IsZero() && !m.Max.IsZero()
}

// DateMode selects which date field drives a search.
type DateMode int

const (
	DateEarth DateMode = iota
	DateSol
)

// String returns the label shown in the date format selector.
func (m DateMode) String() string {
	switch m {
	case DateSol:
		return "Mars Date (Sol)"
	default:
		return "Earth Date"
	}
}

// ParseDateMode accepts "earth", "sol" or either display label.
func ParseDateMode(s string) (DateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "earth", "earth date":
		return DateEarth, nil
	case "sol", "mars", "mars date (sol)":
		return DateSol, nil
	}
	return DateEarth, fmt.Errorf("unknown date mode: %q (expected earth or sol)", s)
}

// SearchCriteria is a validated photo query.
// Exactly one of EarthDate and Sol is used, selected by Mode.
type SearchCriteria struct {
	Rover     string    `json:"rover"`
	Camera    string    `json:"camera,omitempty"`
	Mode      DateMode  `json:"mode"`
	EarthDate time.Time `json:"earth_date,omitempty"`
	Sol       int       `json:"sol,omitempty"`
}

// Validate checks if the criteria can be sent to the catalog.
func (c *SearchCriteria) Validate() error {
	if strings.TrimSpace(c.Rover) == "" {
		return errors.New("rover is required")
	}
	if c.Mode == DateEarth && c.EarthDate.IsZero() {
		return errors.New("earth date is required")
	}
	if c.Mode == DateSol && c.Sol < 0 {
		return errors.New("sol must be non-negative")
	}
	return nil
}

// MatchesCamera reports whether the photo passes the camera filter.
// An empty filter matches every camera.
func (c *SearchCriteria) MatchesCamera(p Photo) bool {
	return c.Camera == "" || p.Camera.FullName == c.Camera
}
