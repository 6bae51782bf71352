// Package export writes saved photos to a portable XML document and reads
// them back.
package export

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/robertmeta/rover-cli/favorites"
	"github.com/robertmeta/rover-cli/model"
)

// Version is the document format version.
const Version = "1.0"

// Document is the root element.
type Document struct {
	XMLName xml.Name `xml:"favorites"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body groups photos by rover. Photos may also appear directly in the body.
type Body struct {
	Rovers []RoverGroup `xml:"rover"`
	Photos []Entry      `xml:"photo"`
}

// RoverGroup holds the photos of one rover.
type RoverGroup struct {
	Name   string  `xml:"name,attr"`
	Photos []Entry `xml:"photo"`
}

// Entry is one saved photo.
type Entry struct {
	ID         int64  `xml:"id,attr"`
	Sol        *int   `xml:"sol,attr,omitempty"`
	EarthDate  string `xml:"earthDate,attr,omitempty"`
	Camera     string `xml:"camera,attr,omitempty"`
	CameraName string `xml:"cameraName,attr,omitempty"`
	Rover      string `xml:"rover,attr,omitempty"`
	Src        string `xml:"src,attr"`
}

// Parse reads a document and returns its photos in document order.
// Entries without an id or source are skipped.
func Parse(r io.Reader) ([]model.Photo, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse favorites document: %w", err)
	}

	var photos []model.Photo
	for _, group := range doc.Body.Rovers {
		photos = append(photos, toPhotos(group.Photos, group.Name)...)
	}
	photos = append(photos, toPhotos(doc.Body.Photos, "")...)
	return photos, nil
}

// toPhotos converts entries; rover fills in for entries without their own.
func toPhotos(entries []Entry, rover string) []model.Photo {
	var photos []model.Photo
	for _, e := range entries {
		p := model.Photo{
			ID:        e.ID,
			Sol:       e.Sol,
			EarthDate: e.EarthDate,
			ImgSrc:    e.Src,
			Camera:    model.Camera{Name: e.CameraName, FullName: e.Camera},
			Rover:     model.RoverRef{Name: e.Rover},
		}
		if p.Rover.Name == "" {
			p.Rover.Name = rover
		}
		if p.Validate() != nil {
			continue
		}
		photos = append(photos, p)
	}
	return photos
}

// Generate writes photos as a document, grouped by rover in order of first
// appearance. Photos without a rover go directly in the body.
func Generate(w io.Writer, photos []model.Photo) error {
	doc := Document{
		Version: Version,
		Head: Head{
			Title:       "rover-cli Saved Images",
			DateCreated: time.Now().Format(time.RFC1123),
		},
	}

	index := map[string]int{}
	for _, p := range photos {
		e := Entry{
			ID:         p.ID,
			Sol:        p.Sol,
			EarthDate:  p.EarthDate,
			Camera:     p.Camera.FullName,
			CameraName: p.Camera.Name,
			Src:        p.ImgSrc,
		}
		if p.Rover.Name == "" {
			doc.Body.Photos = append(doc.Body.Photos, e)
			continue
		}
		i, ok := index[p.Rover.Name]
		if !ok {
			i = len(doc.Body.Rovers)
			index[p.Rover.Name] = i
			doc.Body.Rovers = append(doc.Body.Rovers, RoverGroup{Name: p.Rover.Name})
		}
		doc.Body.Rovers[i].Photos = append(doc.Body.Rovers[i].Photos, e)
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode favorites document: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}
	return nil
}

// Report is the outcome of an import.
type Report struct {
	Added   []int64 `json:"added"`
	Skipped []int64 `json:"skipped"`
}

// Import adds photos to fav. Photos already saved are skipped and reported;
// any other error stops the import.
func Import(fav *favorites.Store, photos []model.Photo) (Report, error) {
	report := Report{Added: []int64{}, Skipped: []int64{}}
	for _, p := range photos {
		err := fav.Add(p)
		switch {
		case errors.Is(err, favorites.ErrAlreadySaved):
			report.Skipped = append(report.Skipped, p.ID)
		case err != nil:
			return report, fmt.Errorf("failed to import photo %d: %w", p.ID, err)
		default:
			report.Added = append(report.Added, p.ID)
		}
	}
	return report, nil
}
