// Package catalog reads rovers, cameras, date manifests and photos from the
// NASA Mars rover photo API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/robertmeta/rover-cli/model"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public photo API root.
	DefaultBaseURL = "https://api.nasa.gov/mars-photos/api/v1/"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader carries a per-request ID that also appears in the log.
	RequestIDHeader = "X-Request-ID"
)

// Client handles catalog requests.
type Client struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/") + "/"
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithRateLimit sets the client-side request rate.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type roversResponse struct {
	Rovers []model.Rover `json:"rovers"`
}

type roverResponse struct {
	Rover model.Rover `json:"rover"`
}

type manifestResponse struct {
	PhotoManifest struct {
		Name        string `json:"name"`
		LandingDate string `json:"landing_date"`
		MaxSol      int    `json:"max_sol"`
		MaxDate     string `json:"max_date"`
		TotalPhotos int    `json:"total_photos"`
	} `json:"photo_manifest"`
}

type photosResponse struct {
	Photos []model.Photo `json:"photos"`
}

// Rovers returns every rover known to the catalog.
func (c *Client) Rovers(ctx context.Context) ([]model.Rover, error) {
	var resp roversResponse
	if err := c.get(ctx, "rovers", "rovers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rovers, nil
}

// ListRovers returns rover names in catalog order.
func (c *Client) ListRovers(ctx context.Context) ([]string, error) {
	rovers, err := c.Rovers(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rovers))
	for _, r := range rovers {
		names = append(names, r.Name)
	}
	return names, nil
}

// Rover returns one rover with its cameras.
func (c *Client) Rover(ctx context.Context, rover string) (model.Rover, error) {
	var resp roverResponse
	if err := c.get(ctx, "cameras", "rovers/"+roverPath(rover), nil, &resp); err != nil {
		return model.Rover{}, err
	}
	return resp.Rover, nil
}

// ListCameras returns the full names of the rover's cameras.
func (c *Client) ListCameras(ctx context.Context, rover string) ([]string, error) {
	r, err := c.Rover(ctx, rover)
	if err != nil {
		return nil, err
	}
	return r.CameraNames(), nil
}

// DateManifest returns the range of Earth dates the rover has photos for.
func (c *Client) DateManifest(ctx context.Context, rover string) (model.DateManifest, error) {
	var resp manifestResponse
	if err := c.get(ctx, "manifest", "manifests/"+roverPath(rover), nil, &resp); err != nil {
		return model.DateManifest{}, err
	}

	pm := resp.PhotoManifest
	min, err := time.Parse(model.DateLayout, pm.LandingDate)
	if err != nil {
		return model.DateManifest{}, &FetchError{Op: "manifest", Kind: KindDecode, Message: "invalid landing_date", Err: err}
	}
	max, err := time.Parse(model.DateLayout, pm.MaxDate)
	if err != nil {
		return model.DateManifest{}, &FetchError{Op: "manifest", Kind: KindDecode, Message: "invalid max_date", Err: err}
	}

	name := pm.Name
	if name == "" {
		name = rover
	}
	return model.DateManifest{
		Rover:       name,
		Min:         min,
		Max:         max,
		MaxSol:      pm.MaxSol,
		TotalPhotos: pm.TotalPhotos,
	}, nil
}

// SearchPhotos returns the photos matching criteria. The catalog filters by
// rover and date; the camera filter is always applied here, on full name.
func (c *Client) SearchPhotos(ctx context.Context, criteria model.SearchCriteria) ([]model.Photo, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if criteria.Mode == model.DateSol {
		params.Set("sol", strconv.Itoa(criteria.Sol))
	} else {
		params.Set("earth_date", criteria.EarthDate.Format(model.DateLayout))
	}

	var resp photosResponse
	if err := c.get(ctx, "photos", "rovers/"+roverPath(criteria.Rover)+"/photos", params, &resp); err != nil {
		return nil, err
	}

	photos := make([]model.Photo, 0, len(resp.Photos))
	for _, p := range resp.Photos {
		if criteria.MatchesCamera(p) {
			photos = append(photos, p)
		}
	}
	return photos, nil
}

// get performs one rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return &FetchError{Op: op, Kind: KindRateLimited, Message: "request budget exhausted", Err: err}
		}
		return classify(op, err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Op: op, Kind: KindNetwork, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rover-cli/0.1 (https://github.com/robertmeta/rover-cli)")
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("catalog request failed", "op", op, "path", path, "request_id", requestID, "err", err)
		return classify(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("catalog request", "op", op, "path", path, "request_id", requestID, "status", resp.StatusCode, "elapsed", time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Op: op, Kind: KindDecode, Message: "invalid response body", Err: err}
	}
	return nil
}

// statusError maps a non-200 response to a FetchError.
func statusError(op string, status int, body []byte) error {
	message := errorMessage(body)
	if message == "" {
		message = http.StatusText(status)
	}

	kind := KindStatus
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case (status == http.StatusBadRequest || status == http.StatusNotFound) &&
		strings.Contains(strings.ToLower(message), "rover"):
		kind = KindUnknownRover
	}
	return &FetchError{Op: op, Kind: kind, StatusCode: status, Message: message}
}

// errorMessage extracts {"errors": "..."} or {"error": {"message": "..."}}.
func errorMessage(body []byte) string {
	var flat struct {
		Errors string `json:"errors"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Errors != "" {
		return flat.Errors
	}

	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	return ""
}

// classify turns a transport error into a FetchError.
func classify(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Op: op, Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &FetchError{Op: op, Kind: KindNetwork, Err: err}
}

func roverPath(rover string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(rover)))
}
