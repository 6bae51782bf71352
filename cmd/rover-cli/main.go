package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robertmeta/rover-cli/catalog"
	"github.com/robertmeta/rover-cli/config"
	"github.com/robertmeta/rover-cli/controller"
	"github.com/robertmeta/rover-cli/favorites"
	"github.com/robertmeta/rover-cli/logging"
	"github.com/robertmeta/rover-cli/model"
	"github.com/robertmeta/rover-cli/news"
	"github.com/robertmeta/rover-cli/store"
	"github.com/robertmeta/rover-cli/tui"
	"github.com/robertmeta/rover-cli/validate"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	config.LoadEnv()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func newApp() *cli.App {
	defaults := config.Default()

	return &cli.App{
		Name:    "rover-cli",
		Usage:   "Search Mars rover photos and keep a list of favorites",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   config.DefaultFile(),
				Usage:   "YAML config file; missing is fine",
				EnvVars: []string{"ROVER_CLI_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   defaults.DBPath,
				Usage:   "Database file path",
				EnvVars: []string{"ROVER_CLI_DB"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Aliases: []string{"k"},
				Value:   defaults.APIKey,
				Usage:   "Photo service API key",
				EnvVars: []string{"NASA_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Value:   defaults.BaseURL,
				Usage:   "Photo service base URL",
				EnvVars: []string{"ROVER_CLI_BASE_URL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   defaults.Timeout,
				Usage:   "Timeout for each catalog request",
				EnvVars: []string{"ROVER_CLI_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "news-url",
				Value:   defaults.NewsURL,
				Usage:   "Mission news feed (RSS or Atom)",
				EnvVars: []string{"ROVER_CLI_NEWS_URL"},
			},
			&cli.IntFlag{
				Name:  "max-images",
				Value: defaults.MaxImages,
				Usage: "Maximum number of search results shown",
			},
			&cli.IntFlag{
				Name:  "max-sol",
				Value: defaults.MaxSol,
				Usage: "Highest accepted sol; larger values are clamped",
			},
			&cli.BoolFlag{
				Name:  "derive-max-sol",
				Usage: "Use the rover's own latest sol as the ceiling instead of --max-sol",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   defaults.LogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"ROVER_CLI_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Log file (default: stderr, or a dated file for browse)",
				EnvVars: []string{"ROVER_CLI_LOG_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "rovers",
				Usage:  "List rovers",
				Action: listRovers,
			},
			{
				Name:      "cameras",
				Usage:     "List the cameras of a rover",
				ArgsUsage: "<rover>",
				Action:    listCameras,
			},
			{
				Name:      "manifest",
				Usage:     "Show the date range a rover has photos for",
				ArgsUsage: "<rover>",
				Action:    showManifest,
			},
			{
				Name:   "search",
				Usage:  "Search photos by Earth date or sol",
				Flags:  searchFlags(),
				Action: searchPhotos,
			},
			favoritesCommand(),
			{
				Name:      "news",
				Usage:     "Show mission news, optionally for one rover",
				ArgsUsage: "[rover]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   10,
						Usage:   "Maximum number of items to return",
					},
				},
				Action: showNews,
			},
			{
				Name:  "download",
				Usage: "Download saved photos and thumbnails",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"o"},
						Value:   defaults.DownloadDir,
						Usage:   "Output directory",
					},
					&cli.BoolFlag{
						Name:  "thumbs-only",
						Usage: "Write thumbnails only",
					},
					&cli.UintFlag{
						Name:  "thumb-size",
						Value: 300,
						Usage: "Thumbnail bounding box in pixels",
					},
					&cli.IntFlag{
						Name:    "concurrency",
						Aliases: []string{"c"},
						Value:   4,
						Usage:   "Parallel downloads",
					},
				},
				ArgsUsage: "[photo-id]...",
				Action:    downloadFavorites,
			},
			{
				Name:  "browse",
				Usage: "Open the interactive browser",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "carousel-interval",
						Value: defaults.CarouselInterval,
						Usage: "Time each slide is shown",
					},
				},
				Action: browse,
			},
			{
				Name:   "reset",
				Usage:  "Clear all saved photos",
				Action: reset,
			},
			{
				Name:   "status",
				Usage:  "Show configuration and stored data",
				Action: status,
			},
		},
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "rover",
			Aliases: []string{"r"},
			Usage:   "Rover name",
		},
		&cli.StringFlag{
			Name:    "camera",
			Aliases: []string{"c"},
			Usage:   "Camera full name (default: any camera)",
		},
		&cli.StringFlag{
			Name:    "earth-date",
			Aliases: []string{"e"},
			Usage:   "Earth date (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:    "sol",
			Aliases: []string{"s"},
			Usage:   "Mars sol",
		},
	}
}

// loadConfig resolves the global flags into a validated Config.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return cfg, cli.Exit(fmt.Sprintf("Invalid configuration: %v", err), ExitUsageError)
	}

	// Flags and environment override the file only when given.
	set := func(name string, apply func()) {
		if c.IsSet(name) {
			apply()
		}
	}
	set("db", func() { cfg.DBPath = c.String("db") })
	set("api-key", func() { cfg.APIKey = c.String("api-key") })
	set("base-url", func() { cfg.BaseURL = c.String("base-url") })
	set("timeout", func() { cfg.Timeout = c.Duration("timeout") })
	set("news-url", func() { cfg.NewsURL = c.String("news-url") })
	set("max-images", func() { cfg.MaxImages = c.Int("max-images") })
	set("max-sol", func() { cfg.MaxSol = c.Int("max-sol") })
	set("derive-max-sol", func() { cfg.DeriveMaxSol = c.Bool("derive-max-sol") })
	set("log-level", func() { cfg.LogLevel = c.String("log-level") })
	set("log-file", func() { cfg.LogFile = c.String("log-file") })
	set("carousel-interval", func() { cfg.CarouselInterval = c.Duration("carousel-interval") })

	if err := cfg.Validate(); err != nil {
		return cfg, cli.Exit(fmt.Sprintf("Invalid configuration: %v", err), ExitUsageError)
	}
	return cfg, nil
}

// session is everything a command needs, opened from the global flags.
type session struct {
	cfg  config.Config
	log  *logging.Logger
	db   *store.Store
	fav  *favorites.Store
	cat  *catalog.Client
	ctrl *controller.Controller
}

func openSession(c *cli.Context, logFile string) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if logFile == "" {
		logFile = cfg.LogFile
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: logFile})
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitUsageError)
	}

	db, err := getStore(cfg.DBPath)
	if err != nil {
		logger.Close()
		return nil, cli.Exit(err.Error(), ExitDataError)
	}

	fav := favorites.New(db.Slot(favorites.SlotKey), favorites.WithLogger(logger.Logger))
	fav.Load()

	cat := catalog.New(cfg.APIKey,
		catalog.WithBaseURL(cfg.BaseURL),
		catalog.WithTimeout(cfg.Timeout),
		catalog.WithLogger(logger.Logger),
	)

	ctrl := controller.New(fav, cat,
		controller.WithMaxImages(cfg.MaxImages),
		controller.WithMaxSol(cfg.MaxSol),
		controller.WithDerivedMaxSol(cfg.DeriveMaxSol),
		controller.WithLogger(logger.Logger),
	)

	return &session{cfg: cfg, log: logger, db: db, fav: fav, cat: cat, ctrl: ctrl}, nil
}

func (s *session) Close() {
	s.db.Close()
	s.log.Close()
}

func getStore(dbPath string) (*store.Store, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return s, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// exitFor maps an error to an exit code: bad input is a usage error,
// anything from the catalog or the store is a data error.
func exitFor(err error) error {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		return cli.Exit(verr.Error(), ExitUsageError)
	case errors.Is(err, catalog.ErrUnknownRover):
		return cli.Exit(err.Error(), ExitUsageError)
	}
	return cli.Exit(err.Error(), ExitDataError)
}

func listRovers(c *cli.Context) error {
	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	rovers, err := s.cat.Rovers(c.Context)
	if err != nil {
		return exitFor(err)
	}
	return outputJSON(rovers)
}

func listCameras(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: rover-cli cameras <rover>", ExitUsageError)
	}

	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	rover, err := s.cat.Rover(c.Context, c.Args().Get(0))
	if err != nil {
		return exitFor(err)
	}
	return outputJSON(rover.Cameras)
}

func showManifest(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: rover-cli manifest <rover>", ExitUsageError)
	}

	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := s.cat.DateManifest(c.Context, c.Args().Get(0))
	if err != nil {
		return exitFor(err)
	}

	maxSol := s.cfg.MaxSol
	if s.cfg.DeriveMaxSol && m.MaxSol > 0 {
		maxSol = m.MaxSol
	}
	return outputJSON(map[string]interface{}{
		"rover":        m.Rover,
		"min_date":     m.Min.Format(model.DateLayout),
		"max_date":     m.Max.Format(model.DateLayout),
		"max_sol":      m.MaxSol,
		"sol_limit":    maxSol,
		"total_photos": m.TotalPhotos,
	})
}

// runSearch builds a form from the search flags and submits it through the
// controller, so the CLI validates exactly like the browser.
func runSearch(c *cli.Context, s *session) ([]model.Photo, error) {
	rover := strings.TrimSpace(c.String("rover"))
	if rover == "" {
		return nil, cli.Exit("Usage: --rover is required", ExitUsageError)
	}

	form := controller.Form{Rover: rover, Camera: c.String("camera")}
	switch {
	case c.IsSet("sol") && c.IsSet("earth-date"):
		return nil, cli.Exit("Use either --earth-date or --sol, not both", ExitUsageError)
	case c.IsSet("sol"):
		form.Mode = model.DateSol
		form.Sol = c.String("sol")
	case c.IsSet("earth-date"):
		form.Mode = model.DateEarth
		form.EarthDate = c.String("earth-date")
	default:
		return nil, cli.Exit("Usage: one of --earth-date or --sol is required", ExitUsageError)
	}

	if err := s.ctrl.SelectRover(c.Context, rover); err != nil {
		return nil, exitFor(err)
	}

	photos, err := s.ctrl.Submit(c.Context, form)
	if err != nil {
		return nil, exitFor(err)
	}
	return photos, nil
}

func searchPhotos(c *cli.Context) error {
	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	photos, err := runSearch(c, s)
	if err != nil {
		return err
	}

	state := s.ctrl.Snapshot()
	return outputJSON(map[string]interface{}{
		"form":       state.Form,
		"count":      len(photos),
		"no_results": state.NoResults,
		"advisories": state.FieldErrors,
		"photos":     photos,
	})
}

func showNews(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	title, items, err := news.NewFetcher(news.WithTimeout(cfg.Timeout)).Fetch(c.Context, cfg.NewsURL)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	rover := c.Args().Get(0)
	return outputJSON(map[string]interface{}{
		"feed":  title,
		"rover": rover,
		"items": news.Filter(items, rover, c.Int("limit")),
	})
}

func downloadFavorites(c *cli.Context) error {
	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	photos := s.fav.List()
	if c.NArg() > 0 {
		ids, err := parseIDs(c.Args().Slice())
		if err != nil {
			return cli.Exit(err.Error(), ExitUsageError)
		}
		photos = photos[:0:0]
		for _, id := range ids {
			p, err := s.fav.Get(id)
			if err != nil {
				return cli.Exit(err.Error(), ExitDataError)
			}
			photos = append(photos, p)
		}
	}

	results := download(c.Context, s, photos, downloadOptions{
		dir:         c.String("dir"),
		thumbsOnly:  c.Bool("thumbs-only"),
		thumbSize:   c.Uint("thumb-size"),
		concurrency: c.Int("concurrency"),
	})
	return outputJSON(results)
}

func browse(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = cfg.DefaultLogFile()
	}

	s, err := openSession(c, logFile)
	if err != nil {
		return err
	}
	defer s.Close()

	s.log.Info("browser started", "db", s.cfg.DBPath)
	app := tui.NewApp(s.ctrl,
		tui.WithLogger(s.log.Logger),
		tui.WithCarouselInterval(s.cfg.CarouselInterval),
		tui.WithContext(c.Context),
	)
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return cli.Exit(fmt.Sprintf("Browser failed: %v", err), ExitGeneralError)
	}
	s.log.Info("browser closed")
	return nil
}

func reset(c *cli.Context) error {
	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	removed := s.fav.Len()
	if err := s.ctrl.Reset(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to reset: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success": true,
		"removed": removed,
	})
}

func status(c *cli.Context) error {
	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	slots, err := s.db.Keys()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to list slots: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"db":             s.cfg.DBPath,
		"base_url":       s.cfg.BaseURL,
		"api_key":        maskKey(s.cfg.APIKey),
		"timeout":        s.cfg.Timeout.String(),
		"max_images":     s.cfg.MaxImages,
		"max_sol":        s.cfg.MaxSol,
		"derive_max_sol": s.cfg.DeriveMaxSol,
		"favorites":      s.fav.Len(),
		"slots":          slots,
	})
}

func maskKey(key string) string {
	if key == config.DemoKey || len(key) <= 4 {
		return key
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
