package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/robertmeta/rover-cli/export"
	"github.com/robertmeta/rover-cli/favorites"
	"github.com/robertmeta/rover-cli/imagery"
	"github.com/robertmeta/rover-cli/model"
	"github.com/urfave/cli/v2"
)

func favoritesCommand() *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Manage saved photos",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved photos",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of photos to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Usage:   "Offset for pagination",
					},
					&cli.StringFlag{
						Name:    "rover",
						Aliases: []string{"r"},
						Usage:   "Filter by rover",
					},
					&cli.StringFlag{
						Name:    "camera",
						Aliases: []string{"c"},
						Usage:   "Filter by camera (full or short name)",
					},
					&cli.StringFlag{
						Name:  "since",
						Usage: "Earliest Earth date (YYYY-MM-DD)",
					},
					&cli.StringFlag{
						Name:  "until",
						Usage: "Latest Earth date (YYYY-MM-DD)",
					},
				},
				Action: listFavorites,
			},
			{
				Name:      "add",
				Usage:     "Search, then save the results with the given ids",
				ArgsUsage: "<photo-id>...",
				Flags:     searchFlags(),
				Action:    addFavorites,
			},
			{
				Name:      "remove",
				Usage:     "Remove saved photos by id",
				ArgsUsage: "<photo-id>...",
				Action:    removeFavorites,
			},
			{
				Name:      "delete",
				Usage:     "Remove the saved photo at a position (0-based, as listed)",
				ArgsUsage: "<position>",
				Action:    deleteFavorite,
			},
			{
				Name:   "clear",
				Usage:  "Remove all saved photos (same as reset)",
				Action: reset,
			},
			{
				Name:      "import",
				Usage:     "Import saved photos from a favorites document",
				ArgsUsage: "<file>",
				Action:    importFavorites,
			},
			{
				Name:  "export",
				Usage: "Export saved photos to a favorites document",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportFavorites,
			},
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid photo id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func listFavorites(c *cli.Context) error {
	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	opts, err := favorites.BuildQueryOptions(
		c.Int("limit"),
		c.Int("offset"),
		c.String("rover"),
		c.String("camera"),
		c.String("since"),
		c.String("until"),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid query options: %v", err), ExitUsageError)
	}

	photos := s.fav.Query(opts)
	if photos == nil {
		photos = []model.Photo{}
	}
	return outputJSON(photos)
}

func addFavorites(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: rover-cli favorites add --rover <rover> (--earth-date <date> | --sol <sol>) <photo-id>...", ExitUsageError)
	}
	ids, err := parseIDs(c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := runSearch(c, s); err != nil {
		return err
	}

	saved := []int64{}
	alreadySaved := []int64{}
	notFound := []int64{}
	for _, id := range ids {
		err := s.ctrl.SaveByID(id)
		switch {
		case err == nil:
			saved = append(saved, id)
		case errors.Is(err, favorites.ErrAlreadySaved):
			alreadySaved = append(alreadySaved, id)
		case errors.Is(err, favorites.ErrNotFound):
			notFound = append(notFound, id)
		default:
			return cli.Exit(fmt.Sprintf("Failed to save photo %d: %v", id, err), ExitDataError)
		}
	}

	return outputJSON(map[string]interface{}{
		"saved":         saved,
		"already_saved": alreadySaved,
		"not_found":     notFound,
		"total":         s.fav.Len(),
	})
}

func removeFavorites(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: rover-cli favorites remove <photo-id>...", ExitUsageError)
	}
	ids, err := parseIDs(c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	removed := 0
	missing := []int64{}
	for _, id := range ids {
		err := s.fav.Remove(id)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, favorites.ErrNotFound):
			missing = append(missing, id)
		default:
			return cli.Exit(fmt.Sprintf("Failed to remove photo %d: %v", id, err), ExitDataError)
		}
	}

	return outputJSON(map[string]interface{}{
		"removed":   removed,
		"not_found": missing,
	})
}

func deleteFavorite(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: rover-cli favorites delete <position>", ExitUsageError)
	}
	position, err := strconv.Atoi(c.Args().Get(0))
	if err != nil {
		return cli.Exit("Invalid position", ExitUsageError)
	}

	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	s.ctrl.ShowFavorites()
	if err := s.ctrl.Delete(position); err != nil {
		if errors.Is(err, favorites.ErrIndexOutOfRange) {
			return cli.Exit(s.ctrl.Snapshot().Notice, ExitUsageError)
		}
		return cli.Exit(fmt.Sprintf("Failed to delete favorite: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success":   true,
		"position":  position,
		"remaining": s.fav.Len(),
	})
}

func importFavorites(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: rover-cli favorites import <file>", ExitUsageError)
	}

	file, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open favorites document: %v", err), ExitDataError)
	}
	defer file.Close()

	photos, err := export.Parse(file)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := export.Import(s.fav, photos)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success":  true,
		"imported": len(report.Added),
		"skipped":  report.Skipped,
		"total":    len(photos),
	})
}

func exportFavorites(c *cli.Context) error {
	s, err := openSession(c, "")
	if err != nil {
		return err
	}
	defer s.Close()

	var w io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
		}
		defer file.Close()
		w = file
	}

	if err := export.Generate(w, s.fav.List()); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to export favorites: %v", err), ExitDataError)
	}

	if c.String("output") != "" {
		return outputJSON(map[string]interface{}{
			"success":  true,
			"exported": s.fav.Len(),
			"file":     c.String("output"),
		})
	}
	return nil
}

type downloadOptions struct {
	dir         string
	thumbsOnly  bool
	thumbSize   uint
	concurrency int
}

// download fetches photos with at most opts.concurrency requests in flight.
func download(ctx context.Context, s *session, photos []model.Photo, opts downloadOptions) map[string]interface{} {
	if opts.concurrency < 1 {
		opts.concurrency = 1
	}
	d := imagery.New(opts.dir,
		imagery.WithThumbSize(opts.thumbSize),
		imagery.WithTimeout(s.cfg.Timeout*3),
		imagery.WithLogger(s.log.Logger),
	)

	results := make(map[string]interface{})
	saved := 0

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, opts.concurrency)

	for _, p := range photos {
		wg.Add(1)
		go func(photo model.Photo) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := d.Save(ctx, photo, opts.thumbsOnly)

			mu.Lock()
			defer mu.Unlock()
			key := strconv.FormatInt(photo.ID, 10)
			if err != nil {
				s.log.Warn("download failed", "id", photo.ID, "err", err)
				results[key] = map[string]interface{}{"error": err.Error()}
				return
			}
			saved++
			results[key] = res
		}(p)
	}

	wg.Wait()

	return map[string]interface{}{
		"requested": len(photos),
		"saved":     saved,
		"dir":       opts.dir,
		"results":   results,
	}
}
