package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/config"
	"github.com/brogergvhs/mangapdf/internal/downloader"
	"github.com/brogergvhs/mangapdf/internal/mangadex"
	"github.com/brogergvhs/mangapdf/internal/pdf"
	"github.com/brogergvhs/mangapdf/internal/pipeline"
	"github.com/brogergvhs/mangapdf/internal/ui"
	"github.com/brogergvhs/mangapdf/internal/util"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// selection
	flagTitle      string
	flagMangaID    string
	flagChapterIDs []string
	flagChapter    string
	flagRange      string
	flagList       string
	flagLanguage   string

	// runtime
	flagOutput         string
	flagStagingDir     string
	flagPageWorkers    int
	flagChapterWorkers int
	flagTimeout        time.Duration
	flagDataSaver      bool
	flagOverwrite      bool
	flagNoCompress     bool
	flagDryRun         bool

	// api
	flagUserAgent string
	flagAPIURL    string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download MangaDex chapters as one PDF per chapter. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagTitle, "title", "", "search MangaDex for a manga by title")
	downloadCmd.Flags().StringVar(&flagMangaID, "manga-id", "", "MangaDex manga UUID")
	downloadCmd.Flags().StringArrayVar(&flagChapterIDs, "chapter-id", nil, "MangaDex chapter UUID (repeatable), skips manga lookup")
	downloadCmd.Flags().StringVar(&flagChapter, "chapter", "", "download single chapter by number or index (e.g. 28.5 or 5)")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "download range of chapters by index (e.g. 5-12)")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "download specific chapter indices (e.g. 1,3,5)")
	downloadCmd.Flags().StringVar(&flagLanguage, "language", "", "translated language of the chapter feed (default en)")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for PDF files")
	downloadCmd.Flags().StringVar(&flagStagingDir, "staging-dir", "", "where pages are staged before assembly (default system temp)")
	downloadCmd.Flags().IntVar(&flagPageWorkers, "page-workers", config.DefaultPageWorkers, "parallel page downloads per chapter")
	downloadCmd.Flags().IntVar(&flagChapterWorkers, "chapter-workers", config.DefaultChapterWorkers, "parallel chapters")
	downloadCmd.Flags().DurationVar(&flagTimeout, "timeout", config.DefaultRequestTimeout, "timeout of a single HTTP request")
	downloadCmd.Flags().BoolVar(&flagDataSaver, "data-saver", false, "download the compressed image set")
	downloadCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "rebuild PDFs that already exist")
	downloadCmd.Flags().BoolVar(&flagNoCompress, "no-compress", false, "store page content streams uncompressed")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don't download")

	// api
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	downloadCmd.Flags().StringVar(&flagAPIURL, "api-url", "", "MangaDex API base URL")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	opts := config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		Output:       flagOutput,
		StagingDir:   flagStagingDir,
		APIURL:       flagAPIURL,
		Language:     flagLanguage,
		DataSaver:    flagDataSaver,
		NoCompress:   flagNoCompress,
		Overwrite:    flagOverwrite,
		UserAgent:    flagUserAgent,
	}
	if cmd.Flags().Changed("page-workers") {
		opts.PageWorkers = flagPageWorkers
	}
	if cmd.Flags().Changed("chapter-workers") {
		opts.ChapterWorkers = flagChapterWorkers
	}
	if cmd.Flags().Changed("timeout") {
		opts.RequestTimeout = flagTimeout
	}

	cfg, usedPath, err := config.LoadMerged(opts)
	if err != nil {
		return err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	defer logSvc.Sync()

	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}
	fmt.Println("Full config:")
	cfg.Print(os.Stdout)
	fmt.Println()

	for _, id := range append([]string{flagMangaID}, flagChapterIDs...) {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid MangaDex id %q: %w", id, err)
		}
	}

	client := util.NewHTTPClient(util.HTTPClientOptions{
		UserAgent:   cfg.UserAgent,
		MaxConns:    cfg.PageWorkers * cfg.ChapterWorkers,
		DebugLogger: logSvc,
	})
	api := mangadex.NewClient(client, cfg.APIURL,
		mangadex.WithTimeout(cfg.RequestTimeout),
		mangadex.WithDataSaver(cfg.DataSaver),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	seriesTitle, selected, err := resolveSelection(ctx, api, cfg)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	outputDir := cfg.Output
	if seriesTitle != "" {
		outputDir = filepath.Join(cfg.Output, chapters.SanitizeName(seriesTitle))
	}

	if flagDryRun {
		names := chapters.OutputNames(selected)
		fmt.Printf("Dry-run: %d chapters selected.\n\n", len(selected))
		for i, ch := range selected {
			fmt.Printf("%3d) %s  [%s]\n    -> %s\n", i+1, ch, ch.ID, filepath.Join(outputDir, names[ch.ID]))
		}
		return nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}
	if cfg.StagingDir != "" {
		if err := os.MkdirAll(cfg.StagingDir, 0755); err != nil {
			return fmt.Errorf("cannot create staging folder: %w", err)
		}
	}

	util.SetupInterruptHandler(cancel, util.Staged, outputDir)

	fetcher := downloader.New(client, api, cfg.PageWorkers, cfg.RequestTimeout, logSvc)
	assembler := pdf.NewAssembler(cfg.Compress, logSvc)
	pipe := pipeline.New(fetcher, assembler, pipeline.Options{
		StagingDir:  cfg.StagingDir,
		Overwrite:   cfg.Overwrite,
		SeriesTitle: seriesTitle,
	}, logSvc)

	pm := ui.NewProgressManager(os.Stdout)
	coord := pipeline.NewCoordinator(pipe, cfg.ChapterWorkers, func(label string) pipeline.Tracker {
		return pm.Register(label)
	}, logSvc)

	start := time.Now()
	outcomes := coord.Run(ctx, selected, outputDir)
	pm.Close()

	stats, rows := summarize(outcomes)
	stats.Print(os.Stdout, rows, time.Since(start))

	if n := stats.Failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d chapters failed", n, len(outcomes))
	}

	fmt.Println("\nAll done.")
	return nil
}

// resolveSelection turns the selection flags into a series title and the
// chapters to process. The title is empty for bare chapter IDs.
func resolveSelection(ctx context.Context, api *mangadex.Client, cfg *config.Config) (string, []chapters.Chapter, error) {
	if len(flagChapterIDs) > 0 {
		list := make([]chapters.Chapter, 0, len(flagChapterIDs))
		for _, id := range flagChapterIDs {
			list = append(list, chapters.Chapter{ID: id})
		}
		return "", chapters.Dedupe(list), nil
	}

	var manga mangadex.Manga
	switch {
	case flagMangaID != "":
		manga = mangadex.Manga{ID: flagMangaID, Title: flagTitle}
		if manga.Title == "" {
			manga.Title = flagMangaID
		}
	case flagTitle != "":
		results, err := api.SearchManga(ctx, flagTitle, 20)
		if errors.Is(err, mangadex.ErrNotFound) {
			return "", nil, fmt.Errorf("no manga found for %q", flagTitle)
		}
		if err != nil {
			return "", nil, err
		}
		manga, err = selectManga(results)
		if err != nil {
			return "", nil, err
		}
	default:
		return "", nil, fmt.Errorf("missing --title, --manga-id or --chapter-id")
	}

	all, err := api.Feed(ctx, manga.ID, cfg.Language)
	if errors.Is(err, mangadex.ErrNotFound) {
		return "", nil, fmt.Errorf("%s has no %s chapters hosted on MangaDex", manga.Title, cfg.Language)
	}
	if err != nil {
		return "", nil, err
	}
	chapters.SortByNumber(all)

	if flagChapter == "" && flagRange == "" && flagList == "" {
		selected, err := promptChapterSelection(all)
		return manga.Title, selected, err
	}

	selected := chapters.Filter(all, flagChapter, flagRange, flagList)
	if len(selected) == 0 && flagChapter != "" {
		return "", nil, fmt.Errorf("chapter '%s' not found", flagChapter)
	}

	return manga.Title, selected, nil
}

func summarize(outcomes []pipeline.Outcome) (*ui.Stats, []ui.SummaryRow) {
	stats := &ui.Stats{}
	rows := make([]ui.SummaryRow, 0, len(outcomes))

	for _, o := range outcomes {
		row := ui.SummaryRow{
			Chapter: o.Chapter.Label(),
			Status:  o.Status.String(),
			Pages:   o.Pages,
			Dropped: o.Dropped(),
		}

		switch o.Status {
		case pipeline.StatusSucceeded:
			stats.Succeeded.Add(1)
			row.Detail = o.OutputPath
		case pipeline.StatusSkipped:
			stats.Skipped.Add(1)
			row.Detail = "exists: " + o.OutputPath
		default:
			stats.Failed.Add(1)
			if o.Err != nil {
				row.Detail = o.Err.Error()
			}
		}

		stats.Pages.Add(int64(o.Pages))
		stats.Dropped.Add(int64(o.Dropped()))
		stats.Bytes.Add(o.Bytes)
		rows = append(rows, row)
	}

	return stats, rows
}
