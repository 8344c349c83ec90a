package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-crawler/internal/clock"
	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/server"
	localstorage "github.com/JakeFAU/seo-crawler/internal/storage/local"
)

type crawlOptions struct {
	maxDepth    int
	maxPages    int
	concurrency int
	delay       time.Duration
	render      string
	userAgent   string
	ignoreRobot bool
	sitemaps    bool
	archiveDir  string
	jsonOut     bool
	quiet       bool
}

func newCrawlCmd(state *cli) *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl URL [URL...]",
		Short: "Crawl the given sites once and print the audit",
		Long: `Crawl starts a single job in this process, shows a progress bar on
stderr and prints a page summary (or the full result with --json) on stdout.
Flags left unset fall back to the crawler section of the config.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, state, opts, args)
		},
	}
	opts.bind(cmd)
	return cmd
}

func (o *crawlOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&o.maxDepth, "max-depth", 0, "maximum link depth from the seeds")
	f.IntVar(&o.maxPages, "max-pages", 0, "maximum pages to crawl")
	f.IntVar(&o.concurrency, "concurrency", 0, "parallel fetches")
	f.DurationVar(&o.delay, "delay", 0, "pause between batches for the same host")
	f.StringVar(&o.render, "render", "", "render mode: never, auto or always")
	f.StringVar(&o.userAgent, "user-agent", "", "User-Agent header to send")
	f.BoolVar(&o.ignoreRobot, "ignore-robots", false, "do not consult robots.txt")
	f.BoolVar(&o.sitemaps, "sitemaps", false, "seed the frontier from sitemap.xml")
	f.StringVar(&o.archiveDir, "archive-dir", "", "write raw HTML under this directory")
	f.BoolVar(&o.jsonOut, "json", false, "print the crawl result as JSON")
	f.BoolVar(&o.quiet, "quiet", false, "hide the progress bar")
}

// job merges the flags the user set over the configured job defaults.
func (o *crawlOptions) job(cmd *cobra.Command, base crawler.CrawlJob, urls []string) crawler.CrawlJob {
	job := base
	job.URLs = urls
	changed := cmd.Flags().Changed
	if changed("max-depth") {
		job.MaxDepth = o.maxDepth
	}
	if changed("max-pages") {
		job.MaxPages = o.maxPages
	}
	if changed("concurrency") {
		job.Concurrency = o.concurrency
	}
	if changed("delay") {
		job.CrawlDelay = o.delay
	}
	if changed("render") {
		job.RenderMode = crawler.RenderMode(o.render)
	}
	if changed("user-agent") {
		job.UserAgent = o.userAgent
	}
	if changed("ignore-robots") {
		respect := !o.ignoreRobot
		job.RespectRobots = &respect
	}
	if changed("sitemaps") {
		job.SeedFromSitemaps = o.sitemaps
	}
	return job.WithDefaults()
}

func runCrawl(cmd *cobra.Command, state *cli, opts *crawlOptions, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := opts.job(cmd, state.cfg.JobDefaults(), args)
	if err := job.Validate(); err != nil {
		return err
	}

	cfg := state.cfg
	if job.RenderMode != crawler.RenderNever {
		cfg.Headless.Enabled = true
	}
	deps := server.EngineDeps{Clock: clock.System{}, Logger: state.logger}
	if opts.archiveDir != "" {
		archive, err := localstorage.New(localstorage.Config{BaseDir: opts.archiveDir})
		if err != nil {
			return fmt.Errorf("open archive dir: %w", err)
		}
		deps.Archive = archive
	}
	engine, release, err := server.BuildEngine(cfg, deps)
	if err != nil {
		return err
	}
	defer release()

	run, err := engine.Start(ctx, job)
	if err != nil {
		return fmt.Errorf("start crawl: %w", err)
	}
	state.logger.Info("crawl started", zap.String("job_id", run.JobID()), zap.Strings("urls", job.URLs))

	var bar *progressbar.ProgressBar
	if !opts.quiet {
		bar = newProgressBar(cmd.ErrOrStderr(), job.MaxPages)
	}
	for evt := range run.Events() {
		if bar == nil || evt.Progress == nil {
			continue
		}
		_ = bar.Set(min(evt.Progress.Processed, job.MaxPages))
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	result, err := run.Wait(cmd.Context())
	if err != nil {
		return err
	}
	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printSummary(cmd.OutOrStdout(), result)
	if result.Status == crawler.JobStatusFailed {
		return fmt.Errorf("crawl failed: %s", result.Err)
	}
	return nil
}

func newProgressBar(w io.Writer, maxPages int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxPages,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("crawling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func printSummary(w io.Writer, result crawler.CrawlResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tDEPTH\tSEO\tLOAD\tURL\tTITLE")
	for _, p := range result.Pages {
		score := "-"
		if p.SEO != nil {
			score = fmt.Sprintf("%d", p.SEO.SEOScore)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			p.StatusCode, p.Depth, score, p.LoadTime.Round(time.Millisecond), p.URL, p.Title)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\njob %s %s: %d pages, %d errors in %s\n",
		result.JobID, result.Status, len(result.Pages), len(result.Errors), result.Duration.Round(time.Millisecond))
	if result.Stats != nil {
		fmt.Fprintf(w, "success rate %.0f%%, avg load %s, avg performance %.1f\n",
			result.Stats.SuccessRate*100, result.Stats.AvgLoadTime.Round(time.Millisecond), result.Stats.AvgPerformanceScore)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "error %s: %s\n", e.URL, e.Message)
	}
}
