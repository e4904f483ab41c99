package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pevans/pagecat"
	"github.com/pevans/pagecat/extract"
	"github.com/pevans/pagecat/page"
	"github.com/pevans/pagecat/page/replay"
	"github.com/pevans/pagecat/scroll"
)

// signalContext is cancelled on interrupt and after timeout, if positive.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// watchProgress prints progress updates to stderr until the returned
// function is called.
func watchProgress(svc *pagecat.Service) func() {
	updates, unsubscribe := svc.Progress().Subscribe()
	done := make(chan struct{})
	progress := color.New(color.FgCyan)

	go func() {
		defer close(done)
		for p := range updates {
			progress.Fprintf(os.Stderr, "\r[%3.0f%%] %s", p.Percent, p.Message)
		}
		fmt.Fprintln(os.Stderr)
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func handleScroll(args []string) {
	fs := flag.NewFlagSet("scroll", flag.ExitOnError)
	format := fs.String("format", "table", "Output format: table, json, compact")
	maxTicks := fs.Int("max-ticks", 0, "Override the tick budget")
	timeout := fs.Duration("timeout", 10*time.Minute, "Give up after this long")
	noSave := fs.Bool("no-save", false, "Do not store the run")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: usage: pagecat scroll [flags] <url>")
		os.Exit(1)
	}

	cfg := loadFileConfig()
	if *maxTicks > 0 {
		cfg.Scroll.MaxTicks = *maxTicks
	}
	logger := newLogger(cfg)

	browser := launchBrowser(cfg, logger)
	defer browser.Close()

	var opts []pagecat.ServiceOption
	if !*noSave {
		opts = append(opts, pagecat.WithRuns(openRuns(cfg)))
	}
	svc := newService(cfg, browser, logger, opts...)

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	stopProgress := watchProgress(svc)
	resp := svc.Extract(ctx, fs.Arg(0))
	stopProgress()

	printResponse(resp, *format)
}

func handleReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	format := fs.String("format", "table", "Output format: table, json, compact")
	base := fs.String("base", "", "URL the frames were captured from, for resolving links")
	realtime := fs.Bool("realtime", false, "Wait between ticks as a live session would")
	save := fs.Bool("save", false, "Store the run")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: usage: pagecat replay [flags] <frames-dir>")
		os.Exit(1)
	}

	cfg := loadFileConfig()
	logger := newLogger(cfg)

	opts := []pagecat.ServiceOption{}
	if !*realtime {
		opts = append(opts, pagecat.WithScrollOptions(scroll.WithWait(func(ctx context.Context, _ time.Duration) error {
			return context.Cause(ctx)
		})))
	}
	if *save {
		opts = append(opts, pagecat.WithRuns(openRuns(cfg)))
	}
	svc := newService(cfg, replay.DirOpener(fs.Arg(0)), logger, opts...)

	ctx, cancel := signalContext(0)
	defer cancel()

	url := *base
	if url == "" {
		url = "file://" + fs.Arg(0)
	}
	printResponse(svc.Extract(ctx, url), *format)
}

// handleSnapshot extracts a single page load without scrolling. It works on
// server-rendered pages and saved HTML files. The default full mode lists
// untitled cards as "无标题项目 N" so broken positions stay visible.
func handleSnapshot(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	format := fs.String("format", "table", "Output format: table, json, compact")
	modeName := fs.String("mode", "full", "Extraction mode: full, accumulate")
	timeout := fs.Duration("timeout", time.Minute, "Give up after this long")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: usage: pagecat snapshot [flags] <url-or-file>")
		os.Exit(1)
	}

	mode, err := extract.ParseMode(*modeName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := loadFileConfig()

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	snap, err := page.OpenSnapshot(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result := extract.New(loadProfile(cfg)).Extract(snap, mode)
	if result.Diagnostic != nil {
		printResponse(&pagecat.Response{
			Status:     pagecat.StatusError,
			Message:    (&extract.MismatchError{Diagnostic: result.Diagnostic}).Error(),
			Diagnostic: result.Diagnostic,
		}, *format)
		return
	}

	records := result.Records
	printResponse(&pagecat.Response{
		Status: pagecat.StatusSuccess,
		Data:   records,
		Metadata: &pagecat.Metadata{
			TotalCount: len(records),
			SourceURL:  fs.Arg(0),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		},
	}, *format)

	if result.Hidden > 0 {
		color.New(color.Faint).Fprintf(os.Stderr, "%d hidden cards skipped\n", result.Hidden)
	}
}

func handleAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	timeout := fs.Duration("timeout", 15*time.Minute, "Give up after this long")
	raw := fs.Bool("raw", false, "Print the model's reply unchanged")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Error: usage: pagecat ask [flags] <url> <instruction>")
		os.Exit(1)
	}
	url := fs.Arg(0)
	query := strings.Join(fs.Args()[1:], " ")

	cfg := loadFileConfig()
	logger := newLogger(cfg)

	settings := openSettings(cfg)
	defer settings.Close()
	hist := openHistory(cfg)
	defer hist.Close()

	browser := launchBrowser(cfg, logger)
	defer browser.Close()

	svc := newService(cfg, browser, logger,
		pagecat.WithSettings(settings),
		pagecat.WithHistory(hist),
		pagecat.WithRuns(openRuns(cfg)),
	)

	ctx, cancel := signalContext(*timeout)
	defer cancel()

	stopProgress := watchProgress(svc)
	result, err := svc.Process(ctx, pagecat.ProcessRequest{URL: url, Query: query})
	stopProgress()
	if err != nil {
		printError(err)
		var mismatch *extract.MismatchError
		if errors.As(err, &mismatch) {
			printDiagnostic(mismatch.Diagnostic)
		}
		os.Exit(1)
	}

	if *raw {
		fmt.Println(result.Answer.Raw)
		return
	}
	if err := result.Answer.Render(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
