package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/pevans/pagecat"
	"github.com/pevans/pagecat/extract"
	"github.com/pevans/pagecat/post"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
	dim      = color.New(color.Faint)
	bold     = color.New(color.Bold)
)

// printResponse prints an extraction result in the requested format. Error
// responses exit with status 1.
func printResponse(resp *pagecat.Response, format string) {
	if format == "json" {
		printJSON(resp)
	} else if resp.Status == pagecat.StatusSuccess {
		switch format {
		case "compact":
			printRecordsCompact(resp.Data)
		default:
			printRecordsTable(resp.Data, resp.Metadata)
		}
	} else {
		fmt.Fprintf(os.Stderr, "%s %s\n", failMark, resp.Message)
		if resp.Diagnostic != nil {
			printDiagnostic(resp.Diagnostic)
		}
	}

	if resp.Status != pagecat.StatusSuccess {
		os.Exit(1)
	}
}

// printRecordsTable prints records in human-readable format
func printRecordsTable(records []post.Record, meta *pagecat.Metadata) {
	if len(records) == 0 {
		fmt.Println("No posts found.")
		return
	}

	for i, r := range records {
		fmt.Printf("%3d. %s\n", i+1, bold.Sprint(runewidth.Truncate(r.Title, 70, "...")))
		fmt.Printf("     %s | %s | %d likes\n", r.Author, r.Time, r.Likes)
		if r.Description != "" {
			fmt.Printf("     %s\n", runewidth.Truncate(r.Description, 100, "..."))
		}
		if len(r.Tags) > 0 {
			fmt.Printf("     #%s\n", strings.Join(r.Tags, " #"))
		}
		if r.URL != "" {
			fmt.Printf("     %s\n", dim.Sprint(r.URL))
		}
	}

	fmt.Println()
	if meta != nil {
		fmt.Printf("%s %d posts from %s\n", okMark, meta.TotalCount, meta.SourceURL)
		if meta.RunID != "" {
			fmt.Printf("  Run ID: %s\n", meta.RunID)
		}
	}
}

// printRecordsCompact prints one line per record
func printRecordsCompact(records []post.Record) {
	for _, r := range records {
		fmt.Printf("%s (%s) %d\n", r.Title, r.Author, r.Likes)
	}
}

func printDiagnostic(d *extract.Diagnostic) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "  Page title:   %s\n", d.PageTitle)
	fmt.Fprintf(os.Stderr, "  URL:          %s\n", d.URL)
	fmt.Fprintf(os.Stderr, "  Body id:      %s\n", d.BodyID)
	fmt.Fprintf(os.Stderr, "  Body classes: %s\n", d.BodyClasses)
	fmt.Fprintf(os.Stderr, "  Selectors:    %s\n", strings.Join(d.Selectors, ", "))
	if d.PageText != "" {
		fmt.Fprintf(os.Stderr, "  Page text:    %s\n", runewidth.Truncate(d.PageText, 200, "..."))
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", failMark, err)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
