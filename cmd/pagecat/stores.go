package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pevans/pagecat/config"
	"github.com/pevans/pagecat/runs"
)

func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	fs.Parse(args)

	fmt.Println("Initializing pagecat storage...")
	fmt.Println()

	configPath, _ := config.ConfigFilePath()
	created, err := config.WriteDefaultConfigFile(*force)
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "  %s Failed to create config file: %v\n", failMark, err)
		os.Exit(1)
	case created:
		fmt.Printf("  %s Config file: %s\n", okMark, configPath)
	default:
		fmt.Printf("  Config file: %s (already exists)\n", configPath)
	}

	cfg := loadFileConfig()

	settings := openSettings(cfg)
	settings.Close()
	fmt.Printf("  %s Settings database: %s\n", okMark, cfg.Storage.Settings)

	hist := openHistory(cfg)
	hist.Close()
	fmt.Printf("  %s History database: %s\n", okMark, cfg.Storage.History)

	openRuns(cfg)
	fmt.Printf("  %s Run storage: %s\n", okMark, cfg.Storage.Runs)

	fmt.Println()
	fmt.Println("You can now:")
	fmt.Println("  - Set the completion API with 'pagecat config set'")
	fmt.Println("  - Collect a feed with 'pagecat scroll <url>'")
}

func handleConfigCommand(action string, args []string) {
	cfg := loadFileConfig()
	store := openSettings(cfg)
	defer store.Close()

	switch action {
	case "show":
		handleConfigShow(store, args)
	case "set":
		handleConfigSet(store, args)
	case "help", "--help", "-h":
		printConfigUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown config command: %s\n\n", action)
		printConfigUsage()
		os.Exit(1)
	}
}

func printConfigUsage() {
	fmt.Println("pagecat config - Completion API settings")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagecat config <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  show       Show the current settings (API key masked)")
	fmt.Println("  set        Change settings: -base-url, -api-key, -model")
	fmt.Println("  help       Show this help message")
}

func handleConfigShow(store *config.ConfigStore, args []string) {
	fs := flag.NewFlagSet("config show", flag.ExitOnError)
	format := fs.String("format", "text", "Output format: text, json")
	fs.Parse(args)

	settings, err := store.GetSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read settings: %v\n", err)
		os.Exit(1)
	}
	masked := settings.Masked()

	if *format == "json" {
		printJSON(masked)
		return
	}

	fmt.Printf("Base URL:   %s\n", orNotSet(masked.BaseURL))
	fmt.Printf("API key:    %s\n", orNotSet(masked.APIKey))
	fmt.Printf("Model name: %s\n", orNotSet(masked.ModelName))
	if !settings.Complete() {
		fmt.Println()
		fmt.Printf("%s %v\n", failMark, config.ErrSettingsMissing)
	}
}

func handleConfigSet(store *config.ConfigStore, args []string) {
	fs := flag.NewFlagSet("config set", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "OpenAI-compatible API base URL (e.g., https://api.x.ai/v1)")
	apiKey := fs.String("api-key", "", "API key")
	model := fs.String("model", "", "Model name")
	fs.Parse(args)

	if *baseURL == "" && *apiKey == "" && *model == "" {
		fmt.Fprintln(os.Stderr, "Error: nothing to set (use -base-url, -api-key or -model)")
		os.Exit(1)
	}

	err := store.UpdateSettings(&config.Settings{
		BaseURL:   *baseURL,
		APIKey:    *apiKey,
		ModelName: *model,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to update settings: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s Settings updated\n", okMark)
}

func orNotSet(s string) string {
	if s == "" {
		return dim.Sprint("(not set)")
	}
	return s
}

func handleHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	format := fs.String("format", "text", "Output format: text, json")
	fs.Parse(args)

	cfg := loadFileConfig()
	store := openHistory(cfg)
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list history: %v\n", err)
		os.Exit(1)
	}

	if *format == "json" {
		printJSON(entries)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No instructions yet.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %s\n", dim.Sprint(e.SavedAt.Local().Format("2006-01-02 15:04")), e.Query)
	}
}

func handleRunsCommand(action string, args []string) {
	cfg := loadFileConfig()
	store := openRuns(cfg)

	switch action {
	case "list":
		handleRunsList(store, args)
	case "show":
		handleRunsShow(store, args)
	case "delete":
		handleRunsDelete(store, args)
	case "help", "--help", "-h":
		printRunsUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown runs command: %s\n\n", action)
		printRunsUsage()
		os.Exit(1)
	}
}

func printRunsUsage() {
	fmt.Println("pagecat runs - Manage stored extraction runs")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagecat runs <action> [arguments]")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  list       List stored runs")
	fmt.Println("  show       Print the posts of a run")
	fmt.Println("  delete     Delete a run")
	fmt.Println("  help       Show this help message")
}

func handleRunsList(store *runs.Store, args []string) {
	fs := flag.NewFlagSet("runs list", flag.ExitOnError)
	format := fs.String("format", "text", "Output format: text, json")
	fs.Parse(args)

	result, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		os.Exit(1)
	}
	for _, readErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "Warning: skipped %v\n", &readErr)
	}

	if *format == "json" {
		printJSON(result.Runs)
		return
	}
	if len(result.Runs) == 0 {
		fmt.Println("No runs stored.")
		return
	}

	fmt.Printf("%-36s  %-16s  %5s  %-16s  %s\n", "ID", "TIME", "POSTS", "STOPPED", "URL")
	fmt.Println(strings.Repeat("-", 100))
	for _, run := range result.Runs {
		fmt.Printf("%-36s  %-16s  %5d  %-16s  %s\n",
			run.ID.String(),
			run.Timestamp.Local().Format("2006-01-02 15:04"),
			len(run.Records),
			run.StopReason,
			run.SourceURL,
		)
	}
}

func parseRunID(args []string, usage string) uuid.UUID {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Error: usage: %s\n", usage)
		os.Exit(1)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid run ID: %v\n", err)
		os.Exit(1)
	}
	return id
}

func handleRunsShow(store *runs.Store, args []string) {
	fs := flag.NewFlagSet("runs show", flag.ExitOnError)
	format := fs.String("format", "table", "Output format: table, json, compact")
	fs.Parse(args)

	id := parseRunID(fs.Args(), "pagecat runs show [flags] <id>")
	run, err := store.Get(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch *format {
	case "json":
		printJSON(run)
	case "compact":
		printRecordsCompact(run.Records)
	default:
		printRecordsTable(run.Records, nil)
		fmt.Printf("%s %d posts from %s, stopped after %d ticks (%s)\n",
			okMark, len(run.Records), run.SourceURL, run.Ticks, run.StopReason)
	}
}

func handleRunsDelete(store *runs.Store, args []string) {
	id := parseRunID(args, "pagecat runs delete <id>")
	if err := store.Delete(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s Deleted run %s\n", okMark, id)
}
