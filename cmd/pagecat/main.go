package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// A missing .env file is fine; the environment is used as is.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "init":
		handleInit(args)
	case "scroll":
		handleScroll(args)
	case "snapshot":
		handleSnapshot(args)
	case "replay":
		handleReplay(args)
	case "ask":
		handleAsk(args)
	case "serve":
		handleServe(args)
	case "config":
		if len(args) < 1 {
			printConfigUsage()
			os.Exit(1)
		}
		handleConfigCommand(args[0], args[1:])
	case "history":
		handleHistory(args)
	case "runs":
		if len(args) < 1 {
			printRunsUsage()
			os.Exit(1)
		}
		handleRunsCommand(args[0], args[1:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pagecat - Collect every post from an infinite-scroll feed")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagecat <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  init       Create the config file and storage")
	fmt.Println("  scroll     Scroll a live page to the bottom and print its posts")
	fmt.Println("  snapshot   Extract posts from a single page load or saved HTML file")
	fmt.Println("  replay     Run a scroll session against saved HTML frames")
	fmt.Println("  ask        Scroll a page and ask the completion model about it")
	fmt.Println("  serve      Start the HTTP API server")
	fmt.Println("  config     Show or change the completion API settings")
	fmt.Println("  history    List recent instructions")
	fmt.Println("  runs       Manage stored extraction runs")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  PAGECAT_SETTINGS_DSN  Path to settings database (default: ~/.pagecat/settings.db)")
	fmt.Println("  PAGECAT_HISTORY_DSN   Path to history database (default: ~/.pagecat/history.db)")
	fmt.Println("  PAGECAT_RUNS_DIR      Directory for stored runs (default: ~/.pagecat/runs)")
	fmt.Println("  PAGECAT_PROFILE       Selector profile YAML (default: built-in)")
	fmt.Println("  PAGECAT_BROWSER_URL   DevTools URL of a running browser to reuse")
	fmt.Println("  PAGECAT_LOG_LEVEL     Log level (default: info)")
	fmt.Println("  PAGECAT_LOG_FORMAT    Log format: text or json (default: text)")
	fmt.Println("  PAGECAT_LISTEN        API server address (default: :8080)")
}
