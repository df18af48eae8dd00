package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	BuildTime = "unknown"
)

const usage = `Usage: pixvault [flags] <command> [args]

Commands:
  add <image>...     embed images and store them (local path, s3://bucket/key or URL)
  index <dir>        chunk and embed markdown files under dir
  search <query>     semantic search over stored documents
  serve              start the HTTP API
  mcp                start the MCP server over stdio
`

func main() {
	// API keys are commonly kept in a .env file next to the config
	_ = godotenv.Load()

	showVersion := flag.Bool("version", false, "Show version information")
	configFile := flag.String("config", "", "Path to config file (default: pixvault.json)")
	ids := flag.String("ids", "", "Comma-separated document ids for add, parallel to the images")
	metadatas := flag.String("metadatas", "", "JSON array of metadata objects for add, parallel to the images")
	limit := flag.Int("limit", 5, "Maximum number of search results")
	flag.Parse()

	if *showVersion {
		fmt.Printf("PixVault %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	app := NewApp()
	if err := app.Initialize(*configFile); err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	var err error

	switch cmd := flag.Arg(0); cmd {
	case "add":
		err = app.RunAdd(ctx, flag.Args()[1:], *ids, *metadatas)
	case "index":
		err = app.RunIndex(ctx, flag.Arg(1))
	case "search":
		err = app.RunSearch(ctx, flag.Arg(1), *limit)
	case "serve":
		err = app.Serve()
	case "mcp":
		err = app.ServeMCP()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}
