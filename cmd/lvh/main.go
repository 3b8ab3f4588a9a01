package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/livefir/livehydrate/cmd/lvh/commands"
)

// Version information (can be overridden at build time with -ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "render":
		err = commands.Render(args, os.Stdout, os.Stderr)
	case "serve":
		err = commands.Serve(args, os.Stdout, os.Stderr)
	case "inspect":
		err = commands.Inspect(args, os.Stderr)
	case "trace":
		err = commands.Trace(args, os.Stdout, os.Stderr)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("lvh version %s\n", version)

	if info, ok := debug.ReadBuildInfo(); ok {
		revision := commit
		if revision == "unknown" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					revision = setting.Value
				}
			}
		}
		if len(revision) > 12 {
			revision = revision[:12]
		}
		if revision != "" && revision != "unknown" {
			fmt.Printf("commit: %s\n", revision)
		}
		fmt.Printf("go: %s\n", info.GoVersion)
	}
}

func printUsage() {
	fmt.Println("LiveHydrate session tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lvh render [-config f] [-minify] [-stages] <session.jsonl>   Replay a session and print the final HTML")
	fmt.Println("  lvh serve [-addr :8080] [-delay 50ms] <session.jsonl>        Live preview over websocket")
	fmt.Println("  lvh inspect <session.jsonl>                                  Terminal debug window")
	fmt.Println("  lvh trace -db trace.sqlite [-session id]                     List recorded stage events")
	fmt.Println("  lvh version                                                  Show version information")
	fmt.Println()
	fmt.Println("Session files hold one JSON object per line:")
	fmt.Println(`  {"event":"data","data":{...}}      replace the data context`)
	fmt.Println(`  {"event":"ui","content":"..."}     append a markup chunk`)
	fmt.Println(`  {"event":"replace","content":"..."} replace the whole payload`)
	fmt.Println(`  {"event":"reset"}                  end the current epoch`)
	fmt.Println(`  {"event":"error","message":"..."}  upstream error (reported, not applied)`)
	fmt.Println(`  {"event":"done"}                   end of stream`)
}
