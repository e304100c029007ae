package main

import (
	"fmt"
	"os"

	"github.com/shenghan/artmap/internal/tui"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[0] != "" {
		switch os.Args[1] {
		case "browse":
			if err := runBrowse(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "export":
			if err := runExport(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "version":
			fmt.Println("artmap " + version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	// No subcommand → launch TUI
	if err := tui.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `artmap - museum artwork discovery by place

Usage:
  artmap                  Launch interactive TUI
  artmap browse [flags]   Run headless sampling session
  artmap export [flags]   Export .db to CSV
  artmap version          Show version

Run 'artmap browse --help' or 'artmap export --help' for flags.
`)
}
