package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shingonati0n/xivomega/cmd"
	"github.com/shingonati0n/xivomega/internal/brand"
	"github.com/shingonati0n/xivomega/internal/logging"
)

func main() {
	// Bare invocation runs the mitigation, matching how the tool is used
	// from a desktop shortcut.
	command := "run"
	rest := []string{}
	if len(os.Args) > 1 {
		command = os.Args[1]
		rest = os.Args[2:]
	}

	switch command {
	case "run":
		runFlags := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := runFlags.String("config", brand.ConfigPath(), "Configuration file")
		runFlags.StringVar(configFile, "c", brand.ConfigPath(), "Configuration file (short)")
		verbose := runFlags.Bool("verbose", false, "Enable debug logging")
		jsonLogs := runFlags.Bool("json", false, "Log in JSON format")
		runFlags.Parse(rest)

		if *jsonLogs {
			logCfg := logging.DefaultConfig()
			logCfg.JSON = true
			logging.SetDefault(logging.New(logCfg))
		}
		if *verbose {
			logging.Default().SetLevel(logging.LevelDebug)
		}
		os.Exit(cmd.RunMitigate(*configFile))

	case "stop":
		stopFlags := flag.NewFlagSet("stop", flag.ExitOnError)
		stopFlags.Parse(rest)
		os.Exit(cmd.RunStop())

	case "version", "--version", "-v":
		fmt.Printf("%s %s (%s)\n", brand.Name, brand.Version, brand.GitCommit)

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s [run]       Provision the mitigation network and launch the workload
  %s stop        Remove leftovers from a previous run
  %s version     Show version information

Run options:
  -c, -config    Configuration file (default %s)
  -verbose       Enable debug logging
  -json          Log in JSON format
`, brand.Name, brand.Description,
		brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.ConfigPath())
}
