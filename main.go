package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/beavernet/beavernet/cmd"
)

const (
	appName = "beavernet"
	version = "1.0.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		configFile := serveFlags.String("config", "", "Configuration file (HCL or JSON)")
		serveFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		listen := serveFlags.String("listen", "", "Override listen address")
		serveFlags.Parse(os.Args[2:])

		if err := cmd.RunServe(*configFile, *listen); err != nil {
			fmt.Fprintf(os.Stderr, "Serve failed: %v\n", err)
			os.Exit(1)
		}

	case "config":
		configFlags := flag.NewFlagSet("config", flag.ExitOnError)
		configFile := configFlags.String("config", "", "Configuration file (HCL or JSON)")
		configFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		configFlags.Parse(os.Args[2:])

		if err := cmd.RunShowConfig(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Config failed: %v\n", err)
			os.Exit(1)
		}

	case "hash-password":
		if err := cmd.RunHashPassword(); err != nil {
			fmt.Fprintf(os.Stderr, "Hash failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s\n", appName, version)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - firewall and port-forward dashboard

Usage:
  %s serve [-c config.hcl] [-listen :8080]   Run the dashboard server
  %s config [-c config.hcl]                  Print the effective configuration
  %s hash-password                           Hash a password for a users file
  %s version                                 Print version info
`, appName, appName, appName, appName, appName)
}
