// aleapp-seek locates files in an evidence source and materializes them
// locally.
//
// Usage:
//
//	aleapp-seek [flags] SOURCE PATTERN [PATTERN...]
//
// SOURCE is a directory, a .tar/.tar.gz/.tgz or .zip archive, or the base
// URL of an evidence API. Matched files are copied into the output
// directory and their local paths printed, one per line.
package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/whobutwb/ALEAPP/internal/logging"
	"github.com/whobutwb/ALEAPP/internal/seeker"
)

func main() {
	out := flag.StringP("out", "o", "./extracted", "directory matched files are materialized under")
	first := flag.Bool("first", false, "stop at the first match per pattern")
	force := flag.Bool("force", false, "re-extract matches even when already materialized")
	apiKey := flag.StringP("api-key", "k", "", "bearer token for web sources")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout for web sources")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: aleapp-seek [flags] SOURCE PATTERN [PATTERN...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := logging.Init(logging.Config{Level: *logLevel, Format: "console"}); err != nil {
		fmt.Fprintln(os.Stderr, "logging init error:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	source, patterns := args[0], args[1:]

	s, err := seeker.Open(source, seeker.Options{
		Destination: *out,
		APIKey:      *apiKey,
		Timeout:     *timeout,
	})
	if err != nil {
		logging.Error("could not open evidence source", zap.String("source", source), zap.Error(err))
		os.Exit(1)
	}
	defer s.Cleanup()

	found := 0
	for _, p := range patterns {
		if *first {
			if local, ok := s.SearchFirst(p, *force); ok {
				fmt.Println(local)
				found++
			}
			continue
		}
		for _, local := range s.Search(p, *force) {
			fmt.Println(local)
			found++
		}
	}

	if found == 0 {
		os.Exit(1)
	}
}
