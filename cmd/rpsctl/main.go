// Command rpsctl drives a running rps-tracker server from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"rps-tracker/internal/api"
)

const usage = `usage: rpsctl [-addr URL] [-timeout D] <command> [flags]

commands:
  new-session                 print a fresh session id
  play -session ID [-count N] [-parallel P] CHOICE...
  stats -session ID
  history -session ID         stats and rounds, loaded in parallel
  reset -session ID
  health
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rpsctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("rpsctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	addr := global.String("addr", envOr("RPS_ADDR", "http://localhost:8080"), "server base URL")
	timeout := global.Duration("timeout", 10*time.Second, "per-command timeout")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w\n%s", err, usage)
	}

	rest := global.Args()
	if len(rest) == 0 {
		return errors.New(strings.TrimSpace(usage))
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := api.NewClient(*addr)
	cmd, cmdArgs := rest[0], rest[1:]

	switch cmd {
	case "new-session":
		id, err := api.NewSessionID()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, id)
		return err

	case "play":
		fs := flag.NewFlagSet("play", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		session := fs.String("session", "", "session id")
		count := fs.Int("count", 1, "repeat the choice list this many times")
		parallel := fs.Int("parallel", 1, "max requests in flight")
		if err := fs.Parse(cmdArgs); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			return errors.New("play: at least one choice is required")
		}
		var choices []string
		for range max(*count, 1) {
			choices = append(choices, fs.Args()...)
		}
		results, err := client.PlayMany(ctx, *session, choices, *parallel)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(out, "%-8s vs %-8s -> %s\n", r.PlayerChoice, r.ComputerChoice, r.Result)
		}
		if len(results) > 0 {
			return writeJSON(out, results[len(results)-1].SessionStats)
		}
		return nil

	case "stats", "reset", "history":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		session := fs.String("session", "", "session id")
		if err := fs.Parse(cmdArgs); err != nil {
			return err
		}
		switch cmd {
		case "stats":
			stats, err := client.GetSessionStats(ctx, *session)
			if err != nil {
				return err
			}
			return writeJSON(out, stats)
		case "reset":
			stats, err := client.ResetSession(ctx, *session)
			if err != nil {
				return err
			}
			return writeJSON(out, stats)
		default:
			stats, rounds, err := client.LoadSession(ctx, *session)
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]any{"stats": stats, "rounds": rounds})
		}

	case "health":
		h, err := client.Healthcheck(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, h)
	}

	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
