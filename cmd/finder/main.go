// Command finder is a small operator CLI for trying queries against the
// classifier and the live Google backends without the HTTP server.
//
//	finder classify 12 Smith St Fitzroy
//	finder search -query "Kew" -mode voice
//	finder search -query "12 Smith St Fitzroy" -select 1
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/reop/addressfinder/internal/config"
	"github.com/reop/addressfinder/internal/finder"
	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/places"
	"github.com/reop/addressfinder/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := logger.Init(cfg.ServerEnv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "classify":
		err = runClassify(os.Args[2:])
	case "search":
		err = runSearch(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: finder classify <query...>")
	fmt.Fprintln(os.Stderr, "       finder search -query <text> [-mode manual|voice] [-select N] [-autocomplete=false]")
}

func runClassify(args []string) error {
	q := strings.Join(args, " ")
	if strings.TrimSpace(q) == "" {
		return finder.ErrEmptyQuery
	}
	it, rule := intent.ClassifyWithRule(q)
	return printJSON(map[string]any{
		"query":  q,
		"intent": it,
		"rule":   rule,
		"state":  intent.ParseState(q),
	})
}

func runSearch(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	query := fs.String("query", "", "search text")
	mode := fs.String("mode", "manual", "input mode (manual or voice)")
	pick := fs.Int("select", 0, "select the Nth suggestion (1-based) after searching")
	autocomplete := fs.Bool("autocomplete", true, "use autocomplete instead of text search")
	timeout := fs.Duration("timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.Google.APIKey == "" {
		return fmt.Errorf("GOOGLE_MAPS_API_KEY is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	google := places.NewGoogleClient(cfg.Google, cfg.Breaker, cfg.Finder.MaxSuggestions)
	svc := finder.New(google, places.NewDetailsCache(google, nil, cfg.Finder.DetailsCacheTTL), google, nil, finder.PolicyFromConfig(cfg.Finder))

	m := session.ParseMode(*mode)
	sess := session.New("cli", m, cfg.Finder.HistoryLimit)
	sess.SetActiveSearch(*query, m)

	res, err := svc.Search(ctx, sess, finder.SearchRequest{
		Query:        *query,
		Mode:         m,
		Autocomplete: *autocomplete,
	})
	if err != nil {
		return err
	}
	if *pick <= 0 {
		return printJSON(res)
	}

	if *pick > len(res.Results.Candidates) {
		return fmt.Errorf("only %d suggestions, cannot select #%d", len(res.Results.Candidates), *pick)
	}
	out, err := svc.Select(ctx, sess, res.Results.Candidates[*pick-1].PlaceID, m)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"search":  res,
		"outcome": out,
		"state":   sess.Snapshot(),
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
