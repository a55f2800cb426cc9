package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/mywi/internal/crawl"
	dbcmd "github.com/dtnitsch/mywi/internal/db"
	"github.com/dtnitsch/mywi/internal/land"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func landFlag() cli.Flag {
	return &cli.StringFlag{Name: "land", Aliases: []string{"l"}, Usage: "land id or name", Required: true}
}

func frontierFlags() []cli.Flag {
	return []cli.Flag{
		landFlag(),
		&cli.IntFlag{Name: "limit", Usage: "maximum expressions to process (0 = all)"},
		&cli.IntFlag{Name: "http", Usage: "only expressions whose last http status is this value"},
		&cli.IntFlag{Name: "depth", Usage: "only expressions at this depth"},
	}
}

func newApp() *cli.App {
	crawlFlags := append(frontierFlags(),
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "concurrent extractions (overrides config)"},
		&cli.BoolFlag{Name: "confirm-llm", Usage: "ask the configured model to confirm relevant pages"},
	)

	return &cli.App{
		Name:    "mywi",
		Usage:   "crawl, score and consolidate research lands",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file", EnvVars: []string{"MYWI_CONFIG"}},
			&cli.StringFlag{Name: "db", Usage: "database path or postgres:// url (overrides config)"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve prometheus metrics on this address"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log errors"},
			&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:  "land",
				Usage: "manage lands",
				Subcommands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "create a land",
						Action: land.CreateAction,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringFlag{Name: "desc"},
							&cli.StringFlag{Name: "lang", Value: "fr", Usage: "comma separated language codes, first is primary"},
							&cli.IntFlag{Name: "depth", Value: 2, Usage: "maximum crawl depth"},
							&cli.IntFlag{Name: "size", Usage: "maximum expressions (0 = unbounded)"},
						},
					},
					{
						Name:   "list",
						Usage:  "list lands",
						Action: land.ListAction,
					},
					{
						Name:      "show",
						Usage:     "show a land with its dictionary and counts",
						ArgsUsage: "<id|name>",
						Action:    land.ShowAction,
						Flags:     []cli.Flag{&cli.StringFlag{Name: "land", Aliases: []string{"l"}}},
					},
					{
						Name:   "addterm",
						Usage:  "add terms to the land dictionary",
						Action: land.AddTermAction,
						Flags: []cli.Flag{
							landFlag(),
							&cli.StringFlag{Name: "terms", Required: true, Usage: "comma separated terms"},
							&cli.Float64Flag{Name: "weight", Value: 1, Usage: "term weight"},
						},
					},
					{
						Name:   "addurl",
						Usage:  "add seed urls",
						Action: land.AddURLAction,
						Flags: []cli.Flag{
							landFlag(),
							&cli.StringFlag{Name: "urls", Usage: "comma separated urls"},
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "file with one url per line (- for stdin)"},
						},
					},
				},
			},
			{
				Name:   "crawl",
				Usage:  "extract and score pending expressions of a land",
				Action: crawl.CrawlAction,
				Flags:  crawlFlags,
			},
			{
				Name:   "consolidate",
				Usage:  "re-extract approved relevant expressions and merge the results",
				Action: crawl.ConsolidateAction,
				Flags: []cli.Flag{
					landFlag(),
					&cli.StringFlag{Name: "strategy", Usage: "preserve_existing, mercury_priority or smart_merge"},
					&cli.IntFlag{Name: "limit"},
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}},
				},
			},
			{
				Name:   "domains",
				Usage:  "fetch home page metadata for unfetched domains",
				Action: crawl.DomainsAction,
				Flags:  []cli.Flag{landFlag(), &cli.IntFlag{Name: "limit"}},
			},
			{
				Name:   "watch",
				Usage:  "crawl a land on a schedule",
				Action: crawl.WatchAction,
				Flags: append(crawlFlags,
					&cli.StringFlag{Name: "schedule", Value: "@every 1h", Usage: "cron expression or descriptor"},
					&cli.BoolFlag{Name: "now", Usage: "also crawl immediately"},
					&cli.BoolFlag{Name: "domains", Usage: "crawl domains after each run"},
				),
			},
			{
				Name:   "capabilities",
				Usage:  "show which optional integrations are available",
				Action: crawl.CapabilitiesAction,
			},
			{
				Name:  "db",
				Usage: "inspect stored data",
				Subcommands: []*cli.Command{
					{
						Name:   "frontier",
						Usage:  "list pending expressions in crawl order",
						Action: dbcmd.FrontierAction,
						Flags:  frontierFlags(),
					},
					{
						Name:   "expressions",
						Usage:  "list evaluated expressions by relevance",
						Action: dbcmd.ExpressionsAction,
						Flags: []cli.Flag{
							landFlag(),
							&cli.IntFlag{Name: "limit", Value: 50},
							&cli.Float64Flag{Name: "min-relevance"},
							&cli.BoolFlag{Name: "all", Usage: "include irrelevant expressions"},
						},
					},
					{
						Name:      "expression",
						Usage:     "show one expression",
						ArgsUsage: "<id>",
						Action:    dbcmd.ExpressionAction,
						Flags:     []cli.Flag{&cli.BoolFlag{Name: "readable", Usage: "include readable content"}},
					},
					{
						Name:   "domains",
						Usage:  "list domains",
						Action: dbcmd.DomainsAction,
						Flags:  []cli.Flag{landFlag()},
					},
					{
						Name:   "runs",
						Usage:  "list recorded runs",
						Action: dbcmd.RunsAction,
						Flags:  []cli.Flag{landFlag(), &cli.IntFlag{Name: "limit", Value: 20}},
					},
				},
			},
		},
	}
}
