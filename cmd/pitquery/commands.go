package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/filter"
	"github.com/spacetime/pit-api/internal/core/geojson"
	"github.com/spacetime/pit-api/internal/core/httpclient"
	"github.com/spacetime/pit-api/internal/core/pit"
	"github.com/spacetime/pit-api/internal/core/query"
	"github.com/spacetime/pit-api/internal/core/search"
	"github.com/spacetime/pit-api/internal/core/urn"
	"github.com/spacetime/pit-api/internal/invalidation"
	"github.com/spacetime/pit-api/internal/invalidation/publisher"
	"github.com/spacetime/pit-api/internal/logger"
)

var filterStringFlags = []string{
	"name", "dataset", "type", "before", "after",
	"geometry", "geometry-operation", "contains", "intersects",
}

func newApp() *cli.Command {
	env := config.FromEnv()
	return &cli.Command{
		Name:  "pitquery",
		Usage: "Translate and run PIT searches against Elasticsearch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "es-url",
				Usage: "Elasticsearch URLs, comma separated",
				Value: strings.Join(env.ElasticURLs, ","),
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Index holding the PITs",
				Value: env.ElasticIndex,
			},
			&cli.StringFlag{
				Name:  "id-policy",
				Usage: "Identifier policy for features (plain|urn)",
				Value: env.IDPolicy,
			},
			&cli.StringFlag{
				Name:  "urn-base-url",
				Usage: "Base URL for expanded identifiers",
				Value: env.URNBaseURL,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			translateCommand(),
			searchCommand(),
			getCommand(),
			invalidateCommand(),
			checkCommand(),
		},
	}
}

func filterFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(filterStringFlags)+2)
	for _, name := range filterStringFlags {
		flags = append(flags, &cli.StringFlag{Name: name, Usage: "filter parameter " + name})
	}
	return append(flags,
		&cli.IntFlag{Name: "size", Usage: "Maximum number of results", Value: filter.DefaultSize},
		&cli.IntFlag{Name: "from", Usage: "Offset of the first result"},
	)
}

// filterParams collects the flags the user set, keyed like the HTTP parameters
func filterParams(c *cli.Command) map[string]string {
	params := map[string]string{}
	for _, name := range filterStringFlags {
		if c.IsSet(name) {
			params[name] = c.String(name)
		}
	}
	for _, name := range []string{"size", "from"} {
		if c.IsSet(name) {
			params[name] = strconv.Itoa(c.Int(name))
		}
	}
	return params
}

func translateCommand() *cli.Command {
	return &cli.Command{
		Name:  "translate",
		Usage: "Print the Elasticsearch query for a filter set",
		Flags: filterFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			f, warn, err := filter.Parse(filterParams(c))
			if err != nil {
				return err
			}
			if warn != "" {
				fmt.Fprintln(c.Root().ErrWriter, "warning:", warn)
			}
			return printJSON(c.Root().Writer, query.Build(f))
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Run a filter set and print the FeatureCollection",
		Flags: filterFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			f, warn, err := filter.Parse(filterParams(c))
			if err != nil {
				return err
			}
			if warn != "" {
				fmt.Fprintln(c.Root().ErrWriter, "warning:", warn)
			}
			svc, err := newService(c)
			if err != nil {
				return err
			}
			if f.Lookup != nil {
				feat, err := svc.Lookup(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(c.Root().Writer, feat)
			}
			fc, total, err := svc.Search(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().ErrWriter, "total: %d\n", total)
			return printJSON(c.Root().Writer, fc)
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print one PIT by dataset and object id",
		ArgsUsage: "<datasetId> <objectId>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("get: expected <datasetId> <objectId>, got %d arguments", c.Args().Len())
			}
			f, _, err := filter.Parse(map[string]string{
				"datasetId": c.Args().Get(0),
				"objectId":  c.Args().Get(1),
			})
			if err != nil {
				return err
			}
			svc, err := newService(c)
			if err != nil {
				return err
			}
			feat, err := svc.Lookup(ctx, f)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, feat)
		},
	}
}

func invalidateCommand() *cli.Command {
	env := config.FromEnv()
	return &cli.Command{
		Name:      "invalidate",
		Usage:     "Announce a dataset change so API caches drop its results",
		ArgsUsage: "<datasetId>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "brokers", Usage: "Kafka brokers, comma separated", Value: strings.Join(env.Invalidation.Brokers, ",")},
			&cli.StringFlag{Name: "topic", Usage: "Invalidation topic", Value: env.Invalidation.Topic},
			&cli.StringFlag{Name: "op", Usage: "Change kind (reindex|update|delete)", Value: invalidation.OpReindex},
			&cli.IntFlag{Name: "seq", Usage: "Per-dataset sequence number; 0 disables de-duplication"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("invalidate: expected <datasetId>, got %d arguments", c.Args().Len())
			}
			seq := c.Int("seq")
			if seq < 0 {
				return fmt.Errorf("invalidate: seq must be >= 0")
			}
			ev := invalidation.Event{
				Version: 1,
				Op:      c.String("op"),
				Dataset: c.Args().Get(0),
				TS:      time.Now().UTC(),
				Seq:     uint64(seq),
			}
			if err := ev.Validate(); err != nil {
				return fmt.Errorf("invalidate: %w", err)
			}
			pub, err := publisher.New(splitList(c.String("brokers")), c.String("topic"))
			if err != nil {
				return err
			}
			defer func() { _ = pub.Close() }()

			part, off, err := pub.Publish(ctx, ev)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "published %s %s (partition %d, offset %d)\n", ev.Op, ev.Dataset, part, off)
			return nil
		},
	}
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cmdLogger(c *cli.Command) *slog.Logger {
	root := c.Root()
	level := "warn"
	if root.Bool("debug") {
		level = "debug"
	}
	return logger.New(logger.Config{Level: level, Console: true, Component: "pitquery"}, root.ErrWriter)
}

func newElastic(c *cli.Command, log *slog.Logger) (*search.Elastic, error) {
	env := config.FromEnv()
	return search.NewElastic(log, httpclient.NewOutbound(env.SearchTimeout, 4), search.ElasticConfig{
		Addresses: splitList(c.Root().String("es-url")),
		Username:  env.ElasticUsername,
		Password:  env.ElasticPassword,
		Timeout:   env.SearchTimeout,
	})
}

func newService(c *cli.Command) (*pit.Service, error) {
	root := c.Root()
	log := cmdLogger(c)
	es, err := newElastic(c, log)
	if err != nil {
		return nil, err
	}

	policy, err := geojson.ParsePolicy(root.String("id-policy"))
	if err != nil {
		return nil, err
	}
	var exp geojson.Expander
	if policy == geojson.PolicyURN {
		e, err := urn.New(root.String("urn-base-url"))
		if err != nil {
			return nil, err
		}
		exp = e
	}
	proj, err := geojson.NewProjector(policy, exp)
	if err != nil {
		return nil, err
	}
	return pit.New(log, es, proj, root.String("index"))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
