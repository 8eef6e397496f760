package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/urfave/cli/v3"

	"github.com/spacetime/pit-api/internal/cache/redisstore"
	"github.com/spacetime/pit-api/internal/core/config"
)

type checkResult struct {
	Name string
	Err  error
}

// checkCommand probes every backing service the API can be configured with.
func checkCommand() *cli.Command {
	env := config.FromEnv()
	return &cli.Command{
		Name:  "check",
		Usage: "Verify Elasticsearch, Redis and Kafka are reachable",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "redis", Usage: "Redis address; empty skips the check", Value: env.RedisAddr},
			&cli.StringFlag{Name: "brokers", Usage: "Kafka brokers; empty skips the check", Value: strings.Join(env.Invalidation.Brokers, ",")},
			&cli.StringFlag{Name: "topic", Usage: "Invalidation topic that must exist", Value: env.Invalidation.Topic},
			&cli.DurationFlag{Name: "timeout", Usage: "Timeout per check", Value: 5 * time.Second},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			timeout := c.Duration("timeout")
			results := []checkResult{{"elasticsearch", checkElastic(ctx, c, timeout)}}
			if addr := c.String("redis"); addr != "" {
				results = append(results, checkResult{"redis", checkRedis(ctx, addr, timeout)})
			}
			if brokers := splitList(c.String("brokers")); len(brokers) > 0 {
				results = append(results, checkResult{"kafka", checkKafka(brokers, c.String("topic"), timeout)})
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(c.Root().Writer, "%-14s FAIL %v\n", r.Name, r.Err)
					continue
				}
				fmt.Fprintf(c.Root().Writer, "%-14s ok\n", r.Name)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}

func checkElastic(ctx context.Context, c *cli.Command, timeout time.Duration) error {
	es, err := newElastic(c, cmdLogger(c))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return es.Ping(ctx)
}

func checkRedis(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	rc, err := redisstore.New(ctx, addr, redisstore.WithDialTimeout(timeout))
	if err != nil {
		return err
	}
	return rc.Close()
}

func checkKafka(brokers []string, topic string, timeout time.Duration) error {
	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = timeout
	cfg.Metadata.Retry.Max = 0
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = client.Close() }()

	if topic == "" {
		return nil
	}
	topics, err := client.Topics()
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if !slices.Contains(topics, topic) {
		return fmt.Errorf("topic %q not found", topic)
	}
	return nil
}
