package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pior/riak"
	"github.com/pior/riak/promexporter"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping every server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		start := time.Now()
		if err := client.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pong from %d server(s) in %s\n", len(loadedCfg.Servers), time.Since(start).Round(time.Microsecond))
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the node name and version of every server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		infos, err := client.ServerInfo(ctx)
		for addr, info := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", addr, info.Node, info.ServerVersion)
		}
		return err
	},
}

var getCmd = &cobra.Command{
	Use:   "get <bucket> <key>",
	Short: "Fetch a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		res, err := client.Fetch(ctx, riak.FetchOptions{BucketType: bucketType, Bucket: args[0], Key: args[1]})
		if err != nil {
			return err
		}
		if res.NotFound {
			return fmt.Errorf("%s/%s: not found", args[0], args[1])
		}

		out := cmd.OutOrStdout()
		if res.HasSiblings() {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d siblings\n", len(res.Objects))
		}
		for _, obj := range res.Objects {
			if _, err := out.Write(obj.Value); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var putContentType string

var putCmd = &cobra.Command{
	Use:   "put <bucket> <key> [value]",
	Short: "Store a value, read from stdin when omitted",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value []byte
		if len(args) == 3 {
			value = []byte(args[2])
		} else {
			var err error
			value, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()

		// fetch first so the store carries the current vclock
		current, err := client.Fetch(ctx, riak.FetchOptions{BucketType: bucketType, Bucket: args[0], Key: args[1], HeadOnly: true})
		if err != nil {
			return err
		}

		_, err = client.Store(ctx, riak.StoreOptions{
			BucketType:  bucketType,
			Bucket:      args[0],
			Key:         args[1],
			Value:       value,
			ContentType: putContentType,
			VClock:      current.VClock,
		})
		return err
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <bucket> <key>",
	Aliases: []string{"del"},
	Short:   "Delete a value",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		return client.Delete(ctx, riak.DeleteOptions{BucketType: bucketType, Bucket: args[0], Key: args[1]})
	},
}

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List buckets (expensive)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		out := cmd.OutOrStdout()
		_, err := client.ListBuckets(ctx, riak.ListBucketsOptions{
			BucketType: bucketType,
			Stream:     true,
			OnBuckets:  printLines(out),
		})
		return err
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys <bucket>",
	Short: "List the keys of a bucket (expensive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		out := cmd.OutOrStdout()
		_, err := client.ListKeys(ctx, riak.ListKeysOptions{
			BucketType: bucketType,
			Bucket:     args[0],
			OnKeys:     printLines(out),
		})
		return err
	},
}

var (
	metricsAddr     string
	metricsInterval time.Duration
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Ping the servers periodically and serve Prometheus metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		go func() {
			ticker := time.NewTicker(metricsInterval)
			defer ticker.Stop()
			for range ticker.C {
				ctx, cancel := requestContext(cmd)
				if err := client.Ping(ctx); err != nil {
					fmt.Fprintln(os.Stderr, "ping:", err)
				}
				cancel()
			}
		}()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promexporter.Handler(client))
		fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on http://%s/metrics\n", metricsAddr)
		return http.ListenAndServe(metricsAddr, mux)
	},
}

func init() {
	putCmd.Flags().StringVar(&putContentType, "content-type", riak.DefaultContentType, "content type of the value")

	metricsCmd.Flags().StringVar(&metricsAddr, "addr", "127.0.0.1:9187", "listen address")
	metricsCmd.Flags().DurationVar(&metricsInterval, "interval", 10*time.Second, "ping interval")
}

// printLines writes each chunk as it arrives. It runs on the connection's
// reader, writes to a terminal or pipe are short enough.
func printLines(out io.Writer) func([]string) {
	return func(lines []string) {
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}
}
