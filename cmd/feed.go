package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/feed"
	"github.com/habedi/microfeed/live"
	"github.com/habedi/microfeed/pkg/clierr"
	"github.com/habedi/microfeed/pkg/metrics"
	"github.com/habedi/microfeed/pkg/operations"
	"github.com/habedi/microfeed/pkg/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func feedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Read the feed",
	}

	cmd.AddCommand(
		feedListCmd(),
		feedWatchCmd(),
		feedExportCmd(),
		feedVerifyCmd(),
	)

	return cmd
}

func feedListCmd() *cobra.Command {
	var pages int
	var cached bool
	var username string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the newest posts",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			if username != "" {
				return showProfile(cmd, a, username)
			}
			if err := validation.ValidatePageCount(pages); err != nil {
				return invalid(err)
			}

			var posts []client.Post
			if cached {
				if a.cache == nil {
					return clierr.New(clierr.Validation, "The memory backend keeps no cache.", nil)
				}
				var err error
				if posts, err = a.cache.Load(ctx); err != nil {
					return err
				}
			} else {
				acc, err := loadFeed(ctx, a, pages)
				if err != nil {
					return err
				}
				posts = acc.Items()
				if !acc.Done() {
					defer cmd.Println("More posts are available, use --pages to load them.")
				}
			}

			if len(posts) == 0 {
				cmd.Println("The feed is empty.")
				return nil
			}
			renderPosts(cmd.OutOrStdout(), posts)
			return nil
		}),
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().BoolVarP(&cached, "cached", "c", false, "Show the cached feed without contacting the server")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Show the profile and posts of this user instead")

	return cmd
}

// loadFeed loads pages into a fresh accumulator and caches the result.
func loadFeed(ctx context.Context, a *app, pages int) (*feed.Accumulator, error) {
	if _, err := a.requireSession(ctx); err != nil {
		return nil, err
	}
	loader := feed.NewLoader(a.api, feed.NewAccumulator())
	if err := loader.LoadPages(ctx, pages); err != nil {
		return nil, err
	}
	acc := loader.Accumulator()
	saveCache(ctx, a, acc.Items())
	return acc, nil
}

func saveCache(ctx context.Context, a *app, posts []client.Post) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Save(ctx, posts); err != nil {
		log.Warn().Err(err).Msg("Failed to cache the feed")
	}
}

func showProfile(cmd *cobra.Command, a *app, username string) error {
	if err := validation.ValidateNonEmptyString("username", username); err != nil {
		return invalid(err)
	}
	profile, err := a.api.FetchProfile(cmd.Context(), username)
	if err != nil {
		return err
	}
	follow := "not following"
	if profile.IsFollowing {
		follow = "following"
	}
	cmd.Printf("@%s (user %s, %s)\n", profile.User.Username, profile.User.ID, follow)
	if len(profile.Posts) == 0 {
		cmd.Println("No posts yet.")
		return nil
	}
	renderPosts(cmd.OutOrStdout(), profile.Posts)
	return nil
}

func feedWatchCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the feed and follow new posts as they are published",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			if metricsAddr == "" {
				metricsAddr = a.cfg.MetricsAddr
			}
			if metricsAddr != "" {
				stop := serveMetrics(metricsAddr)
				defer stop()
			}

			acc, err := loadFeed(ctx, a, 1)
			if err != nil {
				return err
			}
			renderPosts(cmd.OutOrStdout(), acc.Items())
			cmd.Println("Waiting for new posts, press Ctrl+C to stop.")

			sub := live.NewSubscriber(a.cfg.API.LiveURL, a.svc.CurrentAccessToken)
			err = sub.Run(ctx, func(p client.Post) {
				if acc.Prepend(p) == 0 {
					return
				}
				renderPost(cmd.OutOrStdout(), p)
			})
			// ctx is done here; the cache still has to be written.
			saveCache(context.WithoutCancel(ctx), a, acc.Items())
			return err
		}),
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

// serveMetrics exposes the client counters and returns a function that stops the server.
func serveMetrics(addr string) func() {
	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func feedExportCmd() *cobra.Command {
	var pages int
	var cached bool
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the feed to a JSON lines file with a checksum",
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			if err := validation.ValidatePageCount(pages); err != nil {
				return invalid(err)
			}
			if err := validation.ValidateNonEmptyString("output", out); err != nil {
				return invalid(err)
			}

			var posts []client.Post
			if cached && a.cache != nil {
				var err error
				if posts, err = a.cache.Load(ctx); err != nil {
					return err
				}
			} else {
				acc, err := loadFeed(ctx, a, pages)
				if err != nil {
					return err
				}
				posts = acc.Items()
			}

			bar := newProgressBar(cmd.ErrOrStderr(), len(posts), "Exporting posts...")
			res, err := operations.ExportFeed(ctx, posts, out, func() { _ = bar.Add(1) })
			_ = bar.Finish()
			if err != nil {
				return err
			}
			cmd.Printf("Exported %d posts to %s\n%s  %s\n", res.Count, res.Path, res.Checksum, operations.ChecksumPath(res.Path))
			return nil
		}),
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "Number of pages to load")
	cmd.Flags().BoolVarP(&cached, "cached", "c", false, "Export the cached feed instead of loading it")
	cmd.Flags().StringVarP(&out, "output", "o", "feed.jsonl", "File to write")

	return cmd
}

func feedVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify FILE",
		Short: "Check an exported feed against its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := operations.VerifyExport(args[0])
			if err != nil {
				return classify(err)
			}
			if !ok {
				return clierr.New(clierr.Validation, fmt.Sprintf("%s does not match its checksum.", args[0]), nil)
			}
			cmd.Printf("%s: OK\n", args[0])
			return nil
		},
	}
}
