package cmd

import (
	"fmt"

	"github.com/habedi/microfeed/mutation"
	"github.com/habedi/microfeed/pkg/clierr"
	"github.com/habedi/microfeed/pkg/operations"
	"github.com/habedi/microfeed/pkg/pool"
	"github.com/habedi/microfeed/pkg/validation"
	"github.com/spf13/cobra"
)

// likeCmd builds "like" or "unlike".
func likeCmd(liked bool) *cobra.Command {
	var workers int
	use, short := "like", "Like posts"
	if !liked {
		use, short = "unlike", "Remove your like from posts"
	}

	cmd := &cobra.Command{
		Use:   use + " POST_ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			if err := checkBulkArgs("post", args, workers); err != nil {
				return err
			}
			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			acc := restoreFeed(ctx, a)
			likes := mutation.NewLikes(a.api, acc, nil)
			defer likes.Close()
			likes.Seed(acc.Items()...)

			bar := newProgressBar(cmd.ErrOrStderr(), len(args), use+"...")
			results := operations.SetLikes(ctx, likes, args, liked, workers, func() { _ = bar.Add(1) })
			_ = bar.Finish()

			if acc.Len() > 0 {
				saveCache(ctx, a, acc.Items())
			}
			for _, r := range results {
				if r.Err == nil {
					st := likes.State(r.Item)
					cmd.Printf("Post %s: %d likes\n", r.Item, st.Count)
				}
			}
			return bulkError(use, results)
		}),
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of requests to run at once")

	return cmd
}

// followCmd builds "follow" or "unfollow".
func followCmd(following bool) *cobra.Command {
	var workers int
	use, short := "follow", "Follow users"
	if !following {
		use, short = "unfollow", "Stop following users"
	}

	cmd := &cobra.Command{
		Use:   use + " USER_ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			if err := checkBulkArgs("user", args, workers); err != nil {
				return err
			}
			if _, err := a.requireSession(ctx); err != nil {
				return err
			}

			follows := mutation.NewFollows(a.api, nil)
			defer follows.Close()

			results := operations.SetFollows(ctx, follows, args, following, workers, nil)
			for _, r := range results {
				if r.Err != nil {
					continue
				}
				if follows.State(r.Item).Following {
					cmd.Printf("Following user %s\n", r.Item)
				} else {
					cmd.Printf("Not following user %s\n", r.Item)
				}
			}
			return bulkError(use, results)
		}),
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of requests to run at once")

	return cmd
}

func checkBulkArgs(kind string, ids []string, workers int) error {
	if err := validation.ValidateWorkerCount(workers); err != nil {
		return invalid(err)
	}
	for _, id := range ids {
		if err := validation.ValidateID(kind, id); err != nil {
			return invalid(err)
		}
	}
	return nil
}

// bulkError summarizes failed items. A single failure keeps its own classification.
func bulkError(action string, results []pool.Result[string]) error {
	failed := operations.Failed(results)
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return classify(fmt.Errorf("%s %s: %w", action, failed[0].Item, failed[0].Err))
	}
	first := classify(failed[0].Err).(*clierr.Error)
	msg := fmt.Sprintf("%d of %d %s requests failed; first (%s): %s", len(failed), len(results), action, failed[0].Item, first.Message)
	return clierr.New(first.Type, msg, failed[0].Err)
}
