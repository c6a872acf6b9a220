package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/habedi/microfeed/client"
	"github.com/habedi/microfeed/feed"
	"github.com/habedi/microfeed/mutation"
	"github.com/habedi/microfeed/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create, edit and delete posts",
	}

	cmd.AddCommand(
		postShowCmd(),
		postCreateCmd(),
		postEditCmd(),
		postDeleteCmd(),
	)

	return cmd
}

func postShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			id := args[0]
			if err := validation.ValidateID("post", id); err != nil {
				return invalid(err)
			}
			p, err := a.api.GetPost(ctx, id)
			var netErr *client.NetworkError
			if errors.As(err, &netErr) && a.cache != nil {
				if cached, ok, cerr := a.cache.Get(ctx, id); cerr == nil && ok {
					log.Warn().Err(err).Msg("Server unreachable, showing the cached copy")
					cmd.Println("(cached copy)")
					p, err = cached, nil
				}
			}
			if err != nil {
				return err
			}
			renderPost(cmd.OutOrStdout(), p)
			return nil
		}),
	}
}

func postCreateCmd() *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "create TEXT...",
		Short: "Publish a new post",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			in := client.PostInput{Text: strings.Join(args, " ")}
			if err := validation.ValidatePostContent(in.Text); err != nil {
				return invalid(err)
			}
			sess, err := a.requireSession(ctx)
			if err != nil {
				return err
			}
			if image != "" {
				up, err := a.uploader(ctx)
				if err != nil {
					return invalid(err)
				}
				if in.Image, err = up.UploadFile(ctx, image); err != nil {
					return err
				}
			}

			var author client.Author
			if sess.User != nil {
				author = client.Author{ID: sess.User.ID, Username: sess.User.Username}
			}
			acc := restoreFeed(ctx, a)
			editor := mutation.NewPostEditor(a.api, acc)
			defer editor.Close()

			created, err := editor.Create(ctx, author, in)
			if err != nil {
				return err
			}
			saveCache(ctx, a, acc.Items())
			cmd.Printf("Published post %s.\n", created.ID)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&image, "image", "i", "", "Path of an image to attach")

	return cmd
}

func postEditCmd() *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "edit ID TEXT...",
		Short: "Change the text of a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			id := args[0]
			in := client.PostInput{Text: strings.Join(args[1:], " ")}
			if err := validation.ValidateID("post", id); err != nil {
				return invalid(err)
			}
			if err := validation.ValidatePostContent(in.Text); err != nil {
				return invalid(err)
			}
			if _, err := a.requireSession(ctx); err != nil {
				return err
			}
			if image != "" {
				up, err := a.uploader(ctx)
				if err != nil {
					return invalid(err)
				}
				if in.Image, err = up.UploadFile(ctx, image); err != nil {
					return err
				}
			}

			acc, err := feedWithPost(ctx, a, id)
			if err != nil {
				return err
			}
			editor := mutation.NewPostEditor(a.api, acc)
			defer editor.Close()

			updated, err := editor.Edit(ctx, id, in)
			if err != nil {
				return err
			}
			if a.cache != nil {
				if err := a.cache.Put(ctx, updated); err != nil {
					log.Warn().Err(err).Msg("Failed to update the cached post")
				}
			}
			renderPost(cmd.OutOrStdout(), updated)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&image, "image", "i", "", "Path of an image to attach")

	return cmd
}

func postDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			ctx := cmd.Context()
			id := args[0]
			if err := validation.ValidateID("post", id); err != nil {
				return invalid(err)
			}
			if _, err := a.requireSession(ctx); err != nil {
				return err
			}
			acc, err := feedWithPost(ctx, a, id)
			if err != nil {
				return err
			}
			editor := mutation.NewPostEditor(a.api, acc)
			defer editor.Close()

			if err := editor.Delete(ctx, id); err != nil {
				return err
			}
			if a.cache != nil {
				if err := a.cache.Delete(ctx, id); err != nil {
					log.Warn().Err(err).Msg("Failed to drop the cached post")
				}
			}
			cmd.Printf("Deleted post %s.\n", id)
			return nil
		}),
	}
}

// restoreFeed returns the cached feed window, or an empty one.
func restoreFeed(ctx context.Context, a *app) *feed.Accumulator {
	acc := feed.NewAccumulator()
	if a.cache != nil {
		if err := a.cache.Restore(ctx, acc); err != nil {
			log.Warn().Err(err).Msg("Failed to restore the cached feed")
		}
	}
	return acc
}

// feedWithPost returns the cached feed with post id in it, fetching the post
// when it is not cached.
func feedWithPost(ctx context.Context, a *app, id string) (*feed.Accumulator, error) {
	acc := restoreFeed(ctx, a)
	if _, ok := acc.Get(id); ok {
		return acc, nil
	}
	p, err := a.api.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	acc.Prepend(p)
	return acc, nil
}
