package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/draftkeeper/keeper"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored drafts, most recently written first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if opts.remote != "" {
				entries, err := keeper.NewClient(opts.remote, nil).List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			}
			k, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer k.Close()
			entries, err := k.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show KEY",
		Short: "Show the decoded fields of one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]

			var data string
			var maxAge time.Duration
			if opts.remote != "" {
				v, ok, err := keeper.NewClient(opts.remote, nil).Get(ctx, key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %q", keeper.ErrNotFound, key)
				}
				data = v
				cfg, err := opts.config()
				if err != nil {
					return err
				}
				maxAge = cfg.MaxAge
			} else {
				k, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer k.Close()
				if data, err = k.Raw(ctx, key); err != nil {
					return err
				}
				maxAge = k.Config().MaxAge
			}

			if raw {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), data)
				return err
			}
			if maxAge <= 0 {
				maxAge = 24 * time.Hour
			}
			view, err := keeper.NewDraftView(key, data, time.Now(), maxAge)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the stored snapshot text unchanged")
	return cmd
}

func newRmCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY...",
		Short: "Discard drafts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.remote != "" {
				c := keeper.NewClient(opts.remote, nil)
				for _, key := range args {
					if err := c.Delete(ctx, key); err != nil {
						return err
					}
				}
				return nil
			}
			k, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer k.Close()
			for _, key := range args {
				if err := k.Discard(ctx, key); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newPurgeCmd(opts *options) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete drafts captured longer ago than --older-than (default: max age)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.remote != "" {
				return fmt.Errorf("purge works on the local database only")
			}
			k, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer k.Close()
			n, err := k.Purge(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"purged": n})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age threshold such as 48h")
	return cmd
}
