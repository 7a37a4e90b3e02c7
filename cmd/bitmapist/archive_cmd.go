package main

import (
	"fmt"

	"github.com/hupe1980/bitmapist/archive"
	"github.com/spf13/cobra"
)

func newArchiveCmd(c *cli) *cobra.Command {
	var deleteSource bool

	cmd := &cobra.Command{
		Use:   "archive <pattern>...",
		Short: "Copy matching keys into the archive and write a manifest",
		Example: `  bitmapist archive 'trackist:ev:*:2023-*'
  bitmapist archive --delete 'trackist:ev:active:W2023-*'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var keys []string
			seen := make(map[string]struct{})
			for _, pattern := range args {
				matched, err := c.env.store.Keys(ctx, pattern)
				if err != nil {
					return err
				}
				for _, k := range matched {
					if _, dup := seen[k]; !dup {
						seen[k] = struct{}{}
						keys = append(keys, k)
					}
				}
			}
			if len(keys) == 0 {
				return fmt.Errorf("no keys match %v", args)
			}

			var opts []archive.Option
			if deleteSource {
				opts = append(opts, archive.WithDeleteSource())
			}
			a, err := c.env.archiver(ctx, opts...)
			if err != nil {
				return err
			}

			m, err := a.Archive(ctx, keys...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", m.ID, len(m.Entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteSource, "delete", false, "delete keys from Redis once archived")
	return cmd
}

func newRestoreCmd(c *cli) *cobra.Command {
	var manifest string

	cmd := &cobra.Command{
		Use:   "restore [key]...",
		Short: "Write archived bitmaps back to Redis",
		Example: `  bitmapist restore trackist:ev:active:2023-12
  bitmapist restore --manifest 0d4c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if manifest == "" && len(args) == 0 {
				return fmt.Errorf("give keys or --manifest")
			}

			a, err := c.env.archiver(ctx)
			if err != nil {
				return err
			}

			restored := 0
			if manifest != "" {
				n, err := a.RestoreManifest(ctx, manifest)
				if err != nil {
					return err
				}
				restored += n
			}
			for _, key := range args {
				if err := a.Restore(ctx, key); err != nil {
					return err
				}
				restored++
			}

			fmt.Fprintln(cmd.OutOrStdout(), restored)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", "", "restore every key of this manifest")
	return cmd
}

func newManifestsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "manifests",
		Short: "List archive manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.env.archiver(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := a.Manifests(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
