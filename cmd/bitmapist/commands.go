package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/bitmapist"
	"github.com/hupe1980/bitmapist/keyspace"
	"github.com/spf13/cobra"
)

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func newMarkCmd(c *cli) *cobra.Command {
	var (
		at            string
		granularities []string
	)

	cmd := &cobra.Command{
		Use:   "mark <event> <id>",
		Short: "Mark an event for an id in every time bucket",
		Example: `  bitmapist mark active 123
  bitmapist mark signup 42 --at 2024-03-13T14:30:00Z --granularity month,week`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}

			var opts []bitmapist.MarkOption
			if at != "" {
				t, err := parseTime(at)
				if err != nil {
					return err
				}
				opts = append(opts, bitmapist.At(t))
			}
			if len(granularities) > 0 {
				gs := make([]keyspace.Granularity, 0, len(granularities))
				for _, s := range granularities {
					g, err := keyspace.ParseGranularity(s)
					if err != nil {
						return err
					}
					gs = append(gs, g)
				}
				opts = append(opts, bitmapist.WithGranularities(gs...))
			}

			return c.env.bm.MarkEvent(cmd.Context(), args[0], id, opts...)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default now)")
	cmd.Flags().StringSliceVar(&granularities, "granularity", nil, "buckets to mark: month, week, day, hour (default all)")
	return cmd
}

func newMarkAttrCmd(c *cli) *cobra.Command {
	var value int

	cmd := &cobra.Command{
		Use:   "mark-attr <attribute> <id>...",
		Short: "Set or clear an attribute for one or more ids",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint64, 0, len(args)-1)
			for _, s := range args[1:] {
				id, err := parseID(s)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			if len(ids) == 1 {
				return c.env.bm.MarkAttribute(cmd.Context(), args[0], ids[0], value)
			}
			return c.env.bm.MarkAttributeMulti(cmd.Context(), args[0], ids, value)
		},
	}

	cmd.Flags().IntVar(&value, "value", 1, "bit value, 0 or 1")
	return cmd
}

func newCountCmd(c *cli) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "count <bitmap>",
		Short: "Count the ids in a bitmap, optionally within a bit range",
		Example: `  bitmapist count ev:active:month@2024-03
  bitmapist count at:paid_user --start 1000 --end -1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := resolveRef(c.env.bm, args[0], time.Now().UTC())
			if err != nil {
				return err
			}

			var n int64
			if start == "" && end == "" {
				n, err = h.Count(cmd.Context())
			} else {
				var s, e *int64
				if s, err = optionalBit(start); err != nil {
					return err
				}
				if e, err = optionalBit(end); err != nil {
					return err
				}
				n, err = h.CountRange(cmd.Context(), s, e)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first bit of the range, negative counts from the end")
	cmd.Flags().StringVar(&end, "end", "", "last bit of the range, negative counts from the end")
	return cmd
}

func optionalBit(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid bit index %q: %w", s, err)
	}
	return bitmapist.Bit(v), nil
}

func newContainsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "contains <bitmap> <id>",
		Short: "Report whether an id is in a bitmap",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := resolveRef(c.env.bm, args[0], time.Now().UTC())
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}

			ok, err := h.Contains(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

var opNames = map[string]bitmapist.Op{
	"and": bitmapist.And,
	"or":  bitmapist.Or,
	"xor": bitmapist.Xor,
	"not": bitmapist.Not,
}

func newOpCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "op <and|or|xor|not> <bitmap>...",
		Short: "Combine bitmaps into a temporary derived key and count it",
		Example: `  bitmapist op and ev:active:month@2024-03 at:paid_user
  bitmapist op not ev:active:week`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, ok := opNames[strings.ToLower(args[0])]
			if !ok {
				return fmt.Errorf("unknown operation %q", args[0])
			}

			now := time.Now().UTC()
			operands := make([]bitmapist.Bitmap, 0, len(args)-1)
			for _, ref := range args[1:] {
				h, err := resolveRef(c.env.bm, ref, now)
				if err != nil {
					return err
				}
				operands = append(operands, h)
			}

			derived, err := c.env.bm.Compose(cmd.Context(), op, operands...)
			if err != nil {
				return err
			}
			n, err := derived.Count(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", derived.Key(), n)
			return nil
		},
	}
}

func newNamesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "names <events|attributes>",
		Short:     "List tracked event or attribute names",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"events", "attributes"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				names []string
				err   error
			)
			switch args[0] {
			case "events":
				names, err = c.env.bm.EventNames(cmd.Context())
			case "attributes":
				names, err = c.env.bm.AttributeNames(cmd.Context())
			default:
				return fmt.Errorf("unknown kind %q, want events or attributes", args[0])
			}
			if err != nil {
				return err
			}

			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "delete <all|events|attributes|temp>",
		Short:     "Delete tracked bitmaps",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"all", "events", "attributes", "temp"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch args[0] {
			case "all":
				return c.env.bm.DeleteAll(ctx)
			case "events":
				return c.env.bm.DeleteAllEvents(ctx)
			case "attributes":
				return c.env.bm.DeleteAllAttributes(ctx)
			case "temp":
				return c.env.bm.DeleteTemporaryBitOpKeys(ctx)
			default:
				return fmt.Errorf("unknown scope %q", args[0])
			}
		},
	}
}
