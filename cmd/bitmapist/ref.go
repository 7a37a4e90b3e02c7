package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/bitmapist"
	"github.com/hupe1980/bitmapist/keyspace"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15",
	"2006-01-02",
	"2006-01",
}

// parseTime accepts RFC 3339 and its truncated forms, always in UTC.
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339 or YYYY-MM-DD[THH]", s)
}

// resolveRef turns a bitmap reference into a handle:
//
//	ev:<name>:<granularity>[@<time>]
//	at:<name>
//	key:<raw key>
func resolveRef(bm *bitmapist.Bitmapist, ref string, now time.Time) (*bitmapist.Handle, error) {
	kind, rest, ok := strings.Cut(ref, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("invalid bitmap reference %q", ref)
	}

	switch kind {
	case "at":
		return bm.Attribute(rest), nil
	case "key":
		return bitmapist.NewHandle(bm.Store(), rest), nil
	case "ev":
		t := now
		if i := strings.LastIndex(rest, "@"); i >= 0 {
			var err error
			if t, err = parseTime(rest[i+1:]); err != nil {
				return nil, err
			}
			rest = rest[:i]
		}

		i := strings.LastIndex(rest, ":")
		if i <= 0 {
			return nil, fmt.Errorf("invalid event reference %q, want ev:<name>:<granularity>", ref)
		}
		g, err := keyspace.ParseGranularity(rest[i+1:])
		if err != nil {
			return nil, err
		}
		return bm.Event(rest[:i], g, t), nil
	default:
		return nil, fmt.Errorf("unknown bitmap reference kind %q", kind)
	}
}
