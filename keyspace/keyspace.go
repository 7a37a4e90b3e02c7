// Package keyspace maps events, attributes and bit operations to store keys.
//
// Key layout (divider ":" and prefix "trackist" by default):
//
//	trackist:ev:<event>:<period>      event bucket
//	trackist:at:<attribute>           attribute
//	trackist:bitop:<OP>:<k1>-<k2>...  derived bit operation result
//
// Period tokens are not zero padded: "2012-10" (month), "W2012-48" (ISO week),
// "2012-10-23" (day) and "2012-10-23-13" (hour).
package keyspace

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultPrefix is the key prefix used when none is configured.
	DefaultPrefix = "trackist"
	// DefaultDivider separates key segments.
	DefaultDivider = ":"

	eventTag = "ev"
	attrTag  = "at"
	bitOpTag = "bitop"

	// OperandSeparator joins operand keys in a derived key.
	OperandSeparator = "-"
)

// Granularity is the calendar resolution of an event bucket.
type Granularity uint8

const (
	Hour Granularity = iota + 1
	Day
	Week
	Month
)

// Granularities lists every granularity from coarsest to finest, the order
// in which buckets are marked.
var Granularities = []Granularity{Month, Week, Day, Hour}

func (g Granularity) String() string {
	switch g {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return fmt.Sprintf("Granularity(%d)", g)
	}
}

// ParseGranularity parses "hour", "day", "week" or "month".
func ParseGranularity(s string) (Granularity, error) {
	for _, g := range Granularities {
		if strings.EqualFold(s, g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("keyspace: unknown granularity %q", s)
}

// Period is one calendar bucket of a given granularity.
type Period struct {
	Granularity Granularity
	Year        int // ISO week-year for Week
	Month       time.Month
	Week        int
	Day         int
	Hour        int
}

// PeriodOf returns the bucket of granularity g containing t. t is used in its
// own location; callers normalise to UTC when they need to.
func PeriodOf(g Granularity, t time.Time) Period {
	switch g {
	case Week:
		y, w := t.ISOWeek()
		return Period{Granularity: Week, Year: y, Week: w}
	case Month:
		return Period{Granularity: Month, Year: t.Year(), Month: t.Month()}
	case Day:
		return Period{Granularity: Day, Year: t.Year(), Month: t.Month(), Day: t.Day()}
	default:
		return Period{Granularity: Hour, Year: t.Year(), Month: t.Month(), Day: t.Day(), Hour: t.Hour()}
	}
}

// Token renders the period segment of an event key.
func (p Period) Token() string {
	switch p.Granularity {
	case Week:
		return fmt.Sprintf("W%d-%d", p.Year, p.Week)
	case Month:
		return fmt.Sprintf("%d-%d", p.Year, int(p.Month))
	case Day:
		return fmt.Sprintf("%d-%d-%d", p.Year, int(p.Month), p.Day)
	default:
		return fmt.Sprintf("%d-%d-%d-%d", p.Year, int(p.Month), p.Day, p.Hour)
	}
}

// KeySpace builds keys for one prefix/divider pair.
type KeySpace struct {
	Prefix  string
	Divider string
}

// New returns a KeySpace, falling back to the defaults for empty arguments.
func New(prefix, divider string) KeySpace {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if divider == "" {
		divider = DefaultDivider
	}
	return KeySpace{Prefix: prefix, Divider: divider}
}

func (ks KeySpace) join(parts ...string) string {
	return strings.Join(parts, ks.Divider)
}

// EventKey returns the key of the event bucket for period p.
func (ks KeySpace) EventKey(name string, p Period) string {
	return ks.join(ks.Prefix, eventTag, name, p.Token())
}

// AttributeKey returns the key of an attribute bitmap.
func (ks KeySpace) AttributeKey(name string) string {
	return ks.join(ks.Prefix, attrTag, name)
}

// BitOpKey returns the derived key for op over operand keys, in order.
func (ks KeySpace) BitOpKey(op string, operands ...string) string {
	return ks.join(ks.Prefix, bitOpTag, op, strings.Join(operands, OperandSeparator))
}

// AllPattern matches every key under the prefix.
func (ks KeySpace) AllPattern() string {
	return ks.Prefix + ks.Divider + "*"
}

// EventPattern matches every event bucket key.
func (ks KeySpace) EventPattern() string {
	return ks.join(ks.Prefix, eventTag, "*")
}

// AttributePattern matches every attribute key.
func (ks KeySpace) AttributePattern() string {
	return ks.join(ks.Prefix, attrTag, "*")
}

// BitOpPattern matches every derived bit operation key.
func (ks KeySpace) BitOpPattern() string {
	return ks.join(ks.Prefix, bitOpTag, "*")
}

// EventNames extracts the distinct event names from keys. Only week buckets are
// considered, every marked event is assumed to have one.
func (ks KeySpace) EventNames(keys []string) []string {
	d := regexp.QuoteMeta(ks.Divider)
	re := regexp.MustCompile(d + eventTag + d + `(.*)` + d + `W\d+-\d+`)
	return extractNames(re, keys)
}

// AttributeNames extracts the distinct attribute names from keys.
func (ks KeySpace) AttributeNames(keys []string) []string {
	d := regexp.QuoteMeta(ks.Divider)
	re := regexp.MustCompile(d + attrTag + d + `(.*)`)
	return extractNames(re, keys)
}

func extractNames(re *regexp.Regexp, keys []string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, k := range keys {
		m := re.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}
