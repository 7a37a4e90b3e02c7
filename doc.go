// Package bitmapist implements real-time, time-bucketed analytics on top of a
// bit-array store such as Redis.
//
// Every tracked subject is an integer identity used directly as a bit index.
// Events are recorded into hour, day, ISO week and month buckets; attributes are
// recorded into a single bitmap without a time dimension. Bitmaps can be combined
// with AND, OR, XOR and NOT into derived bitmaps that expire after a short TTL.
//
// It answers questions like:
//
//   - Has user 123 been online today? This week? This month?
//   - How many unique users performed action "X" this week?
//   - How many of the users active last month are still active?
//
// # Quick Start
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	bm := bitmapist.New(bmredis.New(client))
//
//	// Mark user 123 as active and as a paid user.
//	_ = bm.MarkEvent(ctx, "active", 123)
//	_ = bm.MarkAttribute(ctx, "paid_user", 123, 1)
//
//	// Has user 123 been active this month?
//	ok, _ := bm.MonthEvent("active", now).Contains(ctx, 123)
//
//	// How many users have been active this week?
//	n, _ := bm.WeekEvent("active", now).Count(ctx)
//
// # Bit Operations
//
// Operations return handles that can be nested:
//
//	both, _ := bm.And(ctx,
//	    bm.MonthEvent("active", lastMonth),
//	    bm.MonthEvent("active", now),
//	)
//	paid, _ := bm.And(ctx, both, bm.Attribute("paid_user"))
//
// The same tree can be built as an Expr and evaluated bottom-up with Eval.
//
// # Memory
//
// A bitmap is as long as its highest identity. Keep identities dense and small;
// ids around 2^32 cost 512MB per bitmap.
package bitmapist
