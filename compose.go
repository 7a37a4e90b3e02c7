package bitmapist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/bitmapist/store"
)

// Op is a bitwise operation over bitmaps.
type Op uint8

const (
	And Op = iota + 1
	Or
	Xor
	Not
)

func (op Op) String() string {
	switch op {
	case And:
		return "AND"
	case Or:
		return "OR"
	case Xor:
		return "XOR"
	case Not:
		return "NOT"
	default:
		return fmt.Sprintf("Op(%d)", op)
	}
}

// keyName is the operation segment of a derived key. NOT is spelled "Not" to
// stay compatible with existing key layouts.
func (op Op) keyName() string {
	if op == Not {
		return "Not"
	}
	return op.String()
}

func (op Op) storeOp() store.BitOp {
	switch op {
	case Or:
		return store.Or
	case Xor:
		return store.Xor
	case Not:
		return store.Not
	default:
		return store.And
	}
}

func checkArity(op Op, n int) error {
	switch op {
	case Not:
		if n != 1 {
			return &OperandCountError{Op: op, Count: n}
		}
	case And, Or, Xor:
		if n < 1 {
			return &OperandCountError{Op: op, Count: n}
		}
	default:
		return fmt.Errorf("bitmapist: unknown operation %v", op)
	}
	return nil
}

// Compose applies op over operands and stores the result under a derived key
// that expires after the configured temp TTL. The derived key is a function of
// op and the operand keys in order, so repeating a composition overwrites the
// previous result and refreshes its TTL.
//
// NOT takes exactly one operand, the other operations at least one. Arity is
// checked before the store is contacted.
//
// The result width is the byte length of the longest operand; NOT therefore
// complements every bit up to the end of the operand's last byte.
func (b *Bitmapist) Compose(ctx context.Context, op Op, operands ...Bitmap) (*Handle, error) {
	if err := checkArity(op, len(operands)); err != nil {
		return nil, err
	}

	keys := make([]string, len(operands))
	for i, o := range operands {
		keys[i] = o.Key()
	}
	dest := b.keys.BitOpKey(op.keyName(), keys...)

	t0 := time.Now()
	err := b.store.BitOp(ctx, op.storeOp(), dest, keys...)
	if err == nil {
		if err = b.store.Expire(ctx, dest, b.tempTTL); err != nil {
			// A derived key must not outlive its TTL.
			if derr := b.store.Delete(ctx, dest); derr != nil {
				err = errors.Join(err, derr)
			}
		}
	}
	err = translateError(err)

	b.metrics.RecordCompose(op, len(operands), time.Since(t0), err)
	b.logger.WithKey(dest).LogCompose(ctx, op, len(operands), b.tempTTL, err)
	if err != nil {
		return nil, err
	}
	return b.handle(dest, true), nil
}

// And returns the intersection of the operands.
func (b *Bitmapist) And(ctx context.Context, operands ...Bitmap) (*Handle, error) {
	return b.Compose(ctx, And, operands...)
}

// Or returns the union of the operands.
func (b *Bitmapist) Or(ctx context.Context, operands ...Bitmap) (*Handle, error) {
	return b.Compose(ctx, Or, operands...)
}

// Xor returns the symmetric difference of the operands.
func (b *Bitmapist) Xor(ctx context.Context, operands ...Bitmap) (*Handle, error) {
	return b.Compose(ctx, Xor, operands...)
}

// Not returns the complement of operand.
func (b *Bitmapist) Not(ctx context.Context, operand Bitmap) (*Handle, error) {
	return b.Compose(ctx, Not, operand)
}

// Expr is a node of a bit operation tree. A leaf wraps an existing Bitmap, an
// inner node applies Op over its operands.
type Expr struct {
	Op       Op
	Operands []Expr
	Bitmap   Bitmap
}

// Leaf wraps a bitmap as an expression.
func Leaf(bm Bitmap) Expr {
	return Expr{Bitmap: bm}
}

// Apply builds an inner expression node.
func Apply(op Op, operands ...Expr) Expr {
	return Expr{Op: op, Operands: operands}
}

// IsLeaf reports whether e wraps a bitmap.
func (e Expr) IsLeaf() bool { return e.Bitmap != nil }

// Validate checks operand counts across the whole tree without touching the store.
func (e Expr) Validate() error {
	if e.IsLeaf() {
		return nil
	}
	if err := checkArity(e.Op, len(e.Operands)); err != nil {
		return err
	}
	for _, o := range e.Operands {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Eval materializes e bottom-up: every inner node is stored under its own
// derived key before it is used as an operand of its parent. A leaf evaluates
// to its bitmap.
func (b *Bitmapist) Eval(ctx context.Context, e Expr) (Bitmap, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return b.eval(ctx, e)
}

func (b *Bitmapist) eval(ctx context.Context, e Expr) (Bitmap, error) {
	if e.IsLeaf() {
		return e.Bitmap, nil
	}
	operands := make([]Bitmap, len(e.Operands))
	for i, o := range e.Operands {
		bm, err := b.eval(ctx, o)
		if err != nil {
			return nil, err
		}
		operands[i] = bm
	}
	return b.Compose(ctx, e.Op, operands...)
}
