// Package taggedjson serializes value trees holding arbitrary-precision
// integers and raw byte buffers through plain JSON.
//
// Big integers travel as {"__type":"bigint","value":"<base 10>"} and byte
// buffers as {"__type":"Uint8Array","value":[0..255,...]}. Every other JSON
// value maps to its natural variant. Objects may not use the "__type" key
// for anything else.
package taggedjson

import (
	"bytes"
	"math/big"
)

const (
	TypeKey  = "__type"
	ValueKey = "value"

	TagBigInt = "bigint"
	TagBytes  = "Uint8Array"
)

// Value is one of Null, Bool, Number, String, BigInt, Bytes, Array or Object.
type Value interface {
	isValue()
}

type Null struct{}

type Bool bool

// Number keeps the JSON literal so nothing is lost to float64.
type Number string

type String string

type BigInt struct {
	Int *big.Int
}

type Bytes []byte

type Array []Value

type Object map[string]Value

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (BigInt) isValue() {}
func (Bytes) isValue()  {}
func (Array) isValue()  {}
func (Object) isValue() {}

// NewBigInt copies x so later mutations of x don't leak into the tree
func NewBigInt(x *big.Int) BigInt {
	return BigInt{Int: new(big.Int).Set(x)}
}

// Equal compares two trees value for value.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case BigInt:
		bv, ok := b.(BigInt)
		if !ok {
			return false
		}
		if av.Int == nil || bv.Int == nil {
			return av.Int == nil && bv.Int == nil
		}
		return av.Int.Cmp(bv.Int) == 0
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytes.Equal(av, bv)
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, found := bv[k]
			if !found || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}
