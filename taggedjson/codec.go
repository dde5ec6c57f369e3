package taggedjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
)

var (
	ErrReservedKey  = errors.New("taggedjson: object uses reserved key " + TypeKey)
	ErrUnknownTag   = errors.New("taggedjson: unknown type tag")
	ErrMalformedTag = errors.New("taggedjson: malformed tagged value")
	ErrNilBigInt    = errors.New("taggedjson: bigint without value")
	ErrUnknownValue = errors.New("taggedjson: unsupported value")
)

// Marshal encodes the tree as JSON
func Marshal(v Value) ([]byte, error) {
	plain, err := toPlain(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}

// Unmarshal decodes JSON produced by Marshal (or by the browser storage
// encoder using the same tags). Tagged objects must be well formed.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var plain interface{}
	if err := dec.Decode(&plain); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("taggedjson: trailing data after value")
	}
	return fromPlain(plain)
}

func toPlain(v Value) (interface{}, error) {
	switch tv := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(tv), nil
	case Number:
		return json.Number(tv), nil
	case String:
		return string(tv), nil
	case BigInt:
		if tv.Int == nil {
			return nil, ErrNilBigInt
		}
		return map[string]interface{}{
			TypeKey:  TagBigInt,
			ValueKey: tv.Int.String(),
		}, nil
	case Bytes:
		ints := make([]int, len(tv))
		for i, b := range tv {
			ints[i] = int(b)
		}
		return map[string]interface{}{
			TypeKey:  TagBytes,
			ValueKey: ints,
		}, nil
	case Array:
		out := make([]interface{}, len(tv))
		for i, item := range tv {
			p, err := toPlain(item)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case Object:
		out := make(map[string]interface{}, len(tv))
		for k, item := range tv {
			if k == TypeKey {
				return nil, ErrReservedKey
			}
			p, err := toPlain(item)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownValue, v)
}

func fromPlain(p interface{}) (Value, error) {
	switch tp := p.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(tp), nil
	case json.Number:
		return Number(tp), nil
	case string:
		return String(tp), nil
	case []interface{}:
		out := make(Array, len(tp))
		for i, item := range tp {
			v, err := fromPlain(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case map[string]interface{}:
		if tag, tagged := tp[TypeKey]; tagged {
			return fromTagged(tag, tp)
		}
		out := make(Object, len(tp))
		for k, item := range tp {
			v, err := fromPlain(item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownValue, p)
}

func fromTagged(tag interface{}, obj map[string]interface{}) (Value, error) {
	if len(obj) != 2 {
		return nil, ErrMalformedTag
	}
	raw, ok := obj[ValueKey]
	if !ok {
		return nil, ErrMalformedTag
	}
	tagName, ok := tag.(string)
	if !ok {
		return nil, ErrMalformedTag
	}
	switch tagName {
	case TagBigInt:
		s, ok := raw.(string)
		if !ok {
			return nil, ErrMalformedTag
		}
		i, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: bigint %q", ErrMalformedTag, s)
		}
		return BigInt{Int: i}, nil
	case TagBytes:
		items, ok := raw.([]interface{})
		if !ok {
			return nil, ErrMalformedTag
		}
		out := make(Bytes, len(items))
		for i, item := range items {
			n, ok := item.(json.Number)
			if !ok {
				return nil, ErrMalformedTag
			}
			b, err := n.Int64()
			if err != nil || b < 0 || b > 255 {
				return nil, fmt.Errorf("%w: byte %s", ErrMalformedTag, n)
			}
			out[i] = byte(b)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tagName)
}
