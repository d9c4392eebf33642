package state

import (
	"math/big"
)

// LoadBig decodes a big integer stored under key. Missing keys yield zero.
func LoadBig(r Reader, key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := r.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// StoreBig persists a non-negative big integer under key. Nil stores zero.
func StoreBig(w Writer, key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	return w.KVPut(key, value)
}

// AddBig increments the counter stored under key by delta and returns the new
// total.
func AddBig(w Writer, key []byte, delta *big.Int) (*big.Int, error) {
	current, err := LoadBig(w, key)
	if err != nil {
		return nil, err
	}
	if delta != nil {
		current.Add(current, delta)
	}
	if err := StoreBig(w, key, current); err != nil {
		return nil, err
	}
	return current, nil
}

// LoadUint64 decodes an unsigned counter stored under key. Missing keys
// yield zero.
func LoadUint64(r Reader, key []byte) (uint64, error) {
	var value uint64
	if _, err := r.KVGet(key, &value); err != nil {
		return 0, err
	}
	return value, nil
}

// NextSequence increments the counter stored under key and returns the new
// value. The first call returns 1.
func NextSequence(w Writer, key []byte) (uint64, error) {
	current, err := LoadUint64(w, key)
	if err != nil {
		return 0, err
	}
	current++
	if err := w.KVPut(key, current); err != nil {
		return 0, err
	}
	return current, nil
}
