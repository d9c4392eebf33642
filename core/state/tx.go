package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

var errTxClosed = errors.New("state: transaction already closed")

// Tx is a write overlay on top of committed state. Reads observe the
// transaction's own writes; nothing reaches the database until Commit.
type Tx struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

func newTx(db storage.Database) *Tx {
	return &Tx{
		db:      db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (tx *Tx) raw(hashed []byte) ([]byte, error) {
	k := string(hashed)
	if _, ok := tx.deletes[k]; ok {
		return nil, nil
	}
	if v, ok := tx.writes[k]; ok {
		return v, nil
	}
	return readRaw(tx.db, hashed)
}

func (tx *Tx) put(hashed, value []byte) {
	k := string(hashed)
	delete(tx.deletes, k)
	tx.writes[k] = value
}

// KVPut RLP-encodes value and stages it under key.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if tx.closed {
		return errTxClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	tx.put(kvKey(key), encoded)
	return nil
}

// KVGet decodes the value stored under key. The boolean reports presence.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	return decodeInto(data, out)
}

// KVHas reports whether key is present in the overlay or committed state.
func (tx *Tx) KVHas(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// KVDelete stages removal of key.
func (tx *Tx) KVDelete(key []byte) error {
	if tx.closed {
		return errTxClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := string(kvKey(key))
	delete(tx.writes, hashed)
	tx.deletes[hashed] = struct{}{}
	return nil
}

// KVAppend appends value to the RLP byte-slice list stored under key.
// Duplicate values are ignored to keep the index deterministic.
func (tx *Tx) KVAppend(key []byte, value []byte) error {
	if tx.closed {
		return errTxClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := tx.raw(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	list, added := appendUnique(list, value)
	if !added {
		return nil
	}
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	tx.put(hashed, encoded)
	return nil
}

// KVGetList decodes the list stored under key into out. Missing keys leave
// out untouched.
func (tx *Tx) KVGetList(key []byte, out interface{}) error {
	if out == nil {
		return fmt.Errorf("kv: output must not be nil")
	}
	_, err := tx.KVGet(key, out)
	return err
}

// Dirty reports the number of staged key mutations.
func (tx *Tx) Dirty() int { return len(tx.writes) + len(tx.deletes) }

// Commit writes all staged mutations in one batch. Keys are applied in sorted
// order so the batch contents are deterministic.
func (tx *Tx) Commit() error {
	if tx.closed {
		return errTxClosed
	}
	tx.closed = true
	if tx.Dirty() == 0 {
		return nil
	}
	batch := tx.db.NewBatch()
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), tx.writes[k])
	}
	removed := make([]string, 0, len(tx.deletes))
	for k := range tx.deletes {
		removed = append(removed, k)
	}
	sort.Strings(removed)
	for _, k := range removed {
		batch.Delete([]byte(k))
	}
	return batch.Write()
}

// Discard drops every staged mutation.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.writes = make(map[string][]byte)
	tx.deletes = make(map[string]struct{})
}
