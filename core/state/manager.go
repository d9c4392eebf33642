package state

import (
	"bytes"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/hustletexas/cyber-arcade-verse-rally/storage"
)

// Reader exposes read access to RLP-encoded module state.
type Reader interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVHas(key []byte) (bool, error)
	KVGetList(key []byte, out interface{}) error
}

// Writer extends Reader with mutation helpers. Writes are only durable once
// the owning transaction commits.
type Writer interface {
	Reader
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
}

// Manager provides keyed access to committed state and opens write
// transactions over it.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database exposes the backing store.
func (m *Manager) Database() storage.Database { return m.db }

// Begin opens a write overlay on top of the committed state.
func (m *Manager) Begin() *Tx {
	return newTx(m.db)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func readRaw(db storage.Database, hashed []byte) ([]byte, error) {
	data, err := db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVGet retrieves the committed value stored under the supplied key and
// decodes it into the provided destination. The boolean return value
// indicates whether the key existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := readRaw(m.db, kvKey(key))
	if err != nil {
		return false, err
	}
	return decodeInto(data, out)
}

// KVHas reports whether the committed state holds the key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Has(kvKey(key))
}

// KVGetList decodes the RLP list stored under key. Missing keys decode to an
// empty list.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if out == nil {
		return fmt.Errorf("kv: output must not be nil")
	}
	_, err := m.KVGet(key, out)
	return err
}

func decodeInto(data []byte, out interface{}) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func appendUnique(list [][]byte, value []byte) ([][]byte, bool) {
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return list, false
		}
	}
	return append(list, append([]byte(nil), value...)), true
}
