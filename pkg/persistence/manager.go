package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// StateManager handles persistent key-value storage in a JSON file.
// The addon collection, library and watch progress all live under their
// own keys of a single state.json in the data directory.
type StateManager struct {
	filePath string
	data     map[string]json.RawMessage
	mu       sync.RWMutex
}

var globalManager *StateManager
var managerMu sync.Mutex

// NewManager creates a state manager backed by state.json in dataDir.
func NewManager(dataDir string) (*StateManager, error) {
	m := &StateManager{
		filePath: filepath.Join(dataDir, "state.json"),
		data:     make(map[string]json.RawMessage),
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return m, nil
}

// GetManager returns the global state manager
func GetManager(dataDir string) (*StateManager, error) {
	managerMu.Lock()
	defer managerMu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	m, err := NewManager(dataDir)
	if err != nil {
		return nil, err
	}

	globalManager = m
	return m, nil
}

func (m *StateManager) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &m.data)
}

func (m *StateManager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveLocked()
}

func (m *StateManager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.filePath, data, 0644)
}

// Get retrieves data for a key and unmarshals it into target
func (m *StateManager) Get(key string, target interface{}) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return true, err
	}

	return true, nil
}

// Set stores data for a key and saves to disk
func (m *StateManager) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()

	return m.Save()
}
