package evse

import "sync"

// Variable is a named OCPP device variable with an optional scale, unit,
// and enum mapping, mirroring the mapping-template entries in pkg/config.
type Variable struct {
	Name        string
	Value       string
	DataType    string
	Scale       *float64
	Unit        string
	EnumMapping map[int]string
}

// variableStore is a concurrency-safe name-keyed Variable table.
type variableStore struct {
	mu   sync.RWMutex
	vars map[string]Variable
}

func newVariableStore() *variableStore {
	return &variableStore{vars: make(map[string]Variable)}
}

// Set installs or replaces a variable.
func (s *variableStore) Set(v Variable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[v.Name] = v
}

// Get returns the named variable and whether it exists.
func (s *variableStore) Get(name string) (Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Value returns the named variable's raw value, or "" if absent.
func (s *variableStore) Value(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vars[name].Value
}
