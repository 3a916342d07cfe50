package fake

import (
	"context"
	"sync"
)

// MetadataStore is an in-memory machine metadata store.
type MetadataStore struct {
	CallRecorder

	mu   sync.Mutex
	data map[string]map[string]string

	GetErr func(machine, key string) error
	SetErr func(machine, key, value string) error
}

func NewMetadataStore() *MetadataStore {
	return &MetadataStore{data: make(map[string]map[string]string)}
}

func (s *MetadataStore) Metadata(_ context.Context, machine, key string) (string, bool, error) {
	s.record("Metadata", machine, key)
	if s.GetErr != nil {
		if err := s.GetErr(machine, key); err != nil {
			return "", false, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[machine][key]
	return v, ok, nil
}

func (s *MetadataStore) SetMetadata(_ context.Context, machine, key, value string) error {
	s.record("SetMetadata", machine, key, value)
	if s.SetErr != nil {
		if err := s.SetErr(machine, key, value); err != nil {
			return err
		}
	}
	s.Put(machine, key, value)
	return nil
}

// Put seeds a value without recording a call.
func (s *MetadataStore) Put(machine, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[machine] == nil {
		s.data[machine] = make(map[string]string)
	}
	s.data[machine][key] = value
}

// Delete removes a value without recording a call.
func (s *MetadataStore) Delete(machine, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[machine], key)
}

// Get reads a value without recording a call.
func (s *MetadataStore) Get(machine, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[machine][key]
	return v, ok
}
