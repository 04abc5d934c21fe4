// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tinymap

import (
	"encoding/json"
	"fmt"
	"iter"

	"go.yaml.in/yaml/v3"
)

// keyValue is the wire form of one map pair. Maps encode to an ordered
// list of these rather than to a native mapping so that non-string keys
// survive JSON and the ascending key order is preserved on the wire.
type keyValue[K, V any] struct {
	Key   K `json:"key" yaml:"key"`
	Value V `json:"value" yaml:"value"`
}

func collectPairs[K, V any](n int, seq iter.Seq2[K, V]) []keyValue[K, V] {
	pairs := make([]keyValue[K, V], 0, n)
	for k, v := range seq {
		pairs = append(pairs, keyValue[K, V]{Key: k, Value: v})
	}
	return pairs
}

// MarshalJSON encodes the map as a list of {"key": ..., "value": ...}
// pairs in ascending key order.
func (m *ArrayMap[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectPairs(m.size, m.All()))
}

// UnmarshalJSON replaces the map's contents with the decoded pairs,
// feeding each through TryInsert. Decoding more pairs than the capacity
// allows fails with an error wrapping [ErrCapacityExceeded] and may leave
// the map partially filled.
func (m *ArrayMap[K, V]) UnmarshalJSON(data []byte) error {
	var pairs []keyValue[K, V]
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	return m.insertDecoded(pairs)
}

// MarshalYAML encodes the map in the same list-of-pairs shape as
// MarshalJSON.
func (m *ArrayMap[K, V]) MarshalYAML() (any, error) {
	return collectPairs(m.size, m.All()), nil
}

// UnmarshalYAML mirrors UnmarshalJSON, including its capacity behavior.
func (m *ArrayMap[K, V]) UnmarshalYAML(node *yaml.Node) error {
	var pairs []keyValue[K, V]
	if err := node.Decode(&pairs); err != nil {
		return err
	}
	return m.insertDecoded(pairs)
}

func (m *ArrayMap[K, V]) insertDecoded(pairs []keyValue[K, V]) error {
	m.Clear()
	for _, p := range pairs {
		if _, _, err := m.TryInsert(p.Key, p.Value); err != nil {
			return fmt.Errorf("cannot decode %d pairs into map with capacity %d: %w",
				len(pairs), m.Cap(), err)
		}
	}
	return nil
}

// MarshalJSON encodes the set as a list of its elements in ascending
// order.
func (s *ArraySet[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON replaces the set's contents with the decoded elements,
// feeding each through TryInsert. Decoding more distinct elements than
// the capacity allows fails with an error wrapping [ErrCapacityExceeded]
// and may leave the set partially filled.
func (s *ArraySet[T]) UnmarshalJSON(data []byte) error {
	var elems []T
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	return s.insertDecoded(elems)
}

// MarshalYAML encodes the set in the same list shape as MarshalJSON.
func (s *ArraySet[T]) MarshalYAML() (any, error) {
	return s.Slice(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON, including its capacity behavior.
func (s *ArraySet[T]) UnmarshalYAML(node *yaml.Node) error {
	var elems []T
	if err := node.Decode(&elems); err != nil {
		return err
	}
	return s.insertDecoded(elems)
}

func (s *ArraySet[T]) insertDecoded(elems []T) error {
	s.Clear()
	for _, elem := range elems {
		if _, err := s.TryInsert(elem); err != nil {
			return fmt.Errorf("cannot decode %d elements into set with capacity %d: %w",
				len(elems), s.Cap(), err)
		}
	}
	return nil
}

// MarshalJSON encodes the map as a list of {"key": ..., "value": ...}
// pairs in ascending key order, in either representation state.
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectPairs(m.Len(), m.All()))
}

// UnmarshalJSON replaces the map's contents with the decoded pairs. It
// cannot fail on size: input beyond the inline capacity promotes the map.
func (m *Map[K, V]) UnmarshalJSON(data []byte) error {
	var pairs []keyValue[K, V]
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	m.insertDecoded(pairs)
	return nil
}

// MarshalYAML encodes the map in the same list-of-pairs shape as
// MarshalJSON.
func (m *Map[K, V]) MarshalYAML() (any, error) {
	return collectPairs(m.Len(), m.All()), nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (m *Map[K, V]) UnmarshalYAML(node *yaml.Node) error {
	var pairs []keyValue[K, V]
	if err := node.Decode(&pairs); err != nil {
		return err
	}
	m.insertDecoded(pairs)
	return nil
}

func (m *Map[K, V]) insertDecoded(pairs []keyValue[K, V]) {
	m.Clear()
	for _, p := range pairs {
		m.Insert(p.Key, p.Value)
	}
}

// MarshalJSON encodes the set as a list of its elements in ascending
// order, in either representation state.
func (s *Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON replaces the set's contents with the decoded elements. It
// cannot fail on size: input beyond the inline capacity promotes the set.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var elems []T
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	s.insertDecoded(elems)
	return nil
}

// MarshalYAML encodes the set in the same list shape as MarshalJSON.
func (s *Set[T]) MarshalYAML() (any, error) {
	return s.Slice(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (s *Set[T]) UnmarshalYAML(node *yaml.Node) error {
	var elems []T
	if err := node.Decode(&elems); err != nil {
		return err
	}
	s.insertDecoded(elems)
	return nil
}

func (s *Set[T]) insertDecoded(elems []T) {
	s.Clear()
	for _, elem := range elems {
		s.Insert(elem)
	}
}
