/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

type Set[T comparable] map[T]struct{}

func NewSet[T comparable](values ...T) Set[T] {
	s := make(Set[T], len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s Set[T]) Add(v T) {
	s[v] = struct{}{}
}

func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// OrderedSet keeps the first-seen order of its members.
type OrderedSet[T comparable] struct {
	items []T
	index Set[T]
}

func NewOrderedSet[T comparable]() *OrderedSet[T] {
	return &OrderedSet[T]{index: NewSet[T]()}
}

// Add appends v unless it is already a member and reports whether it was added.
func (s *OrderedSet[T]) Add(v T) bool {
	if s.index.Has(v) {
		return false
	}
	s.index.Add(v)
	s.items = append(s.items, v)
	return true
}

func (s *OrderedSet[T]) Has(v T) bool {
	return s.index.Has(v)
}

func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}

// Items returns a copy of the members in insertion order.
func (s *OrderedSet[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}
