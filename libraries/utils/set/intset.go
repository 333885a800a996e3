// Copyright 2020 Vizier DB.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package set

// IntSet is a set of ints
type IntSet struct {
	items map[int]struct{}
}

// NewIntSet creates a set from a list of ints
func NewIntSet(items []int) *IntSet {
	s := &IntSet{make(map[int]struct{}, len(items))}

	for _, item := range items {
		s.items[item] = emptyInstance
	}

	return s
}

// Add adds new items to the set
func (s *IntSet) Add(items ...int) {
	for _, item := range items {
		s.items[item] = emptyInstance
	}
}

// Contains returns true if the item is in the set
func (s *IntSet) Contains(item int) bool {
	_, present := s.items[item]
	return present
}

// Size returns the number of items in the set
func (s *IntSet) Size() int {
	return len(s.items)
}
