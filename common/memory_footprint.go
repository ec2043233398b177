// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MemoryFootprint describes the memory consumption of a data structure as a
// tree of named components.
type MemoryFootprint struct {
	value    uintptr
	children map[string]*MemoryFootprint
	note     string
}

// NewMemoryFootprint creates a footprint node with the given own size in bytes.
func NewMemoryFootprint(value uintptr) *MemoryFootprint {
	return &MemoryFootprint{
		value:    value,
		children: map[string]*MemoryFootprint{},
	}
}

// AddChild registers the footprint of a named sub-component.
func (mf *MemoryFootprint) AddChild(name string, child *MemoryFootprint) {
	mf.children[name] = child
}

// SetNote attaches a free-form note printed next to the node.
func (mf *MemoryFootprint) SetNote(note string) {
	mf.note = note
}

// Total returns the size of this node including all children.
func (mf *MemoryFootprint) Total() uintptr {
	total := mf.value
	for _, child := range mf.children {
		total += child.Total()
	}
	return total
}

func (mf *MemoryFootprint) String() string {
	var sb strings.Builder
	mf.toString(&sb, ".")
	return sb.String()
}

func (mf *MemoryFootprint) toString(sb *strings.Builder, path string) {
	for _, name := range slices.Sorted(maps.Keys(mf.children)) {
		mf.children[name].toString(sb, path+"/"+name)
	}
	fmt.Fprintf(sb, "%d\t%s", mf.Total(), path)
	if mf.note != "" {
		fmt.Fprintf(sb, " %s", mf.note)
	}
	sb.WriteString("\n")
}
