// Copyright 2025 the remote-file-system authors.
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

//go:build windows

package fswin

import (
	"strings"
	"sync"
)

// pathMap is the Windows adapter's path -> ino cache.
// WinFsp addresses everything by path; the Remote Backend addresses
// everything by inode. The map is seeded as paths are first resolved and
// maintained across create/rename/delete so a hot path never needs a
// component-by-component walk twice.
type pathMap struct {
	mu   sync.Mutex
	inos map[string]uint64
}

func newPathMap(rootIno uint64) *pathMap {
	return &pathMap{inos: map[string]uint64{"/": rootIno}}
}

// normalize converts a WinFsp path (backslashes, possibly empty) to the
// forward-slash form the map keys on.
func normalize(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	if p == "" || p == "/" {
		return "/"
	}
	return strings.TrimSuffix(p, "/")
}

// split breaks a normalized path into its parent path and final component.
func split(path string) (parent, name string) {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/", path[i+1:]
	}
	return path[:i], path[i+1:]
}

func (m *pathMap) lookup(path string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ino, ok := m.inos[path]
	return ino, ok
}

func (m *pathMap) store(path string, ino uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inos[path] = ino
}

func (m *pathMap) remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inos, path)
}

// rename moves oldPath's mapping to newPath and re-anchors every descendant
// mapping under the new prefix, so a renamed directory's children resolve
// without refetching.
func (m *pathMap) rename(oldPath, newPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := oldPath + "/"
	moved := make(map[string]uint64)
	for p, ino := range m.inos {
		switch {
		case p == oldPath:
			moved[newPath] = ino
			delete(m.inos, p)
		case strings.HasPrefix(p, prefix):
			moved[newPath+"/"+p[len(prefix):]] = ino
			delete(m.inos, p)
		}
	}
	for p, ino := range moved {
		m.inos[p] = ino
	}
}
