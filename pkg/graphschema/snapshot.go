// Package graphschema holds the graph schema snapshot used to ground and
// validate generated queries, and the cache that keeps it fresh.
//
// A Snapshot is immutable once published. The Cache swaps whole snapshots
// atomically, so a request that loaded a snapshot keeps a consistent view
// even while a refresh publishes a newer one.
package graphschema

import (
	"slices"
	"sort"
	"time"

	"github.com/leapstack-labs/graphask/pkg/core"
)

// Snapshot is an immutable view of the labels, relationship types and
// property keys present in the store.
type Snapshot struct {
	Version   uint64                         `json:"version"`
	FetchedAt time.Time                      `json:"fetched_at"`
	Labels    []string                       `json:"labels"`
	RelTypes  []string                       `json:"relationship_types"`
	NodeProps map[string][]core.PropertyInfo `json:"node_properties"`
	RelProps  map[string][]core.PropertyInfo `json:"relationship_properties"`
	Patterns  []core.RelPattern              `json:"patterns"`

	labels      map[string]bool
	relTypes    map[string]bool
	nodeKeys    map[string]map[string]bool
	relKeys     map[string]map[string]bool
	allNodeKeys map[string]bool
	allRelKeys  map[string]bool
}

// FromInfo normalises raw introspection data into a snapshot. Labels and
// relationship types named in exclude are dropped along with any pattern
// that mentions them. Duplicate names are merged.
func FromInfo(info *core.SchemaInfo, exclude []string) *Snapshot {
	s := &Snapshot{
		NodeProps:   make(map[string][]core.PropertyInfo),
		RelProps:    make(map[string][]core.PropertyInfo),
		labels:      make(map[string]bool),
		relTypes:    make(map[string]bool),
		nodeKeys:    make(map[string]map[string]bool),
		relKeys:     make(map[string]map[string]bool),
		allNodeKeys: make(map[string]bool),
		allRelKeys:  make(map[string]bool),
	}
	if info == nil {
		return s
	}

	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	for _, n := range info.Nodes {
		if n.Label == "" || skip[n.Label] {
			continue
		}
		if !s.labels[n.Label] {
			s.labels[n.Label] = true
			s.Labels = append(s.Labels, n.Label)
			s.nodeKeys[n.Label] = make(map[string]bool)
		}
		s.NodeProps[n.Label] = mergeProps(s.NodeProps[n.Label], n.Properties, s.nodeKeys[n.Label], s.allNodeKeys)
	}

	for _, r := range info.Relationships {
		if r.Type == "" || skip[r.Type] {
			continue
		}
		if !s.relTypes[r.Type] {
			s.relTypes[r.Type] = true
			s.RelTypes = append(s.RelTypes, r.Type)
			s.relKeys[r.Type] = make(map[string]bool)
		}
		s.RelProps[r.Type] = mergeProps(s.RelProps[r.Type], r.Properties, s.relKeys[r.Type], s.allRelKeys)
	}

	seen := make(map[core.RelPattern]bool)
	for _, p := range info.Patterns {
		if skip[p.From] || skip[p.Type] || skip[p.To] || seen[p] {
			continue
		}
		seen[p] = true
		s.Patterns = append(s.Patterns, p)
	}

	sort.Strings(s.Labels)
	sort.Strings(s.RelTypes)
	sort.Slice(s.Patterns, func(i, j int) bool {
		a, b := s.Patterns[i], s.Patterns[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.To < b.To
	})
	return s
}

func mergeProps(dst, src []core.PropertyInfo, keys, all map[string]bool) []core.PropertyInfo {
	for _, p := range src {
		if p.Name == "" {
			continue
		}
		all[p.Name] = true
		if keys[p.Name] {
			for i := range dst {
				if dst[i].Name == p.Name {
					for _, t := range p.Types {
						if !slices.Contains(dst[i].Types, t) {
							dst[i].Types = append(dst[i].Types, t)
						}
					}
				}
			}
			continue
		}
		keys[p.Name] = true
		dst = append(dst, core.PropertyInfo{Name: p.Name, Types: slices.Clone(p.Types)})
	}
	sort.Slice(dst, func(i, j int) bool { return dst[i].Name < dst[j].Name })
	return dst
}

// HasLabel reports whether label exists.
func (s *Snapshot) HasLabel(label string) bool { return s.labels[label] }

// HasRelType reports whether the relationship type exists.
func (s *Snapshot) HasRelType(relType string) bool { return s.relTypes[relType] }

// HasPropertyKey reports whether key is a property of any node or
// relationship.
func (s *Snapshot) HasPropertyKey(key string) bool {
	return s.allNodeKeys[key] || s.allRelKeys[key]
}

// NodeHasProperty reports whether a node carrying any of labels may have
// key. With no labels every node key is accepted.
func (s *Snapshot) NodeHasProperty(labels []string, key string) bool {
	if len(labels) == 0 {
		return s.allNodeKeys[key]
	}
	for _, l := range labels {
		if s.nodeKeys[l][key] {
			return true
		}
	}
	return false
}

// RelHasProperty reports whether a relationship of any of types may have
// key. With no types every relationship key is accepted.
func (s *Snapshot) RelHasProperty(types []string, key string) bool {
	if len(types) == 0 {
		return s.allRelKeys[key]
	}
	for _, t := range types {
		if s.relKeys[t][key] {
			return true
		}
	}
	return false
}

// PropertyKeys returns every property key in sorted order.
func (s *Snapshot) PropertyKeys() []string {
	keys := make([]string, 0, len(s.allNodeKeys)+len(s.allRelKeys))
	for k := range s.allNodeKeys {
		keys = append(keys, k)
	}
	for k := range s.allRelKeys {
		if !s.allNodeKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Empty reports whether the snapshot has no labels and no relationship
// types.
func (s *Snapshot) Empty() bool {
	return len(s.Labels) == 0 && len(s.RelTypes) == 0
}
