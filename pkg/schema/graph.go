// Package schema models the semantic layer as a graph of entities connected
// by typed relationships, and answers join-path queries over it.
//
// A Graph is built once per schema-reload event and is immutable afterwards;
// concurrent readers may share one instance without synchronization. Reload
// means building a new Graph and swapping the reference, never mutating in
// place.
package schema

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/cubeguard/pkg/apperrors"
	"github.com/ekaya-inc/cubeguard/pkg/models"
)

// Graph is the full collection of entities and relationships. Relationships
// are traversed in either direction when finding a path, since join
// direction does not restrict query direction. The graph may be
// disconnected; that is expected and meaningful, not an error state.
type Graph struct {
	// entities keyed by normalized (lowercased, trimmed) name.
	entities map[string]*models.Entity
	// order holds normalized names in insertion order.
	order []string
	// adjacency lists per normalized name, in relationship insertion order.
	adjacency map[string][]string
	// relationships retained in insertion order for inspection.
	relationships []models.Relationship
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newGraph() *Graph {
	return &Graph{
		entities:  make(map[string]*models.Entity),
		adjacency: make(map[string][]string),
	}
}

func (g *Graph) addEntity(e *models.Entity) bool {
	key := normalize(e.Name)
	if _, exists := g.entities[key]; exists {
		return false
	}
	g.entities[key] = e
	g.order = append(g.order, key)
	return true
}

// addRelationship records the edge in both directions. Neighbor lists keep
// relationship insertion order so BFS tie-breaking stays reproducible.
func (g *Graph) addRelationship(rel models.Relationship) {
	src := normalize(rel.Source)
	dst := normalize(rel.Target)
	g.relationships = append(g.relationships, rel)
	g.addNeighbor(src, dst)
	g.addNeighbor(dst, src)
}

func (g *Graph) addNeighbor(from, to string) {
	for _, existing := range g.adjacency[from] {
		if existing == to {
			return
		}
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Resolve looks up an entity by name, case-insensitively, ignoring
// surrounding whitespace. Missing names return false, never an error.
func (g *Graph) Resolve(name string) (*models.Entity, bool) {
	e, ok := g.entities[normalize(name)]
	return e, ok
}

// Entities returns all entities in insertion order.
func (g *Graph) Entities() []*models.Entity {
	out := make([]*models.Entity, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.entities[key])
	}
	return out
}

// Relationships returns all relationships in insertion order.
func (g *Graph) Relationships() []models.Relationship {
	return g.relationships
}

// Neighbors returns the entities directly related to name, in relationship
// insertion order. Unknown names yield nil.
func (g *Graph) Neighbors(name string) []*models.Entity {
	keys, ok := g.adjacency[normalize(name)]
	if !ok {
		return nil
	}
	out := make([]*models.Entity, 0, len(keys))
	for _, key := range keys {
		out = append(out, g.entities[key])
	}
	return out
}

// NeighborNames returns the display names of an entity's direct neighbors.
func (g *Graph) NeighborNames(name string) []string {
	neighbors := g.Neighbors(name)
	out := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, n.Name)
	}
	return out
}

// ShortestPath finds the shortest join path between two entities using
// breadth-first search over the undirected relationship graph. The returned
// path contains entity display names, endpoints included; a self-path is a
// single-element path of length zero. Ties between equal-length paths break
// by relationship insertion order, keeping results reproducible. Returns nil
// when either entity is unknown or no path exists.
func (g *Graph) ShortestPath(from, to string) []string {
	src, ok := g.Resolve(from)
	if !ok {
		return nil
	}
	dst, ok := g.Resolve(to)
	if !ok {
		return nil
	}

	srcKey := normalize(src.Name)
	dstKey := normalize(dst.Name)
	if srcKey == dstKey {
		return []string{src.Name}
	}

	type node struct {
		key  string
		path []string
	}
	queue := []node{{key: srcKey, path: []string{src.Name}}}
	visited := map[string]bool{srcKey: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range g.adjacency[current.key] {
			if visited[next] {
				continue
			}
			visited[next] = true

			path := make([]string, len(current.path), len(current.path)+1)
			copy(path, current.path)
			path = append(path, g.entities[next].Name)

			if next == dstKey {
				return path
			}
			queue = append(queue, node{key: next, path: path})
		}
	}

	return nil
}

// Path is the error-returning form of ShortestPath, distinguishing an
// unknown entity from a known-but-disconnected pair. Callers match the
// cause with errors.Is against apperrors.ErrNotFound and
// apperrors.ErrNoJoinPath.
func (g *Graph) Path(from, to string) ([]string, error) {
	if _, ok := g.Resolve(from); !ok {
		return nil, fmt.Errorf("entity %q: %w", from, apperrors.ErrNotFound)
	}
	if _, ok := g.Resolve(to); !ok {
		return nil, fmt.Errorf("entity %q: %w", to, apperrors.ErrNotFound)
	}
	path := g.ShortestPath(from, to)
	if path == nil {
		return nil, fmt.Errorf("%s and %s: %w", from, to, apperrors.ErrNoJoinPath)
	}
	return path, nil
}

// PathHops returns the length of a path in hops (edges, not nodes).
func PathHops(path []string) int {
	if len(path) == 0 {
		return 0
	}
	return len(path) - 1
}
