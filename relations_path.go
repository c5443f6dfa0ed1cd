package itsdb

import (
	"strings"
)

// PathStep is one hop of a join path: the table reached and the key
// column that connects it to the previous table.
type PathStep struct {
	Table string
	Key   string
}

// Path finds a shortest chain of tables connecting source to target, where
// consecutive tables share a column that is a key of the table being left.
// Either name may be a compound "a+b" name; the search starts from every
// component of source and stops at the first component of target reached.
// When several shortest paths exist, any of them may be returned.
func (r *Relations) Path(source, target string) ([]PathStep, error) {
	sources := splitTableNames(source)
	targets := splitTableNames(target)
	for _, name := range append(append([]string(nil), sources...), targets...) {
		if !r.Has(name) {
			return nil, tableErrf(name, nil, "no such table in relations")
		}
	}

	visited := make(map[string]bool, len(r.order))
	for _, s := range sources {
		visited[s] = true
	}
	pending := 0
	for _, t := range targets {
		if !visited[t] {
			pending++
		}
	}
	if pending == 0 {
		return []PathStep{}, nil
	}
	isTarget := make(map[string]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}

	type node struct {
		table string
		path  []PathStep
	}
	queue := make([]node, 0, len(sources))
	for _, s := range sources {
		queue = append(queue, node{table: s})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, key := range r.tables[cur.table].keys {
			for _, next := range r.fieldTables[key] {
				if visited[next] {
					continue
				}
				visited[next] = true
				path := make([]PathStep, len(cur.path), len(cur.path)+1)
				copy(path, cur.path)
				path = append(path, PathStep{Table: next, Key: key})
				if isTarget[next] {
					return path, nil
				}
				queue = append(queue, node{table: next, path: path})
			}
		}
	}
	return nil, errf(nil, "no path from %s to %s", source, target)
}

func formatPath(steps []PathStep) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = s.Key + "->" + s.Table
	}
	return strings.Join(parts, " ")
}
