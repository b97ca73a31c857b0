// Package hierarchy builds ordered, nested task trees from flat item sets.
// Building is read-only and deterministic: the same snapshot always yields
// the same tree, which keeps reactive diffing and tests stable.
package hierarchy

import (
	"sort"

	"fieldline/ordering/pkg/idwrap"
	"fieldline/ordering/pkg/model/mitem"
	"fieldline/ordering/pkg/statusrank"
)

// TreeNode is one item plus its ordered child subtrees.
type TreeNode struct {
	Item     mitem.Item
	Children []*TreeNode
}

// Build produces the ordered root forest for a flat item set. Each sibling
// level is sorted independently by (status rank, position, created time,
// id). Items whose parent is absent from the set are treated as roots
// rather than dropped. Items trapped in a parent cycle (a state the
// conflict resolver rejects, but tolerated here) are promoted to roots so
// no item ever disappears from a rendered tree.
func Build(items []mitem.Item, ranking statusrank.Ranking) []*TreeNode {
	if ranking == nil {
		ranking = statusrank.Default()
	}

	byID := make(map[idwrap.IDWrap]mitem.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	var roots []mitem.Item
	children := make(map[idwrap.IDWrap][]mitem.Item)
	for _, it := range items {
		if isRoot(it, byID) {
			roots = append(roots, it)
			continue
		}
		children[*it.ParentID] = append(children[*it.ParentID], it)
	}

	visited := make(map[idwrap.IDWrap]bool, len(items))
	return buildLevel(roots, children, ranking, visited)
}

// isRoot reports whether the item anchors a tree: no parent, a parent
// outside the set, or an ancestor chain that loops back into itself.
func isRoot(it mitem.Item, byID map[idwrap.IDWrap]mitem.Item) bool {
	if it.ParentID == nil {
		return true
	}
	seen := map[idwrap.IDWrap]bool{it.ID: true}
	cur := *it.ParentID
	for {
		if seen[cur] {
			return true
		}
		parent, ok := byID[cur]
		if !ok {
			return true
		}
		if parent.ParentID == nil {
			return false
		}
		seen[cur] = true
		cur = *parent.ParentID
	}
}

func buildLevel(siblings []mitem.Item, children map[idwrap.IDWrap][]mitem.Item, ranking statusrank.Ranking, visited map[idwrap.IDWrap]bool) []*TreeNode {
	sortSiblings(siblings, ranking)

	nodes := make([]*TreeNode, 0, len(siblings))
	for _, it := range siblings {
		if visited[it.ID] {
			continue
		}
		visited[it.ID] = true
		nodes = append(nodes, &TreeNode{
			Item:     it,
			Children: buildLevel(children[it.ID], children, ranking, visited),
		})
	}
	return nodes
}

func sortSiblings(siblings []mitem.Item, ranking statusrank.Ranking) {
	sort.SliceStable(siblings, func(i, j int) bool {
		a, b := siblings[i], siblings[j]
		ra, rb := ranking.Rank(a.Status), ranking.Rank(b.Status)
		if ra != rb {
			return ra < rb
		}
		return mitem.ComparePositional(a, b) < 0
	})
}

// Flatten returns the pre-order traversal of a forest.
func Flatten(nodes []*TreeNode) []mitem.Item {
	var out []mitem.Item
	var walk func([]*TreeNode)
	walk = func(level []*TreeNode) {
		for _, n := range level {
			out = append(out, n.Item)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}
