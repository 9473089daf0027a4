package prm

import (
	"container/heap"
)

// searchNode represents a node in the shortest path search
type searchNode struct {
	id     NodeID
	g      int // hops from the start
	seq    int // push order, breaks ties between equal g
	parent *searchNode
	index  int // index in the heap
}

// priorityQueue implements heap.Interface ordered by (g, seq).
type priorityQueue []*searchNode

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].g != pq[j].g {
		return pq[i].g < pq[j].g
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	n := len(*pq)
	node := x.(*searchNode)
	node.index = n
	*pq = append(*pq, node)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*pq = old[0 : n-1]
	return node
}

// ShortestPath returns the fewest-edge path from a to b, both included. Every edge
// costs one; neighbours are expanded in ascending id order so the result is
// deterministic. A *NoPathError is returned when b cannot be reached.
func (rm *Roadmap) ShortestPath(a, b NodeID) ([]NodeID, error) {
	if _, ok := rm.nodes[a]; !ok {
		return nil, &NoPathError{From: a, To: b}
	}
	if _, ok := rm.nodes[b]; !ok {
		return nil, &NoPathError{From: a, To: b}
	}

	openSet := &priorityQueue{}
	heap.Init(openSet)
	seq := 0
	start := &searchNode{id: a, seq: seq}
	heap.Push(openSet, start)

	closedSet := make(map[NodeID]bool)
	openSetMap := map[NodeID]*searchNode{a: start}

	for openSet.Len() > 0 {
		current := heap.Pop(openSet).(*searchNode)
		delete(openSetMap, current.id)

		if current.id == b {
			var path []NodeID
			for n := current; n != nil; n = n.parent {
				path = append([]NodeID{n.id}, path...)
			}
			return path, nil
		}

		closedSet[current.id] = true

		for _, nb := range rm.Neighbors(current.id) {
			if closedSet[nb] {
				continue
			}
			tentativeG := current.g + 1
			neighbor, exists := openSetMap[nb]
			if !exists {
				seq++
				neighbor = &searchNode{id: nb, g: tentativeG, seq: seq, parent: current}
				heap.Push(openSet, neighbor)
				openSetMap[nb] = neighbor
			} else if tentativeG < neighbor.g {
				neighbor.g = tentativeG
				neighbor.parent = current
				heap.Fix(openSet, neighbor.index)
			}
		}
	}

	return nil, &NoPathError{From: a, To: b}
}
