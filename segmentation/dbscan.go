// Package segmentation implements the density-based clustering used to
// separate foreground lidar returns into per-robot groups.
package segmentation

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Noise is the cluster id assigned to points that belong to no cluster.
const Noise = -1

const unvisited = -2

// DBSCAN assigns a cluster id to every point, or Noise for points in no
// sufficiently dense region. eps is the neighborhood radius and minPoints the
// minimum neighborhood size, the point itself included, required of a core
// point. Ids are contiguous from zero in order of cluster discovery, so the
// same input always clusters identically.
func DBSCAN(points []r3.Vector, eps float64, minPoints int) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}
	if len(points) == 0 {
		return labels
	}

	cps := make(clusterPoints, len(points))
	for i, p := range points {
		cps[i] = clusterPoint{pos: p, index: i}
	}
	tree := kdtree.New(cps, false)

	nextCluster := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}

		neighbors := withinEps(tree, points[i], eps)
		if len(neighbors) < minPoints {
			labels[i] = Noise
			continue
		}

		cluster := nextCluster
		nextCluster++
		labels[i] = cluster

		queue := neighbors
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == Noise {
				// border point, reclaimed but not expanded
				labels[j] = cluster
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster

			reachable := withinEps(tree, points[j], eps)
			if len(reachable) >= minPoints {
				queue = append(queue, reachable...)
			}
		}
	}

	return labels
}

// withinEps returns the indexes of every point within eps of q, q included.
func withinEps(tree *kdtree.Tree, q r3.Vector, eps float64) []int {
	keep := kdtree.NewDistKeeper(eps * eps)
	tree.NearestSet(keep, clusterPoint{pos: q, index: -1})

	found := make([]int, 0, keep.Heap.Len())
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		found = append(found, c.Comparable.(clusterPoint).index)
	}
	return found
}

// clusterPoint carries the index of the point in the DBSCAN input so labels
// survive the reordering the tree applies to its backing slice.
type clusterPoint struct {
	pos   r3.Vector
	index int
}

func (p clusterPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(clusterPoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	default:
		return p.pos.Z - q.pos.Z
	}
}

func (p clusterPoint) Dims() int { return 3 }

func (p clusterPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(clusterPoint)
	return p.pos.Sub(q.pos).Norm2()
}

type clusterPoints []clusterPoint

func (p clusterPoints) Index(i int) kdtree.Comparable { return p[i] }

func (p clusterPoints) Len() int { return len(p) }

func (p clusterPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p clusterPoints) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, clusterPoints: p}.Pivot()
}

type plane struct {
	kdtree.Dim
	clusterPoints
}

func (p plane) Less(i, j int) bool {
	a, b := p.clusterPoints[i], p.clusterPoints[j]
	switch p.Dim {
	case 0:
		return a.pos.X < b.pos.X
	case 1:
		return a.pos.Y < b.pos.Y
	default:
		return a.pos.Z < b.pos.Z
	}
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.clusterPoints = p.clusterPoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.clusterPoints[i], p.clusterPoints[j] = p.clusterPoints[j], p.clusterPoints[i]
}
