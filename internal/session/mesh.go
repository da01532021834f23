package session

import "time"

// activeWindow is how recently a node must have been heard to count
// as active.
const activeWindow = time.Hour

// MeshEdge is one inferred direct link from the connected node.
type MeshEdge struct {
	From uint32
	To   uint32
	SNR  float32
}

// Topology is a point-in-time graph view of the mesh: every known
// node, plus an edge from our node to each one heard directly.
type Topology struct {
	MyNode uint32
	Nodes  []NodeRecord
	Edges  []MeshEdge
}

// NetworkStats summarizes the node mirror.
type NetworkStats struct {
	TotalNodes    int
	ActiveNodes   int
	Neighbors     int
	AverageSNR    float32
	HasAverageSNR bool
	Health        string
}

// Neighbors returns nodes heard directly within the active window.
// A node with a receive SNR was decoded off the air rather than
// forwarded, so it is treated as adjacent.
func (s *Session) Neighbors() []NodeRecord {
	now := time.Now()
	var out []NodeRecord
	for _, n := range s.store.SnapshotNodes() {
		if isNeighbor(n, now) {
			out = append(out, n)
		}
	}
	return out
}

// Topology builds the mesh graph from the node mirror.
func (s *Session) Topology() Topology {
	my, _ := s.store.MyInfo()
	nodes := s.store.SnapshotNodes()
	topo := Topology{MyNode: my.Num, Nodes: nodes}
	for _, n := range nodes {
		if n.HasSNR {
			topo.Edges = append(topo.Edges, MeshEdge{From: my.Num, To: n.Num, SNR: n.SNR})
		}
	}
	return topo
}

// NetworkStats derives health metrics from the node mirror.
func (s *Session) NetworkStats() NetworkStats {
	now := time.Now()
	nodes := s.store.SnapshotNodes()

	stats := NetworkStats{TotalNodes: len(nodes)}
	var snrSum float32
	var snrCount int
	for _, n := range nodes {
		if heardWithin(n, now, activeWindow) {
			stats.ActiveNodes++
		}
		if isNeighbor(n, now) {
			stats.Neighbors++
		}
		if n.HasSNR {
			snrSum += n.SNR
			snrCount++
		}
	}
	if snrCount > 0 {
		stats.AverageSNR = snrSum / float32(snrCount)
		stats.HasAverageSNR = true
	}

	switch {
	case stats.Neighbors == 0:
		stats.Health = "isolated"
	case stats.Neighbors == 1:
		stats.Health = "weak"
	case stats.HasAverageSNR && stats.AverageSNR > 5.0:
		stats.Health = "excellent"
	case stats.HasAverageSNR && stats.AverageSNR > 0.0:
		stats.Health = "good"
	default:
		stats.Health = "fair"
	}
	return stats
}

func isNeighbor(n NodeRecord, now time.Time) bool {
	return n.HasSNR && heardWithin(n, now, activeWindow)
}

func heardWithin(n NodeRecord, now time.Time, window time.Duration) bool {
	if n.LastHeard == 0 {
		return false
	}
	heard := time.Unix(int64(n.LastHeard), 0)
	if heard.After(now) {
		return true
	}
	return now.Sub(heard) < window
}
