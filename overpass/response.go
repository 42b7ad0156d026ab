package overpass

import "github.com/paulmach/orb"

type Response struct {
	Generator string
	Count     int
	Nodes     map[int64]*Node
	Ways      map[int64]*Way
	Relations map[int64]*Relation
}

type Meta struct {
	ID   int64
	Tags map[string]string
}

type Node struct {
	Meta
	Lon float64
	Lat float64
}

func (n *Node) Point() orb.Point {
	return orb.Point{n.Lon, n.Lat}
}

type Way struct {
	Meta
	// Nodes holds nil entries for nodes missing from the response.
	Nodes []*Node
}

// Complete reports whether every node of the way was present in the response.
func (w *Way) Complete() bool {
	for _, n := range w.Nodes {
		if n == nil {
			return false
		}
	}
	return len(w.Nodes) > 0
}

func (w *Way) IsClosed() bool {
	return w.Complete() && len(w.Nodes) >= 4 && w.Nodes[0].ID == w.Nodes[len(w.Nodes)-1].ID
}

func (w *Way) LineString() orb.LineString {
	ls := make(orb.LineString, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		if n != nil {
			ls = append(ls, n.Point())
		}
	}
	return ls
}

// Ring returns the way as a closed ring. ok is false for open ways.
func (w *Way) Ring() (orb.Ring, bool) {
	if !w.IsClosed() {
		return nil, false
	}
	return orb.Ring(w.LineString()), true
}

type Relation struct {
	Meta
	Members []Member
}

type Member struct {
	Type string
	Ref  int64
	Role string
}
