package overpass

import (
	"encoding/json"
	"io"
)

type rawResponse struct {
	Generator string
	Elements  []rawElement
}

type rawElement struct {
	Type string

	// meta
	ID   int64
	Tags map[string]string

	// node
	Lat float64
	Lon float64

	// way
	Nodes []int64

	// relation
	Members []rawMember
}

type rawMember struct {
	Type string
	Ref  int64
	Role string
}

func ParseJSON(v io.Reader) (*Response, error) {
	var resp rawResponse
	err := json.NewDecoder(v).Decode(&resp)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Generator: resp.Generator,
		Count:     len(resp.Elements),
		Nodes:     make(map[int64]*Node),
		Ways:      make(map[int64]*Way),
		Relations: make(map[int64]*Relation),
	}

	// Ways may be listed before the nodes they reference when recursing down,
	// so nodes are indexed first.
	for _, el := range resp.Elements {
		if el.Type == "node" {
			response.Nodes[el.ID] = &Node{
				Meta: Meta{
					ID:   el.ID,
					Tags: el.Tags,
				},
				Lat: el.Lat,
				Lon: el.Lon,
			}
		}
	}

	for _, el := range resp.Elements {
		switch el.Type {
		case "way":
			way := &Way{
				Meta: Meta{
					ID:   el.ID,
					Tags: el.Tags,
				},
				Nodes: make([]*Node, len(el.Nodes)),
			}
			for i, nodeID := range el.Nodes {
				way.Nodes[i] = response.Nodes[nodeID]
			}
			response.Ways[el.ID] = way
		case "relation":
			rel := &Relation{
				Meta: Meta{
					ID:   el.ID,
					Tags: el.Tags,
				},
				Members: make([]Member, len(el.Members)),
			}
			for i, m := range el.Members {
				rel.Members[i] = Member{Type: m.Type, Ref: m.Ref, Role: m.Role}
			}
			response.Relations[el.ID] = rel
		}
	}

	return response, nil
}
