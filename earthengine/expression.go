package earthengine

import (
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Node is one value of a serialized Earth Engine expression graph.
type Node map[string]any

func Constant(v any) Node {
	return Node{"constantValue": v}
}

func Invoke(function string, args map[string]Node) Node {
	return Node{"functionInvocationValue": map[string]any{
		"functionName": function,
		"arguments":    args,
	}}
}

func Array(values ...Node) Node {
	return Node{"arrayValue": map[string]any{"values": values}}
}

func ArgumentReference(name string) Node {
	return Node{"argumentReference": name}
}

func ValueReference(ref string) Node {
	return Node{"valueReference": ref}
}

// FunctionDefinition defines an anonymous function whose body is the value
// stored under body.
func FunctionDefinition(argumentNames []string, body string) Node {
	return Node{"functionDefinitionValue": map[string]any{
		"argumentNames": argumentNames,
		"body":          body,
	}}
}

type Expression struct {
	Values map[string]Node `json:"values"`
	Result string          `json:"result"`
}

// builder assigns sequential keys to shared values.
type builder struct {
	values map[string]Node
}

func newBuilder() *builder {
	return &builder{values: make(map[string]Node)}
}

func (b *builder) add(n Node) string {
	key := strconv.Itoa(len(b.values))
	b.values[key] = n
	return key
}

func (b *builder) expression(result Node) Expression {
	return Expression{Values: b.values, Result: b.add(result)}
}

const mappingVar = "_MAPPING_VAR_0_0"

func dateNode(t time.Time) Node {
	return Invoke("Date", map[string]Node{"value": Constant(t.UTC().Format(time.DateOnly))})
}

// filteredCollection loads collection, selects bands in every image and keeps
// images acquired in [start, end).
func (b *builder) filteredCollection(collection string, bands []string, start, end time.Time) Node {
	selectors := make([]Node, len(bands))
	for i, band := range bands {
		selectors[i] = Constant(band)
	}

	selectBody := b.add(Invoke("Image.select", map[string]Node{
		"input":         ArgumentReference(mappingVar),
		"bandSelectors": Array(selectors...),
	}))

	selected := Invoke("Collection.map", map[string]Node{
		"collection":    Invoke("ImageCollection.load", map[string]Node{"id": Constant(collection)}),
		"baseAlgorithm": FunctionDefinition([]string{mappingVar}, selectBody),
	})

	return Invoke("Collection.filter", map[string]Node{
		"collection": selected,
		"filter": Invoke("Filter.dateRangeContains", map[string]Node{
			"leftValue": Invoke("DateRange", map[string]Node{
				"start": dateNode(start),
				"end":   dateNode(end),
			}),
			"rightField": Constant("system:time_start"),
		}),
	})
}

// RegionExpression samples every image of the filtered collection at point.
// The result is a table whose first row is the header
// [id, longitude, latitude, time, bands...].
func RegionExpression(collection string, bands []string, r DateRange, point orb.Point, scale float64) Expression {
	b := newBuilder()
	coll := b.filteredCollection(collection, bands, r.Start, r.End)
	return b.expression(Invoke("ImageCollection.getRegion", map[string]Node{
		"collection": coll,
		"geometry": Invoke("GeometryConstructors.Point", map[string]Node{
			"coordinates": Constant([]float64{point.Lon(), point.Lat()}),
		}),
		"scale": Constant(scale),
	}))
}

// MeanImageExpression averages the filtered collection into one image clipped
// to bound.
func MeanImageExpression(collection string, bands []string, r DateRange, bound orb.Bound, scale float64) Expression {
	b := newBuilder()
	coll := b.filteredCollection(collection, bands, r.Start, r.End)
	return b.expression(Invoke("Image.clipToBoundsAndScale", map[string]Node{
		"input": Invoke("reduce.mean", map[string]Node{"collection": coll}),
		"geometry": Invoke("GeometryConstructors.Rectangle", map[string]Node{
			"coordinates": Constant([]float64{bound.Left(), bound.Bottom(), bound.Right(), bound.Top()}),
			"geodesic":    Constant(false),
		}),
		"scale": Constant(scale),
	}))
}
