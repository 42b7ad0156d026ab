package earthengine

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionExpression(t *testing.T) {
	r := DateRange{Start: day("2020-01-01"), End: day("2021-01-01")}
	expr := RegionExpression("LANDSAT/LC08/C01/T1", []string{"B4", "B3"}, r, orb.Point{-3.6833, 40.415}, 10)

	got, err := json.Marshal(expr)
	require.NoError(t, err)

	expected := `{
	  "result": "1",
	  "values": {
	    "0": {"functionInvocationValue": {
	      "functionName": "Image.select",
	      "arguments": {
	        "input": {"argumentReference": "_MAPPING_VAR_0_0"},
	        "bandSelectors": {"arrayValue": {"values": [{"constantValue": "B4"}, {"constantValue": "B3"}]}}
	      }
	    }},
	    "1": {"functionInvocationValue": {
	      "functionName": "ImageCollection.getRegion",
	      "arguments": {
	        "collection": {"functionInvocationValue": {
	          "functionName": "Collection.filter",
	          "arguments": {
	            "collection": {"functionInvocationValue": {
	              "functionName": "Collection.map",
	              "arguments": {
	                "collection": {"functionInvocationValue": {
	                  "functionName": "ImageCollection.load",
	                  "arguments": {"id": {"constantValue": "LANDSAT/LC08/C01/T1"}}
	                }},
	                "baseAlgorithm": {"functionDefinitionValue": {"argumentNames": ["_MAPPING_VAR_0_0"], "body": "0"}}
	              }
	            }},
	            "filter": {"functionInvocationValue": {
	              "functionName": "Filter.dateRangeContains",
	              "arguments": {
	                "leftValue": {"functionInvocationValue": {
	                  "functionName": "DateRange",
	                  "arguments": {
	                    "start": {"functionInvocationValue": {"functionName": "Date", "arguments": {"value": {"constantValue": "2020-01-01"}}}},
	                    "end": {"functionInvocationValue": {"functionName": "Date", "arguments": {"value": {"constantValue": "2021-01-01"}}}}
	                  }
	                }},
	                "rightField": {"constantValue": "system:time_start"}
	              }
	            }}
	          }
	        }},
	        "geometry": {"functionInvocationValue": {
	          "functionName": "GeometryConstructors.Point",
	          "arguments": {"coordinates": {"constantValue": [-3.6833, 40.415]}}
	        }},
	        "scale": {"constantValue": 10}
	      }
	    }}
	  }
	}`
	assert.JSONEq(t, expected, string(got))
}

func TestMeanImageExpressionClipsToBound(t *testing.T) {
	r := DateRange{Start: day("2020-01-01"), End: day("2020-01-08")}
	bound := orb.Bound{Min: orb.Point{-9.4, 35.9}, Max: orb.Point{3.0, 43.7}}
	expr := MeanImageExpression("LANDSAT/LC08/C01/T1", []string{"B4"}, r, bound, 30)

	require.Contains(t, expr.Values, expr.Result)
	got, err := json.Marshal(expr.Values[expr.Result])
	require.NoError(t, err)

	var decoded struct {
		FunctionInvocationValue struct {
			FunctionName string `json:"functionName"`
			Arguments    struct {
				Input struct {
					FunctionInvocationValue struct {
						FunctionName string `json:"functionName"`
					} `json:"functionInvocationValue"`
				} `json:"input"`
				Geometry struct {
					FunctionInvocationValue struct {
						Arguments struct {
							Coordinates struct {
								ConstantValue []float64 `json:"constantValue"`
							} `json:"coordinates"`
						} `json:"arguments"`
					} `json:"functionInvocationValue"`
				} `json:"geometry"`
			} `json:"arguments"`
		} `json:"functionInvocationValue"`
	}
	require.NoError(t, json.Unmarshal(got, &decoded))

	inv := decoded.FunctionInvocationValue
	assert.Equal(t, "Image.clipToBoundsAndScale", inv.FunctionName)
	assert.Equal(t, "reduce.mean", inv.Arguments.Input.FunctionInvocationValue.FunctionName)
	assert.Equal(t, []float64{-9.4, 35.9, 3.0, 43.7},
		inv.Arguments.Geometry.FunctionInvocationValue.Arguments.Coordinates.ConstantValue)
}
