package graph

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(id string) *Node {
	return Invoke("ImageCollection.load", Args{"id": Constant(id)})
}

func TestEncodeInvocationChain(t *testing.T) {
	img := Invoke("Image.load", Args{"id": Constant("MODIS/061/MOD11A2/2020_01_01")})
	root := Invoke("Image.select", Args{
		"input":         img,
		"bandSelectors": Constant([]string{"LST_Day_1km"}),
	})

	expr, err := Encode(root)
	require.NoError(t, err)

	want := &Expression{
		Result: "1",
		Values: map[string]ValueNode{
			"0": {FunctionInvocationValue: &FunctionInvocation{
				FunctionName: "Image.load",
				Arguments: map[string]ValueNode{
					"id": {ConstantValue: json.RawMessage(`"MODIS/061/MOD11A2/2020_01_01"`)},
				},
			}},
			"1": {FunctionInvocationValue: &FunctionInvocation{
				FunctionName: "Image.select",
				Arguments: map[string]ValueNode{
					"bandSelectors": {ConstantValue: json.RawMessage(`["LST_Day_1km"]`)},
					"input":         {ValueReference: "0"},
				},
			}},
		},
	}
	if diff := cmp.Diff(want, expr); diff != "" {
		t.Fatalf("unexpected expression (-want +got):\n%s", diff)
	}
}

func TestEncodeDeduplicatesIdenticalSubtrees(t *testing.T) {
	root := Invoke("ImageCollection.merge", Args{
		"collection1": load("MODIS/061/MOD13Q1"),
		"collection2": load("MODIS/061/MOD13Q1"),
	})

	expr, err := Encode(root)
	require.NoError(t, err)

	assert.Len(t, expr.Values, 2)
	args := expr.Values[expr.Result].FunctionInvocationValue.Arguments
	assert.Equal(t, args["collection1"].ValueReference, args["collection2"].ValueReference)
}

func TestEncodeLambda(t *testing.T) {
	body := Invoke("Image.select", Args{
		"input":         Arg("_MAPPING_VAR_0_0"),
		"bandSelectors": Constant([]string{"NDVI"}),
	})
	root := Invoke("Collection.map", Args{
		"collection":    load("MODIS/061/MOD13Q1"),
		"baseAlgorithm": Lambda(body, "_MAPPING_VAR_0_0"),
	})

	expr, err := Encode(root)
	require.NoError(t, err)
	require.Len(t, expr.Values, 4)

	mapCall := expr.Values[expr.Result].FunctionInvocationValue
	require.NotNil(t, mapCall)
	assert.Equal(t, "Collection.map", mapCall.FunctionName)

	fn := expr.Values[mapCall.Arguments["baseAlgorithm"].ValueReference].FunctionDefinitionValue
	require.NotNil(t, fn)
	assert.Equal(t, []string{"_MAPPING_VAR_0_0"}, fn.ArgumentNames)

	selectCall := expr.Values[fn.Body].FunctionInvocationValue
	require.NotNil(t, selectCall)
	assert.Equal(t, "_MAPPING_VAR_0_0", selectCall.Arguments["input"].ArgumentReference)
}

func TestEncodeKeepsZeroConstants(t *testing.T) {
	expr, err := Encode(Invoke("Image.constant", Args{"value": Constant(0)}))
	require.NoError(t, err)

	data, err := json.Marshal(expr)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"result": "0",
		"values": {"0": {"functionInvocationValue": {
			"functionName": "Image.constant",
			"arguments": {"value": {"constantValue": 0}}
		}}}
	}`, string(data))
}

func TestEncodeArraysAndDictionaries(t *testing.T) {
	root := Invoke("ImageCollection.fromImages", Args{
		"images": Array(
			Invoke("Image.constant", Args{"value": Constant(1)}),
			Invoke("Image.constant", Args{"value": Constant(2)}),
		),
		"properties": Dict(map[string]*Node{"label": Constant("x")}),
	})

	expr, err := Encode(root)
	require.NoError(t, err)

	args := expr.Values[expr.Result].FunctionInvocationValue.Arguments
	require.NotNil(t, args["images"].ArrayValue)
	assert.Len(t, args["images"].ArrayValue.Values, 2)
	require.NotNil(t, args["properties"].DictionaryValue)
	assert.Equal(t, json.RawMessage(`"x"`), args["properties"].DictionaryValue.Values["label"].ConstantValue)
}

func TestEncodeIsDeterministic(t *testing.T) {
	build := func() *Node {
		return Invoke("Image.add", Args{
			"image1": Invoke("Image.constant", Args{"value": Constant(1.5)}),
			"image2": Invoke("Image.multiply", Args{
				"image1": Invoke("Image.constant", Args{"value": Constant(2)}),
				"image2": Invoke("Image.constant", Args{"value": Constant(3)}),
			}),
		})
	}
	first, err := MarshalIndent(build())
	require.NoError(t, err)
	second, err := MarshalIndent(build())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrNilNode)

	_, err = Encode(Invoke("", nil))
	assert.ErrorIs(t, err, ErrNoFunctionName)

	_, err = Encode(Invoke("Image.select", Args{"input": Arg("img")}))
	assert.ErrorIs(t, err, ErrUnboundArgument)

	_, err = Encode(Invoke("Image.select", Args{"input": nil}))
	assert.ErrorIs(t, err, ErrNilNode)
}

func TestNodeAccessors(t *testing.T) {
	n := Invoke("Image.select", Args{"input": Constant(1)})
	assert.Equal(t, "Image.select", n.FunctionName())
	assert.NotNil(t, n.Argument("input"))
	assert.Nil(t, n.Argument("missing"))
	assert.Equal(t, "", Constant(1).FunctionName())
}
