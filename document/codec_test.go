package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalMarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"null", `null`},
		{"bool true", `true`},
		{"int", `42`},
		{"negative int", `-17`},
		{"float", `3.5`},
		{"string", `"hello"`},
		{"empty array", `[]`},
		{"empty object", `{}`},
		{"nested", `{"a":1,"b":[1,2,3],"c":{"d":"e"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Unmarshal([]byte(tt.json))
			require.NoError(t, err)
			out, err := Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(out))
		})
	}
}

func TestUnmarshalPreservesFieldOrder(t *testing.T) {
	v, err := Unmarshal([]byte(`{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind)

	var keys []string
	for pair := v.Obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)

	out, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":3}`, string(out))
}

func TestUnmarshalNumberKinds(t *testing.T) {
	i, err := Unmarshal([]byte(`5`))
	require.NoError(t, err)
	assert.Equal(t, NumInt64, i.Num.Kind)

	u, err := Unmarshal([]byte(`18446744073709551615`)) // math.MaxUint64
	require.NoError(t, err)
	assert.Equal(t, NumUint64, u.Num.Kind)

	f, err := Unmarshal([]byte(`5.5`))
	require.NoError(t, err)
	assert.Equal(t, NumFloat64, f.Num.Kind)
}

func TestValueEqualCrossesNumberRepresentation(t *testing.T) {
	a := NewNumber(NumberFromInt64(2))
	b := NewNumber(NumberFromFloat64(2.0))
	assert.True(t, a.Equal(b))
}

func TestGeoPoint(t *testing.T) {
	v, err := Unmarshal([]byte(`{"lat":40.7,"lon":-74.0}`))
	require.NoError(t, err)
	lat, lon, ok := v.GeoPoint()
	require.True(t, ok)
	assert.InDelta(t, 40.7, lat, 0.0001)
	assert.InDelta(t, -74.0, lon, 0.0001)

	bad, err := Unmarshal([]byte(`{"lat":200,"lon":0}`))
	require.NoError(t, err)
	_, _, ok = bad.GeoPoint()
	assert.False(t, ok)
}
