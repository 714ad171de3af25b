package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolume_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"number", "1.5", "1.5000"},
		{"string", `"1.5"`, "1.5000"},
		{"integer", "42", "42.0000"},
		{"negative", "-0.25", "-0.2500"},
		{"extra digits truncated", `"3.14159"`, "3.1415"},
		{"null", "null", "0.0000"},
		// Exponent form comes from JSON encoders that normalize numbers;
		// it goes through float parsing.
		{"exponent number", "1.5e2", "150.0000"},
		{"exponent string", `"2.5E-1"`, "0.2500"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v Volume
			require.NoError(t, json.Unmarshal([]byte(tc.in), &v))
			assert.Equal(t, tc.want, v.String())
		})
	}

	var v Volume
	assert.Error(t, json.Unmarshal([]byte(`"not a number"`), &v))
}

func TestVolume_MarshalRoundTrip(t *testing.T) {
	v := NewVolumeFromFloat64(12.3456)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "12.3456", string(data))

	var back Volume
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)
}
