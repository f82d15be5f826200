package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	record := map[string]interface{}{
		"amount": float64(250),
		"customer": map[string]interface{}{
			"name": "Ada",
			"address": map[string]interface{}{
				"zip": "10115",
			},
			"tags":  []interface{}{"vip"},
			"email": nil,
		},
		"meta": map[string]string{"region": "eu"},
	}

	cases := []struct {
		name string
		path string
		want interface{}
	}{
		{"top level", "amount", float64(250)},
		{"nested", "customer.address.zip", "10115"},
		{"nested mapping value", "customer.address", map[string]interface{}{"zip": "10115"}},
		{"string map", "meta.region", "eu"},
		{"missing leaf", "customer.address.city", nil},
		{"missing branch", "shipping.address.zip", nil},
		{"through scalar", "amount.value", nil},
		{"through list", "customer.tags.0", nil},
		{"through null", "customer.email.domain", nil},
		{"empty path", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(record, tc.path))
		})
	}

	assert.Nil(t, Resolve(nil, "amount"))
}
