package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Matches(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		attrs  map[string]Value
		want   bool
	}{
		{
			name:   "exact string match",
			policy: `{"eventType":["order.created"]}`,
			attrs:  map[string]Value{"eventType": {Strings: []string{"order.created"}, IsSet: true}},
			want:   true,
		},
		{
			name:   "exact string mismatch",
			policy: `{"eventType":["order.created"]}`,
			attrs:  map[string]Value{"eventType": {Strings: []string{"order.updated"}, IsSet: true}},
			want:   false,
		},
		{
			name:   "missing key never matches exact rule",
			policy: `{"eventType":["order.created"]}`,
			attrs:  map[string]Value{},
			want:   false,
		},
		{
			name:   "exists true",
			policy: `{"eventType":[{"exists":true}]}`,
			attrs:  map[string]Value{"eventType": {Strings: []string{"x"}, IsSet: true}},
			want:   true,
		},
		{
			name:   "exists false on absent key",
			policy: `{"eventType":[{"exists":false}]}`,
			attrs:  map[string]Value{},
			want:   true,
		},
		{
			name:   "prefix",
			policy: `{"store":[{"prefix":"example_corp"}]}`,
			attrs:  map[string]Value{"store": {Strings: []string{"example_corp_widgets"}, IsSet: true}},
			want:   true,
		},
		{
			name:   "suffix",
			policy: `{"file":[{"suffix":".png"}]}`,
			attrs:  map[string]Value{"file": {Strings: []string{"cat.png"}, IsSet: true}},
			want:   true,
		},
		{
			name:   "equals-ignore-case",
			policy: `{"customer_interests":[{"equals-ignore-case": "rugby"}]}`,
			attrs:  map[string]Value{"customer_interests": {Strings: []string{"RUGBY"}, IsSet: true}},
			want:   true,
		},
		{
			name:   "anything-but scalar",
			policy: `{"price":[{"anything-but": 100}]}`,
			attrs:  map[string]Value{"price": {Numbers: []float64{150}, IsSet: true}},
			want:   true,
		},
		{
			name:   "anything-but excludes match",
			policy: `{"color":[{"anything-but": ["red", "green"]}]}`,
			attrs:  map[string]Value{"color": {Strings: []string{"red"}, IsSet: true}},
			want:   false,
		},
		{
			name:   "numeric range",
			policy: `{"price":[{"numeric": [">=", 100, "<", 200]}]}`,
			attrs:  map[string]Value{"price": {Numbers: []float64{150}, IsSet: true}},
			want:   true,
		},
		{
			name:   "numeric out of range",
			policy: `{"price":[{"numeric": [">=", 100, "<", 200]}]}`,
			attrs:  map[string]Value{"price": {Numbers: []float64{250}, IsSet: true}},
			want:   false,
		},
		{
			name:   "cidr v4 match",
			policy: `{"ip":[{"cidr": "10.0.0.0/24"}]}`,
			attrs:  map[string]Value{"ip": {Strings: []string{"10.0.0.5"}, IsSet: true}},
			want:   true,
		},
		{
			name:   "cidr v4 no match",
			policy: `{"ip":[{"cidr": "10.0.0.0/24"}]}`,
			attrs:  map[string]Value{"ip": {Strings: []string{"10.0.1.5"}, IsSet: true}},
			want:   false,
		},
		{
			name:   "cidr v6 slash zero matches all",
			policy: `{"ip":[{"cidr": "::/0"}]}`,
			attrs:  map[string]Value{"ip": {Strings: []string{"2001:db8::1"}, IsSet: true}},
			want:   true,
		},
		{
			name:   "multiple keys all required",
			policy: `{"eventType":["order.created"],"region":["us"]}`,
			attrs: map[string]Value{
				"eventType": {Strings: []string{"order.created"}, IsSet: true},
				"region":    {Strings: []string{"eu"}, IsSet: true},
			},
			want: false,
		},
		{
			name:   "or within a key",
			policy: `{"eventType":["order.created","order.updated"]}`,
			attrs:  map[string]Value{"eventType": {Strings: []string{"order.updated"}, IsSet: true}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.policy))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Matches(tt.attrs))
		})
	}
}

func TestParse_InvalidPolicy(t *testing.T) {
	_, err := Parse([]byte(`{"x":[{"cidr":"not-a-cidr"}]}`))
	require.Error(t, err)
}

func TestNilPolicyMatchesEverything(t *testing.T) {
	var p *Policy
	assert.True(t, p.Matches(map[string]Value{"a": {Strings: []string{"b"}, IsSet: true}}))
}
