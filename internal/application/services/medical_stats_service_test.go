package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/infrastructure/clients/estat"
)

func TestCountsByCategory_KeepsSmallCounts(t *testing.T) {
	counts := countsByCategory([]estat.DataValue{
		{Cat: "病院", Value: "40", Unit: "施設"},
		{Cat: "一般診療所", Value: "1,230", Unit: "施設"},
		{Cat: "歯科診療所", Value: "-", Unit: "施設"},
	})

	require.NotNil(t, counts)
	assert.Equal(t, 40, counts["病院"])
	assert.Equal(t, 1230, counts["一般診療所"])
	assert.NotContains(t, counts, "歯科診療所")
}

func TestParseCountValue(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"40", 40, true},
		{"3", 3, true},
		{"1,230", 1230, true},
		{"0", 0, true},
		{"-", 0, false},
		{"***", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseCountValue(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.raw)
		}
	}
}

func TestRatesByCategory(t *testing.T) {
	rates := ratesByCategory([]estat.DataValue{
		{Cat: "外来受療率", Value: "5,696"},
		{Cat: "入院受療率", Value: "960"},
		{Time: "2023", Value: "不明"},
	})

	require.NotNil(t, rates)
	assert.InDelta(t, 5696.0, rates["外来受療率"], 0.001)
	assert.InDelta(t, 960.0, rates["入院受療率"], 0.001)
	assert.NotContains(t, rates, "2023")
}
