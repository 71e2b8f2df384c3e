package persona

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestProperty_SamplerInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := NewSampler(rapid.Uint64().Draw(rt, "seed")).Sample()

		age, ok := p["age"].(int)
		require.True(rt, ok)
		require.GreaterOrEqual(rt, age, minAge)
		require.LessOrEqual(rt, age, maxAge)

		marital := p["marital_status"].(string)
		switch {
		case age < 50:
			require.Contains(rt, []string{"Single", "Married"}, marital)
		default:
			require.Contains(rt, []string{"Married", "Widowed/Divorced"}, marital)
		}

		size := p["family_structure"].(map[string]any)["family_size"].(int)
		if marital == "Married" {
			require.True(rt, size >= 3 && size <= 5, "married family size %d", size)
		} else {
			require.True(rt, size >= 1 && size <= 3, "family size %d", size)
		}

		interests := p["insurance_interest"].([]string)
		require.Equal(rt, "Health Insurance/Critical Illness", interests[0])
		require.Equal(rt, age < 40, slices.Contains(interests, "Accident Insurance"))
		require.Equal(rt, marital == "Married", slices.Contains(interests, "Life Insurance/Savings"))

		_, err := p.Render()
		require.NoError(rt, err)
	})
}

func TestSamplerDeterministic(t *testing.T) {
	a := NewSampler(42).SampleN(5)
	b := NewSampler(42).SampleN(5)
	require.Equal(t, a, b)
	require.Len(t, a, 5)
}

func TestSamplerMBTIFromKnownTypes(t *testing.T) {
	s := NewSampler(7)
	known := make([]string, 0, len(mbtiTypes))
	for _, w := range mbtiTypes {
		known = append(known, w.value)
	}
	for _, p := range s.SampleN(200) {
		require.Contains(t, known, p["mbti"])
	}
}

func TestInsuranceInterest(t *testing.T) {
	tests := []struct {
		marital string
		age     int
		want    []string
	}{
		{"Single", 25, []string{"Health Insurance/Critical Illness", "Accident Insurance"}},
		{"Married", 35, []string{"Health Insurance/Critical Illness", "Life Insurance/Savings", "Child Education", "Accident Insurance"}},
		{"Married", 55, []string{"Health Insurance/Critical Illness", "Life Insurance/Savings", "Child Education", "Retirement Pension"}},
		{"Widowed/Divorced", 60, []string{"Health Insurance/Critical Illness"}},
	}
	for _, tt := range tests {
		if got := insuranceInterest(tt.marital, tt.age); !slices.Equal(got, tt.want) {
			t.Errorf("insuranceInterest(%q, %d) = %v, want %v", tt.marital, tt.age, got, tt.want)
		}
	}
}
