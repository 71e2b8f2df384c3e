package persona

import (
	"math/rand/v2"

	"github.com/ashureev/salesdrill/internal/domain"
)

type weighted[T any] struct {
	value  T
	weight float64
}

var (
	educationLevels = []weighted[string]{
		{"High School", 0.6}, {"College", 0.3}, {"Graduate", 0.1},
	}
	incomeLevels = []weighted[string]{
		{"Low", 0.7}, {"Medium", 0.25}, {"High", 0.05},
	}
	jobTypes = []weighted[string]{
		{"Agriculture/Farming", 0.3},
		{"Service/Small Business", 0.3},
		{"Office Worker/Clerical", 0.2},
		{"Professional/Teacher/Engineer", 0.1},
		{"Self-employed/Entrepreneur", 0.1},
	}
	riskAttitudes = []weighted[string]{
		{"Risk-Averse", 0.8}, {"Moderate", 0.15}, {"Risk-Seeking", 0.05},
	}
	channels = []weighted[string]{
		{"Offline", 0.8}, {"Online", 0.2},
	}
	salesAcceptance = []weighted[string]{
		{"High Acceptance", 0.6}, {"Medium Acceptance", 0.3}, {"Low Acceptance", 0.1},
	}
	mbtiTypes = []weighted[string]{
		{"ISTJ", 11.6}, {"ISFJ", 13.8}, {"INFJ", 1.5}, {"INTJ", 2.1},
		{"ISTP", 5.4}, {"ISFP", 8.8}, {"INFP", 4.4}, {"INTP", 3.3},
		{"ESTP", 4.3}, {"ESFP", 8.5}, {"ENFP", 8.1}, {"ENTP", 2.7},
		{"ESTJ", 8.7}, {"ESFJ", 12.3}, {"ENFJ", 2.5}, {"ENTJ", 1.8},
	}
)

const (
	minAge = 18
	maxAge = 65

	lifeInsuranceRate = 0.11
)

// Sampler draws synthetic insurance customers.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with seed. The same seed yields the
// same sequence of personas.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sample draws one persona.
func (s *Sampler) Sample() domain.Persona {
	age := s.age()
	marital := s.maritalStatus(age)
	return domain.Persona{
		"age":                age,
		"gender":             s.choose([]weighted[string]{{"Male", 1}, {"Female", 1}}),
		"marital_status":     marital,
		"education":          s.choose(educationLevels),
		"income":             s.choose(incomeLevels),
		"job_type":           s.choose(jobTypes),
		"has_life_insurance": s.rng.Float64() < lifeInsuranceRate,
		"insurance_interest": insuranceInterest(marital, age),
		"family_structure":   map[string]any{"family_size": s.familySize(marital)},
		"risk_attitude":      s.choose(riskAttitudes),
		"preferred_channel":  s.choose(channels),
		"sales_acceptance":   s.choose(salesAcceptance),
		"mbti":               s.choose(mbtiTypes),
	}
}

// SampleN draws n personas.
func (s *Sampler) SampleN(n int) []domain.Persona {
	out := make([]domain.Persona, 0, n)
	for range n {
		out = append(out, s.Sample())
	}
	return out
}

func (s *Sampler) age() int {
	age := int(s.rng.NormFloat64()*10 + 33)
	return max(minAge, min(age, maxAge))
}

func (s *Sampler) maritalStatus(age int) string {
	switch {
	case age < 30:
		return s.choose([]weighted[string]{{"Single", 0.7}, {"Married", 0.3}})
	case age < 50:
		return s.choose([]weighted[string]{{"Single", 0.2}, {"Married", 0.8}})
	default:
		return s.choose([]weighted[string]{{"Married", 0.85}, {"Widowed/Divorced", 0.15}})
	}
}

func (s *Sampler) familySize(marital string) int {
	if marital == "Married" {
		return 3 + s.rng.IntN(3)
	}
	return 1 + s.rng.IntN(3)
}

func insuranceInterest(marital string, age int) []string {
	interests := []string{"Health Insurance/Critical Illness"}
	if marital == "Married" {
		interests = append(interests, "Life Insurance/Savings")
		if age >= 30 {
			interests = append(interests, "Child Education")
		}
		if age >= 50 {
			interests = append(interests, "Retirement Pension")
		}
	}
	if age < 40 {
		interests = append(interests, "Accident Insurance")
	}
	return interests
}

func (s *Sampler) choose(options []weighted[string]) string {
	var total float64
	for _, o := range options {
		total += o.weight
	}
	r := s.rng.Float64() * total
	for _, o := range options {
		if r < o.weight {
			return o.value
		}
		r -= o.weight
	}
	return options[len(options)-1].value
}
