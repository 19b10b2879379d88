package screening

import (
	"fmt"
	"math"
	"math/rand"
)

// DiopterRange is the inclusive diopter range of an age bracket.
type DiopterRange struct {
	Min float64
	Max float64
}

// DiopterRangeFor returns the prescription range for an age. Ages below 45
// share the first bracket.
func DiopterRangeFor(age int) DiopterRange {
	switch {
	case age >= 65:
		return DiopterRange{Min: 2.50, Max: 3.50}
	case age >= 55:
		return DiopterRange{Min: 2.00, Max: 2.75}
	case age >= 45:
		return DiopterRange{Min: 1.50, Max: 2.25}
	default:
		return DiopterRange{Min: 1.00, Max: 1.50}
	}
}

var maleFirstNames = []string{
	"Raj", "Amit", "Suresh", "Ramesh", "Vijay", "Arun", "Ravi", "Sanjay", "Deepak", "Manoj",
	"Ashok", "Anil", "Rakesh", "Mohit", "Rahul", "Pradeep", "Vinod", "Sunil", "Ajay", "Ganesh",
	"Kiran", "Naveen", "Prasad", "Santosh", "Harish", "Rajesh", "Dinesh", "Mukesh", "Pankaj", "Anand",
}

var femaleFirstNames = []string{
	"Priya", "Anita", "Kavita", "Sunita", "Rekha", "Meera", "Radha", "Lakshmi", "Pooja", "Neha",
	"Asha", "Geeta", "Sita", "Nisha", "Anjali", "Deepa", "Rani", "Shanti", "Kamala", "Sarita",
	"Divya", "Swati", "Preeti", "Ritu", "Sneha", "Vandana", "Usha", "Jyoti", "Kalpana", "Madhuri",
}

var lastNames = []string{
	"Kumar", "Sharma", "Patel", "Singh", "Verma", "Gupta", "Shah", "Reddy", "Rao", "Nair",
	"Mehta", "Joshi", "Agarwal", "Mishra", "Pandey", "Desai", "Yadav", "Tiwari", "Bhatt", "Pillai",
	"Iyer", "Menon", "Das", "Banerjee", "Chakraborty", "Jain", "Malhotra", "Kapoor", "Chaudhary", "Thakur",
}

// Generator produces synthetic screening populations. It is not safe for
// concurrent use; the underlying rand.Rand is not.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing from src. A fixed seed gives a
// reproducible population.
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// NewSeededGenerator is shorthand for NewGenerator(rand.NewSource(seed)).
func NewSeededGenerator(seed int64) *Generator {
	return NewGenerator(rand.NewSource(seed))
}

// Generate returns count records with ids 1..count. Non-positive counts give
// an empty population.
func (g *Generator) Generate(count int) []PatientRecord {
	if count <= 0 {
		return []PatientRecord{}
	}
	records := make([]PatientRecord, 0, count)
	for i := 0; i < count; i++ {
		gender := GenderFemale
		if g.rng.Float64() < 0.55 {
			gender = GenderMale
		}
		age := g.age()

		records = append(records, PatientRecord{
			ID:              i + 1,
			Name:            g.name(gender),
			Age:             age,
			AadhaarID:       g.aadhaar(),
			Occupation:      Occupations[g.rng.Intn(len(Occupations))],
			Gender:          gender,
			City:            Cities[g.rng.Intn(len(Cities))],
			PreviousGlasses: g.rng.Float64() < 0.30,
			DiopterStrength: g.diopter(age),
		})
	}
	return records
}

// age draws from the piecewise distribution 20/35/30/15 over the brackets
// [35,45), [45,55), [55,65), [65,76).
func (g *Generator) age() int {
	r := g.rng.Float64()
	switch {
	case r < 0.20:
		return 35 + g.rng.Intn(10)
	case r < 0.55:
		return 45 + g.rng.Intn(10)
	case r < 0.85:
		return 55 + g.rng.Intn(10)
	default:
		return 65 + g.rng.Intn(11)
	}
}

// diopter samples the bracket range uniformly and rounds to the nearest
// quarter. Range bounds are quarter multiples, so rounding stays in range.
func (g *Generator) diopter(age int) float64 {
	rng := DiopterRangeFor(age)
	d := rng.Min + g.rng.Float64()*(rng.Max-rng.Min)
	return QuantizeDiopter(d)
}

// QuantizeDiopter rounds a diopter value to the nearest 0.25.
func QuantizeDiopter(d float64) float64 {
	return math.Round(d*4) / 4
}

func (g *Generator) name(gender Gender) string {
	first := femaleFirstNames
	if gender == GenderMale {
		first = maleFirstNames
	}
	return first[g.rng.Intn(len(first))] + " " + lastNames[g.rng.Intn(len(lastNames))]
}

func (g *Generator) aadhaar() string {
	return fmt.Sprintf("%04d %04d %04d", g.rng.Intn(10000), g.rng.Intn(10000), g.rng.Intn(10000))
}
