package screening

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinAge = 35
	MaxAge = 75
)

// Gender is the binary gender recorded at screening.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Cities is the fixed set of screening locations.
var Cities = []string{
	"Mumbai", "Delhi", "Bangalore", "Chennai", "Kolkata",
	"Hyderabad", "Pune", "Ahmedabad", "Jaipur", "Lucknow",
	"Surat", "Kanpur", "Nagpur", "Indore", "Patna",
}

// Occupations is the fixed set of recorded occupations.
var Occupations = []string{
	"Office Worker", "Teacher", "Farmer", "Shop Owner", "Driver",
	"Tailor", "Construction Worker", "Cook", "Security Guard", "Housewife",
	"Electrician", "Carpenter", "Plumber", "Mechanic", "Vendor",
	"Clerk", "Accountant", "Nurse", "Police Officer", "Retired",
}

var (
	ErrDuplicateID   = errors.New("duplicate patient id")
	ErrInvalidFilter = errors.New("invalid filter")
)

// PatientRecord maps to the patients table. Records are never mutated after
// generation.
type PatientRecord struct {
	ID              int     `db:"id" json:"id"`
	Name            string  `db:"name" json:"name"`
	Age             int     `db:"age" json:"age"`
	AadhaarID       string  `db:"aadhaar_id" json:"aadhaar_id"`
	Occupation      string  `db:"occupation" json:"occupation"`
	Gender          Gender  `db:"gender" json:"gender"`
	City            string  `db:"city" json:"city"`
	PreviousGlasses bool    `db:"previous_glasses" json:"previous_glasses"`
	DiopterStrength float64 `db:"diopter_strength" json:"diopter_strength"`
}

// Validate checks the invariants a stored record must hold.
func (p *PatientRecord) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("id must be positive, got %d", p.ID)
	}
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("age %d outside %d-%d", p.Age, MinAge, MaxAge)
	}
	if !p.Gender.Valid() {
		return fmt.Errorf("invalid gender: %q", p.Gender)
	}
	if p.DiopterStrength <= 0 {
		return fmt.Errorf("diopter strength must be positive, got %v", p.DiopterStrength)
	}
	if QuantizeDiopter(p.DiopterStrength) != p.DiopterStrength {
		return fmt.Errorf("diopter strength %v is not a multiple of 0.25", p.DiopterStrength)
	}
	if r := DiopterRangeFor(p.Age); p.DiopterStrength < r.Min || p.DiopterStrength > r.Max {
		return fmt.Errorf("diopter strength %v outside %v-%v for age %d", p.DiopterStrength, r.Min, r.Max, p.Age)
	}
	return nil
}

// AgeGroupSummary is one age band of the age-wise view.
type AgeGroupSummary struct {
	AgeGroup       string  `json:"age_group"`
	TotalCount     int     `json:"total_count"`
	AverageDiopter float64 `json:"average_diopter"`
	IncidenceRate  float64 `json:"incidence_rate"`
}

// CitySummary is one row of the city-wise view.
type CitySummary struct {
	City           string  `json:"city"`
	Count          int     `json:"count"`
	AverageDiopter float64 `json:"average_diopter"`
}

// DiopterDistributionEntry counts records holding exactly one diopter value.
type DiopterDistributionEntry struct {
	Diopter float64 `json:"diopter"`
	Count   int     `json:"count"`
}

// Filter is the shared filter state of the dashboard. Nil ages and empty
// strings mean "no constraint"; active predicates are combined with AND.
type Filter struct {
	AgeMin     *int   `json:"age_min,omitempty"`
	AgeMax     *int   `json:"age_max,omitempty"`
	City       string `json:"city,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Occupation string `json:"occupation,omitempty"`
}

// DefaultFilter is the dashboard's initial state: the full age domain and no
// other constraint.
func DefaultFilter() Filter {
	lo, hi := MinAge, MaxAge
	return Filter{AgeMin: &lo, AgeMax: &hi}
}

// Validate rejects ages outside the domain, inverted ranges and unknown
// genders. City and occupation are exact-match strings and are not checked.
func (f Filter) Validate() error {
	if f.AgeMin != nil && (*f.AgeMin < MinAge || *f.AgeMin > MaxAge) {
		return fmt.Errorf("%w: age_min %d outside %d-%d", ErrInvalidFilter, *f.AgeMin, MinAge, MaxAge)
	}
	if f.AgeMax != nil && (*f.AgeMax < MinAge || *f.AgeMax > MaxAge) {
		return fmt.Errorf("%w: age_max %d outside %d-%d", ErrInvalidFilter, *f.AgeMax, MinAge, MaxAge)
	}
	if f.AgeMin != nil && f.AgeMax != nil && *f.AgeMin > *f.AgeMax {
		return fmt.Errorf("%w: age_min %d greater than age_max %d", ErrInvalidFilter, *f.AgeMin, *f.AgeMax)
	}
	if f.Gender != "" && !Gender(f.Gender).Valid() {
		return fmt.Errorf("%w: gender must be Male or Female, got %q", ErrInvalidFilter, f.Gender)
	}
	return nil
}

// Matches reports whether a record satisfies every active predicate.
func (f Filter) Matches(p PatientRecord) bool {
	if f.AgeMin != nil && p.Age < *f.AgeMin {
		return false
	}
	if f.AgeMax != nil && p.Age > *f.AgeMax {
		return false
	}
	if f.City != "" && p.City != f.City {
		return false
	}
	if f.Gender != "" && string(p.Gender) != f.Gender {
		return false
	}
	if f.Occupation != "" && p.Occupation != f.Occupation {
		return false
	}
	return true
}

// IsDefault reports whether the filter constrains nothing beyond the full
// age domain.
func (f Filter) IsDefault() bool {
	if f.City != "" || f.Gender != "" || f.Occupation != "" {
		return false
	}
	if f.AgeMin != nil && *f.AgeMin != MinAge {
		return false
	}
	if f.AgeMax != nil && *f.AgeMax != MaxAge {
		return false
	}
	return true
}

// Key is a stable cache key for the filter.
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString(optInt(f.AgeMin))
	b.WriteByte('|')
	b.WriteString(optInt(f.AgeMax))
	b.WriteByte('|')
	b.WriteString(f.City)
	b.WriteByte('|')
	b.WriteString(f.Gender)
	b.WriteByte('|')
	b.WriteString(f.Occupation)
	return b.String()
}

func optInt(v *int) string {
	if v == nil {
		return "*"
	}
	return strconv.Itoa(*v)
}
