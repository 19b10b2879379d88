package screening

import (
	"errors"
	"testing"
)

func intp(v int) *int { return &v }

func TestPatientRecord_Validate(t *testing.T) {
	valid := []PatientRecord{
		{ID: 1, Age: 50, Gender: GenderMale, DiopterStrength: 1.75},
		{ID: 2, Age: 35, Gender: GenderFemale, DiopterStrength: 1.0},
		{ID: 3, Age: 44, Gender: GenderFemale, DiopterStrength: 1.5},
		{ID: 4, Age: 75, Gender: GenderMale, DiopterStrength: 3.5},
	}
	for _, p := range valid {
		if err := p.Validate(); err != nil {
			t.Errorf("unexpected error for %+v: %v", p, err)
		}
	}

	bad := []PatientRecord{
		{ID: 0, Age: 50, Gender: GenderMale, DiopterStrength: 1},
		{ID: 1, Age: 34, Gender: GenderMale, DiopterStrength: 1},
		{ID: 1, Age: 76, Gender: GenderMale, DiopterStrength: 1},
		{ID: 1, Age: 50, Gender: "Other", DiopterStrength: 1},
		{ID: 1, Age: 50, Gender: GenderFemale, DiopterStrength: 0},
		{ID: 1, Age: 40, Gender: GenderFemale, DiopterStrength: 1.3},
		{ID: 1, Age: 40, Gender: GenderFemale, DiopterStrength: 3.25},
		{ID: 1, Age: 70, Gender: GenderMale, DiopterStrength: 2.25},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("expected error for %+v", p)
		}
	}
}

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		f       Filter
		wantErr bool
	}{
		{"zero value", Filter{}, false},
		{"default", DefaultFilter(), false},
		{"single age", Filter{AgeMin: intp(50), AgeMax: intp(50)}, false},
		{"female", Filter{Gender: "Female"}, false},
		{"age min too low", Filter{AgeMin: intp(30)}, true},
		{"age max too high", Filter{AgeMax: intp(80)}, true},
		{"inverted range", Filter{AgeMin: intp(60), AgeMax: intp(40)}, true},
		{"unknown gender", Filter{Gender: "male"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFilter) {
					t.Fatalf("expected ErrInvalidFilter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFilter_MatchesIsConjunction(t *testing.T) {
	p := PatientRecord{ID: 1, Age: 52, City: "Pune", Gender: GenderFemale, Occupation: "Teacher", DiopterStrength: 2}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"no constraint", Filter{}, true},
		{"all match", Filter{AgeMin: intp(50), AgeMax: intp(54), City: "Pune", Gender: "Female", Occupation: "Teacher"}, true},
		{"age below min", Filter{AgeMin: intp(53)}, false},
		{"age above max", Filter{AgeMax: intp(51)}, false},
		{"other city", Filter{City: "Delhi", Gender: "Female"}, false},
		{"other gender", Filter{City: "Pune", Gender: "Male"}, false},
		{"other occupation", Filter{Occupation: "Farmer"}, false},
	}
	for _, tt := range tests {
		if got := tt.f.Matches(p); got != tt.want {
			t.Errorf("%s: Matches = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFilter_IsDefaultAndKey(t *testing.T) {
	if !DefaultFilter().IsDefault() || !(Filter{}).IsDefault() {
		t.Error("expected default and zero filters to be default")
	}
	if (Filter{City: "Pune"}).IsDefault() || (Filter{AgeMin: intp(40)}).IsDefault() {
		t.Error("expected constrained filters not to be default")
	}

	a := Filter{AgeMin: intp(40), City: "Pune"}
	b := Filter{AgeMin: intp(40), City: "Pune"}
	c := Filter{AgeMax: intp(40), City: "Pune"}
	if a.Key() != b.Key() {
		t.Errorf("equal filters have different keys: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("different filters share key %q", a.Key())
	}
}
