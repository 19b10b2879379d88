package insights

// GlobalBaselineEntry is the published reference figure for one age band.
type GlobalBaselineEntry struct {
	AgeGroup       string  `json:"age_group"`
	AgeMin         int     `json:"age_min"`
	AgeMax         int     `json:"age_max"`
	IncidenceRate  float64 `json:"incidence_rate"`
	AverageDiopter float64 `json:"average_diopter"`
}

var globalBaseline = []GlobalBaselineEntry{
	{AgeGroup: "35-39", AgeMin: 35, AgeMax: 39, IncidenceRate: 35, AverageDiopter: 1.00},
	{AgeGroup: "40-44", AgeMin: 40, AgeMax: 44, IncidenceRate: 50, AverageDiopter: 1.25},
	{AgeGroup: "45-49", AgeMin: 45, AgeMax: 49, IncidenceRate: 65, AverageDiopter: 1.50},
	{AgeGroup: "50-54", AgeMin: 50, AgeMax: 54, IncidenceRate: 80, AverageDiopter: 2.00},
	{AgeGroup: "55-59", AgeMin: 55, AgeMax: 59, IncidenceRate: 90, AverageDiopter: 2.25},
	{AgeGroup: "60-64", AgeMin: 60, AgeMax: 64, IncidenceRate: 95, AverageDiopter: 2.50},
	{AgeGroup: "65-69", AgeMin: 65, AgeMax: 69, IncidenceRate: 98, AverageDiopter: 2.75},
	{AgeGroup: "70-75", AgeMin: 70, AgeMax: 75, IncidenceRate: 99, AverageDiopter: 3.00},
}

// GlobalBaseline returns a copy of the reference table in age order.
func GlobalBaseline() []GlobalBaselineEntry {
	out := make([]GlobalBaselineEntry, len(globalBaseline))
	copy(out, globalBaseline)
	return out
}

// BaselineForAge returns the entry whose band contains age.
func BaselineForAge(age int) (GlobalBaselineEntry, bool) {
	for _, b := range globalBaseline {
		if age >= b.AgeMin && age <= b.AgeMax {
			return b, true
		}
	}
	return GlobalBaselineEntry{}, false
}
