package leads

import "math"

// Score is the qualification score of a lead, each component on a 0-100
// scale. Overall is the rounded mean of the two components.
type Score struct {
	Overall    int `json:"overall"`
	Engagement int `json:"engagement"`
	Fit        int `json:"fit"`
}

// Enrichment is the normalized contact data a score is computed from.
// Empty fields simply contribute nothing.
type Enrichment struct {
	Email    string
	Phone    string
	Handle   string
	Location string
	URL      string
}

// ComputeScore applies the fixed additive weight table. Note the handle
// counts toward engagement and again in the handle+location fit bonus;
// production data was scored this way, so the double count stays.
func ComputeScore(e Enrichment) Score {
	engagement := 0
	if e.Email != "" {
		engagement += 30
	}
	if e.Phone != "" {
		engagement += 20
	}
	if e.Handle != "" {
		engagement += 20
	}
	if e.Email != "" && e.Phone != "" {
		engagement += 10
	}

	fit := 0
	if e.Location != "" {
		fit += 25
	}
	if e.URL != "" {
		fit += 25
	}
	if e.Handle != "" && e.Location != "" {
		fit += 25
	}
	if e.URL != "" && e.Location != "" {
		fit += 25
	}

	engagement = clamp(engagement)
	fit = clamp(fit)

	return Score{
		Overall:    int(math.Round(float64(engagement+fit) / 2)),
		Engagement: engagement,
		Fit:        fit,
	}
}

func clamp(v int) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
