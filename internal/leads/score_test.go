package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeScoreWeights(t *testing.T) {
	cases := []struct {
		name string
		in   Enrichment
		want Score
	}{
		{"empty", Enrichment{}, Score{0, 0, 0}},
		{"email only", Enrichment{Email: "a@b.com"}, Score{15, 30, 0}},
		{"phone only", Enrichment{Phone: "15125550100"}, Score{10, 20, 0}},
		{"handle only", Enrichment{Handle: "x"}, Score{10, 20, 0}},
		{"email and phone bonus", Enrichment{Email: "a@b.com", Phone: "15125550100"}, Score{30, 60, 0}},
		{"location only", Enrichment{Location: "Austin"}, Score{13, 0, 25}},
		{"location and url", Enrichment{Location: "Austin", URL: "https://x.com"}, Score{38, 0, 75}},
		{"handle and location", Enrichment{Handle: "x", Location: "Austin"}, Score{35, 20, 50}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeScore(tc.in))
		})
	}
}

func TestComputeScoreClamps(t *testing.T) {
	full := ComputeScore(Enrichment{
		Email:    "a@b.com",
		Phone:    "15125550100",
		Handle:   "x",
		Location: "Austin",
		URL:      "https://x.com",
	})
	assert.Equal(t, 80, full.Engagement)
	assert.Equal(t, 100, full.Fit, "fit bonuses cap at 100")
	assert.Equal(t, 90, full.Overall)
}

func TestComputeScoreMonotonic(t *testing.T) {
	base := ComputeScore(Enrichment{Email: "a@b.com"})
	more := ComputeScore(Enrichment{Email: "a@b.com", Handle: "x"})
	assert.GreaterOrEqual(t, more.Engagement, base.Engagement)
	assert.GreaterOrEqual(t, more.Overall, base.Overall)
}

func TestOverallIsRoundedMean(t *testing.T) {
	s := ComputeScore(Enrichment{Email: "a@b.com", Location: "Austin"})
	assert.Equal(t, 30, s.Engagement)
	assert.Equal(t, 25, s.Fit)
	assert.Equal(t, 28, s.Overall)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "hi@aura.com", NormalizeEmail(" Hi@Aura.COM "))
	assert.Equal(t, "", NormalizeEmail("  "))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "15125550100", NormalizePhone("+1 (512) 555-0100"))
	assert.Equal(t, "", NormalizePhone("ext."))
}
