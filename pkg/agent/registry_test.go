package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		selector string
		want     Type
	}{
		{"PM", PM},
		{"ARCH", Arch},
		{"DEV_PYTHON", DevPython},
		{"DEV_RUST", DevPython},
		{"DEV_GO", DevPython},
		{"TL_JAVASCRIPT", TLJavaScript},
		{"TL_RUST", TLPython},
		{"INTERN", PM},
		{"", PM},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(tt.selector), "selector %q", tt.selector)
	}
}

func TestRegistryRoster(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.All(), 15)

	arch, ok := r.Get(Arch)
	assert.True(t, ok)
	assert.Equal(t, TierOpus, arch.ModelTier)
	assert.Equal(t, "architect.md", arch.PromptFile)

	sr, ok := r.Get(SR)
	assert.True(t, ok)
	assert.Equal(t, TierOpus, sr.ModelTier)

	tqr, ok := r.Get(TQR)
	assert.True(t, ok)
	assert.Equal(t, TierHaiku, tqr.ModelTier)

	_, ok = r.Get(Type("NOPE"))
	assert.False(t, ok)
}

func TestModelFor(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, TierSonnet, r.ModelFor(PM))
	assert.Equal(t, TierOpus, r.ModelFor(Arch))
	// Unregistered types default to sonnet
	assert.Equal(t, TierSonnet, r.ModelFor(Type("NOPE")))
}

func TestSelectModel(t *testing.T) {
	r := NewRegistry()

	t.Run("nearly exhausted budget forces haiku", func(t *testing.T) {
		assert.Equal(t, TierHaiku, r.SelectModel(Arch, HighComplexity, 0.1))
	})

	t.Run("tight budget downgrades opus to sonnet on non-high work", func(t *testing.T) {
		assert.Equal(t, TierSonnet, r.SelectModel(Arch, MediumComplexity, 0.4))
		assert.Equal(t, TierSonnet, r.SelectModel(PM, MediumComplexity, 0.4))
	})

	t.Run("tight budget keeps opus for high complexity", func(t *testing.T) {
		assert.Equal(t, TierOpus, r.SelectModel(Arch, HighComplexity, 0.4))
	})

	t.Run("high complexity upgrades sonnet when budget is ample", func(t *testing.T) {
		assert.Equal(t, TierOpus, r.SelectModel(PM, HighComplexity, 0.9))
	})

	t.Run("no upgrade when the budget is middling", func(t *testing.T) {
		assert.Equal(t, TierSonnet, r.SelectModel(PM, HighComplexity, 0.6))
	})

	t.Run("defaults pass through", func(t *testing.T) {
		assert.Equal(t, TierSonnet, r.SelectModel(PM, MediumComplexity, 1.0))
		assert.Equal(t, TierOpus, r.SelectModel(Arch, MediumComplexity, 1.0))
		assert.Equal(t, TierHaiku, r.SelectModel(TQR, MediumComplexity, 1.0))
	})
}

func TestEstimateComplexity(t *testing.T) {
	tests := []struct {
		title, description, want string
	}{
		{"Design the system architecture", "", HighComplexity},
		{"Harden auth", "review security posture", HighComplexity},
		{"Fix typo in README", "", LowComplexity},
		{"Rename config field", "simple change", LowComplexity},
		{"Add pagination to the API", "", MediumComplexity},
		{"", "", MediumComplexity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateComplexity(tt.title, tt.description), "title %q", tt.title)
	}
}
