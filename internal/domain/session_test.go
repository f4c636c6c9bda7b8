package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounselingTypeValid(t *testing.T) {
	assert.True(t, CounselingMentalWellbeing.Valid())
	assert.True(t, CounselingCareerGuidance.Valid())
	assert.True(t, CounselingEntrepreneurship.Valid())
	assert.False(t, CounselingType("astrology").Valid())
	assert.False(t, CounselingType("").Valid())
}

func TestParseCounselingType(t *testing.T) {
	parsed, err := ParseCounselingType("career_guidance")
	require.NoError(t, err)
	assert.Equal(t, CounselingCareerGuidance, parsed)

	_, err = ParseCounselingType("astrology")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "astrology")
}
