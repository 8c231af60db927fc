package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", MaskToken(""))
	assert.Equal(t, "***", MaskToken("short"))
	masked := MaskToken("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	assert.Equal(t, "dBjf…EjXk", masked)
	assert.NotContains(t, masked, "mB92K27")
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a…@e….com", MaskEmail("ana@example.com"))
	assert.Equal(t, "***", MaskEmail("ab"))
	assert.Equal(t, "", MaskEmail(""))
}
