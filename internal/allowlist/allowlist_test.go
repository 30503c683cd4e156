package allowlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreEmptyDisablesCheck(t *testing.T) {
	s := NewMemoryStore("")
	assert.True(t, s.Disabled())
	assert.True(t, s.Allowed("anything"))
}

func TestMemoryStoreMembership(t *testing.T) {
	s := NewMemoryStore("SN-allow, SN-other ,, SN-third")
	assert.False(t, s.Disabled())
	assert.True(t, s.Allowed("SN-allow"))
	assert.True(t, s.Allowed("SN-other"))
	assert.True(t, s.Allowed("SN-third"))
	assert.False(t, s.Allowed("SN-deny"))
	assert.False(t, s.Allowed(""))
}

func TestMemoryStoreWhitespaceTrimmed(t *testing.T) {
	s := NewMemoryStore("  SN-1  ,SN-2")
	assert.True(t, s.Allowed("SN-1"))
	assert.True(t, s.Allowed("SN-2"))
	assert.False(t, s.Allowed(" SN-1"))
}
