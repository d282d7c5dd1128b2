package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesCode(t *testing.T) {
	err := New(SelfContainment, "node %q contains itself", "a")
	wrapped := fmt.Errorf("validating: %w", err)

	assert.True(t, errors.Is(wrapped, SelfContainment))
	assert.False(t, errors.Is(wrapped, ContainmentCycle))
}

func TestError_MessageIncludesPath(t *testing.T) {
	err := New(ContainmentCycle, "containment cycle").WithPath("a", "b", "a")
	assert.Equal(t, "ContainmentCycle: containment cycle [a -> b -> a]", err.Error())
}

func TestStorage_KeepsExistingCode(t *testing.T) {
	inner := New(StaleDocument, "revision moved")
	assert.Same(t, inner, Storage("update live", inner))

	plain := errors.New("disk full")
	err := Storage("update live", plain)
	require.Error(t, err)
	assert.True(t, errors.Is(err, StorageError))
	assert.True(t, errors.Is(err, plain))
	assert.Nil(t, Storage("noop", nil))
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(fmt.Errorf("x: %w", New(UnsupportedLevel, "YEAR")))
	require.True(t, ok)
	assert.Equal(t, "UnsupportedLevel", code.Name())
	assert.Equal(t, CategoryUnsupported, code.Category())

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}
