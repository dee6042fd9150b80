package student

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

func TestNewStudent_Trims(t *testing.T) {
	s, err := NewStudent("  Ada Lovelace ", "\tCS\n")
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", s.Name)
	assert.Equal(t, "CS", s.Department)
	assert.Zero(t, s.ID)
}

func TestNewStudent_Validation(t *testing.T) {
	tests := []struct {
		name       string
		inName     string
		department string
		field      string
	}{
		{"empty name", "", "CS", "name"},
		{"blank name", "   ", "CS", "name"},
		{"empty department", "Ada", " ", "department"},
		{"long name", strings.Repeat("a", 101), "CS", "name"},
		{"long department", "Ada", strings.Repeat("d", 101), "department"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStudent(tt.inName, tt.department)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Equal(t, tt.field, shared.FieldOf(err))
		})
	}
}

func TestNewStudent_LengthCountsCharacters(t *testing.T) {
	// 100 two-byte characters fit, 101 do not.
	name := strings.Repeat("é", 100)

	s, err := NewStudent(name, "Mathématiques")
	require.NoError(t, err)
	assert.Equal(t, name, s.Name)

	_, err = NewStudent(name+"é", "Math")
	assert.True(t, shared.IsValidation(err))
}

func TestListOptions_Validate(t *testing.T) {
	assert.NoError(t, ListOptions{Skip: 0, Limit: 1}.Validate())
	assert.NoError(t, ListOptions{Skip: 50, Limit: MaxListLimit}.Validate())

	assert.Equal(t, "skip", shared.FieldOf(ListOptions{Skip: -1, Limit: 10}.Validate()))
	assert.Equal(t, "limit", shared.FieldOf(ListOptions{Limit: 0}.Validate()))
	assert.Equal(t, "limit", shared.FieldOf(ListOptions{Limit: MaxListLimit + 1}.Validate()))
}

func TestNormalizeQuery(t *testing.T) {
	q, err := NormalizeQuery("  lov ")
	require.NoError(t, err)
	assert.Equal(t, "lov", q)

	_, err = NormalizeQuery(" \t")
	assert.True(t, shared.IsValidation(err))
}
