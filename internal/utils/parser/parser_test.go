package parser

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryTarget struct {
	URL      string   `form:"url"`
	Depth    int      `form:"depth"`
	Fresh    bool     `form:"fresh"`
	Limit    *int     `form:"limit"`
	Keywords []string `form:"keywords"`
}

func setField(t *testing.T, target *queryTarget, name, value string) error {
	t.Helper()
	field := reflect.ValueOf(target).Elem().FieldByName(name)
	require.True(t, field.IsValid())
	return setFieldValue(field, value)
}

func TestSetFieldValueScalars(t *testing.T) {
	var q queryTarget

	require.NoError(t, setField(t, &q, "URL", "https://example.com"))
	require.NoError(t, setField(t, &q, "Depth", "3"))
	require.NoError(t, setField(t, &q, "Fresh", "true"))
	require.NoError(t, setField(t, &q, "Limit", "25"))

	assert.Equal(t, "https://example.com", q.URL)
	assert.Equal(t, 3, q.Depth)
	assert.True(t, q.Fresh)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 25, *q.Limit)
}

func TestSetFieldValueStringSlice(t *testing.T) {
	var q queryTarget

	require.NoError(t, setField(t, &q, "Keywords", "plan, cover ,price,,"))
	assert.Equal(t, []string{"plan", "cover", "price"}, q.Keywords)
}

func TestSetFieldValueBadInt(t *testing.T) {
	var q queryTarget
	assert.Error(t, setField(t, &q, "Depth", "not-a-number"))
}
