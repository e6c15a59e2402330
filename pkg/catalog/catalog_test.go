package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should preserve declaration order", func(t *testing.T) {
		c, err := New([]Spec{
			{Name: "c_tool"},
			{Name: "a_tool"},
			{Name: "b_tool"},
		})
		require.NoError(t, err)

		names := []string{}
		for _, d := range c.List() {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"c_tool", "a_tool", "b_tool"}, names)
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		_, err := New([]Spec{{Name: "x"}, {Name: "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("should reject empty name", func(t *testing.T) {
		_, err := New([]Spec{{Name: ""}})
		assert.Error(t, err)
	})

	t.Run("should reject invalid parameter type", func(t *testing.T) {
		_, err := New([]Spec{{
			Name:       "bad",
			Parameters: []Parameter{{Name: "p", Type: "tuple"}},
		}})
		assert.Error(t, err)
	})
}

func TestCatalog_Describe(t *testing.T) {
	c, err := Browser()
	require.NoError(t, err)

	t.Run("should find known tool", func(t *testing.T) {
		d, ok := c.Describe("browser_navigate")
		require.True(t, ok)
		assert.Equal(t, "browser_navigate", d.Name)
		assert.NotEmpty(t, d.Description)

		props, ok := d.InputSchema["properties"].(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, props, "url")
		assert.Contains(t, d.InputSchema["required"], "url")
	})

	t.Run("should miss unknown tool", func(t *testing.T) {
		_, ok := c.Describe("browser_teleport")
		assert.False(t, ok)
	})
}

func TestCatalog_Validate(t *testing.T) {
	c, err := Browser()
	require.NoError(t, err)

	t.Run("should accept valid params", func(t *testing.T) {
		err := c.Validate("browser_navigate", map[string]interface{}{
			"url":     "https://example.com",
			"timeout": 15,
		})
		assert.NoError(t, err)
	})

	t.Run("should reject missing required param", func(t *testing.T) {
		err := c.Validate("browser_click", map[string]interface{}{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "selector")
	})

	t.Run("should reject unknown param", func(t *testing.T) {
		err := c.Validate("browser_navigate", map[string]interface{}{
			"url":   "https://example.com",
			"speed": "fast",
		})
		assert.Error(t, err)
	})

	t.Run("should reject wrong type", func(t *testing.T) {
		err := c.Validate("browser_type", map[string]interface{}{
			"selector": "#q",
			"text":     42,
		})
		assert.Error(t, err)
	})

	t.Run("should pass unknown tool through", func(t *testing.T) {
		assert.NoError(t, c.Validate("not_a_tool", nil))
	})
}

func TestBrowser(t *testing.T) {
	c, err := Browser()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.Len(), 1)

	// stability: two builds advertise the same ordered names
	again, err := Browser()
	require.NoError(t, err)
	assert.Equal(t, c.List(), again.List())
}
