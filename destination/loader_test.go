package destination

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDestinationsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "destinations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoaderLoad(t *testing.T) {
	t.Run("loads valid destinations in file order", func(t *testing.T) {
		path := writeDestinationsFile(t, `
destinations:
  - name: permata
    url: https://bank.example.com/callback
    organization_name: acme
  - name: staging
    url: https://staging.example.com/callback
    organization_name: acme-staging
`)
		loader := NewLoader()
		require.NoError(t, loader.Load(path))

		list := loader.List()
		require.Len(t, list, 2)
		assert.Equal(t, "permata", list[0].Name)
		assert.Equal(t, "staging", list[1].Name)
		assert.Equal(t, "https://bank.example.com/callback", list[0].URL)
	})

	t.Run("fails when file does not exist", func(t *testing.T) {
		loader := NewLoader()
		err := loader.Load("/nonexistent/destinations.yaml")
		assert.Error(t, err)
	})

	t.Run("fails on malformed YAML", func(t *testing.T) {
		path := writeDestinationsFile(t, `destinations: [`)
		loader := NewLoader()
		assert.Error(t, loader.Load(path))
	})

	t.Run("fails when no destinations are configured", func(t *testing.T) {
		path := writeDestinationsFile(t, `destinations: []`)
		loader := NewLoader()
		err := loader.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no destinations")
	})

	t.Run("fails on duplicate names", func(t *testing.T) {
		path := writeDestinationsFile(t, `
destinations:
  - name: permata
    url: https://bank.example.com/callback
    organization_name: acme
  - name: permata
    url: https://other.example.com/callback
    organization_name: acme
`)
		loader := NewLoader()
		err := loader.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate destination name")
	})

	t.Run("fails on invalid destination URL", func(t *testing.T) {
		path := writeDestinationsFile(t, `
destinations:
  - name: permata
    url: "not a url"
    organization_name: acme
`)
		loader := NewLoader()
		assert.Error(t, loader.Load(path))
	})
}

func TestLoaderGet(t *testing.T) {
	path := writeDestinationsFile(t, `
destinations:
  - name: permata
    url: https://bank.example.com/callback
    organization_name: acme
`)
	loader := NewLoader()
	require.NoError(t, loader.Load(path))

	t.Run("returns destination by name", func(t *testing.T) {
		dest, err := loader.Get("permata")
		require.NoError(t, err)
		assert.Equal(t, "acme", dest.OrganizationName)
	})

	t.Run("fails for unknown name", func(t *testing.T) {
		_, err := loader.Get("missing")
		assert.Error(t, err)
	})
}

func TestDestinationValidate(t *testing.T) {
	t.Run("accepts https URLs", func(t *testing.T) {
		d := &Destination{Name: "a", URL: "https://example.com/hook", OrganizationName: "acme"}
		assert.NoError(t, d.Validate())
	})

	t.Run("rejects non-http schemes", func(t *testing.T) {
		d := &Destination{Name: "a", URL: "ftp://example.com/hook", OrganizationName: "acme"}
		assert.Error(t, d.Validate())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		d := &Destination{URL: "https://example.com/hook", OrganizationName: "acme"}
		assert.Error(t, d.Validate())
	})
}
