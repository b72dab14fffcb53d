package destination

import (
	"fmt"
	"net/url"
)

/* Destination represents one callback endpoint classified payloads are
 * forwarded to. The bank identifies callers by organization name alongside
 * the bearer token and payload signature.
 */
type Destination struct {
	Name             string
	URL              string
	OrganizationName string
}

// Validate checks if the destination configuration is usable.
func (d *Destination) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if d.URL == "" {
		return fmt.Errorf("url cannot be empty for destination %s", d.Name)
	}
	parsed, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("invalid url for destination %s: %w", d.Name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must be http or https for destination %s (got %q)", d.Name, parsed.Scheme)
	}
	if d.OrganizationName == "" {
		return fmt.Errorf("organization_name cannot be empty for destination %s", d.Name)
	}
	return nil
}
