package main

import (
	"fmt"
	"os"

	"github.com/bankgw/webhook-gateway/destination"
)

/* validate-destinations - Standalone CLI tool to validate destinations.yaml
 * Usage: go run cmd/validate-destinations/main.go [destinations.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	destinationsFile := "destinations.yaml"
	if len(os.Args) > 1 {
		destinationsFile = os.Args[1]
	}

	fmt.Printf("Validating destinations file: %s\n", destinationsFile)

	loader := destination.NewLoader()
	if err := loader.Load(destinationsFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	destinations := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d destination(s):\n", len(destinations))

	for i, dest := range destinations {
		fmt.Printf("\n%d. Destination: %s\n", i+1, dest.Name)
		fmt.Printf("   URL:          %s\n", dest.URL)
		fmt.Printf("   Organization: %s\n", dest.OrganizationName)
	}

	fmt.Printf("\n✓ All destinations are valid!\n")
	os.Exit(0)
}
