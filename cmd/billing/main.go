// main.go - billing service entrypoint.
// Starts the billing HTTP service on port 8085 (default).
package main

import (
	"github.com/yayoedit-hub/dump2-57cbd353/services/billing"
)

func main() {
	billing.StartBillingService()
}
