// Package validation checks request input before any write happens and
// reports problems as a field → messages map.
package validation

import "github.com/waonpad/benkyo-1/internal/shared"

// Errors is the ordered field → messages map returned for invalid input.
type Errors = shared.FieldErrors
