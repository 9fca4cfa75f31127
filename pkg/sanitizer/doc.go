// Package sanitizer provides input normalization for free-form text fields.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
package sanitizer
