// Package testing provides a standardized conformance suite for store-engine
// implementations that satisfy the db.UserDB interface.
//   - RunUserDBTests: Runs a standardized test suite to validate implementations
package testing
