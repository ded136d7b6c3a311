// Package blob stores audio snippet payloads. The core only sees this
// narrow put/get/delete contract; the concrete backend is a deployment
// choice.
package blob

import "context"

// Storage is the payload backend contract.
type Storage interface {
	// Put writes the payload under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the payload stored under key, or model.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the payload under key. Deleting a missing key is not
	// an error; the retention sweeper must be idempotent.
	Delete(ctx context.Context, key string) error
}
