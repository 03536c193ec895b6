package feedtag

import "github.com/kailas-cloud/feedtag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrTagNotFound         = domain.ErrTagNotFound
	ErrTagExists           = domain.ErrTagExists
	ErrInvalidTag          = domain.ErrInvalidTag
	ErrEmptyDocument       = domain.ErrEmptyDocument
	ErrInvalidReduceConfig = domain.ErrInvalidReduceConfig
)
