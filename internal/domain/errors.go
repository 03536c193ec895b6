package domain

import (
	"errors"
)

// KeyPrefix namespaces every key feedtag writes to a shared key-value store.
const KeyPrefix = "feedtag:"

var (
	// ErrTagNotFound signals that no classifier is registered for a tag.
	ErrTagNotFound = errors.New("tag not found")
	// ErrTagExists signals a duplicate tag registration.
	ErrTagExists = errors.New("tag already exists")
	// ErrInvalidTag signals a malformed tag name.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrEmptyDocument signals a request that carries neither text nor tokens.
	ErrEmptyDocument = errors.New("empty document")
	// ErrInvalidReduceConfig signals reduction thresholds outside their valid ranges.
	ErrInvalidReduceConfig = errors.New("invalid reduce config")
)
