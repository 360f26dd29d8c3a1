package core

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValidateID checks that id has the document store's identifier shape:
// 24 hexadecimal characters.
func ValidateID(id string) error {
	if !primitive.IsValidObjectID(id) {
		return &InvalidIdentifierError{ID: id}
	}
	return nil
}

// CanonicalID validates id and returns it in lower case, the form every
// backend stores. Hex ids differing only in case name the same expense.
func CanonicalID(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return strings.ToLower(id), nil
}

// NewID returns a fresh identifier in the same format the document store
// assigns, so every backend hands out interchangeable ids.
func NewID() string {
	return primitive.NewObjectID().Hex()
}
