package utils

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestWrapFetchError_MissingRowKeepsNotFoundTaxonomy(t *testing.T) {
	err := wrapFetchError(gorm.ErrRecordNotFound)
	if err != ErrorRecordNotFound {
		t.Fatalf("expected ErrorRecordNotFound, got %v", err)
	}
	if !IsNotFoundError(err) {
		t.Fatal("missing row must map into the NotFound taxonomy")
	}
}

func TestWrapFetchError_StorageFailureSurfaces(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:3306: connect: connection refused")
	err := wrapFetchError(cause)
	if err != cause {
		t.Fatalf("expected the underlying error back, got %v", err)
	}
	// A connection failure must stay retryable, never read as "no data yet".
	if IsNotFoundError(err) {
		t.Fatal("storage failure must not be reported as not-found")
	}
}
