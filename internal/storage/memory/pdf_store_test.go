package memory

import (
	"context"
	"testing"
)

func TestPDFStorePutCopiesData(t *testing.T) {
	t.Parallel()

	store := NewPDFStore()
	payload := []byte("%PDF-1.4 content")
	path, err := store.Put(context.Background(), "acl/2024.acl-long.1.pdf", payload)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if path != "memory://acl/2024.acl-long.1.pdf" {
		t.Fatalf("unexpected path %s", path)
	}

	payload[0] = 'X'
	stored, ok := store.Get("acl/2024.acl-long.1.pdf")
	if !ok {
		t.Fatal("expected stored artifact")
	}
	if string(stored) != "%PDF-1.4 content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
}

func TestPDFStoreExists(t *testing.T) {
	t.Parallel()

	store := NewPDFStore()
	if store.Exists("arxiv/2301.00001.pdf") {
		t.Fatal("expected missing artifact")
	}
	if _, err := store.Put(context.Background(), "arxiv/2301.00001.pdf", []byte("pdf")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !store.Exists("arxiv/2301.00001.pdf") {
		t.Fatal("expected artifact after Put")
	}
}
