package cms_test

import (
	"errors"
	"strings"
	"testing"

	"copydesk/internal/cms"
)

func TestWrapPreservesMarkerAndCause(t *testing.T) {
	cause := errors.New("row not found")
	err := cms.Wrap(cms.ErrNotFound, "store", "summary", "no item page-1", cause)

	if !errors.Is(err, cms.ErrNotFound) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
	for _, want := range []string{"store", "summary", "no item page-1"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("message %q missing %q", err.Error(), want)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := cms.Wrap(cms.ErrValidation, "classifier", "summary", "blank item id", nil)
	if !errors.Is(err, cms.ErrValidation) {
		t.Fatalf("marker lost: %v", err)
	}
}

func TestIsBlocking(t *testing.T) {
	if cms.IsBlocking(nil) {
		t.Fatal("nil error does not block")
	}
	if !cms.IsBlocking(cms.Wrap(cms.ErrConflict, "x", "y", "held", nil)) {
		t.Fatal("conflict blocks")
	}
}

func TestSummaryCheckedOut(t *testing.T) {
	if (cms.Summary{}).CheckedOut() {
		t.Fatal("no holder means not checked out")
	}
	if !(cms.Summary{CheckedOutBy: "alice"}).CheckedOut() {
		t.Fatal("a holder means checked out")
	}
}
