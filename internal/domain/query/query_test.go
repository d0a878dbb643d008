package query

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/metasearch/internal/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"empty", "", "", true},
		{"spaces", "   ", "", true},
		{"tabs and newlines", "\t\n", "", true},
		{"plain", "16S rRNA", "16S rRNA", false},
		{"padded", "  mir-21 ", "mir-21", false},
		{"inner spaces kept", " 16S  rRNA\t", "16S  rRNA", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Validate(tc.text)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Validate(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestQuery_Invalid(t *testing.T) {
	if (Query{Text: "", Submitted: false}).Invalid() {
		t.Error("unsubmitted empty query must not show an error")
	}
	if !(Query{Text: "", Submitted: true}).Invalid() {
		t.Error("submitted empty query must show an error")
	}
	if (Query{Text: "tRNA", Submitted: true}).Invalid() {
		t.Error("submitted valid query must not show an error")
	}
}
