package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	cases := []struct {
		in    string
		first string
		last  string
	}{
		{"amara.okafor@example.org", "Amara", "Okafor"},
		{"jordan_lee@example.org", "Jordan", "Lee"},
		{"sam@example.org", "Sam", "User"},
		{"first.middle.last@example.org", "First", "Last"},
		{"", "User", "User"},
	}

	for _, tc := range cases {
		first, last := DeriveNameFromEmail(tc.in)
		assert.Equal(t, tc.first, first, tc.in)
		assert.Equal(t, tc.last, last, tc.in)
	}
}
