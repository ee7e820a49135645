package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "registro/pkg/domain-errors"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		country string
		want    string
	}{
		{"national with leading zero", "0788123456", "RW", "+250.788123456"},
		{"bare national", "788123456", "RW", "+250.788123456"},
		{"already prefixed", "+250788123456", "RW", "+250.788123456"},
		{"already normalized", "+250.788123456", "RW", "+250.788123456"},
		{"00 international prefix", "00250788123456", "RW", "+250.788123456"},
		{"spaces and dashes", "078-812 3456", "RW", "+250.788123456"},
		{"kenyan number", "0722123456", "KE", "+254.722123456"},
		{"lowercase country", "0788123456", "rw", "+250.788123456"},
		{"us number", "(555) 867-5309", "US", "+1.5558675309"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.raw, tc.country)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// Normalizing an already-normalized number must not double the prefix.
func TestNormalizePhoneIdempotent(t *testing.T) {
	first, err := NormalizePhone("0788123456", "RW")
	require.NoError(t, err)

	second, err := NormalizePhone(first, "RW")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizePhoneErrors(t *testing.T) {
	_, err := NormalizePhone("0788123456", "XX")
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))

	_, err = NormalizePhone("no digits here", "RW")
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))

	_, err = NormalizePhone("0000", "RW")
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}
