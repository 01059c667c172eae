package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommentObjType(t *testing.T) {
	for _, s := range []string{"seqvar", "strucvar", "gene"} {
		objType, err := ParseCommentObjType(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(objType))
	}

	for _, s := range []string{"", "Gene", "variant"} {
		_, err := ParseCommentObjType(s)
		assert.ErrorIs(t, err, ErrInvalidCommentObjType, s)
	}
}

func TestAdminMessageIsActiveAt(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	stop := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	message := AdminMessage{ActiveStart: start, ActiveStop: stop, Enabled: true}

	type Test struct {
		description string
		now         time.Time
		expected    bool
	}
	tests := []Test{
		{"before", start.Add(-time.Second), false},
		{"at start", start, true},
		{"inside", start.Add(24 * time.Hour), true},
		{"at stop", stop, true},
		{"after", stop.Add(time.Second), false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, message.IsActiveAt(tc.now), tc.description)
	}

	message.Enabled = false
	assert.False(t, message.IsActiveAt(start.Add(time.Hour)))
}

func TestCreateValidatesBeforeQuerying(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := AdminMessage_Create(nil, [16]byte{1}, "title", nil, start, start.Add(-time.Nanosecond), true)
	assert.ErrorIs(t, err, ErrInvalidActiveWindow)

	long := make([]rune, maxTitleLength+1)
	for i := range long {
		long[i] = 'ü'
	}
	_, err = AdminMessage_Create(nil, [16]byte{1}, string(long), nil, start, start, true)
	assert.ErrorIs(t, err, ErrTitleTooLong)

	_, err = Comment_Create(nil, [16]byte{1}, "variant", "chr1:1", "text", true)
	assert.ErrorIs(t, err, ErrInvalidCommentObjType)

	_, err = User_Create(nil, "a@example.com", "short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
