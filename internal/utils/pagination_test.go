package utils_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-server/internal/utils"
)

func TestCursorRoundtrip(t *testing.T) {
	id := uuid.New()
	createdAt := time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)

	cursor := utils.EncodeCursor(createdAt, id)
	require.NotEmpty(t, cursor)

	decodedTime, decodedID, err := utils.DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(decodedTime), "время должно пережить кодирование без потерь")
	assert.Equal(t, id, decodedID)
}

func TestEncodeCursorRequiresBothParts(t *testing.T) {
	assert.Empty(t, utils.EncodeCursor(time.Time{}, uuid.New()))
	assert.Empty(t, utils.EncodeCursor(time.Now(), uuid.Nil))
}

func TestDecodeCursorEmptyMeansStart(t *testing.T) {
	decodedTime, decodedID, err := utils.DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, decodedTime.IsZero())
	assert.Equal(t, uuid.Nil, decodedID)
}

func TestDecodeCursorInvalid(t *testing.T) {
	testCases := []struct {
		name   string
		cursor string
	}{
		{"не base64", "%%%not-base64%%%"},
		{"нет разделителя", base64.URLEncoding.EncodeToString([]byte("12345"))},
		{"нечисловой timestamp", base64.URLEncoding.EncodeToString([]byte("abc_" + uuid.NewString()))},
		{"невалидный uuid", base64.URLEncoding.EncodeToString([]byte("12345_not-a-uuid"))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := utils.DecodeCursor(tc.cursor)
			assert.Error(t, err)
		})
	}
}
