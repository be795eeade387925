package decode

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Exp      int64  `json:"exp"`
	Level    int    `json:"level"`
}

func TestDecodeMap(t *testing.T) {
	out, err := DecodeMap[sample](map[string]any{
		"userId":   "u-1",
		"username": "alice",
		"exp":      float64(1735689600),
		"level":    "3",
		"ignored":  true,
	})
	require.NoError(t, err)
	assert.Equal(t, sample{UserID: "u-1", Username: "alice", Exp: 1735689600, Level: 3}, *out)
}

func TestDecodeMap_JSONNumber(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"exp": 1735689600, "level": 2}`))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))

	out, err := DecodeMap[sample](m)
	require.NoError(t, err)
	assert.Equal(t, int64(1735689600), out.Exp)
	assert.Equal(t, 2, out.Level)
}

func TestDecodeMap_ErrorUnused(t *testing.T) {
	_, err := DecodeMap[sample](map[string]any{"extra": 1}, Options{ErrorUnused: true})
	assert.Error(t, err)

	_, err = DecodeMap[sample](nil)
	assert.Error(t, err)
}
