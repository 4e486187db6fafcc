package crypto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Sealer{Iterations: 1000}

func TestSealOpen(t *testing.T) {
	sealed, err := fast.Seal([]byte(`{"token":"abc"}`), "pw")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "abc")

	plain, err := fast.Open(sealed, "pw")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, string(plain))
}

func TestOpenWrongPassword(t *testing.T) {
	sealed, err := fast.Seal([]byte("secret"), "pw")
	require.NoError(t, err)

	_, err = fast.Open(sealed, "other")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, err := fast.Seal([]byte("same"), "pw")
	require.NoError(t, err)
	b, err := fast.Seal([]byte("same"), "pw")
	require.NoError(t, err)

	var ea, eb envelope
	require.NoError(t, json.Unmarshal(a, &ea))
	require.NoError(t, json.Unmarshal(b, &eb))
	assert.NotEqual(t, ea.Salt, eb.Salt)
	assert.NotEqual(t, ea.Ciphertext, eb.Ciphertext)
}

func TestOpenRejectsBadInput(t *testing.T) {
	tests := map[string]struct {
		data     string
		password string
	}{
		"empty password":  {data: `{}`, password: ""},
		"not json":        {data: `nope`, password: "pw"},
		"unknown version": {data: `{"version":9}`, password: "pw"},
		"bad salt":        {data: `{"version":1,"salt":"!!"}`, password: "pw"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := fast.Open([]byte(tt.data), tt.password)
			assert.Error(t, err)
		})
	}
}

func TestSealRequiresPassword(t *testing.T) {
	_, err := fast.Seal([]byte("x"), "")
	assert.Error(t, err)
}
