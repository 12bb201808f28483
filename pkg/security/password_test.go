package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/security"
)

var fastArgon = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", fastArgon)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := security.HashPassword("", fastArgon)
	require.Error(t, err)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	_, err := security.VerifyPassword("irrelevant", "not-a-hash")
	require.ErrorIs(t, err, security.ErrInvalidHash)
}

func TestVerifyPIN(t *testing.T) {
	hash, err := security.HashPassword("4821", fastArgon)
	require.NoError(t, err)

	ok, err := security.VerifyPIN("4821", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = security.VerifyPIN("", hash)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = security.VerifyPIN("4821", "")
	require.ErrorIs(t, err, security.ErrPINNotConfigured)
}

func TestRandomNumberString(t *testing.T) {
	for i := 0; i < 50; i++ {
		v, err := security.RandomNumberString(13)
		require.NoError(t, err)
		require.Len(t, v, 13)
		require.NotEqual(t, byte('0'), v[0])
		for _, r := range v {
			require.True(t, r >= '0' && r <= '9', "unexpected rune %q", r)
		}
	}

	one, err := security.RandomNumberString(1)
	require.NoError(t, err)
	require.Len(t, one, 1)

	_, err = security.RandomNumberString(0)
	require.Error(t, err)
}

func TestGenerateTempPassword(t *testing.T) {
	pw, err := security.GenerateTempPassword(20)
	require.NoError(t, err)
	require.Len(t, pw, 20)
}
