package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		SecretOpenAIKey:    "sk-test-123",
		SecretAnthropicKey: "sk-ant-456",
	}

	require.NoError(t, EncryptSecretsFile(dir, "correct horse", secrets))
	require.True(t, SecretsFileExists(dir))

	got, err := DecryptSecretsFile(dir, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, secrets, got)
}

func TestDecrypt_WrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EncryptSecretsFile(dir, "right", map[string]string{"K": "v"}))

	_, err := DecryptSecretsFile(dir, "wrong")
	assert.Error(t, err)
}

func TestDecrypt_TruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, secretsFileName)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := DecryptSecretsFile(dir, "pw")
	assert.Error(t, err)
}

func TestGetSecret_Precedence(t *testing.T) {
	t.Setenv("ESTIMATOR_TEST_SECRET", "from-env")
	SetDecryptedSecrets(map[string]string{"ESTIMATOR_TEST_SECRET": "from-file"})
	defer SetDecryptedSecrets(nil)

	// Decrypted file wins over env.
	val, err := GetSecret("ESTIMATOR_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", val)

	// Env is the fallback.
	SetDecryptedSecrets(nil)
	val, err = GetSecret("ESTIMATOR_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)
}

func TestGetSecret_NotFound(t *testing.T) {
	SetDecryptedSecrets(nil)
	_, err := GetSecret("DEFINITELY_NOT_SET_ANYWHERE_12345")
	assert.Error(t, err)
}

func TestSetSecret(t *testing.T) {
	SetDecryptedSecrets(nil)
	defer SetDecryptedSecrets(nil)

	SetSecret(SecretGoogleKey, "g-key")
	val, err := GetSecret(SecretGoogleKey)
	require.NoError(t, err)
	assert.Equal(t, "g-key", val)
	assert.Contains(t, SecretNames(), SecretGoogleKey)
}
