package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("HG_TEST_API_KEY", "secret123")
	t.Setenv("HG_TEST_HOST", "example.com")

	got := ExpandEnv([]byte("api_key_env: ${HG_TEST_API_KEY}\nhost: $HG_TEST_HOST"))
	assert.Equal(t, "api_key_env: secret123\nhost: example.com", string(got))
}

func TestExpandEnv_MissingVariableExpandsToEmpty(t *testing.T) {
	got := ExpandEnv([]byte("endpoint: ${HG_TEST_DOES_NOT_EXIST}"))
	assert.Equal(t, "endpoint: ", string(got))
}
