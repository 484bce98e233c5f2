package security

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	signer := NewSigner("test-secret")

	params := map[string]string{
		"action": "complete_todo",
		"id":     "42",
		"ts":     "1700000000000",
	}

	sig := signer.Sign(params)
	require.NotEmpty(t, sig)

	query := map[string]string{
		"action": "complete_todo",
		"id":     "42",
		"ts":     "1700000000000",
		"sig":    sig,
	}
	assert.True(t, signer.Verify(query))
}

func TestSign_KeyOrderIndependent(t *testing.T) {
	signer := NewSigner("test-secret")

	a := signer.Sign(map[string]string{"b": "2", "a": "1"})
	b := signer.Sign(map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, a, b)
}

func TestVerify_TamperedParamFails(t *testing.T) {
	signer := NewSigner("test-secret")

	params := map[string]string{"action": "complete_todo", "id": "42"}
	query := map[string]string{
		"action": "complete_todo",
		"id":     "43", // changed after signing
		"sig":    signer.Sign(params),
	}
	assert.False(t, signer.Verify(query))
}

func TestVerify_MissingSigFails(t *testing.T) {
	signer := NewSigner("test-secret")
	assert.False(t, signer.Verify(map[string]string{"action": "complete_todo"}))
}

func TestVerify_WrongSecretFails(t *testing.T) {
	params := map[string]string{"action": "dismiss", "id": "7"}
	query := map[string]string{
		"action": "dismiss",
		"id":     "7",
		"sig":    NewSigner("secret-a").Sign(params),
	}
	assert.False(t, NewSigner("secret-b").Verify(query))
}

func TestActionURL_VerifiesAfterParsing(t *testing.T) {
	signer := NewSigner("test-secret")

	raw := signer.ActionURL("https://triage.example.com", "b6f0f8d2-5f0e-4f35-9f58-3a57a8f8f001", "complete_todo", "99", 1700000000000)
	require.True(t, strings.HasPrefix(raw, "https://triage.example.com/api/cmd?"))

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	query := map[string]string{}
	for k, vs := range parsed.Query() {
		query[k] = vs[0]
	}
	assert.True(t, signer.Verify(query))
}
