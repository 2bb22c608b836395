package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func signedHeaders(sig string) http.Header {
	h := http.Header{}
	if sig != "" {
		h.Set("X-Notion-Signature", sig)
	}
	return h
}

func TestAuthenticate_WhenNoSecretAndToken_ReturnsChallenge(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator("", "")
	res := a.Authenticate(http.Header{}, []byte(`{"verification_token":"secret_abc123"}`))

	assert.Equal(t, Challenge, res.Kind)
	assert.Equal(t, "secret_abc123", res.Token)
	assert.False(t, a.HasSecret(), "a challenge must not change authenticator state")
}

func TestAuthenticate_WhenNoSecretAndNoToken_IsPermissive(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator("", "")
	res := a.Authenticate(http.Header{}, []byte(`{"type":"page.content_updated"}`))

	assert.Equal(t, Trusted, res.Kind)
}

func TestAuthenticate_WhenNoSecretAndMalformedBody_IsPermissive(t *testing.T) {
	t.Parallel()

	res := NewAuthenticator("", "").Authenticate(http.Header{}, []byte(`{not json`))
	assert.Equal(t, Trusted, res.Kind)
}

func TestAuthenticate_WhenValidSignature_ReturnsTrusted(t *testing.T) {
	t.Parallel()

	body := []byte(`{"type":"page.properties_updated","entity":{"id":"p1"}}`)
	a := NewAuthenticator(testSecret, "")

	res := a.Authenticate(signedHeaders(Signature(testSecret, body)), body)
	assert.Equal(t, Trusted, res.Kind)
}

func TestAuthenticate_WhenSecretSet_IgnoresVerificationToken(t *testing.T) {
	t.Parallel()

	body := []byte(`{"verification_token":"secret_abc123"}`)
	a := NewAuthenticator(testSecret, "")

	res := a.Authenticate(http.Header{}, body)
	assert.Equal(t, Untrusted, res.Kind)
	assert.Equal(t, ReasonSignatureMismatch, res.Reason)

	res = a.Authenticate(signedHeaders(Signature(testSecret, body)), body)
	assert.Equal(t, Trusted, res.Kind)
}

func TestAuthenticate_AnySingleByteBodyMutation_IsUntrusted(t *testing.T) {
	t.Parallel()

	body := []byte(`{"type":"page.created","entity":{"id":"abc"}}`)
	sig := Signature(testSecret, body)
	a := NewAuthenticator(testSecret, "")

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		res := a.Authenticate(signedHeaders(sig), mutated)
		require.Equal(t, Untrusted, res.Kind, "mutation at byte %d", i)
	}
}

func TestAuthenticate_AnySingleByteHeaderMutation_IsUntrusted(t *testing.T) {
	t.Parallel()

	body := []byte(`{"type":"page.created"}`)
	sig := Signature(testSecret, body)
	a := NewAuthenticator(testSecret, "")

	for i := range sig {
		mutated := []byte(sig)
		mutated[i] ^= 0x01
		res := a.Authenticate(signedHeaders(string(mutated)), body)
		require.Equal(t, Untrusted, res.Kind, "mutation at byte %d", i)
	}
}

func TestAuthenticate_WhenDigestLengthDiffers_IsUntrusted(t *testing.T) {
	t.Parallel()

	body := []byte(`{"type":"page.created"}`)
	sig := Signature(testSecret, body)
	a := NewAuthenticator(testSecret, "")

	cases := map[string]string{
		"truncated":       sig[:len(sig)-2],
		"extended":        sig + "00",
		"prefix only":     SignaturePrefix,
		"odd hex":         sig[:len(sig)-1],
		"missing prefix":  strings.TrimPrefix(sig, SignaturePrefix),
		"wrong algorithm": "sha1=" + strings.TrimPrefix(sig, SignaturePrefix),
		"not hex":         SignaturePrefix + strings.Repeat("zz", 32),
		"absent":          "",
	}
	for name, header := range cases {
		assert.NotPanics(t, func() {
			res := a.Authenticate(signedHeaders(header), body)
			assert.Equal(t, Untrusted, res.Kind, name)
			assert.Equal(t, ReasonSignatureMismatch, res.Reason, name)
		}, name)
	}
}

func TestAuthenticate_WhenSignedWithOtherSecret_IsUntrusted(t *testing.T) {
	t.Parallel()

	body := []byte(`{"type":"page.created"}`)
	res := NewAuthenticator(testSecret, "").Authenticate(signedHeaders(Signature("other", body)), body)

	assert.Equal(t, Untrusted, res.Kind)
}

func TestAuthenticate_ChecksExactReceivedBytes(t *testing.T) {
	t.Parallel()

	// The sender signed these exact bytes: unusual spacing and key order.
	original := []byte(`{ "type" : "page.deleted",   "entity":{"id":"x"} , "a":1 }`)
	sig := Signature(testSecret, original)
	a := NewAuthenticator(testSecret, "")

	assert.Equal(t, Trusted, a.Authenticate(signedHeaders(sig), original).Kind)

	// A parsed-then-re-encoded copy differs byte for byte and must not verify.
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(original, &parsed))
	reencoded, err := json.Marshal(parsed)
	require.NoError(t, err)
	require.NotEqual(t, string(original), string(reencoded))

	assert.Equal(t, Untrusted, a.Authenticate(signedHeaders(sig), reencoded).Kind)
}

func TestAuthenticate_UsesConfiguredHeader(t *testing.T) {
	t.Parallel()

	body := []byte(`{}`)
	a := NewAuthenticator(testSecret, "X-Hub-Signature-256")

	h := http.Header{}
	h.Set("X-Hub-Signature-256", Signature(testSecret, body))
	assert.Equal(t, Trusted, a.Authenticate(h, body).Kind)

	assert.Equal(t, Untrusted, a.Authenticate(signedHeaders(Signature(testSecret, body)), body).Kind)
}

func TestResult_ZeroValueIsUntrusted(t *testing.T) {
	t.Parallel()

	var r Result
	assert.Equal(t, Untrusted, r.Kind)
	assert.Equal(t, "untrusted", r.Kind.String())
}
