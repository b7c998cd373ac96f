package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nstepura/Ring/internal/domain"
)

const testBotToken = "12345:TEST-TOKEN"

// signInitData produces a payload signed the way the platform signs
// Web App init data.
func signInitData(botToken string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func validFields() map[string]string {
	return map[string]string{
		"auth_date": "1724800000",
		"query_id":  "AAH9mzEexampleQuery",
		"user":      `{"id":81927361,"first_name":"Nika","last_name":"S","username":"nika_s"}`,
	}
}

func Test_Verify_Accepts_Signed_Payload(t *testing.T) {
	req := require.New(t)
	v := NewVerifier(testBotToken)

	user, err := v.Verify(signInitData(testBotToken, validFields()))
	req.NoError(err)
	req.Equal(domain.UserID("81927361"), user.ID)
	req.Equal("Nika", user.FirstName)
	req.Equal("nika_s", user.Username)
}

func Test_Verify_Rejects_Tampered_Field(t *testing.T) {
	req := require.New(t)
	v := NewVerifier(testBotToken)

	fields := validFields()
	payload := signInitData(testBotToken, fields)
	// Flip one character of the embedded user id after signing.
	tampered := strings.Replace(payload, "81927361", "81927362", 1)
	req.NotEqual(payload, tampered)

	_, err := v.Verify(tampered)
	req.ErrorIs(err, ErrInvalidInitData)
}

func Test_Verify_Rejects_Missing_Hash(t *testing.T) {
	req := require.New(t)
	v := NewVerifier(testBotToken)

	values, err := url.ParseQuery(signInitData(testBotToken, validFields()))
	req.NoError(err)
	values.Del("hash")

	_, err = v.Verify(values.Encode())
	req.ErrorIs(err, ErrInvalidInitData)
}

func Test_Verify_Rejects_Foreign_Signature(t *testing.T) {
	req := require.New(t)
	v := NewVerifier(testBotToken)

	_, err := v.Verify(signInitData("999:OTHER-TOKEN", validFields()))
	req.ErrorIs(err, ErrInvalidInitData)
}

func Test_Verify_Without_Token_Fails_Closed(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("")

	_, err := v.Verify(signInitData(testBotToken, validFields()))
	req.ErrorIs(err, ErrNoBotToken)
}
