// Package auth validates Telegram WebApp init data without a round
// trip to Telegram: the payload carries an HMAC over its own fields,
// keyed from the bot token.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/nstepura/Ring/internal/domain"
)

var (
	ErrNoBotToken      = errors.New("bot token not configured")
	ErrInvalidInitData = errors.New("invalid init data")
)

// Verifier checks init-data payloads against a shared bot token.
type Verifier struct {
	botToken string
}

func NewVerifier(botToken string) *Verifier {
	return &Verifier{botToken: botToken}
}

// telegramUser is the shape of the "user" field inside init data.
type telegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

// Verify checks the payload signature and, on success, returns the
// identity embedded in its "user" field. Every failure mode comes
// back as ErrInvalidInitData; nothing here panics into caller logic.
func (v *Verifier) Verify(initData string) (*domain.User, error) {
	if v.botToken == "" {
		return nil, ErrNoBotToken
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	suppliedHash := values.Get("hash")
	if suppliedHash == "" {
		return nil, ErrInvalidInitData
	}
	values.Del("hash")

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}
	checkString := strings.Join(lines, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(v.botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time compare, the hash is attacker controlled.
	if !hmac.Equal([]byte(expected), []byte(suppliedHash)) {
		return nil, ErrInvalidInitData
	}

	var tu telegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &tu); err != nil {
		return nil, ErrInvalidInitData
	}
	return &domain.User{
		ID:        domain.UserIDFromInt(tu.ID),
		FirstName: tu.FirstName,
		LastName:  tu.LastName,
		Username:  tu.Username,
		PhotoURL:  tu.PhotoURL,
	}, nil
}
