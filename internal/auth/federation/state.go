package federation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/aussiebroadwan/quackwell/pkg/cryptox"
)

// StateCookieName holds the sealed OAuth state between redirect and callback.
const StateCookieName = "oauth_state"

const defaultStateTTL = 10 * time.Minute

var ErrStateMismatch = errors.New("federation: oauth state mismatch")

// StateGuard protects the callback against CSRF. The random state goes to
// Google in the URL and, sealed, into a short lived cookie; the callback must
// present both and they must agree.
type StateGuard struct {
	sealer *cryptox.Sealer
	ttl    time.Duration
	now    func() time.Time
}

func NewStateGuard(sealer *cryptox.Sealer) *StateGuard {
	return &StateGuard{sealer: sealer, ttl: defaultStateTTL, now: time.Now}
}

func (g *StateGuard) TTL() time.Duration { return g.ttl }

type sealedState struct {
	State   string `json:"s"`
	Expires int64  `json:"e"`
}

// Issue returns a fresh state and the cookie value carrying it.
func (g *StateGuard) Issue() (state, cookie string, err error) {
	state, err = cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", "", err
	}

	payload, err := json.Marshal(sealedState{State: state, Expires: g.now().Add(g.ttl).Unix()})
	if err != nil {
		return "", "", err
	}

	cookie, err = g.sealer.Seal(payload)
	if err != nil {
		return "", "", err
	}
	return state, cookie, nil
}

// Check verifies that the state returned by Google matches the cookie.
func (g *StateGuard) Check(cookie, state string) error {
	if cookie == "" || state == "" {
		return ErrStateMismatch
	}

	payload, err := g.sealer.Open(cookie)
	if err != nil {
		return ErrStateMismatch
	}

	var s sealedState
	if err := json.Unmarshal(payload, &s); err != nil {
		return ErrStateMismatch
	}
	if g.now().Unix() > s.Expires {
		return ErrStateMismatch
	}
	if !cryptox.FingerprintsEqual(s.State, state) {
		return ErrStateMismatch
	}
	return nil
}
