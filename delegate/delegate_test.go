package delegate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shazhou-ww/casfa-sub002/casfaerr"
)

func TestCheckActiveAllowsLiveDelegate(t *testing.T) {
	d := &Delegate{ID: "root", Chain: []string{"root"}}
	require.NoError(t, CheckActive(d))
}

func TestCheckActiveRejectsRevokedRoot(t *testing.T) {
	d := &Delegate{ID: "root", Chain: []string{"root"}, IsRevoked: true}
	err := CheckActive(d)
	var cerr *casfaerr.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, casfaerr.ErrRootDelegateRevoked.Code, cerr.Code)
}

func TestCheckActiveRejectsRevokedNonRoot(t *testing.T) {
	d := &Delegate{ID: "child", Chain: []string{"root", "child"}, IsRevoked: true}
	err := CheckActive(d)
	var cerr *casfaerr.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, casfaerr.ErrDelegateRevoked.Code, cerr.Code)
}

func TestCheckActiveRejectsExpired(t *testing.T) {
	d := &Delegate{ID: "child", Chain: []string{"root", "child"}, ATExpiresAt: time.Now().Add(-time.Minute)}
	err := CheckActive(d)
	var cerr *casfaerr.Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, casfaerr.ErrDelegateExpired.Code, cerr.Code)
}

func TestCheckActiveAllowsZeroExpiry(t *testing.T) {
	d := &Delegate{ID: "root", Chain: []string{"root"}} // zero ATExpiresAt means "no expiry set"
	require.NoError(t, CheckActive(d))
}

func TestCheckActiveAllowsFutureExpiry(t *testing.T) {
	d := &Delegate{ID: "child", Chain: []string{"root", "child"}, ATExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, CheckActive(d))
}
