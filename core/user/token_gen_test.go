package user

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := tokenGenerator{secretKey: []byte("secret"), timeout: 3 * 24 * time.Hour}

	now := time.Now()
	usr := User{
		ID:        1,
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleStudent,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: null.TimeFrom(now),
	}
	_ = usr.SetPassword("pwd")

	validToken, _ := gen.makeToken(usr)

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	core.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := gen.makeToken(usr)
	core.NowFunc = time.Now // reset

	// a new login invalidates issued tokens
	loggedIn := usr
	loggedIn.LastLogin = null.TimeFrom(now.Add(time.Minute))

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "used token", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	uid := EncodeUID(User{ID: 42})
	id, err := decodeUID(uid)
	if err != nil || id != 42 {
		t.Errorf("decodeUID(%q) = %d, %v; want 42", uid, id, err)
	}
	if _, err := decodeUID("!!"); err != errInvalidUID {
		t.Errorf("decodeUID(!!) error = %v, want %v", err, errInvalidUID)
	}
}
