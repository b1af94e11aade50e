// Copyright (C) 2024 The nongcunshaoye/pulseaudio Authors. All Rights Reserved.

package pulseaudio

import (
	"fmt"
	"os"
	"path/filepath"
)

// CookieSize is the fixed size of the authentication cookie file, matching
// PA_NATIVE_COOKIE_LENGTH in the original source.
const CookieSize = 256

// DefaultCookieFile is the path, relative to the user's home directory, of
// the well-known per-user cookie file, matching PA_NATIVE_COOKIE_FILE.
const DefaultCookieFile = ".config/pulse/cookie"

// loadCookie loads the fixed-size authentication cookie from the user's home
// directory. A missing file or a short read both report an error; the
// caller (Connect) maps either into ErrAuthKey, matching
// pa_authkey_load_from_home in the original source.
func loadCookie() ([CookieSize]byte, error) {
	var cookie [CookieSize]byte

	home, err := os.UserHomeDir()
	if err != nil {
		return cookie, fmt.Errorf("locate home directory: %w", err)
	}

	f, err := os.Open(filepath.Join(home, DefaultCookieFile))
	if err != nil {
		return cookie, fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()

	n, err := f.Read(cookie[:])
	if err != nil && n != CookieSize {
		return cookie, fmt.Errorf("read cookie file: %w", err)
	}
	if n != CookieSize {
		return cookie, fmt.Errorf("short cookie file (%d of %d bytes)", n, CookieSize)
	}
	return cookie, nil
}
