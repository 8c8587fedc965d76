// Package accesstoken implements the generate-once shared secret that gates
// a node's narrow local admin surface (spec §6 names the file; this package
// carries the generate-once, compare-constant-time behavior the distilled
// spec dropped).
package accesstoken

import (
	"crypto/subtle"
	"os"
	"path/filepath"
	"strings"

	"samizdat/hash"
)

const fileName = "access-token"

// Load reads the access token from <dataDir>/access-token, generating and
// persisting a fresh random one on first run. The file is created with
// O_EXCL so a concurrent second process loses the race and falls back to
// reading what the winner wrote.
func Load(dataDir string) (string, error) {
	path := filepath.Join(dataDir, fileName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err == nil {
		defer f.Close()
		token := generate()
		if _, err := f.WriteString(token); err != nil {
			return "", err
		}
		return token, nil
	}
	if !os.IsExist(err) {
		return "", err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func generate() string {
	n, err := hash.Random()
	if err != nil {
		panic(err)
	}
	return n.String()
}

// Equal compares a presented token against the expected one in constant
// time, so that timing does not leak how many leading bytes matched.
func Equal(expected, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}
