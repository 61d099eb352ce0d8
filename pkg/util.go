package pkg

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"unsafe"
)

const randomStringCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// BytesToString converts bytes slice to a string without extra allocation
func BytesToString(buf []byte) string {
	return *(*string)(unsafe.Pointer(&buf))
}

// GenerateRandomBytes returns securely generated random bytes.
// It will return an error if the system's secure random
// number generator fails to function correctly, in which
// case the caller should not continue
func GenerateRandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("invalid number of bytes requested")
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}

	return b, nil
}

// GenerateRandomString returns a securely generated random string
// of exactly n characters, suitable for OAuth state values.
func GenerateRandomString(n int) (string, error) {
	b, err := GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}

	for i, randByte := range b {
		b[i] = randomStringCharset[int(randByte)%len(randomStringCharset)]
	}

	return string(b), nil
}

// PathExists returns whether the given file or directory exists
func PathExists(path string, isDir bool) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if isDir == stat.IsDir() {
		return true, nil
	}
	if isDir {
		return false, fmt.Errorf("%s exists, but is not a directory", path)
	}
	return false, fmt.Errorf("%s exists, but is a directory", path)
}
