package codes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// StaffCodes derives the deterministic staff code of a store. Nothing is
// stored: a code is valid for anyone during its window and the one after it,
// and cannot be revoked early. Stored join codes exist for the cases that need
// single use or instant revocation.
type StaffCodes struct {
	secret []byte
	window time.Duration
}

// StaffCode is the code for one window.
type StaffCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewStaffCodes creates a new staff code generator. It fails on an empty
// secret or a non-positive window.
func NewStaffCodes(secret []byte, window time.Duration) (*StaffCodes, error) {
	if len(secret) == 0 {
		return nil, errors.New("staff code secret is empty")
	}
	if window <= 0 {
		return nil, errors.New("staff code window must be positive")
	}
	return &StaffCodes{secret: secret, window: window}, nil
}

// Current returns the code of the window containing t and the end of that
// window.
func (s *StaffCodes) Current(storeID int64, t time.Time) StaffCode {
	w := s.windowIndex(t)
	return StaffCode{
		Code:      s.codeFor(storeID, w),
		ExpiresAt: time.UnixMilli((w + 1) * s.window.Milliseconds()).UTC(),
	}
}

// Verify accepts the code of the window containing t or of the window just
// before it.
func (s *StaffCodes) Verify(storeID int64, code string, t time.Time) bool {
	if !IsNumeric(code) {
		return false
	}
	w := s.windowIndex(t)
	for _, candidate := range []int64{w, w - 1} {
		if hmac.Equal([]byte(s.codeFor(storeID, candidate)), []byte(code)) {
			return true
		}
	}
	return false
}

func (s *StaffCodes) windowIndex(t time.Time) int64 {
	return t.UnixMilli() / s.window.Milliseconds()
}

func (s *StaffCodes) codeFor(storeID int64, window int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(storeID, 10) + ":" + strconv.FormatInt(window, 10)))
	sum := mac.Sum(nil)
	n := binary.BigEndian.Uint32(sum[:4]) % 1_000_000
	return fmt.Sprintf("%06d", n)
}
