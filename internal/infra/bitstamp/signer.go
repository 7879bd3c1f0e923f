package bitstamp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Signer handles Bitstamp API v1 authentication.
// It stores keys as []byte to allow memory wiping.
type Signer struct {
	apiKey     []byte
	secretKey  []byte
	customerID []byte
	nonce      atomic.Int64
}

// NewSigner creates a new signer. The nonce starts at the current Unix
// microsecond so it keeps increasing across restarts.
func NewSigner(apiKey, secretKey, customerID string) *Signer {
	s := &Signer{
		apiKey:     []byte(apiKey),
		secretKey:  []byte(secretKey),
		customerID: []byte(customerID),
	}
	s.nonce.Store(time.Now().UnixMicro())
	return s
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	for _, b := range [][]byte{s.apiKey, s.secretKey, s.customerID} {
		for i := range b {
			b[i] = 0
		}
	}
}

// NextNonce returns a strictly increasing nonce, never behind the clock.
func (s *Signer) NextNonce() int64 {
	for {
		prev := s.nonce.Load()
		next := time.Now().UnixMicro()
		if next <= prev {
			next = prev + 1
		}
		if s.nonce.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// AuthParams returns key, signature and nonce for one private request.
// signature = upper-hex HMAC-SHA256(secret, nonce + customer_id + key).
func (s *Signer) AuthParams() (key, signature, nonce string) {
	nonce = strconv.FormatInt(s.NextNonce(), 10)
	return string(s.apiKey), s.computeHmacSha256(nonce + string(s.customerID) + string(s.apiKey)), nonce
}

func (s *Signer) computeHmacSha256(payload string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
