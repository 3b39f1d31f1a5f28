package qr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"points-commerce-engine/internal/core/ports"
	"points-commerce-engine/pkg/apperror"

	"github.com/google/uuid"
)

// Envelope is the payload carried inside a scannable payment code. The
// wire form is base64url(payload JSON) + "." + hex(HMAC-SHA256), so a
// tampered amount or card id fails signature verification before any
// business logic runs.
type Envelope struct {
	CardID   uuid.UUID `json:"card_id"`
	Amount   int64     `json:"amount"`
	Nonce    string    `json:"nonce"`
	IssuedAt int64     `json:"issued_at"` // Unix seconds
}

// Codec signs and verifies QR payment envelopes.
type Codec struct {
	secret   string
	maxDrift time.Duration
	signer   ports.SignatureService
	nonces   ports.NonceStore
	now      func() time.Time
}

// NewCodec creates a Codec. maxDrift bounds how old (or future-dated) an
// envelope may be and also sets the nonce retention window.
func NewCodec(secret string, maxDrift time.Duration, signer ports.SignatureService, nonces ports.NonceStore) *Codec {
	return &Codec{
		secret:   secret,
		maxDrift: maxDrift,
		signer:   signer,
		nonces:   nonces,
		now:      time.Now,
	}
}

// Encode serializes and signs an envelope for display as a QR code.
func (c *Codec) Encode(env Envelope) (string, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	sig := c.signer.Sign(c.secret, string(payload))
	return base64.RawURLEncoding.EncodeToString(payload) + "." + sig, nil
}

// Decode verifies a scanned envelope: signature first, then freshness,
// then nonce single-use. A replayed envelope is distinguishable from a
// forged one so the operator sees the right error.
func (c *Codec) Decode(ctx context.Context, raw string) (*Envelope, error) {
	encoded, sig, ok := strings.Cut(raw, ".")
	if !ok {
		return nil, apperror.ErrInvalidEnvelope()
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperror.ErrInvalidEnvelope()
	}
	if !c.signer.Verify(c.secret, string(payload), sig) {
		return nil, apperror.ErrInvalidEnvelope()
	}

	env := &Envelope{}
	if err := json.Unmarshal(payload, env); err != nil {
		return nil, apperror.ErrInvalidEnvelope()
	}
	if env.CardID == uuid.Nil || env.Nonce == "" || env.Amount <= 0 {
		return nil, apperror.ErrInvalidEnvelope()
	}

	issued := time.Unix(env.IssuedAt, 0)
	drift := c.now().Sub(issued)
	if drift > c.maxDrift || drift < -c.maxDrift {
		return nil, apperror.ErrInvalidEnvelope()
	}

	// The nonce is retained twice the drift window so a replay arriving
	// at the freshness boundary still hits the stored nonce.
	fresh, err := c.nonces.CheckAndSet(ctx, env.CardID.String(), env.Nonce, 2*c.maxDrift)
	if err != nil {
		return nil, apperror.TransientError(fmt.Errorf("nonce check: %w", err))
	}
	if !fresh {
		return nil, apperror.ErrEnvelopeReplayed()
	}

	return env, nil
}
