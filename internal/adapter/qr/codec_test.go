package qr

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"points-commerce-engine/internal/service"
	"points-commerce-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memNonceStore is an in-memory ports.NonceStore for codec tests.
type memNonceStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memNonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	key := scope + ":" + nonce
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func newTestCodec() *Codec {
	return NewCodec("qr-signing-secret", 90*time.Second, service.NewHMACSignatureService(), &memNonceStore{})
}

func validEnvelope() Envelope {
	return Envelope{
		CardID:   uuid.New(),
		Amount:   150,
		Nonce:    "nonce-001",
		IssuedAt: time.Now().Unix(),
	}
}

func TestCodec_EncodeDecode(t *testing.T) {
	codec := newTestCodec()
	env := validEnvelope()

	raw, err := codec.Encode(env)
	require.NoError(t, err)
	assert.Contains(t, raw, ".")

	decoded, err := codec.Decode(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, env.CardID, decoded.CardID)
	assert.Equal(t, env.Amount, decoded.Amount)
	assert.Equal(t, env.Nonce, decoded.Nonce)
}

func TestCodec_Decode_Replay(t *testing.T) {
	codec := newTestCodec()
	raw, err := codec.Encode(validEnvelope())
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), raw)
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), raw)
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_005", appErr.Code)
}

func TestCodec_Decode_TamperedPayload(t *testing.T) {
	codec := newTestCodec()
	raw, err := codec.Encode(validEnvelope())
	require.NoError(t, err)

	// Flip a character in the payload part, keep the signature.
	parts := strings.SplitN(raw, ".", 2)
	payload := []byte(parts[0])
	payload[0] ^= 1
	tampered := string(payload) + "." + parts[1]

	_, err = codec.Decode(context.Background(), tampered)
	assert.Error(t, err)
}

func TestCodec_Decode_WrongSecret(t *testing.T) {
	signer := service.NewHMACSignatureService()
	issuing := NewCodec("secret-a", 90*time.Second, signer, &memNonceStore{})
	verifying := NewCodec("secret-b", 90*time.Second, signer, &memNonceStore{})

	raw, err := issuing.Encode(validEnvelope())
	require.NoError(t, err)

	_, err = verifying.Decode(context.Background(), raw)
	assert.Error(t, err)
}

func TestCodec_Decode_Stale(t *testing.T) {
	codec := newTestCodec()
	env := validEnvelope()
	env.IssuedAt = time.Now().Add(-5 * time.Minute).Unix()

	raw, err := codec.Encode(env)
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), raw)
	assert.Error(t, err, "envelope past the freshness window should be rejected")
}

func TestCodec_Decode_FutureDated(t *testing.T) {
	codec := newTestCodec()
	env := validEnvelope()
	env.IssuedAt = time.Now().Add(5 * time.Minute).Unix()

	raw, err := codec.Encode(env)
	require.NoError(t, err)

	_, err = codec.Decode(context.Background(), raw)
	assert.Error(t, err, "clock-skewed future envelope should be rejected")
}

func TestCodec_Decode_Garbage(t *testing.T) {
	codec := newTestCodec()

	for _, raw := range []string{"", "no-dot", "!!!.sig", "aGVsbG8.badsig"} {
		_, err := codec.Decode(context.Background(), raw)
		assert.Error(t, err, "input %q should be rejected", raw)
	}
}
