package tinvault

import (
	"context"
	"errors"
	"testing"

	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	"github.com/bidworks/clearhouse/internal/config"
	"github.com/bidworks/clearhouse/internal/payee"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingAuditSvc struct {
	appended []auditdomain.AppendRequest
	err      error
}

func (s *recordingAuditSvc) Append(ctx context.Context, req auditdomain.AppendRequest) error {
	if s.err != nil {
		return s.err
	}
	s.appended = append(s.appended, req)
	return nil
}

func (s *recordingAuditSvc) List(ctx context.Context, req auditdomain.ListEventsRequest) (auditdomain.ListEventsResponse, error) {
	return auditdomain.ListEventsResponse{}, nil
}

func newTestVault(t *testing.T, audit auditdomain.Service) *Vault {
	t.Helper()
	v, err := New(Params{
		Cfg:      config.Config{TINVaultSecret: "test-secret"},
		Log:      zap.NewNop(),
		AuditSvc: audit,
	})
	require.NoError(t, err)
	return v
}

func testSubject(t *testing.T) payee.Ref {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ref, err := payee.NewRef(payee.TypeUser, node.Generate())
	require.NoError(t, err)
	return ref
}

func TestVaultRequiresSecret(t *testing.T) {
	_, err := New(Params{
		Cfg:      config.Config{},
		Log:      zap.NewNop(),
		AuditSvc: &recordingAuditSvc{},
	})
	assert.ErrorIs(t, err, ErrEncryptionKeyMissing)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	audit := &recordingAuditSvc{}
	v := newTestVault(t, audit)

	ciphertext, lastFour, err := v.Encrypt("123-45-6789")
	require.NoError(t, err)
	assert.Equal(t, "6789", lastFour)
	assert.NotContains(t, ciphertext, "123456789")

	plaintext, err := v.Decrypt(context.Background(), ciphertext, AccessContext{
		Actor:   auditdomain.ActorTypeUser,
		Subject: testSubject(t),
		Purpose: "1099 information reporting",
	})
	require.NoError(t, err)
	assert.Equal(t, "123456789", plaintext)
	require.Len(t, audit.appended, 1)
	assert.Equal(t, auditdomain.EventTypeTINDecrypted, audit.appended[0].EventType)
}

func TestEncryptRejectsMalformedTIN(t *testing.T) {
	v := newTestVault(t, &recordingAuditSvc{})

	_, _, err := v.Encrypt("12345")
	assert.ErrorIs(t, err, ErrInvalidTIN)

	_, _, err = v.Encrypt("")
	assert.ErrorIs(t, err, ErrInvalidTIN)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	v := newTestVault(t, &recordingAuditSvc{})

	first, _, err := v.Encrypt("123-45-6789")
	require.NoError(t, err)
	second, _, err := v.Encrypt("123-45-6789")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	v := newTestVault(t, &recordingAuditSvc{})
	access := AccessContext{
		Actor:   auditdomain.ActorTypeSystem,
		Subject: testSubject(t),
		Purpose: "test",
	}

	_, err := v.Decrypt(context.Background(), "not-base64!!!", access)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = v.Decrypt(context.Background(), "aGVsbG8", access)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptRequiresPurpose(t *testing.T) {
	audit := &recordingAuditSvc{}
	v := newTestVault(t, audit)

	ciphertext, _, err := v.Encrypt("123-45-6789")
	require.NoError(t, err)

	_, err = v.Decrypt(context.Background(), ciphertext, AccessContext{
		Actor:   auditdomain.ActorTypeUser,
		Subject: testSubject(t),
	})
	assert.ErrorIs(t, err, auditdomain.ErrMissingPurpose)
	assert.Empty(t, audit.appended)
}

func TestDecryptFailsClosedOnAuditError(t *testing.T) {
	audit := &recordingAuditSvc{err: errors.New("audit store down")}
	v := newTestVault(t, audit)

	ciphertext, _, err := v.Encrypt("123-45-6789")
	require.NoError(t, err)

	plaintext, err := v.Decrypt(context.Background(), ciphertext, AccessContext{
		Actor:   auditdomain.ActorTypeUser,
		Subject: testSubject(t),
		Purpose: "1099 information reporting",
	})
	assert.ErrorIs(t, err, ErrSecurityAudit)
	assert.Empty(t, plaintext)
}

func TestDifferentSecretsCannotDecrypt(t *testing.T) {
	first := newTestVault(t, &recordingAuditSvc{})

	other, err := New(Params{
		Cfg:      config.Config{TINVaultSecret: "another-secret"},
		Log:      zap.NewNop(),
		AuditSvc: &recordingAuditSvc{},
	})
	require.NoError(t, err)

	ciphertext, _, err := first.Encrypt("123-45-6789")
	require.NoError(t, err)

	_, err = other.Decrypt(context.Background(), ciphertext, AccessContext{
		Actor:   auditdomain.ActorTypeSystem,
		Subject: testSubject(t),
		Purpose: "test",
	})
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}
