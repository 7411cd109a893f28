package tinvault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	auditdomain "github.com/bidworks/clearhouse/internal/audit/domain"
	"github.com/bidworks/clearhouse/internal/config"
	obsmetrics "github.com/bidworks/clearhouse/internal/observability/metrics"
	"github.com/bidworks/clearhouse/internal/payee"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidTIN           = errors.New("invalid_tin")
	ErrInvalidCiphertext    = errors.New("invalid_ciphertext")
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrSecurityAudit        = errors.New("security_audit_failure")
)

// hkdfInfo pins the derived key to this use so the same secret can safely
// feed other derivations later.
const hkdfInfo = "clearhouse/tin-vault/v1"

// AccessContext identifies who is reading a plaintext TIN and why. Purpose
// is mandatory; decryption without a recorded purpose never happens.
type AccessContext struct {
	Actor     auditdomain.ActorType
	ActorID   *string
	Subject   payee.Ref
	Purpose   string
	IPAddress string
}

type envelope struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Vault encrypts taxpayer identifiers with AES-256-GCM and gates every
// decryption behind a committed audit event.
type Vault struct {
	log        *zap.Logger
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
	key        []byte
}

func New(p Params) (*Vault, error) {
	secret := strings.TrimSpace(p.Cfg.TINVaultSecret)
	if secret == "" {
		return nil, ErrEncryptionKeyMissing
	}

	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}

	return &Vault{
		log:        p.Log.Named("tinvault"),
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
		key:        key,
	}, nil
}

// Encrypt seals a normalized TIN and returns the envelope alongside the
// last four digits extracted from the plaintext.
func (v *Vault) Encrypt(rawTIN string) (ciphertext string, lastFour string, err error) {
	normalized := Normalize(rawTIN)
	if len(normalized) != tinLength {
		return "", "", ErrInvalidTIN
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(normalized), nil)
	encoded, err := json.Marshal(envelope{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", "", err
	}

	return base64.RawStdEncoding.EncodeToString(encoded), normalized[len(normalized)-4:], nil
}

// Decrypt opens the envelope and returns the plaintext TIN. Exactly one
// tin_decrypted audit event is committed before plaintext is released; a
// failed audit write aborts with ErrSecurityAudit and no plaintext.
func (v *Vault) Decrypt(ctx context.Context, ciphertext string, access AccessContext) (string, error) {
	if strings.TrimSpace(access.Purpose) == "" {
		return "", auditdomain.ErrMissingPurpose
	}

	plaintext, err := v.open(ciphertext)
	if err != nil {
		return "", err
	}

	if err := v.auditSvc.Append(ctx, auditdomain.AppendRequest{
		Actor:     access.Actor,
		ActorID:   access.ActorID,
		Subject:   access.Subject,
		EventType: auditdomain.EventTypeTINDecrypted,
		Purpose:   access.Purpose,
		IPAddress: access.IPAddress,
	}); err != nil {
		v.log.Error("audit write failed during tin decrypt, failing closed",
			zap.String("subject", access.Subject.String()),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrSecurityAudit, err)
	}

	v.obsMetrics.IncTINDecryption()
	return plaintext, nil
}

func (v *Vault) open(ciphertext string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version != 1 {
		return "", ErrInvalidCiphertext
	}

	nonce, err := base64.RawStdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	sealed, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
