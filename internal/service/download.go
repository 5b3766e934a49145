// Package service contains application services for export registration and
// link redemption.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
	"github.com/careline/chatvault/internal/otp"
	"github.com/careline/chatvault/internal/token"
)

// LinkRegistry is the durable token -> export-link store consumed by services.
type LinkRegistry interface {
	Create(ctx context.Context, entry *model.ExportLink) error
	Get(ctx context.Context, tok string) (*model.ExportLink, error)
	Update(ctx context.Context, tok string, fn func(*model.ExportLink) error) (*model.ExportLink, error)
	Delete(ctx context.Context, tok string) error
	DeleteAndPurgeArtifact(ctx context.Context, tok string) error
	FindByRevokeID(ctx context.Context, userID int64, revokeID string) (*model.ExportLink, error)
	RevokeIDTaken(ctx context.Context, userID int64, revokeID string) (bool, error)
}

// OTPAttemptsError reports a rejected passcode together with the remaining
// attempt budget. It matches errs.ErrOTPInvalid under errors.Is.
type OTPAttemptsError struct {
	AttemptsLeft int
}

func (e *OTPAttemptsError) Error() string {
	return fmt.Sprintf("invalid otp, %d attempts left", e.AttemptsLeft)
}

func (e *OTPAttemptsError) Unwrap() error { return errs.ErrOTPInvalid }

// DownloadGateway authorizes artifact release for a redemption attempt:
// token verification, OTP challenge, IP pinning, quota enforcement, and
// exhaustion cleanup, mutating registry state on every step.
type DownloadGateway struct {
	reg                LinkRegistry
	signer             *token.Signer
	attemptLimit       int
	deleteOnExhaustion bool
	log                *zap.Logger
}

// NewDownloadGateway constructs the gateway with its redemption policy.
func NewDownloadGateway(reg LinkRegistry, signer *token.Signer, attemptLimit int, deleteOnExhaustion bool, log *zap.Logger) *DownloadGateway {
	if attemptLimit <= 0 {
		attemptLimit = 5
	}
	return &DownloadGateway{
		reg:                reg,
		signer:             signer,
		attemptLimit:       attemptLimit,
		deleteOnExhaustion: deleteOnExhaustion,
		log:                log,
	}
}

// AttemptLimit returns the configured OTP attempt budget per link.
func (g *DownloadGateway) AttemptLimit() int { return g.attemptLimit }

// CheckLink verifies the token signature and registry state without
// consuming anything. Used before rendering the passcode form.
func (g *DownloadGateway) CheckLink(ctx context.Context, signed string) error {
	tok, err := g.signer.Verify(signed)
	if err != nil {
		return err
	}
	e, err := g.reg.Get(ctx, tok)
	if err != nil {
		return err
	}
	if e.Locked {
		return errs.ErrLocked
	}
	return nil
}

// Redeem runs one redemption attempt. On success it returns an already-open
// ReleaseGrant, so streaming the artifact survives delete-on-exhaustion
// cleanup. Failures map to the sentinel taxonomy:
//
//   - bad signature: ErrTokenInvalid, no registry mutation
//   - unknown/revoked token: ErrNotFound
//   - locked link: ErrLocked
//   - wrong passcode: OTPAttemptsError (attempt recorded; reaching the
//     budget locks the link permanently)
//   - pinned-address mismatch: ErrIPMismatch (request rejected, link kept)
//   - exhausted quota: ErrQuotaExhausted
//   - vanished artifact: ErrArtifactMissing (stale entry purged)
func (g *DownloadGateway) Redeem(ctx context.Context, signed, pass, ip string) (*model.ReleaseGrant, error) {
	tok, err := g.signer.Verify(signed)
	if err != nil {
		return nil, err
	}

	// Challenge phase: one read-modify-write cycle covering lockout, OTP,
	// IP pinning, and the quota precheck.
	e, err := g.reg.Update(ctx, tok, func(e *model.ExportLink) error {
		if e.Locked {
			return errs.ErrLocked
		}
		if !otp.Verify(pass, e.OTPHash) {
			e.OTPAttempts++
			if e.OTPAttempts >= g.attemptLimit {
				e.Locked = true
			}
			left := g.attemptLimit - e.OTPAttempts
			if left < 0 {
				left = 0
			}
			return &OTPAttemptsError{AttemptsLeft: left}
		}
		// Attempts are immaterial once matched; they are not reset.
		if e.IPLock == nil {
			pinned := ip
			e.IPLock = &pinned
		} else if *e.IPLock != ip {
			return errs.ErrIPMismatch
		}
		if e.Downloads >= e.MaxDownloads {
			return errs.ErrQuotaExhausted
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrIPMismatch) {
			g.log.Warn("redemption from non-pinned address",
				zap.String("token_prefix", tokenPrefix(tok)),
				zap.String("ip", ip),
			)
		}
		return nil, err
	}

	f, err := os.Open(e.ArtifactPath)
	if errors.Is(err, fs.ErrNotExist) {
		if derr := g.reg.Delete(ctx, tok); derr != nil && !errors.Is(derr, errs.ErrNotFound) {
			g.log.Error("failed to purge stale entry", zap.Error(derr))
		}
		return nil, errs.ErrArtifactMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open artifact: %v", errs.ErrStorage, err)
	}

	// Release phase: recheck quota and increment in the same cycle so two
	// racing redeemers cannot both take the last download.
	e, err = g.reg.Update(ctx, tok, func(e *model.ExportLink) error {
		if e.Downloads >= e.MaxDownloads {
			return errs.ErrQuotaExhausted
		}
		e.Downloads++
		return nil
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if e.Downloads >= e.MaxDownloads {
		g.cleanupExhausted(ctx, tok)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat artifact: %v", errs.ErrStorage, err)
	}
	return &model.ReleaseGrant{
		File: f,
		Name: filepath.Base(e.ArtifactPath),
		Size: info.Size(),
	}, nil
}

// cleanupExhausted removes the registry entry once the quota is spent. The
// artifact goes with it only when the deployment deletes on exhaustion;
// otherwise artifact cleanup is left to an external collaborator.
func (g *DownloadGateway) cleanupExhausted(ctx context.Context, tok string) {
	var err error
	if g.deleteOnExhaustion {
		err = g.reg.DeleteAndPurgeArtifact(ctx, tok)
	} else {
		err = g.reg.Delete(ctx, tok)
	}
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		g.log.Error("failed to clean up exhausted link",
			zap.String("token_prefix", tokenPrefix(tok)),
			zap.Error(err),
		)
	}
}

// tokenPrefix truncates a token for logging; full tokens never hit the logs.
func tokenPrefix(tok string) string {
	if len(tok) > 8 {
		return tok[:8]
	}
	return tok
}
