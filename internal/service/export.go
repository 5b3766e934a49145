package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/careline/chatvault/internal/archive"
	"github.com/careline/chatvault/internal/crypto"
	"github.com/careline/chatvault/internal/errs"
	"github.com/careline/chatvault/internal/model"
	"github.com/careline/chatvault/internal/notify"
	"github.com/careline/chatvault/internal/otp"
	"github.com/careline/chatvault/internal/token"
)

// Export bundles at most this many messages, oldest first.
const exportMessageLimit = 30

const revokeIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"

// HistorySource supplies decrypted conversation ranges for export.
type HistorySource interface {
	Range(userID int64, from, to time.Time, limit int) ([]model.Message, error)
}

// Summarizer produces a counselor-facing summary of a dialogue. Conversation
// generation lives outside this module; a nil Summarizer skips the summary.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []model.Message) (string, error)
}

// RecipientSource resolves the delivery address registered for a user.
type RecipientSource interface {
	Recipient(userID int64) (string, error)
}

// Receipt is what the owner gets back after a successful export: the link
// went to the recipient, the passcode is relayed out-of-band by the owner.
type Receipt struct {
	URL      string
	OTP      string
	RevokeID string
	Note     string
}

// ExportService mints, revokes, and orchestrates secure download links.
type ExportService struct {
	reg        LinkRegistry
	signer     *token.Signer
	history    HistorySource
	summarizer Summarizer
	recipients RecipientSource
	notifier   notify.Notifier
	log        *zap.Logger

	baseURL      string
	bundleDir    string
	maxDownloads int
	otpLength    int
}

// NewExportService constructs the export service. summarizer may be nil.
func NewExportService(
	reg LinkRegistry,
	signer *token.Signer,
	history HistorySource,
	summarizer Summarizer,
	recipients RecipientSource,
	notifier notify.Notifier,
	baseURL, bundleDir string,
	maxDownloads, otpLength int,
	log *zap.Logger,
) *ExportService {
	if maxDownloads <= 0 {
		maxDownloads = 1
	}
	return &ExportService{
		reg:          reg,
		signer:       signer,
		history:      history,
		summarizer:   summarizer,
		recipients:   recipients,
		notifier:     notifier,
		baseURL:      baseURL,
		bundleDir:    bundleDir,
		maxDownloads: maxDownloads,
		otpLength:    otpLength,
		log:          log,
	}
}

// CreateLink registers a download link for an existing artifact and returns
// the signed URL, the plaintext passcode, and the revocation ID.
func (s *ExportService) CreateLink(ctx context.Context, userID int64, artifactPath, note string) (*Receipt, error) {
	_, receipt, err := s.newLink(ctx, userID, artifactPath, note)
	return receipt, err
}

// Revoke removes a link's registry entry and its artifact. A later
// redemption of the same token sees revoked/not-found regardless of OTP.
func (s *ExportService) Revoke(ctx context.Context, tok string) error {
	return s.reg.DeleteAndPurgeArtifact(ctx, tok)
}

// RevokeByRevokeID revokes via the owner-facing secondary ID, so the owner
// never has to handle the raw signed link. Returns the link's note.
func (s *ExportService) RevokeByRevokeID(ctx context.Context, userID int64, revokeID string) (string, error) {
	e, err := s.reg.FindByRevokeID(ctx, userID, revokeID)
	if err != nil {
		return "", err
	}
	if err := s.reg.DeleteAndPurgeArtifact(ctx, e.Token); err != nil {
		return "", err
	}
	return e.Note, nil
}

// Export decrypts the requested history range, packages it, registers a
// link, and delivers it to the user's registered recipient. Delivery failure
// or a missing recipient triggers compensating revocation so no orphaned
// link survives.
func (s *ExportService) Export(ctx context.Context, userID int64, from, to time.Time) (*Receipt, error) {
	msgs, err := s.history.Range(userID, from, to, exportMessageLimit)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no history in requested period", errs.ErrNotFound)
	}

	var summary string
	if s.summarizer != nil {
		summary, err = s.summarizer.Summarize(ctx, msgs)
		if err != nil {
			// Summary is an enrichment, not a gate: export without it.
			s.log.Warn("summarizer failed, exporting without summary",
				zap.Int64("user_id", userID), zap.Error(err))
			summary = ""
		}
	}

	note := from.UTC().Format("2006-01-02") + "~" + to.UTC().Format("2006-01-02")
	bundle, err := archive.BuildBundle(s.bundleDir, userID, note, msgs, summary)
	if err != nil {
		return nil, err
	}

	entry, receipt, err := s.newLink(ctx, userID, bundle, note)
	if err != nil {
		return nil, err
	}

	recipient, err := s.recipients.Recipient(userID)
	if err != nil {
		s.compensate(ctx, entry.Token)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: no recipient registered", errs.ErrNotFound)
		}
		return nil, err
	}

	if err := s.notifier.SendLink(ctx, recipient, userID, receipt.URL, note); err != nil {
		s.compensate(ctx, entry.Token)
		return nil, fmt.Errorf("deliver link: %w", err)
	}

	s.log.Info("export link delivered",
		zap.Int64("user_id", userID),
		zap.String("revoke_id", receipt.RevokeID),
		zap.String("period", note),
	)
	return receipt, nil
}

// newLink mints the token, passcode, and revoke ID, and registers the entry.
func (s *ExportService) newLink(ctx context.Context, userID int64, artifactPath, note string) (*model.ExportLink, *Receipt, error) {
	raw, err := crypto.RandBytes(32)
	if err != nil {
		return nil, nil, fmt.Errorf("generate token: %w", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(raw)

	pass, err := otp.Generate(s.otpLength)
	if err != nil {
		return nil, nil, fmt.Errorf("generate otp: %w", err)
	}

	revokeID, err := s.newRevokeID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	entry := &model.ExportLink{
		Token:        tok,
		UserID:       userID,
		ArtifactPath: artifactPath,
		CreatedAt:    time.Now().UTC(),
		Downloads:    0,
		MaxDownloads: s.maxDownloads,
		Note:         note,
		OTPHash:      otp.Hash(pass),
		RevokeID:     revokeID,
	}
	if err := s.reg.Create(ctx, entry); err != nil {
		return nil, nil, err
	}

	link := s.baseURL + "/secure-download?token=" + url.QueryEscape(s.signer.Sign(tok))
	return entry, &Receipt{URL: link, OTP: pass, RevokeID: revokeID, Note: note}, nil
}

// newRevokeID draws a short human-shareable ID, unique among the user's live
// links by construction: colliding draws are retried with a longer suffix.
func (s *ExportService) newRevokeID(ctx context.Context, userID int64) (string, error) {
	date := time.Now().UTC().Format("060102")
	for letters := 1; letters <= 3; letters++ {
		for try := 0; try < 26; try++ {
			suffix := make([]byte, letters)
			for i := range suffix {
				b, err := crypto.RandBytes(1)
				if err != nil {
					return "", err
				}
				suffix[i] = revokeIDAlphabet[int(b[0])%len(revokeIDAlphabet)]
			}
			id := "EXP-" + date + "-" + string(suffix)
			taken, err := s.reg.RevokeIDTaken(ctx, userID, id)
			if err != nil {
				return "", err
			}
			if !taken {
				return id, nil
			}
		}
	}
	return "", errors.New("revoke id space exhausted")
}

func (s *ExportService) compensate(ctx context.Context, tok string) {
	if err := s.reg.DeleteAndPurgeArtifact(ctx, tok); err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Error("compensating revocation failed", zap.Error(err))
	}
}
