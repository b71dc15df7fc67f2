// Package privacylog keeps nym and account identifiers out of plain logs.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	processSalt = randomSalt()
	// Identifiers that link activity to a person. Notary and asset ids are
	// public contract ids and stay readable.
	fingerprintedKeys = map[string]struct{}{
		"nym_id":        {},
		"target_nym_id": {},
		"account_id":    {},
		"recipient_id":  {},
	}
	sensitiveKeyParts = []string{"passphrase", "password", "secret", "token", "mint", "payload", "cash"}
)

// Handler sanitizes attributes before handing records to the next handler.
type Handler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	if _, ok := next.(*Handler); ok {
		return next
	}
	return &Handler{next: next}
}

// NewLogger builds a sanitized logger writing JSON or text to w.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	return slog.New(WrapHandler(base))
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, SanitizeAttr(a))
	}
	return &Handler{next: h.next.WithAttrs(clean)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}

// SanitizeAttr redacts secrets and replaces identifiers with a
// per-process fingerprint under "<key>_fp".
func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lower := strings.ToLower(key)
	switch {
	case isSensitive(lower):
		return slog.String(key, redactedValue)
	case isFingerprinted(lower):
		return slog.String(key+"_fp", Fingerprint(attr.Value.Resolve().String()))
	case attr.Value.Kind() == slog.KindGroup:
		group := attr.Value.Group()
		clean := make([]any, 0, len(group))
		for _, a := range group {
			clean = append(clean, SanitizeAttr(a))
		}
		return slog.Group(key, clean...)
	default:
		return attr
	}
}

// Fingerprint is stable within one process and useless across processes.
func Fingerprint(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(processSalt + "|" + v))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func isFingerprinted(key string) bool {
	_, ok := fingerprintedKeys[key]
	return ok
}

func isSensitive(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func randomSalt() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("salt-%p", &buf)
	}
	return hex.EncodeToString(buf)
}
