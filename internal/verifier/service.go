// Package verifier is the read-mostly facade over the credential ledger and
// issuer profiles. It converts not-found, revoked, and expired into ordinary
// boolean-plus-reason outcomes because public verification treats those as
// normal results, not failures. It never mutates the ledger.
package verifier

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"attesta/internal/credential"
	"attesta/internal/verifier/cache"
	"attesta/internal/verifier/metrics"
	id "attesta/pkg/domain"
	dErrors "attesta/pkg/domain-errors"
	"attesta/pkg/platform/sentinel"
	"attesta/pkg/requestcontext"
)

// Reason explains a verification outcome. When several apply, the most
// severe wins: not_found > revoked > expired > issuer_inactive > suspended.
type Reason string

const (
	ReasonValid          Reason = "valid"
	ReasonNotFound       Reason = "not_found"
	ReasonRevoked        Reason = "revoked"
	ReasonExpired        Reason = "expired"
	ReasonIssuerInactive Reason = "issuer_inactive"
	ReasonSuspended      Reason = "suspended"
)

// Result is one verification outcome.
type Result struct {
	CredentialID id.CredentialID `json:"credential_id"`
	Valid        bool            `json:"valid"`
	Reason       Reason          `json:"reason"`
}

// BatchResult carries per-id outcomes in input order plus the valid count.
type BatchResult struct {
	Results    []Result `json:"results"`
	ValidCount int      `json:"valid_count"`
}

// IssuerActivity reports whether an issuer is active. Issuers without a
// profile count as active.
type IssuerActivity interface {
	IsActive(ctx context.Context, identity id.Identity) (bool, error)
}

const (
	// DefaultMaxBatchSize caps batch verification. Tunable via config.
	DefaultMaxBatchSize = 100

	// batchConcurrency bounds parallel store reads during batch verification.
	batchConcurrency = 8
)

// Service composes ledger reads into higher-level checks.
type Service struct {
	creds    credential.Store
	issuers  IssuerActivity
	cache    *cache.Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
	maxBatch int
}

type Option func(*Service)

func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

func NewService(creds credential.Store, issuers IssuerActivity, opts ...Option) *Service {
	s := &Service{creds: creds, issuers: issuers, maxBatch: DefaultMaxBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify checks one credential and explains the outcome. Unknown ids are a
// normal false result, never an error.
func (s *Service) Verify(ctx context.Context, credID id.CredentialID) (Result, error) {
	if entry, hit, err := s.cache.Get(ctx, credID); err == nil && hit {
		s.metrics.IncCacheHit()
		s.metrics.IncOutcome(entry.Reason)
		return Result{CredentialID: credID, Valid: entry.Valid, Reason: Reason(entry.Reason)}, nil
	} else if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "verify cache read failed", "credential_id", credID, "error", err)
	}

	result, err := s.verifyUncached(ctx, credID)
	if err != nil {
		return Result{}, err
	}

	s.metrics.IncOutcome(string(result.Reason))
	if result.Reason != ReasonNotFound {
		if err := s.cache.Set(ctx, credID, cache.Entry{Valid: result.Valid, Reason: string(result.Reason)}); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "verify cache write failed", "credential_id", credID, "error", err)
		}
	}
	return result, nil
}

func (s *Service) verifyUncached(ctx context.Context, credID id.CredentialID) (Result, error) {
	cred, err := s.creds.Get(ctx, credID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{CredentialID: credID, Valid: false, Reason: ReasonNotFound}, nil
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}

	switch {
	case cred.Status == credential.StatusRevoked:
		return Result{CredentialID: credID, Valid: false, Reason: ReasonRevoked}, nil
	case cred.IsExpiredAt(requestcontext.Now(ctx)) || cred.Status == credential.StatusExpired:
		return Result{CredentialID: credID, Valid: false, Reason: ReasonExpired}, nil
	}

	active, err := s.issuers.IsActive(ctx, cred.Issuer)
	if err != nil {
		return Result{}, err
	}
	if !active {
		return Result{CredentialID: credID, Valid: false, Reason: ReasonIssuerInactive}, nil
	}
	if cred.Status == credential.StatusSuspended {
		return Result{CredentialID: credID, Valid: false, Reason: ReasonSuspended}, nil
	}
	return Result{CredentialID: credID, Valid: true, Reason: ReasonValid}, nil
}

// BatchVerify checks up to the configured cap of ids. Outcomes come back in
// input order; unknown ids verify false next to valid ones and the call never
// partially fails.
func (s *Service) BatchVerify(ctx context.Context, credIDs []id.CredentialID) (BatchResult, error) {
	if len(credIDs) == 0 {
		return BatchResult{}, dErrors.New(dErrors.CodeValidation, "batch must not be empty")
	}
	if len(credIDs) > s.maxBatch {
		return BatchResult{}, dErrors.Newf(dErrors.CodeValidation, "batch exceeds maximum of %d items", s.maxBatch)
	}
	s.metrics.ObserveBatchSize(len(credIDs))

	results := make([]Result, len(credIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batchConcurrency)
	for i, credID := range credIDs {
		group.Go(func() error {
			result, err := s.Verify(groupCtx, credID)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return BatchResult{}, err
	}

	validCount := 0
	for _, result := range results {
		if result.Valid {
			validCount++
		}
	}
	return BatchResult{Results: results, ValidCount: validCount}, nil
}

// HasValidOfType scans the recipient's credentials in issuance order and
// returns the first one of the given type that verifies, or (false, 0).
func (s *Service) HasValidOfType(ctx context.Context, recipient id.Identity, credentialType string) (bool, id.CredentialID, error) {
	if credentialType == "" {
		return false, 0, dErrors.New(dErrors.CodeValidation, "credential type must not be empty")
	}
	credIDs, err := s.creds.ListByRecipient(ctx, recipient)
	if err != nil {
		return false, 0, dErrors.Wrap(err, dErrors.CodeInternal, "credential list failed")
	}
	for _, credID := range credIDs {
		cred, err := s.creds.Get(ctx, credID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return false, 0, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
		}
		if cred.Type != credentialType {
			continue
		}
		result, err := s.Verify(ctx, credID)
		if err != nil {
			return false, 0, err
		}
		if result.Valid {
			return true, credID, nil
		}
	}
	return false, 0, nil
}
