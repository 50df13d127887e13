package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/types"
)

// ──────────────────────────────────────────────────
// Issuer allow-list
// ──────────────────────────────────────────────────

// AddIssuer allow-lists an issuer tax id. Punctuation in code is ignored.
func (e *Engine) AddIssuer(ctx context.Context, code, name string) (*issuer.Issuer, error) {
	code = issuer.NormalizeCode(code)
	if err := e.validate.Var(code, fmt.Sprintf("required,number,len=%d", issuer.CodeLength)); err != nil {
		return nil, invalid("code", fmt.Sprintf("must have %d digits", issuer.CodeLength), ErrInvalidIssuerCode)
	}

	iss := &issuer.Issuer{
		Entity: types.NewEntityAt(e.now().UTC()),
		ID:     id.NewIssuerID(),
		Code:   code,
		Name:   strings.TrimSpace(name),
		Active: true,
	}
	if err := e.store.CreateIssuer(ctx, iss); err != nil {
		return nil, StorageError("add issuer", err)
	}

	e.logger.Info("issuer added", "issuer_id", iss.ID.String(), "code", code)
	return iss, nil
}

// ToggleIssuer enables or disables an allow-listed issuer.
func (e *Engine) ToggleIssuer(ctx context.Context, issuerID id.IssuerID, active bool) (*issuer.Issuer, error) {
	if err := e.store.SetIssuerActive(ctx, issuerID, active); err != nil {
		return nil, StorageError("toggle issuer", err)
	}
	iss, err := e.store.GetIssuer(ctx, issuerID)
	if err != nil {
		return nil, StorageError("get issuer", err)
	}

	e.logger.Info("issuer toggled", "issuer_id", issuerID.String(), "active", active)
	return iss, nil
}

// RemoveIssuer deletes an issuer from the allow-list.
func (e *Engine) RemoveIssuer(ctx context.Context, issuerID id.IssuerID) error {
	if err := e.store.DeleteIssuer(ctx, issuerID); err != nil {
		return StorageError("remove issuer", err)
	}
	e.logger.Info("issuer removed", "issuer_id", issuerID.String())
	return nil
}

// ListIssuers returns allow-listed issuers, newest first.
func (e *Engine) ListIssuers(ctx context.Context, opts issuer.ListOpts) ([]*issuer.Issuer, error) {
	issuers, err := e.store.ListIssuers(ctx, opts)
	if err != nil {
		return nil, StorageError("list issuers", err)
	}
	return issuers, nil
}

// IsIssuerAllowed reports whether receipts from code pass the allow-list.
// It consults the configured checker even when the gate is disabled.
func (e *Engine) IsIssuerAllowed(ctx context.Context, code string) (bool, error) {
	ok, err := e.issuers.IsAllowed(ctx, issuer.NormalizeCode(code))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrIssuerCheckFailure, err)
	}
	return ok, nil
}

// checkIssuer enforces the allow-list for a receipt submission.
func (e *Engine) checkIssuer(ctx context.Context, code string) error {
	ok, err := e.IsIssuerAllowed(ctx, code)
	if err != nil {
		e.logger.Error("issuer allow-list lookup failed", "code", code, "error", err)
		return err
	}
	if !ok {
		return ErrIssuerNotAllowed
	}
	return nil
}

// storeChecker backs the allow-list with the issuer store. Unknown issuers
// are not allowed.
type storeChecker struct {
	store issuer.Store
}

func (c storeChecker) IsAllowed(ctx context.Context, code string) (bool, error) {
	iss, err := c.store.GetIssuerByCode(ctx, code)
	if errors.Is(err, ErrIssuerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return iss.Active, nil
}
