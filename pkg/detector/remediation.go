package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"golang.org/x/sync/errgroup"

	"github.com/ca-risken/secretops/pkg/common"
	"github.com/ca-risken/secretops/pkg/pattern"
)

// remediateAll resolves and deactivates every credential once. Credentials are
// independent: each runs under its own timeout and its failures stay in its result.
func (h *Handler) remediateAll(ctx context.Context, creds []pattern.CredentialMatch) []RemediationResult {
	results := make([]RemediationResult, len(creds))
	var g errgroup.Group
	g.SetLimit(h.remediationConcurrency)
	for i, cred := range creds {
		i, cred := i, cred
		g.Go(func() error {
			results[i] = h.remediate(ctx, cred)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (h *Handler) remediate(ctx context.Context, cred pattern.CredentialMatch) (res RemediationResult) {
	ctx, cancel := context.WithTimeout(ctx, h.remediationTimeout)
	defer cancel()
	res = RemediationResult{Credential: cred, Action: ActionOwnerNotFound}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			if res.Owner != nil {
				res.Action = ActionDeactivationFailed
			}
		}
		res.Timestamp = time.Now().UTC()
		if res.Err != nil {
			h.logger.Notifyf(ctx, logging.ErrorLevel, "Failed to remediate credential: key=%s, action=%s, err=%+v",
				common.MaskSecret(cred.Value), res.Action, res.Err)
		}
	}()

	owner, err := h.owners.LookupOwner(ctx, cred)
	if err != nil {
		res.Err = &LookupError{Err: err}
		return res
	}
	if owner == nil {
		h.logger.Warnf(ctx, "Credential owner not found: key=%s", common.MaskSecret(cred.Value))
		return res
	}
	res.Owner = owner
	if err := h.remediator.Deactivate(ctx, owner, cred); err != nil {
		res.Action = ActionDeactivationFailed
		res.Err = &RemediationError{Err: err}
		return res
	}
	res.Action = ActionDeactivated
	h.logger.Infof(ctx, "Credential deactivated: key=%s, owner=%s", common.MaskSecret(cred.Value), owner.UserName)
	return res
}
