package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Shared Implementation - Store Entities
// =============================================================================

func createStore(ctx context.Context, ex executor, snap *domain.StoreSnapshot) error {
	themeJSON, err := json.Marshal(snap.Theme)
	if err != nil {
		return NewStoreError("CreateStore", "store", snap.ID, "failed to serialize theme", ErrInvalidData)
	}
	productsJSON, err := json.Marshal(snap.Products)
	if err != nil {
		return NewStoreError("CreateStore", "store", snap.ID, "failed to serialize products", ErrInvalidData)
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO stores (id, owner_id, owner_email, name, slug, description,
			theme, products, custom_domain, created_at, updated_at)
		VALUES (:id, :owner_id, :owner_email, :name, :slug, :description,
			:theme, :products, :custom_domain, :created_at, :updated_at)`

	_, err = ex.NamedExecContext(ctx, query, map[string]any{
		"id":            snap.ID,
		"owner_id":      snap.OwnerID,
		"owner_email":   snap.OwnerEmail,
		"name":          snap.Name,
		"slug":          snap.Slug,
		"description":   snap.Description,
		"theme":         string(themeJSON),
		"products":      string(productsJSON),
		"custom_domain": snap.CustomDomain,
		"created_at":    createdAt.UTC().Format(time.RFC3339),
		"updated_at":    createdAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		if isUniqueConstraintError(err, "stores.slug") {
			return NewStoreError("CreateStore", "store", snap.ID, "slug "+snap.Slug+" is taken", ErrDuplicateSlug)
		}
		if isUniqueConstraintError(err, "stores.id") {
			return NewStoreError("CreateStore", "store", snap.ID, "store already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateStore", "store", snap.ID, err.Error(), err)
	}

	return nil
}

func getStoreSnapshot(ctx context.Context, ex executor, storeID string) (*domain.StoreSnapshot, error) {
	var row storeRow
	err := ex.GetContext(ctx, &row, `SELECT * FROM stores WHERE id = ?`, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetStoreSnapshot", "store", storeID, "store not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetStoreSnapshot", "store", storeID, err.Error(), err)
	}
	return rowToSnapshot(&row)
}

func getStoreState(ctx context.Context, ex executor, storeID string) (*StoreState, error) {
	var row storeRow
	err := ex.GetContext(ctx, &row, `SELECT * FROM stores WHERE id = ?`, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetStoreState", "store", storeID, "store not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetStoreState", "store", storeID, err.Error(), err)
	}

	state := &StoreState{
		StoreID:       row.ID,
		IsDeployed:    row.IsDeployed,
		DeploymentURL: row.DeploymentURL,
		CustomDomain:  row.CustomDomain,
	}
	if row.ActiveDeploymentID != nil {
		state.ActiveDeploymentID = *row.ActiveDeploymentID
	}
	return state, nil
}

func updateStoreDeploymentState(ctx context.Context, ex executor, storeID string, isDeployed bool, deploymentURL string) error {
	result, err := ex.ExecContext(ctx,
		`UPDATE stores SET is_deployed = ?, deployment_url = ?, updated_at = ? WHERE id = ?`,
		isDeployed, deploymentURL, time.Now().UTC().Format(time.RFC3339), storeID)
	if err != nil {
		return NewStoreError("UpdateStoreDeploymentState", "store", storeID, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateStoreDeploymentState", "store", storeID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("UpdateStoreDeploymentState", "store", storeID, "store not found", ErrNotFound)
	}
	return nil
}

func setStoreCustomDomain(ctx context.Context, ex executor, storeID, hostname string) error {
	result, err := ex.ExecContext(ctx,
		`UPDATE stores SET custom_domain = ?, updated_at = ? WHERE id = ?`,
		hostname, time.Now().UTC().Format(time.RFC3339), storeID)
	if err != nil {
		return NewStoreError("SetStoreCustomDomain", "store", storeID, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("SetStoreCustomDomain", "store", storeID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("SetStoreCustomDomain", "store", storeID, "store not found", ErrNotFound)
	}
	return nil
}

func countStores(ctx context.Context, ex executor) (int, error) {
	var count int
	if err := ex.GetContext(ctx, &count, `SELECT COUNT(*) FROM stores`); err != nil {
		return 0, NewStoreError("CountStores", "store", "", err.Error(), err)
	}
	return count, nil
}

// =============================================================================
// Shared Implementation - Deploy Lock
// =============================================================================

// acquireDeployLock claims the per-store deploy slot by compare-and-swap on
// the active_deployment_id column. Only one deployment can hold it at a time.
func acquireDeployLock(ctx context.Context, ex executor, storeID, deploymentID string) error {
	result, err := ex.ExecContext(ctx,
		`UPDATE stores SET active_deployment_id = ? WHERE id = ? AND active_deployment_id IS NULL`,
		deploymentID, storeID)
	if err != nil {
		return NewStoreError("AcquireDeployLock", "store", storeID, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("AcquireDeployLock", "store", storeID, err.Error(), err)
	}
	if rows == 0 {
		var exists bool
		if err := ex.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM stores WHERE id = ?)`, storeID); err != nil {
			return NewStoreError("AcquireDeployLock", "store", storeID, err.Error(), err)
		}
		if !exists {
			return NewStoreError("AcquireDeployLock", "store", storeID, "store not found", ErrNotFound)
		}
		return NewStoreError("AcquireDeployLock", "store", storeID, "deploy lock held", ErrDeployInFlight)
	}
	return nil
}

// releaseDeployLock clears the deploy slot only if it is still held by the
// given deployment. Releasing a lock held by someone else is a no-op.
func releaseDeployLock(ctx context.Context, ex executor, storeID, deploymentID string) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE stores SET active_deployment_id = NULL WHERE id = ? AND active_deployment_id = ?`,
		storeID, deploymentID)
	if err != nil {
		return NewStoreError("ReleaseDeployLock", "store", storeID, err.Error(), err)
	}
	return nil
}

// =============================================================================
// Shared Implementation - Deployments
// =============================================================================

func createDeployment(ctx context.Context, ex executor, dep *domain.Deployment) error {
	var completedAt *string
	if dep.CompletedAt != nil {
		v := dep.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &v
	}

	query := `
		INSERT INTO deployments (id, store_id, version, status, environment,
			url, build_log, created_at, completed_at)
		VALUES (:id, :store_id, :version, :status, :environment,
			:url, :build_log, :created_at, :completed_at)`

	_, err := ex.NamedExecContext(ctx, query, map[string]any{
		"id":           dep.ID,
		"store_id":     dep.StoreID,
		"version":      dep.Version,
		"status":       string(dep.Status),
		"environment":  string(dep.Environment),
		"url":          dep.URL,
		"build_log":    dep.BuildLog,
		"created_at":   dep.CreatedAt.UTC().Format(time.RFC3339),
		"completed_at": completedAt,
	})
	if err != nil {
		if isUniqueConstraintError(err, "deployments.id") {
			return NewStoreError("CreateDeployment", "deployment", dep.ID, "deployment already exists", ErrDuplicateID)
		}
		if isForeignKeyError(err) {
			return NewStoreError("CreateDeployment", "deployment", dep.ID, "store "+dep.StoreID+" not found", ErrNotFound)
		}
		return NewStoreError("CreateDeployment", "deployment", dep.ID, err.Error(), err)
	}

	return nil
}

func getDeployment(ctx context.Context, ex executor, id string) (*domain.Deployment, error) {
	var row deploymentRow
	err := ex.GetContext(ctx, &row, `SELECT * FROM deployments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetDeployment", "deployment", id, "deployment not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetDeployment", "deployment", id, err.Error(), err)
	}
	return rowToDeployment(&row)
}

func updateDeployment(ctx context.Context, ex executor, dep *domain.Deployment) error {
	var completedAt *string
	if dep.CompletedAt != nil {
		v := dep.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &v
	}

	query := `
		UPDATE deployments
		SET status = :status, url = :url, build_log = :build_log,
			completed_at = :completed_at
		WHERE id = :id`

	result, err := ex.NamedExecContext(ctx, query, map[string]any{
		"id":           dep.ID,
		"status":       string(dep.Status),
		"url":          dep.URL,
		"build_log":    dep.BuildLog,
		"completed_at": completedAt,
	})
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", dep.ID, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateDeployment", "deployment", dep.ID, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("UpdateDeployment", "deployment", dep.ID, "deployment not found", ErrNotFound)
	}
	return nil
}

func deleteDeployment(ctx context.Context, ex executor, id string) error {
	result, err := ex.ExecContext(ctx, `DELETE FROM deployments WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteDeployment", "deployment", id, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("DeleteDeployment", "deployment", id, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("DeleteDeployment", "deployment", id, "deployment not found", ErrNotFound)
	}
	return nil
}

func listDeploymentsByStore(ctx context.Context, ex executor, storeID string, opts ListOptions) ([]domain.Deployment, error) {
	opts = opts.Normalize()

	var rows []deploymentRow
	err := ex.SelectContext(ctx, &rows,
		`SELECT * FROM deployments WHERE store_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		storeID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListDeploymentsByStore", "deployment", "", err.Error(), err)
	}

	deps := make([]domain.Deployment, 0, len(rows))
	for i := range rows {
		dep, err := rowToDeployment(&rows[i])
		if err != nil {
			return nil, err
		}
		deps = append(deps, *dep)
	}
	return deps, nil
}

func countDeploymentsByStore(ctx context.Context, ex executor, storeID string) (int, error) {
	var count int
	err := ex.GetContext(ctx, &count, `SELECT COUNT(*) FROM deployments WHERE store_id = ?`, storeID)
	if err != nil {
		return 0, NewStoreError("CountDeploymentsByStore", "deployment", "", err.Error(), err)
	}
	return count, nil
}

func findSuccessfulDeployment(ctx context.Context, ex executor, storeID, version string) (*domain.Deployment, error) {
	var row deploymentRow
	err := ex.GetContext(ctx, &row,
		`SELECT * FROM deployments
		 WHERE store_id = ? AND version = ? AND status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		storeID, version, string(domain.StatusSuccess))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("FindSuccessfulDeployment", "deployment", version, "no successful deployment with this version", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("FindSuccessfulDeployment", "deployment", version, err.Error(), err)
	}
	return rowToDeployment(&row)
}

func listDeploymentsInRange(ctx context.Context, ex executor, storeID string, from, to *time.Time) ([]domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE store_id = ?`
	args := []any{storeID}
	if from != nil {
		query += ` AND created_at >= ?`
		args = append(args, from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		query += ` AND created_at <= ?`
		args = append(args, to.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []deploymentRow
	if err := ex.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListDeploymentsInRange", "deployment", "", err.Error(), err)
	}

	deps := make([]domain.Deployment, 0, len(rows))
	for i := range rows {
		dep, err := rowToDeployment(&rows[i])
		if err != nil {
			return nil, err
		}
		deps = append(deps, *dep)
	}
	return deps, nil
}

// =============================================================================
// Shared Implementation - Domain Bindings
// =============================================================================

// bindDomain claims a hostname for a store. The hostname is the primary key,
// so the claim is atomic: the upsert only succeeds when the hostname is free
// or already bound to the same store (re-binding is idempotent).
func bindDomain(ctx context.Context, ex executor, hostname, storeID string, now time.Time) (*domain.DomainBinding, error) {
	ts := now.UTC().Format(time.RFC3339)
	result, err := ex.ExecContext(ctx, `
		INSERT INTO domain_bindings (hostname, store_id, ssl_enabled, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT(hostname) DO UPDATE SET updated_at = excluded.updated_at
		WHERE domain_bindings.store_id = excluded.store_id`,
		hostname, storeID, ts, ts)
	if err != nil {
		if isForeignKeyError(err) {
			return nil, NewStoreError("BindDomain", "domain", hostname, "store "+storeID+" not found", ErrNotFound)
		}
		return nil, NewStoreError("BindDomain", "domain", hostname, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, NewStoreError("BindDomain", "domain", hostname, err.Error(), err)
	}
	if rows == 0 {
		return nil, NewStoreError("BindDomain", "domain", hostname, "hostname is bound to another store", ErrDomainTaken)
	}

	return getDomainBinding(ctx, ex, hostname)
}

func getDomainBinding(ctx context.Context, ex executor, hostname string) (*domain.DomainBinding, error) {
	var row domainBindingRow
	err := ex.GetContext(ctx, &row, `SELECT * FROM domain_bindings WHERE hostname = ?`, hostname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetDomainBinding", "domain", hostname, "domain binding not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetDomainBinding", "domain", hostname, err.Error(), err)
	}
	return rowToBinding(&row)
}

func getDomainBindingByStore(ctx context.Context, ex executor, storeID string) (*domain.DomainBinding, error) {
	var row domainBindingRow
	err := ex.GetContext(ctx, &row,
		`SELECT * FROM domain_bindings WHERE store_id = ? ORDER BY created_at DESC LIMIT 1`, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetDomainBindingByStore", "domain", storeID, "no domain bound to store", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetDomainBindingByStore", "domain", storeID, err.Error(), err)
	}
	return rowToBinding(&row)
}

func enableDomainSSL(ctx context.Context, ex executor, hostname string, now time.Time) error {
	ts := now.UTC().Format(time.RFC3339)
	result, err := ex.ExecContext(ctx, `
		UPDATE domain_bindings
		SET ssl_enabled = 1,
			ssl_requested_at = COALESCE(ssl_requested_at, ?),
			updated_at = ?
		WHERE hostname = ?`,
		ts, ts, hostname)
	if err != nil {
		return NewStoreError("EnableDomainSSL", "domain", hostname, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("EnableDomainSSL", "domain", hostname, err.Error(), err)
	}
	if rows == 0 {
		return NewStoreError("EnableDomainSSL", "domain", hostname, "domain binding not found", ErrNotFound)
	}
	return nil
}

func listPendingSSLBindings(ctx context.Context, ex executor) ([]domain.DomainBinding, error) {
	var rows []domainBindingRow
	err := ex.SelectContext(ctx, &rows, `
		SELECT * FROM domain_bindings
		WHERE ssl_enabled = 1 AND ssl_issued_at IS NULL
		ORDER BY ssl_requested_at ASC`)
	if err != nil {
		return nil, NewStoreError("ListPendingSSLBindings", "domain", "", err.Error(), err)
	}

	bindings := make([]domain.DomainBinding, 0, len(rows))
	for i := range rows {
		b, err := rowToBinding(&rows[i])
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, *b)
	}
	return bindings, nil
}

func markSSLIssued(ctx context.Context, ex executor, hostname string, now time.Time) error {
	ts := now.UTC().Format(time.RFC3339)
	result, err := ex.ExecContext(ctx, `
		UPDATE domain_bindings
		SET ssl_issued_at = ?, updated_at = ?
		WHERE hostname = ? AND ssl_issued_at IS NULL`,
		ts, ts, hostname)
	if err != nil {
		return NewStoreError("MarkSSLIssued", "domain", hostname, err.Error(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("MarkSSLIssued", "domain", hostname, err.Error(), err)
	}
	if rows == 0 {
		// Either the binding is missing or the certificate was already
		// recorded; only the former is an error.
		if _, err := getDomainBinding(ctx, ex, hostname); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Error Detection Helpers
// =============================================================================

func isUniqueConstraintError(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
