package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/buildcart/buildcart/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Row Types
// =============================================================================

// storeRow represents a store row in the database.
type storeRow struct {
	ID                 string  `db:"id"`
	OwnerID            string  `db:"owner_id"`
	OwnerEmail         string  `db:"owner_email"`
	Name               string  `db:"name"`
	Slug               string  `db:"slug"`
	Description        string  `db:"description"`
	Theme              string  `db:"theme"`
	Products           string  `db:"products"`
	CustomDomain       string  `db:"custom_domain"`
	IsDeployed         bool    `db:"is_deployed"`
	DeploymentURL      string  `db:"deployment_url"`
	ActiveDeploymentID *string `db:"active_deployment_id"`
	CreatedAt          string  `db:"created_at"`
	UpdatedAt          string  `db:"updated_at"`
}

// deploymentRow represents a deployment row in the database.
type deploymentRow struct {
	ID          string  `db:"id"`
	StoreID     string  `db:"store_id"`
	Version     string  `db:"version"`
	Status      string  `db:"status"`
	Environment string  `db:"environment"`
	URL         string  `db:"url"`
	BuildLog    string  `db:"build_log"`
	CreatedAt   string  `db:"created_at"`
	CompletedAt *string `db:"completed_at"`
}

// domainBindingRow represents a domain binding row in the database.
type domainBindingRow struct {
	Hostname       string  `db:"hostname"`
	StoreID        string  `db:"store_id"`
	SSLEnabled     bool    `db:"ssl_enabled"`
	SSLRequestedAt *string `db:"ssl_requested_at"`
	SSLIssuedAt    *string `db:"ssl_issued_at"`
	CreatedAt      string  `db:"created_at"`
	UpdatedAt      string  `db:"updated_at"`
}

// =============================================================================
// Row Conversion
// =============================================================================

func parseTime(op, entity, id, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, NewStoreError(op, entity, id, "invalid timestamp "+value, ErrInvalidData)
	}
	return t, nil
}

func parseOptionalTime(op, entity, id string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := parseTime(op, entity, id, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func rowToSnapshot(row *storeRow) (*domain.StoreSnapshot, error) {
	var theme domain.Theme
	if err := json.Unmarshal([]byte(row.Theme), &theme); err != nil {
		return nil, NewStoreError("GetStoreSnapshot", "store", row.ID, "failed to deserialize theme", ErrInvalidData)
	}
	var products []domain.Product
	if err := json.Unmarshal([]byte(row.Products), &products); err != nil {
		return nil, NewStoreError("GetStoreSnapshot", "store", row.ID, "failed to deserialize products", ErrInvalidData)
	}
	createdAt, err := parseTime("GetStoreSnapshot", "store", row.ID, row.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &domain.StoreSnapshot{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		OwnerEmail:   row.OwnerEmail,
		Name:         row.Name,
		Slug:         row.Slug,
		Description:  row.Description,
		Theme:        theme,
		Products:     products,
		CustomDomain: row.CustomDomain,
		CreatedAt:    createdAt,
	}, nil
}

func rowToDeployment(row *deploymentRow) (*domain.Deployment, error) {
	createdAt, err := parseTime("GetDeployment", "deployment", row.ID, row.CreatedAt)
	if err != nil {
		return nil, err
	}
	completedAt, err := parseOptionalTime("GetDeployment", "deployment", row.ID, row.CompletedAt)
	if err != nil {
		return nil, err
	}

	return &domain.Deployment{
		ID:          row.ID,
		StoreID:     row.StoreID,
		Version:     row.Version,
		Status:      domain.DeploymentStatus(row.Status),
		Environment: domain.Environment(row.Environment),
		URL:         row.URL,
		BuildLog:    row.BuildLog,
		CreatedAt:   createdAt,
		CompletedAt: completedAt,
	}, nil
}

func rowToBinding(row *domainBindingRow) (*domain.DomainBinding, error) {
	createdAt, err := parseTime("GetDomainBinding", "domain", row.Hostname, row.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime("GetDomainBinding", "domain", row.Hostname, row.UpdatedAt)
	if err != nil {
		return nil, err
	}
	requestedAt, err := parseOptionalTime("GetDomainBinding", "domain", row.Hostname, row.SSLRequestedAt)
	if err != nil {
		return nil, err
	}
	issuedAt, err := parseOptionalTime("GetDomainBinding", "domain", row.Hostname, row.SSLIssuedAt)
	if err != nil {
		return nil, err
	}

	return &domain.DomainBinding{
		Hostname:       row.Hostname,
		StoreID:        row.StoreID,
		SSLEnabled:     row.SSLEnabled,
		SSLRequestedAt: requestedAt,
		SSLIssuedAt:    issuedAt,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// =============================================================================
// Store Methods (connection)
// =============================================================================

func (s *SQLiteStore) CreateStore(ctx context.Context, snap *domain.StoreSnapshot) error {
	return createStore(ctx, s.db, snap)
}

func (s *SQLiteStore) GetStoreSnapshot(ctx context.Context, storeID string) (*domain.StoreSnapshot, error) {
	return getStoreSnapshot(ctx, s.db, storeID)
}

func (s *SQLiteStore) GetStoreState(ctx context.Context, storeID string) (*StoreState, error) {
	return getStoreState(ctx, s.db, storeID)
}

func (s *SQLiteStore) UpdateStoreDeploymentState(ctx context.Context, storeID string, isDeployed bool, deploymentURL string) error {
	return updateStoreDeploymentState(ctx, s.db, storeID, isDeployed, deploymentURL)
}

func (s *SQLiteStore) SetStoreCustomDomain(ctx context.Context, storeID, hostname string) error {
	return setStoreCustomDomain(ctx, s.db, storeID, hostname)
}

func (s *SQLiteStore) CountStores(ctx context.Context) (int, error) {
	return countStores(ctx, s.db)
}

func (s *SQLiteStore) AcquireDeployLock(ctx context.Context, storeID, deploymentID string) error {
	return acquireDeployLock(ctx, s.db, storeID, deploymentID)
}

func (s *SQLiteStore) ReleaseDeployLock(ctx context.Context, storeID, deploymentID string) error {
	return releaseDeployLock(ctx, s.db, storeID, deploymentID)
}

func (s *SQLiteStore) CreateDeployment(ctx context.Context, dep *domain.Deployment) error {
	return createDeployment(ctx, s.db, dep)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateDeployment(ctx context.Context, dep *domain.Deployment) error {
	return updateDeployment(ctx, s.db, dep)
}

func (s *SQLiteStore) DeleteDeployment(ctx context.Context, id string) error {
	return deleteDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) ListDeploymentsByStore(ctx context.Context, storeID string, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByStore(ctx, s.db, storeID, opts)
}

func (s *SQLiteStore) CountDeploymentsByStore(ctx context.Context, storeID string) (int, error) {
	return countDeploymentsByStore(ctx, s.db, storeID)
}

func (s *SQLiteStore) FindSuccessfulDeployment(ctx context.Context, storeID, version string) (*domain.Deployment, error) {
	return findSuccessfulDeployment(ctx, s.db, storeID, version)
}

func (s *SQLiteStore) ListDeploymentsInRange(ctx context.Context, storeID string, from, to *time.Time) ([]domain.Deployment, error) {
	return listDeploymentsInRange(ctx, s.db, storeID, from, to)
}

func (s *SQLiteStore) BindDomain(ctx context.Context, hostname, storeID string, now time.Time) (*domain.DomainBinding, error) {
	return bindDomain(ctx, s.db, hostname, storeID, now)
}

func (s *SQLiteStore) GetDomainBinding(ctx context.Context, hostname string) (*domain.DomainBinding, error) {
	return getDomainBinding(ctx, s.db, hostname)
}

func (s *SQLiteStore) GetDomainBindingByStore(ctx context.Context, storeID string) (*domain.DomainBinding, error) {
	return getDomainBindingByStore(ctx, s.db, storeID)
}

func (s *SQLiteStore) EnableDomainSSL(ctx context.Context, hostname string, now time.Time) error {
	return enableDomainSSL(ctx, s.db, hostname, now)
}

func (s *SQLiteStore) ListPendingSSLBindings(ctx context.Context) ([]domain.DomainBinding, error) {
	return listPendingSSLBindings(ctx, s.db)
}

func (s *SQLiteStore) MarkSSLIssued(ctx context.Context, hostname string, now time.Time) error {
	return markSSLIssued(ctx, s.db, hostname, now)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateStore(ctx context.Context, snap *domain.StoreSnapshot) error {
	return createStore(ctx, s.tx, snap)
}

func (s *txSQLiteStore) GetStoreSnapshot(ctx context.Context, storeID string) (*domain.StoreSnapshot, error) {
	return getStoreSnapshot(ctx, s.tx, storeID)
}

func (s *txSQLiteStore) GetStoreState(ctx context.Context, storeID string) (*StoreState, error) {
	return getStoreState(ctx, s.tx, storeID)
}

func (s *txSQLiteStore) UpdateStoreDeploymentState(ctx context.Context, storeID string, isDeployed bool, deploymentURL string) error {
	return updateStoreDeploymentState(ctx, s.tx, storeID, isDeployed, deploymentURL)
}

func (s *txSQLiteStore) SetStoreCustomDomain(ctx context.Context, storeID, hostname string) error {
	return setStoreCustomDomain(ctx, s.tx, storeID, hostname)
}

func (s *txSQLiteStore) CountStores(ctx context.Context) (int, error) {
	return countStores(ctx, s.tx)
}

func (s *txSQLiteStore) AcquireDeployLock(ctx context.Context, storeID, deploymentID string) error {
	return acquireDeployLock(ctx, s.tx, storeID, deploymentID)
}

func (s *txSQLiteStore) ReleaseDeployLock(ctx context.Context, storeID, deploymentID string) error {
	return releaseDeployLock(ctx, s.tx, storeID, deploymentID)
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, dep *domain.Deployment) error {
	return createDeployment(ctx, s.tx, dep)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateDeployment(ctx context.Context, dep *domain.Deployment) error {
	return updateDeployment(ctx, s.tx, dep)
}

func (s *txSQLiteStore) DeleteDeployment(ctx context.Context, id string) error {
	return deleteDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListDeploymentsByStore(ctx context.Context, storeID string, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByStore(ctx, s.tx, storeID, opts)
}

func (s *txSQLiteStore) CountDeploymentsByStore(ctx context.Context, storeID string) (int, error) {
	return countDeploymentsByStore(ctx, s.tx, storeID)
}

func (s *txSQLiteStore) FindSuccessfulDeployment(ctx context.Context, storeID, version string) (*domain.Deployment, error) {
	return findSuccessfulDeployment(ctx, s.tx, storeID, version)
}

func (s *txSQLiteStore) ListDeploymentsInRange(ctx context.Context, storeID string, from, to *time.Time) ([]domain.Deployment, error) {
	return listDeploymentsInRange(ctx, s.tx, storeID, from, to)
}

func (s *txSQLiteStore) BindDomain(ctx context.Context, hostname, storeID string, now time.Time) (*domain.DomainBinding, error) {
	return bindDomain(ctx, s.tx, hostname, storeID, now)
}

func (s *txSQLiteStore) GetDomainBinding(ctx context.Context, hostname string) (*domain.DomainBinding, error) {
	return getDomainBinding(ctx, s.tx, hostname)
}

func (s *txSQLiteStore) GetDomainBindingByStore(ctx context.Context, storeID string) (*domain.DomainBinding, error) {
	return getDomainBindingByStore(ctx, s.tx, storeID)
}

func (s *txSQLiteStore) EnableDomainSSL(ctx context.Context, hostname string, now time.Time) error {
	return enableDomainSSL(ctx, s.tx, hostname, now)
}

func (s *txSQLiteStore) ListPendingSSLBindings(ctx context.Context) ([]domain.DomainBinding, error) {
	return listPendingSSLBindings(ctx, s.tx)
}

func (s *txSQLiteStore) MarkSSLIssued(ctx context.Context, hostname string, now time.Time) error {
	return markSSLIssued(ctx, s.tx, hostname, now)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}
