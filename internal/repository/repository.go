// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/shrike/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a screened transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, rec *domain.TransactionRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	rec.EnsureID()

	fraudulent := 0
	if rec.Fraudulent {
		fraudulent = 1
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, amount, merchant, tx_date, location,
			tx_time, card_type, category, is_fraudulent, risk_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.Amount, rec.Merchant, rec.Date, rec.Location,
		rec.Time, rec.CardType, rec.Category, fraudulent, rec.RiskScore,
		rec.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a screened transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.TransactionRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, amount, merchant, tx_date, location,
			   tx_time, card_type, category, is_fraudulent, risk_score, created_at
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	var rec domain.TransactionRecord
	var fraudulent int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID).Scan(
		&rec.ID, &rec.TenantID, &rec.Amount, &rec.Merchant, &rec.Date,
		&rec.Location, &rec.Time, &rec.CardType, &rec.Category,
		&fraudulent, &rec.RiskScore, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Fraudulent = fraudulent == 1
	return &rec, nil
}

// ListTransactions retrieves the most recent screened transactions for a
// tenant, newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, tenantID string, limit int) ([]*domain.TransactionRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, amount, merchant, tx_date, location,
			   tx_time, card_type, category, is_fraudulent, risk_score, created_at
		FROM transactions
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		var fraudulent int

		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.Amount, &rec.Merchant, &rec.Date,
			&rec.Location, &rec.Time, &rec.CardType, &rec.Category,
			&fraudulent, &rec.RiskScore, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		rec.Fraudulent = fraudulent == 1
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// SaveAnalysis stores an analysis result with tenant isolation. A missing
// ID is assigned before the insert so callers can read it back.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, result *domain.AnalysisResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	result.TenantID = tenantID

	detected, _ := json.Marshal(result.DetectedFrauds)

	sampled := 0
	if result.Sampled {
		sampled = 1
	}

	query := `
		INSERT INTO analyses (
			id, tenant_id, total_transactions, fraudulent_transactions,
			safe_transactions, fraud_percentage, detected_frauds, sampled, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.ID, tenantID,
		result.TotalTransactions, result.FraudulentTransactions,
		result.SafeTransactions, result.FraudPercentage,
		string(detected), sampled, result.CreatedAt,
	)
	return err
}

// GetAnalysis retrieves an analysis result by ID with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.AnalysisResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, total_transactions, fraudulent_transactions,
			   safe_transactions, fraud_percentage, detected_frauds, sampled, created_at
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	var result domain.AnalysisResult
	var detected string
	var sampled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID).Scan(
		&result.ID, &result.TenantID,
		&result.TotalTransactions, &result.FraudulentTransactions,
		&result.SafeTransactions, &result.FraudPercentage,
		&detected, &sampled, &result.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	result.Sampled = sampled == 1
	if err := json.Unmarshal([]byte(detected), &result.DetectedFrauds); err != nil {
		return nil, fmt.Errorf("failed to parse detected frauds: %w", err)
	}

	return &result, nil
}

// SaveRuleConfig stores a custom rule configuration with tenant isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, name, description, version, expression, reason, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Reason, rule.Weight, enabled,
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest enabled version of a rule with tenant
// isolation.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, reason, weight, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.RuleConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &cfg.Reason, &cfg.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// ListRuleConfigs retrieves all enabled rule configurations for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, reason, weight, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &cfg.Reason, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// GetModelStats retrieves the detection-model metrics, seeding the defaults
// on first read. The stats are global, not tenant-scoped.
func (r *SQLRepository) GetModelStats(ctx context.Context) (*domain.ModelStats, error) {
	query := `
		SELECT accuracy, precision_score, recall, f1_score, last_trained, total_samples, fraud_samples
		FROM model_stats
		WHERE id = 1
	`

	var stats domain.ModelStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Accuracy, &stats.Precision, &stats.Recall, &stats.F1Score,
		&stats.LastTrained, &stats.TotalSamples, &stats.FraudSamples,
	)

	if errors.Is(err, sql.ErrNoRows) {
		seeded := domain.DefaultModelStats(time.Now().UTC().Format("2006-01-02"))
		if err := r.SaveModelStats(ctx, seeded); err != nil {
			return nil, fmt.Errorf("failed to seed model stats: %w", err)
		}
		return seeded, nil
	}
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

// SaveModelStats upserts the single model-stats row.
func (r *SQLRepository) SaveModelStats(ctx context.Context, stats *domain.ModelStats) error {
	query := `
		INSERT INTO model_stats (
			id, accuracy, precision_score, recall, f1_score, last_trained, total_samples, fraud_samples
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			accuracy = excluded.accuracy,
			precision_score = excluded.precision_score,
			recall = excluded.recall,
			f1_score = excluded.f1_score,
			last_trained = excluded.last_trained,
			total_samples = excluded.total_samples,
			fraud_samples = excluded.fraud_samples
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		stats.Accuracy, stats.Precision, stats.Recall, stats.F1Score,
		stats.LastTrained, stats.TotalSamples, stats.FraudSamples,
	)
	return err
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
