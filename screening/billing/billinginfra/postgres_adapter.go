package billinginfra

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/billing"
)

// PostgresAccountRepository implements billing.Repository using PostgreSQL
type PostgresAccountRepository struct {
	db *sqlx.DB
}

// NewPostgresAccountRepository creates a new PostgreSQL account repository
func NewPostgresAccountRepository(db *sqlx.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{
		db: db,
	}
}

// ============================================================================
// Database Model
// ============================================================================

type accountModel struct {
	ID             string     `db:"id"`
	Email          string     `db:"email"`
	Plan           string     `db:"plan"`
	MonthlyUsed    int        `db:"monthly_used"`
	PaymentWarning bool       `db:"payment_warning"`
	RenewedAt      *time.Time `db:"renewed_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (m *accountModel) toEntity() *billing.Account {
	return &billing.Account{
		ID:             kernel.NewAccountID(m.ID),
		Email:          kernel.Email(m.Email),
		Plan:           billing.PlanTier(m.Plan),
		MonthlyUsed:    m.MonthlyUsed,
		PaymentWarning: m.PaymentWarning,
		RenewedAt:      m.RenewedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func fromEntity(a *billing.Account) *accountModel {
	return &accountModel{
		ID:             a.ID.String(),
		Email:          a.Email.String(),
		Plan:           string(a.Plan),
		MonthlyUsed:    a.MonthlyUsed,
		PaymentWarning: a.PaymentWarning,
		RenewedAt:      a.RenewedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// ============================================================================
// Repository Implementation
// ============================================================================

// Create creates a new account
func (r *PostgresAccountRepository) Create(ctx context.Context, account *billing.Account) error {
	query := `
		INSERT INTO accounts (
			id, email, plan, monthly_used, payment_warning,
			renewed_at, created_at, updated_at
		) VALUES (
			:id, :email, :plan, :monthly_used, :payment_warning,
			:renewed_at, :created_at, :updated_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, fromEntity(account))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return billing.ErrAccountAlreadyExists()
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account
func (r *PostgresAccountRepository) GetByID(ctx context.Context, id kernel.AccountID) (*billing.Account, error) {
	var model accountModel
	query := `SELECT * FROM accounts WHERE id = $1`

	err := r.db.GetContext(ctx, &model, query, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrAccountNotFound()
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return model.toEntity(), nil
}

// DebitIfUnder increments monthly_used only while it is below limit.
// The guard lives in the WHERE clause, so two concurrent debits of the
// last credit serialize on the row lock and exactly one succeeds.
func (r *PostgresAccountRepository) DebitIfUnder(ctx context.Context, id kernel.AccountID, limit int) (int, error) {
	query := `
		UPDATE accounts
		SET monthly_used = monthly_used + 1, updated_at = NOW()
		WHERE id = $1 AND monthly_used < $2
		RETURNING monthly_used
	`

	var used int
	err := r.db.QueryRowContext(ctx, query, id.String(), limit).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, billing.ErrCreditExhausted()
		}
		return 0, fmt.Errorf("failed to debit account: %w", err)
	}

	return used, nil
}

// Refund decrements monthly_used, clamped at zero
func (r *PostgresAccountRepository) Refund(ctx context.Context, id kernel.AccountID) error {
	query := `
		UPDATE accounts
		SET monthly_used = GREATEST(monthly_used - 1, 0), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to refund account: %w", err)
	}

	return requireRow(result)
}

// ResetUsage zeroes the counter and clears the payment warning
func (r *PostgresAccountRepository) ResetUsage(ctx context.Context, id kernel.AccountID) error {
	query := `
		UPDATE accounts
		SET monthly_used = 0, payment_warning = FALSE,
		    renewed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}

	return requireRow(result)
}

// UpdatePlan changes the plan tier
func (r *PostgresAccountRepository) UpdatePlan(ctx context.Context, id kernel.AccountID, plan billing.PlanTier) error {
	query := `UPDATE accounts SET plan = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String(), string(plan))
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	return requireRow(result)
}

// SetPaymentWarning flips the payment warning flag
func (r *PostgresAccountRepository) SetPaymentWarning(ctx context.Context, id kernel.AccountID, warning bool) error {
	query := `UPDATE accounts SET payment_warning = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id.String(), warning)
	if err != nil {
		return fmt.Errorf("failed to set payment warning: %w", err)
	}

	return requireRow(result)
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return billing.ErrAccountNotFound()
	}
	return nil
}
