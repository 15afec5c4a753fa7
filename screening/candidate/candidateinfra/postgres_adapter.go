package candidateinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talentsift/sift/pkg/kernel"
	"github.com/talentsift/sift/screening/candidate"
)

// PostgresCandidateRepository implements candidate.Repository using PostgreSQL
type PostgresCandidateRepository struct {
	db *sqlx.DB
}

// NewPostgresCandidateRepository creates a new PostgreSQL candidate repository
func NewPostgresCandidateRepository(db *sqlx.DB) *PostgresCandidateRepository {
	return &PostgresCandidateRepository{
		db: db,
	}
}

// ============================================================================
// Database Model
// ============================================================================

type candidateModel struct {
	ID              string          `db:"id"`
	AccountID       string          `db:"account_id"`
	JobID           string          `db:"job_id"`
	Name            string          `db:"name"`
	Email           string          `db:"email"`
	Phone           string          `db:"phone"`
	CVText          string          `db:"cv_text"`
	StoragePath     string          `db:"storage_path"`
	CVRate          int             `db:"cv_rate"`
	Status          string          `db:"status"`
	Relevance       json.RawMessage `db:"relevance_analysis"`
	ImprovementTips json.RawMessage `db:"improvement_tips"`
	Unlocked        bool            `db:"unlocked"`
	Favorite        bool            `db:"favorite"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (m *candidateModel) toEntity() (*candidate.Candidate, error) {
	var relevance *candidate.RelevanceAnalysis
	if len(m.Relevance) > 0 && string(m.Relevance) != "null" {
		relevance = &candidate.RelevanceAnalysis{}
		if err := json.Unmarshal(m.Relevance, relevance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relevance analysis: %w", err)
		}
	}

	var tips []candidate.ImprovementTip
	if len(m.ImprovementTips) > 0 && string(m.ImprovementTips) != "null" {
		if err := json.Unmarshal(m.ImprovementTips, &tips); err != nil {
			return nil, fmt.Errorf("failed to unmarshal improvement tips: %w", err)
		}
	}

	return &candidate.Candidate{
		ID:              kernel.NewCandidateID(m.ID),
		AccountID:       kernel.NewAccountID(m.AccountID),
		JobID:           kernel.NewJobID(m.JobID),
		Name:            m.Name,
		Email:           kernel.Email(m.Email),
		Phone:           m.Phone,
		CVText:          m.CVText,
		StoragePath:     kernel.StoragePath(m.StoragePath),
		CVRate:          m.CVRate,
		Status:          candidate.AnalysisStatus(m.Status),
		Relevance:       relevance,
		ImprovementTips: tips,
		Unlocked:        m.Unlocked,
		Favorite:        m.Favorite,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func fromEntity(c *candidate.Candidate) (*candidateModel, error) {
	var relevance json.RawMessage
	if c.Relevance != nil {
		data, err := json.Marshal(c.Relevance)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal relevance analysis: %w", err)
		}
		relevance = data
	}

	var tips json.RawMessage
	if c.ImprovementTips != nil {
		data, err := json.Marshal(c.ImprovementTips)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal improvement tips: %w", err)
		}
		tips = data
	}

	return &candidateModel{
		ID:              c.ID.String(),
		AccountID:       c.AccountID.String(),
		JobID:           c.JobID.String(),
		Name:            c.Name,
		Email:           c.Email.String(),
		Phone:           c.Phone,
		CVText:          c.CVText,
		StoragePath:     c.StoragePath.String(),
		CVRate:          c.CVRate,
		Status:          string(c.Status),
		Relevance:       relevance,
		ImprovementTips: tips,
		Unlocked:        c.Unlocked,
		Favorite:        c.Favorite,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}, nil
}

// ============================================================================
// Repository Implementation
// ============================================================================

// Create creates a new candidate
func (r *PostgresCandidateRepository) Create(ctx context.Context, c *candidate.Candidate) error {
	model, err := fromEntity(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO candidates (
			id, account_id, job_id, name, email, phone, cv_text,
			storage_path, cv_rate, status, relevance_analysis,
			improvement_tips, unlocked, favorite, created_at, updated_at
		) VALUES (
			:id, :account_id, :job_id, :name, :email, :phone, :cv_text,
			:storage_path, :cv_rate, :status, :relevance_analysis,
			:improvement_tips, :unlocked, :favorite, :created_at, :updated_at
		)
	`

	_, err = r.db.NamedExecContext(ctx, query, model)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code == "23505" { // unique_violation
				return candidate.ErrAlreadyExists()
			}
			if pqErr.Code == "23503" { // foreign_key_violation
				return fmt.Errorf("invalid job or account reference: %w", err)
			}
		}
		return fmt.Errorf("failed to create candidate: %w", err)
	}

	return nil
}

// GetByID retrieves a candidate scoped to the owning account
func (r *PostgresCandidateRepository) GetByID(ctx context.Context, accountID kernel.AccountID, id kernel.CandidateID) (*candidate.Candidate, error) {
	var model candidateModel
	query := `SELECT * FROM candidates WHERE id = $1 AND account_id = $2`

	err := r.db.GetContext(ctx, &model, query, id.String(), accountID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, candidate.ErrCandidateNotFound()
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	return model.toEntity()
}

// Update persists user-editable fields
func (r *PostgresCandidateRepository) Update(ctx context.Context, accountID kernel.AccountID, c *candidate.Candidate) error {
	query := `
		UPDATE candidates
		SET name = $3, email = $4, phone = $5, unlocked = $6,
		    favorite = $7, updated_at = $8
		WHERE id = $1 AND account_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		c.ID.String(), accountID.String(),
		c.Name, c.Email.String(), c.Phone, c.Unlocked, c.Favorite, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}

	return requireRow(result)
}

// ApplyAnalysis persists the analysis outcome fields
func (r *PostgresCandidateRepository) ApplyAnalysis(ctx context.Context, accountID kernel.AccountID, c *candidate.Candidate) error {
	model, err := fromEntity(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE candidates
		SET cv_rate = $3, status = $4, relevance_analysis = $5,
		    improvement_tips = $6, name = $7, email = $8, phone = $9,
		    updated_at = $10
		WHERE id = $1 AND account_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		model.ID, accountID.String(),
		model.CVRate, model.Status, model.Relevance, model.ImprovementTips,
		model.Name, model.Email, model.Phone, model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to apply analysis: %w", err)
	}

	return requireRow(result)
}

// SetStatus transitions the analysis status
func (r *PostgresCandidateRepository) SetStatus(ctx context.Context, accountID kernel.AccountID, id kernel.CandidateID, status candidate.AnalysisStatus) error {
	query := `
		UPDATE candidates
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND account_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, id.String(), accountID.String(), string(status))
	if err != nil {
		return fmt.Errorf("failed to set candidate status: %w", err)
	}

	return requireRow(result)
}

// Delete removes candidates owned by the account
func (r *PostgresCandidateRepository) Delete(ctx context.Context, accountID kernel.AccountID, ids []kernel.CandidateID) (int, error) {
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	query := `DELETE FROM candidates WHERE account_id = $1 AND id = ANY($2)`

	result, err := r.db.ExecContext(ctx, query, accountID.String(), pq.Array(idStrings))
	if err != nil {
		return 0, fmt.Errorf("failed to delete candidates: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return int(affected), nil
}

// ListByJob retrieves candidates for a job with pagination
func (r *PostgresCandidateRepository) ListByJob(
	ctx context.Context,
	accountID kernel.AccountID,
	jobID kernel.JobID,
	opts kernel.PaginationOptions,
) (*kernel.Paginated[candidate.Candidate], error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM candidates WHERE account_id = $1 AND job_id = $2`
	if err := r.db.GetContext(ctx, &total, countQuery, accountID.String(), jobID.String()); err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}

	var models []candidateModel
	query := `
		SELECT * FROM candidates
		WHERE account_id = $1 AND job_id = $2
		ORDER BY cv_rate DESC, created_at DESC
		LIMIT $3 OFFSET $4
	`

	err := r.db.SelectContext(ctx, &models, query,
		accountID.String(), jobID.String(), opts.PageSize, opts.Offset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	items := make([]candidate.Candidate, 0, len(models))
	for i := range models {
		entity, err := models[i].toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, *entity)
	}

	return kernel.NewPaginated(items, opts, total), nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return candidate.ErrCandidateNotFound()
	}
	return nil
}
