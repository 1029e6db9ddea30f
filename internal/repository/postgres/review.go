package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/RakeshKhadav/VC/internal/domain"
	"github.com/RakeshKhadav/VC/internal/repository"
	"github.com/RakeshKhadav/VC/pkg/database"
	apperrors "github.com/RakeshKhadav/VC/pkg/errors"
)

const reviewColumns = `r.id, r.author_id, r.firm_id, f.name, f.slug,
	r.responsiveness, r.fairness, r.support, r.review_text,
	r.company_name, r.company_website, r.industry, r.role, r.company_location,
	r.funding_stage, r.investment_amount, r.year_of_interaction, r.is_anonymous, r.created_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	db database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

func scanReview(row pgx.Row, extra ...any) (*domain.Review, error) {
	var rv domain.Review
	dest := []any{
		&rv.ID,
		&rv.AuthorID,
		&rv.FirmID,
		&rv.FirmName,
		&rv.FirmSlug,
		&rv.Ratings.Responsiveness,
		&rv.Ratings.Fairness,
		&rv.Ratings.Support,
		&rv.ReviewText,
		&rv.CompanyName,
		&rv.CompanyWebsite,
		&rv.Industry,
		&rv.Role,
		&rv.CompanyLocation,
		&rv.FundingStage,
		&rv.InvestmentAmount,
		&rv.YearOfInteraction,
		&rv.IsAnonymous,
		&rv.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &rv, nil
}

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	query := `
		INSERT INTO reviews (
			id, author_id, firm_id, responsiveness, fairness, support, review_text,
			company_name, company_website, industry, role, company_location,
			funding_stage, investment_amount, year_of_interaction, is_anonymous, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	ctx, end := database.TraceQuery(ctx, "InsertReview", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		review.ID,
		review.AuthorID,
		review.FirmID,
		review.Ratings.Responsiveness,
		review.Ratings.Fairness,
		review.Ratings.Support,
		review.ReviewText,
		review.CompanyName,
		review.CompanyWebsite,
		review.Industry,
		review.Role,
		review.CompanyLocation,
		review.FundingStage,
		review.InvestmentAmount,
		review.YearOfInteraction,
		review.IsAnonymous,
		review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review joined with its firm.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews r
		JOIN firms f ON f.id = r.firm_id
		WHERE r.id = $1`

	rv, err := scanReview(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get review by id: %w", err)
	}
	return rv, nil
}

// RatingsByFirm returns every rating triple recorded for the firm.
func (r *ReviewRepository) RatingsByFirm(ctx context.Context, firmID string) (ratings []domain.Ratings, err error) {
	query := `SELECT responsiveness, fairness, support FROM reviews WHERE firm_id = $1`

	ctx, end := database.TraceQuery(ctx, "RatingsByFirm", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, firmID)
	if err != nil {
		return nil, fmt.Errorf("query firm ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rt domain.Ratings
		if err = rows.Scan(&rt.Responsiveness, &rt.Fairness, &rt.Support); err != nil {
			return nil, fmt.Errorf("scan rating row: %w", err)
		}
		ratings = append(ratings, rt)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating rows: %w", err)
	}
	return ratings, nil
}

var reviewOrderBy = map[domain.ReviewSort]string{
	domain.ReviewSortNewest:  "r.created_at DESC, r.id",
	domain.ReviewSortHighest: "(r.responsiveness + r.fairness + r.support) DESC, r.created_at DESC, r.id",
}

// List returns reviews matching the filter with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.FirmID != nil {
		conditions = append(conditions, fmt.Sprintf("r.firm_id = $%d", argIndex))
		args = append(args, *filter.FirmID)
		argIndex++
	}

	if filter.FirmSlug != nil {
		conditions = append(conditions, fmt.Sprintf("f.slug = $%d", argIndex))
		args = append(args, *filter.FirmSlug)
		argIndex++
	}

	if filter.AuthorID != nil {
		conditions = append(conditions, fmt.Sprintf("r.author_id = $%d", argIndex))
		args = append(args, *filter.AuthorID)
		argIndex++
	}

	if filter.Industry != nil {
		conditions = append(conditions, fmt.Sprintf("LOWER(r.industry) = LOWER($%d)", argIndex))
		args = append(args, *filter.Industry)
		argIndex++
	}

	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("r.year_of_interaction = $%d", argIndex))
		args = append(args, *filter.Year)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := reviewOrderBy[filter.Sort]
	if !ok {
		orderBy = reviewOrderBy[domain.ReviewSortNewest]
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM reviews r
		JOIN firms f ON f.id = r.firm_id
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		reviewColumns, whereClause, orderBy, argIndex, argIndex+1,
	)

	limit, offset := pageBounds(filter.Page, filter.PerPage)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)
	for rows.Next() {
		rv, err := scanReview(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews, totalCount, nil
}
