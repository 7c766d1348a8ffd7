package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grievancenet/backend/internal/domain/grievance"
	"github.com/grievancenet/backend/internal/domain/shared"
	"github.com/grievancenet/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormGrievanceRepository implements grievance.Repository using GORM
type GormGrievanceRepository struct {
	db *gorm.DB
}

// NewGormGrievanceRepository creates a new GormGrievanceRepository
func NewGormGrievanceRepository(db *gorm.DB) *GormGrievanceRepository {
	return &GormGrievanceRepository{db: db}
}

// Create inserts a new grievance. A second insert with the same owner and
// request ID fails with shared.ErrAlreadyExists.
func (r *GormGrievanceRepository) Create(ctx context.Context, g *grievance.Grievance) error {
	model := models.GrievanceModelFromDomain(g)
	return translate(r.db.WithContext(ctx).Create(model).Error)
}

// Save writes the mutable columns guarded by the version the aggregate was loaded at
func (r *GormGrievanceRepository) Save(ctx context.Context, g *grievance.Grievance) error {
	result := r.db.WithContext(ctx).
		Model(&models.GrievanceModel{}).
		Where("id = ? AND version = ?", g.ID, g.Version-1).
		Updates(map[string]any{
			"delivery":          g.Delivery,
			"delivery_error":    g.DeliveryError,
			"delivered_at":      g.DeliveredAt,
			"status":            g.Status,
			"status_changed_by": g.StatusChangedBy,
			"status_changed_at": g.StatusChangedAt,
			"version":           g.Version,
			"updated_at":        g.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.GrievanceModel{}).
		Where("id = ?", g.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}

// FindByID finds a grievance by ID regardless of delivery state
func (r *GormGrievanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*grievance.Grievance, error) {
	var model models.GrievanceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindByRequestID finds the grievance userID submitted under requestID.
// Failed attempts release their request id and are ignored.
func (r *GormGrievanceRepository) FindByRequestID(ctx context.Context, userID uuid.UUID, requestID string) (*grievance.Grievance, error) {
	if requestID == "" {
		return nil, shared.ErrNotFound
	}
	var model models.GrievanceModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND request_id = ? AND delivery <> ?", userID, requestID, grievance.DeliveryFailed).
		First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindByOwner lists delivered grievances owned by userID
func (r *GormGrievanceRepository) FindByOwner(ctx context.Context, userID uuid.UUID, filter grievance.ListFilter) ([]grievance.Grievance, error) {
	query := r.visible(ctx).Where("user_id = ?", userID)
	return r.list(query, filter)
}

// CountByOwner counts delivered grievances owned by userID
func (r *GormGrievanceRepository) CountByOwner(ctx context.Context, userID uuid.UUID, filter grievance.ListFilter) (int64, error) {
	var total int64
	err := r.applyFilter(r.visible(ctx).Where("user_id = ?", userID), filter).Count(&total).Error
	return total, err
}

// FindAll lists every delivered grievance
func (r *GormGrievanceRepository) FindAll(ctx context.Context, filter grievance.ListFilter) ([]grievance.Grievance, error) {
	return r.list(r.visible(ctx), filter)
}

// CountAll counts every delivered grievance
func (r *GormGrievanceRepository) CountAll(ctx context.Context, filter grievance.ListFilter) (int64, error) {
	var total int64
	err := r.applyFilter(r.visible(ctx), filter).Count(&total).Error
	return total, err
}

// FindPendingBefore lists grievances still waiting on the relay, oldest first
func (r *GormGrievanceRepository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]grievance.Grievance, error) {
	var rows []models.GrievanceModel
	if err := r.db.WithContext(ctx).
		Where("delivery = ? AND created_at < ?", grievance.DeliveryPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainGrievances(rows), nil
}

func (r *GormGrievanceRepository) visible(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.GrievanceModel{}).
		Where("delivery = ?", grievance.DeliverySent)
}

func (r *GormGrievanceRepository) applyFilter(query *gorm.DB, filter grievance.ListFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"(LOWER(problem) LIKE ? OR LOWER(city) LIKE ? OR LOWER(COALESCE(detailed_location, '')) LIKE ?)",
			like, like, like)
	}
	return query
}

func (r *GormGrievanceRepository) list(query *gorm.DB, filter grievance.ListFilter) ([]grievance.Grievance, error) {
	query = r.applyFilter(query, filter)

	sortField := ValidateSortField(filter.OrderBy, GrievanceSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id " + sortOrder)

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var rows []models.GrievanceModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainGrievances(rows), nil
}

func toDomainGrievances(rows []models.GrievanceModel) []grievance.Grievance {
	out := make([]grievance.Grievance, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ grievance.Repository = (*GormGrievanceRepository)(nil)
