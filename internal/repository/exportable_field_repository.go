package repository

import (
	"errors"

	"github.com/yukikurage/orgperms-api/internal/database"
	"github.com/yukikurage/orgperms-api/internal/models"
	"gorm.io/gorm"
)

// GormExportableFieldRepository is a GORM implementation of ExportableFieldRepository
type GormExportableFieldRepository struct {
	db *gorm.DB
}

// NewExportableFieldRepository creates a new ExportableFieldRepository
func NewExportableFieldRepository(db *gorm.DB) ExportableFieldRepository {
	return &GormExportableFieldRepository{db: db}
}

// Create registers a field. The existence check reports duplicates on every
// driver; the unique index catches concurrent inserts that slip past it.
func (r *GormExportableFieldRepository) Create(field *models.ExportableField) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ExportableField{}).
			Where("model_type = ? AND name = ? AND organization_id = ?", field.ModelType, field.Name, field.OrganizationID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateExportableField
		}

		if err := tx.Create(field).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateExportableField
			}
			return err
		}
		return nil
	})
}

// ListByOrganization lists the organization's own fields ordered by name
func (r *GormExportableFieldRepository) ListByOrganization(organizationID uint64) ([]models.ExportableField, error) {
	var fields []models.ExportableField
	if err := r.db.Scopes(database.InOrganization(organizationID)).
		Order("name ASC").
		Order("id ASC").
		Find(&fields).Error; err != nil {
		return nil, err
	}
	return fields, nil
}

// Delete removes one of the organization's fields
func (r *GormExportableFieldRepository) Delete(organizationID, fieldID uint64) error {
	result := r.db.Where("organization_id = ? AND id = ?", organizationID, fieldID).
		Delete(&models.ExportableField{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
