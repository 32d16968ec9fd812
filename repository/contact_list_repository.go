package repository

import (
	"context"
	"errors"

	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactListRepositoryImpl implements ContactListRepository interface
type ContactListRepositoryImpl struct {
	*BaseRepository[models.ContactList, models.ContactListFilter]
}

// NewContactListRepository creates a new contact list repository
func NewContactListRepository(db *gorm.DB) ContactListRepository {
	return &ContactListRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ContactList, models.ContactListFilter](db),
	}
}

// ByUUID finds a contact list by UUID
func (r *ContactListRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.ContactList, error) {
	db := r.getDB(ctx)
	var list models.ContactList
	err := db.Where("uuid = ?", uuid).Last(&list).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &list, nil
}

// AddContacts links contacts to a list, ignoring duplicates
func (r *ContactListRepositoryImpl) AddContacts(ctx context.Context, listID uint, contactIDs []uint) error {
	if len(contactIDs) == 0 {
		return nil
	}

	db := r.getDB(ctx)
	memberships := make([]models.ContactListMembership, 0, len(contactIDs))
	for _, contactID := range contactIDs {
		memberships = append(memberships, models.ContactListMembership{
			ListID:    listID,
			ContactID: contactID,
			CreatedAt: utils.UTCNow(),
		})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(memberships, 100).Error
}

// ByFilter retrieves contact lists matching the filter
func (r *ContactListRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactListFilter, orderBy string, limit, offset int) ([]*models.ContactList, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db, filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var lists []*models.ContactList
	if err := query.Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

// Count returns the number of contact lists matching the filter
func (r *ContactListRepositoryImpl) Count(ctx context.Context, filter models.ContactListFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.ContactList{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any contact list matching the filter exists
func (r *ContactListRepositoryImpl) Exists(ctx context.Context, filter models.ContactListFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ContactListRepositoryImpl) applyFilter(db *gorm.DB, filter models.ContactListFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	return db
}
