package repository

import (
	"context"
	"errors"

	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/utils"
	"gorm.io/gorm"
)

// ContactRepositoryImpl implements ContactRepository interface
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db),
	}
}

// ByUUID finds a contact by UUID
func (r *ContactRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Contact, error) {
	db := r.getDB(ctx)
	var contact models.Contact
	err := db.Where("uuid = ?", uuid).Last(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

// ResolveAudience returns the subscribed contacts of a customer, restricted
// to one list when listID is set. The query dedupes by contact ID; contacts
// without a dispatchable phone number are filtered out afterwards because
// the validity check is application-level.
func (r *ContactRepositoryImpl) ResolveAudience(ctx context.Context, customerID uint, listID *uint) ([]*models.Contact, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Contact{}).
		Where("contacts.customer_id = ? AND contacts.subscribed = ?", customerID, true)
	if listID != nil {
		query = query.
			Joins("JOIN contact_list_memberships ON contact_list_memberships.contact_id = contacts.id").
			Where("contact_list_memberships.list_id = ?", *listID)
	}

	var contacts []*models.Contact
	if err := query.Distinct("contacts.*").Order("contacts.id").Find(&contacts).Error; err != nil {
		return nil, err
	}

	audience := make([]*models.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.HasValidPhone() {
			audience = append(audience, c)
		}
	}
	return audience, nil
}

// SetSubscribed flips the subscription flag of a contact
func (r *ContactRepositoryImpl) SetSubscribed(ctx context.Context, contactID uint, subscribed bool) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Contact{}).
		Where("id = ?", contactID).
		Updates(map[string]any{
			"subscribed": subscribed,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ByFilter retrieves contacts matching the filter
func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
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

	var contacts []*models.Contact
	if err := query.Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

// Count returns the number of contacts matching the filter
func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.Contact{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any contact matching the filter exists
func (r *ContactRepositoryImpl) Exists(ctx context.Context, filter models.ContactFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, filter models.ContactFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("contacts.id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("contacts.uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		db = db.Where("contacts.customer_id = ?", *filter.CustomerID)
	}
	if filter.Phone != nil {
		db = db.Where("contacts.phone = ?", *filter.Phone)
	}
	if filter.Subscribed != nil {
		db = db.Where("contacts.subscribed = ?", *filter.Subscribed)
	}
	if filter.ListID != nil {
		db = db.Joins("JOIN contact_list_memberships ON contact_list_memberships.contact_id = contacts.id").
			Where("contact_list_memberships.list_id = ?", *filter.ListID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("contacts.created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("contacts.created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
