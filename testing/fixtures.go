package testing

import (
	"fmt"
	"math/rand"

	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	db *TestDB
}

// NewTestFixtures creates a new test fixtures helper
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{db: db}
}

// CreateTestCustomer creates an active customer
func (tf *TestFixtures) CreateTestCustomer() (*models.Customer, error) {
	customer := &models.Customer{
		Name:              fmt.Sprintf("Test Customer %d", rand.Intn(100000)),
		ContactEmail:      fmt.Sprintf("customer%d@example.com", rand.Intn(1000000)),
		DefaultLineNumber: "+1555000001",
		IsActive:          utils.ToPtr(true),
	}
	if err := tf.db.DB.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}
	return customer, nil
}

// CreateTestWallet creates a wallet with the given balance
func (tf *TestFixtures) CreateTestWallet(customerID uint, balance int64) (*models.Wallet, error) {
	wallet := &models.Wallet{
		CustomerID: customerID,
		Balance:    balance,
	}
	if err := tf.db.DB.Create(wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create test wallet: %w", err)
	}
	return wallet, nil
}

// CreateTestContact creates a subscribed contact with a valid phone
func (tf *TestFixtures) CreateTestContact(customerID uint) (*models.Contact, error) {
	contact := &models.Contact{
		CustomerID: customerID,
		Phone:      fmt.Sprintf("+1555%07d", rand.Intn(10000000)),
		FirstName:  "Alex",
		LastName:   "Doe",
		Subscribed: utils.ToPtr(true),
	}
	if err := tf.db.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create test contact: %w", err)
	}
	return contact, nil
}

// CreateTestContacts creates n subscribed contacts
func (tf *TestFixtures) CreateTestContacts(customerID uint, n int) ([]*models.Contact, error) {
	contacts := make([]*models.Contact, 0, n)
	for i := 0; i < n; i++ {
		contact, err := tf.CreateTestContact(customerID)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// CreateUnsubscribedContact creates a contact that must never receive messages
func (tf *TestFixtures) CreateUnsubscribedContact(customerID uint) (*models.Contact, error) {
	contact := &models.Contact{
		CustomerID: customerID,
		Phone:      fmt.Sprintf("+1555%07d", rand.Intn(10000000)),
		FirstName:  "Opted",
		LastName:   "Out",
		Subscribed: utils.ToPtr(false),
	}
	if err := tf.db.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create unsubscribed contact: %w", err)
	}
	return contact, nil
}

// CreateTestList creates a contact list with the given members
func (tf *TestFixtures) CreateTestList(customerID uint, contactIDs []uint) (*models.ContactList, error) {
	list := &models.ContactList{
		CustomerID: customerID,
		Name:       fmt.Sprintf("Test List %d", rand.Intn(100000)),
	}
	if err := tf.db.DB.Create(list).Error; err != nil {
		return nil, fmt.Errorf("failed to create test list: %w", err)
	}
	for _, contactID := range contactIDs {
		membership := &models.ContactListMembership{ListID: list.ID, ContactID: contactID}
		if err := tf.db.DB.Create(membership).Error; err != nil {
			return nil, fmt.Errorf("failed to add contact to list: %w", err)
		}
	}
	return list, nil
}

// CreateTestCampaign creates a draft campaign
func (tf *TestFixtures) CreateTestCampaign(customerID uint, body string) (*models.Campaign, error) {
	campaign := &models.Campaign{
		CustomerID: customerID,
		Title:      fmt.Sprintf("Test Campaign %d", rand.Intn(100000)),
		Body:       body,
		Status:     models.CampaignStatusDraft,
	}
	if err := tf.db.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestMessage creates a materialized message in the given status
func (tf *TestFixtures) CreateTestMessage(campaign *models.Campaign, contact *models.Contact, status models.MessageStatus) (*models.CampaignMessage, error) {
	message := &models.CampaignMessage{
		CampaignID: campaign.ID,
		CustomerID: campaign.CustomerID,
		ContactID:  contact.ID,
		Phone:      contact.Phone,
		Text:       campaign.Body,
		Status:     status,
	}
	if err := tf.db.DB.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}
	return message, nil
}
