package mongo

import (
	"time"

	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/types"
)

// ==================== Account models ====================

type accountModel struct {
	ID        string    `bson:"_id"`
	Role      string    `bson:"role"`
	Document  string    `bson:"document"`
	Name      string    `bson:"name"`
	StoreID   string    `bson:"store_id,omitempty"`
	Balance   int64     `bson:"balance"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:        a.ID.String(),
		Role:      string(a.Role),
		Document:  a.Document,
		Name:      a.Name,
		StoreID:   a.StoreID.String(),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	storeID, err := id.ParseOptionalWithPrefix(m.StoreID, id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Entity:   types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       accountID,
		Role:     account.Role(m.Role),
		Document: m.Document,
		Name:     m.Name,
		StoreID:  storeID,
		Balance:  m.Balance,
	}, nil
}

// ==================== Entry models ====================

type entryModel struct {
	ID          string    `bson:"_id"`
	AccountID   string    `bson:"account_id"`
	Amount      int64     `bson:"amount"`
	Type        string    `bson:"type"`
	Description string    `bson:"description"`
	RelatedID   string    `bson:"related_id,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toEntryModel(e *entry.Entry) *entryModel {
	return &entryModel{
		ID:          e.ID.String(),
		AccountID:   e.AccountID.String(),
		Amount:      e.Amount,
		Type:        string(e.Type),
		Description: e.Description,
		RelatedID:   e.RelatedID.String(),
		CreatedAt:   e.CreatedAt,
	}
}

func fromEntryModel(m *entryModel) (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	relatedID, err := id.ParseOptional(m.RelatedID)
	if err != nil {
		return nil, err
	}
	return &entry.Entry{
		ID:          entryID,
		AccountID:   accountID,
		Amount:      m.Amount,
		Type:        entry.Type(m.Type),
		Description: m.Description,
		RelatedID:   relatedID,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	ID          string     `bson:"_id"`
	OwnerID     string     `bson:"owner_id"`
	AccessKey   string     `bson:"access_key"`
	IssuerID    string     `bson:"issuer_id"`
	Coins       int64      `bson:"coins"`
	Status      string     `bson:"status"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:          inv.ID.String(),
		OwnerID:     inv.OwnerID.String(),
		AccessKey:   inv.AccessKey,
		IssuerID:    inv.IssuerID,
		Coins:       inv.Coins,
		Status:      string(inv.Status),
		ProcessedAt: inv.ProcessedAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseAccountID(m.OwnerID)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          invID,
		OwnerID:     ownerID,
		AccessKey:   m.AccessKey,
		IssuerID:    m.IssuerID,
		Coins:       m.Coins,
		Status:      invoice.Status(m.Status),
		ProcessedAt: m.ProcessedAt,
	}, nil
}

// ==================== Link models ====================

type linkModel struct {
	ID         string    `bson:"_id"`
	SellerID   string    `bson:"seller_id"`
	StoreID    string    `bson:"store_id"`
	Status     string    `bson:"status"`
	Percentage int       `bson:"percentage"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toLinkModel(l *link.Link) *linkModel {
	return &linkModel{
		ID:         l.ID.String(),
		SellerID:   l.SellerID.String(),
		StoreID:    l.StoreID.String(),
		Status:     string(l.Status),
		Percentage: l.Percentage,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func fromLinkModel(m *linkModel) (*link.Link, error) {
	linkID, err := id.ParseLinkID(m.ID)
	if err != nil {
		return nil, err
	}
	sellerID, err := id.ParseAccountID(m.SellerID)
	if err != nil {
		return nil, err
	}
	storeID, err := id.ParseAccountID(m.StoreID)
	if err != nil {
		return nil, err
	}
	return &link.Link{
		Entity:     types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:         linkID,
		SellerID:   sellerID,
		StoreID:    storeID,
		Status:     link.Status(m.Status),
		Percentage: m.Percentage,
	}, nil
}

// ==================== Issuer models ====================

type issuerModel struct {
	ID        string    `bson:"_id"`
	Code      string    `bson:"code"`
	Name      string    `bson:"name"`
	Active    bool      `bson:"active"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toIssuerModel(iss *issuer.Issuer) *issuerModel {
	return &issuerModel{
		ID:        iss.ID.String(),
		Code:      iss.Code,
		Name:      iss.Name,
		Active:    iss.Active,
		CreatedAt: iss.CreatedAt,
		UpdatedAt: iss.UpdatedAt,
	}
}

func fromIssuerModel(m *issuerModel) (*issuer.Issuer, error) {
	issuerID, err := id.ParseIssuerID(m.ID)
	if err != nil {
		return nil, err
	}
	return &issuer.Issuer{
		Entity: types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:     issuerID,
		Code:   m.Code,
		Name:   m.Name,
		Active: m.Active,
	}, nil
}
