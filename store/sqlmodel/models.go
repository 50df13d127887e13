// Package sqlmodel holds the table models shared by the relational stores.
// The grove tags drive the postgres and sqlite stores; the gorm tags drive
// gormstore. Table and column names are identical across all three.
package sqlmodel

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/types"
)

// Table names.
const (
	AccountsTable = "reward_accounts"
	EntriesTable  = "reward_entries"
	InvoicesTable = "reward_invoices"
	LinksTable    = "reward_links"
	IssuersTable  = "reward_issuers"
)

// ==================== Account ====================

// Account is the reward_accounts row.
type Account struct {
	grove.BaseModel `grove:"table:reward_accounts" gorm:"-"`

	ID        string    `grove:"id,pk"      gorm:"primaryKey;size:64"`
	Role      string    `grove:"role"       gorm:"size:32;not null;index"`
	Document  string    `grove:"document"   gorm:"size:32;not null;uniqueIndex:idx_reward_accounts_document"`
	Name      string    `grove:"name"       gorm:"size:255;not null;default:''"`
	StoreID   *string   `grove:"store_id"   gorm:"size:64;index"`
	Balance   int64     `grove:"balance"    gorm:"not null;default:0"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// TableName implements gorm's tabler.
func (Account) TableName() string { return AccountsTable }

// FromAccount converts a domain account to its row.
func FromAccount(a *account.Account) *Account {
	return &Account{
		ID:        a.ID.String(),
		Role:      string(a.Role),
		Document:  a.Document,
		Name:      a.Name,
		StoreID:   Optional(a.StoreID),
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt.UTC(),
		UpdatedAt: a.UpdatedAt.UTC(),
	}
}

// Domain converts the row back to an account.
func (m *Account) Domain() (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	storeID, err := id.ParseOptionalWithPrefix(deref(m.StoreID), id.PrefixAccount)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Entity:   entity(m.CreatedAt, m.UpdatedAt),
		ID:       accountID,
		Role:     account.Role(m.Role),
		Document: m.Document,
		Name:     m.Name,
		StoreID:  storeID,
		Balance:  m.Balance,
	}, nil
}

// ==================== Entry ====================

// Entry is the reward_entries row. Entries are immutable.
type Entry struct {
	grove.BaseModel `grove:"table:reward_entries" gorm:"-"`

	ID          string    `grove:"id,pk"       gorm:"primaryKey;size:64"`
	AccountID   string    `grove:"account_id"  gorm:"size:64;not null;index:idx_reward_entries_account_created,priority:1"`
	Amount      int64     `grove:"amount"      gorm:"not null"`
	Type        string    `grove:"type"        gorm:"size:32;not null"`
	Description string    `grove:"description" gorm:"not null;default:''"`
	RelatedID   *string   `grove:"related_id"  gorm:"size:64;index"`
	CreatedAt   time.Time `grove:"created_at"  gorm:"not null;index:idx_reward_entries_account_created,priority:2"`
}

// TableName implements gorm's tabler.
func (Entry) TableName() string { return EntriesTable }

// FromEntry converts a domain entry to its row.
func FromEntry(e *entry.Entry) *Entry {
	return &Entry{
		ID:          e.ID.String(),
		AccountID:   e.AccountID.String(),
		Amount:      e.Amount,
		Type:        string(e.Type),
		Description: e.Description,
		RelatedID:   Optional(e.RelatedID),
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

// Domain converts the row back to an entry.
func (m *Entry) Domain() (*entry.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	relatedID, err := id.ParseOptional(deref(m.RelatedID))
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
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}

// ==================== Invoice ====================

// Invoice is the reward_invoices row.
type Invoice struct {
	grove.BaseModel `grove:"table:reward_invoices" gorm:"-"`

	ID          string     `grove:"id,pk"        gorm:"primaryKey;size:64"`
	OwnerID     string     `grove:"owner_id"     gorm:"size:64;not null;index:idx_reward_invoices_owner_status,priority:1"`
	AccessKey   string     `grove:"access_key"   gorm:"size:64;not null;uniqueIndex:idx_reward_invoices_access_key"`
	IssuerID    string     `grove:"issuer_id"    gorm:"size:32;not null;default:''"`
	Coins       int64      `grove:"coins"        gorm:"not null"`
	Status      string     `grove:"status"       gorm:"size:16;not null;index:idx_reward_invoices_owner_status,priority:2"`
	ProcessedAt *time.Time `grove:"processed_at"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

// TableName implements gorm's tabler.
func (Invoice) TableName() string { return InvoicesTable }

// FromInvoice converts a domain invoice to its row.
func FromInvoice(inv *invoice.Invoice) *Invoice {
	return &Invoice{
		ID:          inv.ID.String(),
		OwnerID:     inv.OwnerID.String(),
		AccessKey:   inv.AccessKey,
		IssuerID:    inv.IssuerID,
		Coins:       inv.Coins,
		Status:      string(inv.Status),
		ProcessedAt: inv.ProcessedAt,
		CreatedAt:   inv.CreatedAt.UTC(),
		UpdatedAt:   inv.UpdatedAt.UTC(),
	}
}

// Domain converts the row back to an invoice.
func (m *Invoice) Domain() (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseAccountID(m.OwnerID)
	if err != nil {
		return nil, err
	}
	var processedAt *time.Time
	if m.ProcessedAt != nil {
		t := m.ProcessedAt.UTC()
		processedAt = &t
	}
	return &invoice.Invoice{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          invID,
		OwnerID:     ownerID,
		AccessKey:   m.AccessKey,
		IssuerID:    m.IssuerID,
		Coins:       m.Coins,
		Status:      invoice.Status(m.Status),
		ProcessedAt: processedAt,
	}, nil
}

// ==================== Link ====================

// Link is the reward_links row.
type Link struct {
	grove.BaseModel `grove:"table:reward_links" gorm:"-"`

	ID         string    `grove:"id,pk"      gorm:"primaryKey;size:64"`
	SellerID   string    `grove:"seller_id"  gorm:"size:64;not null;uniqueIndex:idx_reward_links_pair,priority:1"`
	StoreID    string    `grove:"store_id"   gorm:"size:64;not null;uniqueIndex:idx_reward_links_pair,priority:2;index"`
	Status     string    `grove:"status"     gorm:"size:16;not null;index"`
	Percentage int       `grove:"percentage" gorm:"not null;default:0"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

// TableName implements gorm's tabler.
func (Link) TableName() string { return LinksTable }

// FromLink converts a domain link to its row.
func FromLink(l *link.Link) *Link {
	return &Link{
		ID:         l.ID.String(),
		SellerID:   l.SellerID.String(),
		StoreID:    l.StoreID.String(),
		Status:     string(l.Status),
		Percentage: l.Percentage,
		CreatedAt:  l.CreatedAt.UTC(),
		UpdatedAt:  l.UpdatedAt.UTC(),
	}
}

// Domain converts the row back to a link.
func (m *Link) Domain() (*link.Link, error) {
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
		Entity:     entity(m.CreatedAt, m.UpdatedAt),
		ID:         linkID,
		SellerID:   sellerID,
		StoreID:    storeID,
		Status:     link.Status(m.Status),
		Percentage: m.Percentage,
	}, nil
}

// ==================== Issuer ====================

// Issuer is the reward_issuers row.
type Issuer struct {
	grove.BaseModel `grove:"table:reward_issuers" gorm:"-"`

	ID        string    `grove:"id,pk"      gorm:"primaryKey;size:64"`
	Code      string    `grove:"code"       gorm:"size:14;not null;uniqueIndex:idx_reward_issuers_code"`
	Name      string    `grove:"name"       gorm:"size:255;not null;default:''"`
	Active    bool      `grove:"active"     gorm:"not null"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// TableName implements gorm's tabler.
func (Issuer) TableName() string { return IssuersTable }

// FromIssuer converts a domain issuer to its row.
func FromIssuer(iss *issuer.Issuer) *Issuer {
	return &Issuer{
		ID:        iss.ID.String(),
		Code:      iss.Code,
		Name:      iss.Name,
		Active:    iss.Active,
		CreatedAt: iss.CreatedAt.UTC(),
		UpdatedAt: iss.UpdatedAt.UTC(),
	}
}

// Domain converts the row back to an issuer.
func (m *Issuer) Domain() (*issuer.Issuer, error) {
	issuerID, err := id.ParseIssuerID(m.ID)
	if err != nil {
		return nil, err
	}
	return &issuer.Issuer{
		Entity: entity(m.CreatedAt, m.UpdatedAt),
		ID:     issuerID,
		Code:   m.Code,
		Name:   m.Name,
		Active: m.Active,
	}, nil
}

// ==================== Helpers ====================

// Optional maps Nil to a NULL column.
func Optional(v id.ID) *string {
	if v.IsNil() {
		return nil
	}
	s := v.String()
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}
