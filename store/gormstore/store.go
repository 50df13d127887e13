// Package gormstore implements store.Store on top of GORM for applications
// that already hold a *gorm.DB. It shares its tables with the postgres and
// sqlite stores, so either can read what the other wrote.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/store/sqlmodel"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using GORM.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New creates a store on an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// OpenPostgres connects to PostgreSQL through GORM's pgx dialect.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("rewards/gormstore: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying GORM handle for direct access.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return migrate(ctx, s.db)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Atomic runs fn in a database transaction. A store already bound to a
// transaction joins it.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Store{db: tx, inTx: true})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	err := s.conn(ctx).Create(sqlmodel.FromAccount(a)).Error
	if isDuplicate(err) {
		return rewards.ErrDuplicateDocument
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m := new(sqlmodel.Account)
	err := s.conn(ctx).Where("id = ?", accountID.String()).First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrAccountNotFound)
	}
	return m.Domain()
}

func (s *Store) GetAccountByDocument(ctx context.Context, document string) (*account.Account, error) {
	m := new(sqlmodel.Account)
	err := s.conn(ctx).Where("document = ?", document).First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrAccountNotFound)
	}
	return m.Domain()
}

func (s *Store) SetAccountStore(ctx context.Context, sellerID, storeID id.AccountID) error {
	res := s.conn(ctx).Model(&sqlmodel.Account{}).
		Where("id = ?", sellerID.String()).
		Updates(map[string]any{
			"store_id":   sqlmodel.Optional(storeID),
			"updated_at": now(),
		})
	return affected(res, rewards.ErrAccountNotFound)
}

// IncrementBalance applies delta in SQL so concurrent postings never lose
// an update.
func (s *Store) IncrementBalance(ctx context.Context, accountID id.AccountID, delta int64) error {
	res := s.conn(ctx).Model(&sqlmodel.Account{}).
		Where("id = ?", accountID.String()).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": now(),
		})
	return affected(res, rewards.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res := s.conn(ctx).Where("id = ?", accountID.String()).Delete(&sqlmodel.Account{})
	return affected(res, rewards.ErrAccountNotFound)
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	var n int64
	if err := s.conn(ctx).Model(&sqlmodel.Account{}).Where("id = ?", e.AccountID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return rewards.ErrAccountNotFound
	}
	return s.conn(ctx).Create(sqlmodel.FromEntry(e)).Error
}

func (s *Store) ListEntries(ctx context.Context, accountID id.AccountID, opts entry.ListOpts) ([]*entry.Entry, error) {
	q := s.conn(ctx).Where("account_id = ?", accountID.String())
	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}

	var models []sqlmodel.Entry
	if err := paginate(q, opts.Limit, opts.Offset).Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*entry.Entry, 0, len(models))
	for i := range models {
		e, err := models[i].Domain()
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) SumEntries(ctx context.Context, accountID id.AccountID) (int64, error) {
	var sum int64
	err := s.conn(ctx).Model(&sqlmodel.Entry{}).
		Where("account_id = ?", accountID.String()).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (s *Store) CountEntries(ctx context.Context, accountID id.AccountID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&sqlmodel.Entry{}).Where("account_id = ?", accountID.String()).Count(&n).Error
	return n, err
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	err := s.conn(ctx).Create(sqlmodel.FromInvoice(inv)).Error
	if isDuplicate(err) {
		return rewards.ErrDuplicateInvoice
	}
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(sqlmodel.Invoice)
	err := s.conn(ctx).Where("id = ?", invID.String()).First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrInvoiceNotFound)
	}
	return m.Domain()
}

func (s *Store) GetInvoiceByAccessKey(ctx context.Context, accessKey string) (*invoice.Invoice, error) {
	m := new(sqlmodel.Invoice)
	err := s.conn(ctx).Where("access_key = ?", accessKey).First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrInvoiceNotFound)
	}
	return m.Domain()
}

func (s *Store) ListInvoices(ctx context.Context, ownerID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	q := s.conn(ctx).Where("owner_id = ?", ownerID.String())
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	order := "created_at DESC, id DESC"
	if opts.Ascending {
		order = "created_at ASC, id ASC"
	}

	var models []sqlmodel.Invoice
	if err := paginate(q, opts.Limit, opts.Offset).Order(order).Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, 0, len(models))
	for i := range models {
		inv, err := models[i].Domain()
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, nil
}

func (s *Store) CountInvoices(ctx context.Context, ownerIDs []id.AccountID, status invoice.Status) (int64, error) {
	if len(ownerIDs) == 0 {
		return 0, nil
	}
	owners := make([]string, len(ownerIDs))
	for i, o := range ownerIDs {
		owners[i] = o.String()
	}

	q := s.conn(ctx).Model(&sqlmodel.Invoice{}).Where("owner_id IN ?", owners)
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// MarkInvoiceApproved is a compare-and-swap on the standby status.
func (s *Store) MarkInvoiceApproved(ctx context.Context, invID id.InvoiceID, processedAt time.Time) error {
	at := processedAt.UTC()
	res := s.conn(ctx).Model(&sqlmodel.Invoice{}).
		Where("id = ? AND status = ?", invID.String(), string(invoice.StatusStandby)).
		Updates(map[string]any{
			"status":       string(invoice.StatusApproved),
			"processed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return err
	}
	return rewards.ErrInvoiceNotStandby
}

// ==================== Link Store ====================

func (s *Store) CreateLink(ctx context.Context, l *link.Link) error {
	err := s.conn(ctx).Create(sqlmodel.FromLink(l)).Error
	if !isDuplicate(err) {
		return err
	}
	if l.Status == link.StatusApproved {
		var n int64
		if err := s.conn(ctx).Model(&sqlmodel.Link{}).
			Where("seller_id = ? AND store_id = ?", l.SellerID.String(), l.StoreID.String()).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return rewards.ErrSellerAlreadyLinked
		}
	}
	return rewards.ErrDuplicateLink
}

func (s *Store) GetLink(ctx context.Context, linkID id.LinkID) (*link.Link, error) {
	m := new(sqlmodel.Link)
	err := s.conn(ctx).Where("id = ?", linkID.String()).First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrLinkNotFound)
	}
	return m.Domain()
}

func (s *Store) FindSellerLink(ctx context.Context, sellerID id.AccountID, status link.Status) (*link.Link, error) {
	m := new(sqlmodel.Link)
	err := s.conn(ctx).
		Where("seller_id = ? AND status = ?", sellerID.String(), string(status)).
		Order("created_at ASC, id ASC").
		First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrLinkNotFound)
	}
	return m.Domain()
}

func (s *Store) linkQuery(ctx context.Context, opts link.ListOpts) *gorm.DB {
	q := s.conn(ctx).Model(&sqlmodel.Link{})
	if !opts.SellerID.IsNil() {
		q = q.Where("seller_id = ?", opts.SellerID.String())
	}
	if !opts.StoreID.IsNil() {
		q = q.Where("store_id = ?", opts.StoreID.String())
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	return q
}

func (s *Store) ListLinks(ctx context.Context, opts link.ListOpts) ([]*link.Link, error) {
	var models []sqlmodel.Link
	q := paginate(s.linkQuery(ctx, opts), opts.Limit, opts.Offset)
	if err := q.Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*link.Link, 0, len(models))
	for i := range models {
		l, err := models[i].Domain()
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Store) CountLinks(ctx context.Context, opts link.ListOpts) (int64, error) {
	var n int64
	err := s.linkQuery(ctx, opts).Count(&n).Error
	return n, err
}

// TransitionLink is a compare-and-swap on the link status. The partial
// unique index on approved links reports a second approval for the seller.
func (s *Store) TransitionLink(ctx context.Context, linkID id.LinkID, from, to link.Status) error {
	res := s.conn(ctx).Model(&sqlmodel.Link{}).
		Where("id = ? AND status = ?", linkID.String(), string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": now(),
		})
	if isDuplicate(res.Error) {
		return rewards.ErrSellerAlreadyLinked
	}
	return s.swapped(ctx, res, linkID)
}

// SetLinkPercentage is a compare-and-swap on an approved link's percentage.
func (s *Store) SetLinkPercentage(ctx context.Context, linkID id.LinkID, prior, next int) error {
	res := s.conn(ctx).Model(&sqlmodel.Link{}).
		Where("id = ? AND status = ? AND percentage = ?", linkID.String(), string(link.StatusApproved), prior).
		Updates(map[string]any{
			"percentage": next,
			"updated_at": now(),
		})
	return s.swapped(ctx, res, linkID)
}

func (s *Store) swapped(ctx context.Context, res *gorm.DB, linkID id.LinkID) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := s.GetLink(ctx, linkID); err != nil {
		return err
	}
	return rewards.ErrLinkModified
}

// ==================== Issuer Store ====================

func (s *Store) CreateIssuer(ctx context.Context, iss *issuer.Issuer) error {
	err := s.conn(ctx).Create(sqlmodel.FromIssuer(iss)).Error
	if isDuplicate(err) {
		return rewards.ErrDuplicateIssuer
	}
	return err
}

func (s *Store) GetIssuer(ctx context.Context, issuerID id.IssuerID) (*issuer.Issuer, error) {
	m := new(sqlmodel.Issuer)
	err := s.conn(ctx).Where("id = ?", issuerID.String()).First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrIssuerNotFound)
	}
	return m.Domain()
}

func (s *Store) GetIssuerByCode(ctx context.Context, code string) (*issuer.Issuer, error) {
	m := new(sqlmodel.Issuer)
	err := s.conn(ctx).Where("code = ?", code).First(m).Error
	if err != nil {
		return nil, notFound(err, rewards.ErrIssuerNotFound)
	}
	return m.Domain()
}

func (s *Store) ListIssuers(ctx context.Context, opts issuer.ListOpts) ([]*issuer.Issuer, error) {
	q := s.conn(ctx).Model(&sqlmodel.Issuer{})
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}

	var models []sqlmodel.Issuer
	if err := paginate(q, opts.Limit, opts.Offset).Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*issuer.Issuer, 0, len(models))
	for i := range models {
		iss, err := models[i].Domain()
		if err != nil {
			return nil, err
		}
		result = append(result, iss)
	}
	return result, nil
}

func (s *Store) SetIssuerActive(ctx context.Context, issuerID id.IssuerID, active bool) error {
	res := s.conn(ctx).Model(&sqlmodel.Issuer{}).
		Where("id = ?", issuerID.String()).
		Updates(map[string]any{
			"active":     active,
			"updated_at": now(),
		})
	return affected(res, rewards.ErrIssuerNotFound)
}

func (s *Store) DeleteIssuer(ctx context.Context, issuerID id.IssuerID) error {
	res := s.conn(ctx).Where("id = ?", issuerID.String()).Delete(&sqlmodel.Issuer{})
	return affected(res, rewards.ErrIssuerNotFound)
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func affected(res *gorm.DB, sentinel error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return sentinel
	}
	return nil
}

// isDuplicate reports a unique constraint violation, whether or not the
// connection was opened with TranslateError.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
