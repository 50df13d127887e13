// Package sqlite implements store.Store on SQLite through the grove
// sqlitedriver. It suits single-node deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"
	modsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
	"github.com/xraph/rewards/store/sqlmodel"

	// registers the "sqlite" migration executor
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// querier is satisfied by both *sqlitedriver.SqliteDB and *sqlitedriver.SqliteTx.
type querier interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
	NewUpdate(model any) *sqlitedriver.UpdateQuery
	NewDelete(model any) *sqlitedriver.DeleteQuery
	NewRaw(query string, args ...any) *sqlitedriver.RawQuery
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
	q   querier
	tx  *sqlitedriver.SqliteTx
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	sdb := sqlitedriver.Unwrap(db)
	return &Store{db: db, sdb: sdb, q: sdb}
}

// Open opens dsn with a single connection. SQLite allows one writer, and
// an in-memory database lives only as long as its connection.
func Open(ctx context.Context, dsn string, opts ...driver.Option) (*Store, error) {
	sdb := sqlitedriver.New()
	opts = append([]driver.Option{driver.WithPoolSize(1)}, opts...)
	if err := sdb.Open(ctx, dsn, opts...); err != nil {
		return nil, fmt.Errorf("rewards/sqlite: open: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("rewards/sqlite: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("rewards/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("rewards/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// Atomic runs fn in one transaction, joining one already in progress.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &Store{db: s.db, sdb: s.sdb, q: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.q.NewInsert(sqlmodel.FromAccount(a)).Exec(ctx)
	if isDuplicate(err) {
		return rewards.ErrDuplicateDocument
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m := new(sqlmodel.Account)
	err := s.q.NewSelect(m).
		Where("id = ?", accountID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrAccountNotFound)
	}
	return m.Domain()
}

func (s *Store) GetAccountByDocument(ctx context.Context, document string) (*account.Account, error) {
	m := new(sqlmodel.Account)
	err := s.q.NewSelect(m).
		Where("document = ?", document).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrAccountNotFound)
	}
	return m.Domain()
}

func (s *Store) SetAccountStore(ctx context.Context, sellerID, storeID id.AccountID) error {
	res, err := s.q.NewUpdate((*sqlmodel.Account)(nil)).
		Set("store_id = ?", sqlmodel.Optional(storeID)).
		Set("updated_at = ?", now()).
		Where("id = ?", sellerID.String()).
		Exec(ctx)
	return affected(res, err, rewards.ErrAccountNotFound)
}

func (s *Store) IncrementBalance(ctx context.Context, accountID id.AccountID, delta int64) error {
	res, err := s.q.NewUpdate((*sqlmodel.Account)(nil)).
		Set("balance = balance + ?", delta).
		Set("updated_at = ?", now()).
		Where("id = ?", accountID.String()).
		Exec(ctx)
	return affected(res, err, rewards.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res, err := s.q.NewDelete((*sqlmodel.Account)(nil)).
		Where("id = ?", accountID.String()).
		Exec(ctx)
	return affected(res, err, rewards.ErrAccountNotFound)
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	n, err := s.q.NewSelect((*sqlmodel.Account)(nil)).
		Where("id = ?", e.AccountID.String()).
		Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return rewards.ErrAccountNotFound
	}
	_, err = s.q.NewInsert(sqlmodel.FromEntry(e)).Exec(ctx)
	return err
}

func (s *Store) ListEntries(ctx context.Context, accountID id.AccountID, opts entry.ListOpts) ([]*entry.Entry, error) {
	var models []sqlmodel.Entry
	q := s.q.NewSelect(&models).Where("account_id = ?", accountID.String())
	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	q = paginate(q, opts.Limit, opts.Offset).OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
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
	err := s.q.NewRaw(
		`SELECT COALESCE(SUM(amount), 0) FROM reward_entries WHERE account_id = ?`,
		accountID.String(),
	).Scan(ctx, &sum)
	return sum, err
}

func (s *Store) CountEntries(ctx context.Context, accountID id.AccountID) (int64, error) {
	return s.q.NewSelect((*sqlmodel.Entry)(nil)).
		Where("account_id = ?", accountID.String()).
		Count(ctx)
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.q.NewInsert(sqlmodel.FromInvoice(inv)).Exec(ctx)
	if isDuplicate(err) {
		return rewards.ErrDuplicateInvoice
	}
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(sqlmodel.Invoice)
	err := s.q.NewSelect(m).
		Where("id = ?", invID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrInvoiceNotFound)
	}
	return m.Domain()
}

func (s *Store) GetInvoiceByAccessKey(ctx context.Context, accessKey string) (*invoice.Invoice, error) {
	m := new(sqlmodel.Invoice)
	err := s.q.NewSelect(m).
		Where("access_key = ?", accessKey).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrInvoiceNotFound)
	}
	return m.Domain()
}

func (s *Store) ListInvoices(ctx context.Context, ownerID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []sqlmodel.Invoice
	q := s.q.NewSelect(&models).Where("owner_id = ?", ownerID.String())
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	order := "created_at DESC, id DESC"
	if opts.Ascending {
		order = "created_at ASC, id ASC"
	}
	q = paginate(q, opts.Limit, opts.Offset).OrderExpr(order)

	if err := q.Scan(ctx); err != nil {
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

	args := make([]any, len(ownerIDs))
	for i, ownerID := range ownerIDs {
		args[i] = ownerID.String()
	}
	q := s.q.NewSelect((*sqlmodel.Invoice)(nil)).Where("owner_id IN ("+placeholders(len(args))+")", args...)
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	return q.Count(ctx)
}

func (s *Store) MarkInvoiceApproved(ctx context.Context, invID id.InvoiceID, processedAt time.Time) error {
	at := processedAt.UTC()
	res, err := s.q.NewUpdate((*sqlmodel.Invoice)(nil)).
		Set("status = ?", string(invoice.StatusApproved)).
		Set("processed_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ? AND status = ?", invID.String(), string(invoice.StatusStandby)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return err
	}
	return rewards.ErrInvoiceNotStandby
}

// ==================== Link Store ====================

// CreateLink tells the pair index apart from the one-approved index by
// looking the pair up after a unique violation.
func (s *Store) CreateLink(ctx context.Context, l *link.Link) error {
	_, err := s.q.NewInsert(sqlmodel.FromLink(l)).Exec(ctx)
	if !isDuplicate(err) {
		return err
	}
	if l.Status == link.StatusApproved {
		n, cerr := s.CountLinks(ctx, link.ListOpts{SellerID: l.SellerID, StoreID: l.StoreID})
		if cerr == nil && n == 0 {
			return rewards.ErrSellerAlreadyLinked
		}
	}
	return rewards.ErrDuplicateLink
}

func (s *Store) GetLink(ctx context.Context, linkID id.LinkID) (*link.Link, error) {
	m := new(sqlmodel.Link)
	err := s.q.NewSelect(m).
		Where("id = ?", linkID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrLinkNotFound)
	}
	return m.Domain()
}

func (s *Store) FindSellerLink(ctx context.Context, sellerID id.AccountID, status link.Status) (*link.Link, error) {
	m := new(sqlmodel.Link)
	err := s.q.NewSelect(m).
		Where("seller_id = ?", sellerID.String()).
		Where("status = ?", string(status)).
		OrderExpr("created_at ASC, id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrLinkNotFound)
	}
	return m.Domain()
}

func (s *Store) linkQuery(model any, opts link.ListOpts) *sqlitedriver.SelectQuery {
	q := s.q.NewSelect(model)
	if !opts.SellerID.IsNil() {
		q = q.Where("seller_id = ?", opts.SellerID.String())
	}
	if !opts.StoreID.IsNil() {
		q = q.Where("store_id = ?", opts.StoreID.String())
	}
	if len(opts.Statuses) > 0 {
		args := make([]any, len(opts.Statuses))
		for i, st := range opts.Statuses {
			args[i] = string(st)
		}
		q = q.Where("status IN ("+placeholders(len(args))+")", args...)
	}
	return q
}

func (s *Store) ListLinks(ctx context.Context, opts link.ListOpts) ([]*link.Link, error) {
	var models []sqlmodel.Link
	q := paginate(s.linkQuery(&models, opts), opts.Limit, opts.Offset).
		OrderExpr("created_at DESC, id DESC")
	if err := q.Scan(ctx); err != nil {
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
	return s.linkQuery((*sqlmodel.Link)(nil), opts).Count(ctx)
}

func (s *Store) TransitionLink(ctx context.Context, linkID id.LinkID, from, to link.Status) error {
	res, err := s.q.NewUpdate((*sqlmodel.Link)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", now()).
		Where("id = ? AND status = ?", linkID.String(), string(from)).
		Exec(ctx)
	if isDuplicate(err) {
		return rewards.ErrSellerAlreadyLinked
	}
	return s.swapped(ctx, res, err, linkID)
}

func (s *Store) SetLinkPercentage(ctx context.Context, linkID id.LinkID, prior, next int) error {
	res, err := s.q.NewUpdate((*sqlmodel.Link)(nil)).
		Set("percentage = ?", next).
		Set("updated_at = ?", now()).
		Where("id = ? AND status = ? AND percentage = ?", linkID.String(), string(link.StatusApproved), prior).
		Exec(ctx)
	return s.swapped(ctx, res, err, linkID)
}

func (s *Store) swapped(ctx context.Context, res driver.Result, err error, linkID id.LinkID) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.GetLink(ctx, linkID); err != nil {
		return err
	}
	return rewards.ErrLinkModified
}

// ==================== Issuer Store ====================

func (s *Store) CreateIssuer(ctx context.Context, iss *issuer.Issuer) error {
	_, err := s.q.NewInsert(sqlmodel.FromIssuer(iss)).Exec(ctx)
	if isDuplicate(err) {
		return rewards.ErrDuplicateIssuer
	}
	return err
}

func (s *Store) GetIssuer(ctx context.Context, issuerID id.IssuerID) (*issuer.Issuer, error) {
	m := new(sqlmodel.Issuer)
	err := s.q.NewSelect(m).
		Where("id = ?", issuerID.String()).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrIssuerNotFound)
	}
	return m.Domain()
}

func (s *Store) GetIssuerByCode(ctx context.Context, code string) (*issuer.Issuer, error) {
	m := new(sqlmodel.Issuer)
	err := s.q.NewSelect(m).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, rewards.ErrIssuerNotFound)
	}
	return m.Domain()
}

func (s *Store) ListIssuers(ctx context.Context, opts issuer.ListOpts) ([]*issuer.Issuer, error) {
	var models []sqlmodel.Issuer
	q := s.q.NewSelect(&models)
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	q = paginate(q, opts.Limit, opts.Offset).OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
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
	res, err := s.q.NewUpdate((*sqlmodel.Issuer)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", now()).
		Where("id = ?", issuerID.String()).
		Exec(ctx)
	return affected(res, err, rewards.ErrIssuerNotFound)
}

func (s *Store) DeleteIssuer(ctx context.Context, issuerID id.IssuerID) error {
	res, err := s.q.NewDelete((*sqlmodel.Issuer)(nil)).
		Where("id = ?", issuerID.String()).
		Exec(ctx)
	return affected(res, err, rewards.ErrIssuerNotFound)
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// paginate applies limit and offset. SQLite rejects OFFSET without LIMIT.
func paginate(q *sqlitedriver.SelectQuery, limit, offset int) *sqlitedriver.SelectQuery {
	if limit <= 0 && offset > 0 {
		limit = math.MaxInt32
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func notFound(err, sentinel error) error {
	if isNoRows(err) {
		return sentinel
	}
	return err
}

func affected(res driver.Result, err, sentinel error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sentinel
	}
	return nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *modsqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
