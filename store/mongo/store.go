// Package mongo implements store.Store on MongoDB. Atomic requires a
// replica set or sharded cluster because it runs multi-document
// transactions.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
)

// Collection name constants.
const (
	colAccounts = "reward_accounts"
	colEntries  = "reward_entries"
	colInvoices = "reward_invoices"
	colLinks    = "reward_links"
	colIssuers  = "reward_issuers"
)

// Index names whose violation maps to a specific error.
const idxOneApproved = "one_approved_link_per_seller"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using the official MongoDB driver.
type Store struct {
	db   *mongo.Database
	inTx bool
}

// New creates a store on db.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// Migrate creates indexes for all rewards collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.col(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("rewards/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.db.Client().Disconnect(ctx)
}

// Atomic runs fn in a multi-document transaction. The driver may retry fn
// on transient transaction errors.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("rewards/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sctx context.Context) (any, error) {
		return nil, fn(sctx, &Store{db: s.db, inTx: true})
	})
	return err
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.col(colAccounts).InsertOne(ctx, toAccountModel(a))
	if mongo.IsDuplicateKeyError(err) {
		return rewards.ErrDuplicateDocument
	}
	if err != nil {
		return fmt.Errorf("rewards/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": accountID.String()})
}

func (s *Store) GetAccountByDocument(ctx context.Context, document string) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{"document": document})
}

func (s *Store) findAccount(ctx context.Context, filter bson.M) (*account.Account, error) {
	var m accountModel
	if err := s.col(colAccounts).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, rewards.ErrAccountNotFound
		}
		return nil, fmt.Errorf("rewards/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) SetAccountStore(ctx context.Context, sellerID, storeID id.AccountID) error {
	update := bson.M{"$set": bson.M{"store_id": storeID.String(), "updated_at": now()}}
	if storeID.IsNil() {
		update = bson.M{"$set": bson.M{"updated_at": now()}, "$unset": bson.M{"store_id": ""}}
	}
	res, err := s.col(colAccounts).UpdateOne(ctx, bson.M{"_id": sellerID.String()}, update)
	return matched(res, err, rewards.ErrAccountNotFound)
}

// IncrementBalance uses $inc so concurrent postings never lose an update.
func (s *Store) IncrementBalance(ctx context.Context, accountID id.AccountID, delta int64) error {
	res, err := s.col(colAccounts).UpdateOne(ctx,
		bson.M{"_id": accountID.String()},
		bson.M{"$inc": bson.M{"balance": delta}, "$set": bson.M{"updated_at": now()}},
	)
	return matched(res, err, rewards.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.AccountID) error {
	res, err := s.col(colAccounts).DeleteOne(ctx, bson.M{"_id": accountID.String()})
	if err != nil {
		return fmt.Errorf("rewards/mongo: delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return rewards.ErrAccountNotFound
	}
	return nil
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(ctx context.Context, e *entry.Entry) error {
	n, err := s.col(colAccounts).CountDocuments(ctx, bson.M{"_id": e.AccountID.String()})
	if err != nil {
		return fmt.Errorf("rewards/mongo: create entry: %w", err)
	}
	if n == 0 {
		return rewards.ErrAccountNotFound
	}
	if _, err := s.col(colEntries).InsertOne(ctx, toEntryModel(e)); err != nil {
		return fmt.Errorf("rewards/mongo: create entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, accountID id.AccountID, opts entry.ListOpts) ([]*entry.Entry, error) {
	filter := bson.M{"account_id": accountID.String()}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}

	var models []entryModel
	if err := s.find(ctx, colEntries, filter, newestFirst, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("rewards/mongo: list entries: %w", err)
	}

	result := make([]*entry.Entry, 0, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) SumEntries(ctx context.Context, accountID id.AccountID) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"account_id": accountID.String()}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}
	cursor, err := s.col(colEntries).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("rewards/mongo: sum entries: %w", err)
	}

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("rewards/mongo: sum entries: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (s *Store) CountEntries(ctx context.Context, accountID id.AccountID) (int64, error) {
	n, err := s.col(colEntries).CountDocuments(ctx, bson.M{"account_id": accountID.String()})
	if err != nil {
		return 0, fmt.Errorf("rewards/mongo: count entries: %w", err)
	}
	return n, nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.col(colInvoices).InsertOne(ctx, toInvoiceModel(inv))
	if mongo.IsDuplicateKeyError(err) {
		return rewards.ErrDuplicateInvoice
	}
	if err != nil {
		return fmt.Errorf("rewards/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return s.findInvoice(ctx, bson.M{"_id": invID.String()})
}

func (s *Store) GetInvoiceByAccessKey(ctx context.Context, accessKey string) (*invoice.Invoice, error) {
	return s.findInvoice(ctx, bson.M{"access_key": accessKey})
}

func (s *Store) findInvoice(ctx context.Context, filter bson.M) (*invoice.Invoice, error) {
	var m invoiceModel
	if err := s.col(colInvoices).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, rewards.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("rewards/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, ownerID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	filter := bson.M{"owner_id": ownerID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	sort := newestFirst
	if opts.Ascending {
		sort = oldestFirst
	}

	var models []invoiceModel
	if err := s.find(ctx, colInvoices, filter, sort, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("rewards/mongo: list invoices: %w", err)
	}

	result := make([]*invoice.Invoice, 0, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
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

	filter := bson.M{"owner_id": bson.M{"$in": owners}}
	if status != "" {
		filter["status"] = string(status)
	}
	n, err := s.col(colInvoices).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("rewards/mongo: count invoices: %w", err)
	}
	return n, nil
}

func (s *Store) MarkInvoiceApproved(ctx context.Context, invID id.InvoiceID, processedAt time.Time) error {
	at := processedAt.UTC()
	res, err := s.col(colInvoices).UpdateOne(ctx,
		bson.M{"_id": invID.String(), "status": string(invoice.StatusStandby)},
		bson.M{"$set": bson.M{
			"status":       string(invoice.StatusApproved),
			"processed_at": at,
			"updated_at":   at,
		}},
	)
	if err != nil {
		return fmt.Errorf("rewards/mongo: approve invoice: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return err
	}
	return rewards.ErrInvoiceNotStandby
}

// ==================== Link Store ====================

func (s *Store) CreateLink(ctx context.Context, l *link.Link) error {
	_, err := s.col(colLinks).InsertOne(ctx, toLinkModel(l))
	switch {
	case isIndexViolation(err, idxOneApproved):
		return rewards.ErrSellerAlreadyLinked
	case mongo.IsDuplicateKeyError(err):
		return rewards.ErrDuplicateLink
	case err != nil:
		return fmt.Errorf("rewards/mongo: create link: %w", err)
	}
	return nil
}

func (s *Store) GetLink(ctx context.Context, linkID id.LinkID) (*link.Link, error) {
	var m linkModel
	if err := s.col(colLinks).FindOne(ctx, bson.M{"_id": linkID.String()}).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, rewards.ErrLinkNotFound
		}
		return nil, fmt.Errorf("rewards/mongo: get link: %w", err)
	}
	return fromLinkModel(&m)
}

func (s *Store) FindSellerLink(ctx context.Context, sellerID id.AccountID, status link.Status) (*link.Link, error) {
	var m linkModel
	err := s.col(colLinks).FindOne(ctx,
		bson.M{"seller_id": sellerID.String(), "status": string(status)},
		options.FindOne().SetSort(oldestFirst),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rewards.ErrLinkNotFound
		}
		return nil, fmt.Errorf("rewards/mongo: find seller link: %w", err)
	}
	return fromLinkModel(&m)
}

func linkFilter(opts link.ListOpts) bson.M {
	filter := bson.M{}
	if !opts.SellerID.IsNil() {
		filter["seller_id"] = opts.SellerID.String()
	}
	if !opts.StoreID.IsNil() {
		filter["store_id"] = opts.StoreID.String()
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	return filter
}

func (s *Store) ListLinks(ctx context.Context, opts link.ListOpts) ([]*link.Link, error) {
	var models []linkModel
	if err := s.find(ctx, colLinks, linkFilter(opts), newestFirst, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("rewards/mongo: list links: %w", err)
	}

	result := make([]*link.Link, 0, len(models))
	for i := range models {
		l, err := fromLinkModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Store) CountLinks(ctx context.Context, opts link.ListOpts) (int64, error) {
	n, err := s.col(colLinks).CountDocuments(ctx, linkFilter(opts))
	if err != nil {
		return 0, fmt.Errorf("rewards/mongo: count links: %w", err)
	}
	return n, nil
}

func (s *Store) TransitionLink(ctx context.Context, linkID id.LinkID, from, to link.Status) error {
	res, err := s.col(colLinks).UpdateOne(ctx,
		bson.M{"_id": linkID.String(), "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": now()}},
	)
	if mongo.IsDuplicateKeyError(err) {
		return rewards.ErrSellerAlreadyLinked
	}
	return s.swapped(ctx, res, err, linkID)
}

func (s *Store) SetLinkPercentage(ctx context.Context, linkID id.LinkID, prior, next int) error {
	res, err := s.col(colLinks).UpdateOne(ctx,
		bson.M{"_id": linkID.String(), "status": string(link.StatusApproved), "percentage": prior},
		bson.M{"$set": bson.M{"percentage": next, "updated_at": now()}},
	)
	return s.swapped(ctx, res, err, linkID)
}

func (s *Store) swapped(ctx context.Context, res *mongo.UpdateResult, err error, linkID id.LinkID) error {
	if err != nil {
		return fmt.Errorf("rewards/mongo: update link: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := s.GetLink(ctx, linkID); err != nil {
		return err
	}
	return rewards.ErrLinkModified
}

// ==================== Issuer Store ====================

func (s *Store) CreateIssuer(ctx context.Context, iss *issuer.Issuer) error {
	_, err := s.col(colIssuers).InsertOne(ctx, toIssuerModel(iss))
	if mongo.IsDuplicateKeyError(err) {
		return rewards.ErrDuplicateIssuer
	}
	if err != nil {
		return fmt.Errorf("rewards/mongo: create issuer: %w", err)
	}
	return nil
}

func (s *Store) GetIssuer(ctx context.Context, issuerID id.IssuerID) (*issuer.Issuer, error) {
	return s.findIssuer(ctx, bson.M{"_id": issuerID.String()})
}

func (s *Store) GetIssuerByCode(ctx context.Context, code string) (*issuer.Issuer, error) {
	return s.findIssuer(ctx, bson.M{"code": code})
}

func (s *Store) findIssuer(ctx context.Context, filter bson.M) (*issuer.Issuer, error) {
	var m issuerModel
	if err := s.col(colIssuers).FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, rewards.ErrIssuerNotFound
		}
		return nil, fmt.Errorf("rewards/mongo: get issuer: %w", err)
	}
	return fromIssuerModel(&m)
}

func (s *Store) ListIssuers(ctx context.Context, opts issuer.ListOpts) ([]*issuer.Issuer, error) {
	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	var models []issuerModel
	if err := s.find(ctx, colIssuers, filter, newestFirst, opts.Limit, opts.Offset, &models); err != nil {
		return nil, fmt.Errorf("rewards/mongo: list issuers: %w", err)
	}

	result := make([]*issuer.Issuer, 0, len(models))
	for i := range models {
		iss, err := fromIssuerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, iss)
	}
	return result, nil
}

func (s *Store) SetIssuerActive(ctx context.Context, issuerID id.IssuerID, active bool) error {
	res, err := s.col(colIssuers).UpdateOne(ctx,
		bson.M{"_id": issuerID.String()},
		bson.M{"$set": bson.M{"active": active, "updated_at": now()}},
	)
	return matched(res, err, rewards.ErrIssuerNotFound)
}

func (s *Store) DeleteIssuer(ctx context.Context, issuerID id.IssuerID) error {
	res, err := s.col(colIssuers).DeleteOne(ctx, bson.M{"_id": issuerID.String()})
	if err != nil {
		return fmt.Errorf("rewards/mongo: delete issuer: %w", err)
	}
	if res.DeletedCount == 0 {
		return rewards.ErrIssuerNotFound
	}
	return nil
}

// ==================== Helpers ====================

var (
	newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	oldestFirst = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
)

func (s *Store) find(ctx context.Context, col string, filter any, sort bson.D, limit, offset int, out any) error {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}

	cursor, err := s.col(col).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func now() time.Time {
	return time.Now().UTC()
}

func matched(res *mongo.UpdateResult, err, sentinel error) error {
	if err != nil {
		return fmt.Errorf("rewards/mongo: update: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel
	}
	return nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// isIndexViolation reports a duplicate key error raised by the named index.
func isIndexViolation(err error, index string) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code == 11000 && strings.Contains(e.Message, "index: "+index) {
			return true
		}
	}
	return false
}

// migrationIndexes returns the index definitions for all rewards collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "document", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "store_id", Value: 1}}},
		},
		colEntries: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "related_id", Value: 1}}},
		},
		colInvoices: {
			{
				Keys:    bson.D{{Key: "access_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colLinks: {
			{
				Keys:    bson.D{{Key: "seller_id", Value: 1}, {Key: "store_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "seller_id", Value: 1}},
				Options: options.Index().
					SetName(idxOneApproved).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": string(link.StatusApproved)}),
			},
			{Keys: bson.D{{Key: "store_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colIssuers: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
