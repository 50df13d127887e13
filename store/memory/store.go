// Package memory implements store.Store in process memory. Transactions
// run against a copy of the state that replaces the committed state only
// when the transaction function succeeds.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/rewards"
	"github.com/xraph/rewards/account"
	"github.com/xraph/rewards/entry"
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/invoice"
	"github.com/xraph/rewards/issuer"
	"github.com/xraph/rewards/link"
	"github.com/xraph/rewards/store"
)

var _ store.Store = (*Store)(nil)

// data is one version of the store contents. Stored pointers are never
// mutated in place; updates replace them, so a shallow map copy is a
// consistent snapshot.
type data struct {
	accounts  map[string]*account.Account
	documents map[string]string

	entries map[string][]*entry.Entry

	invoices      map[string]*invoice.Invoice
	accessKeys    map[string]string
	ownerInvoices map[string][]string

	links     map[string]*link.Link
	linkPairs map[string]string
	linkOrder []string

	issuers     map[string]*issuer.Issuer
	issuerCodes map[string]string
	issuerOrder []string
}

func newData() *data {
	return &data{
		accounts:      make(map[string]*account.Account),
		documents:     make(map[string]string),
		entries:       make(map[string][]*entry.Entry),
		invoices:      make(map[string]*invoice.Invoice),
		accessKeys:    make(map[string]string),
		ownerInvoices: make(map[string][]string),
		links:         make(map[string]*link.Link),
		linkPairs:     make(map[string]string),
		issuers:       make(map[string]*issuer.Issuer),
		issuerCodes:   make(map[string]string),
	}
}

func (d *data) clone() *data {
	c := &data{
		accounts:      cloneMap(d.accounts),
		documents:     cloneMap(d.documents),
		entries:       make(map[string][]*entry.Entry, len(d.entries)),
		invoices:      cloneMap(d.invoices),
		accessKeys:    cloneMap(d.accessKeys),
		ownerInvoices: make(map[string][]string, len(d.ownerInvoices)),
		links:         cloneMap(d.links),
		linkPairs:     cloneMap(d.linkPairs),
		linkOrder:     slices.Clone(d.linkOrder),
		issuers:       cloneMap(d.issuers),
		issuerCodes:   cloneMap(d.issuerCodes),
		issuerOrder:   slices.Clone(d.issuerOrder),
	}
	for k, v := range d.entries {
		c.entries[k] = slices.Clone(v)
	}
	for k, v := range d.ownerInvoices {
		c.ownerInvoices[k] = slices.Clone(v)
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

type shared struct {
	mu   sync.RWMutex
	data *data
}

// Store is the in-memory backend. The zero value is not usable; call New.
type Store struct {
	shared *shared
	tx     *data // non-nil when bound to a transaction
}

// New returns an empty store.
func New() *Store {
	return &Store{shared: &shared{data: newData()}}
}

func (s *Store) read(fn func(d *data) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return fn(s.shared.data)
}

func (s *Store) write(fn func(d *data) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()
	return fn(s.shared.data)
}

// Atomic implements store.Store. Transactions are serialized.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	snapshot := s.shared.data.clone()
	if err := fn(ctx, &Store{shared: s.shared, tx: snapshot}); err != nil {
		return err
	}
	s.shared.data = snapshot
	return nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ==================== Account Store ====================

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	return s.write(func(d *data) error {
		if _, exists := d.accounts[a.ID.String()]; exists {
			return rewards.ErrAlreadyExists
		}
		if _, exists := d.documents[a.Document]; exists {
			return rewards.ErrDuplicateDocument
		}
		cp := *a
		d.accounts[a.ID.String()] = &cp
		d.documents[a.Document] = a.ID.String()
		return nil
	})
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	var out *account.Account
	err := s.read(func(d *data) error {
		a, ok := d.accounts[accountID.String()]
		if !ok {
			return rewards.ErrAccountNotFound
		}
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) GetAccountByDocument(ctx context.Context, document string) (*account.Account, error) {
	var accountID string
	err := s.read(func(d *data) error {
		v, ok := d.documents[document]
		if !ok {
			return rewards.ErrAccountNotFound
		}
		accountID = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseAccountID(accountID)
	if err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, parsed)
}

func (s *Store) SetAccountStore(_ context.Context, sellerID, storeID id.AccountID) error {
	return s.write(func(d *data) error {
		a, ok := d.accounts[sellerID.String()]
		if !ok {
			return rewards.ErrAccountNotFound
		}
		cp := *a
		cp.StoreID = storeID
		cp.Touch()
		d.accounts[sellerID.String()] = &cp
		return nil
	})
}

func (s *Store) IncrementBalance(_ context.Context, accountID id.AccountID, delta int64) error {
	return s.write(func(d *data) error {
		a, ok := d.accounts[accountID.String()]
		if !ok {
			return rewards.ErrAccountNotFound
		}
		cp := *a
		cp.Balance += delta
		cp.Touch()
		d.accounts[accountID.String()] = &cp
		return nil
	})
}

func (s *Store) DeleteAccount(_ context.Context, accountID id.AccountID) error {
	return s.write(func(d *data) error {
		a, ok := d.accounts[accountID.String()]
		if !ok {
			return rewards.ErrAccountNotFound
		}
		delete(d.documents, a.Document)
		delete(d.accounts, accountID.String())
		return nil
	})
}

// ==================== Entry Store ====================

func (s *Store) CreateEntry(_ context.Context, e *entry.Entry) error {
	return s.write(func(d *data) error {
		key := e.AccountID.String()
		if _, ok := d.accounts[key]; !ok {
			return rewards.ErrAccountNotFound
		}
		cp := *e
		d.entries[key] = append(d.entries[key], &cp)
		return nil
	})
}

func (s *Store) ListEntries(_ context.Context, accountID id.AccountID, opts entry.ListOpts) ([]*entry.Entry, error) {
	var out []*entry.Entry
	err := s.read(func(d *data) error {
		all := d.entries[accountID.String()]
		result := make([]*entry.Entry, 0, len(all))
		for i := len(all) - 1; i >= 0; i-- {
			if opts.Type != "" && all[i].Type != opts.Type {
				continue
			}
			cp := *all[i]
			result = append(result, &cp)
		}
		out = page(result, opts.Limit, opts.Offset)
		return nil
	})
	return out, err
}

func (s *Store) SumEntries(_ context.Context, accountID id.AccountID) (int64, error) {
	var sum int64
	err := s.read(func(d *data) error {
		for _, e := range d.entries[accountID.String()] {
			sum += e.Amount
		}
		return nil
	})
	return sum, err
}

func (s *Store) CountEntries(_ context.Context, accountID id.AccountID) (int64, error) {
	var n int64
	err := s.read(func(d *data) error {
		n = int64(len(d.entries[accountID.String()]))
		return nil
	})
	return n, err
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	return s.write(func(d *data) error {
		if _, exists := d.accessKeys[inv.AccessKey]; exists {
			return rewards.ErrDuplicateInvoice
		}
		if _, exists := d.invoices[inv.ID.String()]; exists {
			return rewards.ErrAlreadyExists
		}
		cp := *inv
		owner := inv.OwnerID.String()
		d.invoices[inv.ID.String()] = &cp
		d.accessKeys[inv.AccessKey] = inv.ID.String()
		d.ownerInvoices[owner] = append(d.ownerInvoices[owner], inv.ID.String())
		return nil
	})
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := s.read(func(d *data) error {
		inv, ok := d.invoices[invID.String()]
		if !ok {
			return rewards.ErrInvoiceNotFound
		}
		cp := *inv
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) GetInvoiceByAccessKey(_ context.Context, accessKey string) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := s.read(func(d *data) error {
		invID, ok := d.accessKeys[accessKey]
		if !ok {
			return rewards.ErrInvoiceNotFound
		}
		cp := *d.invoices[invID]
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) ListInvoices(_ context.Context, ownerID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var out []*invoice.Invoice
	err := s.read(func(d *data) error {
		ids := d.ownerInvoices[ownerID.String()]
		result := make([]*invoice.Invoice, 0, len(ids))
		for i := range ids {
			idx := len(ids) - 1 - i
			if opts.Ascending {
				idx = i
			}
			inv := d.invoices[ids[idx]]
			if opts.Status != "" && inv.Status != opts.Status {
				continue
			}
			cp := *inv
			result = append(result, &cp)
		}
		out = page(result, opts.Limit, opts.Offset)
		return nil
	})
	return out, err
}

func (s *Store) CountInvoices(_ context.Context, ownerIDs []id.AccountID, status invoice.Status) (int64, error) {
	var n int64
	err := s.read(func(d *data) error {
		for _, owner := range ownerIDs {
			for _, invID := range d.ownerInvoices[owner.String()] {
				if status == "" || d.invoices[invID].Status == status {
					n++
				}
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) MarkInvoiceApproved(_ context.Context, invID id.InvoiceID, processedAt time.Time) error {
	return s.write(func(d *data) error {
		inv, ok := d.invoices[invID.String()]
		if !ok {
			return rewards.ErrInvoiceNotFound
		}
		if inv.Status != invoice.StatusStandby {
			return rewards.ErrInvoiceNotStandby
		}
		cp := *inv
		at := processedAt.UTC()
		cp.Status = invoice.StatusApproved
		cp.ProcessedAt = &at
		cp.TouchAt(at)
		d.invoices[invID.String()] = &cp
		return nil
	})
}

// ==================== Link Store ====================

func pairKey(sellerID, storeID id.AccountID) string {
	return sellerID.String() + "|" + storeID.String()
}

func (s *Store) CreateLink(_ context.Context, l *link.Link) error {
	return s.write(func(d *data) error {
		key := pairKey(l.SellerID, l.StoreID)
		if _, exists := d.linkPairs[key]; exists {
			return rewards.ErrDuplicateLink
		}
		if l.Status == link.StatusApproved {
			if err := ensureNoApproved(d, l.SellerID, l.ID); err != nil {
				return err
			}
		}
		cp := *l
		d.links[l.ID.String()] = &cp
		d.linkPairs[key] = l.ID.String()
		d.linkOrder = append(d.linkOrder, l.ID.String())
		return nil
	})
}

func (s *Store) GetLink(_ context.Context, linkID id.LinkID) (*link.Link, error) {
	var out *link.Link
	err := s.read(func(d *data) error {
		l, ok := d.links[linkID.String()]
		if !ok {
			return rewards.ErrLinkNotFound
		}
		cp := *l
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) FindSellerLink(_ context.Context, sellerID id.AccountID, status link.Status) (*link.Link, error) {
	var out *link.Link
	err := s.read(func(d *data) error {
		for _, linkID := range d.linkOrder {
			l := d.links[linkID]
			if l.SellerID.String() == sellerID.String() && l.Status == status {
				cp := *l
				out = &cp
				return nil
			}
		}
		return rewards.ErrLinkNotFound
	})
	return out, err
}

func (s *Store) ListLinks(_ context.Context, opts link.ListOpts) ([]*link.Link, error) {
	var out []*link.Link
	err := s.read(func(d *data) error {
		result := make([]*link.Link, 0)
		for i := len(d.linkOrder) - 1; i >= 0; i-- {
			l := d.links[d.linkOrder[i]]
			if !opts.Matches(l) {
				continue
			}
			cp := *l
			result = append(result, &cp)
		}
		out = page(result, opts.Limit, opts.Offset)
		return nil
	})
	return out, err
}

func (s *Store) CountLinks(_ context.Context, opts link.ListOpts) (int64, error) {
	var n int64
	err := s.read(func(d *data) error {
		for _, l := range d.links {
			if opts.Matches(l) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) TransitionLink(_ context.Context, linkID id.LinkID, from, to link.Status) error {
	return s.write(func(d *data) error {
		l, ok := d.links[linkID.String()]
		if !ok {
			return rewards.ErrLinkNotFound
		}
		if l.Status != from {
			return rewards.ErrLinkModified
		}
		if to == link.StatusApproved {
			if err := ensureNoApproved(d, l.SellerID, l.ID); err != nil {
				return err
			}
		}
		cp := *l
		cp.Status = to
		cp.Touch()
		d.links[linkID.String()] = &cp
		return nil
	})
}

func (s *Store) SetLinkPercentage(_ context.Context, linkID id.LinkID, prior, next int) error {
	return s.write(func(d *data) error {
		l, ok := d.links[linkID.String()]
		if !ok {
			return rewards.ErrLinkNotFound
		}
		if l.Status != link.StatusApproved || l.Percentage != prior {
			return rewards.ErrLinkModified
		}
		cp := *l
		cp.Percentage = next
		cp.Touch()
		d.links[linkID.String()] = &cp
		return nil
	})
}

// ensureNoApproved enforces at most one approved link per seller.
func ensureNoApproved(d *data, sellerID id.AccountID, self id.LinkID) error {
	for _, other := range d.links {
		if other.SellerID.String() == sellerID.String() && other.Status == link.StatusApproved && other.ID.String() != self.String() {
			return rewards.ErrSellerAlreadyLinked
		}
	}
	return nil
}

// ==================== Issuer Store ====================

func (s *Store) CreateIssuer(_ context.Context, iss *issuer.Issuer) error {
	return s.write(func(d *data) error {
		if _, exists := d.issuerCodes[iss.Code]; exists {
			return rewards.ErrDuplicateIssuer
		}
		cp := *iss
		d.issuers[iss.ID.String()] = &cp
		d.issuerCodes[iss.Code] = iss.ID.String()
		d.issuerOrder = append(d.issuerOrder, iss.ID.String())
		return nil
	})
}

func (s *Store) GetIssuer(_ context.Context, issuerID id.IssuerID) (*issuer.Issuer, error) {
	var out *issuer.Issuer
	err := s.read(func(d *data) error {
		iss, ok := d.issuers[issuerID.String()]
		if !ok {
			return rewards.ErrIssuerNotFound
		}
		cp := *iss
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) GetIssuerByCode(_ context.Context, code string) (*issuer.Issuer, error) {
	var out *issuer.Issuer
	err := s.read(func(d *data) error {
		issuerID, ok := d.issuerCodes[code]
		if !ok {
			return rewards.ErrIssuerNotFound
		}
		cp := *d.issuers[issuerID]
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) ListIssuers(_ context.Context, opts issuer.ListOpts) ([]*issuer.Issuer, error) {
	var out []*issuer.Issuer
	err := s.read(func(d *data) error {
		result := make([]*issuer.Issuer, 0, len(d.issuerOrder))
		for i := len(d.issuerOrder) - 1; i >= 0; i-- {
			iss := d.issuers[d.issuerOrder[i]]
			if opts.ActiveOnly && !iss.Active {
				continue
			}
			cp := *iss
			result = append(result, &cp)
		}
		out = page(result, opts.Limit, opts.Offset)
		return nil
	})
	return out, err
}

func (s *Store) SetIssuerActive(_ context.Context, issuerID id.IssuerID, active bool) error {
	return s.write(func(d *data) error {
		iss, ok := d.issuers[issuerID.String()]
		if !ok {
			return rewards.ErrIssuerNotFound
		}
		cp := *iss
		cp.Active = active
		cp.Touch()
		d.issuers[issuerID.String()] = &cp
		return nil
	})
}

func (s *Store) DeleteIssuer(_ context.Context, issuerID id.IssuerID) error {
	return s.write(func(d *data) error {
		iss, ok := d.issuers[issuerID.String()]
		if !ok {
			return rewards.ErrIssuerNotFound
		}
		delete(d.issuers, issuerID.String())
		delete(d.issuerCodes, iss.Code)
		d.issuerOrder = slices.DeleteFunc(d.issuerOrder, func(v string) bool { return v == issuerID.String() })
		return nil
	})
}

// page applies limit/offset to an already filtered and ordered slice.
func page[T any](items []T, limit, offset int) []T {
	start := min(max(offset, 0), len(items))
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
