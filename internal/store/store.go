// Package store owns the partner list. It is an explicit object over an
// injected key-value adapter: every successful mutation is written through
// before it becomes visible to readers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"parceiros/internal/core"
	"parceiros/internal/storage"
)

// Persisted keys.
const (
	KeyPartners      = "partners"
	KeyLastSync      = "lastSyncTime"
	KeySheetsConfig  = "googleSheetsConfig"
	KeyAuthenticated = "isAuthenticated"
	KeyLastLogin     = "lastLogin"
)

var (
	ErrPartnerNotFound      = errors.New("partner not found")
	ErrDuplicateUsername    = errors.New("a partner with this username already exists")
	ErrDuplicateClientLogin = errors.New("a client with this login already exists")
)

// ChangeNotifier is told after each committed change of the partner list.
type ChangeNotifier interface {
	PartnersChanged(ctx context.Context, reason string, partnerIDs ...string)
}

type Store struct {
	mu       sync.RWMutex
	kv       storage.KV
	partners []core.Partner

	policy   core.WindowPolicy
	notifier ChangeNotifier
	logger   *slog.Logger
}

type Option func(*Store)

func WithWindowPolicy(p core.WindowPolicy) Option {
	return func(s *Store) { s.policy = p }
}

func WithNotifier(n ChangeNotifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New builds a store over kv and loads the persisted partner list.
func New(ctx context.Context, kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{
		kv:     kv,
		policy: core.DefaultWindowPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the in-memory list with the persisted one. A missing key is
// an empty list.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, KeyPartners)
	if errors.Is(err, storage.ErrNotFound) {
		s.mu.Lock()
		s.partners = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load partners: %w", err)
	}
	var partners []core.Partner
	if err := json.Unmarshal(raw, &partners); err != nil {
		return fmt.Errorf("decode partners: %w", err)
	}
	s.mu.Lock()
	s.partners = partners
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Loaded partners", "count", len(partners))
	return nil
}

// SetNotifier replaces the change notifier. Services built on top of the
// store can only subscribe once it exists.
func (s *Store) SetNotifier(n ChangeNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Store) WindowPolicy() core.WindowPolicy {
	return s.policy
}

// Partners returns a copy of every partner in insertion order.
func (s *Store) Partners() []core.Partner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePartners(s.partners)
}

// Partner returns a copy of the partner with id.
func (s *Store) Partner(id string) (core.Partner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.partners, id)
	if i < 0 {
		return core.Partner{}, false
	}
	return clonePartner(s.partners[i]), true
}

// AddPartner rejects a username already in use, leaving the list unchanged.
func (s *Store) AddPartner(ctx context.Context, p core.Partner) (core.Partner, error) {
	if err := p.Validate(); err != nil {
		return core.Partner{}, err
	}
	p.ID = uuid.NewString()
	p.Username = strings.TrimSpace(p.Username)
	var txs []core.Transaction
	var clients []core.Client
	for _, c := range p.Clients {
		c.PartnerID = p.ID
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		clients = append(clients, c)
	}
	p.Clients = clients
	for _, t := range p.Transactions {
		txs = append(txs, prepareTransaction(p, t))
	}
	p.Transactions = txs

	err := s.mutate(ctx, "partner_added", func(list []core.Partner) ([]core.Partner, error) {
		for _, existing := range list {
			if strings.EqualFold(existing.Username, p.Username) {
				return nil, ErrDuplicateUsername
			}
		}
		return append(list, p), nil
	}, p.ID)
	if err != nil {
		return core.Partner{}, err
	}
	return clonePartner(p), nil
}

// UpdatePartner edits name, username, commission, bonus and active of the
// partner with p.ID. Username uniqueness is only enforced on creation.
func (s *Store) UpdatePartner(ctx context.Context, p core.Partner) (core.Partner, error) {
	if err := p.Validate(); err != nil {
		return core.Partner{}, err
	}
	var updated core.Partner
	err := s.mutate(ctx, "partner_updated", func(list []core.Partner) ([]core.Partner, error) {
		i := indexOf(list, p.ID)
		if i < 0 {
			return nil, ErrPartnerNotFound
		}
		list[i].Name = p.Name
		list[i].Username = strings.TrimSpace(p.Username)
		list[i].Commission = p.Commission
		list[i].Bonus = p.Bonus
		list[i].Active = p.Active
		updated = clonePartner(list[i])
		return list, nil
	}, p.ID)
	if err != nil {
		return core.Partner{}, err
	}
	return updated, nil
}

// DeletePartner removes the partner with its transactions and clients.
func (s *Store) DeletePartner(ctx context.Context, id string) error {
	return s.mutate(ctx, "partner_deleted", func(list []core.Partner) ([]core.Partner, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, ErrPartnerNotFound
		}
		return append(list[:i], list[i+1:]...), nil
	}, id)
}

// AddTransactions appends txs to the partner. Each transaction gets an id, a
// normalized date and, when it names one of the partner's clients, a ClientID.
func (s *Store) AddTransactions(ctx context.Context, partnerID string, txs []core.Transaction) (int, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i+1, err)
		}
	}
	err := s.mutate(ctx, "transactions_added", func(list []core.Partner) ([]core.Partner, error) {
		i := indexOf(list, partnerID)
		if i < 0 {
			return nil, ErrPartnerNotFound
		}
		for _, t := range txs {
			list[i].Transactions = append(list[i].Transactions, prepareTransaction(list[i], t))
		}
		return list, nil
	}, partnerID)
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

func prepareTransaction(p core.Partner, t core.Transaction) core.Transaction {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.PartnerID = p.ID
	t.Date = core.NormalizeDate(t.Date)
	if t.ClientID == "" {
		t.ClientID = p.ResolveClientID(t)
	}
	return t
}

// AddClient rejects a login the partner already owns.
func (s *Store) AddClient(ctx context.Context, partnerID string, c core.Client) (core.Client, error) {
	c.Login = strings.TrimSpace(c.Login)
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	c.ID = uuid.NewString()
	c.PartnerID = partnerID
	err := s.mutate(ctx, "client_added", func(list []core.Partner) ([]core.Partner, error) {
		i := indexOf(list, partnerID)
		if i < 0 {
			return nil, ErrPartnerNotFound
		}
		if list[i].HasClientLogin(c.Login) {
			return nil, ErrDuplicateClientLogin
		}
		list[i].Clients = append(list[i].Clients, c)
		linkTransactions(&list[i])
		return list, nil
	}, partnerID)
	if err != nil {
		return core.Client{}, err
	}
	return c, nil
}

// AddClients appends clients whose login the partner does not own yet. Logins
// already present, or repeated within the batch, are dropped silently.
func (s *Store) AddClients(ctx context.Context, partnerID string, clients []core.Client) (added, skipped int, err error) {
	err = s.mutate(ctx, "clients_imported", func(list []core.Partner) ([]core.Partner, error) {
		i := indexOf(list, partnerID)
		if i < 0 {
			return nil, ErrPartnerNotFound
		}
		for _, c := range clients {
			if list[i].HasClientLogin(c.Login) {
				skipped++
				continue
			}
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.PartnerID = partnerID
			list[i].Clients = append(list[i].Clients, c)
			added++
		}
		linkTransactions(&list[i])
		return list, nil
	}, partnerID)
	if err != nil {
		return 0, 0, err
	}
	return added, skipped, nil
}

// linkTransactions fills missing ClientIDs from the partner's clients.
func linkTransactions(p *core.Partner) {
	for j := range p.Transactions {
		if p.Transactions[j].ClientID == "" {
			p.Transactions[j].ClientID = p.ResolveClientID(p.Transactions[j])
		}
	}
}

// Clients lists the partner's clients.
func (s *Store) Clients(partnerID string) ([]core.Client, bool) {
	p, ok := s.Partner(partnerID)
	if !ok {
		return nil, false
	}
	return p.Clients, true
}

// ReplacePartners swaps the whole list, as after a pull from the sheet.
func (s *Store) ReplacePartners(ctx context.Context, partners []core.Partner) error {
	incoming := clonePartners(partners)
	for i := range incoming {
		if incoming[i].ID == "" {
			incoming[i].ID = uuid.NewString()
		}
		for j := range incoming[i].Transactions {
			incoming[i].Transactions[j] = prepareTransaction(incoming[i], incoming[i].Transactions[j])
		}
		for j := range incoming[i].Clients {
			incoming[i].Clients[j].PartnerID = incoming[i].ID
			if incoming[i].Clients[j].ID == "" {
				incoming[i].Clients[j].ID = uuid.NewString()
			}
		}
	}
	return s.mutate(ctx, "partners_replaced", func([]core.Partner) ([]core.Partner, error) {
		return incoming, nil
	})
}

// MergePartners adds the partners whose username is not known yet and
// returns them with their assigned ids. Known usernames are left untouched.
func (s *Store) MergePartners(ctx context.Context, partners []core.Partner) ([]core.Partner, error) {
	var added []core.Partner
	err := s.mutate(ctx, "partners_merged", func(list []core.Partner) ([]core.Partner, error) {
		known := make(map[string]bool, len(list))
		for _, p := range list {
			known[strings.ToLower(p.Username)] = true
		}
		for _, p := range partners {
			key := strings.ToLower(strings.TrimSpace(p.Username))
			if key == "" || known[key] {
				continue
			}
			known[key] = true
			p = clonePartner(p)
			p.ID = uuid.NewString()
			for j := range p.Transactions {
				p.Transactions[j] = prepareTransaction(p, p.Transactions[j])
			}
			for j := range p.Clients {
				p.Clients[j].PartnerID = p.ID
				if p.Clients[j].ID == "" {
					p.Clients[j].ID = uuid.NewString()
				}
			}
			list = append(list, p)
			added = append(added, clonePartner(p))
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// FindByUsername returns the partner with username, ignoring case.
func (s *Store) FindByUsername(username string) (core.Partner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.partners {
		if strings.EqualFold(p.Username, username) {
			return clonePartner(p), true
		}
	}
	return core.Partner{}, false
}

// mutate applies fn to a copy of the list, persists the result and only then
// publishes it. fn may return a sentinel error to abort without side effects.
func (s *Store) mutate(ctx context.Context, reason string, fn func([]core.Partner) ([]core.Partner, error), ids ...string) error {
	s.mu.Lock()
	next, err := fn(clonePartners(s.partners))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	raw, err := json.Marshal(nonNil(next))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode partners: %w", err)
	}
	if err := s.kv.Put(ctx, KeyPartners, raw); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist partners: %w", err)
	}
	s.partners = next
	notifier := s.notifier
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Partners changed", "reason", reason, "partner_ids", ids, "count", len(next))
	if notifier != nil {
		notifier.PartnersChanged(ctx, reason, ids...)
	}
	return nil
}

func nonNil(list []core.Partner) []core.Partner {
	if list == nil {
		return []core.Partner{}
	}
	return list
}

func indexOf(list []core.Partner, id string) int {
	for i, p := range list {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func clonePartner(p core.Partner) core.Partner {
	p.Transactions = append([]core.Transaction(nil), p.Transactions...)
	p.Clients = append([]core.Client(nil), p.Clients...)
	return p
}

func clonePartners(list []core.Partner) []core.Partner {
	if list == nil {
		return nil
	}
	out := make([]core.Partner, len(list))
	for i, p := range list {
		out[i] = clonePartner(p)
	}
	return out
}
