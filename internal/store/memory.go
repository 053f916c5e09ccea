package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"trade-journal/internal/models"
)

// MemoryStore implements DataStore in memory. Atomic blocks run against a
// staged copy and replay their writes onto the live state on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: newMemState(),
		locks: make(map[string]*sync.Mutex),
	}
}

type memState struct {
	accounts     map[string]models.Account
	trades       map[string]models.Trade
	transactions []models.Transaction
	rules        []models.Rule
	vehicles     map[string]models.TradingVehicle
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[string]models.Account),
		trades:   make(map[string]models.Trade),
		vehicles: make(map[string]models.TradingVehicle),
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		accounts:     make(map[string]models.Account, len(st.accounts)),
		trades:       make(map[string]models.Trade, len(st.trades)),
		transactions: append([]models.Transaction(nil), st.transactions...),
		rules:        append([]models.Rule(nil), st.rules...),
		vehicles:     make(map[string]models.TradingVehicle, len(st.vehicles)),
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range st.trades {
		c.trades[k] = v
	}
	return c
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) accountLock(accountID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	return l
}

// Atomic runs fn against a staged copy of the state, serialized per account.
func (s *MemoryStore) Atomic(ctx context.Context, accountID string, fn func(w Writer) error) error {
	l := s.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	staged := s.state.clone()
	s.mu.RUnlock()

	w := &memWriter{memReader: memReader{st: staged}}
	if err := fn(w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	for _, op := range w.ops {
		if err := op(next); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
	}
	s.state = next
	return nil
}

// View runs fn against a copy of the current state.
func (s *MemoryStore) View(ctx context.Context, fn func(r Reader) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(memReader{st: snapshot})
}

func (s *MemoryStore) reader() memReader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memReader{st: s.state.clone()}
}

// QueryTransactions implements Reader.
func (s *MemoryStore) QueryTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	return s.reader().QueryTransactions(ctx, filter)
}

// ReadTrade implements Reader.
func (s *MemoryStore) ReadTrade(ctx context.Context, id string) (*models.Trade, error) {
	return s.reader().ReadTrade(ctx, id)
}

// ReadTrades implements Reader.
func (s *MemoryStore) ReadTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	return s.reader().ReadTrades(ctx, filter)
}

// ReadAccount implements Reader.
func (s *MemoryStore) ReadAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.reader().ReadAccount(ctx, id)
}

// ReadAccountByName implements Reader.
func (s *MemoryStore) ReadAccountByName(ctx context.Context, name string) (*models.Account, error) {
	return s.reader().ReadAccountByName(ctx, name)
}

// ReadAccounts implements Reader.
func (s *MemoryStore) ReadAccounts(ctx context.Context) ([]models.Account, error) {
	return s.reader().ReadAccounts(ctx)
}

// ReadActiveRules implements Reader.
func (s *MemoryStore) ReadActiveRules(ctx context.Context, accountID string) ([]models.Rule, error) {
	return s.reader().ReadActiveRules(ctx, accountID)
}

// ReadRules implements Reader.
func (s *MemoryStore) ReadRules(ctx context.Context, accountID string) ([]models.Rule, error) {
	return s.reader().ReadRules(ctx, accountID)
}

// ReadTradingVehicle implements Reader.
func (s *MemoryStore) ReadTradingVehicle(ctx context.Context, id string) (*models.TradingVehicle, error) {
	return s.reader().ReadTradingVehicle(ctx, id)
}

// ReadTradingVehicles implements Reader.
func (s *MemoryStore) ReadTradingVehicles(ctx context.Context) ([]models.TradingVehicle, error) {
	return s.reader().ReadTradingVehicles(ctx)
}

type memReader struct {
	st *memState
}

func (r memReader) QueryTransactions(_ context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	var out []models.Transaction
	for i := range r.st.transactions {
		if filter.Match(&r.st.transactions[i]) {
			out = append(out, r.st.transactions[i])
		}
	}
	return out, nil
}

func (r memReader) ReadTrade(_ context.Context, id string) (*models.Trade, error) {
	t, ok := r.st.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (r memReader) ReadTrades(_ context.Context, filter TradeFilter) ([]models.Trade, error) {
	var out []models.Trade
	for _, t := range r.st.trades {
		t := t
		if filter.Match(&t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r memReader) ReadAccount(_ context.Context, id string) (*models.Account, error) {
	a, ok := r.st.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (r memReader) ReadAccountByName(_ context.Context, name string) (*models.Account, error) {
	for _, a := range r.st.accounts {
		if a.Name == name {
			a := a
			return &a, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", name, ErrNotFound)
}

func (r memReader) ReadAccounts(_ context.Context) ([]models.Account, error) {
	out := make([]models.Account, 0, len(r.st.accounts))
	for _, a := range r.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memReader) rules(accountID string, activeOnly bool) []models.Rule {
	var out []models.Rule
	for _, rule := range r.st.rules {
		if rule.AccountID != accountID || (activeOnly && !rule.Active) {
			continue
		}
		out = append(out, rule)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func (r memReader) ReadActiveRules(_ context.Context, accountID string) ([]models.Rule, error) {
	return r.rules(accountID, true), nil
}

func (r memReader) ReadRules(_ context.Context, accountID string) ([]models.Rule, error) {
	return r.rules(accountID, false), nil
}

func (r memReader) ReadTradingVehicle(_ context.Context, id string) (*models.TradingVehicle, error) {
	v, ok := r.st.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("trading vehicle %s: %w", id, ErrNotFound)
	}
	return &v, nil
}

func (r memReader) ReadTradingVehicles(_ context.Context) ([]models.TradingVehicle, error) {
	out := make([]models.TradingVehicle, 0, len(r.st.vehicles))
	for _, v := range r.st.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol == out[j].Symbol {
			return out[i].Broker < out[j].Broker
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// memWriter applies each write to the staged state immediately and records
// it for replay at commit.
type memWriter struct {
	memReader
	ops []func(*memState) error
}

func (w *memWriter) apply(op func(*memState) error) error {
	if err := op(w.st); err != nil {
		return err
	}
	w.ops = append(w.ops, op)
	return nil
}

func (w *memWriter) AppendTransaction(_ context.Context, tx *models.Transaction) error {
	t := *tx
	return w.apply(func(st *memState) error {
		for i := range st.transactions {
			if st.transactions[i].ID == t.ID {
				return fmt.Errorf("failed to append transaction: duplicate id %s", t.ID)
			}
		}
		st.transactions = append(st.transactions, t)
		return nil
	})
}

func (w *memWriter) MarkTransactionDeleted(_ context.Context, id string, at time.Time) error {
	return w.apply(func(st *memState) error {
		for i := range st.transactions {
			if st.transactions[i].ID == id && st.transactions[i].DeletedAt == nil {
				deleted := at
				st.transactions[i].DeletedAt = &deleted
				return nil
			}
		}
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	})
}

func (w *memWriter) CreateAccount(_ context.Context, account *models.Account) error {
	a := *account
	return w.apply(func(st *memState) error {
		for _, existing := range st.accounts {
			if existing.ID == a.ID || existing.Name == a.Name {
				return fmt.Errorf("failed to create account: %s already exists", a.Name)
			}
		}
		st.accounts[a.ID] = a
		return nil
	})
}

func (w *memWriter) CreateTrade(_ context.Context, trade *models.Trade) error {
	t := *trade
	return w.apply(func(st *memState) error {
		if _, ok := st.trades[t.ID]; ok {
			return fmt.Errorf("failed to create trade: duplicate id %s", t.ID)
		}
		if _, ok := st.vehicles[t.TradingVehicleID]; !ok {
			return fmt.Errorf("failed to create trade: trading vehicle %s: %w", t.TradingVehicleID, ErrNotFound)
		}
		st.trades[t.ID] = t
		return nil
	})
}

func (w *memWriter) UpdateTradeStatus(ctx context.Context, id string, status models.Status, at time.Time) (*models.Trade, error) {
	err := w.apply(func(st *memState) error {
		t, ok := st.trades[id]
		if !ok {
			return fmt.Errorf("trade %s: %w", id, ErrNotFound)
		}
		t.Status = status
		t.UpdatedAt = at
		st.trades[id] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w.ReadTrade(ctx, id)
}

func (w *memWriter) UpdateTradeBalance(_ context.Context, id string, balance models.TradeBalance) (*models.TradeBalance, error) {
	err := w.apply(func(st *memState) error {
		t, ok := st.trades[id]
		if !ok {
			return fmt.Errorf("trade %s: %w", id, ErrNotFound)
		}
		t.Balance = balance
		st.trades[id] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (w *memWriter) UpdateOrder(_ context.Context, order *models.Order) error {
	o := *order
	return w.apply(func(st *memState) error {
		t, ok := st.trades[o.TradeID]
		if !ok {
			return fmt.Errorf("trade %s: %w", o.TradeID, ErrNotFound)
		}
		switch o.Role {
		case models.RoleEntry:
			t.Entry = o
		case models.RoleSafetyStop:
			t.SafetyStop = o
		case models.RoleTarget:
			t.Target = o
		default:
			return fmt.Errorf("order %s: %w", o.ID, ErrNotFound)
		}
		st.trades[o.TradeID] = t
		return nil
	})
}

func (w *memWriter) CreateRule(_ context.Context, rule *models.Rule) error {
	r := *rule
	return w.apply(func(st *memState) error {
		st.rules = append(st.rules, r)
		return nil
	})
}

func (w *memWriter) DeactivateRule(_ context.Context, accountID, id string) error {
	return w.apply(func(st *memState) error {
		for i := range st.rules {
			if st.rules[i].ID == id && st.rules[i].AccountID == accountID {
				st.rules[i].Active = false
				return nil
			}
		}
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	})
}

func (w *memWriter) CreateTradingVehicle(_ context.Context, vehicle *models.TradingVehicle) error {
	v := *vehicle
	return w.apply(func(st *memState) error {
		for _, existing := range st.vehicles {
			if existing.ID == v.ID || (existing.Symbol == v.Symbol && existing.Broker == v.Broker) {
				return fmt.Errorf("failed to create trading vehicle: %s at %s already exists", v.Symbol, v.Broker)
			}
		}
		st.vehicles[v.ID] = v
		return nil
	})
}
