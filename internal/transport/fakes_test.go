package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/middleware"
	"chocolata/internal/repository"
	"chocolata/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.Role]int)
	for _, user := range m.users {
		counts[user.Role]++
	}
	return counts, nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current string
	for email, u := range m.users {
		if u.ID == user.ID {
			current = email
		} else if email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	if current == "" {
		return repository.ErrUserNotFound
	}
	delete(m.users, current)
	updated := *user
	updated.UpdatedAt = time.Now()
	m.users[updated.Email] = &updated
	user.UpdatedAt = updated.UpdatedAt
	return nil
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if rt.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return rt, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	rt.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.tokens {
		if rt.UserID == userID {
			rt.Revoked = true
		}
	}
	return nil
}

// mockProductRepository keeps products in memory, newest first when listed
type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockProductRepository) list(keep func(*domain.Product) bool) []*domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockProductRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	return m.list(func(p *domain.Product) bool { return p.IsActive }), nil
}

func (m *mockProductRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error) {
	return m.list(func(p *domain.Product) bool { return p.SellerID == sellerID }), nil
}

func (m *mockProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return m.list(func(*domain.Product) bool { return true }), nil
}

func (m *mockProductRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.IsActive = active
	return nil
}

func (m *mockProductRepository) Count(ctx context.Context) (int, int, error) {
	all := m.list(func(*domain.Product) bool { return true })
	active := 0
	for _, p := range all {
		if p.IsActive {
			active++
		}
	}
	return len(all), active, nil
}

type mockCategoryRepository struct {
	mu         sync.Mutex
	categories []*domain.Category
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories = append(m.categories, category)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Category{}, m.categories...), nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.categories {
		if c.ID == id {
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			return nil
		}
	}
	return repository.ErrCategoryNotFound
}

// memoryActivityRepository keeps entries newest last and lists them newest first
type memoryActivityRepository struct {
	mu      sync.Mutex
	entries []*domain.ActivityEntry
}

func (m *memoryActivityRepository) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryActivityRepository) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.ActivityEntry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Table != "" && e.TableName != filter.Table {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// memoryAddressRepository mirrors the default-address rules of the real repository
type memoryAddressRepository struct {
	mu        sync.Mutex
	addresses []*domain.Address
}

func (m *memoryAddressRepository) owned(userID uuid.UUID) []*domain.Address {
	out := []*domain.Address{}
	for _, a := range m.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (m *memoryAddressRepository) find(userID, id uuid.UUID) *domain.Address {
	for _, a := range m.owned(userID) {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *memoryAddressRepository) Create(ctx context.Context, address *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.owned(address.UserID)
	if len(owned) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		for _, a := range owned {
			a.IsDefault = false
		}
	}
	copied := *address
	m.addresses = append(m.addresses, &copied)
	return nil
}

func (m *memoryAddressRepository) Update(ctx context.Context, address *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.find(address.UserID, address.ID)
	if stored == nil {
		return repository.ErrAddressNotFound
	}
	isDefault := stored.IsDefault
	*stored = *address
	stored.IsDefault = isDefault
	return nil
}

func (m *memoryAddressRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.find(userID, id)
	if stored == nil {
		return repository.ErrAddressNotFound
	}
	for i, a := range m.addresses {
		if a == stored {
			m.addresses = append(m.addresses[:i], m.addresses[i+1:]...)
			break
		}
	}
	if remaining := m.owned(userID); stored.IsDefault && len(remaining) > 0 {
		remaining[len(remaining)-1].IsDefault = true
	}
	return nil
}

func (m *memoryAddressRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.find(userID, id)
	if stored == nil {
		return nil, repository.ErrAddressNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *memoryAddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Address{}
	for _, a := range m.owned(userID) {
		copied := *a
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

func (m *memoryAddressRepository) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(userID, id) == nil {
		return repository.ErrAddressNotFound
	}
	for _, a := range m.owned(userID) {
		a.IsDefault = a.ID == id
	}
	return nil
}

// stubOrderService answers only the calls a test sets up; the embedded interface panics on the rest
type stubOrderService struct {
	service.OrderService
	order     *domain.Order
	err       error
	gotStatus domain.OrderStatus
	gotBody   []byte
	gotSigHdr string
}

func (s *stubOrderService) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) UpdateStatusAsSeller(ctx context.Context, sellerID, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	s.gotStatus = status
	return s.order, s.err
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	s.gotStatus = status
	return s.order, s.err
}

func (s *stubOrderService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	s.gotBody = body
	s.gotSigHdr = signature
	return s.err
}

func newProduct(sellerID uuid.UUID, name, price string, stock int) *domain.Product {
	now := time.Now()
	return &domain.Product{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// jsonRequest builds a request with body encoded as JSON, authenticated as userID/role when role is set
func jsonRequest(t *testing.T, method, target string, body interface{}, userID uuid.UUID, role domain.Role) *http.Request {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), userID, role))
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
