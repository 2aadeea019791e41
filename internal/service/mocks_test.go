package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"chocolata/internal/domain"
	"chocolata/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	counts := map[domain.Role]int{}
	for _, user := range m.users {
		counts[user.Role]++
	}
	return counts, nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
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
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	ordered  map[uuid.UUID]bool
	listed   int
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
		ordered:  make(map[uuid.UUID]bool),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	if m.ordered[id] {
		return repository.ErrProductInUse
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
	copied := *p
	return &copied, nil
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := []*domain.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			copied := *p
			found = append(found, &copied)
		}
	}
	return found, nil
}

func (m *mockProductRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	m.listed++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.filter(func(p *domain.Product) bool { return p.IsActive }), nil
}

func (m *mockProductRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Product, error) {
	return m.filter(func(p *domain.Product) bool { return p.SellerID == sellerID }), nil
}

func (m *mockProductRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	return m.filter(func(*domain.Product) bool { return true }), nil
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
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, p := range m.products {
		if p.IsActive {
			active++
		}
	}
	return len(m.products), active, nil
}

func (m *mockProductRepository) filter(keep func(*domain.Product) bool) []*domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range m.products {
		if keep(p) {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockProductRepository) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *mockProductRepository) setStock(id uuid.UUID, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].Stock = stock
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, c := range m.categories {
		if c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	out := []*domain.Category{}
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return c, nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

// mockOrderRepository reserves and restocks against a mockProductRepository the way the
// database transaction does
type mockOrderRepository struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	products *mockProductRepository
	stale    []uuid.UUID
}

func newMockOrderRepository(products *mockProductRepository) *mockOrderRepository {
	return &mockOrderRepository{
		orders:   make(map[uuid.UUID]*domain.Order),
		products: products,
	}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products.mu.Lock()
	defer m.products.mu.Unlock()

	for _, item := range order.Items {
		p, ok := m.products.products[item.ProductID]
		if !ok || !p.IsActive || p.Stock < item.Quantity {
			return repository.ErrInsufficientStock
		}
	}
	for _, item := range order.Items {
		m.products.products[item.ProductID].Stock -= item.Quantity
		m.products.ordered[item.ProductID] = true
	}

	copied := *order
	copied.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &copied
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (m *mockOrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool {
		for _, item := range o.Items {
			if item.SellerID == sellerID {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockOrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return m.filter(func(*domain.Order) bool { return true }), nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	return m.with(id, func(o *domain.Order) error {
		o.Status = status
		return nil
	})
}

func (m *mockOrderRepository) UpdatePayment(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, transactionID string) error {
	return m.with(id, func(o *domain.Order) error {
		o.PaymentStatus = status
		if transactionID != "" {
			o.PaymentTransactionID = transactionID
		}
		return nil
	})
}

func (m *mockOrderRepository) ConfirmPayment(ctx context.Context, id uuid.UUID, transactionID string) error {
	return m.with(id, func(o *domain.Order) error {
		if o.Status == domain.OrderStatusCancelled {
			return repository.ErrOrderCancelled
		}
		o.PaymentStatus = domain.PaymentStatusCompleted
		if transactionID != "" {
			o.PaymentTransactionID = transactionID
		}
		if o.Status == domain.OrderStatusPending {
			o.Status = domain.OrderStatusProcessing
		}
		return nil
	})
}

func (m *mockOrderRepository) CancelAndRestock(ctx context.Context, id uuid.UUID, payment domain.PaymentStatus) error {
	return m.cancel(id, payment, func(o *domain.Order) bool {
		return o.Status == domain.OrderStatusPending || o.Status == domain.OrderStatusProcessing
	})
}

func (m *mockOrderRepository) CancelUnpaid(ctx context.Context, id uuid.UUID) error {
	return m.cancel(id, domain.PaymentStatusFailed, func(o *domain.Order) bool {
		return o.Status == domain.OrderStatusPending && o.PaymentStatus == domain.PaymentStatusPending
	})
}

func (m *mockOrderRepository) cancel(id uuid.UUID, payment domain.PaymentStatus, allowed func(*domain.Order) bool) error {
	return m.with(id, func(o *domain.Order) error {
		if !allowed(o) {
			return repository.ErrOrderNotPending
		}
		o.Status = domain.OrderStatusCancelled
		o.PaymentStatus = payment

		m.products.mu.Lock()
		defer m.products.mu.Unlock()
		for _, item := range o.Items {
			if p, ok := m.products.products[item.ProductID]; ok {
				p.Stock += item.Quantity
			}
		}
		return nil
	})
}

func (m *mockOrderRepository) FindStalePending(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []uuid.UUID{}
	for id, o := range m.orders {
		if o.Status == domain.OrderStatusPending && o.PaymentStatus == domain.PaymentStatusPending &&
			o.CreatedAt.Before(createdBefore) {
			ids = append(ids, id)
		}
	}
	return append(ids, m.stale...), nil
}

func (m *mockOrderRepository) Stats(ctx context.Context) (int, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revenue := decimal.Zero
	for _, o := range m.orders {
		if o.PaymentStatus == domain.PaymentStatusCompleted {
			revenue = revenue.Add(o.Total)
		}
	}
	return len(m.orders), revenue, nil
}

func (m *mockOrderRepository) with(id uuid.UUID, fn func(*domain.Order) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	return fn(o)
}

func (m *mockOrderRepository) filter(keep func(*domain.Order) bool) []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if keep(o) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out
}

// put stores an order directly, bypassing stock reservation
func (m *mockOrderRepository) put(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

type mockVerificationRepository struct {
	byUser map[uuid.UUID]*domain.SellerVerification
}

func newMockVerificationRepository() *mockVerificationRepository {
	return &mockVerificationRepository{byUser: make(map[uuid.UUID]*domain.SellerVerification)}
}

func (m *mockVerificationRepository) Submit(ctx context.Context, v *domain.SellerVerification) error {
	if existing, ok := m.byUser[v.UserID]; ok {
		v.ID = existing.ID
	}
	copied := *v
	copied.Status = domain.VerificationPending
	copied.ReviewedAt = nil
	copied.ReviewedBy = nil
	m.byUser[v.UserID] = &copied
	return nil
}

func (m *mockVerificationRepository) FindByUser(ctx context.Context, userID uuid.UUID) (*domain.SellerVerification, error) {
	v, ok := m.byUser[userID]
	if !ok {
		return nil, repository.ErrVerificationNotFound
	}
	copied := *v
	return &copied, nil
}

func (m *mockVerificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SellerVerification, error) {
	for _, v := range m.byUser {
		if v.ID == id {
			copied := *v
			return &copied, nil
		}
	}
	return nil, repository.ErrVerificationNotFound
}

func (m *mockVerificationRepository) ListByStatus(ctx context.Context, status domain.VerificationStatus) ([]*domain.SellerVerification, error) {
	out := []*domain.SellerVerification{}
	for _, v := range m.byUser {
		if v.Status == status {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockVerificationRepository) Review(ctx context.Context, id uuid.UUID, status domain.VerificationStatus, reviewer uuid.UUID, at time.Time) error {
	for _, v := range m.byUser {
		if v.ID == id {
			v.Status = status
			v.ReviewedAt = &at
			v.ReviewedBy = &reviewer
			return nil
		}
	}
	return repository.ErrVerificationNotFound
}

func (m *mockVerificationRepository) CountPending(ctx context.Context) (int, error) {
	n := 0
	for _, v := range m.byUser {
		if v.Status == domain.VerificationPending {
			n++
		}
	}
	return n, nil
}

// approve marks a seller as verified
func (m *mockVerificationRepository) approve(sellerID uuid.UUID) {
	m.byUser[sellerID] = &domain.SellerVerification{
		ID:           uuid.New(),
		UserID:       sellerID,
		BusinessName: "Cacao AB",
		Status:       domain.VerificationApproved,
		SubmittedAt:  time.Now(),
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	placed  []uuid.UUID
	changes []domain.OrderStatus
	err     error
}

func (n *recordingNotifier) OrderPlaced(ctx context.Context, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, order.ID)
	return n.err
}

func (n *recordingNotifier) OrderStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, order.Status)
	return n.err
}

func newProduct(sellerID uuid.UUID, name string, price string, stock int) *domain.Product {
	now := time.Now()
	return &domain.Product{
		ID:        uuid.New(),
		SellerID:  sellerID,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Category:  "Dark",
		Stock:     stock,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

type mockAddressRepository struct {
	mu        sync.Mutex
	addresses map[uuid.UUID]*domain.Address
}

func newMockAddressRepository() *mockAddressRepository {
	return &mockAddressRepository{addresses: make(map[uuid.UUID]*domain.Address)}
}

func (m *mockAddressRepository) ownedBy(userID uuid.UUID) []*domain.Address {
	out := []*domain.Address{}
	for _, a := range m.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *mockAddressRepository) Create(ctx context.Context, address *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.ownedBy(address.UserID)
	if len(owned) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		for _, a := range owned {
			a.IsDefault = false
		}
	}
	copied := *address
	m.addresses[address.ID] = &copied
	return nil
}

func (m *mockAddressRepository) Update(ctx context.Context, address *domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.addresses[address.ID]
	if !ok || stored.UserID != address.UserID {
		return repository.ErrAddressNotFound
	}
	isDefault := stored.IsDefault
	*stored = *address
	stored.IsDefault = isDefault
	return nil
}

func (m *mockAddressRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.addresses[id]
	if !ok || stored.UserID != userID {
		return repository.ErrAddressNotFound
	}
	delete(m.addresses, id)
	if remaining := m.ownedBy(userID); stored.IsDefault && len(remaining) > 0 {
		remaining[0].IsDefault = true
	}
	return nil
}

func (m *mockAddressRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.addresses[id]
	if !ok || stored.UserID != userID {
		return nil, repository.ErrAddressNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *mockAddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Address{}
	for _, a := range m.ownedBy(userID) {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockAddressRepository) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.addresses[id]
	if !ok || stored.UserID != userID {
		return repository.ErrAddressNotFound
	}
	for _, a := range m.ownedBy(userID) {
		a.IsDefault = a.ID == id
	}
	return nil
}

type mockActivityRepository struct {
	mu      sync.Mutex
	entries []*domain.ActivityEntry
	err     error
}

func (m *mockActivityRepository) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockActivityRepository) List(ctx context.Context, filter domain.ActivityFilter) ([]*domain.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.ActivityEntry{}
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if (filter.Action == "" || e.Action == filter.Action) && (filter.Table == "" || e.TableName == filter.Table) {
			out = append(out, e)
		}
	}
	return out, nil
}

// only returns the recorded entries for one table
func (m *mockActivityRepository) only(table string) []*domain.ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.ActivityEntry{}
	for _, e := range m.entries {
		if e.TableName == table {
			out = append(out, e)
		}
	}
	return out
}
