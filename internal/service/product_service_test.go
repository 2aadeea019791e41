package service

import (
	"context"
	"strings"
	"testing"

	"chocolata/internal/domain"
	"chocolata/internal/middleware"
	"chocolata/internal/repository"
	"chocolata/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type productFixture struct {
	service       ProductService
	products      *mockProductRepository
	verifications *mockVerificationRepository
	store         *storage.MemoryStore
	activity      *mockActivityRepository
	sellerID      uuid.UUID
}

func newProductFixture(approved bool) *productFixture {
	products := newMockProductRepository()
	verifications := newMockVerificationRepository()
	store := storage.NewMemoryStore()
	activity := &mockActivityRepository{}
	sellerID := uuid.New()
	if approved {
		verifications.approve(sellerID)
	}
	return &productFixture{
		service:       NewProductService(products, verifications, store, NewActivityLog(activity, zap.NewNop()), zap.NewNop()),
		products:      products,
		verifications: verifications,
		store:         store,
		activity:      activity,
		sellerID:      sellerID,
	}
}

func barInput() ProductInput {
	return ProductInput{
		Name:        " Hazelnut Bar ",
		Description: "Milk chocolate with roasted hazelnuts",
		Price:       decimal.RequireFromString("59.90"),
		Stock:       12,
	}
}

func TestCreateProduct_RequiresApprovedSeller(t *testing.T) {
	f := newProductFixture(false)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.sellerID, barInput())
	assert.ErrorIs(t, err, ErrSellerNotApproved)

	f.verifications.byUser[f.sellerID] = &domain.SellerVerification{ID: uuid.New(), UserID: f.sellerID, Status: domain.VerificationPending}
	_, err = f.service.Create(ctx, f.sellerID, barInput())
	assert.ErrorIs(t, err, ErrSellerNotApproved)

	f.verifications.approve(f.sellerID)
	product, err := f.service.Create(ctx, f.sellerID, barInput())
	require.NoError(t, err)
	assert.Equal(t, "Hazelnut Bar", product.Name)
	assert.True(t, product.IsActive)
	assert.Equal(t, f.sellerID, product.SellerID)
}

func TestCreateProduct_ValidatesInput(t *testing.T) {
	f := newProductFixture(true)
	ctx := context.Background()

	cases := map[string]func(*ProductInput){
		"blank name":     func(in *ProductInput) { in.Name = "  " },
		"zero price":     func(in *ProductInput) { in.Price = decimal.Zero },
		"negative stock": func(in *ProductInput) { in.Stock = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := barInput()
			mutate(&in)
			_, err := f.service.Create(ctx, f.sellerID, in)
			assert.ErrorIs(t, err, ErrInvalidProduct)
		})
	}
}

func TestUpdateProduct_OnlyOwner(t *testing.T) {
	f := newProductFixture(true)
	ctx := context.Background()

	product, err := f.service.Create(ctx, f.sellerID, barInput())
	require.NoError(t, err)

	in := barInput()
	in.Stock = 0
	hidden := false
	in.IsActive = &hidden

	_, err = f.service.Update(ctx, uuid.New(), product.ID, in)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.service.Update(ctx, f.sellerID, product.ID, in)
	require.NoError(t, err)
	assert.Zero(t, updated.Stock)
	assert.False(t, updated.IsActive)
}

func TestUploadImage_ReplacesPreviousObject(t *testing.T) {
	f := newProductFixture(true)
	ctx := context.Background()

	product, err := f.service.Create(ctx, f.sellerID, barInput())
	require.NoError(t, err)

	first, err := f.service.UploadImage(ctx, f.sellerID, product.ID, strings.NewReader("first"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.ImagePublicID, "products/"))
	assert.Equal(t, 1, f.store.Len())

	second, err := f.service.UploadImage(ctx, f.sellerID, product.ID, strings.NewReader("second"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ImagePublicID, second.ImagePublicID)
	assert.Equal(t, 1, f.store.Len())

	stored, err := f.products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ImageURL, stored.ImageURL)
}

func TestDeleteProduct(t *testing.T) {
	f := newProductFixture(true)
	ctx := context.Background()

	product, err := f.service.Create(ctx, f.sellerID, barInput())
	require.NoError(t, err)
	_, err = f.service.UploadImage(ctx, f.sellerID, product.ID, strings.NewReader("img"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.service.Delete(ctx, uuid.New(), product.ID), ErrForbidden)

	f.products.ordered[product.ID] = true
	assert.ErrorIs(t, f.service.Delete(ctx, f.sellerID, product.ID), repository.ErrProductInUse)
	assert.Equal(t, 1, f.store.Len(), "image stays while the product exists")

	delete(f.products.ordered, product.ID)
	require.NoError(t, f.service.Delete(ctx, f.sellerID, product.ID))
	assert.Zero(t, f.store.Len())
}

func TestSetActive_AdminVisibility(t *testing.T) {
	f := newProductFixture(true)
	ctx := context.Background()

	product, err := f.service.Create(ctx, f.sellerID, barInput())
	require.NoError(t, err)

	require.NoError(t, f.service.SetActive(ctx, product.ID, false))
	all, err := f.service.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	assert.ErrorIs(t, f.service.SetActive(ctx, uuid.New(), true), repository.ErrProductNotFound)
}

func TestProductChangesAreRecorded(t *testing.T) {
	f := newProductFixture(true)
	ctx := middleware.WithUser(context.Background(), f.sellerID, domain.RoleSeller)

	product, err := f.service.Create(ctx, f.sellerID, barInput())
	require.NoError(t, err)

	in := barInput()
	in.Price = decimal.RequireFromString("64.90")
	_, err = f.service.Update(ctx, f.sellerID, product.ID, in)
	require.NoError(t, err)

	// saving unchanged fields leaves no trail
	_, err = f.service.Update(ctx, f.sellerID, product.ID, in)
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, f.sellerID, product.ID))

	entries := f.activity.only(domain.TableProducts)
	require.Len(t, entries, 3)

	assert.Equal(t, domain.ActivityCreate, entries[0].Action)
	assert.Equal(t, domain.FieldChange{New: "Hazelnut Bar"}, entries[0].Changes["name"])
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, f.sellerID, *entries[0].UserID)

	assert.Equal(t, domain.ActivityUpdate, entries[1].Action)
	assert.Equal(t, map[string]domain.FieldChange{"price": {Old: "59.90", New: "64.90"}}, entries[1].Changes)

	assert.Equal(t, domain.ActivityDelete, entries[2].Action)
	assert.Equal(t, product.ID, entries[2].RecordID)
}
