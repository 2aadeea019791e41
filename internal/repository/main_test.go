package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"chocolata/internal/database"
	"chocolata/internal/domain"
	"chocolata/migrations"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(context.Background(), testDB, migrations.FS, zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	if pending, err := database.PendingMigrations(context.Background(), testDB, migrations.FS); err != nil || pending != 0 {
		return dbContainer.Terminate, fmt.Errorf("migrations left pending: %d (%v)", pending, err)
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}

	os.Exit(code)
}

func seedUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		FullName:     "Test " + string(role),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := NewUserRepository(testDB).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func seedProduct(t *testing.T, sellerID uuid.UUID, price string, stock int) *domain.Product {
	t.Helper()
	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Name:        "Praline " + uuid.NewString()[:8],
		Description: "Dark chocolate",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := NewProductRepository(testDB).Create(context.Background(), product); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product
}
