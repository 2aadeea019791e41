package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityAction is the kind of change an activity entry records
type ActivityAction string

const (
	ActivityCreate ActivityAction = "create"
	ActivityUpdate ActivityAction = "update"
	ActivityDelete ActivityAction = "delete"
)

// Valid reports whether a is one of the known actions
func (a ActivityAction) Valid() bool {
	switch a {
	case ActivityCreate, ActivityUpdate, ActivityDelete:
		return true
	}
	return false
}

// Tables whose changes are written to the activity log
const (
	TableUsers               = "users"
	TableProducts            = "products"
	TableCategories          = "categories"
	TableOrders              = "orders"
	TableSellerVerifications = "seller_verifications"
)

// ActivityTables lists the tables an activity filter may name
var ActivityTables = []string{TableUsers, TableProducts, TableCategories, TableOrders, TableSellerVerifications}

// FieldChange is the before and after value of one field.
// Old is nil on create and New is nil on delete.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// ActivityEntry is one row of the admin audit trail
type ActivityEntry struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	UserID    *uuid.UUID             `json:"user_id,omitempty" db:"user_id"`
	UserEmail string                 `json:"user_email,omitempty" db:"user_email"`
	UserName  string                 `json:"user_name,omitempty" db:"user_name"`
	Action    ActivityAction         `json:"action_type" db:"action_type"`
	TableName string                 `json:"table_name" db:"table_name"`
	RecordID  uuid.UUID              `json:"record_id" db:"record_id"`
	Changes   map[string]FieldChange `json:"changes,omitempty" db:"changes"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// ActivityFilter narrows an activity listing. Zero values match everything.
type ActivityFilter struct {
	Action ActivityAction
	Table  string
	Limit  int
}
