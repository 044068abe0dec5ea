package services

import (
	"context"
	"errors"
	"fmt"

	"cardvault_server/models"
)

var (
	// ErrNotFound is returned when a write requires an item that does not exist.
	ErrNotFound = errors.New("item not found")
	// ErrConditionFailed is returned when a conditional write was rejected.
	ErrConditionFailed = errors.New("conditional check failed")
)

// ConditionFailedError reports which operation of a transaction failed its condition.
type ConditionFailedError struct {
	Index int
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("transaction cancelled: condition failed on operation %d", e.Index)
}

func (e *ConditionFailedError) Unwrap() error { return ErrConditionFailed }

// failedOpIndex returns the index of the failing transaction operation, if err is a condition failure.
func failedOpIndex(err error) (int, bool) {
	var condErr *ConditionFailedError
	if errors.As(err, &condErr) {
		return condErr.Index, true
	}
	return -1, false
}

// Condition guards a write on the existence of the addressed item.
type Condition int

const (
	CondNone Condition = iota
	CondExists
	CondNotExists
)

// OpKind is the kind of a transactional write operation.
type OpKind int

const (
	OpPut OpKind = iota
	OpDelete
	OpAdd
	OpCheck
)

// WriteOp is one member of a TransactWrite call.
type WriteOp struct {
	Kind      OpKind
	Key       models.Key  // Delete, Add, Check
	Item      interface{} // Put; must carry PK and SK attributes
	Field     string      // Add
	Delta     int         // Add
	Condition Condition
}

// PutOp writes item, optionally only if it does (not) already exist.
func PutOp(item interface{}, cond Condition) WriteOp {
	return WriteOp{Kind: OpPut, Item: item, Condition: cond}
}

func DeleteOp(key models.Key, cond Condition) WriteOp {
	return WriteOp{Kind: OpDelete, Key: key, Condition: cond}
}

// AddOp atomically adds delta to a numeric field of an existing item and refreshes updatedAt.
func AddOp(key models.Key, field string, delta int) WriteOp {
	return WriteOp{Kind: OpAdd, Key: key, Field: field, Delta: delta, Condition: CondExists}
}

func CheckOp(key models.Key, cond Condition) WriteOp {
	return WriteOp{Kind: OpCheck, Key: key, Condition: cond}
}

// QueryOptions controls range queries. Limit <= 0 returns every match.
type QueryOptions struct {
	Limit     int
	Ascending bool
}

// Store is the single-table entity store every higher level service is written against.
type Store interface {
	// PutItem inserts or fully replaces the item at its key. Last write wins.
	PutItem(ctx context.Context, item interface{}) error
	// GetItem unmarshals the item into out. A miss returns found == false and no error.
	GetItem(ctx context.Context, key models.Key, out interface{}) (bool, error)
	// QueryByPrefix returns every item in pk whose sort key begins with skPrefix.
	QueryByPrefix(ctx context.Context, pk, skPrefix string, opts QueryOptions, out interface{}) error
	// UpdateCounter atomically adds delta to field on an existing item and returns the new value.
	UpdateCounter(ctx context.Context, key models.Key, field string, delta int) (int, error)
	// UpdateFields sets fields on an existing item. Every entry of expect must match the stored value.
	UpdateFields(ctx context.Context, key models.Key, set map[string]interface{}, expect map[string]interface{}) error
	// DeleteItem removes the item. Deleting a missing key is not an error.
	DeleteItem(ctx context.Context, key models.Key) error
	DeleteItems(ctx context.Context, keys []models.Key) error
	// ListByEntityType enumerates items of one entity type, newest first where the backend can order them.
	ListByEntityType(ctx context.Context, entityType string, limit int, out interface{}) error
	// TransactWrite applies every op or none of them.
	TransactWrite(ctx context.Context, ops ...WriteOp) error
}
