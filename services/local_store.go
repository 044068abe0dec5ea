package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"cardvault_server/models"
)

const localKeySeparator = 0x00

// LocalStore implements Store on an embedded badger database. Items are kept as JSON documents
// keyed by PK and SK, so prefix iteration gives the same ordering a DynamoDB range query does.
type LocalStore struct {
	db *badger.DB
	// writeMu serializes read-modify-write transactions so they never conflict.
	writeMu sync.Mutex
	Logger  *zap.Logger
	Now     func() time.Time
}

var _ Store = (*LocalStore)(nil)

// document is the decoded form of an item.
type document map[string]interface{}

// NewLocalStore opens a badger store at path. An empty path keeps everything in memory.
func NewLocalStore(path string, logger *zap.Logger) (*LocalStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{db: db, Logger: logger}, nil
}

// Close releases the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

func (s *LocalStore) now() string {
	if s.Now != nil {
		return models.FormatTimestamp(s.Now())
	}
	return models.FormatTimestamp(time.Now())
}

func encodeKey(key models.Key) []byte {
	b := make([]byte, 0, len(key.PK)+len(key.SK)+1)
	b = append(b, key.PK...)
	b = append(b, localKeySeparator)
	return append(b, key.SK...)
}

func partitionPrefix(pk, skPrefix string) []byte {
	return encodeKey(models.Key{PK: pk, SK: skPrefix})
}

// toDocument converts any dynamodbav-tagged value into a plain document.
func toDocument(v interface{}) (document, error) {
	av, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	var doc document
	if err := attributevalue.UnmarshalMap(av, &doc); err != nil {
		return nil, fmt.Errorf("failed to normalize item: %w", err)
	}
	return doc, nil
}

func (d document) key() (models.Key, error) {
	pk, _ := d[models.AttrPK].(string)
	sk, _ := d[models.AttrSK].(string)
	if pk == "" || sk == "" {
		return models.Key{}, errors.New("item is missing PK or SK")
	}
	return models.Key{PK: pk, SK: sk}, nil
}

func (d document) attributes() (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(map[string]interface{}(d))
}

func decodeDocuments(docs []document, out interface{}) error {
	items := make([]map[string]types.AttributeValue, 0, len(docs))
	for _, doc := range docs {
		item, err := doc.attributes()
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	return attributevalue.UnmarshalListOfMaps(items, out)
}

func readDocument(txn *badger.Txn, key models.Key) (document, bool, error) {
	entry, err := txn.Get(encodeKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var doc document
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func writeDocument(txn *badger.Txn, key models.Key, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return txn.Set(encodeKey(key), data)
}

// update runs fn in a read-write transaction. Writers take turns.
func (s *LocalStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.Update(fn)
}

func (s *LocalStore) PutItem(ctx context.Context, item interface{}) error {
	doc, err := toDocument(item)
	if err != nil {
		return err
	}
	key, err := doc.key()
	if err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return writeDocument(txn, key, doc)
	})
}

func (s *LocalStore) GetItem(ctx context.Context, key models.Key, out interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var (
		doc   document
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, found, err = readDocument(txn, key)
		return err
	})
	if err != nil || !found {
		return false, err
	}

	item, err := doc.attributes()
	if err != nil {
		return false, err
	}
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item %s/%s: %w", key.PK, key.SK, err)
	}
	return true, nil
}

func (s *LocalStore) QueryByPrefix(ctx context.Context, pk, skPrefix string, opts QueryOptions, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := partitionPrefix(pk, skPrefix)
	var docs []document
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.Reverse = !opts.Ascending

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		seek := prefix
		if !opts.Ascending {
			// 0xFF never occurs in UTF-8, so this sorts after every key under the prefix.
			seek = append(append([]byte{}, prefix...), 0xFF)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var doc document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			docs = append(docs, doc)
			if opts.Limit > 0 && len(docs) >= opts.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to query local store: %w", err)
	}
	return decodeDocuments(docs, out)
}

func (s *LocalStore) UpdateCounter(ctx context.Context, key models.Key, field string, delta int) (int, error) {
	var value int
	err := s.update(ctx, func(txn *badger.Txn) error {
		doc, found, err := readDocument(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		value = addToField(doc, field, delta)
		doc[models.AttrUpdatedAt] = s.now()
		return writeDocument(txn, key, doc)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

func addToField(doc document, field string, delta int) int {
	current, _ := doc[field].(float64)
	next := int(current) + delta
	doc[field] = float64(next)
	return next
}

func (s *LocalStore) UpdateFields(ctx context.Context, key models.Key, set map[string]interface{}, expect map[string]interface{}) error {
	setDoc, err := toDocument(set)
	if err != nil {
		return err
	}
	expectDoc, err := toDocument(expect)
	if err != nil {
		return err
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		doc, found, err := readDocument(txn, key)
		if err != nil {
			return err
		}
		if !found {
			return ErrConditionFailed
		}
		for field, want := range expectDoc {
			if !reflect.DeepEqual(doc[field], want) {
				return ErrConditionFailed
			}
		}
		for field, value := range setDoc {
			doc[field] = value
		}
		doc[models.AttrUpdatedAt] = s.now()
		return writeDocument(txn, key, doc)
	})
}

func (s *LocalStore) DeleteItem(ctx context.Context, key models.Key) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(encodeKey(key))
	})
}

func (s *LocalStore) DeleteItems(ctx context.Context, keys []models.Key) error {
	for i := 0; i < len(keys); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[i:end]
		if err := s.update(ctx, func(txn *badger.Txn) error {
			for _, key := range batch {
				if err := txn.Delete(encodeKey(key)); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// ListByEntityType walks every key. Results carrying GSI1SK are ordered newest first, like the index query.
func (s *LocalStore) ListByEntityType(ctx context.Context, entityType string, limit int, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var docs []document
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var doc document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			if doc[models.AttrEntityType] == entityType {
				docs = append(docs, doc)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list %s items: %w", entityType, err)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		left, _ := docs[i][models.AttrGSI1SK].(string)
		right, _ := docs[j][models.AttrGSI1SK].(string)
		return left > right
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return decodeDocuments(docs, out)
}

func (s *LocalStore) TransactWrite(ctx context.Context, ops ...WriteOp) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		for i, op := range ops {
			if err := s.applyOp(txn, i, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *LocalStore) applyOp(txn *badger.Txn, index int, op WriteOp) error {
	var (
		key models.Key
		doc document
		err error
	)
	if op.Kind == OpPut {
		if doc, err = toDocument(op.Item); err != nil {
			return err
		}
		if key, err = doc.key(); err != nil {
			return err
		}
	} else {
		key = op.Key
	}

	existing, found, err := readDocument(txn, key)
	if err != nil {
		return err
	}
	if (op.Condition == CondExists && !found) || (op.Condition == CondNotExists && found) {
		return &ConditionFailedError{Index: index}
	}

	switch op.Kind {
	case OpPut:
		return writeDocument(txn, key, doc)
	case OpDelete:
		if !found {
			return nil
		}
		return txn.Delete(encodeKey(key))
	case OpAdd:
		if !found {
			existing = document{models.AttrPK: key.PK, models.AttrSK: key.SK}
		}
		addToField(existing, op.Field, op.Delta)
		existing[models.AttrUpdatedAt] = s.now()
		return writeDocument(txn, key, existing)
	case OpCheck:
		return nil
	}
	return fmt.Errorf("unknown operation kind %d", op.Kind)
}
