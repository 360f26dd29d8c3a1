// Package mongo persists expenses in a MongoDB collection and reports driver
// connectivity changes to the connection manager.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"expenses/internal/core"
	"expenses/internal/database"
	"expenses/internal/storage"
)

const (
	// CollectionName holds all expense documents.
	CollectionName  = "expenses"
	defaultDatabase = "expenses"

	defaultServerSelectionTimeout = 5 * time.Second
	defaultHeartbeatInterval      = 10 * time.Second
)

var (
	ErrEmptyURI = errors.New("mongo uri cannot be empty")
	ErrConnect  = errors.New("mongo connect failed")
	ErrPing     = errors.New("mongo ping failed")
)

// Config defines how to reach the server.
type Config struct {
	URI                    string
	Database               string
	ServerSelectionTimeout time.Duration
	HeartbeatInterval      time.Duration
}

// Option customizes internal client dependencies (primarily for tests).
type Option func(*clientDeps)

type clientDeps struct {
	connect     func(context.Context, *options.ClientOptions) (*mongo.Client, error)
	ping        func(context.Context, *mongo.Client) error
	disconnect  func(context.Context, *mongo.Client) error
	createIndex func(context.Context, *mongo.Collection, mongo.IndexModel) error
}

func defaultDeps() clientDeps {
	return clientDeps{
		connect: func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
			return mongo.Connect(ctx, opts)
		},
		ping: func(ctx context.Context, client *mongo.Client) error {
			return client.Ping(ctx, nil)
		},
		disconnect: func(ctx context.Context, client *mongo.Client) error {
			return client.Disconnect(ctx)
		},
		createIndex: func(ctx context.Context, coll *mongo.Collection, index mongo.IndexModel) error {
			_, err := coll.Indexes().CreateOne(ctx, index)
			return err
		},
	}
}

// expenseDocument is the stored shape. createdAt is set once on insert and
// never exposed.
type expenseDocument struct {
	ID          primitive.ObjectID `bson:"_id"`
	Description string             `bson:"description"`
	Amount      float64            `bson:"amount"`
	Date        time.Time          `bson:"date"`
	CreatedAt   time.Time          `bson:"createdAt,omitempty"`
}

func (d expenseDocument) toExpense() core.Expense {
	return core.Expense{
		ID:          d.ID.Hex(),
		Description: d.Description,
		Amount:      d.Amount,
		Date:        d.Date.UTC(),
	}
}

// Store implements storage.ExpenseRepository, database.Connector and
// database.EventSource.
type Store struct {
	cfg  Config
	deps clientDeps
	now  func() time.Time

	mu     sync.RWMutex
	client *mongo.Client
	coll   *mongo.Collection

	// events has its own lock: the driver fires monitor callbacks while
	// Connect holds mu.
	events eventRelay
}

// New returns an unconnected store.
func New(cfg Config, opts ...Option) (*Store, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, ErrEmptyURI
	}
	if cfg.Database == "" {
		cfg.Database = databaseFromURI(cfg.URI)
	}
	if cfg.ServerSelectionTimeout <= 0 {
		cfg.ServerSelectionTimeout = defaultServerSelectionTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}

	deps := defaultDeps()
	for _, opt := range opts {
		opt(&deps)
	}
	return &Store{cfg: cfg, deps: deps, now: time.Now}, nil
}

// NewWithCollection wraps an already connected collection. Connect and
// Close become no-ops apart from the collection handle.
func NewWithCollection(coll *mongo.Collection) *Store {
	return &Store{deps: defaultDeps(), now: time.Now, coll: coll}
}

// Database returns the name of the database expenses are stored in.
func (s *Store) Database() string { return s.cfg.Database }

// SetEventHandler routes driver connectivity events to h.
func (s *Store) SetEventHandler(h database.EventHandler) {
	s.events.set(h)
}

// Connect dials the server and verifies it with a ping. Calling it while
// connected only pings.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		if err := s.deps.ping(ctx, s.client); err != nil {
			return fmt.Errorf("%w: %w", ErrPing, err)
		}
		return nil
	}
	if s.cfg.URI == "" {
		// Built from a pre-connected collection.
		return nil
	}

	opts := options.Client().
		ApplyURI(s.cfg.URI).
		SetServerSelectionTimeout(s.cfg.ServerSelectionTimeout).
		SetHeartbeatInterval(s.cfg.HeartbeatInterval).
		SetServerMonitor(s.events.serverMonitor())

	client, err := s.deps.connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := s.deps.ping(ctx, client); err != nil {
		_ = s.deps.disconnect(ctx, client)
		return fmt.Errorf("%w: %w", ErrPing, err)
	}

	coll := client.Database(s.cfg.Database).Collection(CollectionName)
	index := mongo.IndexModel{Keys: bson.D{{Key: "date", Value: -1}}}
	if err := s.deps.createIndex(ctx, coll, index); err != nil {
		s.events.reportError(fmt.Errorf("create date index: %w", err))
	}

	s.client = client
	s.coll = coll
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.deps.disconnect(ctx, s.client)
	s.client = nil
	s.coll = nil
	if err != nil {
		return fmt.Errorf("mongo disconnect failed: %w", err)
	}
	return nil
}

func (s *Store) collection() (*mongo.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coll == nil {
		return nil, storage.ErrNotConnected
	}
	return s.coll, nil
}

func (s *Store) List(ctx context.Context) ([]core.Expense, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}

	var docs []expenseDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}

	expenses := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		expenses = append(expenses, d.toExpense())
	}
	return expenses, nil
}

func (s *Store) Get(ctx context.Context, id string) (core.Expense, error) {
	oid, err := objectID(id)
	if err != nil {
		return core.Expense{}, err
	}
	coll, err := s.collection()
	if err != nil {
		return core.Expense{}, err
	}

	var doc expenseDocument
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return core.Expense{}, notFoundOr(err, "find expense")
	}
	return doc.toExpense(), nil
}

func (s *Store) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	coll, err := s.collection()
	if err != nil {
		return core.Expense{}, err
	}

	doc := expenseDocument{
		ID:          primitive.NewObjectID(),
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date.UTC().Truncate(time.Millisecond),
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return doc.toExpense(), nil
}

func (s *Store) Update(ctx context.Context, id string, e core.Expense) (core.Expense, error) {
	oid, err := objectID(id)
	if err != nil {
		return core.Expense{}, err
	}
	coll, err := s.collection()
	if err != nil {
		return core.Expense{}, err
	}

	update := bson.M{"$set": bson.M{
		"description": e.Description,
		"amount":      e.Amount,
		"date":        e.Date.UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc expenseDocument
	if err := coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return core.Expense{}, notFoundOr(err, "update expense")
	}
	return doc.toExpense(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	coll, err := s.collection()
	if err != nil {
		return err
	}

	res, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	if err := core.ValidateID(id); err != nil {
		return primitive.NilObjectID, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &core.InvalidIdentifierError{ID: id}
	}
	return oid, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func databaseFromURI(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return defaultDatabase
	}
	return cs.Database
}

var (
	_ storage.ExpenseRepository = (*Store)(nil)
	_ database.Connector        = (*Store)(nil)
	_ database.EventSource      = (*Store)(nil)
)
