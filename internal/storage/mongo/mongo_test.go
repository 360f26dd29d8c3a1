package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expenses/internal/core"
	"expenses/internal/storage"
)

func expenseDoc(id primitive.ObjectID, desc string, amount float64, date time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "description", Value: desc},
		{Key: "amount", Value: amount},
		{Key: "date", Value: primitive.NewDateTimeFromTime(date)},
	}
}

func TestStore_Repository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "expenses.expenses"
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	mt.Run("list decodes documents", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		id1, id2 := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			expenseDoc(id1, "Rent", 900, feb),
			expenseDoc(id2, "Food", 50.5, jan),
		))

		list, err := s.List(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, core.Expense{ID: id1.Hex(), Description: "Rent", Amount: 900, Date: feb}, list[0])
		assert.Equal(t, id2.Hex(), list[1].ID)
	})

	mt.Run("list of empty collection is an empty slice", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		list, err := s.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	mt.Run("list surfaces command errors", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 13, Name: "Unauthorized", Message: "not authorized",
		}))

		_, err := s.List(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, core.ErrNotFound)
	})

	mt.Run("get found", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, expenseDoc(id, "Cinema", 12, jan)))

		got, err := s.Get(context.Background(), id.Hex())
		require.NoError(t, err)
		assert.Equal(t, "Cinema", got.Description)
		assert.True(t, jan.Equal(got.Date))
	})

	mt.Run("get missing", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.Get(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	mt.Run("malformed id never reaches the server", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)

		_, err := s.Get(context.Background(), "abc")
		assert.True(t, core.IsInvalidIdentifier(err))
		_, err = s.Update(context.Background(), "abc", core.Expense{})
		assert.True(t, core.IsInvalidIdentifier(err))
		assert.True(t, core.IsInvalidIdentifier(s.Delete(context.Background(), "abc")))
	})

	mt.Run("create assigns an object id", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		created, err := s.Create(context.Background(), core.Expense{Description: "Taxi", Amount: 20, Date: jan})
		require.NoError(t, err)
		assert.NoError(t, core.ValidateID(created.ID))
		assert.Equal(t, "Taxi", created.Description)
		assert.True(t, jan.Equal(created.Date))
	})

	mt.Run("create write error", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		_, err := s.Create(context.Background(), core.Expense{Description: "Taxi", Amount: 20, Date: jan})
		assert.Error(t, err)
	})

	mt.Run("update returns the new document", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: expenseDoc(id, "Taxi home", 25, feb)},
		))

		updated, err := s.Update(context.Background(), id.Hex(), core.Expense{Description: "Taxi home", Amount: 25, Date: feb})
		require.NoError(t, err)
		assert.Equal(t, id.Hex(), updated.ID)
		assert.Equal(t, 25.0, updated.Amount)
	})

	mt.Run("delete", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(t, s.Delete(context.Background(), primitive.NewObjectID().Hex()))
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		s := NewWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		assert.ErrorIs(t, s.Delete(context.Background(), primitive.NewObjectID().Hex()), core.ErrNotFound)
	})
}

func fakeDeps(connectErr, pingErr error) (Option, *int) {
	disconnects := 0
	return func(d *clientDeps) {
		d.connect = func(context.Context, *options.ClientOptions) (*mongo.Client, error) {
			if connectErr != nil {
				return nil, connectErr
			}
			return &mongo.Client{}, nil
		}
		d.ping = func(context.Context, *mongo.Client) error { return pingErr }
		d.disconnect = func(context.Context, *mongo.Client) error {
			disconnects++
			return nil
		}
		d.createIndex = func(context.Context, *mongo.Collection, mongo.IndexModel) error { return nil }
	}, &disconnects
}

func TestNew_Config(t *testing.T) {
	_, err := New(Config{URI: "  "})
	assert.ErrorIs(t, err, ErrEmptyURI)

	s, err := New(Config{URI: "mongodb://localhost:27017/budget"})
	require.NoError(t, err)
	assert.Equal(t, "budget", s.Database())

	s, err = New(Config{URI: "mongodb://localhost:27017"})
	require.NoError(t, err)
	assert.Equal(t, "expenses", s.Database())

	s, err = New(Config{URI: "mongodb://localhost:27017/budget", Database: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", s.Database())
}

func TestStore_ConnectLifecycle(t *testing.T) {
	opt, disconnects := fakeDeps(nil, nil)
	s, err := New(Config{URI: "mongodb://localhost:27017/expenses"}, opt)
	require.NoError(t, err)

	_, err = s.List(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotConnected)

	require.NoError(t, s.Connect(context.Background()))
	_, err = s.collection()
	assert.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, *disconnects)
	_, err = s.collection()
	assert.ErrorIs(t, err, storage.ErrNotConnected)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 1, *disconnects)
}

func TestStore_ConnectFailures(t *testing.T) {
	boom := errors.New("boom")

	opt, _ := fakeDeps(boom, nil)
	s, err := New(Config{URI: "mongodb://localhost:27017"}, opt)
	require.NoError(t, err)
	err = s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnect)
	assert.ErrorIs(t, err, boom)

	opt, disconnects := fakeDeps(nil, boom)
	s, err = New(Config{URI: "mongodb://localhost:27017"}, opt)
	require.NoError(t, err)
	err = s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrPing)
	assert.Equal(t, 1, *disconnects, "client released after failed ping")
	_, err = s.collection()
	assert.ErrorIs(t, err, storage.ErrNotConnected)
}
