// Tests for the table writer.
package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

func TestWriter_CreateAndUpdate(t *testing.T) {
	b := setupBackend(t)

	created := mustCreate(t, b, types.TableRoutes, route("R1"))
	id := mustID(t, created)

	stored := get(t, b, types.TableRoutes, id)
	assert.Equal(t, "R1", stored["route_id"])
	assert.Equal(t, int64(3), stored["route_type"])
	assert.Nil(t, stored["route_long_name"])

	doc := route("R1")
	doc["route_long_name"] = "Harbour Line"
	mustUpdate(t, b, types.TableRoutes, id, doc)

	stored = get(t, b, types.TableRoutes, id)
	assert.Equal(t, "Harbour Line", stored["route_long_name"])
}

func TestWriter_CreateValidation(t *testing.T) {
	b := setupBackend(t)

	tests := []struct {
		name    string
		table   string
		doc     types.Document
		message string
	}{
		{
			name:    "null document",
			table:   types.TableRoutes,
			doc:     nil,
			message: "routes document must not be null",
		},
		{
			name:    "missing required fields",
			table:   types.TableRoutes,
			doc:     types.Document{"route_id": "R9"},
			message: "the following field(s) are missing from routes object: route_type",
		},
		{
			name:    "missing key",
			table:   types.TableRoutes,
			doc:     types.Document{"route_type": 3},
			message: "routes key field route_id must not be null",
		},
		{
			name:    "empty key is null",
			table:   types.TableRoutes,
			doc:     types.Document{"route_id": "", "route_type": 3},
			message: "routes key field route_id must not be null",
		},
		{
			name:    "bad integer",
			table:   types.TableRoutes,
			doc:     types.Document{"route_id": "R9", "route_type": "bus"},
			message: "routes.route_type must be an integer, got bus",
		},
		{
			name:    "missing child collection",
			table:   types.TablePatterns,
			doc:     types.Document{"pattern_id": "P1", "route_id": "R1", "shapes": []types.Document{}},
			message: "patterns object must contain a pattern_stops array",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tryCreate(b, tt.table, tt.doc)
			require.ErrorIs(t, err, types.ErrValidation)
			assert.EqualError(t, err, tt.message)
		})
	}
}

func TestWriter_DuplicateKey(t *testing.T) {
	b := setupBackend(t)
	mustCreate(t, b, types.TableRoutes, route("R1"))

	_, err := tryCreate(b, types.TableRoutes, route("R1"))
	require.ErrorIs(t, err, types.ErrConflict)
	var conflict *types.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "route_id", conflict.Field)
	assert.Equal(t, 1, conflict.Count)
	assert.Equal(t, "routes route_id=R1 is already used by 1 other routes", conflict.Message)
}

func TestWriter_UniqueIndexBacksKeyCheck(t *testing.T) {
	b := setupBackend(t)
	mustCreate(t, b, types.TableRoutes, route("R1"))
	ctx := context.Background()

	// A row written around the key check still hits the unique index.
	_, err := b.db.ExecContext(ctx, `INSERT INTO "routes" ("route_id") VALUES ('R1')`)
	require.Error(t, err)
	assert.True(t, sqliteDialect{}.uniqueViolation(err))

	routes, ok := types.StandardCatalog().Table(types.TableRoutes)
	require.True(t, ok)
	err = classify(sqliteDialect{}, routes, "create", &types.StorageError{Op: "inserting routes", Err: err})
	require.ErrorIs(t, err, types.ErrConflict)
	var conflict *types.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, types.TableRoutes, conflict.Table)
	assert.Equal(t, "route_id", conflict.Field)

	// NULL keys never collide.
	_, err = b.db.ExecContext(ctx, `INSERT INTO "agency" ("agency_name") VALUES ('a'), ('b')`)
	assert.NoError(t, err)
}

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		d    dialect
		err  error
		want bool
	}{
		{name: "postgres unique", d: postgresDialect{},
			err: &types.StorageError{Op: "op", Err: &pgconn.PgError{Code: "23505"}}, want: true},
		{name: "postgres foreign key", d: postgresDialect{},
			err: &types.StorageError{Op: "op", Err: &pgconn.PgError{Code: "23503"}}},
		{name: "postgres other", d: postgresDialect{}, err: errors.New("connection reset")},
		{name: "sqlite other", d: sqliteDialect{}, err: errors.New("disk I/O error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.uniqueViolation(tt.err))
		})
	}
}

func TestInsertedID(t *testing.T) {
	id, err := insertedID("inserting routes", []int64{7})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	// No id back from an insert is a storage failure, never a missing row.
	_, err = insertedID("inserting routes", nil)
	require.ErrorIs(t, err, types.ErrStorage)
	assert.ErrorIs(t, err, errNoID)
	assert.NotErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, "storage", result(err))
}

func TestWriter_UpdateKeepsOwnKey(t *testing.T) {
	b := setupBackend(t)
	first := mustCreate(t, b, types.TableRoutes, route("R1"))
	second := mustCreate(t, b, types.TableRoutes, route("R2"))

	mustUpdate(t, b, types.TableRoutes, mustID(t, first), route("R1"))

	_, err := tryUpdate(b, types.TableRoutes, mustID(t, second), route("R1"))
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestWriter_UpdateMissingRow(t *testing.T) {
	b := setupBackend(t)

	_, err := tryUpdate(b, types.TableRoutes, 999, route("R1"))
	require.ErrorIs(t, err, types.ErrNotFound)
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(999), nf.ID)
}

func TestWriter_GeneratedTripKey(t *testing.T) {
	b := setupBackend(t)
	seedNetwork(t, b)

	for _, key := range []any{nil, ""} {
		doc := trip("R1", "WKDY", "")
		doc["trip_id"] = key
		created := mustCreate(t, b, types.TableTrips, doc)

		tripID, ok := created.Text("trip_id")
		require.True(t, ok)
		_, err := uuid.Parse(tripID)
		assert.NoError(t, err)
		assert.Equal(t, tripID, get(t, b, types.TableTrips, mustID(t, created))["trip_id"])
	}
}

func TestWriter_OptionalAgencyKey(t *testing.T) {
	b := setupBackend(t)
	agency := func(id string) types.Document {
		return types.Document{
			"agency_id": id, "agency_name": "Metro", "agency_url": "https://metro.example",
			"agency_timezone": "America/Los_Angeles",
		}
	}

	only := mustCreate(t, b, types.TableAgency, agency(""))
	assert.Nil(t, only["agency_id"])
	mustUpdate(t, b, types.TableAgency, mustID(t, only), agency(""))

	_, err := tryCreate(b, types.TableAgency, agency(""))
	require.ErrorIs(t, err, types.ErrValidation)
	assert.EqualError(t, err, "agency key field agency_id must not be null when more than one agency exists")

	mustCreate(t, b, types.TableAgency, agency("MT"))
}

func TestWriter_CreateAllIsAtomic(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	w, err := b.Writer(ctx, types.TableRoutes)
	require.NoError(t, err)
	_, err = w.CreateAll(ctx, []types.Document{route("R1"), route("R2"), route("R1")}, true)
	require.ErrorIs(t, err, types.ErrConflict)

	assert.Empty(t, where(t, b, types.TableRoutes, "route_type", "3"))

	w, err = b.Writer(ctx, types.TableRoutes)
	require.NoError(t, err)
	docs, err := w.CreateAll(ctx, []types.Document{route("R1"), route("R2")}, true)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.NotEqual(t, mustID(t, docs[0]), mustID(t, docs[1]))
}

func TestWriter_UpdateAllCreatesDocumentsWithoutID(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	existing := mustCreate(t, b, types.TableRoutes, route("R1"))

	changed := route("R1")
	changed[types.IDField] = mustID(t, existing)
	changed["route_desc"] = "changed"

	w, err := b.Writer(ctx, types.TableRoutes)
	require.NoError(t, err)
	docs, err := w.UpdateAll(ctx, []types.Document{changed, route("R2")}, true)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "changed", get(t, b, types.TableRoutes, mustID(t, existing))["route_desc"])
	assert.Len(t, where(t, b, types.TableRoutes, "route_id", "R2"), 1)
}

func TestWriter_FailureRollsBackAndCloses(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	w, err := b.Writer(ctx, types.TableRoutes)
	require.NoError(t, err)
	_, err = w.Create(ctx, route("R1"), false)
	require.NoError(t, err)

	_, err = w.Create(ctx, types.Document{"route_id": "R2"}, false)
	require.ErrorIs(t, err, types.ErrValidation)

	_, err = w.Create(ctx, route("R3"), false)
	assert.ErrorIs(t, err, types.ErrWriterClosed)
	assert.ErrorIs(t, w.Commit(), types.ErrWriterClosed)
	assert.NoError(t, w.Close())

	assert.Empty(t, where(t, b, types.TableRoutes, "route_id", "R1"))
}

func TestWriter_CloseDiscardsUncommittedWork(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()

	w, err := b.Writer(ctx, types.TableRoutes)
	require.NoError(t, err)
	_, err = w.Create(ctx, route("R1"), false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Empty(t, where(t, b, types.TableRoutes, "route_id", "R1"))
}

func TestWriter_ForTableSharesTransaction(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	mustCreate(t, b, types.TableStops, stop("S1"))

	routes, err := b.Writer(ctx, types.TableRoutes)
	require.NoError(t, err)
	_, err = routes.Create(ctx, route("R1"), false)
	require.NoError(t, err)

	patterns, err := routes.ForTable(types.TablePatterns)
	require.NoError(t, err)
	_, err = patterns.Create(ctx, pattern("P1", "R1", halt("S1", 0, 0, 0)), false)
	require.NoError(t, err)

	_, err = routes.ForTable("vehicles")
	assert.ErrorIs(t, err, types.ErrTableNotFound)

	require.NoError(t, routes.Commit())
	assert.Len(t, where(t, b, types.TablePatterns, "route_id", "R1"), 1)

	_, err = patterns.Create(ctx, pattern("P2", "R1"), true)
	assert.ErrorIs(t, err, types.ErrWriterClosed)
	_, err = routes.ForTable(types.TableTrips)
	assert.ErrorIs(t, err, types.ErrWriterClosed)
}

func TestWriter_Delete(t *testing.T) {
	b := setupBackend(t)
	created := mustCreate(t, b, types.TableRoutes, route("R1"))

	n, err := tryDelete(b, types.TableRoutes, mustID(t, created))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = tryDelete(b, types.TableRoutes, mustID(t, created))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestWriter_DeleteWhere(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	mustCreate(t, b, types.TableRoutes, route("R1"))
	mustCreate(t, b, types.TableRoutes, route("R2"))
	ferry := route("F1")
	ferry["route_type"] = 4
	mustCreate(t, b, types.TableRoutes, ferry)

	deleteWhere := func(field, value string) (int, error) {
		w, err := b.Writer(ctx, types.TableRoutes)
		require.NoError(t, err)
		defer w.Close()
		return w.DeleteWhere(ctx, field, value, true)
	}

	n, err := deleteWhere("route_type", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, where(t, b, types.TableRoutes, "route_type", "4"), 1)

	n, err = deleteWhere("route_type", "3")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = deleteWhere("color", "red")
	assert.ErrorIs(t, err, types.ErrValidation)
}
