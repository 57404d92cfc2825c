package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

func TestStmt_Placeholders(t *testing.T) {
	tests := []struct {
		name string
		d    dialect
		want string
	}{
		{name: "sqlite", d: sqliteDialect{}, want: `SELECT "a" FROM "t" WHERE "b" = ? AND "c" IN (?, ?)`},
		{name: "postgres", d: postgresDialect{}, want: `SELECT "a" FROM "t" WHERE "b" = $1 AND "c" IN ($2, $3)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStmt(tt.d, "test").sql("SELECT ").ident("a").sql(" FROM ").ident("t").
				sql(" WHERE ").ident("b").sql(" = ").param(1).sql(" AND ").ident("c").inList([]string{"x", "y"})
			require.NoError(t, s.err)
			assert.Equal(t, tt.want, s.String())
			assert.Equal(t, []any{1, "x", "y"}, s.args)
		})
	}
}

func TestStmt_RejectsIdentifiers(t *testing.T) {
	for _, name := range []string{`a"; DROP TABLE stops; --`, "Routes", "1abc", ""} {
		s := newStmt(sqliteDialect{}, "test").sql("SELECT * FROM ").ident(name)
		assert.Error(t, s.err, "identifier %q", name)
		assert.NotContains(t, s.String(), "DROP")
	}
}

func TestInsertAndUpdateStatements(t *testing.T) {
	tbl := &types.Table{
		Name:     "widgets",
		Fields:   []types.Field{{Name: "widget_id", Type: types.FieldString}, {Name: "size", Type: types.FieldInteger}},
		KeyField: "widget_id",
	}

	ins := insertStmt(sqliteDialect{}, tbl, [][]any{{"w1", int64(1)}, {"w2", int64(2)}})
	assert.Equal(t, `INSERT INTO "widgets" ("widget_id", "size") VALUES (?, ?), (?, ?)`, ins.String())
	assert.Equal(t, []any{"w1", int64(1), "w2", int64(2)}, ins.args)

	upd := updateStmt(postgresDialect{}, tbl, 7, []any{"w1", nil})
	assert.Equal(t, `UPDATE "widgets" SET "widget_id" = $1, "size" = $2 WHERE id = $3`, upd.String())
	assert.Equal(t, []any{"w1", nil, int64(7)}, upd.args)

	sel := selectStmt(sqliteDialect{}, tbl, "test")
	assert.Equal(t, `SELECT id, "widget_id", "size" FROM "widgets"`, sel.String())
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2}}, chunk([]int{1, 2}, 2))
	assert.Equal(t, [][]int{{1}, {2}}, chunk([]int{1, 2}, 0))
	assert.Nil(t, chunk([]int(nil), 3))
}

func TestDialectFor(t *testing.T) {
	d, err := dialectFor(types.BackendPostgres)
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.driver())
	assert.Equal(t, "DOUBLE PRECISION", d.columnType(types.FieldDouble))

	d, err = dialectFor(types.BackendSQLite)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.driver())
	assert.Equal(t, "INTEGER", d.columnType(types.FieldTime))

	_, err = dialectFor("oracle")
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{in: "00:00:00", want: 0, ok: true},
		{in: "06:30:15", want: 6*3600 + 30*60 + 15, ok: true},
		{in: "25:10:00", want: 25*3600 + 10*60, ok: true},
		{in: "06:60:00"},
		{in: "06:30"},
		{in: "a:b:c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseClock(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrepareRow(t *testing.T) {
	stopTimes, ok := types.StandardCatalog().Table(types.TableStopTimes)
	require.True(t, ok)

	doc := types.Document{
		"trip_id":        "T1",
		"stop_sequence":  "3",
		"stop_id":        "S1",
		"arrival_time":   "08:00:00",
		"departure_time": 28830,
		"stop_headsign":  "",
	}
	row, err := prepareRow(stopTimes, doc)
	require.NoError(t, err)
	assert.Equal(t, "T1", row[0])
	assert.Equal(t, int64(3), row[1])
	assert.Equal(t, int64(28800), row[3])
	assert.Equal(t, int64(28830), row[4])
	assert.Nil(t, doc["stop_headsign"])
	assert.Contains(t, doc, "timepoint")

	_, err = prepareRow(stopTimes, types.Document{"stop_sequence": 1})
	require.ErrorIs(t, err, types.ErrValidation)
	assert.EqualError(t, err, "the following field(s) are missing from stop_times object: trip_id, stop_id")

	_, err = prepareRow(stopTimes, types.Document{"trip_id": "T1", "stop_sequence": 1, "stop_id": "S1", "arrival_time": "8am"})
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestStringListValues(t *testing.T) {
	f := types.Field{Name: "dates", Type: types.FieldStringList}

	for _, raw := range []any{[]string{"a", "b"}, []any{"a", nil, "b"}, " a, b ,"} {
		v, err := bindValue("t", f, raw)
		require.NoError(t, err)
		assert.Equal(t, `["a","b"]`, v)
		assert.Equal(t, []string{"a", "b"}, documentValue(f, v))
	}

	_, err := bindValue("t", f, 42)
	assert.ErrorIs(t, err, types.ErrValidation)
}
