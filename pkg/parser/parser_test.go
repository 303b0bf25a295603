package parser

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseCreate(t *testing.T, sql string) *CreateView {
	t.Helper()
	stmt, err := Parse(sql)
	require.NoError(t, err)
	cv, ok := stmt.(*CreateView)
	require.True(t, ok, "expected *CreateView, got %T", stmt)
	return cv
}

func firstSelect(t *testing.T, q *Query) *SelectStmt {
	t.Helper()
	require.NotNil(t, q)
	sel, ok := q.Body.(*SelectStmt)
	require.True(t, ok, "expected *SelectStmt body, got %T", q.Body)
	return sel
}

func TestParse_CreateViewHeader(t *testing.T) {
	tests := []struct {
		name        string
		sql         string
		wantName    core.QualifiedName
		wantKind    ViewKind
		wantTo      string
		orReplace   bool
		ifNotExists bool
	}{
		{
			name:     "plain view",
			sql:      "CREATE VIEW test.v AS SELECT 1",
			wantName: core.QualifiedName{Schema: "test", Name: "v"},
			wantKind: ViewPlain,
		},
		{
			name:      "or replace",
			sql:       "create or replace view v as select 1",
			wantName:  core.QualifiedName{Name: "v"},
			wantKind:  ViewPlain,
			orReplace: true,
		},
		{
			name:        "if not exists with quoted name",
			sql:         "CREATE VIEW IF NOT EXISTS `my db`.\"my view\" AS SELECT 1",
			wantName:    core.QualifiedName{Schema: "my db", Name: "my view"},
			wantKind:    ViewPlain,
			ifNotExists: true,
		},
		{
			name:     "materialized view with TO target",
			sql:      "CREATE MATERIALIZED VIEW db.mv TO db.target (`id` UInt64, `n` Nullable(String)) AS SELECT id, n FROM db.src",
			wantName: core.QualifiedName{Schema: "db", Name: "mv"},
			wantKind: ViewMaterialized,
			wantTo:   "db.target",
		},
		{
			name: "materialized view with engine clauses",
			sql: `CREATE MATERIALIZED VIEW db.mv ON CLUSTER main
ENGINE = ReplicatedMergeTree('/clickhouse/{shard}/mv', '{replica}')
PARTITION BY toYYYYMM(ts)
ORDER BY (id, ts)
TTL ts + INTERVAL 30 DAY TO VOLUME 'cold'
SETTINGS index_granularity = 8192
POPULATE
AS SELECT id, ts FROM db.events`,
			wantName: core.QualifiedName{Schema: "db", Name: "mv"},
			wantKind: ViewMaterialized,
		},
		{
			name:     "refreshable materialized view",
			sql:      "CREATE MATERIALIZED VIEW db.mv REFRESH EVERY 1 HOUR APPEND TO db.t AS SELECT now() AS ts",
			wantName: core.QualifiedName{Schema: "db", Name: "mv"},
			wantKind: ViewMaterialized,
			wantTo:   "db.t",
		},
		{
			name:     "live view",
			sql:      "CREATE LIVE VIEW lv WITH REFRESH 5 AS SELECT count() FROM db.t",
			wantName: core.QualifiedName{Name: "lv"},
			wantKind: ViewLive,
		},
		{
			name:     "window view",
			sql:      "CREATE WINDOW VIEW db.wv TO db.out WATERMARK=ASCENDING AS SELECT count(id), tumbleStart(w_id) AS w FROM db.data GROUP BY tumble(ts, INTERVAL '10' SECOND) AS w_id",
			wantName: core.QualifiedName{Schema: "db", Name: "wv"},
			wantKind: ViewWindow,
			wantTo:   "db.out",
		},
		{
			name:     "attach with definer and column list",
			sql:      "ATTACH VIEW test.v (`a` UInt8) DEFINER = default SQL SECURITY DEFINER AS SELECT a FROM test.t",
			wantName: core.QualifiedName{Schema: "test", Name: "v"},
			wantKind: ViewPlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := mustParseCreate(t, tt.sql)
			assert.Equal(t, tt.wantName, cv.Name)
			assert.Equal(t, tt.wantKind, cv.Kind)
			assert.Equal(t, tt.orReplace, cv.OrReplace)
			assert.Equal(t, tt.ifNotExists, cv.IfNotExists)
			if tt.wantTo == "" {
				assert.Nil(t, cv.To)
			} else {
				require.NotNil(t, cv.To)
				assert.Equal(t, tt.wantTo, cv.To.String())
			}
			assert.NotNil(t, cv.Query)
		})
	}
}

func TestParse_ClickHouseGrammar(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"array and tuple literals", "SELECT [1, 2, 3] AS arr, (1, 'a') AS tup, [] AS empty, () AS unit"},
		{"lambda", "SELECT arrayMap(x -> x * 2, [1, 2]) AS doubled, arrayFilter((k, v) -> v > 0, ks, vs) AS f"},
		{"higher order with nested lambda", "SELECT arrayMap(x -> arrayMap(y -> x + y, [1]), [2])"},
		{"parametric aggregate", "SELECT quantile(0.9)(latency), quantiles(0.5, 0.99)(latency) FROM db.t"},
		{"distinct aggregate", "SELECT count(DISTINCT user_id), uniqExact(user_id) FROM db.t"},
		{"window function", "SELECT row_number() OVER (PARTITION BY a ORDER BY b DESC ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW) FROM db.t"},
		{"named window", "SELECT sum(x) OVER w FROM db.t WINDOW w AS (PARTITION BY y)"},
		{"case cast interval", "SELECT CASE WHEN a > 1 THEN 'x' ELSE 'y' END, CAST(a AS Nullable(String)), CAST(a, 'UInt8'), a::Int32, now() - INTERVAL 1 DAY FROM db.t"},
		{"ternary", "SELECT a > 1 ? 'big' : 'small' FROM db.t"},
		{"subscript and tuple access", "SELECT arr[1], tup.1, m['key'], t.col.sub FROM db.t"},
		{"in variants", "SELECT 1 FROM db.t WHERE a IN (1, 2) AND b NOT IN (SELECT b FROM db.u) AND c GLOBAL IN db.w AND d GLOBAL NOT IN (SELECT 1)"},
		{"like between is null", "SELECT 1 FROM db.t WHERE a LIKE '%x%' AND b NOT ILIKE 'y' AND c BETWEEN 1 AND 10 AND d IS NOT NULL AND e IS NULL"},
		{"exists", "SELECT 1 FROM db.t WHERE EXISTS (SELECT 1 FROM db.u WHERE u.id = t.id)"},
		{"string concat and comparison", "SELECT a || '-' || b, a == b, a != b, a <> b FROM db.t"},
		{"final sample", "SELECT * FROM db.t AS x FINAL SAMPLE 1/10 OFFSET 1/2"},
		{"prewhere", "SELECT * FROM db.t PREWHERE a = 1 WHERE b = 2"},
		{"group by modifiers", "SELECT a, count() FROM db.t GROUP BY a WITH ROLLUP WITH TOTALS HAVING count() > 1"},
		{"group by all", "SELECT a, count() FROM db.t GROUP BY ALL"},
		{"grouping sets", "SELECT a, b FROM db.t GROUP BY GROUPING SETS ((a), (b))"},
		{"order by with fill", "SELECT d FROM db.t ORDER BY d ASC WITH FILL FROM 1 TO 10 STEP 1, e DESC NULLS LAST"},
		{"limit by then limit", "SELECT * FROM db.t ORDER BY a LIMIT 2 BY a LIMIT 10"},
		{"limit offset forms", "SELECT * FROM db.t LIMIT 5, 10"},
		{"limit offset keyword", "SELECT * FROM db.t LIMIT 10 OFFSET 5"},
		{"limit with ties", "SELECT * FROM db.t ORDER BY a LIMIT 3 WITH TIES"},
		{"offset fetch", "SELECT * FROM db.t ORDER BY a OFFSET 5 ROWS FETCH FIRST 10 ROWS ONLY"},
		{"settings and format", "SELECT * FROM db.t SETTINGS max_threads = 8, join_use_nulls = 1 FORMAT JSONEachRow"},
		{"distinct on and top", "SELECT DISTINCT ON (a) a, b FROM db.t"},
		{"top", "SELECT TOP 10 a FROM db.t"},
		{"star modifiers", "SELECT * EXCEPT (a, b) REPLACE (c + 1 AS c) APPLY(toString) FROM db.t"},
		{"columns matcher", "SELECT COLUMNS('^a') APPLY(sum) FROM db.t"},
		{"keyword named functions", "SELECT any(a), left(s, 2), right(s, 1), array(1, 2) FROM db.t"},
		{"keyword column names", "SELECT final, sample, format FROM db.t"},
		{"extract and substring", "SELECT EXTRACT(DAY FROM d), substring(s FROM 1 FOR 2), trim(BOTH ' ' FROM s) FROM db.t"},
		{"typed literals", "SELECT DATE '2024-01-01', TIMESTAMP '2024-01-01 00:00:00'"},
		{"query parameter", "SELECT * FROM db.t WHERE id = {id:UInt32}"},
		{"inline alias", "SELECT (a + 1 AS b) * 2, f(c AS d) FROM db.t"},
		{"identifier starting with digit", "SELECT 1abc FROM db.`1table`"},
		{"comments", "SELECT a -- trailing\n, /* block /* nested */ */ b # hash\nFROM db.t"},
		{"with cte", "WITH x AS (SELECT 1) SELECT * FROM x"},
		{"with scalar", "WITH 1 AS one, (SELECT max(a) FROM db.t) AS mx SELECT one, mx"},
		{"with recursive", "WITH RECURSIVE r AS (SELECT 1 AS n UNION ALL SELECT n + 1 FROM r WHERE n < 10) SELECT * FROM r"},
		{"union chain", "SELECT a FROM db.t UNION ALL SELECT a FROM db.u UNION DISTINCT SELECT a FROM db.w"},
		{"except intersect", "SELECT a FROM db.t EXCEPT SELECT a FROM db.u INTERSECT SELECT a FROM db.w"},
		{"parenthesized union", "(SELECT 1) UNION ALL (SELECT 2)"},
		{"union member with own with", "SELECT 1 UNION ALL WITH 2 AS two SELECT two"},
		{"trailing semicolon", "SELECT 1;"},
		{"double quoted identifiers", `SELECT "a" FROM "db"."t"`},
		{"negative numbers and exponents", "SELECT -1, 1e10, 1.5e-3, 0xFF"},
		{"escaped strings", `SELECT 'it\'s', 'a''b'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql)
			require.NoError(t, err)
		})
	}
}

func TestParse_FromClause(t *testing.T) {
	t.Run("joins of every kind", func(t *testing.T) {
		q, err := ParseQuery(`SELECT * FROM db.a
			GLOBAL ANY LEFT JOIN db.b ON a.id = b.id
			ASOF JOIN db.c USING (id, ts)
			SEMI RIGHT JOIN db.d USING id
			CROSS JOIN db.e
			PASTE JOIN db.f
			FULL OUTER JOIN db.g ON 1
			LEFT ANTI JOIN db.h ON a.x = h.x, db.i`)
		require.NoError(t, err)

		var kinds []string
		var tables []string
		var walk func(TableExpr)
		walk = func(te TableExpr) {
			switch v := te.(type) {
			case *JoinExpr:
				walk(v.Left)
				kinds = append(kinds, v.Kind)
				walk(v.Right)
			case *TableName:
				tables = append(tables, v.Name.String())
			}
		}
		walk(firstSelect(t, q).From)

		assert.Equal(t, []string{"GLOBAL ANY LEFT", "ASOF", "SEMI RIGHT", "CROSS", "PASTE", "FULL OUTER", "LEFT ANTI", ","}, kinds)
		assert.Equal(t, []string{"db.a", "db.b", "db.c", "db.d", "db.e", "db.f", "db.g", "db.h", "db.i"}, tables)
	})

	t.Run("array join", func(t *testing.T) {
		q, err := ParseQuery("SELECT s, n FROM db.t LEFT ARRAY JOIN nums AS n, [1, 2] AS k")
		require.NoError(t, err)
		aj, ok := firstSelect(t, q).From.(*ArrayJoin)
		require.True(t, ok, "expected *ArrayJoin, got %T", firstSelect(t, q).From)
		assert.True(t, aj.LeftOuter)
		require.Len(t, aj.Items, 2)
		assert.Equal(t, "n", aj.Items[0].Alias)
		assert.Equal(t, "k", aj.Items[1].Alias)
	})

	t.Run("table function", func(t *testing.T) {
		q, err := ParseQuery("SELECT * FROM remote('host:9000', db, t) AS r")
		require.NoError(t, err)
		tf, ok := firstSelect(t, q).From.(*TableFunction)
		require.True(t, ok)
		assert.Equal(t, "remote", tf.Name)
		assert.Equal(t, "r", tf.Alias)
		assert.Len(t, tf.Args, 3)
	})

	t.Run("view table function with bare subquery", func(t *testing.T) {
		q, err := ParseQuery("SELECT * FROM view(SELECT a FROM db.t)")
		require.NoError(t, err)
		tf, ok := firstSelect(t, q).From.(*TableFunction)
		require.True(t, ok)
		require.Len(t, tf.Args, 1)
		_, isSubquery := tf.Args[0].(*SubqueryExpr)
		assert.True(t, isSubquery)
	})

	t.Run("derived table and paren join", func(t *testing.T) {
		q, err := ParseQuery("SELECT * FROM (SELECT 1 AS x) sub, (db.a JOIN db.b USING id) AS ab")
		require.NoError(t, err)
		join, ok := firstSelect(t, q).From.(*JoinExpr)
		require.True(t, ok)
		dt, ok := join.Left.(*DerivedTable)
		require.True(t, ok)
		assert.Equal(t, "sub", dt.Alias)
		pt, ok := join.Right.(*ParenTable)
		require.True(t, ok)
		assert.Equal(t, "ab", pt.Alias)
	})

	t.Run("table alias with final", func(t *testing.T) {
		q, err := ParseQuery("SELECT * FROM db.t x FINAL")
		require.NoError(t, err)
		tn, ok := firstSelect(t, q).From.(*TableName)
		require.True(t, ok)
		assert.Equal(t, "x", tn.Alias)
		assert.True(t, tn.Final)
	})
}

func TestParse_WithEntries(t *testing.T) {
	q, err := ParseQuery("WITH t AS (SELECT 1), 5 AS five, x AS y SELECT * FROM t")
	require.NoError(t, err)
	require.NotNil(t, q.With)
	require.Len(t, q.With.Entries, 3)

	assert.True(t, q.With.Entries[0].IsCTE())
	assert.Equal(t, "t", q.With.Entries[0].Name)
	assert.False(t, q.With.Entries[1].IsCTE())
	assert.Equal(t, "five", q.With.Entries[1].Name)
	assert.False(t, q.With.Entries[2].IsCTE())
	assert.Equal(t, "y", q.With.Entries[2].Name)
}

func TestParse_InTableOperand(t *testing.T) {
	q, err := ParseQuery("SELECT 1 FROM db.t WHERE id IN db.allowed")
	require.NoError(t, err)
	in, ok := firstSelect(t, q).Where.(*InExpr)
	require.True(t, ok)
	require.NotNil(t, in.Table)
	assert.Equal(t, "db.allowed", in.Table.Name.String())
}

func TestParse_TrailingComment(t *testing.T) {
	cv := mustParseCreate(t, "CREATE VIEW db.v AS SELECT a FROM db.t COMMENT 'daily rollup'")
	assert.Equal(t, "daily rollup", cv.Comment)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		wantLine   int
		wantColumn int
		wantMsg    string
	}{
		{name: "empty input", sql: "", wantLine: 1, wantColumn: 1, wantMsg: "unsupported statement"},
		{name: "not a view", sql: "DROP TABLE x", wantLine: 1, wantColumn: 1, wantMsg: "unsupported statement"},
		{name: "missing AS", sql: "CREATE VIEW v SELECT 1", wantMsg: "expected AS SELECT"},
		{name: "missing select list", sql: "CREATE VIEW v AS SELECT FROM t", wantLine: 1, wantColumn: 25, wantMsg: "expected expression"},
		{name: "unbalanced paren", sql: "SELECT (1 + 2 FROM t", wantMsg: "unexpected token"},
		{name: "unterminated string", sql: "SELECT 'abc", wantLine: 1, wantColumn: 8, wantMsg: "unterminated string"},
		{name: "unterminated comment", sql: "SELECT 1 /* oops", wantMsg: "unterminated block comment"},
		{name: "garbage after statement", sql: "SELECT 1 FROM t )", wantLine: 1, wantColumn: 17, wantMsg: "after end of statement"},
		{name: "three part table name", sql: "SELECT * FROM a.b.c", wantMsg: "too many parts"},
		{name: "dangling operator", sql: "SELECT 1 +", wantMsg: "expected expression"},
		{name: "error on later line", sql: "CREATE VIEW v AS\nSELECT a\nFROM t WHERE ,", wantLine: 3, wantColumn: 14, wantMsg: "expected expression"},
		{name: "join without table", sql: "SELECT * FROM a LEFT JOIN", wantMsg: "expected table name"},
		{name: "illegal character", sql: "SELECT a ! b", wantMsg: "unexpected character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.sql)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "error should be *ParseError, got %T", err)
			assert.Contains(t, perr.Message, tt.wantMsg)
			if tt.wantLine != 0 {
				assert.Equal(t, tt.wantLine, perr.Pos.Line, "line")
				assert.Equal(t, tt.wantColumn, perr.Pos.Column, "column")
			}
			assert.GreaterOrEqual(t, perr.Offset(), 0)
		})
	}
}
