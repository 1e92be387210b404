package sqlguard

import (
	"reflect"
	"testing"
)

func TestClassifyAcceptsSelect(t *testing.T) {
	cases := []string{
		"SELECT 1",
		"SELECT id, name FROM users",
		"select * from users where name = 'x'",
		"SELECT id FROM users LIMIT 10",
		"SELECT id FROM users; ",
		"  SELECT count(*) FROM orders  ",
		"WITH recent AS (SELECT * FROM events) SELECT * FROM recent",
		"WITH RECURSIVE t(n) AS (SELECT 1) SELECT n FROM t",
		"WITH a AS (SELECT 1), b AS (SELECT 2) SELECT * FROM a",
		"/* leading comment */ SELECT 1",
		"-- comment\nSELECT 1",
		`SELECT * FROM "Users"`,
		"SELECT 'not; a; separator'",
		"SELECT $$dollar; quoted$$",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindSelect {
			t.Errorf("Classify(%q) = %v (%s), want select", sql, st.Kind, st.Reason)
		}
	}
}

func TestClassifyRejectsStackedStatements(t *testing.T) {
	cases := []string{
		"SELECT 1; DROP TABLE users;",
		"SELECT 1; SELECT 2",
		"SELECT 1;;",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindMalformed {
			t.Errorf("Classify(%q) = %v, want malformed", sql, st.Kind)
		}
	}
}

func TestClassifyRejectsForbiddenKeywords(t *testing.T) {
	cases := []string{
		"INSERT INTO users (id) VALUES (1)",
		"UPDATE users SET name = 'x'",
		"DELETE FROM users",
		"DROP TABLE users",
		"ALTER TABLE users ADD COLUMN x int",
		"CREATE TABLE t (id int)",
		"TRUNCATE users",
		"GRANT ALL ON users TO bob",
		"REVOKE ALL ON users FROM bob",
		"MERGE INTO users USING x ON true",
		"EXECUTE stmt",
		// Mutating keyword hidden mid-statement still rejected.
		"SELECT 1 UNION SELECT 2 FROM (DELETE FROM users RETURNING id) d",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindForbidden {
			t.Errorf("Classify(%q) = %v, want forbidden", sql, st.Kind)
		}
	}
}

func TestClassifyRejectsNonSelectLeadingClause(t *testing.T) {
	cases := []string{
		"EXPLAIN SELECT 1",
		"SHOW work_mem",
		"BEGIN",
		"WITH a AS (SELECT 1) TABLE a",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindForbidden {
			t.Errorf("Classify(%q) = %v, want forbidden", sql, st.Kind)
		}
	}
}

func TestClassifyRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"   ",
		";",
		"SELECT 'unterminated",
		`SELECT "unterminated`,
		"SELECT /* unterminated",
		"SELECT $tag$ unterminated",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindMalformed {
			t.Errorf("Classify(%q) = %v, want malformed", sql, st.Kind)
		}
	}
}

func TestKeywordsInsideStringsAndCommentsAreIgnored(t *testing.T) {
	cases := []string{
		"SELECT 'DROP TABLE users' AS note",
		"SELECT 1 /* DROP TABLE users */",
		"SELECT 1 -- DROP TABLE users",
		`SELECT "delete" FROM users`,
		"SELECT $q$ INSERT INTO t $q$",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindSelect {
			t.Errorf("Classify(%q) = %v (%s), want select", sql, st.Kind, st.Reason)
		}
	}
}

func TestClassifyWordBoundaries(t *testing.T) {
	// Identifiers that merely contain a forbidden keyword are fine.
	cases := []string{
		"SELECT * FROM create_events",
		"SELECT updated_at FROM users",
		"SELECT dropped FROM audit_log",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindSelect {
			t.Errorf("Classify(%q) = %v (%s), want select", sql, st.Kind, st.Reason)
		}
	}
}

func TestClassifyAcceptsRowLimitClauses(t *testing.T) {
	cases := []string{
		"SELECT id FROM users LIMIT 10",
		"SELECT id FROM users FETCH FIRST 5 ROWS ONLY",
		"SELECT * FROM (SELECT id FROM users LIMIT 5) sub",
	}
	for _, sql := range cases {
		st := Classify(sql)
		if st.Kind != KindSelect {
			t.Fatalf("Classify(%q) = %v, want select", sql, st.Kind)
		}
	}
}

func TestReferencedTables(t *testing.T) {
	cases := []struct {
		sql  string
		want []string
	}{
		{"SELECT 1", nil},
		{"SELECT id FROM users", []string{"users"}},
		{"SELECT * FROM users u JOIN orders o ON o.user_id = u.id", []string{"users", "orders"}},
		{"SELECT * FROM public.users", []string{"users"}},
		{"WITH recent AS (SELECT * FROM events) SELECT * FROM recent", []string{"events"}},
		{"SELECT * FROM generate_series(1, 3)", nil},
		{"SELECT * FROM (SELECT 1) sub", nil},
		{`SELECT * FROM "Users"`, []string{"Users"}},
		// Unquoted names fold to lower case, matching the catalog.
		{"SELECT * FROM USERS", []string{"users"}},
		// Comma-separated FROM lists name every relation.
		{"SELECT * FROM users, secret_schema.secrets", []string{"users", "secrets"}},
		{"SELECT * FROM users u, orders o, payments", []string{"users", "orders", "payments"}},
		{"SELECT * FROM a JOIN b ON a.id = b.id, c", []string{"a", "b", "c"}},
		// Commas outside an open FROM list are inert.
		{"SELECT a, b FROM t", []string{"t"}},
		{"SELECT id FROM t WHERE n IN (1, 2)", []string{"t"}},
		{"SELECT id FROM t ORDER BY a, b", []string{"t"}},
		{"SELECT * FROM generate_series(1, 3) g, users", []string{"users"}},
		{"SELECT (SELECT max(n) FROM m), x FROM t", []string{"m", "t"}},
		{"SELECT * FROM (VALUES (1), (2)) v, users", []string{"users"}},
	}
	for _, tc := range cases {
		st := Classify(tc.sql)
		if st.Kind != KindSelect {
			t.Fatalf("Classify(%q) = %v, want select", tc.sql, st.Kind)
		}
		if !reflect.DeepEqual(st.References, tc.want) {
			t.Errorf("Classify(%q).References = %v, want %v", tc.sql, st.References, tc.want)
		}
	}
}

func TestStripTrailingSeparator(t *testing.T) {
	if got := stripTrailingSeparator("SELECT 1;"); got != "SELECT 1" {
		t.Errorf("got %q", got)
	}
	if got := stripTrailingSeparator("SELECT 1"); got != "SELECT 1" {
		t.Errorf("got %q", got)
	}
	// Only one separator is stripped; the second one fails later.
	if got := stripTrailingSeparator("SELECT 1;;"); got != "SELECT 1;" {
		t.Errorf("got %q", got)
	}
}
