package dialect_test

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"db-mirror/internal/dialect"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func TestUpdateQuery_PlaceholderNumbering(t *testing.T) {
	cases := []struct {
		driver string
		want   string
	}{
		{"mysql", "UPDATE `orders` SET `name` = ?, `operation_type` = ? WHERE `id` = ? AND `region` = ?"},
		{"postgres", `UPDATE "orders" SET "name" = $1, "operation_type" = $2 WHERE "id" = $3 AND "region" = $4`},
		{"sqlserver", "UPDATE [orders] SET [name] = @p1, [operation_type] = @p2 WHERE [id] = @p3 AND [region] = @p4"},
		{"oracle", `UPDATE "orders" SET "name" = :1, "operation_type" = :2 WHERE "id" = :3 AND "region" = :4`},
	}
	for _, c := range cases {
		d := dialect.GetDialect(c.driver)
		got := d.UpdateQuery("orders", []string{"name", "operation_type"}, []string{"id", "region"})
		if got != c.want {
			t.Errorf("%s: got %q, want %q", c.driver, got, c.want)
		}
	}
}

func TestInsertAndSelectQuery(t *testing.T) {
	d := dialect.GetDialect("postgres")
	got := d.InsertQuery("sales.orders", []string{"id", "name"})
	want := `INSERT INTO "sales"."orders" ("id", "name") VALUES ($1, $2)`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	m := dialect.GetDialect("mysql")
	if got := m.SelectQuery("orders", []string{"id", "we`ird"}); got != "SELECT `id`, `we``ird` FROM `orders`" {
		t.Errorf("unexpected select: %q", got)
	}
}

func TestCreateTableQuery_AppendsTrackingColumns(t *testing.T) {
	d := dialect.GetDialect("sqlite")
	got := d.CreateTableQuery("items", []dialect.ColumnDef{
		{Name: "id", Type: "INTEGER"},
		{Name: "label", Type: "TEXT", Nullable: true},
	}, []string{"id"})

	for _, part := range []string{
		`CREATE TABLE IF NOT EXISTS "items"`,
		`"id" INTEGER NOT NULL`,
		`"label" TEXT,`,
		`"operation_type" VARCHAR(10) DEFAULT 'inserted'`,
		`"last_updated" TIMESTAMP`,
		`PRIMARY KEY ("id")`,
	} {
		if !strings.Contains(got, part) {
			t.Errorf("expected %q in:\n%s", part, got)
		}
	}
}

func TestCloneCreateStatement(t *testing.T) {
	d := &dialect.MysqlDialect{}
	stmt := "CREATE TABLE `users` (\n" +
		"  `id` int NOT NULL,\n" +
		"  `name` varchar(20) DEFAULT NULL,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='people (all)'"

	got, err := d.CloneCreateStatement(stmt, "users_mirror", d.TrackingColumns())
	if err != nil {
		t.Fatalf("CloneCreateStatement failed: %v", err)
	}
	if !strings.HasPrefix(got, "CREATE TABLE IF NOT EXISTS `users_mirror` (") {
		t.Errorf("unexpected header: %s", got)
	}
	wantTail := "  PRIMARY KEY (`id`),\n" +
		"  `operation_type` VARCHAR(10) DEFAULT 'inserted',\n" +
		"  `last_updated` TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='people (all)'"
	if !strings.HasSuffix(got, wantTail) {
		t.Errorf("tracking columns not appended correctly:\n%s", got)
	}

	if _, err := d.CloneCreateStatement("CREATE VIEW v AS SELECT 1", "x", nil); err == nil {
		t.Error("expected error for non-table statement")
	}
}

func TestMysqlDSN(t *testing.T) {
	d := dialect.GetDialect("mysql")
	dsn, err := d.DSN(dialect.ConnConfig{
		Host: "db.internal", Port: 3306, User: "mirror", Password: "s3cret", Name: "shop",
		TLS: dialect.TLSConfig{Mode: dialect.TLSVerify},
	})
	if err != nil {
		t.Fatalf("DSN failed: %v", err)
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("generated DSN does not parse: %v", err)
	}
	if cfg.Addr != "db.internal:3306" || cfg.DBName != "shop" || cfg.User != "mirror" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !cfg.ParseTime {
		t.Error("expected parseTime=true")
	}
	if cfg.TLS == nil {
		t.Error("expected TLS to be enabled")
	}

	if _, err := d.DSN(dialect.ConnConfig{Host: "h", Port: 1, TLS: dialect.TLSConfig{Mode: "maybe"}}); err == nil {
		t.Error("expected error for unknown tls mode")
	}
}

func TestMysqlDSN_SessionTimeZoneFollowsLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		loc  *time.Location
		want string
	}{
		{"default", nil, "'+00:00'"},
		{"utc", time.UTC, "'+00:00'"},
		{"named zone", berlin, "'Europe/Berlin'"},
		{"local", time.Local, "'" + localOffset() + "'"},
	}
	d := dialect.GetDialect("mysql")
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dsn, err := d.DSN(dialect.ConnConfig{
				Host: "h", Port: 3306, Name: "db", Location: c.loc,
				TLS: dialect.TLSConfig{Mode: dialect.TLSVerify},
			})
			if err != nil {
				t.Fatalf("DSN failed: %v", err)
			}
			cfg, err := mysql.ParseDSN(dsn)
			if err != nil {
				t.Fatalf("generated DSN does not parse: %v", err)
			}
			if got := cfg.Params["time_zone"]; got != c.want {
				t.Errorf("time_zone = %q, want %q (dsn %s)", got, c.want, dsn)
			}
			wantLoc := "UTC"
			if c.loc != nil {
				wantLoc = c.loc.String()
			}
			if cfg.Loc.String() != wantLoc {
				t.Errorf("loc = %s, want %s", cfg.Loc, wantLoc)
			}
		})
	}
}

// localOffset renders the current offset of time.Local as +hh:mm.
func localOffset() string {
	_, offset := time.Now().Zone()
	sign := "+"
	if offset < 0 {
		sign, offset = "-", -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offset/3600, offset%3600/60)
}

func TestMysqlCatalogQueries_FallBackToCurrentDatabase(t *testing.T) {
	d := dialect.GetDialect("mysql")
	for name, q := range map[string]string{
		"columns":     d.GetColumnsQuery(),
		"primary key": d.GetPrimaryKeysQuery(),
		"exists":      d.GetTableExistsQuery(),
	} {
		if !strings.Contains(q, "TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())") {
			t.Errorf("%s query does not default to the connection's database: %s", name, q)
		}
	}
}

func TestPostgresDSN(t *testing.T) {
	d := dialect.GetDialect("postgres")
	dsn, err := d.DSN(dialect.ConnConfig{
		Host: "pg", Port: 5432, User: "u", Password: "p@ss", Name: "app",
		TLS: dialect.TLSConfig{Mode: dialect.TLSCustom, CAFile: "/etc/ca.pem"},
	})
	if err != nil {
		t.Fatalf("DSN failed: %v", err)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("DSN is not a URL: %v", err)
	}
	if u.Query().Get("sslmode") != "verify-full" || u.Query().Get("sslrootcert") != "/etc/ca.pem" {
		t.Errorf("unexpected ssl params: %s", u.RawQuery)
	}
	if pw, _ := u.User.Password(); pw != "p@ss" {
		t.Errorf("password not preserved: %q", pw)
	}
}

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		driver, in, want string
	}{
		{"mysql", "DECIMAL(10,2)", "decimal"},
		{"postgres", "int8", "bigint"},
		{"postgres", "timestamptz", "timestamp"},
		{"sqlserver", "nvarchar", "varchar"},
		{"sqlserver", "float", "double"},
		{"oracle", "TIMESTAMP(6)", "datetime"},
		{"oracle", "VARCHAR2", "varchar"},
		{"sqlite", "VARCHAR(20)", "varchar"},
	}
	for _, c := range cases {
		if got := dialect.GetDialect(c.driver).NormalizeType(c.in); got != c.want {
			t.Errorf("%s NormalizeType(%q) = %q, want %q", c.driver, c.in, got, c.want)
		}
	}
}

func TestIsConstraintViolation(t *testing.T) {
	m := dialect.GetDialect("mysql")
	fk := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
	if !m.IsConstraintViolation(errors.Join(errors.New("exec"), fk)) {
		t.Error("expected wrapped 1452 to be a constraint violation")
	}
	if m.IsConstraintViolation(&mysql.MySQLError{Number: 1146}) {
		t.Error("1146 (no such table) is not a constraint violation")
	}

	p := dialect.GetDialect("postgres")
	if !p.IsConstraintViolation(&pq.Error{Code: "23503"}) {
		t.Error("expected 23503 to be a constraint violation")
	}
	if p.IsConstraintViolation(errors.New("plain")) {
		t.Error("plain errors are not constraint violations")
	}
}

func TestSplitTable(t *testing.T) {
	schema, table := dialect.SplitTable("sales.orders")
	if schema != "sales" || table != "orders" {
		t.Errorf("got %q.%q", schema, table)
	}
	schema, table = dialect.SplitTable("orders")
	if schema != "" || table != "orders" {
		t.Errorf("got %q.%q", schema, table)
	}
}
