package database

import (
	"database/sql"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/edusys/assets"
	"github.com/trezcool/edusys/core"
)

func dsn(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open opens the application database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, dsn(conf.Database.Name, false, conf))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query, name string) (bool, error) {
	var found bool
	err := db.QueryRow(query, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := "CREATE USER " + pq.QuoteIdentifier(conf.Database.User) +
			" CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the application role, as admin, and then the application database, as that role.
func CreateIfNotExist(conf *core.Config) error {
	// connect as admin
	adminDB, err := sql.Open("postgres", dsn("postgres", true, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()

	if err = ping(adminDB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(adminDB, conf); err != nil {
		return err
	}

	// create DB as app user
	db, err := sql.Open("postgres", dsn("postgres", false, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()
	return createDB(db, conf)
}

func newMigrator(conf *core.Config) (*migrate.Migrate, error) {
	db, err := sql.Open("postgres", dsn(conf.Database.Name, false, conf))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating migration driver")
	}
	src, err := iofs.New(assets.FS, assets.MigrationsDir)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "reading migrations")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating migrator")
	}
	return m, nil
}

// Migrate applies every pending migration.
func Migrate(conf *core.Config) error {
	_, err := RunMigration(conf, "up")
	return err
}

// RunMigration runs a migration command: up, up-by-one, down, down-by-one, goto VERSION, force VERSION
// or version. It returns a short report of what was done.
func RunMigration(conf *core.Config, command string, args ...string) (report string, err error) {
	version := func() (int, error) {
		if len(args) == 0 {
			return 0, errors.Errorf("%s must be of form: migrate %s VERSION", command, command)
		}
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return 0, errors.Errorf("version must be a number (got '%s')", args[0])
		}
		return v, nil
	}

	var run func(m *migrate.Migrate) error
	switch command {
	case "up":
		run = func(m *migrate.Migrate) error { return m.Up() }
	case "up-by-one":
		run = func(m *migrate.Migrate) error { return m.Steps(1) }
	case "down":
		run = func(m *migrate.Migrate) error { return m.Down() }
	case "down-by-one":
		run = func(m *migrate.Migrate) error { return m.Steps(-1) }
	case "goto":
		v, err := version()
		if err != nil {
			return "", err
		}
		run = func(m *migrate.Migrate) error { return m.Migrate(uint(v)) }
	case "force":
		v, err := version()
		if err != nil {
			return "", err
		}
		run = func(m *migrate.Migrate) error { return m.Force(v) }
	case "version":
		run = func(m *migrate.Migrate) error { return nil }
	default:
		return "", errors.Errorf("%q: no such command", command)
	}

	m, err := newMigrator(conf)
	if err != nil {
		return "", err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); err == nil {
			if srcErr != nil {
				err = srcErr
			} else if dbErr != nil {
				err = dbErr
			}
		}
	}()

	if err = run(m); err != nil {
		if err != migrate.ErrNoChange {
			return "", errors.Wrapf(err, "migrate %s", command)
		}
		err = nil
	}

	v, dirty, err := m.Version()
	switch {
	case err == migrate.ErrNilVersion:
		return "no migration applied", nil
	case err != nil:
		return "", errors.Wrap(err, "reading migration version")
	case dirty:
		return "version " + strconv.FormatUint(uint64(v), 10) + " (dirty)", nil
	}
	return "version " + strconv.FormatUint(uint64(v), 10), nil
}
