package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"imeidesk/internal/log"
)

// schema is the embedded DDL for the local registry database.
const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS persons (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL REFERENCES companies(id),
	name           TEXT NOT NULL,
	identification TEXT NOT NULL,
	phone          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS devices (
	id            TEXT PRIMARY KEY,
	imei          TEXT NOT NULL UNIQUE,
	person_id     TEXT NOT NULL REFERENCES persons(id),
	registered_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_company ON persons(company_id);
CREATE INDEX IF NOT EXISTS idx_devices_person ON devices(person_id);
`

// LocalRegistry is a Client backed by an embedded SQLite database.
// It serves as the offline/dev backend and as the seed target.
type LocalRegistry struct {
	db   *sql.DB
	path string
}

var _ Client = (*LocalRegistry)(nil)

// NewLocalRegistry opens (creating if needed) the registry database at
// dbPath. The parent directory is created with 0700 permissions.
func NewLocalRegistry(dbPath string) (*LocalRegistry, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}

	// Single connection: the embedded driver serializes access and the
	// desk is a single-user tool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying registry schema: %w", err)
	}

	log.Info(log.CatDB, "opened local registry", "path", dbPath)
	return &LocalRegistry{db: db, path: dbPath}, nil
}

// Path returns the database file path, used by the change watcher.
func (r *LocalRegistry) Path() string {
	return r.path
}

// Close releases the database connection.
func (r *LocalRegistry) Close() error {
	return r.db.Close()
}

func (r *LocalRegistry) Verify(ctx context.Context, imei string) (VerificationResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT d.id, d.imei, d.registered_at,
		        p.id, p.company_id, p.name, p.identification, p.phone,
		        c.id, c.name
		 FROM devices d
		 JOIN persons p ON p.id = d.person_id
		 JOIN companies c ON c.id = p.company_id
		 WHERE d.imei = ?`,
		imei,
	)

	var (
		device       Device
		registeredAt int64
	)
	err := row.Scan(
		&device.ID, &device.IMEI, &registeredAt,
		&device.Owner.ID, &device.Owner.CompanyID, &device.Owner.Name,
		&device.Owner.Identification, &device.Owner.Phone,
		&device.Company.ID, &device.Company.Name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return VerificationResult{IMEI: imei, Exists: false}, nil
	}
	if err != nil {
		return VerificationResult{}, localError("verifying device", err)
	}

	device.RegisteredAt = time.Unix(registeredAt, 0).UTC()
	return VerificationResult{IMEI: imei, Exists: true, Device: &device}, nil
}

func (r *LocalRegistry) Companies(ctx context.Context) ([]Company, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM companies ORDER BY name`)
	if err != nil {
		return nil, localError("listing companies", err)
	}
	defer func() { _ = rows.Close() }()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, localError("scanning company row", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, localError("iterating company rows", err)
	}
	return companies, nil
}

func (r *LocalRegistry) PersonsByCompany(ctx context.Context, companyID string) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.company_id, p.name, p.identification, p.phone,
		        COUNT(d.id)
		 FROM persons p
		 LEFT JOIN devices d ON d.person_id = p.id
		 WHERE p.company_id = ?
		 GROUP BY p.id
		 ORDER BY p.name`,
		companyID,
	)
	if err != nil {
		return nil, localError("listing persons", err)
	}
	defer func() { _ = rows.Close() }()

	var persons []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Identification, &p.Phone, &p.DeviceCount); err != nil {
			return nil, localError("scanning person row", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, localError("iterating person rows", err)
	}
	return persons, nil
}

func (r *LocalRegistry) CreatePerson(ctx context.Context, person NewPerson) (Person, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM companies WHERE id = ?)`, person.CompanyID,
	).Scan(&exists)
	if err != nil {
		return Person{}, localError("checking company", err)
	}
	if !exists {
		return Person{}, &Error{Kind: ErrServer, Message: fmt.Sprintf("company %q not found", person.CompanyID)}
	}

	created := Person{
		ID:             uuid.NewString(),
		CompanyID:      person.CompanyID,
		Name:           person.Name,
		Identification: person.Identification,
		Phone:          person.Phone,
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO persons (id, company_id, name, identification, phone) VALUES (?, ?, ?, ?, ?)`,
		created.ID, created.CompanyID, created.Name, created.Identification, created.Phone,
	)
	if err != nil {
		return Person{}, localError("inserting person", err)
	}

	log.Info(log.CatDB, "created person", "id", created.ID, "company", created.CompanyID)
	return created, nil
}

func (r *LocalRegistry) Register(ctx context.Context, imei, personID string) (Device, error) {
	result, err := r.Verify(ctx, imei)
	if err != nil {
		return Device{}, err
	}
	if result.Exists {
		return Device{}, &Error{Kind: ErrServer, Message: "device is already registered"}
	}

	var owner Person
	err = r.db.QueryRowContext(ctx,
		`SELECT id, company_id, name, identification, phone FROM persons WHERE id = ?`,
		personID,
	).Scan(&owner.ID, &owner.CompanyID, &owner.Name, &owner.Identification, &owner.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return Device{}, &Error{Kind: ErrServer, Message: fmt.Sprintf("person %q not found", personID)}
	}
	if err != nil {
		return Device{}, localError("loading person", err)
	}

	var company Company
	err = r.db.QueryRowContext(ctx,
		`SELECT id, name FROM companies WHERE id = ?`, owner.CompanyID,
	).Scan(&company.ID, &company.Name)
	if err != nil {
		return Device{}, localError("loading company", err)
	}

	device := Device{
		ID:           uuid.NewString(),
		IMEI:         imei,
		Owner:        owner,
		Company:      company,
		RegisteredAt: time.Now().UTC().Truncate(time.Second),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO devices (id, imei, person_id, registered_at) VALUES (?, ?, ?, ?)`,
		device.ID, device.IMEI, personID, device.RegisteredAt.Unix(),
	)
	if err != nil {
		return Device{}, localError("inserting device", err)
	}

	log.Info(log.CatDB, "registered device", "id", device.ID, "person", personID)
	return device, nil
}

// SeedCompany inserts a company with a fixed ID, updating the name if it
// already exists. Used by the seed command.
func (r *LocalRegistry) SeedCompany(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO companies (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name,
	)
	if err != nil {
		return localError("seeding company", err)
	}
	return nil
}

// localError wraps a database failure as a server-kind registry error.
func localError(op string, err error) *Error {
	log.ErrorErr(log.CatDB, op+" failed", err)
	return &Error{Kind: ErrServer, Err: fmt.Errorf("%s: %w", op, err)}
}
