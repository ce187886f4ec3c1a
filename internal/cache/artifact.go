package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ibmruntimes/aotverify/internal/facts"
)

// ErrNotFound is returned when no artifact matches a lookup.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one stored compilation: the compilee identity plus the
// validation record stream in generation order.
type Artifact struct {
	ID          string
	ClassName   string
	MethodName  string
	MethodSig   string
	Digest      string
	RecordCount int
	CreatedAt   time.Time
	Records     []facts.Wire
}

// Key returns the compilee identity an artifact validates.
func (a Artifact) Key() string {
	return a.ClassName + "." + a.MethodName + a.MethodSig
}

// WriteArtifact stores a record stream for the given compilee and
// returns the stored artifact. Writing a stream whose digest already
// exists returns the existing artifact unchanged.
func (s *Store) WriteArtifact(ctx context.Context, className, methodName, methodSig string, records []facts.Wire) (Artifact, error) {
	payloads := make([][]byte, 0, len(records))
	for _, w := range records {
		b, err := facts.EncodeWire(w)
		if err != nil {
			return Artifact{}, fmt.Errorf("write artifact: %w", err)
		}
		payloads = append(payloads, b)
	}
	digest := facts.Digest(facts.DomainRecords, payloads...)

	if existing, err := s.artifactByDigest(ctx, digest); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts (id, class_name, method_name, method_sig, digest, record_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, className, methodName, methodSig, digest, len(records)); err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	for i, w := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO validation_records (artifact_id, seq, kind, payload)
			VALUES (?, ?, ?, ?)
		`, id, i, w.WireKind().String(), string(payloads[i])); err != nil {
			return Artifact{}, fmt.Errorf("write artifact: record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	return s.ReadArtifact(ctx, id)
}

// ReadArtifact loads an artifact and its full record stream, verifying
// the stored digest against the payloads actually read back.
func (s *Store) ReadArtifact(ctx context.Context, id string) (Artifact, error) {
	a, err := s.artifactRow(ctx, `
		SELECT id, class_name, method_name, method_sig, digest, record_count, created_at
		FROM artifacts WHERE id = ?
	`, id)
	if err != nil {
		return Artifact{}, err
	}
	return s.loadRecords(ctx, a)
}

// FindArtifact returns the most recent artifact for a compilee.
func (s *Store) FindArtifact(ctx context.Context, className, methodName, methodSig string) (Artifact, error) {
	a, err := s.artifactRow(ctx, `
		SELECT id, class_name, method_name, method_sig, digest, record_count, created_at
		FROM artifacts
		WHERE class_name = ? AND method_name = ? AND method_sig = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, className, methodName, methodSig)
	if err != nil {
		return Artifact{}, err
	}
	return s.loadRecords(ctx, a)
}

// ListArtifacts returns all stored artifacts, newest first, without
// their record streams.
func (s *Store) ListArtifacts(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, class_name, method_name, method_sig, digest, record_count, created_at
		FROM artifacts
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// DeleteArtifact removes an artifact and its records.
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete artifact %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) artifactByDigest(ctx context.Context, digest string) (Artifact, error) {
	a, err := s.artifactRow(ctx, `
		SELECT id, class_name, method_name, method_sig, digest, record_count, created_at
		FROM artifacts WHERE digest = ?
	`, digest)
	if err != nil {
		return Artifact{}, err
	}
	return s.loadRecords(ctx, a)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (Artifact, error) {
	var a Artifact
	var createdAt string
	if err := row.Scan(&a.ID, &a.ClassName, &a.MethodName, &a.MethodSig, &a.Digest, &a.RecordCount, &createdAt); err != nil {
		return Artifact{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Artifact{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	a.CreatedAt = ts
	return a, nil
}

func (s *Store) artifactRow(ctx context.Context, query string, args ...any) (Artifact, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, ErrNotFound
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	return a, nil
}

func (s *Store) loadRecords(ctx context.Context, a Artifact) (Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM validation_records
		WHERE artifact_id = ?
		ORDER BY seq
	`, a.ID)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact %s: %w", a.ID, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return Artifact{}, fmt.Errorf("read artifact %s: %w", a.ID, err)
		}
		payloads = append(payloads, []byte(payload))
	}
	if err := rows.Err(); err != nil {
		return Artifact{}, fmt.Errorf("read artifact %s: %w", a.ID, err)
	}

	// A digest that no longer matches means the rows were tampered with
	// or partially lost; the artifact must not be replayed.
	if got := facts.Digest(facts.DomainRecords, payloads...); got != a.Digest {
		return Artifact{}, fmt.Errorf("read artifact %s: digest mismatch", a.ID)
	}

	a.Records = make([]facts.Wire, 0, len(payloads))
	for i, payload := range payloads {
		w, err := facts.DecodeWire(payload)
		if err != nil {
			return Artifact{}, fmt.Errorf("read artifact %s: record %d: %w", a.ID, i, err)
		}
		a.Records = append(a.Records, w)
	}
	return a, nil
}
