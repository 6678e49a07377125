package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crisisguard/crisisguard/internal/model"
)

// SQLite is the durable Store. Complex sub-records (entities, embeddings,
// citations, evidence sources) are stored as JSON columns; claim text is
// additionally indexed in an FTS5 table for keyword search.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS claims (
	id          TEXT PRIMARY KEY,
	raw_text    TEXT NOT NULL,
	claim_text  TEXT NOT NULL,
	claim_type  TEXT NOT NULL,
	entities    TEXT,
	confidence  REAL NOT NULL,
	source      TEXT,
	source_type TEXT,
	embedding   TEXT,
	status      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(created_at);

CREATE VIRTUAL TABLE IF NOT EXISTS claims_fts USING fts5(
	id UNINDEXED, claim_text
);

CREATE TABLE IF NOT EXISTS evidence (
	claim_id     TEXT PRIMARY KEY,
	sources      TEXT NOT NULL,
	total_found  INTEGER NOT NULL,
	queries      TEXT,
	retrieved_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS verdicts (
	id              TEXT PRIMARY KEY,
	claim_id        TEXT NOT NULL,
	verdict         TEXT NOT NULL,
	confidence      REAL NOT NULL,
	reasoning       TEXT,
	explain_like_12 TEXT,
	harm_score      INTEGER NOT NULL,
	action          TEXT NOT NULL,
	citations       TEXT,
	tags            TEXT,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_claim ON verdicts(claim_id, created_at);

CREATE TABLE IF NOT EXISTS clusters (
	id             TEXT PRIMARY KEY,
	generation     TEXT NOT NULL,
	claim_ids      TEXT NOT NULL,
	representative TEXT NOT NULL,
	label          TEXT,
	category       TEXT,
	trend_score    REAL NOT NULL,
	is_trending    INTEGER NOT NULL,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clusters_generation ON clusters(generation);

CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT PRIMARY KEY,
	alert_type  TEXT NOT NULL,
	severity    TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT,
	claim_ids   TEXT,
	entity_id   TEXT NOT NULL,
	is_active   INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS feedback (
	id         TEXT PRIMARY KEY,
	claim_id   TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite is single-writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveClaim(ctx context.Context, claim *model.Claim) error {
	entities, err := json.Marshal(claim.Entities)
	if err != nil {
		return err
	}
	var embedding []byte
	if claim.HasEmbedding() {
		if embedding, err = json.Marshal(claim.Embedding); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO claims (id, raw_text, claim_text, claim_type, entities, confidence,
			source, source_type, embedding, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			claim_text = excluded.claim_text,
			entities   = excluded.entities,
			confidence = excluded.confidence,
			embedding  = excluded.embedding,
			status     = excluded.status`,
		claim.ID, claim.RawText, claim.ClaimText, claim.ClaimType, string(entities),
		claim.Confidence, claim.Source, claim.SourceType, nullableString(embedding),
		claim.Status, claim.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save claim: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM claims_fts WHERE id = ?`, claim.ID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO claims_fts (id, claim_text) VALUES (?, ?)`,
		claim.ID, claim.ClaimText); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) SetClaimStatus(ctx context.Context, claimID string, status model.ClaimStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET status = ? WHERE id = ?`, status, claimID)
	if err != nil {
		return fmt.Errorf("set claim status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) SetClaimEmbedding(ctx context.Context, claimID string, embedding []float32) error {
	encoded, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET embedding = ? WHERE id = ?`, string(encoded), claimID)
	if err != nil {
		return fmt.Errorf("set claim embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Claim(ctx context.Context, id string) (*model.Claim, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, raw_text, claim_text, claim_type, entities, confidence,
			source, source_type, embedding, status, created_at
		FROM claims WHERE id = ?`, id)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return claim, err
}

func (s *SQLite) ClaimsSince(ctx context.Context, since time.Time) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_text, claim_text, claim_type, entities, confidence,
			source, source_type, embedding, status, created_at
		FROM claims WHERE created_at >= ? ORDER BY created_at, id`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClaims(rows)
}

func (s *SQLite) ClaimsWithoutEmbedding(ctx context.Context) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_text, claim_text, claim_type, entities, confidence,
			source, source_type, embedding, status, created_at
		FROM claims WHERE embedding IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClaims(rows)
}

func (s *SQLite) SearchClaims(ctx context.Context, query string, limit int) ([]model.Claim, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.raw_text, c.claim_text, c.claim_type, c.entities, c.confidence,
			c.source, c.source_type, c.embedding, c.status, c.created_at
		FROM claims_fts f JOIN claims c ON c.id = f.id
		WHERE claims_fts MATCH ? ORDER BY rank LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClaims(rows)
}

func (s *SQLite) SaveEvidence(ctx context.Context, set *model.EvidenceSet) error {
	sources, err := json.Marshal(set.Sources)
	if err != nil {
		return err
	}
	queries, err := json.Marshal(set.Queries)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evidence (claim_id, sources, total_found, queries, retrieved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(claim_id) DO UPDATE SET
			sources      = excluded.sources,
			total_found  = excluded.total_found,
			queries      = excluded.queries,
			retrieved_at = excluded.retrieved_at`,
		set.ClaimID, string(sources), set.TotalFound, string(queries), set.RetrievedAt.UTC())
	if err != nil {
		return fmt.Errorf("save evidence: %w", err)
	}
	return nil
}

func (s *SQLite) Evidence(ctx context.Context, claimID string) (*model.EvidenceSet, error) {
	var (
		set              model.EvidenceSet
		sources, queries string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT claim_id, sources, total_found, queries, retrieved_at
		FROM evidence WHERE claim_id = ?`, claimID).
		Scan(&set.ClaimID, &sources, &set.TotalFound, &queries, &set.RetrievedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &set.Sources); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(queries), &set.Queries); err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *SQLite) SaveVerdict(ctx context.Context, v *model.Verdict) error {
	citations, err := json.Marshal(v.Citations)
	if err != nil {
		return err
	}
	tags, err := json.Marshal(v.Tags)
	if err != nil {
		return err
	}
	// Append-only: a plain INSERT, duplicate ids are a bug worth surfacing.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verdicts (id, claim_id, verdict, confidence, reasoning,
			explain_like_12, harm_score, action, citations, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ClaimID, v.Verdict, v.Confidence, v.Reasoning,
		v.ExplainLike12, v.HarmScore, v.Action, string(citations), string(tags),
		v.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}
	return nil
}

func (s *SQLite) LatestVerdict(ctx context.Context, claimID string) (*model.Verdict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, claim_id, verdict, confidence, reasoning, explain_like_12,
			harm_score, action, citations, tags, created_at
		FROM verdicts WHERE claim_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, claimID)
	v, err := scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoVerdict
	}
	return v, err
}

func (s *SQLite) VerdictHistory(ctx context.Context, claimID string) ([]model.Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_id, verdict, confidence, reasoning, explain_like_12,
			harm_score, action, citations, tags, created_at
		FROM verdicts WHERE claim_id = ? ORDER BY created_at, id`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveClusters(ctx context.Context, clusters []model.Cluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Only the latest generation is queryable; older ones are swept here.
	if _, err := tx.ExecContext(ctx, `DELETE FROM clusters`); err != nil {
		return err
	}
	for _, c := range clusters {
		claimIDs, err := json.Marshal(c.ClaimIDs)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO clusters (id, generation, claim_ids, representative,
				label, category, trend_score, is_trending, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Generation, string(claimIDs), c.Representative,
			c.Label, c.Category, c.TrendScore, c.IsTrending, c.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("save cluster: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) LatestClusters(ctx context.Context) ([]model.Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generation, claim_ids, representative, label, category,
			trend_score, is_trending, created_at
		FROM clusters ORDER BY trend_score DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Cluster
	for rows.Next() {
		var (
			c        model.Cluster
			claimIDs string
		)
		if err := rows.Scan(&c.ID, &c.Generation, &claimIDs, &c.Representative,
			&c.Label, &c.Category, &c.TrendScore, &c.IsTrending, &c.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(claimIDs), &c.ClaimIDs); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveAlert(ctx context.Context, a *model.Alert) error {
	claimIDs, err := json.Marshal(a.ClaimIDs)
	if err != nil {
		return err
	}
	var resolved any
	if !a.ResolvedAt.IsZero() {
		resolved = a.ResolvedAt.UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, alert_type, severity, title, description,
			claim_ids, entity_id, is_active, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_active   = excluded.is_active,
			resolved_at = excluded.resolved_at`,
		a.ID, a.Type, a.Severity, a.Title, a.Description,
		string(claimIDs), a.EntityID, a.IsActive, a.CreatedAt.UTC(), resolved)
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

func (s *SQLite) Alerts(ctx context.Context, activeOnly bool) ([]model.Alert, error) {
	q := `SELECT id, alert_type, severity, title, description, claim_ids,
		entity_id, is_active, created_at, resolved_at FROM alerts`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var (
			a        model.Alert
			claimIDs string
			resolved sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.Title, &a.Description,
			&claimIDs, &a.EntityID, &a.IsActive, &a.CreatedAt, &resolved); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(claimIDs), &a.ClaimIDs); err != nil {
			return nil, err
		}
		if resolved.Valid {
			a.ResolvedAt = resolved.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) ResolveAlert(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET is_active = 0, resolved_at = ?
		WHERE id = ? AND is_active = 1`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM alerts WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *SQLite) SaveFeedback(ctx context.Context, f *model.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, claim_id, content, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.ClaimID, f.Content, f.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*model.Claim, error) {
	var (
		c         model.Claim
		entities  string
		embedding sql.NullString
	)
	err := row.Scan(&c.ID, &c.RawText, &c.ClaimText, &c.ClaimType, &entities,
		&c.Confidence, &c.Source, &c.SourceType, &embedding, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entities), &c.Entities); err != nil {
		return nil, err
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &c.Embedding); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func scanClaims(rows *sql.Rows) ([]model.Claim, error) {
	var out []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanVerdict(row rowScanner) (*model.Verdict, error) {
	var (
		v               model.Verdict
		citations, tags string
	)
	err := row.Scan(&v.ID, &v.ClaimID, &v.Verdict, &v.Confidence, &v.Reasoning,
		&v.ExplainLike12, &v.HarmScore, &v.Action, &citations, &tags, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(citations), &v.Citations); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &v.Tags); err != nil {
		return nil, err
	}
	return &v, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
