package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
)

// SQLiteStore implements Store using SQLite. Responses and scores are stored
// as whole JSON values in nullable columns; every mutation runs in its own
// transaction so a reader sees either the pre- or post-mutation record.
type SQLiteStore struct {
	db  *sql.DB
	cat *catalog.Catalog

	getRecordStmt    *sql.Stmt
	listRecordsStmt  *sql.Stmt
	putResponseAStmt *sql.Stmt
	putResponseBStmt *sql.Stmt
	recordForUpdate  *sql.Stmt
	putScoreStmt     *sql.Stmt
	getSampleStmt    *sql.Stmt
	insertSampleStmt *sql.Stmt
}

var (
	sqliteOpen              = sql.Open
	sqlitePrepareStatements = (*SQLiteStore).prepareStatements
)

// NewSQLiteStore opens or creates a SQLite store at the given path. The
// catalog bounds the identifier space for every mutation.
func NewSQLiteStore(path string, cat *catalog.Catalog) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if cat == nil {
		return nil, errors.New("store: nil catalog")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sqliteOpen("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db, cat: cat}
	if err := sqlitePrepareStatements(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS records (
			query_id INTEGER PRIMARY KEY,
			response_a TEXT,
			response_b TEXT,
			score TEXT,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sample_set (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			generated_at INTEGER NOT NULL,
			target_size INTEGER NOT NULL,
			query_ids TEXT NOT NULL,
			strata TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	if s == nil || s.db == nil {
		return errors.New("store: nil sqlite store")
	}

	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst:    &s.getRecordStmt,
			query:  `SELECT query_id, response_a, response_b, score FROM records WHERE query_id = ?`,
			errFmt: "store: prepare get record: %w",
		},
		{
			dst:    &s.listRecordsStmt,
			query:  `SELECT query_id, response_a, response_b, score FROM records ORDER BY query_id ASC`,
			errFmt: "store: prepare list records: %w",
		},
		{
			dst: &s.putResponseAStmt,
			query: `
				INSERT INTO records (query_id, response_a, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(query_id) DO UPDATE SET response_a = excluded.response_a, updated_at = excluded.updated_at
			`,
			errFmt: "store: prepare put response a: %w",
		},
		{
			dst: &s.putResponseBStmt,
			query: `
				INSERT INTO records (query_id, response_b, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(query_id) DO UPDATE SET response_b = excluded.response_b, updated_at = excluded.updated_at
			`,
			errFmt: "store: prepare put response b: %w",
		},
		{
			dst:    &s.recordForUpdate,
			query:  `SELECT response_a, response_b FROM records WHERE query_id = ?`,
			errFmt: "store: prepare record for update: %w",
		},
		{
			dst:    &s.putScoreStmt,
			query:  `UPDATE records SET score = ?, updated_at = ? WHERE query_id = ?`,
			errFmt: "store: prepare put score: %w",
		},
		{
			dst:    &s.getSampleStmt,
			query:  `SELECT generated_at, target_size, query_ids, strata FROM sample_set WHERE id = 1`,
			errFmt: "store: prepare get sample: %w",
		},
		{
			dst:    &s.insertSampleStmt,
			query:  `INSERT INTO sample_set (id, generated_at, target_size, query_ids, strata) VALUES (1, ?, ?, ?, ?)`,
			errFmt: "store: prepare insert sample: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}

	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	stmts := []*sql.Stmt{
		s.getRecordStmt,
		s.listRecordsStmt,
		s.putResponseAStmt,
		s.putResponseBStmt,
		s.recordForUpdate,
		s.putScoreStmt,
		s.getSampleStmt,
		s.insertSampleStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetRecord loads the record for a catalog identifier. ErrNotFound means the
// query has seen no activity yet, not that the identifier is bad; identifiers
// outside the catalog return ErrUnknownQuery.
func (s *SQLiteStore) GetRecord(ctx context.Context, id int) (*EvaluationRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}
	if !s.cat.Has(id) {
		return nil, fmt.Errorf("store: get record %d: %w", id, ErrUnknownQuery)
	}

	row := s.getRecordStmt.QueryRowContext(ctx, id)
	rec, err := scanRecordRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: get record %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get record %d: %w", id, err)
	}
	return rec, nil
}

// ListRecords returns every stored record in identifier order.
func (s *SQLiteStore) ListRecords(ctx context.Context) ([]*EvaluationRecord, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	rows, err := s.listRecordsStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	defer rows.Close()

	var out []*EvaluationRecord
	for rows.Next() {
		rec, err := scanRecordRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	return out, nil
}

// PutResponse inserts or wholesale-replaces one platform's response,
// creating the record on first write for that identifier.
func (s *SQLiteStore) PutResponse(ctx context.Context, id int, platform Platform, resp *Response) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if resp == nil {
		return errors.New("store: nil response")
	}
	if !platform.Valid() {
		return fmt.Errorf("store: put response for query %d: platform %q: %w", id, platform, ErrInvalidPlatform)
	}
	if !s.cat.Has(id) {
		return fmt.Errorf("store: put response for query %d: %w", id, ErrUnknownQuery)
	}

	saved := *resp
	if saved.CapturedAt.IsZero() {
		saved.CapturedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(&saved)
	if err != nil {
		return fmt.Errorf("store: marshal response: %w", err)
	}

	stmt := s.putResponseAStmt
	if platform == PlatformB {
		stmt = s.putResponseBStmt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin response tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	txStmt := tx.StmtContext(ctx, stmt)
	defer txStmt.Close()

	if _, err := txStmt.ExecContext(ctx, id, string(payload), time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("store: put response for query %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit response: %w", err)
	}
	return nil
}

// PutScore stores the score for a query whose two responses already exist.
// An existing score is replaced wholesale.
func (s *SQLiteStore) PutScore(ctx context.Context, id int, score *Score) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if score == nil {
		return errors.New("store: nil score")
	}
	if !s.cat.Has(id) {
		return fmt.Errorf("store: put score for query %d: %w", id, ErrUnknownQuery)
	}
	if err := validateScore(score); err != nil {
		return fmt.Errorf("store: put score for query %d: %w", id, err)
	}

	saved := *score
	if saved.SubmittedAt.IsZero() {
		saved.SubmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(&saved)
	if err != nil {
		return fmt.Errorf("store: marshal score: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin score tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	checkStmt := tx.StmtContext(ctx, s.recordForUpdate)
	defer checkStmt.Close()

	var respA, respB sql.NullString
	err = checkStmt.QueryRowContext(ctx, id).Scan(&respA, &respB)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("store: put score for query %d: %w", id, ErrIncompleteRecord)
	case err != nil:
		return fmt.Errorf("store: put score for query %d: %w", id, err)
	}
	if !respA.Valid || !respB.Valid {
		return fmt.Errorf("store: put score for query %d: %w", id, ErrIncompleteRecord)
	}

	updStmt := tx.StmtContext(ctx, s.putScoreStmt)
	defer updStmt.Close()

	if _, err := updStmt.ExecContext(ctx, string(payload), time.Now().UTC().UnixMilli(), id); err != nil {
		return fmt.Errorf("store: put score for query %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit score: %w", err)
	}
	return nil
}

// AggregateStats counts records per derived state in one pass. Read-only.
func (s *SQLiteStore) AggregateStats(ctx context.Context) (*AggregateStats, error) {
	records, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	out := &AggregateStats{TotalQueries: s.cat.Len()}
	for _, rec := range records {
		if rec.ResponseA != nil {
			out.ResponsesA++
		}
		if rec.ResponseB != nil {
			out.ResponsesB++
		}
		if rec.ResponseA != nil && rec.ResponseB != nil {
			out.BothResponses++
		}
		if rec.Score != nil {
			out.Scored++
		}
		if rec.Status() == StatusScored {
			out.FullyComplete++
		}
	}
	if out.TotalQueries > 0 {
		out.PercentComplete = float64(out.FullyComplete) / float64(out.TotalQueries) * 100
	}
	return out, nil
}

// SaveSampleSet persists the sample exactly once; a second save fails with
// ErrSampleExists.
func (s *SQLiteStore) SaveSampleSet(ctx context.Context, set *SampleSet) error {
	if s == nil {
		return errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return errors.New("store: nil context")
	}
	if set == nil {
		return errors.New("store: nil sample set")
	}
	if len(set.QueryIDs) == 0 {
		return errors.New("store: empty sample set")
	}
	for _, id := range set.QueryIDs {
		if !s.cat.Has(id) {
			return fmt.Errorf("store: sample set id %d: %w", id, ErrUnknownQuery)
		}
	}

	saved := *set
	if saved.GeneratedAt.IsZero() {
		saved.GeneratedAt = time.Now().UTC()
	}

	idsJSON, err := json.Marshal(saved.QueryIDs)
	if err != nil {
		return fmt.Errorf("store: marshal sample ids: %w", err)
	}
	strataJSON, err := json.Marshal(saved.Strata)
	if err != nil {
		return fmt.Errorf("store: marshal sample strata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin sample tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	checkStmt := tx.StmtContext(ctx, s.getSampleStmt)
	defer checkStmt.Close()

	var (
		existingGeneratedAt int64
		existingTarget      int
		existingIDs         string
		existingStrata      string
	)
	err = checkStmt.QueryRowContext(ctx).Scan(&existingGeneratedAt, &existingTarget, &existingIDs, &existingStrata)
	switch {
	case err == nil:
		return ErrSampleExists
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("store: check sample set: %w", err)
	}

	insStmt := tx.StmtContext(ctx, s.insertSampleStmt)
	defer insStmt.Close()

	_, err = insStmt.ExecContext(
		ctx,
		saved.GeneratedAt.UTC().UnixMilli(),
		saved.TargetSize,
		string(idsJSON),
		string(strataJSON),
	)
	if err != nil {
		return fmt.Errorf("store: insert sample set: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit sample set: %w", err)
	}
	return nil
}

// GetSampleSet loads the persisted sample, or ErrNoSample.
func (s *SQLiteStore) GetSampleSet(ctx context.Context) (*SampleSet, error) {
	if s == nil {
		return nil, errors.New("store: nil sqlite store")
	}
	if ctx == nil {
		return nil, errors.New("store: nil context")
	}

	row := s.getSampleStmt.QueryRowContext(ctx)
	var (
		generatedAtMS int64
		targetSize    int
		idsJSON       string
		strataJSON    string
	)
	if err := row.Scan(&generatedAtMS, &targetSize, &idsJSON, &strataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSample
		}
		return nil, fmt.Errorf("store: get sample set: %w", err)
	}

	out := &SampleSet{
		GeneratedAt: time.UnixMilli(generatedAtMS).UTC(),
		TargetSize:  targetSize,
	}
	if err := json.Unmarshal([]byte(idsJSON), &out.QueryIDs); err != nil {
		return nil, fmt.Errorf("store: decode sample ids: %w", err)
	}
	if err := json.Unmarshal([]byte(strataJSON), &out.Strata); err != nil {
		return nil, fmt.Errorf("store: decode sample strata: %w", err)
	}
	return out, nil
}

func scanRecordRow(scan func(dest ...any) error) (*EvaluationRecord, error) {
	var (
		queryID   int
		respAJSON sql.NullString
		respBJSON sql.NullString
		scoreJSON sql.NullString
	)
	if err := scan(&queryID, &respAJSON, &respBJSON, &scoreJSON); err != nil {
		return nil, err
	}

	rec := &EvaluationRecord{QueryID: queryID}

	respA, err := decodeResponse(respAJSON)
	if err != nil {
		return nil, fmt.Errorf("decode response a: %w", err)
	}
	rec.ResponseA = respA

	respB, err := decodeResponse(respBJSON)
	if err != nil {
		return nil, fmt.Errorf("decode response b: %w", err)
	}
	rec.ResponseB = respB

	if scoreJSON.Valid && strings.TrimSpace(scoreJSON.String) != "" {
		var score Score
		if err := json.Unmarshal([]byte(scoreJSON.String), &score); err != nil {
			return nil, fmt.Errorf("decode score: %w", err)
		}
		rec.Score = &score
	}

	return rec, nil
}

func decodeResponse(ns sql.NullString) (*Response, error) {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil, nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(ns.String), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func validateScore(score *Score) error {
	for _, side := range []struct {
		name string
		ps   PlatformScore
	}{
		{"platform a", score.PlatformA},
		{"platform b", score.PlatformB},
	} {
		for _, rating := range []struct {
			name  string
			value int
		}{
			{"relevance", side.ps.Relevance},
			{"completeness", side.ps.Completeness},
			{"source quality", side.ps.SourceQuality},
		} {
			if rating.value < 1 || rating.value > 5 {
				return fmt.Errorf("%s %s %d out of range [1,5]: %w", side.name, rating.name, rating.value, ErrInvalidScore)
			}
		}
	}
	return nil
}
