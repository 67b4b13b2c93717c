// Package vectorstore is the persistent C8 vector store: a sqlite-vec
// backed schema for durable storage, with an optional in-process
// coder/hnsw ANN index layered in front for prepare_for_search, grounded
// on the teacher's internal/storage/vector_index.go and the
// Aman-CERP-amanmcp pack repo's hnsw.go wiring.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Record is one (file_path, chunk_index) vector entry, per §4.2's
// VectorRecord definition.
type Record struct {
	ID              string
	FilePath        string
	ChunkIndex      int
	Content         string
	Embedding       []float32
	StartLine       int
	EndLine         int
	SimilarityScore float64
}

// Store is the durable sqlite-vec backed vector store.
type Store struct {
	db         *sql.DB
	dimensions int
	ann        *annIndex
}

func init() {
	sqlite_vec.Auto()
}

// Open creates or opens a sqlite-vec backed store at path with the given
// embedding dimensionality.
func Open(path string, dimensions int) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fabricerr.Wrap(fabricerr.Storage, "open vector store database", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fabricerr.Wrap(fabricerr.Storage, "create chunks table", err)
	}

	createVec := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_vec USING vec0(
		id TEXT PRIMARY KEY,
		embedding float[%d]
	)`, dimensions)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fabricerr.Wrap(fabricerr.Storage, "create vector index", err)
	}

	return &Store{db: db, dimensions: dimensions}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or replaces a batch of records, delete-then-insert since
// vec0 virtual tables don't support INSERT OR REPLACE (mirrors the
// teacher's UpdateVectorIndex). The whole transaction is retried as a unit
// per §7's transient Storage backoff policy, since retrying individual
// statements mid-transaction would leave tx state inconsistent.
func (s *Store) Upsert(records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Embedding) != s.dimensions {
			return fabricerr.Field(fabricerr.Validation, "embedding", fmt.Sprintf("must have %d dimensions", s.dimensions), fmt.Sprint(len(r.Embedding)))
		}
	}

	return fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		return s.upsertOnce(records)
	})
}

func (s *Store) upsertOnce(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "begin upsert transaction", err)
	}
	defer tx.Rollback()

	chunkUpsert := squirrel.Insert("chunks").Options("OR REPLACE").Columns("id", "file_path", "chunk_index", "content", "start_line", "end_line").PlaceholderFormat(squirrel.Question)
	for _, r := range records {
		chunkUpsert = chunkUpsert.Values(r.ID, r.FilePath, r.ChunkIndex, r.Content, r.StartLine, r.EndLine)
	}
	if _, err := chunkUpsert.RunWith(tx).Exec(); err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "upsert chunk rows", err)
	}

	delStmt, err := tx.Prepare("DELETE FROM chunks_vec WHERE id = ?")
	if err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "prepare vector delete", err)
	}
	insStmt, err := tx.Prepare("INSERT INTO chunks_vec (id, embedding) VALUES (?, ?)")
	if err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "prepare vector insert", err)
	}

	for _, r := range records {
		if _, err := delStmt.Exec(r.ID); err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "delete existing vector", err)
		}
		embBytes, err := sqlite_vec.SerializeFloat32(r.Embedding)
		if err != nil {
			return fabricerr.Wrap(fabricerr.Tensor, "serialize embedding", err)
		}
		if _, err := insStmt.Exec(r.ID, embBytes); err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "insert vector", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "commit upsert transaction", err)
	}

	if s.ann != nil {
		ids := make([]string, len(records))
		vecs := make([][]float32, len(records))
		for i, r := range records {
			ids[i] = r.ID
			vecs[i] = r.Embedding
		}
		s.ann.add(ids, vecs)
	}
	return nil
}

// DeleteByFile atomically removes every record for filePath, per §4.9's
// indexing-path requirement that reindex is an atomic per-file replace. The
// transaction is retried as a unit per §7's transient Storage backoff policy.
func (s *Store) DeleteByFile(filePath string) error {
	return fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		return s.deleteByFileOnce(filePath)
	})
}

func (s *Store) deleteByFileOnce(filePath string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "begin delete transaction", err)
	}
	defer tx.Rollback()

	rows, err := squirrel.Select("id").From("chunks").Where(squirrel.Eq{"file_path": filePath}).PlaceholderFormat(squirrel.Question).RunWith(tx).Query()
	if err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "select ids for delete", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fabricerr.Wrap(fabricerr.Storage, "scan id for delete", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	if _, err := squirrel.Delete("chunks").Where(squirrel.Eq{"file_path": filePath}).PlaceholderFormat(squirrel.Question).RunWith(tx).Exec(); err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "delete chunk rows", err)
	}
	vecDel, err := tx.Prepare("DELETE FROM chunks_vec WHERE id = ?")
	if err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "prepare vector delete", err)
	}
	for _, id := range ids {
		if _, err := vecDel.Exec(id); err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "delete vector row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fabricerr.Wrap(fabricerr.Storage, "commit delete transaction", err)
	}

	if s.ann != nil {
		s.ann.delete(ids)
	}
	return nil
}

// PrepareForSearch builds (or rebuilds) the in-process HNSW ANN index from
// the full durable set, satisfying §4.8's prepare_for_search op with a real
// approximate-NN structure for large corpora. The scan is retried as a unit
// per §7's transient Storage backoff policy.
func (s *Store) PrepareForSearch() error {
	var ids []string
	var vecs [][]float32

	err := fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		ids, vecs = nil, nil
		rows, err := s.db.Query("SELECT id, embedding FROM chunks_vec")
		if err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "scan vectors for ann build", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			var raw []byte
			if err := rows.Scan(&id, &raw); err != nil {
				return fabricerr.Wrap(fabricerr.Storage, "scan vector row", err)
			}
			v, err := deserializeFloat32(raw, s.dimensions)
			if err != nil {
				return fabricerr.Wrap(fabricerr.Tensor, "deserialize stored embedding", err)
			}
			ids = append(ids, id)
			vecs = append(vecs, v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.ann = newAnnIndex(s.dimensions)
	s.ann.add(ids, vecs)
	return nil
}

// SearchSimilar returns the top-limit records by descending similarity,
// using the HNSW index when built and falling back to a sqlite-vec brute
// force scan otherwise, with id as the ascending tiebreak.
func (s *Store) SearchSimilar(query []float32, limit int) ([]Record, error) {
	if len(query) != s.dimensions {
		return nil, fabricerr.Field(fabricerr.Validation, "query", fmt.Sprintf("must have %d dimensions", s.dimensions), fmt.Sprint(len(query)))
	}
	if limit <= 0 {
		limit = 10
	}

	if s.ann != nil {
		return s.searchAnn(query, limit)
	}
	return s.searchBruteForce(query, limit)
}

func (s *Store) searchAnn(query []float32, limit int) ([]Record, error) {
	hits := s.ann.search(query, limit)
	if len(hits) == 0 {
		return nil, nil
	}
	return s.hydrate(hits)
}

// searchBruteForce is retried as a unit per §7's transient Storage backoff
// policy; the query itself is side-effect free, so retrying it wholesale is
// safe.
func (s *Store) searchBruteForce(query []float32, limit int) ([]Record, error) {
	queryBytes, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fabricerr.Wrap(fabricerr.Tensor, "serialize query embedding", err)
	}

	var hits []annHit
	err = fabricerr.Retry(context.Background(), fabricerr.DefaultRetryPolicy(), func() error {
		hits = nil
		rows, err := s.db.Query(`
			SELECT v.id, vec_distance_cosine(v.embedding, ?) as distance
			FROM chunks_vec v
			ORDER BY distance ASC, v.id ASC
			LIMIT ?
		`, queryBytes, limit)
		if err != nil {
			return fabricerr.Wrap(fabricerr.Storage, "brute force similarity query", err)
		}
		defer rows.Close()

		for rows.Next() {
			var h annHit
			if err := rows.Scan(&h.id, &h.distance); err != nil {
				return fabricerr.Wrap(fabricerr.Storage, "scan brute force result", err)
			}
			hits = append(hits, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(hits)
}

func (s *Store) hydrate(hits []annHit) ([]Record, error) {
	out := make([]Record, 0, len(hits))
	for _, h := range hits {
		row := s.db.QueryRow("SELECT file_path, chunk_index, content, start_line, end_line FROM chunks WHERE id = ?", h.id)
		var rec Record
		rec.ID = h.id
		rec.SimilarityScore = 1 - h.distance
		if err := row.Scan(&rec.FilePath, &rec.ChunkIndex, &rec.Content, &rec.StartLine, &rec.EndLine); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, fabricerr.Wrap(fabricerr.Storage, "hydrate vector hit", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
