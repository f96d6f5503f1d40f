package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BetterCallFirewall/aegisx/internal/models"
)

const createVulnerabilitiesTable = `
CREATE TABLE IF NOT EXISTS vulnerabilities (
	id           BIGSERIAL PRIMARY KEY,
	project_name TEXT NOT NULL,
	request_id   TEXT NOT NULL,
	type         TEXT NOT NULL,
	url          TEXT NOT NULL,
	method       TEXT NOT NULL DEFAULT '',
	parameter    TEXT NOT NULL DEFAULT '',
	payload      TEXT NOT NULL DEFAULT '',
	evidence     TEXT NOT NULL DEFAULT '',
	severity     TEXT NOT NULL DEFAULT 'high',
	full_request JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// FindingStore сохраняет находки в реляционное хранилище.
type FindingStore struct {
	pool *pgxpool.Pool
}

// StoredFinding - строка таблицы vulnerabilities для выдачи через API.
type StoredFinding struct {
	ID          int64          `json:"id"`
	ProjectName string         `json:"project_name"`
	CreatedAt   time.Time      `json:"created_at"`
	Finding     models.Finding `json:"finding"`
}

func NewFindingStore(ctx context.Context, url string) (*FindingStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createVulnerabilitiesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure vulnerabilities table: %w", err)
	}
	return &FindingStore{pool: pool}, nil
}

func (s *FindingStore) Close() {
	s.pool.Close()
}

// SaveVulnerability вставляет одну находку. Сбой здесь не фатален для скана:
// вызывающий логирует ошибку, находка остаётся в памяти состояния.
func (s *FindingStore) SaveVulnerability(ctx context.Context, projectName string, f *models.Finding) error {
	fullRequest, err := json.Marshal(f.FullRequest)
	if err != nil {
		return fmt.Errorf("marshal full_request: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO vulnerabilities
		 (project_name, request_id, type, url, method, parameter, payload, evidence, severity, full_request)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		projectName, f.RequestID, f.Type, f.URL, f.Method, f.Parameter, f.Payload, f.Evidence, f.Severity, fullRequest,
	)
	if err != nil {
		return fmt.Errorf("insert vulnerability: %w", err)
	}
	return nil
}

// RecentFindings возвращает последние находки, новые первыми.
func (s *FindingStore) RecentFindings(ctx context.Context, limit int) ([]StoredFinding, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_name, request_id, type, url, method, parameter, payload, evidence, severity, full_request, created_at
		 FROM vulnerabilities ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredFinding
	for rows.Next() {
		var (
			sf      StoredFinding
			rawFull []byte
		)
		if err := rows.Scan(
			&sf.ID, &sf.ProjectName, &sf.Finding.RequestID, &sf.Finding.Type, &sf.Finding.URL,
			&sf.Finding.Method, &sf.Finding.Parameter, &sf.Finding.Payload, &sf.Finding.Evidence,
			&sf.Finding.Severity, &rawFull, &sf.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(rawFull) > 0 {
			_ = json.Unmarshal(rawFull, &sf.Finding.FullRequest)
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}
