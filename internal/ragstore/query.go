package ragstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// ageBandColumns whitelists the age-band filter columns.
var ageBandColumns = map[string]string{
	"10s": "age_10s",
	"20s": "age_20s",
	"30s": "age_30s",
	"40s": "age_40s",
	"50s": "age_50s",
	"60s": "age_60s",
	"70s": "age_70s",
}

// QueryParams filters a keyword query.
type QueryParams struct {
	Specialty string
	AgeBand   string // one of 10s..70s, or empty
	Gender    string // "male", "female", or empty
	Limit     int
}

// HasSpecialty reports whether any keyword rows exist for the key.
func (s *Store) HasSpecialty(ctx context.Context, specialty string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM keywords WHERE specialty = ?`, specialty).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting specialty %q: %w", specialty, err)
	}
	return count > 0, nil
}

// Query returns keywords for one specialty key, demographically filtered and
// ordered by distinctiveness then search volume.
func (s *Store) Query(ctx context.Context, params QueryParams) ([]entities.Keyword, error) {
	if params.Limit <= 0 {
		params.Limit = 5
	}

	var sb strings.Builder
	sb.WriteString(`SELECT specialty, rank_order, keyword, search_volume, duplicate_volume,
		distinctiveness, time_diff, male_ratio, female_ratio,
		age_10s, age_20s, age_30s, age_40s, age_50s, age_60s, age_70s, category
		FROM keywords WHERE specialty = ?`)
	args := []any{params.Specialty}

	if col, ok := ageBandColumns[params.AgeBand]; ok {
		sb.WriteString(fmt.Sprintf(" AND %s > 15", col))
	}
	switch params.Gender {
	case "male":
		sb.WriteString(" AND male_ratio > female_ratio")
	case "female":
		sb.WriteString(" AND female_ratio > male_ratio")
	}

	sb.WriteString(" ORDER BY distinctiveness DESC, search_volume DESC LIMIT ?")
	args = append(args, params.Limit)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying keywords: %w", err)
	}
	defer rows.Close()

	return scanKeywords(rows)
}

// TopKeywords resolves the specialty key for (department, chiefComplaint),
// lazily ingesting the backing CSV on the first query for a missing key, and
// returns the filtered top rows. The complaint-specific key wins when both
// have rows.
func (s *Store) TopKeywords(ctx context.Context, department, chiefComplaint, ageBand, gender string, limit int) ([]entities.Keyword, error) {
	specialty, err := s.resolveSpecialty(ctx, department, chiefComplaint)
	if err != nil {
		return nil, err
	}
	if specialty == "" {
		return nil, nil
	}

	return s.Query(ctx, QueryParams{
		Specialty: specialty,
		AgeBand:   ageBand,
		Gender:    gender,
		Limit:     limit,
	})
}

// Timeline returns keywords for the resolved specialty ordered by the
// time-difference column, for the search-timeline endpoints.
func (s *Store) Timeline(ctx context.Context, department, chiefComplaint string, limit int) ([]entities.Keyword, error) {
	specialty, err := s.resolveSpecialty(ctx, department, chiefComplaint)
	if err != nil {
		return nil, err
	}
	if specialty == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT specialty, rank_order, keyword, search_volume, duplicate_volume,
		distinctiveness, time_diff, male_ratio, female_ratio,
		age_10s, age_20s, age_30s, age_40s, age_50s, age_60s, age_70s, category
		FROM keywords WHERE specialty = ? ORDER BY time_diff ASC LIMIT ?`, specialty, limit)
	if err != nil {
		return nil, fmt.Errorf("querying timeline: %w", err)
	}
	defer rows.Close()

	return scanKeywords(rows)
}

func (s *Store) resolveSpecialty(ctx context.Context, department, chiefComplaint string) (string, error) {
	if department == "" {
		return "", fmt.Errorf("department is required")
	}

	candidates := []struct {
		key string
		cc  string
	}{}
	if chiefComplaint != "" {
		candidates = append(candidates, struct {
			key string
			cc  string
		}{department + "_" + chiefComplaint, chiefComplaint})
	}
	candidates = append(candidates, struct {
		key string
		cc  string
	}{department, ""})

	for _, cand := range candidates {
		ok, err := s.HasSpecialty(ctx, cand.key)
		if err != nil {
			return "", err
		}
		if ok {
			return cand.key, nil
		}
	}

	// Nothing loaded yet: try the CSVs under the data directory, complaint
	// file first. The mutex keeps concurrent first queries from racing the
	// delete-then-insert ingest.
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	for _, cand := range candidates {
		ok, err := s.HasSpecialty(ctx, cand.key)
		if err != nil {
			return "", err
		}
		if ok {
			return cand.key, nil
		}
		loaded, err := s.ingestFromDisk(ctx, department, cand.cc)
		if err != nil {
			return "", err
		}
		if loaded {
			return cand.key, nil
		}
	}
	return "", nil
}

func scanKeywords(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]entities.Keyword, error) {
	var keywords []entities.Keyword
	for rows.Next() {
		var kw entities.Keyword
		if err := rows.Scan(
			&kw.Specialty, &kw.RankOrder, &kw.Keyword, &kw.SearchVolume, &kw.DuplicateVolume,
			&kw.Distinctiveness, &kw.TimeDiffDays, &kw.MaleRatio, &kw.FemaleRatio,
			&kw.Age10s, &kw.Age20s, &kw.Age30s, &kw.Age40s, &kw.Age50s, &kw.Age60s, &kw.Age70s,
			&kw.Category,
		); err != nil {
			return nil, fmt.Errorf("scanning keyword row: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}
