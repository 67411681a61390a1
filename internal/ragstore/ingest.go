package ragstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IngestCSV replaces all keyword rows for the specialty with the CSV content
// in a single transaction and records the upload in upload_history.
// The reader is decoded as UTF-8 (BOM tolerated) with a Shift-JIS fallback.
func (s *Store) IngestCSV(ctx context.Context, specialty, filename string, r io.Reader) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("reading csv: %w", err)
	}

	rows, err := parseKeywordCSV(specialty, raw)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("csv %q contains no keyword rows", filename)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting ingest transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE specialty = ?`, specialty); err != nil {
		return 0, fmt.Errorf("clearing specialty %q: %w", specialty, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO keywords (
		specialty, rank_order, keyword, search_volume, duplicate_volume,
		distinctiveness, time_diff, male_ratio, female_ratio,
		age_10s, age_20s, age_30s, age_40s, age_50s, age_60s, age_70s, category
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(specialty, keyword) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, kw := range rows {
		res, err := stmt.ExecContext(ctx,
			kw.Specialty, kw.RankOrder, kw.Keyword, kw.SearchVolume, kw.DuplicateVolume,
			kw.Distinctiveness, kw.TimeDiffDays, kw.MaleRatio, kw.FemaleRatio,
			kw.Age10s, kw.Age20s, kw.Age30s, kw.Age40s, kw.Age50s, kw.Age60s, kw.Age70s,
			kw.Category,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting keyword %q: %w", kw.Keyword, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO upload_history (id, specialty, filename, record_count, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), specialty, filename, inserted, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return 0, fmt.Errorf("recording upload history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing ingest: %w", err)
	}
	return inserted, nil
}

// ingestFromDisk loads the CSV that backs the given specialty key, if one
// exists under the data directory. Returns false when no file is present.
func (s *Store) ingestFromDisk(ctx context.Context, department, chiefComplaint string) (bool, error) {
	specialty := department
	path := filepath.Join(s.dataDir, department, department+"_全体.csv")
	if chiefComplaint != "" {
		specialty = department + "_" + chiefComplaint
		path = filepath.Join(s.dataDir, department, "主訴", chiefComplaint+"_全体.csv")
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := s.IngestCSV(ctx, specialty, filepath.Base(path), f); err != nil {
		return false, err
	}
	return true, nil
}

// ListUploads returns the upload history, newest first.
func (s *Store) ListUploads(ctx context.Context) ([]entities.UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT specialty, filename, record_count, uploaded_at FROM upload_history ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	defer rows.Close()

	var records []entities.UploadRecord
	for rows.Next() {
		var rec entities.UploadRecord
		if err := rows.Scan(&rec.Specialty, &rec.Filename, &rec.RecordCount, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("scanning upload record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteSpecialty removes all keyword rows and history for one specialty key.
func (s *Store) DeleteSpecialty(ctx context.Context, specialty string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE specialty = ?`, specialty); err != nil {
		return fmt.Errorf("deleting keywords for %q: %w", specialty, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM upload_history WHERE specialty = ?`, specialty); err != nil {
		return fmt.Errorf("deleting upload history for %q: %w", specialty, err)
	}
	return tx.Commit()
}

func parseKeywordCSV(specialty string, raw []byte) ([]entities.Keyword, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), raw)
		if err != nil {
			return nil, fmt.Errorf("decoding csv as shift-jis: %w", err)
		}
		raw = decoded
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	cols := indexHeader(records[0])
	var keywords []entities.Keyword
	for i, record := range records[1:] {
		keyword := field(record, cols["keyword"])
		if keyword == "" {
			continue
		}
		kw := entities.Keyword{
			Specialty:       specialty,
			RankOrder:       intField(record, cols["rank"], i+1),
			Keyword:         keyword,
			SearchVolume:    intField(record, cols["search_volume"], 0),
			DuplicateVolume: intField(record, cols["duplicate_volume"], 0),
			Distinctiveness: floatField(record, cols["distinctiveness"]),
			TimeDiffDays:    floatField(record, cols["time_diff"]),
			MaleRatio:       floatField(record, cols["male_ratio"]),
			FemaleRatio:     floatField(record, cols["female_ratio"]),
			Age10s:          floatField(record, cols["age_10s"]),
			Age20s:          floatField(record, cols["age_20s"]),
			Age30s:          floatField(record, cols["age_30s"]),
			Age40s:          floatField(record, cols["age_40s"]),
			Age50s:          floatField(record, cols["age_50s"]),
			Age60s:          floatField(record, cols["age_60s"]),
			Age70s:          floatField(record, cols["age_70s"]),
			Category:        field(record, cols["category"]),
		}
		keywords = append(keywords, kw)
	}
	return keywords, nil
}

// headerAliases maps logical columns to the header spellings seen in the
// department CSV exports (Japanese first, English tolerated).
var headerAliases = map[string][]string{
	"rank":             {"順位", "rank", "rank_order"},
	"keyword":          {"キーワード", "keyword"},
	"search_volume":    {"検索ボリューム", "search_volume", "volume"},
	"duplicate_volume": {"重複ボリューム", "duplicate_volume"},
	"distinctiveness":  {"特徴度", "distinctiveness"},
	"time_diff":        {"時間差", "時間差(日)", "time_diff", "time_difference_days"},
	"male_ratio":       {"男性比率", "male_ratio"},
	"female_ratio":     {"女性比率", "female_ratio"},
	"age_10s":          {"10代", "age_10s"},
	"age_20s":          {"20代", "age_20s"},
	"age_30s":          {"30代", "age_30s"},
	"age_40s":          {"40代", "age_40s"},
	"age_50s":          {"50代", "age_50s"},
	"age_60s":          {"60代", "age_60s"},
	"age_70s":          {"70代", "70代以上", "age_70s"},
	"category":         {"カテゴリ", "category"},
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for name := range headerAliases {
		cols[name] = -1
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		for name, aliases := range headerAliases {
			for _, alias := range aliases {
				if strings.EqualFold(h, alias) {
					cols[name] = i
				}
			}
		}
	}
	return cols
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func intField(record []string, idx, fallback int) int {
	v := strings.ReplaceAll(field(record, idx), ",", "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatField(record []string, idx int) float64 {
	v := strings.ReplaceAll(field(record, idx), ",", "")
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	if err != nil {
		return 0
	}
	return f
}
