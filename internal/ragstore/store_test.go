package ragstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const testHeader = "順位,キーワード,検索ボリューム,特徴度,時間差,男性比率,女性比率,10代,20代,30代,40代,50代,60代,70代以上\n"

func testCSV(rows ...string) string {
	return testHeader + strings.Join(rows, "\n") + "\n"
}

func openTestStore(t *testing.T, dataDir string) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "rag_data.db")
	store, err := Open(dbPath, dataDir)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnsureSchema_ConcurrentWorkers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rag_data.db")

	const workers = 8
	stores := make([]*Store, workers)
	for i := range stores {
		store, err := Open(dbPath, "")
		require.NoError(t, err)
		stores[i] = store
		defer store.Close()
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = stores[i].EnsureSchema(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}

	// All tables exist exactly once.
	ok, err := stores[0].HasSpecialty(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestCSV_DeleteThenInsert(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()

	n, err := store.IngestCSV(ctx, "内科", "内科_全体.csv", strings.NewReader(testCSV(
		"1,頭痛 病院,1000,80,3,40,60,10,20,30,20,10,5,5",
		"2,発熱 内科,800,70,1,50,50,5,25,30,20,10,5,5",
	)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-ingest replaces, never accumulates.
	n, err = store.IngestCSV(ctx, "内科", "内科_全体.csv", strings.NewReader(testCSV(
		"1,めまい 内科,500,60,2,45,55,5,15,30,25,15,5,5",
	)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keywords, err := store.Query(ctx, QueryParams{Specialty: "内科", Limit: 10})
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "めまい 内科", keywords[0].Keyword)

	uploads, err := store.ListUploads(ctx)
	require.NoError(t, err)
	assert.Len(t, uploads, 2)
}

func TestIngestCSV_ShiftJISFallback(t *testing.T) {
	store := openTestStore(t, "")

	utf8CSV := testCSV("1,腰痛 整形外科,900,75,2,55,45,5,10,20,25,20,10,10")
	sjis, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), utf8CSV)
	require.NoError(t, err)

	n, err := store.IngestCSV(context.Background(), "整形外科", "整形外科_全体.csv", strings.NewReader(sjis))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keywords, err := store.Query(context.Background(), QueryParams{Specialty: "整形外科", Limit: 5})
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "腰痛 整形外科", keywords[0].Keyword)
}

func TestQuery_DemographicFilters(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()

	_, err := store.IngestCSV(ctx, "内科", "内科_全体.csv", strings.NewReader(testCSV(
		// keyword A: strong with women in their 30s
		"1,kwA,1000,90,1,30,70,5,10,40,20,15,5,5",
		// keyword B: strong with men, weak 30s share
		"2,kwB,2000,80,1,70,30,5,10,10,30,25,10,10",
		// keyword C: balanced but below the 30s threshold
		"3,kwC,500,70,1,50,50,20,20,10,20,15,10,5",
	)))
	require.NoError(t, err)

	keywords, err := store.Query(ctx, QueryParams{Specialty: "内科", AgeBand: "30s", Gender: "female", Limit: 5})
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "kwA", keywords[0].Keyword)

	keywords, err = store.Query(ctx, QueryParams{Specialty: "内科", Gender: "male", Limit: 5})
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "kwB", keywords[0].Keyword)

	// No filters: ordered by distinctiveness desc.
	keywords, err = store.Query(ctx, QueryParams{Specialty: "内科", Limit: 5})
	require.NoError(t, err)
	require.Len(t, keywords, 3)
	assert.Equal(t, "kwA", keywords[0].Keyword)
	assert.Equal(t, "kwB", keywords[1].Keyword)
}

func TestTopKeywords_ComplaintPrecedence(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()

	_, err := store.IngestCSV(ctx, "内科", "内科_全体.csv", strings.NewReader(testCSV(
		"1,generic,100,50,1,50,50,10,10,20,20,20,10,10",
	)))
	require.NoError(t, err)
	_, err = store.IngestCSV(ctx, "内科_頭痛", "頭痛_全体.csv", strings.NewReader(testCSV(
		"1,headache-specific,300,95,1,50,50,10,10,20,20,20,10,10",
	)))
	require.NoError(t, err)

	keywords, err := store.TopKeywords(ctx, "内科", "頭痛", "", "", 5)
	require.NoError(t, err)
	require.NotEmpty(t, keywords)
	for _, kw := range keywords {
		assert.Equal(t, "内科_頭痛", kw.Specialty)
	}

	// Unknown complaint falls back to the department-wide key.
	keywords, err = store.TopKeywords(ctx, "内科", "動悸", "", "", 5)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "内科", keywords[0].Specialty)
}

func TestTopKeywords_LazyIngestFromDisk(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "皮膚科", "主訴"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dataDir, "皮膚科", "主訴", "かゆみ_全体.csv"),
		[]byte(testCSV("1,かゆみ 薬,400,85,2,40,60,10,20,25,20,15,5,5")),
		0o644,
	))

	store := openTestStore(t, dataDir)
	ctx := context.Background()

	keywords, err := store.TopKeywords(ctx, "皮膚科", "かゆみ", "", "", 5)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, "皮膚科_かゆみ", keywords[0].Specialty)

	uploads, err := store.ListUploads(ctx)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "皮膚科_かゆみ", uploads[0].Specialty)
}

func TestTopKeywords_ConcurrentDistinctDepartments(t *testing.T) {
	dataDir := t.TempDir()
	const departments = 10
	for i := 0; i < departments; i++ {
		dept := fmt.Sprintf("科%d", i)
		require.NoError(t, os.MkdirAll(filepath.Join(dataDir, dept), 0o755))
		require.NoError(t, os.WriteFile(
			filepath.Join(dataDir, dept, dept+"_全体.csv"),
			[]byte(testCSV(fmt.Sprintf("1,kw%d,100,50,1,50,50,10,10,20,20,20,10,10", i))),
			0o644,
		))
	}

	store := openTestStore(t, dataDir)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, departments)
	for i := 0; i < departments; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.TopKeywords(ctx, fmt.Sprintf("科%d", i), "", "", "", 5)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "department %d", i)
	}

	uploads, err := store.ListUploads(ctx)
	require.NoError(t, err)
	assert.Len(t, uploads, departments)
}

func TestDeleteSpecialty(t *testing.T) {
	store := openTestStore(t, "")
	ctx := context.Background()

	_, err := store.IngestCSV(ctx, "眼科", "眼科_全体.csv", strings.NewReader(testCSV(
		"1,目 かすみ,200,60,1,45,55,5,10,15,20,25,15,10",
	)))
	require.NoError(t, err)

	require.NoError(t, store.DeleteSpecialty(ctx, "眼科"))

	ok, err := store.HasSpecialty(ctx, "眼科")
	require.NoError(t, err)
	assert.False(t, ok)

	uploads, err := store.ListUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}
