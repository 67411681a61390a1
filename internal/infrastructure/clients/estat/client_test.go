package estat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStubClient(t *testing.T, handler http.HandlerFunc) (*Client, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewClientWithBaseURL("test-key", server.URL, t.TempDir(), nil), &calls
}

const statsListBody = `{
	"GET_STATS_LIST": {
		"RESULT": {"STATUS": 0},
		"DATALIST_INF": {
			"TABLE_INF": [
				{"@id": "t-pref", "TITLE": "人口 都道府県別", "STAT_NAME": {"$": "国勢調査"}},
				{"@id": "t-city", "TITLE": {"$": "人口 市区町村別"}, "STAT_NAME": {"$": "国勢調査"}}
			]
		}
	}
}`

func TestListTables_PrefersMunicipalTables(t *testing.T) {
	client, calls := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("appId"))
		assert.Equal(t, "00200521", r.URL.Query().Get("statsCode"))
		if _, err := w.Write([]byte(statsListBody)); err != nil {
			return
		}
	})

	tables, err := client.ListTables(context.Background(), "00200521", "人口 千代田区")
	require.NoError(t, err)

	require.Len(t, tables, 2)
	// 市区町村-titled tables sort to the front.
	assert.Equal(t, "t-city", tables[0].ID)
	assert.Equal(t, 1, *calls)
}

func TestListTables_NonZeroStatusIsRejected(t *testing.T) {
	client, _ := newStubClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(`{"GET_STATS_LIST":{"RESULT":{"STATUS":100}}}`)); err != nil {
			return
		}
	})

	_, err := client.ListTables(context.Background(), "00200521", "人口")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 100")
}

func TestFetch_DiskCacheServesRepeatCalls(t *testing.T) {
	client, calls := newStubClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(statsListBody)); err != nil {
			return
		}
	})

	_, err := client.ListTables(context.Background(), "00200521", "人口")
	require.NoError(t, err)
	_, err = client.ListTables(context.Background(), "00200521", "人口")
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
}

func TestFetch_ExpiredCacheRefetches(t *testing.T) {
	client, calls := newStubClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(statsListBody)); err != nil {
			return
		}
	})

	_, err := client.ListTables(context.Background(), "00200521", "人口")
	require.NoError(t, err)

	// Jump past the TTL; the cached entry no longer counts.
	client.now = func() time.Time { return time.Now().Add(MedicalStatsTTL + time.Hour) }
	_, err = client.ListTables(context.Background(), "00200521", "人口")
	require.NoError(t, err)

	assert.Equal(t, 2, *calls)
}

func TestAreaCodeFor(t *testing.T) {
	body := `{
		"GET_META_INFO": {
			"RESULT": {"STATUS": 0},
			"METADATA_INF": {
				"CLASS_INF": {
					"CLASS_OBJ": [
						{"@id": "cat01", "CLASS": {"@code": "x", "@name": "総数"}},
						{"@id": "area", "CLASS": [
							{"@code": "13101", "@name": "東京都千代田区"},
							{"@code": "13102", "@name": "東京都中央区"}
						]}
					]
				}
			}
		}
	}`
	client, _ := newStubClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(body)); err != nil {
			return
		}
	})

	code, err := client.AreaCodeFor(context.Background(), "t-city", "中央区")
	require.NoError(t, err)
	assert.Equal(t, "13102", code)

	_, err = client.AreaCodeFor(context.Background(), "t-city", "港区")
	require.Error(t, err)
}

func TestStatsData_FiltersByArea(t *testing.T) {
	body := `{
		"GET_STATS_DATA": {
			"RESULT": {"STATUS": 0},
			"STATISTICAL_DATA": {
				"DATA_INF": {
					"VALUE": [
						{"@area": "13101", "@unit": "人", "$": "66,680"}
					]
				}
			}
		}
	}`
	client, _ := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "13101", r.URL.Query().Get("cdArea"))
		if _, err := w.Write([]byte(body)); err != nil {
			return
		}
	})

	values, err := client.StatsData(context.Background(), "t-city", "13101", DemographicsTTL)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "66,680", values[0].Value)
	assert.Equal(t, "人", values[0].Unit)
}

func TestClient_DisabledWithoutKey(t *testing.T) {
	client := NewClient("", t.TempDir(), nil)
	assert.False(t, client.Enabled())

	_, err := client.ListTables(context.Background(), "00200521", "人口")
	require.Error(t, err)
}
