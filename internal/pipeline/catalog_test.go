package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/pipeline"
)

type mockCatalogStore struct {
	quakes   []domain.Earthquake
	stations []domain.Station
}

func (m *mockCatalogStore) InsertEarthquakes(_ context.Context, quakes []domain.Earthquake) error {
	m.quakes = append(m.quakes, quakes...)
	return nil
}

func (m *mockCatalogStore) InsertStations(_ context.Context, stations []domain.Station) error {
	m.stations = append(m.stations, stations...)
	return nil
}

const catalogHeader = "Codi,Data,Hora,Latitud,Longitud,Profunditat,Magnitud,Tipus,Regio,Zona,Font,Extra\n"

func writeCatalogCSV(t *testing.T, dir, name, rows string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(catalogHeader+rows), 0o644))
}

func TestCatalogStage_LoadsAndDeduplicatesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeCatalogCSV(t, dir, "2021a.csv",
		"10500,2021-08-14,10:00:00,42.1,1.5,6.0,2.1,M,Pirineu,Local,ICGC,x\n"+
			"10501,2021-08-15,11:00:00,42.2,1.6,4.0,1.8,M,Pirineu,Local,ICGC,x\n"+
			"10502,2021-08-16,12:00:00,42.3,1.7,8.0,2.5,M,Alps,Regional,ICGC,x\n")
	writeCatalogCSV(t, dir, "2021b.csv",
		"10500,2021-08-14,10:00:00,42.1,1.5,6.0,2.1,M,Pirineu,Local,ICGC,x\n"+
			"10503,2021-08-17,13:00:00,42.4,1.8,5.0,2.0,M,Pirineu,Local,ICGC,x\n")

	store := &mockCatalogStore{}
	stage := pipeline.NewCatalogStage(store, dir, "", testLogger(), newTestMetrics())
	require.NoError(t, stage.Run(context.Background()))

	codes := make([]string, len(store.quakes))
	for i, q := range store.quakes {
		codes[i] = q.Code
	}
	// 10502 is not Local; duplicate 10500 collapses across files.
	assert.Equal(t, []string{"10500", "10501", "10503"}, codes)
	assert.Equal(t, 2.1, store.quakes[0].Magnitude)
}

func TestCatalogStage_LoadsStations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.txt")
	content := "CA.EPOB\n" +
		"El Pont de Bar\n" +
		"EPOB\t42.37\t1.63\t1000\tBroadband velocimeter\n" +
		"CA.CAVN\n" +
		"Carretera de Vallnord\n" +
		"CAVN\t42.54\t1.50\t2000\tShort-period velocimeter\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := &mockCatalogStore{}
	stage := pipeline.NewCatalogStage(store, "", path, testLogger(), newTestMetrics())
	require.NoError(t, stage.Run(context.Background()))

	require.Len(t, store.stations, 1)
	assert.Equal(t, "EPOB", store.stations[0].Name)
	assert.Equal(t, "CA", store.stations[0].Network)
}

func TestCatalogStage_NothingConfiguredIsNoop(t *testing.T) {
	store := &mockCatalogStore{}
	stage := pipeline.NewCatalogStage(store, "", "", testLogger(), newTestMetrics())
	require.NoError(t, stage.Run(context.Background()))
	assert.Empty(t, store.quakes)
	assert.Empty(t, store.stations)
}
