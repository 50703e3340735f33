package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/pipeline"
)

const testReport = "BEGIN GSE2.0\r\n" +
	"Sta  Time      Phase\r\n" +
	"EPOB 10:00:00.000 0.52 P 58.3 279.5 12.1 2.1\r\n" +
	"EPOB 0.52 121.3 S 10:00:05.000 -0.1 58.3 12.7 2.3 ML 1.2 i\r\n" +
	"CSOR 10:00:02.000 0.71 P 61.0 280.1 10.3 2.0\r\n" +
	"CSOR 0.71 135.8 S 10:00:08.000 -0.2 61.0 11.9 2.2 ML 1.1 i\r\n" +
	"\r\n" +
	"STOP\r\n"

type mockRegisterStore struct {
	codes     []string
	codesErr  error
	inserted  [][]domain.ArrivalRecord
	insertErr error
}

func (m *mockRegisterStore) CodesWithoutRegisters(context.Context) ([]string, error) {
	return m.codes, m.codesErr
}

func (m *mockRegisterStore) InsertRegisters(_ context.Context, records []domain.ArrivalRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, records)
	return nil
}

type mockReportFetcher struct {
	reports map[string]string
	errs    map[string]error
}

func (m *mockReportFetcher) FetchReport(_ context.Context, code string) (string, error) {
	if err, ok := m.errs[code]; ok {
		return "", err
	}
	report, ok := m.reports[code]
	if !ok {
		return "", fmt.Errorf("report %s: %w", code, domain.ErrReportNotFound)
	}
	return report, nil
}

func TestRegistersStage_HappyPath(t *testing.T) {
	store := &mockRegisterStore{codes: []string{"10500"}}
	fetcher := &mockReportFetcher{reports: map[string]string{"10500": testReport}}

	stage := pipeline.NewRegistersStage(store, fetcher, testLogger(), newTestMetrics())
	require.NoError(t, stage.Run(context.Background()))

	require.Len(t, store.inserted, 1)
	records := store.inserted[0]
	require.Len(t, records, 2)
	assert.Equal(t, domain.ArrivalRecord{
		Code: "10500", Station: "EPOB",
		PTime: "10:00:00.000", STime: "10:00:05.000",
		Amplitude: 12.7, Magnitude: 2.3,
	}, records[0])
	assert.Equal(t, "CSOR", records[1].Station)
}

func TestRegistersStage_MissingReportSkipsEvent(t *testing.T) {
	store := &mockRegisterStore{codes: []string{"10500", "10501"}}
	fetcher := &mockReportFetcher{reports: map[string]string{"10501": testReport}}

	stage := pipeline.NewRegistersStage(store, fetcher, testLogger(), newTestMetrics())
	require.NoError(t, stage.Run(context.Background()))

	// Only the event with a report produced registers.
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "10501", store.inserted[0][0].Code)
}

func TestRegistersStage_InterleavedReportSkipsEvent(t *testing.T) {
	interleaved := "Sta  Time      Phase\r\n" +
		"EPOB 10:00:00.000 0.52 P 58.3 279.5 12.1 2.1\r\n" +
		"CSOR 10:00:02.000 0.71 P 61.0 280.1 10.3 2.0\r\n" +
		"EPOB 0.52 121.3 S 10:00:05.000 -0.1 58.3 12.7 2.3 ML 1.2 i\r\n" +
		"\r\n" +
		"STOP\r\n"

	store := &mockRegisterStore{codes: []string{"10500"}}
	fetcher := &mockReportFetcher{reports: map[string]string{"10500": interleaved}}

	stage := pipeline.NewRegistersStage(store, fetcher, testLogger(), newTestMetrics())
	require.NoError(t, stage.Run(context.Background()))
	assert.Empty(t, store.inserted)
}

func TestRegistersStage_EmptyTableStoresNothingButSucceeds(t *testing.T) {
	empty := "Sta  Time      Phase\r\n" +
		"\r\n" +
		"STOP\r\n"

	store := &mockRegisterStore{codes: []string{"10500"}}
	fetcher := &mockReportFetcher{reports: map[string]string{"10500": empty}}

	stage := pipeline.NewRegistersStage(store, fetcher, testLogger(), newTestMetrics())
	require.NoError(t, stage.Run(context.Background()))

	// An empty phase table is a valid, zero-register outcome.
	require.Len(t, store.inserted, 1)
	assert.Empty(t, store.inserted[0])
}

func TestRegistersStage_StoreErrorIsFatal(t *testing.T) {
	store := &mockRegisterStore{
		codes:     []string{"10500"},
		insertErr: errors.New("disk full"),
	}
	fetcher := &mockReportFetcher{reports: map[string]string{"10500": testReport}}

	stage := pipeline.NewRegistersStage(store, fetcher, testLogger(), newTestMetrics())
	require.Error(t, stage.Run(context.Background()))
}

func TestRegistersStage_ListErrorIsFatal(t *testing.T) {
	store := &mockRegisterStore{codesErr: errors.New("no such table")}
	fetcher := &mockReportFetcher{}

	stage := pipeline.NewRegistersStage(store, fetcher, testLogger(), newTestMetrics())
	require.Error(t, stage.Run(context.Background()))
}
