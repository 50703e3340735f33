package icgc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismocat/seismic-etl/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleReport = "BEGIN GSE2.0\r\n" +
	"Sta  Time      Phase\r\n" +
	"EPOB 10:00:00.000 0.52 P 58.3 279.5 12.1 2.1\r\n" +
	"EPOB 0.52 121.3 S 10:00:05.000 -0.1 58.3 12.7 2.3 ML 1.2 i\r\n" +
	"\r\n" +
	"STOP\r\n"

func TestReportClient_FetchReport_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gse", r.URL.Query().Get("seccio"))
		assert.Equal(t, "10500", r.URL.Query().Get("codi"))
		fmt.Fprint(w, sampleReport)
	}))
	defer srv.Close()

	c := NewReportClient(srv.URL, 5*time.Second, testLogger())
	report, err := c.FetchReport(context.Background(), "10500")
	require.NoError(t, err)
	assert.Equal(t, sampleReport, report)
}

func TestReportClient_FetchReport_Missing(t *testing.T) {
	tests := []struct {
		name   string
		handle http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"no content", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}},
		{"blank body", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "  \r\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handle)
			defer srv.Close()

			c := NewReportClient(srv.URL, 5*time.Second, testLogger())
			_, err := c.FetchReport(context.Background(), "10500")
			assert.ErrorIs(t, err, domain.ErrReportNotFound)
		})
	}
}

func TestReportClient_FetchReport_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewReportClient(srv.URL, 5*time.Second, testLogger())
	_, err := c.FetchReport(context.Background(), "10500")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrReportNotFound)
}

func TestWaveformClient_FetchWaveform_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "CA", q.Get("network"))
		assert.Equal(t, "EPOB", q.Get("station"))
		assert.Equal(t, "*", q.Get("location"))
		assert.Equal(t, "*", q.Get("channel"))
		assert.Equal(t, "2021-08-14T09:55", q.Get("starttime"))
		assert.Equal(t, "2021-08-14T10:05", q.Get("endtime"))
		assert.Equal(t, "slist", q.Get("format"))
		assert.Equal(t, "404", q.Get("nodata"))

		fmt.Fprint(w, "TIMESERIES CA_EPOB__HHZ, 3 samples, 100 sps, 2021-08-14T09:55:00.000000, SLIST, FLOAT, COUNTS\n1 2 3\n")
	}))
	defer srv.Close()

	c := NewWaveformClient(srv.URL, "CA", 5*time.Second, testLogger())
	waveforms, err := c.FetchWaveform(context.Background(), "EPOB", "2021-08-14T09:55", "2021-08-14T10:05")
	require.NoError(t, err)
	require.Len(t, waveforms, 1)
	assert.Equal(t, "HHZ", waveforms[0].Channel)
	assert.Equal(t, []float64{1, 2, 3}, waveforms[0].Samples)
}

func TestWaveformClient_FetchWaveform_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewWaveformClient(srv.URL, "CA", 5*time.Second, testLogger())
	_, err := c.FetchWaveform(context.Background(), "EPOB", "2021-08-14T09:55", "2021-08-14T10:05")
	assert.ErrorIs(t, err, domain.ErrNoWaveform)
}

func TestWaveformClient_FetchWaveform_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "this is not slist\n")
	}))
	defer srv.Close()

	c := NewWaveformClient(srv.URL, "CA", 5*time.Second, testLogger())
	_, err := c.FetchWaveform(context.Background(), "EPOB", "2021-08-14T09:55", "2021-08-14T10:05")
	require.Error(t, err)
}
