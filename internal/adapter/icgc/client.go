// Package icgc talks to the Catalan seismic network services: the GSE
// phase-report endpoint of the catalog web, and the FDSN dataselect
// endpoint for waveform download.
package icgc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seismocat/seismic-etl/internal/domain"
	"github.com/seismocat/seismic-etl/internal/slist"
)

// ReportClient fetches GSE phase-report documents by event code.
type ReportClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewReportClient creates a GSE report client.
func NewReportClient(baseURL string, timeout time.Duration, logger *slog.Logger) *ReportClient {
	return &ReportClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// FetchReport downloads the GSE report for one event code. Events
// published without a report resolve to domain.ErrReportNotFound so
// callers can skip them.
func (c *ReportClient) FetchReport(ctx context.Context, code string) (string, error) {
	params := url.Values{
		"seccio": {"gse"},
		"codi":   {code},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create report request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("report request %s: %w", code, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return "", fmt.Errorf("report %s: %w", code, domain.ErrReportNotFound)
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("report API error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read report %s: %w", code, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", fmt.Errorf("report %s: %w", code, domain.ErrReportNotFound)
	}
	return string(body), nil
}

// WaveformClient fetches trace windows from the FDSN dataselect
// service in the SLIST ASCII format.
type WaveformClient struct {
	httpClient *http.Client
	baseURL    string
	network    string
	logger     *slog.Logger
}

// NewWaveformClient creates a dataselect client scoped to one network.
func NewWaveformClient(baseURL, network string, timeout time.Duration, logger *slog.Logger) *WaveformClient {
	return &WaveformClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		network: network,
		logger:  logger,
	}
}

// FetchWaveform downloads every component of one station over the
// given window. Bounds use the minute-resolution request encoding. An
// empty window resolves to domain.ErrNoWaveform.
func (c *WaveformClient) FetchWaveform(ctx context.Context, station, start, final string) ([]domain.Waveform, error) {
	params := url.Values{
		"network":   {c.network},
		"station":   {station},
		"location":  {"*"},
		"channel":   {"*"},
		"starttime": {start},
		"endtime":   {final},
		"format":    {"slist"},
		"nodata":    {"404"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create waveform request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("waveform request %s [%s, %s]: %w", station, start, final, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, fmt.Errorf("waveform %s [%s, %s]: %w", station, start, final, domain.ErrNoWaveform)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dataselect API error: status %d: %s", resp.StatusCode, body)
	}

	waveforms, err := slist.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode waveform %s: %w", station, err)
	}
	return waveforms, nil
}
