package stats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

const defaultWakaTimeAPI = "https://wakatime.com"

type WakaTimeOptions struct {
	APIKey     string
	HTTPClient *http.Client
	APIBaseURL string
	Observe    func(provider string, elapsed time.Duration, err error)
}

// WakaTimeClient reads the last seven days of stats for the key's owner.
type WakaTimeClient struct {
	opts WakaTimeOptions
}

func NewWakaTimeClient(opts WakaTimeOptions) *WakaTimeClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.APIBaseURL == "" {
		opts.APIBaseURL = defaultWakaTimeAPI
	}
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")
	return &WakaTimeClient{opts: opts}
}

func (c *WakaTimeClient) Configured() bool {
	return c != nil && c.opts.APIKey != ""
}

type wakaResponse struct {
	Data struct {
		TotalSeconds              float64 `json:"total_seconds"`
		HumanReadableTotal        string  `json:"human_readable_total"`
		HumanReadableDailyAverage string  `json:"human_readable_daily_average"`
		Languages                 []struct {
			Name    string  `json:"name"`
			Percent float64 `json:"percent"`
		} `json:"languages"`
	} `json:"data"`
}

func (c *WakaTimeClient) Fetch(ctx context.Context) (WakaTimeStats, error) {
	if !c.Configured() {
		return WakaTimeStats{}, ErrNotConfigured
	}
	start := time.Now()
	st, err := c.fetch(ctx)
	if c.opts.Observe != nil {
		c.opts.Observe(ProviderWakaTime, time.Since(start), err)
	}
	return st, err
}

func (c *WakaTimeClient) fetch(ctx context.Context) (WakaTimeStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.opts.APIBaseURL+"/api/v1/users/current/stats/last_7_days", nil)
	if err != nil {
		return WakaTimeStats{}, xerrors.Wrap(err, "build wakatime request")
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.opts.APIKey)))

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return WakaTimeStats{}, xerrors.Wrap(err, "wakatime request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return WakaTimeStats{}, xerrors.Newf("wakatime: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out wakaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return WakaTimeStats{}, xerrors.Wrap(err, "decode wakatime response")
	}

	d := out.Data
	st := WakaTimeStats{
		TotalSeconds: d.TotalSeconds,
		TotalHuman:   orDefault(d.HumanReadableTotal, defaultWakaHuman),
		DailyAverage: orDefault(d.HumanReadableDailyAverage, defaultWakaHuman),
		TopLanguage:  defaultWakaLanguage,
	}
	if len(d.Languages) > 0 {
		st.TopLanguage = orDefault(d.Languages[0].Name, defaultWakaLanguage)
		st.TopLanguagePercent = d.Languages[0].Percent
	}
	return st, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
