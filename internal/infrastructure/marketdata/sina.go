package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
)

// SinaAdapter reads quotes and klines from the Sina futures endpoints. It is
// a thin read adapter: parse, convert, nothing else.
type SinaAdapter struct {
	quoteEndpoint string
	klineEndpoint string
	client        *http.Client

	mu         sync.Mutex
	lastCumVol map[string]float64
}

func NewSinaAdapter(quoteEndpoint, klineEndpoint string) *SinaAdapter {
	if quoteEndpoint == "" {
		quoteEndpoint = "https://hq.sinajs.cn"
	}
	if klineEndpoint == "" {
		klineEndpoint = "https://stock2.finance.sina.com.cn/futures/api/jsonp.php"
	}
	return &SinaAdapter{
		quoteEndpoint: quoteEndpoint,
		klineEndpoint: klineEndpoint,
		client:        &http.Client{Timeout: 10 * time.Second},
		lastCumVol:    make(map[string]float64),
	}
}

// Field positions inside the nf_ quote string.
const (
	fldOpen = iota
	fldHigh
	fldLow
	fldLast
	fldBid
	fldAsk
	fldPrevClose
	fldPrevSettlement
	fldVolume
)

func (a *SinaAdapter) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	url := fmt.Sprintf("%s/list=nf_%s", a.quoteEndpoint, strings.ToUpper(symbol))
	body, err := a.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	// Response shape: var hq_str_nf_IC0="field0,field1,...";
	start := strings.Index(body, `"`)
	end := strings.LastIndex(body, `"`)
	if start < 0 || end <= start {
		return nil, fmt.Errorf("malformed quote response for %s: %w", symbol, domain.ErrDataUnavailable)
	}
	fields := strings.Split(body[start+1:end], ",")
	if len(fields) <= fldVolume {
		return nil, fmt.Errorf("short quote response for %s (%d fields): %w", symbol, len(fields), domain.ErrDataUnavailable)
	}

	last := parseF(fields[fldLast])
	if last <= 0 {
		return nil, fmt.Errorf("non-positive last price for %s: %w", symbol, domain.ErrDataUnavailable)
	}
	cumVol := parseF(fields[fldVolume])

	// The feed reports cumulative day volume; the engine's realtime VWAP
	// wants the traded delta since the previous poll.
	a.mu.Lock()
	delta := cumVol - a.lastCumVol[symbol]
	if delta < 0 {
		delta = cumVol
	}
	a.lastCumVol[symbol] = cumVol
	a.mu.Unlock()

	return &domain.Quote{
		Symbol:         symbol,
		Last:           last,
		Bid:            parseF(fields[fldBid]),
		Ask:            parseF(fields[fldAsk]),
		PrevSettlement: parseF(fields[fldPrevSettlement]),
		Volume:         delta,
		Time:           time.Now(),
	}, nil
}

type klineRow struct {
	Date   string  `json:"d"`
	Open   float64 `json:"o,string"`
	High   float64 `json:"h,string"`
	Low    float64 `json:"l,string"`
	Close  float64 `json:"c,string"`
	Volume float64 `json:"v,string"`
}

func (a *SinaAdapter) GetMinuteBars(ctx context.Context, symbol string, date time.Time) ([]domain.Bar, error) {
	url := fmt.Sprintf("%s/var=/InnerFuturesNewService.getFewMinLine?symbol=%s&type=1",
		a.klineEndpoint, strings.ToUpper(symbol))
	bars, err := a.fetchKlines(ctx, url, "2006-01-02 15:04:05", date.Location())
	if err != nil {
		return nil, err
	}

	// The endpoint serves a rolling window; keep only the requested day.
	y, m, d := date.Date()
	out := bars[:0]
	for _, b := range bars {
		by, bm, bd := b.Time.Date()
		if by == y && bm == m && bd == d {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no minute bars for %s on %s: %w", symbol, date.Format("2006-01-02"), domain.ErrDataUnavailable)
	}
	return out, nil
}

func (a *SinaAdapter) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	url := fmt.Sprintf("%s/var=/InnerFuturesNewService.getDailyKLine?symbol=%s",
		a.klineEndpoint, strings.ToUpper(symbol))
	bars, err := a.fetchKlines(ctx, url, "2006-01-02", from.Location())
	if err != nil {
		return nil, err
	}

	out := bars[:0]
	for _, b := range bars {
		if b.Time.Before(from) || b.Time.After(to.Add(24*time.Hour)) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no daily bars for %s in range: %w", symbol, domain.ErrDataUnavailable)
	}
	return out, nil
}

func (a *SinaAdapter) fetchKlines(ctx context.Context, url, layout string, loc *time.Location) ([]domain.Bar, error) {
	body, err := a.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	// Strip the jsonp wrapper down to the JSON array.
	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("malformed kline response: %w", domain.ErrDataUnavailable)
	}

	var rows []klineRow
	if err := json.Unmarshal([]byte(body[start:end+1]), &rows); err != nil {
		return nil, fmt.Errorf("kline decode: %w", err)
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		t, err := time.ParseInLocation(layout, r.Date, loc)
		if err != nil {
			continue
		}
		bars = append(bars, domain.Bar{
			Time: t, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		})
	}
	return bars, nil
}

func (a *SinaAdapter) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	// The quote host rejects requests without a referer.
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, domain.ErrDataUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d: %w", url, resp.StatusCode, domain.ErrDataUnavailable)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
