// Package feed polls an external provider for advisory reference prices.
// Prices are display/defaulting hints only; matching never waits on them.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Provider fetches one symbol's current price.
type Provider interface {
	Fetch(symbol string) (decimal.Decimal, error)
}

// Synthetic is an offline random-walk provider. It always succeeds, which
// makes it both the default provider and the fallback when a network
// provider errors out.
type Synthetic struct {
	mu   sync.Mutex
	last map[string]decimal.Decimal
	rng  *rand.Rand
}

func NewSynthetic() *Synthetic {
	return &Synthetic{
		last: make(map[string]decimal.Decimal),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Synthetic) Fetch(symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.last[symbol]
	if !ok {
		last = decimal.NewFromInt(100)
	}
	// drift within +-0.1% per tick
	step := decimal.NewFromFloat(1 + (s.rng.Float64()-0.5)/500)
	next := last.Mul(step).Round(4)
	s.last[symbol] = next
	return next, nil
}

// Finnhub pulls quotes from the Finnhub REST API.
type Finnhub struct {
	Client  *http.Client
	BaseURL string
	Key     string
}

func NewFinnhub(key string) *Finnhub {
	return &Finnhub{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: "https://finnhub.io/api/v1",
		Key:     key,
	}
}

func (f *Finnhub) Fetch(symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/quote?symbol=%s&token=%s", f.BaseURL, symbol, f.Key)
	resp, err := f.Client.Get(url)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("finnhub quote %s: status %d", symbol, resp.StatusCode)
	}

	var quote struct {
		Current json.Number `json:"c"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(quote.Current.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("finnhub quote %s: bad price %q", symbol, quote.Current)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("finnhub quote %s: no price", symbol)
	}
	return price, nil
}

// Poller refreshes a last-seen price per symbol on a fixed interval,
// falling back to the synthetic walk when the primary provider fails.
type Poller struct {
	provider Provider
	fallback *Synthetic
	symbols  []string
	interval time.Duration
	log      zerolog.Logger

	mu   sync.RWMutex
	last map[string]decimal.Decimal
}

func NewPoller(provider Provider, symbols []string, interval time.Duration, log zerolog.Logger) *Poller {
	if provider == nil {
		provider = NewSynthetic()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		provider: provider,
		fallback: NewSynthetic(),
		symbols:  symbols,
		interval: interval,
		log:      log,
		last:     make(map[string]decimal.Decimal),
	}
}

// Run polls until the context is cancelled. The first refresh happens
// immediately so subscribers see a price without waiting a full interval.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info().
		Strs("symbols", p.symbols).
		Dur("interval", p.interval).
		Msg("Reference price poller started")

	p.refresh()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Reference price poller stopped")
			return
		case <-ticker.C:
			p.refresh()
		}
	}
}

func (p *Poller) refresh() {
	for _, symbol := range p.symbols {
		price, err := p.provider.Fetch(symbol)
		if err != nil {
			p.log.Debug().Err(err).Str("symbol", symbol).Msg("Provider fetch failed, using synthetic fallback")
			price, _ = p.fallback.Fetch(symbol)
		}
		p.mu.Lock()
		p.last[symbol] = price
		p.mu.Unlock()
	}
}

// Last returns the most recent reference price for a symbol, if any.
func (p *Poller) Last(symbol string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.last[symbol]
	return price, ok
}
