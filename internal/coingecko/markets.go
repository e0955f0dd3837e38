package coingecko

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ivanglie/cryptofetcher/pkg/log"
)

// ErrNoCurrencies is returned when a markets query names no quote currency
var ErrNoCurrencies = errors.New("at least one quote currency is required")

// FetchMarkets requests market data once per quote currency, concurrently,
// and merges the responses by coin id. Any failed request fails the whole
// query.
func (c *Client) FetchMarkets(ctx context.Context, q MarketQuery) ([]MarketRecord, error) {
	if len(q.Currencies) == 0 {
		return nil, ErrNoCurrencies
	}

	results := make([][]MarketCoin, len(q.Currencies))

	g, ctx := errgroup.WithContext(ctx)
	for i, currency := range q.Currencies {
		g.Go(func() error {
			var coins []MarketCoin
			if err := c.get(ctx, MARKETS, marketParams(currency, q), &coins); err != nil {
				return err
			}
			results[i] = coins
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug(fmt.Sprintf("Got markets for %v", q.Currencies))
	return Merge(q.Currencies, results), nil
}

// Merge joins per-currency results into one record per coin. results[i]
// holds the response for currencies[i]. Only coins present in the first
// currency's result are kept, in that result's order; a coin seen only in
// a later result is dropped.
func Merge(currencies []string, results [][]MarketCoin) []MarketRecord {
	if len(currencies) == 0 || len(results) == 0 {
		return []MarketRecord{}
	}

	merged := make([]MarketRecord, 0, len(results[0]))
	index := make(map[string]int, len(results[0]))

	for _, coin := range results[0] {
		record := MarketRecord{
			ID:     coin.ID,
			Symbol: coin.Symbol,
			Name:   coin.Name,
			Image:  coin.Image,
			MarketData: map[string]CurrencyData{
				currencies[0]: currencyData(coin),
			},
		}
		// a repeated id replaces the earlier entry but keeps its position
		if i, ok := index[coin.ID]; ok {
			merged[i] = record
			continue
		}
		index[coin.ID] = len(merged)
		merged = append(merged, record)
	}

	for n := 1; n < len(results) && n < len(currencies); n++ {
		for _, coin := range results[n] {
			i, ok := index[coin.ID]
			if !ok {
				continue
			}
			merged[i].MarketData[currencies[n]] = currencyData(coin)
		}
	}

	return merged
}
