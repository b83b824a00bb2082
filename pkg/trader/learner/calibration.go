package learner

import (
	"fmt"
	"math"
	"sort"
)

// Calibration checks the fair-value model against what the session
// actually did: realized score volatility versus the configured sigma,
// and model fair value versus where prices finished.
type Calibration struct {
	Buckets       map[string]BucketStat `json:"fv_buckets"`
	SigmaEstimate float64               `json:"sigma_estimate,omitempty"`
	SigmaSamples  int                   `json:"sigma_samples"`
	Bias          float64               `json:"bias_cents"`
	BiasSamples   int                   `json:"bias_samples"`
}

// BucketStat is one 10-cent fair-value bucket: how many markets the
// model priced there and where their prices finished.
type BucketStat struct {
	Count         int     `json:"count"`
	AvgFinalPrice float64 `json:"avg_final_price"`
}

// calibrate estimates realized sigma from per-game lead changes and the
// model's price bias from fair-value buckets. One session cannot observe
// true settlement, so the final archived price stands in for it.
func (a *Analyzer) calibrate(data *sessionData) Calibration {
	cal := Calibration{Buckets: make(map[string]BucketStat)}

	type bucketAcc struct {
		count    int
		sumFinal int
	}
	acc := make(map[int]*bucketAcc)

	for _, history := range data.history {
		if len(history) < 10 {
			continue
		}
		var fvSum, fvN int
		for _, rec := range history {
			if rec.FairValue > 0 {
				fvSum += rec.FairValue
				fvN++
			}
		}
		if fvN == 0 {
			continue
		}

		final := quotePrice(history[len(history)-1])
		if final == 0 {
			final = 50
		}

		low := fvSum / fvN / 10 * 10
		b := acc[low]
		if b == nil {
			b = &bucketAcc{}
			acc[low] = b
		}
		b.count++
		b.sumFinal += final
	}

	var weighted float64
	var total int
	for low, b := range acc {
		avgFinal := float64(b.sumFinal) / float64(b.count)
		cal.Buckets[fmt.Sprintf("%d-%d", low, low+10)] = BucketStat{
			Count:         b.count,
			AvgFinalPrice: round1(avgFinal),
		}
		mid := float64(low + 5)
		weighted += (avgFinal - mid) * float64(b.count)
		total += b.count
	}
	if total > 0 {
		cal.Bias = round2(weighted / float64(total))
		cal.BiasSamples = total
	}

	// Each |lead change| between consecutive snapshots, scaled by the
	// square root of elapsed time, is one volatility sample.
	var samples []float64
	for _, snaps := range data.games {
		if len(snaps) < 10 {
			continue
		}
		for i := 1; i < len(snaps); i++ {
			dt := snaps[i].Timestamp.Sub(snaps[i-1].Timestamp).Minutes()
			if dt < 0.1 {
				continue
			}
			change := math.Abs(float64(snaps[i].Lead - snaps[i-1].Lead))
			samples = append(samples, change/math.Sqrt(dt/a.cfg.GameLengthMin))
		}
	}
	cal.SigmaSamples = len(samples)
	if len(samples) > a.cfg.MinSigmaSamples {
		var sum float64
		for _, s := range samples {
			sum += s
		}
		cal.SigmaEstimate = round1(sum / float64(len(samples)) * math.Sqrt(a.cfg.GameLengthMin))
	}
	return cal
}

// MarketInsights captures session-level market structure: where the
// volume was, which books stayed wide, which prices actually moved.
type MarketInsights struct {
	AvgSpreads    map[string]float64 `json:"avg_spreads"`
	VolumeLeaders []VolumeLeader     `json:"volume_leaders"`
	MostVolatile  []VolatileMarket   `json:"most_volatile"`
}

// VolumeLeader is a ticker ranked by its session-high volume.
type VolumeLeader struct {
	Ticker string `json:"ticker"`
	Volume int    `json:"volume"`
}

// VolatileMarket is a ticker whose price traversed at least ten cents.
type VolatileMarket struct {
	Ticker    string `json:"ticker"`
	Range     int    `json:"range"`
	Snapshots int    `json:"snapshots"`
}

func marketInsights(data *sessionData) MarketInsights {
	in := MarketInsights{AvgSpreads: make(map[string]float64)}

	for ticker, history := range data.history {
		if len(history) < 5 {
			continue
		}
		var spreadSum, spreadN, maxVol int
		var minPrice, maxPrice int
		for i, rec := range history {
			if rec.YesBid > 0 && rec.YesAsk > 0 {
				spreadSum += rec.YesAsk - rec.YesBid
				spreadN++
			}
			p := quotePrice(rec)
			if p == 0 {
				p = 50
			}
			if i == 0 || p < minPrice {
				minPrice = p
			}
			if i == 0 || p > maxPrice {
				maxPrice = p
			}
			if rec.Volume > maxVol {
				maxVol = rec.Volume
			}
		}

		avgSpread := 0.0
		if spreadN > 0 {
			avgSpread = float64(spreadSum) / float64(spreadN)
		}
		in.AvgSpreads[ticker] = round1(avgSpread)

		if maxVol > 0 {
			in.VolumeLeaders = append(in.VolumeLeaders, VolumeLeader{Ticker: ticker, Volume: maxVol})
		}
		if maxPrice-minPrice >= 10 {
			in.MostVolatile = append(in.MostVolatile, VolatileMarket{
				Ticker:    ticker,
				Range:     maxPrice - minPrice,
				Snapshots: len(history),
			})
		}
	}

	sort.Slice(in.VolumeLeaders, func(i, j int) bool {
		a, b := in.VolumeLeaders[i], in.VolumeLeaders[j]
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		return a.Ticker < b.Ticker
	})
	if len(in.VolumeLeaders) > 10 {
		in.VolumeLeaders = in.VolumeLeaders[:10]
	}

	sort.Slice(in.MostVolatile, func(i, j int) bool {
		a, b := in.MostVolatile[i], in.MostVolatile[j]
		if a.Range != b.Range {
			return a.Range > b.Range
		}
		return a.Ticker < b.Ticker
	})
	if len(in.MostVolatile) > 10 {
		in.MostVolatile = in.MostVolatile[:10]
	}
	return in
}
