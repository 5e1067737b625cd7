package patterns

import (
	"math"

	"crypto-signal-engine/internal/indicators"
)

type extremum struct {
	idx   int
	price float64
}

// DetectDoubleBottom finds two volume-confirmed local minima of similar
// depth separated by a meaningful peak and emits a buy setup above the
// second bottom.
func (d *Detector) DetectDoubleBottom(s indicators.Series) *Candidate {
	lows, volumes := s.Lows, s.Volumes
	if len(lows) < 80 {
		return nil
	}

	avgVolume := tailMean(volumes, 20)

	var minima []extremum
	for i := 20; i < len(lows)-20; i++ {
		if !localExtremum(lows, i, 20, false) {
			continue
		}
		if i < len(volumes) && volumes[i] >= avgVolume*0.8 {
			minima = append(minima, extremum{i, lows[i]})
		}
	}
	if len(minima) < 2 {
		return nil
	}

	first := minima[len(minima)-2]
	second := minima[len(minima)-1]

	if second.idx-first.idx < 20 {
		return nil
	}

	gap := math.Abs(first.price-second.price) / first.price
	if gap >= 0.015 {
		return nil
	}

	peak := lows[first.idx]
	for _, v := range lows[first.idx:second.idx] {
		if v > peak {
			peak = v
		}
	}
	height := peak - math.Min(first.price, second.price)
	if height/second.price < 0.02 {
		return nil
	}

	entry := second.price * 1.008
	return &Candidate{
		Pattern:    DoubleBottom,
		Entry:      entry,
		Target:     entry + height*0.8,
		Stop:       second.price * 0.985,
		Confidence: math.Min(85, 50+(1-gap)*35),
	}
}

// DetectHeadAndShoulders finds three volume-confirmed local maxima whose
// proportions and symmetry match a head-and-shoulders top, emitting a
// sell setup below the neckline.
func (d *Detector) DetectHeadAndShoulders(s indicators.Series) *Candidate {
	highs, volumes := s.Highs, s.Volumes
	if len(highs) < 100 {
		return nil
	}

	avgVolume := tailMean(volumes, 30)

	var peaks []extremum
	for i := 25; i < len(highs)-25; i++ {
		if !localExtremum(highs, i, 25, true) {
			continue
		}
		if i < len(volumes) && volumes[i] >= avgVolume*0.6 {
			peaks = append(peaks, extremum{i, highs[i]})
		}
	}
	if len(peaks) < 3 {
		return nil
	}

	left := peaks[len(peaks)-3]
	head := peaks[len(peaks)-2]
	right := peaks[len(peaks)-1]

	if head.idx-left.idx < 15 || right.idx-head.idx < 15 {
		return nil
	}

	headVsLeft := head.price / left.price
	headVsRight := head.price / right.price
	if headVsLeft < 1.03 || headVsLeft > 1.15 || headVsRight < 1.03 || headVsRight > 1.15 {
		return nil
	}

	if math.Abs(left.price-right.price)/left.price > 0.025 {
		return nil
	}

	neckline := math.Min(left.price, right.price)
	headHeight := head.price - neckline

	return &Candidate{
		Pattern:    HeadAndShoulders,
		Entry:      neckline * 0.998,
		Target:     neckline - headHeight*0.8,
		Stop:       head.price * 1.015,
		Confidence: 80,
	}
}
