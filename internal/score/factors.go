package score

import (
	"fmt"
	"math"

	"github.com/edgeforge/signalrun/internal/credibility"
	"github.com/edgeforge/signalrun/internal/domain"
)

// contribution is one factor's output: a point delta and exactly one
// breakdown line. A contribution with zero points still carries its
// line; veto marks the trap-zone hard veto.
type contribution struct {
	points float64
	label  string
	risk   bool
	veto   bool
}

// factorContext bundles the read-only inputs every factor sees.
type factorContext struct {
	setup   *domain.Setup
	state   *domain.MarketStateSnapshot
	cred    credibility.Assessment
	weight  float64 // dynamic performance multiplier
	profile profileParams
	regime  regimeParams
}

// factorFunc evaluates one scoring factor. A nil/empty return means
// the relevant snapshot field is absent and the factor does not apply.
type factorFunc func(fc *factorContext) []contribution

// orderedFactors is the fixed priority order of factor evaluation.
// Points are summed across all contributions before the final clamp.
var orderedFactors = []factorFunc{
	goldenConfluenceFactor,
	credibilityFactor,
	performanceFactor,
	riskRewardFactor,
	htfAlignmentFactor,
	institutionalClusterFactor,
	magnetConflictFactor,
	orderFlowFactor,
	volumeProfileFactor,
	macroBiasFactor,
	correlationFactor,
	orderBookDepthFactor,
	newsShockFactor,
	trapZoneFactor,
	cyclePhaseFactor,
	liquiditySweepFactor,
	alphaStatusFactor,
	momentumClusterFactor,
	sentimentFactor,
	fractalFactor,
	directionalConfidenceFactor,
}

func positive(points float64, format string, args ...interface{}) contribution {
	return contribution{points: points, label: fmt.Sprintf(format, args...)}
}

func negative(points float64, format string, args ...interface{}) contribution {
	return contribution{points: points, label: fmt.Sprintf(format, args...), risk: true}
}

// withinPct reports whether a is within pct percent of b.
func withinPct(a, b, pct float64) bool {
	if b == 0 {
		return false
	}
	return math.Abs(a-b)/b*100 <= pct
}

// 1. Golden confluence: HTF bias, local trend, sentiment and
// institutional volume all agreeing with the setup direction.
func goldenConfluenceFactor(fc *factorContext) []contribution {
	st := fc.state
	if st.MTF == nil || st.Trend == nil || st.Sentiment == nil || st.VolumeAnalysis == nil {
		return nil
	}
	dir := fc.setup.Direction
	if st.MTF.GlobalBias == dir && st.Trend.Direction == dir &&
		st.Sentiment.Label == dir && st.VolumeAnalysis.IsInstitutional {
		return []contribution{positive(50, "Golden confluence: HTF bias, trend, sentiment and institutional volume all %s (+50)", dir)}
	}
	return nil
}

// 2. Strategy credibility tiers from the posterior probability.
func credibilityFactor(fc *factorContext) []contribution {
	p := fc.cred.Probability
	switch {
	case p >= 0.80:
		return []contribution{positive(40, "Premium strategy credibility %.0f%% (+40)", p*100)}
	case p >= 0.65:
		return []contribution{positive(25, "Strong strategy credibility %.0f%% (+25)", p*100)}
	case p < 0.50:
		return []contribution{negative(0, "Low strategy credibility %.0f%% in current regime", p*100)}
	}
	return nil
}

// 3. Adaptive performance multiplier, as discrete bands.
func performanceFactor(fc *factorContext) []contribution {
	switch {
	case fc.weight > 1.1:
		return []contribution{positive(15, "Strategy on a hot streak, weight %.2f (+15)", fc.weight)}
	case fc.weight < 0.9:
		return []contribution{negative(-25, "Strategy underperforming, weight %.2f (-25)", fc.weight)}
	}
	return nil
}

// 4. Risk:reward graded against the profile minimum.
func riskRewardFactor(fc *factorContext) []contribution {
	rr := fc.setup.RiskReward
	minRR := fc.profile.MinRR
	switch {
	case rr >= 2.0*minRR:
		return []contribution{positive(20, "Exceptional R:R %.1f vs %.1f minimum (+20)", rr, minRR)}
	case rr >= 1.5*minRR:
		return []contribution{positive(15, "Excellent R:R %.1f vs %.1f minimum (+15)", rr, minRR)}
	case rr >= minRR:
		return []contribution{positive(8, "Acceptable R:R %.1f vs %.1f minimum (+8)", rr, minRR)}
	case rr >= 0.75*minRR:
		return []contribution{positive(3, "Marginal R:R %.1f vs %.1f minimum (+3)", rr, minRR)}
	default:
		return []contribution{negative(0, "R:R %.1f below %s profile minimum %.1f", rr, fc.profile.Profile, minRR)}
	}
}

// 5. Higher-timeframe alignment scaled by profile and regime weights.
func htfAlignmentFactor(fc *factorContext) []contribution {
	st := fc.state
	if st.MTF == nil {
		return nil
	}
	scale := fc.profile.HTFWeight * fc.regime.TrendWeight
	dir := fc.setup.Direction

	if st.MTF.GlobalBias == domain.Neutral {
		return []contribution{positive(5, "HTF bias neutral, no headwind (+5)")}
	}

	magnitude := 15.0
	if st.MTF.Strong {
		magnitude = 25.0
	}
	if st.MTF.GlobalBias == dir {
		pts := magnitude * scale
		return []contribution{positive(pts, "Aligned with %s HTF bias (%+.1f)", st.MTF.GlobalBias, pts)}
	}
	pts := -magnitude * scale
	return []contribution{negative(pts, "Fighting %s HTF bias (%.1f)", st.MTF.GlobalBias, pts)}
}

// 6. Institutional confluence cluster: volume participation, SMT
// divergence, killzone session, obligation-magnet alignment.
func institutionalClusterFactor(fc *factorContext) []contribution {
	st := fc.state
	dir := fc.setup.Direction
	var out []contribution

	if st.VolumeAnalysis != nil {
		if st.VolumeAnalysis.IsInstitutional {
			out = append(out, positive(10, "Institutional volume participation (+10)"))
		} else if st.Regime == domain.Trending {
			out = append(out, negative(-15, "Trending regime without institutional volume (-15)"))
		}
	}

	if st.SMT != nil {
		switch {
		case st.SMT.Direction == dir && st.SMT.InterMarket:
			out = append(out, positive(35, "Inter-market SMT divergence confirms %s (+35)", dir))
		case st.SMT.Direction == dir.Opposite():
			out = append(out, negative(-20, "SMT divergence conflicts with %s setup (-20)", dir))
		case st.SMT.Direction == dir && st.SMT.Confluence > 70:
			out = append(out, positive(25, "SMT divergence aligned, confluence %.0f (+25)", st.SMT.Confluence))
		case st.SMT.Direction == dir:
			out = append(out, positive(15, "SMT divergence aligned (+15)"))
		}
	}

	if st.Session != nil && st.Session.InKillzone {
		base := 10.0
		name := "Killzone session active"
		switch st.Session.Hour {
		case 8, 9, 13, 14:
			base = 20.0
			name = "Power-hour killzone active"
		}
		pts := base * fc.profile.KillzoneWeight
		out = append(out, positive(pts, "%s (%+.1f)", name, pts))
	}

	for _, magnet := range st.Magnets {
		if magnet.Obligation && magnet.Direction == dir {
			out = append(out, positive(15, "Obligation target at %.2f supports %s (+15)", magnet.Price, dir))
			break
		}
	}

	return out
}

// 7. Magnet-conflict veto: a high-urgency liquidity magnet pulling the
// opposite way outweighs most confluence.
func magnetConflictFactor(fc *factorContext) []contribution {
	dir := fc.setup.Direction
	var strongest *domain.LiquidityMagnet
	for i := range fc.state.Magnets {
		magnet := &fc.state.Magnets[i]
		if magnet.Urgency <= 80 {
			continue
		}
		if strongest == nil || magnet.Urgency > strongest.Urgency {
			strongest = magnet
		}
	}
	if strongest == nil {
		return nil
	}
	if strongest.Direction == dir.Opposite() {
		return []contribution{negative(-40, "High-urgency liquidity magnet at %.2f pulls against %s (-40)", strongest.Price, dir)}
	}
	if strongest.Direction == dir {
		return []contribution{positive(15, "High-urgency liquidity magnet at %.2f pulls with %s (+15)", strongest.Price, dir)}
	}
	return nil
}

// 8. Order-flow whale detection: iceberg walls near entry, absorption,
// CVD slope.
func orderFlowFactor(fc *factorContext) []contribution {
	flow := fc.state.OrderFlow
	if flow == nil {
		return nil
	}
	dir := fc.setup.Direction
	entry := fc.setup.Entry.Optimal
	var out []contribution

	for _, wall := range flow.Icebergs {
		if !withinPct(wall.Price, entry, 0.5) {
			continue
		}
		if wall.Direction == dir {
			out = append(out, positive(25, "Iceberg wall at %.2f defends %s entry (+25)", wall.Price, dir))
		} else if wall.Direction == dir.Opposite() {
			out = append(out, negative(-30, "Iceberg wall at %.2f blocks %s entry (-30)", wall.Price, dir))
		}
		break
	}

	absorbed := false
	if flow.Absorption != nil && flow.Absorption.Direction == dir {
		absorbed = true
		out = append(out, positive(20, "Absorption supporting %s (+20)", dir))
	}

	if flow.CVDDirection == dir {
		out = append(out, positive(10, "CVD slope confirms %s (+10)", dir))
	} else if flow.CVDDirection == dir.Opposite() && !absorbed {
		out = append(out, negative(-5, "CVD slope against %s without absorption cover (-5)", dir))
	}

	return out
}

// 9. Volume-profile / DOM confluence around the entry.
func volumeProfileFactor(fc *factorContext) []contribution {
	vp := fc.state.VolumeProfile
	if vp == nil {
		return nil
	}
	entry := fc.setup.Entry.Optimal
	var out []contribution

	if withinPct(vp.POC, entry, 0.5) {
		out = append(out, positive(5, "Entry at point of control %.2f (+5)", vp.POC))
	}
	if vp.NakedPOC != nil {
		out = append(out, positive(5, "Naked POC magnet at %.2f (+5)", *vp.NakedPOC))
	}
	if vp.DOMWall != nil {
		out = append(out, positive(5, "DOM wall at %.2f (+5)", *vp.DOMWall))
	}
	return out
}

// 10. Macro cross-asset bias verdict.
func macroBiasFactor(fc *factorContext) []contribution {
	macro := fc.state.Macro
	if macro == nil {
		return nil
	}
	dir := fc.setup.Direction
	switch {
	case macro.Action == domain.MacroVeto && macro.Direction == dir.Opposite():
		return []contribution{negative(-50, "Macro veto: cross-asset bias %s (-50)", macro.Direction)}
	case macro.Action == domain.MacroBoost && macro.Direction == dir:
		return []contribution{positive(25, "Macro boost: cross-asset bias %s (+25)", macro.Direction)}
	case macro.Direction == dir:
		return []contribution{positive(15, "Macro bias aligned %s (+15)", macro.Direction)}
	case macro.Direction == dir.Opposite():
		return []contribution{negative(-15, "Macro bias conflicting %s (-15)", macro.Direction)}
	}
	return nil
}

// 11. Correlation-cluster crowding risk.
func correlationFactor(fc *factorContext) []contribution {
	corr := fc.state.Correlation
	if corr == nil {
		return nil
	}
	switch corr.Level {
	case "EXTREME":
		return []contribution{negative(-25, "Extreme correlation-cluster risk (-25)")}
	case "HIGH":
		return []contribution{negative(-10, "High correlation-cluster risk (-10)")}
	}
	return nil
}

// 12. Order-book depth alignment, a 10-point bonus scaled 1.5x.
func orderBookDepthFactor(fc *factorContext) []contribution {
	book := fc.state.OrderBook
	if book == nil || book.BidDepth <= 0 || book.AskDepth <= 0 {
		return nil
	}
	const ratio = 1.2
	if fc.setup.Direction == domain.Bullish && book.BidDepth >= ratio*book.AskDepth {
		return []contribution{positive(15, "Bid depth %.1fx ask supports longs (+15)", book.BidDepth/book.AskDepth)}
	}
	if fc.setup.Direction == domain.Bearish && book.AskDepth >= ratio*book.BidDepth {
		return []contribution{positive(15, "Ask depth %.1fx bid supports shorts (+15)", book.AskDepth/book.BidDepth)}
	}
	return nil
}

// 13. Active high-severity news shock.
func newsShockFactor(fc *factorContext) []contribution {
	shock := fc.state.NewsShock
	if shock == nil {
		return nil
	}
	if shock.Severity == "HIGH" {
		return []contribution{negative(-35, "Active high-severity news shock: %s (-35)", shock.Message)}
	}
	return nil
}

// 14. Trap-zone proximity. An entry-adjacent trap in the setup's
// direction is a hard veto: the score is driven to the floor
// regardless of other factors.
func trapZoneFactor(fc *factorContext) []contribution {
	traps := fc.state.TrapZones
	if traps == nil {
		return nil
	}
	entry := fc.setup.Entry.Optimal

	directional := traps.BullTraps
	if fc.setup.Direction == domain.Bearish {
		directional = traps.BearTraps
	}
	for _, trap := range directional {
		if withinPct(trap.Price, entry, 0.3) {
			return []contribution{{
				points: -100,
				label:  fmt.Sprintf("Trap zone at %.2f adjacent to entry: setup vetoed (-100)", trap.Price),
				risk:   true,
				veto:   true,
			}}
		}
	}
	if len(traps.BullTraps) > 0 || len(traps.BearTraps) > 0 {
		return []contribution{negative(-10, "Trap zones detected nearby (-10)")}
	}
	return nil
}

// 15. Accumulation/manipulation/distribution cycle-phase alignment.
func cyclePhaseFactor(fc *factorContext) []contribution {
	cycle := fc.state.Cycle
	if cycle == nil {
		return nil
	}
	dir := fc.setup.Direction
	switch cycle.Phase {
	case domain.PhaseManipulation:
		if cycle.JudasSwing {
			if cycle.Direction == dir {
				return []contribution{negative(-40, "Judas swing: entering with the manipulation (-40)")}
			}
			return []contribution{positive(25, "Fading the Judas swing manipulation (+25)")}
		}
	case domain.PhaseDistribution, domain.PhaseExpansion:
		if cycle.Direction == dir {
			return []contribution{positive(20, "%s phase aligned with %s (+20)", cycle.Phase, dir)}
		}
		return []contribution{negative(-30, "%s phase against %s (-30)", cycle.Phase, dir)}
	case domain.PhaseAccumulation:
		return []contribution{negative(-10, "Accumulation phase: directional edge unproven (-10)")}
	}
	return nil
}

// 16. Liquidity-sweep alignment.
func liquiditySweepFactor(fc *factorContext) []contribution {
	sweep := fc.state.LiquiditySweep
	if sweep == nil {
		return nil
	}
	if sweep.Direction == fc.setup.Direction {
		return []contribution{positive(30, "Liquidity sweep favors %s continuation (+30)", sweep.Direction)}
	}
	return nil
}

// 17. Aggregated alpha engine-status lookup with leak penalties.
func alphaStatusFactor(fc *factorContext) []contribution {
	alpha := fc.state.Alpha
	if alpha == nil {
		return nil
	}
	var out []contribution
	for _, engine := range alpha.Engines {
		switch engine.Status {
		case "INSTITUTIONAL":
			out = append(out, positive(15, "%s engine institutional-grade (+15)", engine.Name))
		case "HIGH_ALPHA":
			out = append(out, positive(8, "%s engine high-alpha (+8)", engine.Name))
		case "DEGRADING":
			out = append(out, negative(-12, "%s engine degrading (-12)", engine.Name))
		}
	}
	for _, leak := range alpha.Leaks {
		if leak.Severity == "HIGH" {
			out = append(out, negative(-20, "Active high-severity alpha leak (-20)"))
		} else {
			out = append(out, negative(-10, "Active alpha leak (-10)"))
		}
	}
	return out
}

// 18. Momentum oscillator cluster, pre-multiplied by the regime's
// oscillator weight.
func momentumClusterFactor(fc *factorContext) []contribution {
	mom := fc.state.Momentum
	if mom == nil {
		return nil
	}
	dir := fc.setup.Direction
	oscW := fc.regime.OscillatorWeight
	var out []contribution

	stochAligned := mom.StochCross != nil && *mom.StochCross == dir
	if !stochAligned {
		if dir == domain.Bullish && mom.StochOversold {
			stochAligned = true
		}
		if dir == domain.Bearish && mom.StochOverbought {
			stochAligned = true
		}
	}
	if stochAligned {
		pts := 10 * oscW
		out = append(out, positive(pts, "Stochastic setup confirms %s (%+.1f)", dir, pts))
	}

	if mom.RSI != nil {
		rsi := *mom.RSI
		switch {
		case dir == domain.Bullish && rsi > 80, dir == domain.Bearish && rsi < 20:
			pts := -15 * oscW
			out = append(out, negative(pts, "RSI %.0f extreme overextension (%.1f)", rsi, pts))
		case dir == domain.Bullish && rsi >= 40 && rsi <= 70,
			dir == domain.Bearish && rsi >= 30 && rsi <= 60:
			pts := 5 * oscW
			out = append(out, positive(pts, "RSI %.0f in favorable zone (%+.1f)", rsi, pts))
		}
	}

	if mom.MACDHistSlope != nil {
		slope := *mom.MACDHistSlope
		if (dir == domain.Bullish && slope > 0) || (dir == domain.Bearish && slope < 0) {
			pts := 10 * oscW
			out = append(out, positive(pts, "MACD histogram slope confirms %s (%+.1f)", dir, pts))
		}
	}

	return out
}

// 19. Crowd-sentiment alignment, confidence-gated.
func sentimentFactor(fc *factorContext) []contribution {
	sent := fc.state.Sentiment
	if sent == nil {
		return nil
	}
	dir := fc.setup.Direction
	magnitude := 5.0
	if sent.Confidence >= 0.7 {
		magnitude = 10.0
	}
	if sent.Label == dir {
		return []contribution{positive(magnitude, "Sentiment %s aligned (%+.0f)", sent.Label, magnitude)}
	}
	if sent.Label == dir.Opposite() {
		return []contribution{negative(-magnitude, "Sentiment %s conflicting (%.0f)", sent.Label, -magnitude)}
	}
	return nil
}

// 20. Fractal-pattern match, confidence-scaled.
func fractalFactor(fc *factorContext) []contribution {
	fractal := fc.state.Fractal
	if fractal == nil {
		return nil
	}
	dir := fc.setup.Direction
	if fractal.Direction == dir {
		pts := math.Round(20 * fractal.Confidence)
		if pts > 0 {
			return []contribution{positive(pts, "Fractal pattern match %.0f%% confidence (%+.0f)", fractal.Confidence*100, pts)}
		}
		return nil
	}
	if fractal.Direction == dir.Opposite() && fractal.Confidence >= 0.7 {
		return []contribution{negative(-15, "Fractal pattern confidently conflicting (-15)")}
	}
	return nil
}

// 21. The detector's own directional-confidence field.
func directionalConfidenceFactor(fc *factorContext) []contribution {
	if fc.setup.Confidence == nil {
		return nil
	}
	conf := *fc.setup.Confidence
	switch {
	case conf >= 0.7:
		return []contribution{positive(15, "Directional confidence %.0f%% (+15)", conf*100)}
	case conf < 0.5:
		return []contribution{negative(-20, "Weak directional confidence %.0f%% (-20)", conf*100)}
	}
	return nil
}
