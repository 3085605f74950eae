package lifecycle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeforge/signalrun/internal/domain"
)

// flatCandles returns count bars pinned at price with a 20-point true
// range (ATR14 = 20) and flat volume.
func flatCandles(count int, price float64) []domain.Candle {
	candles := make([]domain.Candle, count)
	for i := range candles {
		candles[i] = domain.Candle{
			Open:   price,
			High:   price + 10,
			Low:    price - 10,
			Close:  price,
			Volume: 100,
		}
	}
	return candles
}

func activeSignal() *domain.Signal {
	return &domain.Signal{
		ID:        "sig-1",
		Symbol:    "BTCUSD",
		Direction: domain.Bullish,
		Entry:     domain.EntryZone{Optimal: 50000, Tolerance: 100},
		Stop:      49500,
		Targets:   []float64{50500, 51000, 51500},
		Status:    domain.SignalActive,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(48 * time.Hour),
	}
}

func TestUpdateSignalStatus_StopOut(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	manager.UpdateSignalStatus(signal, 49400, nil)

	assert.Equal(t, domain.SignalStoppedOut, signal.Status)
	require.Len(t, signal.ManagementUpdates, 1)
	assert.Contains(t, signal.ManagementUpdates[0], "Stopped out")
}

func TestUpdateSignalStatus_ShortStopOut(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()
	signal.Direction = domain.Bearish
	signal.Stop = 50500
	signal.Targets = []float64{49500, 49000}

	manager.UpdateSignalStatus(signal, 50600, nil)

	assert.Equal(t, domain.SignalStoppedOut, signal.Status)
}

func TestUpdateSignalStatus_Expiry(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()
	manager.now = func() time.Time { return signal.ExpiresAt.Add(time.Minute) }

	manager.UpdateSignalStatus(signal, 50100, nil)

	assert.Equal(t, domain.SignalExpired, signal.Status)
	require.Len(t, signal.ManagementUpdates, 1)
	assert.Contains(t, signal.ManagementUpdates[0], "Expired")
}

func TestUpdateSignalStatus_StopOutBeatsExpiry(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()
	manager.now = func() time.Time { return signal.ExpiresAt.Add(time.Minute) }

	manager.UpdateSignalStatus(signal, 49400, nil)

	assert.Equal(t, domain.SignalStoppedOut, signal.Status)
}

func TestUpdateSignalStatus_HighestTargetWins(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	manager.UpdateSignalStatus(signal, 51050, nil)

	assert.Equal(t, domain.SignalHitTP2, signal.Status)
	require.Len(t, signal.ManagementUpdates, 1)
	assert.Contains(t, signal.ManagementUpdates[0], "Target 2 hit")
}

func TestUpdateSignalStatus_StatusNeverRegresses(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	manager.UpdateSignalStatus(signal, 51050, nil) // TP2
	manager.UpdateSignalStatus(signal, 50600, nil) // back in TP1 territory

	assert.Equal(t, domain.SignalHitTP2, signal.Status)
	assert.Len(t, signal.ManagementUpdates, 1)
}

func TestUpdateSignalStatus_TerminalSignalsAreFrozen(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()
	signal.Status = domain.SignalStoppedOut

	manager.UpdateSignalStatus(signal, 52000, flatCandles(30, 52000))

	assert.Equal(t, domain.SignalStoppedOut, signal.Status)
	assert.Empty(t, signal.ManagementUpdates)
	assert.Nil(t, signal.TrailingStop)
}

func TestUpdateSignalStatus_TrailingStopEngages(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	// ATR14 = 20, so the ATR stop sits 50 under price; the swing low of
	// the last 10 bars is 50090. The tighter (higher) of the two wins.
	manager.UpdateSignalStatus(signal, 50250, flatCandles(30, 50100))

	require.NotNil(t, signal.TrailingStop)
	assert.InDelta(t, 50200.0, *signal.TrailingStop, 0.001)
	assertLogged(t, signal, "Trailing stop raised")
}

func TestUpdateSignalStatus_TrailingNeedsEnoughCandles(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	manager.UpdateSignalStatus(signal, 50250, flatCandles(19, 50100))

	assert.Nil(t, signal.TrailingStop)
}

func TestUpdateSignalStatus_TrailingStopIsMonotone(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	prices := []float64{50250, 50400, 50600, 50580, 50560, 50700}
	last := signal.Stop
	for _, price := range prices {
		manager.UpdateSignalStatus(signal, price, flatCandles(30, price-150))
		if signal.Status.Terminal() {
			t.Fatalf("signal unexpectedly terminal at price %.0f", price)
		}
		require.NotNil(t, signal.TrailingStop)
		assert.GreaterOrEqual(t, *signal.TrailingStop, last,
			"trailing stop loosened at price %.0f", price)
		last = *signal.TrailingStop
	}
}

func TestUpdateSignalStatus_TrailingStopTriggersStopOut(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	manager.UpdateSignalStatus(signal, 50250, flatCandles(30, 50100))
	require.NotNil(t, signal.TrailingStop)

	// Price above the original stop but through the trailing stop.
	manager.UpdateSignalStatus(signal, 50100, nil)

	assert.Equal(t, domain.SignalStoppedOut, signal.Status)
}

func TestUpdateSignalStatus_ShortTrailingStop(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()
	signal.Direction = domain.Bearish
	signal.Stop = 50500
	signal.Targets = []float64{49500, 49000}

	manager.UpdateSignalStatus(signal, 49750, flatCandles(30, 49900))

	require.NotNil(t, signal.TrailingStop)
	assert.Less(t, *signal.TrailingStop, signal.Stop)
	assertLogged(t, signal, "Trailing stop lowered")
}

func TestUpdateSignalStatus_PartialTPOnVolumeClimax(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	candles := flatCandles(30, 50100)
	candles[len(candles)-1].Volume = 300 // 3x the 20-bar average

	// 100 points of profit clears the 2xATR (40) gate.
	manager.UpdateSignalStatus(signal, 50100, candles)

	assertLogged(t, signal, "Partial take-profit")
	assertLogged(t, signal, "volume climax")
}

func TestUpdateSignalStatus_PartialTPOnRejectionWick(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	candles := flatCandles(30, 50100)
	last := &candles[len(candles)-1]
	last.Open = 50090
	last.Close = 50100 // body 10
	last.High = 50130  // upper wick 30 > 1.5x body

	manager.UpdateSignalStatus(signal, 50100, candles)

	assertLogged(t, signal, "rejection wick")
}

func TestUpdateSignalStatus_PartialTPRequiresProfit(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	candles := flatCandles(30, 50020)
	candles[len(candles)-1].Volume = 300

	// 20 points of profit is under the 2xATR (40) gate.
	manager.UpdateSignalStatus(signal, 50020, candles)

	for _, update := range signal.ManagementUpdates {
		assert.NotContains(t, update, "Partial take-profit")
	}
}

func TestUpdateSignalStatus_PartialTPAdvisedOnce(t *testing.T) {
	manager := NewManager(nil)
	signal := activeSignal()

	candles := flatCandles(30, 50100)
	candles[len(candles)-1].Volume = 300

	manager.UpdateSignalStatus(signal, 50100, candles)
	manager.UpdateSignalStatus(signal, 50120, candles)

	advisories := 0
	for _, update := range signal.ManagementUpdates {
		if strings.HasPrefix(update, "Partial take-profit") {
			advisories++
		}
	}
	assert.Equal(t, 1, advisories)
}

func TestAverageTrueRange(t *testing.T) {
	assert.InDelta(t, 20.0, averageTrueRange(flatCandles(30, 50000), 14), 0.001)
	assert.Zero(t, averageTrueRange(flatCandles(10, 50000), 14))

	// A gap between bars widens the true range past high-low.
	candles := flatCandles(16, 50000)
	candles[len(candles)-1].High = 50110
	candles[len(candles)-1].Low = 50090
	candles[len(candles)-1].Close = 50100
	atr := averageTrueRange(candles, 14)
	assert.Greater(t, atr, 20.0)
}

func assertLogged(t *testing.T, signal *domain.Signal, fragment string) {
	t.Helper()
	for _, update := range signal.ManagementUpdates {
		if strings.Contains(update, fragment) {
			return
		}
	}
	t.Errorf("expected a management update containing %q, got %v", fragment, signal.ManagementUpdates)
}
