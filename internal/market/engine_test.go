package market

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DriftShield/internal/amm"
	"DriftShield/internal/emit"
	"DriftShield/internal/event"
	"DriftShield/internal/registry"
	"DriftShield/internal/state"
	"DriftShield/internal/store"
	"DriftShield/internal/testutil"
	"DriftShield/internal/vault"
)

type harness struct {
	engine  *Engine
	store   *store.Memory
	ledger  *vault.Ledger
	clock   *testutil.FixedClock
	emitter *testutil.CaptureEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.NewFixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemory()
	ledger := vault.NewLedger(clock, nil, zerolog.Nop())
	emitter := testutil.NewCaptureEmitter()
	engine := NewEngine(st, ledger, clock, emitter, nil, zerolog.Nop())
	return &harness{engine: engine, store: st, ledger: ledger, clock: clock, emitter: emitter}
}

func (h *harness) fund(t *testing.T, user uuid.UUID, amount uint64) {
	t.Helper()
	if err := h.ledger.Deposit(context.Background(), vault.UserAccount(user), amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (h *harness) createMarket(t *testing.T, creator uuid.UUID, p CreateMarketParams) *state.Market {
	t.Helper()
	p.Creator = creator
	if p.ResolutionTime.IsZero() {
		p.ResolutionTime = h.clock.Now().Add(24 * time.Hour)
	}
	m, err := h.engine.CreateMarket(context.Background(), p)
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	return m
}

func TestCreateMarketSeedsReserves(t *testing.T) {
	h := newHarness(t)
	creator := uuid.New()

	m := h.createMarket(t, creator, CreateMarketParams{
		Model:            state.ModelKey(creator, "resnet-v2"),
		Question:         "Will resnet-v2 accuracy drop below 90% by April?",
		MinStake:         1_000,
		AMMEnabled:       true,
		VirtualLiquidity: 1_000_000,
	})

	if m.Status != state.MarketStatusOpen {
		t.Errorf("status = %v, want Open", m.Status)
	}
	if m.VirtualYesReserve != 1_000_000 || m.VirtualNoReserve != 1_000_000 {
		t.Errorf("reserves = (%d, %d), want both 1000000", m.VirtualYesReserve, m.VirtualNoReserve)
	}
	if got := m.KConstant().String(); got != "1000000000000" {
		t.Errorf("k = %s, want 1000000000000", got)
	}

	if evs := h.emitter.EventsOfType(event.TypeMarketCreated); len(evs) != 1 {
		t.Errorf("MarketCreated events = %d, want 1", len(evs))
	}
}

func TestCreateMarketValidation(t *testing.T) {
	h := newHarness(t)
	creator := uuid.New()
	model := state.ModelKey(creator, "m")

	long := make([]byte, state.MaxQuestionLen+1)
	for i := range long {
		long[i] = 'q'
	}

	tests := []struct {
		name    string
		params  CreateMarketParams
		wantErr error
	}{
		{
			name: "question too long",
			params: CreateMarketParams{
				Creator: creator, Model: model, Question: string(long),
				ResolutionTime: h.clock.Now().Add(time.Hour),
				AMMEnabled:     true, VirtualLiquidity: 100,
			},
			wantErr: ErrQuestionTooLong,
		},
		{
			name: "resolution time in the past",
			params: CreateMarketParams{
				Creator: creator, Model: model, Question: "q",
				ResolutionTime: h.clock.Now().Add(-time.Second),
				AMMEnabled:     true, VirtualLiquidity: 100,
			},
			wantErr: ErrInvalidResolutionTime,
		},
		{
			name: "resolution time exactly now",
			params: CreateMarketParams{
				Creator: creator, Model: model, Question: "q",
				ResolutionTime: h.clock.Now(),
				AMMEnabled:     true, VirtualLiquidity: 100,
			},
			wantErr: ErrInvalidResolutionTime,
		},
		{
			name: "zero liquidity with curve enabled",
			params: CreateMarketParams{
				Creator: creator, Model: model, Question: "q",
				ResolutionTime: h.clock.Now().Add(time.Hour),
				AMMEnabled:     true, VirtualLiquidity: 0,
			},
			wantErr: ErrInvalidLiquidity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateMarket(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMarketDuplicateKey(t *testing.T) {
	h := newHarness(t)
	creator := uuid.New()
	model := state.ModelKey(creator, "m")

	h.createMarket(t, creator, CreateMarketParams{Model: model, Question: "q", AMMEnabled: true, VirtualLiquidity: 100})

	_, err := h.engine.CreateMarket(context.Background(), CreateMarketParams{
		Creator: creator, Model: model, Question: "again",
		ResolutionTime: h.clock.Now().Add(time.Hour),
		AMMEnabled:     true, VirtualLiquidity: 100,
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestPlaceBetCurvePricing(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	h.fund(t, bettor, 500_000)

	pos, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 100_000)
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	if pos.YesShares != 90_910 {
		t.Errorf("shares = %d, want 90910", pos.YesShares)
	}
	if pos.YesStake != 100_000 || pos.TotalStake != 100_000 {
		t.Errorf("stake = (%d, %d), want (100000, 100000)", pos.YesStake, pos.TotalStake)
	}

	got, err := h.store.GetMarket(context.Background(), m.Key)
	if err != nil {
		t.Fatalf("get market: %v", err)
	}
	if got.VirtualYesReserve != 1_100_000 {
		t.Errorf("yes reserve = %d, want 1100000", got.VirtualYesReserve)
	}
	if got.VirtualNoReserve != 909_090 {
		t.Errorf("no reserve = %d, want 909090", got.VirtualNoReserve)
	}
	if got.YesPool != 100_000 || got.TotalVolume != 100_000 {
		t.Errorf("pool/volume = (%d, %d), want (100000, 100000)", got.YesPool, got.TotalVolume)
	}
	if got.TotalYesShares != 90_910 {
		t.Errorf("total yes shares = %d, want 90910", got.TotalYesShares)
	}

	if bal := h.ledger.Balance(vault.CustodyAccount(m.Key)); bal != 100_000 {
		t.Errorf("custody balance = %d, want 100000", bal)
	}
	if bal := h.ledger.Balance(vault.UserAccount(bettor)); bal != 400_000 {
		t.Errorf("user balance = %d, want 400000", bal)
	}
}

func TestPlaceBetMinStakeBoundary(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		MinStake: 1_000, AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	h.fund(t, bettor, 10_000)

	if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 999); !errors.Is(err, ErrStakeTooLow) {
		t.Errorf("below minimum: err = %v, want ErrStakeTooLow", err)
	}
	if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 1_000); err != nil {
		t.Errorf("exactly minimum: err = %v, want nil", err)
	}
}

func TestPlaceBetLifecycleGuards(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	h.fund(t, bettor, 100_000)

	h.clock.Set(m.ResolutionTime)
	if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 10_000); !errors.Is(err, ErrMarketExpired) {
		t.Errorf("at deadline: err = %v, want ErrMarketExpired", err)
	}

	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 10_000); !errors.Is(err, ErrMarketClosed) {
		t.Errorf("after resolve: err = %v, want ErrMarketClosed", err)
	}
}

func TestPlaceBetFailedTransferNoMutation(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	// Bettor holds nothing; the stake transfer must fail.

	_, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 10_000)
	if !errors.Is(err, vault.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	got, gerr := h.store.GetMarket(context.Background(), m.Key)
	if gerr != nil {
		t.Fatalf("get market: %v", gerr)
	}
	if got.YesPool != 0 || got.TotalVolume != 0 || got.VirtualYesReserve != 1_000_000 {
		t.Errorf("market mutated after failed transfer: pool=%d volume=%d yesReserve=%d",
			got.YesPool, got.TotalVolume, got.VirtualYesReserve)
	}
	if _, perr := h.store.GetPosition(context.Background(), state.PositionKey(m.Key, bettor)); !errors.Is(perr, store.ErrNotFound) {
		t.Errorf("position created after failed transfer: err = %v", perr)
	}
}

func TestPlaceBetMonotoneCounters(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	h.fund(t, bettor, 1_000_000)

	var prevVolume, prevYesPool, prevNoPool, prevYesShares, prevNoShares uint64
	bets := []struct {
		outcome state.Outcome
		amount  uint64
	}{
		{state.OutcomeYes, 50_000},
		{state.OutcomeNo, 120_000},
		{state.OutcomeYes, 7},
		{state.OutcomeNo, 30_000},
		{state.OutcomeYes, 200_000},
	}
	for i, b := range bets {
		if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, b.outcome, b.amount); err != nil {
			t.Fatalf("bet %d: %v", i, err)
		}
		got, err := h.store.GetMarket(context.Background(), m.Key)
		if err != nil {
			t.Fatalf("get market: %v", err)
		}
		if got.TotalVolume < prevVolume || got.YesPool < prevYesPool || got.NoPool < prevNoPool ||
			got.TotalYesShares < prevYesShares || got.TotalNoShares < prevNoShares {
			t.Fatalf("bet %d: counter decreased", i)
		}
		prevVolume, prevYesPool, prevNoPool = got.TotalVolume, got.YesPool, got.NoPool
		prevYesShares, prevNoShares = got.TotalYesShares, got.TotalNoShares
	}
}

func TestResolveMarketGuards(t *testing.T) {
	h := newHarness(t)
	creator, stranger := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})

	// Before the deadline.
	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); !errors.Is(err, ErrMarketNotExpired) {
		t.Errorf("early resolve: err = %v, want ErrMarketNotExpired", err)
	}
	got, _ := h.store.GetMarket(context.Background(), m.Key)
	if got.Status != state.MarketStatusOpen || got.WinningOutcome != nil {
		t.Errorf("early resolve mutated market: status=%v outcome=%v", got.Status, got.WinningOutcome)
	}

	h.clock.Set(m.ResolutionTime)

	if err := h.engine.ResolveMarket(context.Background(), stranger, m.Key, state.OutcomeYes); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-creator resolve: err = %v, want ErrUnauthorized", err)
	}

	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeNo); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ = h.store.GetMarket(context.Background(), m.Key)
	if got.Status != state.MarketStatusResolved || got.WinningOutcome == nil || *got.WinningOutcome != state.OutcomeNo {
		t.Errorf("resolved market state wrong: status=%v outcome=%v", got.Status, got.WinningOutcome)
	}
	if !got.ResolvedAt.Equal(m.ResolutionTime) {
		t.Errorf("resolved_at = %v, want %v", got.ResolvedAt, m.ResolutionTime)
	}

	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); !errors.Is(err, ErrMarketAlreadyResolved) {
		t.Errorf("double resolve: err = %v, want ErrMarketAlreadyResolved", err)
	}
}

func TestParitySettlement(t *testing.T) {
	h := newHarness(t)
	creator, yesUser, noUser := uuid.New(), uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
	})
	h.fund(t, yesUser, 100_000)
	h.fund(t, noUser, 100_000)

	if _, err := h.engine.PlaceBet(context.Background(), yesUser, m.Key, state.OutcomeYes, 100_000); err != nil {
		t.Fatalf("yes bet: %v", err)
	}
	if _, err := h.engine.PlaceBet(context.Background(), noUser, m.Key, state.OutcomeNo, 100_000); err != nil {
		t.Fatalf("no bet: %v", err)
	}

	h.clock.Set(m.ResolutionTime)
	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	payout, err := h.engine.ClaimWinnings(context.Background(), yesUser, m.Key)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// Parity mode: 100000 shares against a 200000 pool over 100000
	// winning shares.
	if payout != 200_000 {
		t.Errorf("payout = %d, want 200000", payout)
	}
	if bal := h.ledger.Balance(vault.UserAccount(yesUser)); bal != 200_000 {
		t.Errorf("winner balance = %d, want 200000", bal)
	}
	if bal := h.ledger.Balance(vault.CustodyAccount(m.Key)); bal != 0 {
		t.Errorf("custody balance = %d, want 0", bal)
	}
}

func TestClaimIdempotence(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	h.fund(t, bettor, 100_000)
	if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 100_000); err != nil {
		t.Fatalf("bet: %v", err)
	}

	h.clock.Set(m.ResolutionTime)
	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	payout, err := h.engine.ClaimWinnings(context.Background(), bettor, m.Key)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// Sole winner takes the whole pool.
	if payout != 100_000 {
		t.Errorf("payout = %d, want 100000", payout)
	}

	if _, err := h.engine.ClaimWinnings(context.Background(), bettor, m.Key); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("second claim: err = %v, want ErrAlreadyClaimed", err)
	}
	if bal := h.ledger.Balance(vault.UserAccount(bettor)); bal != 100_000 {
		t.Errorf("balance after double claim = %d, want 100000 (no double transfer)", bal)
	}
}

func TestClaimGuards(t *testing.T) {
	h := newHarness(t)
	creator, yesUser, noUser := uuid.New(), uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	h.fund(t, yesUser, 100_000)
	h.fund(t, noUser, 100_000)
	if _, err := h.engine.PlaceBet(context.Background(), yesUser, m.Key, state.OutcomeYes, 100_000); err != nil {
		t.Fatalf("yes bet: %v", err)
	}
	if _, err := h.engine.PlaceBet(context.Background(), noUser, m.Key, state.OutcomeNo, 100_000); err != nil {
		t.Fatalf("no bet: %v", err)
	}

	// Unresolved.
	if _, err := h.engine.ClaimWinnings(context.Background(), yesUser, m.Key); !errors.Is(err, ErrMarketNotResolved) {
		t.Errorf("unresolved claim: err = %v, want ErrMarketNotResolved", err)
	}

	h.clock.Set(m.ResolutionTime)
	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Loser holds zero winning shares.
	if _, err := h.engine.ClaimWinnings(context.Background(), noUser, m.Key); !errors.Is(err, ErrNoWinningStake) {
		t.Errorf("losing claim: err = %v, want ErrNoWinningStake", err)
	}
	losePos, _ := h.store.GetPosition(context.Background(), state.PositionKey(m.Key, noUser))
	if losePos.Claimed {
		t.Error("losing position marked claimed")
	}

	// No position at all.
	if _, err := h.engine.ClaimWinnings(context.Background(), uuid.New(), m.Key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("no-position claim: err = %v, want ErrNotFound", err)
	}
}

func TestClaimPayoutsNeverExceedPool(t *testing.T) {
	h := newHarness(t)
	creator := uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})

	users := make([]uuid.UUID, 5)
	amounts := []uint64{33_333, 100_000, 7, 250_001, 60_000}
	for i := range users {
		users[i] = uuid.New()
		h.fund(t, users[i], amounts[i])
		outcome := state.OutcomeYes
		if i%2 == 1 {
			outcome = state.OutcomeNo
		}
		if _, err := h.engine.PlaceBet(context.Background(), users[i], m.Key, outcome, amounts[i]); err != nil {
			t.Fatalf("bet %d: %v", i, err)
		}
	}

	resolved, _ := h.store.GetMarket(context.Background(), m.Key)
	totalPool := resolved.YesPool + resolved.NoPool

	h.clock.Set(m.ResolutionTime)
	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var paid uint64
	for i, u := range users {
		payout, err := h.engine.ClaimWinnings(context.Background(), u, m.Key)
		if i%2 == 1 {
			if !errors.Is(err, ErrNoWinningStake) {
				t.Fatalf("loser %d: err = %v, want ErrNoWinningStake", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("winner %d: %v", i, err)
		}
		paid += payout
	}

	if paid > totalPool {
		t.Errorf("payouts %d exceed pool %d", paid, totalPool)
	}
	// Floor division remainder stays in custody.
	if bal := h.ledger.Balance(vault.CustodyAccount(m.Key)); bal != totalPool-paid {
		t.Errorf("custody remainder = %d, want %d", bal, totalPool-paid)
	}
	if sum := h.ledger.GlobalSum(); sum != 0 {
		t.Errorf("global ledger sum = %d, want 0", sum)
	}
}

func TestRegistryHookTracksActiveMarket(t *testing.T) {
	h := newHarness(t)
	creator := uuid.New()
	reg := registry.NewEngine(h.store, h.clock, emit.Nop{}, nil, zerolog.Nop())
	h.engine.SetRegistry(reg)

	model, err := reg.RegisterModel(context.Background(), registry.RegisterModelParams{
		Owner: creator, ModelID: "fraud-v3", Name: "fraud detector", BaselineAccuracy: 9700,
	})
	if err != nil {
		t.Fatalf("register model: %v", err)
	}

	m := h.createMarket(t, creator, CreateMarketParams{
		Model: model.Key, Question: "q", AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	got, _ := h.store.GetModel(context.Background(), model.Key)
	if !got.HasActiveMarket {
		t.Error("model not flagged after market creation")
	}

	h.clock.Set(m.ResolutionTime)
	if err := h.engine.ResolveMarket(context.Background(), creator, m.Key, state.OutcomeYes); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, _ = h.store.GetModel(context.Background(), model.Key)
	if got.HasActiveMarket {
		t.Error("model still flagged after resolution")
	}
}

func TestGetPrices(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})

	p, err := h.engine.GetPrices(context.Background(), m.Key)
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if p.YesBps != 5000 || p.NoBps != 5000 {
		t.Errorf("balanced prices = (%d, %d), want (5000, 5000)", p.YesBps, p.NoBps)
	}

	h.fund(t, bettor, 100_000)
	if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, state.OutcomeYes, 100_000); err != nil {
		t.Fatalf("bet: %v", err)
	}

	p, err = h.engine.GetPrices(context.Background(), m.Key)
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if p.YesBps <= 5000 {
		t.Errorf("yes price = %d, want > 5000 after yes bet", p.YesBps)
	}
	if sum := p.YesBps + p.NoBps; sum != amm.BasisPointScale && sum != amm.BasisPointScale-1 {
		t.Errorf("price sum = %d, want 10000 or 9999", sum)
	}
}

func TestCurveProductNeverExceedsK(t *testing.T) {
	h := newHarness(t)
	creator, bettor := uuid.New(), uuid.New()
	m := h.createMarket(t, creator, CreateMarketParams{
		Model: state.ModelKey(creator, "m"), Question: "q",
		AMMEnabled: true, VirtualLiquidity: 1_000_000,
	})
	h.fund(t, bettor, 10_000_000)

	k := m.KConstant()
	for i, amount := range []uint64{1, 13, 50_000, 123_456, 999_999} {
		outcome := state.OutcomeYes
		if i%2 == 0 {
			outcome = state.OutcomeNo
		}
		if _, err := h.engine.PlaceBet(context.Background(), bettor, m.Key, outcome, amount); err != nil {
			t.Fatalf("bet %d: %v", i, err)
		}
		got, _ := h.store.GetMarket(context.Background(), m.Key)
		product := new(big.Int).Mul(
			new(big.Int).SetUint64(got.VirtualYesReserve),
			new(big.Int).SetUint64(got.VirtualNoReserve),
		)
		if product.Cmp(k) > 0 {
			t.Fatalf("bet %d: reserve product %s exceeds k %s", i, product, k)
		}
	}
}
