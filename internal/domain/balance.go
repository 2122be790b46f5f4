package domain

import (
	"fmt"
	"sort"

	"paper_trade/pkg/quant"
	"paper_trade/pkg/safe"
)

// Balance is the ledger row for one currency.
// Units depend on the currency: cash in micros, assets in sats.
type Balance struct {
	Currency     string          `json:"currency"`
	Available    int64           `json:"available,string"`
	Locked       int64           `json:"locked,string"`
	Total        int64           `json:"total,string"`
	UpdatedUnixM quant.TimeStamp `json:"updated_at,string"`
}

// Credit adds to available and total.
func (b *Balance) Credit(amount int64, ts quant.TimeStamp) {
	b.mustPositive(amount)
	b.Available = safe.SafeAdd(b.Available, amount)
	b.Total = safe.SafeAdd(b.Total, amount)
	b.touch(ts)
}

// Debit removes from available and total. Panics if available is short.
func (b *Balance) Debit(amount int64, ts quant.TimeStamp) {
	b.mustPositive(amount)
	if b.Available < amount {
		panic(fmt.Sprintf("BALANCE_DEBIT_INSUFFICIENT: %s available=%d amount=%d", b.Currency, b.Available, amount))
	}
	b.Available = safe.SafeSub(b.Available, amount)
	b.Total = safe.SafeSub(b.Total, amount)
	b.touch(ts)
}

// Reserve moves amount from available to locked. No partial reservation.
func (b *Balance) Reserve(amount int64, ts quant.TimeStamp) error {
	b.mustPositive(amount)
	if b.Available < amount {
		return fmt.Errorf("%w: %s available %d, need %d", ErrInsufficientFunds, b.Currency, b.Available, amount)
	}
	b.Available = safe.SafeSub(b.Available, amount)
	b.Locked = safe.SafeAdd(b.Locked, amount)
	b.touch(ts)
	return nil
}

// Release moves amount from locked back to available.
func (b *Balance) Release(amount int64, ts quant.TimeStamp) {
	b.mustPositive(amount)
	if b.Locked < amount {
		panic(fmt.Sprintf("BALANCE_RELEASE_EXCEEDS_LOCKED: %s locked=%d amount=%d", b.Currency, b.Locked, amount))
	}
	b.Locked = safe.SafeSub(b.Locked, amount)
	b.Available = safe.SafeAdd(b.Available, amount)
	b.touch(ts)
}

// payLocked consumes locked funds; they leave the account.
func (b *Balance) payLocked(amount int64, ts quant.TimeStamp) {
	b.mustPositive(amount)
	if b.Locked < amount {
		panic(fmt.Sprintf("BALANCE_SETTLE_EXCEEDS_LOCKED: %s locked=%d amount=%d", b.Currency, b.Locked, amount))
	}
	b.Locked = safe.SafeSub(b.Locked, amount)
	b.Total = safe.SafeSub(b.Total, amount)
	b.touch(ts)
}

func (b *Balance) touch(ts quant.TimeStamp) {
	b.UpdatedUnixM = ts
	b.VerifyInvariant()
}

func (b *Balance) mustPositive(amount int64) {
	if amount < 0 {
		panic(fmt.Sprintf("BALANCE_NEGATIVE_AMOUNT: %s amount=%d", b.Currency, amount))
	}
}

// VerifyInvariant panics unless total == available + locked and none is negative.
func (b *Balance) VerifyInvariant() {
	if b.Available < 0 || b.Locked < 0 {
		panic(fmt.Sprintf("BALANCE_INVARIANT_VIOLATION: %s negative available=%d locked=%d", b.Currency, b.Available, b.Locked))
	}
	if b.Total != b.Available+b.Locked {
		panic(fmt.Sprintf("BALANCE_INVARIANT_VIOLATION: %s total=%d available=%d locked=%d", b.Currency, b.Total, b.Available, b.Locked))
	}
}

// BalanceBook is the per-account ledger keyed by currency.
// Not safe for concurrent use; the owner serializes access.
type BalanceBook struct {
	balances map[string]*Balance
}

// NewBalanceBook creates a ledger with zero balances for the given currencies.
func NewBalanceBook(currencies ...string) *BalanceBook {
	bb := &BalanceBook{balances: make(map[string]*Balance, len(currencies))}
	for _, c := range currencies {
		bb.row(c)
	}
	return bb
}

func (bb *BalanceBook) row(currency string) *Balance {
	b, ok := bb.balances[currency]
	if !ok {
		b = &Balance{Currency: currency}
		bb.balances[currency] = b
	}
	return b
}

// Get returns a copy of the balance. Unknown currencies read as zero.
func (bb *BalanceBook) Get(currency string) Balance {
	if b, ok := bb.balances[currency]; ok {
		return *b
	}
	return Balance{Currency: currency}
}

// Deposit credits available funds.
func (bb *BalanceBook) Deposit(currency string, amount int64, ts quant.TimeStamp) {
	if amount == 0 {
		bb.row(currency)
		return
	}
	bb.row(currency).Credit(amount, ts)
}

// Reserve locks amount of currency or returns ErrInsufficientFunds.
func (bb *BalanceBook) Reserve(currency string, amount int64, ts quant.TimeStamp) error {
	return bb.row(currency).Reserve(amount, ts)
}

// Release unlocks amount previously reserved.
func (bb *BalanceBook) Release(currency string, amount int64, ts quant.TimeStamp) {
	if amount == 0 {
		return
	}
	bb.row(currency).Release(amount, ts)
}

// Settle pays payAmount out of the locked payCurrency and credits receiveAmount
// of receiveCurrency. Both legs are validated before either is applied.
func (bb *BalanceBook) Settle(payCurrency string, payAmount int64, receiveCurrency string, receiveAmount int64, ts quant.TimeStamp) {
	pay := bb.row(payCurrency)
	if payAmount < 0 || receiveAmount < 0 || pay.Locked < payAmount {
		panic(fmt.Sprintf("BALANCE_SETTLE_INVALID: pay %s %d (locked %d), receive %s %d",
			payCurrency, payAmount, pay.Locked, receiveCurrency, receiveAmount))
	}
	recv := bb.row(receiveCurrency)
	pay.payLocked(payAmount, ts)
	recv.Credit(receiveAmount, ts)
}

// Snapshot returns copies of all balances sorted by currency.
func (bb *BalanceBook) Snapshot() []Balance {
	out := make([]Balance, 0, len(bb.balances))
	for _, b := range bb.balances {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// VerifyAll checks the invariant of every balance.
func (bb *BalanceBook) VerifyAll() {
	for _, b := range bb.balances {
		b.VerifyInvariant()
	}
}
