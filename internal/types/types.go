package types

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeMint   Mode = "MINT"
	ModeRedeem Mode = "REDEEM"
	ModeWrap   Mode = "WRAP"
	ModeUnwrap Mode = "UNWRAP"
)

// ParseMode нормализует строку режима; неизвестный режим возвращается как есть,
// предикаты его просто не примут.
func ParseMode(s string) Mode {
	return Mode(strings.ToUpper(strings.TrimSpace(s)))
}

func (m Mode) Valid() bool {
	switch m {
	case ModeMint, ModeRedeem, ModeWrap, ModeUnwrap:
		return true
	}
	return false
}

type ErrorKind string

const (
	ErrUnknown                ErrorKind = "UNKNOWN"
	ErrUnsupported            ErrorKind = "UNSUPPORTED"
	ErrUnimplemented          ErrorKind = "UNIMPLEMENTED"
	ErrNotEnoughBalance       ErrorKind = "NOT_ENOUGH_BALANCE"
	ErrNotEnoughContractFunds ErrorKind = "NOT_ENOUGH_CONTRACT_FUNDS"
	ErrPriceTooHigh           ErrorKind = "PRICE_TOO_HIGH"
	ErrBelowPeg               ErrorKind = "BELOW_PEG"
	ErrNotEnoughLiquidity     ErrorKind = "NOT_ENOUGH_LIQUIDITY"
	ErrNoLiquidityPool        ErrorKind = "NO_LIQUIDITY_POOL"
	ErrRedeemTooLow           ErrorKind = "REDEEM_TOO_LOW"
	ErrBadSwapRatio           ErrorKind = "BAD_SWAP_RATIO"
)

// severity: чем меньше, тем полезнее показать пользователю.
var severity = map[ErrorKind]int{
	ErrNotEnoughBalance:       0,
	ErrNotEnoughContractFunds: 1,
	ErrPriceTooHigh:           2,
	ErrBelowPeg:               3,
	ErrRedeemTooLow:           4,
	ErrBadSwapRatio:           5,
	ErrNotEnoughLiquidity:     6,
	ErrNoLiquidityPool:        7,
	ErrUnknown:                8,
	ErrUnimplemented:          9,
	ErrUnsupported:            10,
}

// Severity orders error kinds for surfacing the most actionable one.
func (k ErrorKind) Severity() int {
	if s, ok := severity[k]; ok {
		return s
	}
	return len(severity)
}

type Token struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Address  *common.Address `json:"address,omitempty"` // nil для нативной монеты
	Decimals uint8           `json:"decimals"`
	Balance  *big.Int        `json:"balance,omitempty"`
	Mix      []string        `json:"mix,omitempty"`
}

func (t Token) IsNative() bool { return t.Address == nil && len(t.Mix) == 0 }

func (t Token) IsMix() bool { return len(t.Mix) > 0 }

// Addr returns the token address, zero address for the native coin.
func (t Token) Addr() common.Address {
	if t.Address == nil {
		return common.Address{}
	}
	return *t.Address
}

// WithBalance returns a copy carrying the holder balance.
func (t Token) WithBalance(b *big.Int) Token {
	if b != nil {
		t.Balance = new(big.Int).Set(b)
	}
	return t
}

type Settings struct {
	Tolerance decimal.Decimal `json:"tolerance"` // доля, 0.01 = 1%
	Gwei      decimal.Decimal `json:"gwei"`      // 0 - брать цену газа из сети
}

type SwapRequest struct {
	Mode     Mode            `json:"mode"`
	From     Token           `json:"fromToken"`
	To       Token           `json:"toToken"`
	Amount   decimal.Decimal `json:"amount"`
	Address  common.Address  `json:"address"`
	Settings Settings        `json:"settings"`
}
