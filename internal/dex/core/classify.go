package core

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/you/swap-estimator/internal/types"
)

type rule struct {
	kind    types.ErrorKind
	phrases []string
}

// Порядок важен: первое совпадение выигрывает.
var rules = []rule{
	{types.ErrPriceTooHigh, []string{"Mint amount lower than minimum", "Redeem amount lower than minimum"}},
	{types.ErrBelowPeg, []string{"Asset price below peg"}},
	{types.ErrNotEnoughLiquidity, []string{
		"Redeem failed",
		"Redeem exceeds balance",
		"reverted with reason string '5'",
		"Insufficient 3CRV balance",
	}},
	{types.ErrNoLiquidityPool, []string{"No available market"}},
	{types.ErrRedeemTooLow, []string{"Exchange resulted in fewer coins than expected"}},
}

// Classify maps a chain error to an ErrorKind. Unrecognized or nil errors are UNKNOWN.
func Classify(err error) types.ErrorKind {
	if err == nil {
		return types.ErrUnknown
	}
	return ClassifyMessage(Message(err))
}

func ClassifyMessage(msg string) types.ErrorKind {
	for _, r := range rules {
		for _, p := range r.phrases {
			if strings.Contains(msg, p) {
				return r.kind
			}
		}
	}
	return types.ErrUnknown
}

// Message prefers the node's nested revert data over the top-level error text.
func Message(err error) string {
	var de rpc.DataError
	if errors.As(err, &de) {
		if m := dataMessage(de.ErrorData()); m != "" {
			return m
		}
	}
	return err.Error()
}

func dataMessage(data interface{}) string {
	switch d := data.(type) {
	case string:
		if raw, ok := decodeHex(d); ok {
			if reason, err := abi.UnpackRevert(raw); err == nil {
				return reason
			}
			return ""
		}
		return d
	case map[string]interface{}:
		if m, ok := d["message"].(string); ok {
			return m
		}
	}
	return ""
}

func decodeHex(s string) ([]byte, bool) {
	if !strings.HasPrefix(s, "0x") {
		return nil, false
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, false
	}
	return raw, true
}
