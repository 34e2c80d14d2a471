package multicall

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall2: tryAggregate не ревертит весь батч, если упал один вызов.
const multicallABI = `[
{
    "inputs": [
        {"internalType": "bool", "name": "requireSuccess", "type": "bool"},
        {
            "components": [
                {"internalType": "address", "name": "target", "type": "address"},
                {"internalType": "bytes", "name": "callData", "type": "bytes"}
            ],
            "internalType": "struct Multicall2.Call[]",
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "tryAggregate",
    "outputs": [
        {
            "components": [
                {"internalType": "bool", "name": "success", "type": "bool"},
                {"internalType": "bytes", "name": "returnData", "type": "bytes"}
            ],
            "internalType": "struct Multicall2.Result[]",
            "name": "returnData",
            "type": "tuple[]"
        }
    ],
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

// Caller is the subset of ethclient the multicall client needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

type IClient interface {
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	c    Caller
	addr common.Address
	abi  abi.ABI
}

func New(c Caller, multicallAddr common.Address) (*Client, error) {
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	if multicallAddr == (common.Address{}) {
		return nil, fmt.Errorf("multicall address is not configured")
	}
	return &Client{c: c, addr: multicallAddr, abi: parsedABI}, nil
}

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

func (c *Client) Address() common.Address { return c.addr }

// Aggregate выполняет все вызовы одним eth_call. Упавшие вызовы возвращаются с Success=false.
func (c *Client) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	payload, err := c.abi.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	res, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}
	return c.decode(res, len(calls))
}

func (c *Client) decode(raw []byte, want int) ([]Result, error) {
	outs, err := c.abi.Methods["tryAggregate"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty output")
		}
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}

	rows, ok := outs[0].([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	})
	if !ok {
		return nil, fmt.Errorf("unexpected tryAggregate output %T", outs[0])
	}
	if len(rows) != want {
		return nil, fmt.Errorf("tryAggregate: got %d results for %d calls", len(rows), want)
	}
	out := make([]Result, len(rows))
	for i, r := range rows {
		out[i] = Result{Success: r.Success, Data: r.ReturnData}
	}
	return out, nil
}
