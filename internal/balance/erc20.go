package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// Backend is the read-only slice of an Ethereum RPC client used here.
// *ethclient.Client satisfies it.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC20 is the read-only capability set of a fungible token contract.
type ERC20 interface {
	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	Decimals(ctx context.Context) (uint8, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// Token binds the ERC-20 ABI to a contract address.
type Token struct {
	address common.Address
	backend Backend
}

// NewToken binds a token contract.
func NewToken(address common.Address, backend Backend) *Token {
	return &Token{address: address, backend: backend}
}

// Address returns the bound contract address.
func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	payload, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	res, err := t.backend.CallContract(ctx, ethereum.CallMsg{To: &t.address, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, t.address.Hex(), err)
	}

	outputs, err := erc20ABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected %s response", method)
	}
	return outputs[0], nil
}

// Name calls name().
func (t *Token) Name(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "name")
	if err != nil {
		return "", err
	}
	name, ok := out.(string)
	if !ok {
		return "", errors.New("failed to decode name output")
	}
	return name, nil
}

// Symbol calls symbol().
func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := out.(string)
	if !ok {
		return "", errors.New("failed to decode symbol output")
	}
	return symbol, nil
}

// Decimals calls decimals().
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out.(uint8)
	if !ok {
		return 0, errors.New("failed to decode decimals output")
	}
	return decimals, nil
}

// BalanceOf calls balanceOf(account).
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.callUint(ctx, "balanceOf", account)
}

// Allowance calls allowance(owner, spender).
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callUint(ctx, "allowance", owner, spender)
}

func (t *Token) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := t.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to decode %s output", method)
	}
	return v, nil
}

var _ ERC20 = (*Token)(nil)
