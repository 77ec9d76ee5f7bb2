package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// TipJarABI is the interface of the deployed tip jar.
const TipJarABI = `[
	{
		"inputs": [],
		"stateMutability": "nonpayable",
		"type": "constructor"
	},
	{
		"inputs": [],
		"name": "getBalance",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "owner",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "tip",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "withdrawTips",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	MethodGetBalance   = "getBalance"
	MethodOwner        = "owner"
	MethodTip          = "tip"
	MethodWithdrawTips = "withdrawTips"
)

// TipJar packs calls to and unpacks results from the tip jar contract.
type TipJar struct {
	Address common.Address
	abi     abi.ABI
}

func NewTipJar(address common.Address) (*TipJar, error) {
	parsed, err := abi.JSON(strings.NewReader(TipJarABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return &TipJar{Address: address, abi: parsed}, nil
}

func (t *TipJar) Pack(method string) ([]byte, error) {
	data, err := t.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

func (t *TipJar) UnpackBalance(data []byte) (*big.Int, error) {
	out, err := t.abi.Unpack(MethodGetBalance, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", MethodGetBalance, err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", MethodGetBalance, out[0])
	}
	return bal, nil
}

func (t *TipJar) UnpackOwner(data []byte) (common.Address, error) {
	out, err := t.abi.Unpack(MethodOwner, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", MethodOwner, err)
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack %s: unexpected type %T", MethodOwner, out[0])
	}
	return owner, nil
}

// PackBalanceResult and PackOwnerResult encode return values; fake nodes in tests use them.
func (t *TipJar) PackBalanceResult(wei *big.Int) ([]byte, error) {
	return t.abi.Methods[MethodGetBalance].Outputs.Pack(wei)
}

func (t *TipJar) PackOwnerResult(owner common.Address) ([]byte, error) {
	return t.abi.Methods[MethodOwner].Outputs.Pack(owner)
}

// MethodName resolves calldata back to the method it invokes, or "".
func (t *TipJar) MethodName(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	m, err := t.abi.MethodById(data[:4])
	if err != nil {
		return ""
	}
	return m.Name
}
