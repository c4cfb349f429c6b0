package fees

import (
	"errors"
	"math/big"

	"splitstream/core/types"
	"splitstream/native/split"
)

// MaxFeeBps caps the protocol fee at 5%.
const MaxFeeBps = 500

var (
	ErrFeeTooHigh      = errors.New("fees: fee basis points exceed maximum")
	ErrCollectorNotSet = errors.New("fees: fee collector not configured")
)

// Policy captures the protocol-wide fee configuration. The policy is global
// and may only be replaced by the settlement admin; the version increments on
// every accepted update so downstream consumers can detect changes.
type Policy struct {
	FeeBps    uint32        `json:"feeBps"`
	Collector types.Address `json:"collector"`
	Version   uint64        `json:"version"`
}

// Validate checks the policy bounds. A zero-fee policy does not require a
// collector; any positive fee does.
func (p Policy) Validate() error {
	if p.FeeBps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	if p.FeeBps > 0 && types.ZeroAddress(p.Collector) {
		return ErrCollectorNotSet
	}
	return nil
}

// Apply evaluates the policy against a gross amount and returns the protocol
// fee together with the remaining net. Floor division guarantees that
// fee + net == gross for every input; zero and negative amounts never accrue
// a fee.
func (p Policy) Apply(gross *big.Int) (fee *big.Int, net *big.Int) {
	fee = big.NewInt(0)
	if gross != nil {
		net = new(big.Int).Set(gross)
	} else {
		net = big.NewInt(0)
	}
	if net.Sign() <= 0 || p.FeeBps == 0 {
		return fee, net
	}
	fee = new(big.Int).Mul(net, big.NewInt(int64(p.FeeBps)))
	fee = fee.Quo(fee, big.NewInt(split.BpsDenominator))
	if fee.Sign() <= 0 {
		return big.NewInt(0), net
	}
	net = net.Sub(net, fee)
	return fee, net
}
