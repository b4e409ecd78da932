package workload

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weiihann/ppbench/pessimistic"
)

// ErrDataUnavailable is returned when sample data cannot be read or parsed.
var ErrDataUnavailable = errors.New("workload: sample data unavailable")

//go:embed samples/bridge_exits_01.json
var canonicalBridgeExits []byte

// bridgeExitRaw is one entry of a sample bridge exit file.
type bridgeExitRaw struct {
	LeafType           uint8  `json:"leafType"`
	OriginalNetwork    uint32 `json:"origNetwork"`
	TokenAddress       string `json:"tokenAddress"`
	Amount             string `json:"amount"`
	DestinationNetwork uint32 `json:"destNetwork"`
	DestinationAddress string `json:"destAddress"`
	Metadata           string `json:"metadata,omitempty"`
}

// CanonicalBridgeExits returns the built-in sample sequence.
func CanonicalBridgeExits() ([]pessimistic.BridgeExit, error) {
	return parseBridgeExits(bytes.NewReader(canonicalBridgeExits))
}

// LoadBridgeExits reads a sample sequence from a JSON file.
func LoadBridgeExits(path string) ([]pessimistic.BridgeExit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	defer f.Close()

	exits, err := parseBridgeExits(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return exits, nil
}

func parseBridgeExits(r io.Reader) ([]pessimistic.BridgeExit, error) {
	var raws []bridgeExitRaw
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %v", ErrDataUnavailable, err)
	}

	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: no bridge exits", ErrDataUnavailable)
	}

	exits := make([]pessimistic.BridgeExit, 0, len(raws))

	for i, raw := range raws {
		exit, err := raw.toBridgeExit()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrDataUnavailable, i, err)
		}
		exits = append(exits, exit)
	}

	return exits, nil
}

func (raw bridgeExitRaw) toBridgeExit() (pessimistic.BridgeExit, error) {
	if !common.IsHexAddress(raw.TokenAddress) {
		return pessimistic.BridgeExit{}, fmt.Errorf("invalid token address %q", raw.TokenAddress)
	}
	if raw.DestinationAddress != "" && !common.IsHexAddress(raw.DestinationAddress) {
		return pessimistic.BridgeExit{}, fmt.Errorf("invalid destination address %q", raw.DestinationAddress)
	}

	amount, err := uint256.FromDecimal(raw.Amount)
	if err != nil {
		amount, err = uint256.FromHex(raw.Amount)
		if err != nil {
			return pessimistic.BridgeExit{}, fmt.Errorf("invalid amount %q", raw.Amount)
		}
	}

	return pessimistic.BridgeExit{
		LeafType: raw.LeafType,
		TokenInfo: pessimistic.TokenInfo{
			OriginNetwork:      raw.OriginalNetwork,
			OriginTokenAddress: common.HexToAddress(raw.TokenAddress),
		},
		DestNetwork: raw.DestinationNetwork,
		DestAddress: common.HexToAddress(raw.DestinationAddress),
		Amount:      amount,
		Metadata:    common.HexToHash(raw.Metadata),
	}, nil
}
