package relay

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type SendBundleResponse struct {
	BundleHash common.Hash `json:"bundleHash"`
}

type SimBundleResponse struct {
	Success         bool           `json:"success"`
	Error           string         `json:"error,omitempty"`
	StateBlock      hexutil.Uint64 `json:"stateBlock"`
	MevGasPrice     hexutil.Big    `json:"mevGasPrice"`
	Profit          hexutil.Big    `json:"profit"`
	RefundableValue hexutil.Big    `json:"refundableValue"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	ExecError       string         `json:"execError,omitempty"`
	Revert          hexutil.Bytes  `json:"revert,omitempty"`
}

type bundleStatsArgs struct {
	BundleHash  common.Hash    `json:"bundleHash"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
}

type builderSeenAt struct {
	Pubkey    string    `json:"pubkey"`
	Timestamp time.Time `json:"timestamp"`
}

type BundleStatsResponse struct {
	IsSimulated    bool      `json:"isSimulated"`
	IsHighPriority bool      `json:"isHighPriority"`
	SimulatedAt    time.Time `json:"simulatedAt"`
	ReceivedAt     time.Time `json:"receivedAt"`

	ConsideredByBuildersAt []builderSeenAt `json:"consideredByBuildersAt"`
	SealedByBuildersAt     []builderSeenAt `json:"sealedByBuildersAt"`
}
