// Package config loads executor settings from the environment. A .env file
// in the working directory is honored when present.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Settings struct {
	RPCURL   string
	RelayURL string
	ChainID  *big.Int

	// ExecutorKeyHex signs the front-run/back-run transactions.
	ExecutorKeyHex string
	// RelayAuthKeyHex signs relay requests (X-Flashbots-Signature). Falls
	// back to the executor key when unset.
	RelayAuthKeyHex string

	// Routers is the set of interesting recipient contracts.
	Routers []common.Address

	ScanInterval time.Duration
	ScanLimit    int
	CallTimeout  time.Duration

	MaxPipelines   int
	RebuildOnStale bool

	GasLimit       uint64
	StaticProfit   *big.Int
	MinProposerPay *big.Int

	MetricsAddr string
	LogPretty   bool
	LogDebug    bool
}

// Load reads settings from the environment, loading .env first if it exists.
func Load() (Settings, error) {
	_ = godotenv.Load()

	st := Settings{
		RPCURL:          get("RPC_URL", "https://eth.llamarpc.com"),
		RelayURL:        get("RELAY_URL", "https://relay.flashbots.net"),
		ExecutorKeyHex:  get("EXECUTOR_PRIVATE_KEY", ""),
		RelayAuthKeyHex: get("RELAY_AUTH_PRIVATE_KEY", ""),
		ScanInterval:    getDuration("SCAN_INTERVAL", time.Second*5),
		ScanLimit:       getInt("SCAN_LIMIT", 10),
		CallTimeout:     getDuration("CALL_TIMEOUT", time.Second*5),
		MaxPipelines:    getInt("MAX_PIPELINES", 8),
		RebuildOnStale:  getBool("REBUILD_ON_STALE", true),
		GasLimit:        getUint("BUNDLE_GAS_LIMIT", 250_000),
		MetricsAddr:     get("METRICS_ADDR", ":9090"),
		LogPretty:       getBool("LOG_PRETTY", false),
		LogDebug:        getBool("LOG_DEBUG", false),
	}

	chainID := getInt64("CHAIN_ID", 1)
	st.ChainID = big.NewInt(chainID)

	var err error
	if st.StaticProfit, err = getWei("STATIC_PROFIT_WEI", "10000000000000000"); err != nil {
		return Settings{}, err
	}
	if st.MinProposerPay, err = getWei("MIN_PROPOSER_PAYMENT_WEI", "0"); err != nil {
		return Settings{}, err
	}
	if st.MinProposerPay.Sign() == 0 {
		st.MinProposerPay = nil
	}

	for _, raw := range splitCSV(get("ROUTERS", "")) {
		if !common.IsHexAddress(raw) {
			return Settings{}, fmt.Errorf("invalid router address %q", raw)
		}
		st.Routers = append(st.Routers, common.HexToAddress(raw))
	}

	return st, st.validate()
}

func (st Settings) validate() error {
	if st.ExecutorKeyHex == "" {
		return errors.New("EXECUTOR_PRIVATE_KEY must be provided")
	}
	if len(st.Routers) == 0 {
		return errors.New("ROUTERS must list at least one contract address")
	}
	return nil
}

func get(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(get(key, "")); err == nil {
		return n
	}
	return def
}

func getUint(key string, def uint64) uint64 {
	if n, err := strconv.ParseUint(get(key, ""), 10, 64); err == nil {
		return n
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if n, err := strconv.ParseInt(get(key, ""), 10, 64); err == nil {
		return n
	}
	return def
}

func getBool(key string, def bool) bool {
	switch strings.ToLower(get(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(get(key, "")); err == nil && d > 0 {
		return d
	}
	return def
}

func getWei(key, def string) (*big.Int, error) {
	raw := get(key, def)
	wei, ok := new(big.Int).SetString(raw, 10)
	if ok {
		return wei, nil
	}
	return nil, fmt.Errorf("failed to parse %s from string base: 10 value: %v", key, raw)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
