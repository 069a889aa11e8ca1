// Package rpc implements the sieve.BlockSource, sieve.Submitter, and
// sieve.HeightObserver interfaces over a Bitcoin-style JSON-RPC node, the
// way a rieMiner-alike Riecoin client talks to riecoind: poll
// getblocktemplate for new work, submitblock on a found candidate.
package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rieriver/sextsieve/internal/sieve"
	"github.com/rieriver/sextsieve/internal/utils"
)

// Client polls a Riecoin-like node for block templates and submits found
// candidates back to it. It satisfies sieve.BlockSource, sieve.Submitter,
// and sieve.HeightObserver, so one Client is all cmd/sextsieve needs to
// wire a Miner to a live node.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client

	url  string
	user string
	pass string

	pollInterval time.Duration

	requestID atomic.Int64
	height    atomic.Uint64

	mu       sync.Mutex
	lastHash string
}

// NewClient builds a Client targeting url, authenticating with user/pass
// via HTTP basic auth (matching the teacher's Bitcoin RPC client).
func NewClient(logger *zap.Logger, url, user, pass string) *Client {
	return &Client{
		logger:       logger,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		url:          url,
		user:         user,
		pass:         pass,
		pollInterval: 500 * time.Millisecond,
	}
}

// CurrentHeight implements sieve.HeightObserver.
func (c *Client) CurrentHeight() uint64 {
	return c.height.Load()
}

// template is the subset of getblocktemplate's result the engine needs to
// build a sieve.Block; everything else (transactions, coinbase value) is
// the concern of a full node-integration layer this module does not own.
type template struct {
	Height   uint64 `json:"height"`
	Bits     string `json:"bits"`
	Header   string `json:"headerhex"`
	PrevHash string `json:"previousblockhash"`
}

// Next implements sieve.BlockSource: it polls getblocktemplate until the
// template's previous-block hash changes, then returns a fresh Block. It
// blocks until a new, well-formed block template is available and always
// returns true.
func (c *Client) Next() (sieve.Block, bool) {
	ctx := context.Background()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		raw, tpl, err := c.getBlockTemplate(ctx)
		if err != nil {
			c.logger.Warn("getblocktemplate failed", zap.Error(err))
			<-ticker.C
			continue
		}

		c.mu.Lock()
		changed := tpl.PrevHash != c.lastHash
		if changed {
			c.lastHash = tpl.PrevHash
		}
		c.mu.Unlock()

		if !changed {
			<-ticker.C
			continue
		}

		c.height.Store(tpl.Height)

		if err := utils.ValidateHex(tpl.Header); err != nil {
			c.logger.Warn("malformed block template header", zap.Error(err))
			<-ticker.C
			continue
		}
		headerBytes, err := hex.DecodeString(tpl.Header)
		if err != nil || len(headerBytes) < 80 {
			c.logger.Warn("malformed block template header", zap.Error(err))
			<-ticker.C
			continue
		}

		if err := utils.ValidateHex(tpl.Bits); err != nil {
			c.logger.Warn("malformed block template bits", zap.Error(err))
			<-ticker.C
			continue
		}
		bits, err := parseHexUint32(tpl.Bits)
		if err != nil {
			c.logger.Warn("malformed block template bits", zap.Error(err))
			<-ticker.C
			continue
		}

		var block sieve.Block
		copy(block.Header[:], headerBytes[:80])
		block.TargetCompact = bits
		block.Height = tpl.Height
		block.GWD = raw
		return block, true
	}
}

// Submit implements sieve.Submitter by relaying the found offset to the
// node's submitblock RPC. gwd carries whatever getblocktemplate returned
// for this round; the node is responsible for reconstructing the full
// block from gwd plus offsetBytes.
func (c *Client) Submit(gwd interface{}, offsetBytes [32]byte, kFound uint8) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	params := []interface{}{gwd, hex.EncodeToString(offsetBytes[:]), kFound}
	var result interface{}
	if err := c.call(ctx, "submitblock", params, &result); err != nil {
		c.logger.Error("submitblock failed", zap.Uint8("k_found", kFound), zap.Error(err))
		return
	}
	c.logger.Info("submitted candidate", zap.Uint8("k_found", kFound))
}

func (c *Client) getBlockTemplate(ctx context.Context) (json.RawMessage, template, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "getblocktemplate", []interface{}{}, &raw); err != nil {
		return nil, template{}, err
	}
	var tpl template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return nil, template{}, err
	}
	return raw, tpl, nil
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	id := c.requestID.Add(1)

	request := map[string]interface{}{
		"jsonrpc": "1.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.pass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  interface{}     `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error: %v", envelope.Error)
	}

	return json.Unmarshal(envelope.Result, result)
}

func parseHexUint32(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "%08x", &v)
	return v, err
}
