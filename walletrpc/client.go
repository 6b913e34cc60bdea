// Copyright 2024 The dscan Authors
// This file is part of the dscan library.
//
// The dscan library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The dscan library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the dscan library. If not, see <http://www.gnu.org/licenses/>.

package walletrpc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// Client is a typed HTTP client for the wallet node's REST surface. It holds
// one fasthttp.Client for the process lifetime; fasthttp.Client is safe for
// concurrent use so callers share a single instance.
type Client struct {
	endpoint string
	http     *fasthttp.Client
}

// New builds a Client against endpoint (host:port, no scheme).
func New(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http: &fasthttp.Client{
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
	}
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("http://%s%s", c.endpoint, path)
}

// post issues a POST with a JSON body and decodes the {status,data} envelope
// into out. A non-2xx status is decoded as an Error and returned as such;
// any transport-level failure (dial refused, timeout) is returned unwrapped
// so callers can classify it as transient.
func (c *Client) post(path string, body interface{}, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetRequestURI(c.url(path))

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req.SetBody(payload)

	if err := c.http.DoTimeout(req, resp, readTimeout); err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *fasthttp.Response, out interface{}) error {
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		var rpcErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.Body(), &rpcErr); err != nil {
			return NewError(CodeUnknown, status, string(resp.Body()))
		}
		return NewError(rpcErr.Code, status, rpcErr.Message)
	}
	if out == nil {
		return nil
	}
	var env Response
	env.Data = out
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return NewError(CodeUnknown, status, err.Error())
	}
	return nil
}

// GetLatestBlock fetches the node's current chain tip and genesis.
func (c *Client) GetLatestBlock() (*GetLatestBlockResponse, error) {
	var out GetLatestBlockResponse
	if err := c.post("/chain/getChainInfo", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlock fetches a single block by sequence.
func (c *Client) GetBlock(sequence int64) (*GetBlockResponse, error) {
	var out GetBlockResponse
	req := GetBlockRequest{Sequence: sequence, Serialized: true}
	if err := c.post("/chain/getBlock", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlocks fetches a contiguous range of blocks in one call.
func (c *Client) GetBlocks(start, end uint64) (*GetBlocksResponse, error) {
	var out GetBlocksResponse
	req := GetBlocksRequest{Start: start, End: end}
	if err := c.post("/chain/getBlocks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAccountHead commits one account's scan progress and discovered
// transactions to the wallet node.
func (c *Client) SetAccountHead(req SetAccountHeadRequest) error {
	return c.post("/wallet/setAccountHead", req, nil)
}

// SetScanning toggles whether the node should keep scheduling scans for an
// account.
func (c *Client) SetScanning(req SetScanningRequest) error {
	return c.post("/wallet/setScanning", req, nil)
}

// ResetAccount clears an account's recorded head and/or scanning flag so it
// is rescanned from genesis.
func (c *Client) ResetAccount(req ResetAccountRequest) error {
	return c.post("/wallet/resetAccount", req, nil)
}

// GetAccountStatus returns the wallet node's recorded head for an account.
func (c *Client) GetAccountStatus(req GetAccountStatusRequest) (*GetAccountStatusResponse, error) {
	var out GetAccountStatusResponse
	if err := c.post("/wallet/getAccountStatus", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
