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

// Package dnet implements the worker wire protocol: a newline-delimited
// JSON envelope carrying RegisterWorker/TaskRequest/TaskResponse frames
// over any io.ReadWriter (a net.Conn in production).
package dnet

import (
	"encoding/json"
	"fmt"

	"github.com/groundx/dscan/chainmodel"
)

// Kind tags which variant a DMessage envelope carries.
type Kind string

const (
	KindRegisterWorker Kind = "RegisterWorker"
	KindTaskRequest     Kind = "DRequest"
	KindTaskResponse    Kind = "DResponse"
)

// RegisterWorker is sent by a worker both to announce its stable name on
// first connect and, afterwards, as a 30s keep-alive heartbeat.
type RegisterWorker struct {
	Name string `json:"name"`
}

// TaskResponse is sent by a worker once it finishes trial-decrypting the
// notes in a TaskRequest. Data is the ordered list of transaction hashes
// that matched the account's view keys; an empty Data is a valid "nothing
// found in this block" response, not an error.
type TaskResponse struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Data    []string `json:"data"`
}

// DMessage is the tagged union carried by each frame. Exactly one of the
// three fields is non-nil after unmarshalFrame; marshalFrame requires
// exactly one to be set.
type DMessage struct {
	RegisterWorker *RegisterWorker      `json:"RegisterWorker,omitempty"`
	TaskRequest     *chainmodel.Task     `json:"DRequest,omitempty"`
	TaskResponse    *TaskResponse        `json:"DResponse,omitempty"`
}

func (m DMessage) kind() (Kind, error) {
	set := 0
	var k Kind
	if m.RegisterWorker != nil {
		set++
		k = KindRegisterWorker
	}
	if m.TaskRequest != nil {
		set++
		k = KindTaskRequest
	}
	if m.TaskResponse != nil {
		set++
		k = KindTaskResponse
	}
	if set != 1 {
		return "", fmt.Errorf("dnet: message must carry exactly one variant, got %d", set)
	}
	return k, nil
}

// RegisterWorkerMessage builds the RegisterWorker envelope.
func RegisterWorkerMessage(name string) DMessage {
	return DMessage{RegisterWorker: &RegisterWorker{Name: name}}
}

// TaskRequestMessage builds the DRequest envelope (scheduler -> worker).
func TaskRequestMessage(t *chainmodel.Task) DMessage {
	return DMessage{TaskRequest: t}
}

// TaskResponseMessage builds the DResponse envelope (worker -> scheduler).
func TaskResponseMessage(r *TaskResponse) DMessage {
	return DMessage{TaskResponse: r}
}

func marshalFrame(m DMessage) ([]byte, error) {
	if _, err := m.kind(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func unmarshalFrame(b []byte) (DMessage, error) {
	var m DMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return DMessage{}, err
	}
	if _, err := m.kind(); err != nil {
		return DMessage{}, err
	}
	return m, nil
}
