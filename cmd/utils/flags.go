// Copyright 2018 The klaytn Authors
// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from cmd/utils/flags.go (2018/06/04).
// Modified and improved for the klaytn development.
// Further adapted for dscan's scheduler CLI surface.

package utils

import (
	"os"
	"path/filepath"

	"gopkg.in/urfave/cli.v1"
)

const version = "0.1.0"

// NewApp builds the dscan cli.App shell, following the klaytn NewApp idiom.
func NewApp(gitCommit, usage string) *cli.App {
	app := cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Author = ""
	app.Email = ""
	app.Version = version
	if len(gitCommit) >= 8 {
		app.Version += "-" + gitCommit[:8]
	}
	app.Usage = usage
	return app
}

var (
	// DListenFlag is the TCP address the worker-facing framed protocol
	// listener binds to.
	DListenFlag = cli.StringFlag{
		Name:  "dlisten",
		Usage: "worker protocol listen address (host:port)",
		Value: "0.0.0.0:7070",
	}

	// RestfulFlag is the HTTP address the scan-intake REST endpoint binds to.
	RestfulFlag = cli.StringFlag{
		Name:  "restful",
		Usage: "REST intake listen address (host:port)",
		Value: "0.0.0.0:8080",
	}

	// DBConfigFlag is the block store location: its value is used as-is as
	// the MySQL DSN (mysql backend) or the badger data directory (badger
	// backend). It is not opened or parsed as a config file.
	DBConfigFlag = cli.StringFlag{
		Name:  "dbconfig",
		Usage: "block store location: MySQL DSN or badger data directory",
		Value: "dscan.dbconfig.json",
	}

	// DBTypeFlag selects the BlockStore backend (mysql or badger).
	DBTypeFlag = cli.StringFlag{
		Name:  "dbtype",
		Usage: "block store backend: mysql or badger",
		Value: "badger",
	}

	// NodeFlag is the wallet node's RPC endpoint.
	NodeFlag = cli.StringFlag{
		Name:  "node",
		Usage: "wallet node RPC endpoint (host:port, no scheme)",
	}

	// ServerFlag is the front-end endpoint notified on scan completion.
	ServerFlag = cli.StringFlag{
		Name:  "server",
		Usage: "front-end endpoint notified of ScanCompleted events",
	}

	// NetworkFlag selects the chain network parameter set (0=testnet, 1=mainnet).
	NetworkFlag = cli.IntFlag{
		Name:  "network",
		Usage: "network id: 0 (testnet) or 1 (mainnet)",
		Value: 1,
	}

	// OperatorFlag is the operator's hex-encoded secp256k1 public key used
	// to verify signed scan requests.
	OperatorFlag = cli.StringFlag{
		Name:  "operator",
		Usage: "hex-encoded operator public key for scan request signatures",
	}

	// VerbosityFlag sets dlog's log level (0=info, 1 or more=debug).
	VerbosityFlag = cli.IntFlag{
		Name:  "v",
		Usage: "log verbosity: 0 (info), 1 (debug), 2 (debug)",
		Value: 1,
	}

	// MetricsListenFlag is the Prometheus /metrics listen address.
	MetricsListenFlag = cli.StringFlag{
		Name:  "metrics-listen",
		Usage: "prometheus /metrics listen address (host:port), empty disables it",
		Value: "0.0.0.0:9090",
	}

	// KafkaBrokersFlag is a comma-separated Kafka broker list; empty disables
	// the Kafka event stream.
	KafkaBrokersFlag = cli.StringFlag{
		Name:  "kafka-brokers",
		Usage: "comma-separated Kafka broker addresses, empty disables event publishing",
	}

	// KafkaTopicFlag is the topic ScanCompleted/StatusTick events publish to.
	KafkaTopicFlag = cli.StringFlag{
		Name:  "kafka-topic",
		Usage: "Kafka topic for scan events",
		Value: "dscan.events",
	}

	// RedisAddrFlag is the optional Redis instance used for cross-replica
	// intake idempotency; empty disables it.
	RedisAddrFlag = cli.StringFlag{
		Name:  "redis-addr",
		Usage: "redis address for cross-replica intake dedup, empty disables it",
	}
)
