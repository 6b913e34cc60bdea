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

// This file is derived from cmd/kcn/main.go's app.Action/app.Run shell and
// cmd/utils/cmd.go's Fatalf/signal-drain idiom.

package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/groundx/dscan/chainstore"
	"github.com/groundx/dscan/cmd/utils"
	"github.com/groundx/dscan/dlog"
	"github.com/groundx/dscan/intake"
	"github.com/groundx/dscan/metrics"
	"github.com/groundx/dscan/notify"
	"github.com/groundx/dscan/opsign"
	"github.com/groundx/dscan/params"
	"github.com/groundx/dscan/scansvc"
	"github.com/groundx/dscan/walletrpc"

	"github.com/go-redis/redis/v7"
	"gopkg.in/urfave/cli.v1"
)

var (
	logger = dlog.NewModuleLogger("main")

	app = utils.NewApp("", "the distributed scan scheduler for a view-key wallet backend")

	appFlags = []cli.Flag{
		utils.DListenFlag,
		utils.RestfulFlag,
		utils.DBConfigFlag,
		utils.DBTypeFlag,
		utils.NodeFlag,
		utils.ServerFlag,
		utils.NetworkFlag,
		utils.OperatorFlag,
		utils.VerbosityFlag,
		utils.MetricsListenFlag,
		utils.KafkaBrokersFlag,
		utils.KafkaTopicFlag,
		utils.RedisAddrFlag,
	}
)

func init() {
	app.Flags = appFlags
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	dlog.SetVerbosity(ctx.GlobalInt(utils.VerbosityFlag.Name))

	network, ok := params.ByID(uint8(ctx.GlobalInt(utils.NetworkFlag.Name)))
	if !ok {
		utils.Fatalf("unknown --network id %d", ctx.GlobalInt(utils.NetworkFlag.Name))
	}

	store, err := chainstore.Open(chainstore.Config{
		Backend: chainstore.BackendType(ctx.GlobalString(utils.DBTypeFlag.Name)),
		DSN:     ctx.GlobalString(utils.DBConfigFlag.Name),
		Dir:     ctx.GlobalString(utils.DBConfigFlag.Name),
		LRUSize: 4096,
	})
	if err != nil {
		utils.Fatalf("opening block store: %v", err)
	}
	defer store.Close()

	nodeEndpoint := ctx.GlobalString(utils.NodeFlag.Name)
	if nodeEndpoint == "" {
		utils.Fatalf("--node is required")
	}
	rpc := walletrpc.New(nodeEndpoint)

	ingester := chainstore.NewIngester(store, rpc, network)

	notifier, closeProducer := buildNotifier(ctx)
	if closeProducer != nil {
		defer closeProducer()
	}

	manager := scansvc.NewManager(store, rpc, network, notifier)

	verifier, err := opsign.NewVerifier(ctx.GlobalString(utils.OperatorFlag.Name))
	if err != nil {
		utils.Fatalf("parsing --operator public key: %v", err)
	}

	dedup := buildDedupClient(ctx)
	handler := intake.New(manager, verifier, dedup)

	stop := make(chan struct{})

	checkpointStop := make(chan struct{})
	if err := ingester.EnsureCheckpoint(checkpointStop); err != nil {
		utils.Fatalf("filling local block checkpoint: %v", err)
	}

	go manager.RunPrimaryLoop(stop)
	go manager.RunSecondaryLoop(stop)
	go manager.RunStatusReporter(stop, notifier)

	if addr := ctx.GlobalString(utils.MetricsListenFlag.Name); addr != "" {
		go func() {
			if err := metrics.Serve(addr); err != nil && err != http.ErrServerClosed {
				logger.Warnw("metrics listener stopped", "err", err)
			}
		}()
	}

	go serveWorkers(ctx.GlobalString(utils.DListenFlag.Name), manager)
	go serveIntake(ctx.GlobalString(utils.RestfulFlag.Name), handler)

	utils.WaitForShutdown(func() {
		close(stop)
		close(checkpointStop)
	})
	return nil
}

func serveWorkers(addr string, manager *scansvc.Manager) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		utils.Fatalf("binding worker listener on %s: %v", addr, err)
	}
	logger.Infow("worker protocol listening", "addr", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Warnw("worker listener accept failed", "err", err)
			return
		}
		go manager.AcceptConnection(conn)
	}
}

func serveIntake(addr string, handler *intake.Handler) {
	logger.Infow("intake listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler.Router()); err != nil {
		logger.Warnw("intake listener stopped", "err", err)
	}
}

func buildNotifier(ctx *cli.Context) (*notify.Notifier, func()) {
	var (
		producer interface {
			Close() error
		}
	)

	brokersRaw := ctx.GlobalString(utils.KafkaBrokersFlag.Name)
	if brokersRaw == "" {
		return notify.New(ctx.GlobalString(utils.ServerFlag.Name), nil, ""), nil
	}

	brokers := strings.Split(brokersRaw, ",")
	p, err := notify.NewProducer(brokers)
	if err != nil {
		utils.Fatalf("connecting to kafka brokers %v: %v", brokers, err)
	}
	producer = p
	topic := ctx.GlobalString(utils.KafkaTopicFlag.Name)
	return notify.New(ctx.GlobalString(utils.ServerFlag.Name), p, topic), func() { _ = producer.Close() }
}

func buildDedupClient(ctx *cli.Context) *redis.Client {
	addr := ctx.GlobalString(utils.RedisAddrFlag.Name)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}
