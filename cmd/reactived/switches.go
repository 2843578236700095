// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"net"
	"sync/atomic"

	"grimm.is/reactived/internal/rconfig"
	"grimm.is/reactived/internal/runtime"
	"grimm.is/reactived/internal/transport"
)

var nextSwitchID atomic.Uint64

// acceptSwitches listens for switch control connections and registers
// each with rt. Message bodies are classified by their 8-byte header
// only and otherwise discarded: decoding a packet-in or flow-removed
// body requires the OpenFlow 1.3 codec, which this repository treats as
// an external collaborator (see internal/transport's package doc), so
// this loop demonstrates the connection lifecycle rather than driving
// HandlePacketIn/HandleFlowRemoved from real wire traffic.
func acceptSwitches(ctx context.Context, logger *log.Logger, cfg *rconfig.Config, rt *runtime.Runtime) {
	if cfg.ListenAddr == "" {
		return
	}
	ln, err := transport.Listen(ctx, cfg.ListenAddr, cfg.MaxSwitchConns)
	if err != nil {
		logger.Printf("switch listener: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logger.Printf("switch control channel listening on %s", cfg.ListenAddr)
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("accept: %v", err)
			continue
		}
		go handleSwitchConn(ctx, logger, rt, nc)
	}
}

func handleSwitchConn(ctx context.Context, logger *log.Logger, rt *runtime.Runtime, nc net.Conn) {
	switchID := nextSwitchID.Add(1)
	conn := transport.NewConnection(switchID, func(_ uint64, wireBytes []byte) error {
		_, err := nc.Write(wireBytes)
		return err
	})
	defer nc.Close()
	go func() {
		<-ctx.Done()
		_ = nc.Close()
	}()

	if err := rt.HandleSwitchUp(switchID, conn); err != nil {
		logger.Printf("switch %d: resync failed: %v", switchID, err)
		return
	}
	defer rt.HandleSwitchDown(switchID)

	var header [8]byte
	for {
		if _, err := io.ReadFull(nc, header[:]); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Printf("switch %d: read header: %v", switchID, err)
			}
			return
		}
		length := binary.BigEndian.Uint16(header[2:4])
		if length > 8 {
			if _, err := io.CopyN(io.Discard, nc, int64(length-8)); err != nil {
				logger.Printf("switch %d: read body: %v", switchID, err)
				return
			}
		}
		logger.Printf("switch %d: message type %d (%d bytes)", switchID, header[1], length)
	}
}
