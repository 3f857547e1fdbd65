// Copyright 2025-2026 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package proxyengine

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// HAProxyMessage is the subset of a PROXY protocol v1 header this proxy
// cares about: the original client address, used for logging and by
// FilterContext.ClientHost/ClientPort instead of the load balancer's address.
type HAProxyMessage struct {
	SourceAddress string
	SourcePort    int
	DestAddress   string
	DestPort      int
}

// PeekHAProxyV1 inspects the first line available on r without consuming
// anything if it is not a PROXY protocol v1 preamble. It reports (nil, nil)
// for a connection with no such preamble, so the caller can fall through to
// decoding the first byte as a Kafka frame length.
func PeekHAProxyV1(r *bufio.Reader) (*HAProxyMessage, error) {
	prefix, err := r.Peek(6)
	if err != nil || string(prefix) != "PROXY " {
		return nil, nil
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read HAProxy preamble: %w", err)
	}
	return parseHAProxyV1Line(strings.TrimRight(line, "\r\n"))
}

func parseHAProxyV1Line(line string) (*HAProxyMessage, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "PROXY" {
		return nil, fmt.Errorf("malformed HAProxy preamble: %q", line)
	}
	if fields[1] == "UNKNOWN" {
		return &HAProxyMessage{}, nil
	}
	if len(fields) != 6 {
		return nil, fmt.Errorf("malformed HAProxy preamble: %q", line)
	}
	srcPort, err := strconv.Atoi(fields[4])
	if err != nil {
		return nil, fmt.Errorf("malformed HAProxy source port: %q", fields[4])
	}
	dstPort, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, fmt.Errorf("malformed HAProxy dest port: %q", fields[5])
	}
	return &HAProxyMessage{
		SourceAddress: fields[2],
		SourcePort:    srcPort,
		DestAddress:   fields[3],
		DestPort:      dstPort,
	}, nil
}
