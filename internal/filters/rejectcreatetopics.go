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

// Package filters collects filter implementations shipped alongside the
// proxy core itself, as opposed to filters an operator plugs in out of
// tree. They exist primarily to exercise the filterapi contract end to
// end and as a starting point for a real deployment's own policy filters.
package filters

import (
	"context"

	"github.com/novatechflow/kroxylite/internal/filterapi"
	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// RejectCreateTopicsConfig configures RejectCreateTopics.
type RejectCreateTopicsConfig struct {
	// ErrorMessage is attached to every rejected topic. Defaults to
	// "topic creation is disabled" when empty.
	ErrorMessage string
	// CloseConnection closes the connection instead of answering: the
	// filter returns ActionClose and no CreateTopics response is sent to
	// the client.
	CloseConnection bool
}

// RejectCreateTopics answers every CreateTopics request with
// INVALID_TOPIC_EXCEPTION for each requested topic, without ever forwarding
// the request to a broker. It is a policy filter in the shape real
// deployments write, kept here to exercise the short-circuit path of the
// filter chain runtime.
type RejectCreateTopics struct {
	cfg RejectCreateTopicsConfig
}

// NewRejectCreateTopics returns a filter instance for one connection. A
// Factory builds one of these per connection, matching the per-connection
// filter-instance lifecycle the rest of the chain assumes.
func NewRejectCreateTopics(cfg RejectCreateTopicsConfig) *RejectCreateTopics {
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = "topic creation is disabled"
	}
	return &RejectCreateTopics{cfg: cfg}
}

func (f *RejectCreateTopics) Name() string { return "reject-create-topics" }

func (f *RejectCreateTopics) OnCreateTopicsRequest(ctx context.Context, fctx filterapi.FilterContext, header *protocol.RequestHeader, req *protocol.CreateTopicsRequest) (*filterapi.RequestResult, error) {
	results := make([]protocol.CreateTopicResult, 0, len(req.Topics))
	msg := f.cfg.ErrorMessage
	for _, topic := range req.Topics {
		results = append(results, protocol.CreateTopicResult{
			Name:         topic.Name,
			ErrorCode:    protocol.INVALID_TOPIC_EXCEPTION,
			ErrorMessage: &msg,
		})
	}
	resp := &frame.DecodedResponseFrame{
		Apikey:        protocol.APIKeyCreateTopics,
		Apiversion:    header.APIVersion,
		Correlationid: header.CorrelationID,
		Body:          &protocol.CreateTopicsResponse{Topics: results},
	}
	if f.cfg.CloseConnection {
		return &filterapi.RequestResult{Action: filterapi.ActionClose}, nil
	}
	return filterapi.ShortCircuit(resp), nil
}
