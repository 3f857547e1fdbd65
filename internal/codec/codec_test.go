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

package codec

import (
	"testing"

	"github.com/novatechflow/kroxylite/internal/correlation"
	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

func produceFrame(acks int16, correlationID int32) *frame.DecodedRequestFrame {
	header := &protocol.RequestHeader{
		APIKey:        protocol.APIKeyProduce,
		APIVersion:    7,
		CorrelationID: correlationID,
	}
	body := &protocol.ProduceRequest{
		Acks:      acks,
		TimeoutMs: 1000,
		Topics: []protocol.ProduceTopic{
			{Name: "orders", Partitions: []protocol.ProducePartition{{Partition: 0, Records: []byte("payload")}}},
		},
	}
	return &frame.DecodedRequestFrame{Header: header, Body: body}
}

// TestRequestEncoderSkipsCorrelationForAcksZeroProduce covers §8 scenario 2:
// a fire-and-forget Produce request (acks=0) must not leave an entry in the
// correlation table, since no response will ever arrive to consume it.
func TestRequestEncoderSkipsCorrelationForAcksZeroProduce(t *testing.T) {
	manager := correlation.New()
	enc := &RequestEncoder{Correlations: manager}

	payload, err := enc.Encode(produceFrame(0, 5), false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("Encode returned an empty payload")
	}
	if got := manager.Len(); got != 0 {
		t.Fatalf("correlation table len = %d, want 0 for an acks=0 Produce request", got)
	}
}

// TestRequestEncoderAndResponseDecoderRoundTripAcksOneProduce covers §8
// scenario 3: an acknowledged Produce request (acks=1) registers exactly one
// correlation entry, and the matching broker response is decoded back into
// the client's original correlation id while clearing that entry.
func TestRequestEncoderAndResponseDecoderRoundTripAcksOneProduce(t *testing.T) {
	manager := correlation.New()
	enc := &RequestEncoder{Correlations: manager}

	downstreamID := int32(9)
	payload, err := enc.Encode(produceFrame(1, downstreamID), true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := manager.Len(); got != 1 {
		t.Fatalf("correlation table len = %d, want 1 for an acks=1 Produce request", got)
	}

	upstreamHeader, _, err := protocol.ParseRequestHeader(payload)
	if err != nil {
		t.Fatalf("ParseRequestHeader: %v", err)
	}
	if upstreamHeader.CorrelationID == downstreamID {
		t.Fatalf("upstream correlation id should have been rewritten away from the client's %d", downstreamID)
	}

	headerVersion := protocol.ResponseHeaderVersion(protocol.APIKeyProduce, 7)
	respHeader := protocol.EncodeResponseHeader(upstreamHeader.CorrelationID, headerVersion)
	respBody, err := protocol.EncodeResponseBody(protocol.APIKeyProduce, 7, &protocol.ProduceResponse{
		Topics: []protocol.ProduceTopicResponse{
			{Name: "orders", Partitions: []protocol.ProducePartitionResponse{{Partition: 0, BaseOffset: 42}}},
		},
	})
	if err != nil {
		t.Fatalf("EncodeResponseBody: %v", err)
	}
	rawResponse := append(respHeader, respBody...)

	dec := &ResponseDecoder{Correlations: manager}
	respFrame, err := dec.Decode(rawResponse)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if respFrame == nil {
		t.Fatal("Decode returned a nil frame for a non-promise response")
	}
	if got := respFrame.CorrelationID(); got != downstreamID {
		t.Fatalf("response correlation id = %d, want the original downstream id %d", got, downstreamID)
	}
	decoded, ok := respFrame.(*frame.DecodedResponseFrame)
	if !ok {
		t.Fatalf("response frame type = %T, want *frame.DecodedResponseFrame", respFrame)
	}
	produceResp, ok := decoded.Body.(*protocol.ProduceResponse)
	if !ok {
		t.Fatalf("decoded body type = %T, want *protocol.ProduceResponse", decoded.Body)
	}
	if len(produceResp.Topics) != 1 || produceResp.Topics[0].Partitions[0].BaseOffset != 42 {
		t.Fatalf("decoded ProduceResponse = %+v, want base offset 42", produceResp)
	}

	if got := manager.Len(); got != 0 {
		t.Fatalf("correlation table len = %d, want 0 after the response was consumed", got)
	}
}
