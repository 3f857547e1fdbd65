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

// Package codec turns raw, length-delimited frame payloads into the
// internal/frame model and back, on both the client-facing and the
// broker-facing side of a connection. The client-facing codecs are driven
// by a DecodePredicate; the broker-facing codecs own the correlation
// table that lets an out-of-order response be matched back to its request.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/novatechflow/kroxylite/internal/correlation"
	"github.com/novatechflow/kroxylite/internal/frame"
	"github.com/novatechflow/kroxylite/pkg/protocol"
)

// correlationIDOffset is fixed across every request header version: api_key
// and api_version (2 bytes each) are always followed immediately by
// correlation_id.
const correlationIDOffset = 4

// RequestDecoder turns a raw request frame payload (as handed back by
// protocol.ReadFrame, header+body, no length prefix) into a frame.RequestFrame,
// deciding per DecodePredicate whether to fully decode the body or keep it
// opaque.
type RequestDecoder struct {
	Predicate DecodePredicate
}

// Decode parses payload's header, consults Predicate, and returns either an
// OpaqueRequestFrame or a DecodedRequestFrame.
func (d *RequestDecoder) Decode(payload []byte) (frame.RequestFrame, error) {
	if len(payload) < correlationIDOffset+4 {
		return nil, fmt.Errorf("request payload too short: %d bytes", len(payload))
	}
	apiKey := int16(binary.BigEndian.Uint16(payload[0:2]))
	apiVersion := int16(binary.BigEndian.Uint16(payload[2:4]))
	correlationID := int32(binary.BigEndian.Uint32(payload[4:8]))

	if d.Predicate.ShouldDecode(apiKey, apiVersion) {
		header, body, err := protocol.ParseRequest(payload)
		if err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
		return &frame.DecodedRequestFrame{Header: header, Body: body}, nil
	}

	hasResponse := true
	if apiKey == protocol.APIKeyProduce {
		header, reader, err := protocol.ParseRequestHeader(payload)
		if err != nil {
			return nil, fmt.Errorf("peek produce header: %w", err)
		}
		hasResponse, err = protocol.PeekProduceHasResponse(header, reader)
		if err != nil {
			return nil, fmt.Errorf("peek produce acks: %w", err)
		}
	}

	return &frame.OpaqueRequestFrame{
		Payload:             payload,
		Apikey:              apiKey,
		Apiversion:          apiVersion,
		Correlationid:       correlationID,
		CorrelationIDOffset: correlationIDOffset,
		Responseflag:        hasResponse,
	}, nil
}

// RequestEncoder renders a frame.RequestFrame for the wire on its way to a
// single broker connection, substituting a fresh upstream correlation id and
// recording what the eventual response will need in the connection's
// correlation.Manager.
type RequestEncoder struct {
	Correlations *correlation.Manager
}

// Encode assigns an upstream correlation id for req, registers it (unless
// req reports HasResponse()==false), and returns the re-serialized
// header+body ready for protocol.WriteFrame. decodeResponse controls whether
// the eventual response will be fully parsed or kept opaque.
func (e *RequestEncoder) Encode(req frame.RequestFrame, decodeResponse bool) ([]byte, error) {
	meta := correlation.RequestMeta{
		DownstreamCorrelationID: req.CorrelationID(),
		APIKey:                  req.APIKey(),
		APIVersion:              req.APIVersion(),
		DecodeResponse:          decodeResponse,
	}
	upstreamID := e.Correlations.Assign(meta, req.HasResponse())

	switch f := req.(type) {
	case *frame.OpaqueRequestFrame:
		out := make([]byte, len(f.Payload))
		copy(out, f.Payload)
		binary.BigEndian.PutUint32(out[f.CorrelationIDOffset:f.CorrelationIDOffset+4], uint32(upstreamID))
		return out, nil
	case *frame.DecodedRequestFrame:
		header := *f.Header
		header.CorrelationID = upstreamID
		payload, err := protocol.EncodeRequest(&header, f.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("codec: unknown request frame type %T", req)
	}
}

// SendRequest builds and registers an out-of-band sub-request on behalf of a
// filter (FilterContext.SendRequest), returning the wire payload to send to
// the broker and a promise that resolves with the decoded response body.
func (e *RequestEncoder) SendRequest(apiVersion int16, body protocol.Request) ([]byte, *correlation.Promise, error) {
	promise := correlation.NewPromise()
	meta := correlation.RequestMeta{
		APIKey:         body.APIKey(),
		APIVersion:     apiVersion,
		DecodeResponse: true,
		Promise:        promise,
	}
	upstreamID := e.Correlations.Assign(meta, true)
	header := &protocol.RequestHeader{APIKey: body.APIKey(), APIVersion: apiVersion, CorrelationID: upstreamID}
	payload, err := protocol.EncodeRequest(header, body)
	if err != nil {
		return nil, nil, fmt.Errorf("encode sub-request: %w", err)
	}
	return payload, promise, nil
}

// ResponseDecoder turns a raw response frame payload arriving from a broker
// into a frame.ResponseFrame, using the correlation table to recover the
// (api_key, api_version, header_version) a bare wire response never states
// on its own. When the matching entry carries a Promise (an out-of-band
// sub-request issued by a filter), Decode fulfills it directly and returns
// (nil, nil): there is nothing left for the caller to forward downstream.
type ResponseDecoder struct {
	Correlations *correlation.Manager
}

func (d *ResponseDecoder) Decode(payload []byte) (frame.ResponseFrame, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("response payload too short: %d bytes", len(payload))
	}
	upstreamID := int32(binary.BigEndian.Uint32(payload[0:4]))
	meta, err := d.Correlations.Consume(upstreamID)
	if err != nil {
		return nil, err
	}

	headerVersion := protocol.ResponseHeaderVersion(meta.APIKey, meta.APIVersion)
	_, body, err := protocol.DecodeResponseHeader(payload, headerVersion)
	if err != nil {
		return nil, fmt.Errorf("decode response header: %w", err)
	}

	if meta.DecodeResponse {
		decoded, err := protocol.ParseResponse(meta.APIKey, meta.APIVersion, body)
		if err != nil {
			if meta.Promise != nil {
				meta.Promise.Fail(err)
				return nil, nil
			}
			return nil, fmt.Errorf("decode response body: %w", err)
		}
		if meta.Promise != nil {
			meta.Promise.Resolve(decoded)
			return nil, nil
		}
		return &frame.DecodedResponseFrame{
			Apikey:        meta.APIKey,
			Apiversion:    meta.APIVersion,
			Correlationid: meta.DownstreamCorrelationID,
			Body:          decoded,
		}, nil
	}

	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)
	if meta.Promise != nil {
		meta.Promise.Resolve(bodyCopy)
		return nil, nil
	}
	return &frame.OpaqueResponseFrame{
		Payload:       bodyCopy,
		Apikey:        meta.APIKey,
		Apiversion:    meta.APIVersion,
		Correlationid: meta.DownstreamCorrelationID,
	}, nil
}

// ResponseEncoder renders a frame.ResponseFrame for the client, restoring
// the downstream correlation id the client originally sent.
type ResponseEncoder struct{}

func (ResponseEncoder) Encode(resp frame.ResponseFrame) ([]byte, error) {
	headerVersion := protocol.ResponseHeaderVersion(resp.APIKey(), resp.APIVersion())
	header := protocol.EncodeResponseHeader(resp.CorrelationID(), headerVersion)

	switch f := resp.(type) {
	case *frame.OpaqueResponseFrame:
		out := make([]byte, 0, len(header)+len(f.Payload))
		out = append(out, header...)
		out = append(out, f.Payload...)
		return out, nil
	case *frame.DecodedResponseFrame:
		body, err := protocol.EncodeResponseBody(f.Apikey, f.Apiversion, f.Body)
		if err != nil {
			return nil, fmt.Errorf("encode response body: %w", err)
		}
		out := make([]byte, 0, len(header)+len(body))
		out = append(out, header...)
		out = append(out, body...)
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unknown response frame type %T", resp)
	}
}
