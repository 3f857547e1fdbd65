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

// Package frame defines the tagged-variant message model that flows
// through the proxy's codecs and filter chain: a frame is either opaque
// (body kept as raw bytes) or decoded (header and body parsed), and is
// either a request or a response.
package frame

import "github.com/novatechflow/kroxylite/pkg/protocol"

// RequestFrame is implemented by both opaque and decoded request frames.
type RequestFrame interface {
	APIKey() int16
	APIVersion() int16
	CorrelationID() int32
	// HasResponse reports whether the broker is expected to send a
	// response for this request (false only for Produce with acks=0).
	HasResponse() bool
}

// ResponseFrame is implemented by both opaque and decoded response frames.
type ResponseFrame interface {
	APIKey() int16
	APIVersion() int16
	CorrelationID() int32
}

// OpaqueRequestFrame carries a request whose body was not decoded because
// no filter subscribed to its api key. Payload holds the header and body
// exactly as read off the wire except that CorrelationIDOffset locates the
// 4-byte correlation id field so an encoder can rewrite it in place without
// a full re-serialize.
type OpaqueRequestFrame struct {
	Payload             []byte
	Apikey              int16
	Apiversion          int16
	Correlationid       int32
	CorrelationIDOffset int
	Responseflag        bool
}

func (f *OpaqueRequestFrame) APIKey() int16        { return f.Apikey }
func (f *OpaqueRequestFrame) APIVersion() int16    { return f.Apiversion }
func (f *OpaqueRequestFrame) CorrelationID() int32 { return f.Correlationid }
func (f *OpaqueRequestFrame) HasResponse() bool    { return f.Responseflag }

// DecodedRequestFrame carries a fully parsed request header and body. A
// filter may mutate Body freely; the request encoder re-serializes it on
// the way to the broker.
type DecodedRequestFrame struct {
	Header *protocol.RequestHeader
	Body   protocol.Request
}

func (f *DecodedRequestFrame) APIKey() int16        { return f.Header.APIKey }
func (f *DecodedRequestFrame) APIVersion() int16    { return f.Header.APIVersion }
func (f *DecodedRequestFrame) CorrelationID() int32 { return f.Header.CorrelationID }

func (f *DecodedRequestFrame) HasResponse() bool {
	if p, ok := f.Body.(*protocol.ProduceRequest); ok {
		return p.HasResponse()
	}
	return true
}

// OpaqueResponseFrame carries a response whose body was not decoded,
// either because the correlation entry marked decode_response=false or
// because no filter wanted it.
type OpaqueResponseFrame struct {
	Payload       []byte
	Apikey        int16
	Apiversion    int16
	Correlationid int32
}

func (f *OpaqueResponseFrame) APIKey() int16        { return f.Apikey }
func (f *OpaqueResponseFrame) APIVersion() int16    { return f.Apiversion }
func (f *OpaqueResponseFrame) CorrelationID() int32 { return f.Correlationid }

// DecodedResponseFrame carries a fully parsed response body keyed by the
// api key/version recovered from the correlation table (the wire response
// header itself carries only a correlation id).
type DecodedResponseFrame struct {
	Apikey        int16
	Apiversion    int16
	Correlationid int32
	Body          any
}

func (f *DecodedResponseFrame) APIKey() int16        { return f.Apikey }
func (f *DecodedResponseFrame) APIVersion() int16    { return f.Apiversion }
func (f *DecodedResponseFrame) CorrelationID() int32 { return f.Correlationid }
