// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
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

package protocol

// API keys this proxy knows how to decode. Any other api key is forwarded
// opaquely by the frame model without ever reaching this package.
const (
	APIKeyProduce     int16 = 0
	APIKeyFetch       int16 = 1
	APIKeyMetadata    int16 = 3
	APIKeyApiVersions int16 = 18
	APIKeyCreateTopics int16 = 19
)

// ApiVersion describes the supported version range for an API, as carried
// in an ApiVersionsResponse.
type ApiVersion struct {
	APIKey     int16
	MinVersion int16
	MaxVersion int16
}

// flexibleSince is the lowest api version, per api key, whose request and
// response bodies use the compact/tagged-field ("flexible") encoding. Only
// apis this package decodes are listed; an api key absent here is never
// passed to flexibleSince and must stay opaque to the caller.
var flexibleSince = map[int16]int16{
	APIKeyProduce:      9,
	APIKeyFetch:        12,
	APIKeyMetadata:     9,
	APIKeyCreateTopics: 5,
	APIKeyApiVersions:  3,
}

// bodyIsFlexible reports whether apiVersion of apiKey uses the compact
// encoding for its body.
func bodyIsFlexible(apiKey, apiVersion int16) bool {
	since, ok := flexibleSince[apiKey]
	if !ok {
		return false
	}
	return apiVersion >= since
}

// RequestHeaderVersion returns the header version a request of the given
// api key/version is encoded with: v0 has no client_id, v1 adds client_id,
// v2 additionally adds the header's own tagged-field section.
//
// ApiVersions is special-cased: its request header never exceeds v1, even
// once its body becomes flexible, so that a client speaking a newer
// protocol than the broker understands can still be parsed far enough to
// produce a useful ApiVersions response (the broker does not yet know the
// client's supported header version when it receives this request).
func RequestHeaderVersion(apiKey, apiVersion int16) int16 {
	if apiKey == APIKeyApiVersions {
		return 1
	}
	if bodyIsFlexible(apiKey, apiVersion) {
		return 2
	}
	return 1
}

// ResponseHeaderVersion returns the header version a response of the given
// api key/version is encoded with.
//
// ApiVersions is special-cased to always use response header v0 (no tagged
// fields), regardless of how flexible its body is, matching the broker
// behavior clients rely on to parse an ApiVersionsResponse before they know
// which protocol version the broker actually speaks.
func ResponseHeaderVersion(apiKey, apiVersion int16) int16 {
	if apiKey == APIKeyApiVersions {
		return 0
	}
	if bodyIsFlexible(apiKey, apiVersion) {
		return 1
	}
	return 0
}
