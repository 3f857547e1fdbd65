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

import "fmt"

// ApiVersionsResponse describes server capabilities. Its header is always
// encoded as response header v0 (see ResponseHeaderVersion), regardless of
// how flexible the body itself is.
type ApiVersionsResponse struct {
	ErrorCode  int16
	Versions   []ApiVersion
	ThrottleMs int32
}

// MetadataBroker describes a broker in Metadata response.
type MetadataBroker struct {
	NodeID int32
	Host   string
	Port   int32
	Rack   *string
}

// MetadataTopic describes a topic in Metadata response.
type MetadataTopic struct {
	ErrorCode                 int16
	Name                      string
	TopicID                   [16]byte
	IsInternal                bool
	Partitions                []MetadataPartition
	TopicAuthorizedOperations int32
}

// MetadataPartition describes partition metadata.
type MetadataPartition struct {
	ErrorCode       int16
	PartitionIndex  int32
	LeaderID        int32
	LeaderEpoch     int32
	ReplicaNodes    []int32
	ISRNodes        []int32
	OfflineReplicas []int32
}

// MetadataResponse holds topic + broker info.
type MetadataResponse struct {
	ThrottleMs                  int32
	Brokers                     []MetadataBroker
	ClusterID                   *string
	ControllerID                int32
	Topics                      []MetadataTopic
	ClusterAuthorizedOperations int32
}

// ProduceResponse contains per-partition acknowledgement info.
type ProduceResponse struct {
	Topics     []ProduceTopicResponse
	ThrottleMs int32
}

type ProduceTopicResponse struct {
	Name       string
	Partitions []ProducePartitionResponse
}

type ProducePartitionResponse struct {
	Partition       int32
	ErrorCode       int16
	BaseOffset      int64
	LogAppendTimeMs int64
	LogStartOffset  int64
}

// FetchResponse represents data returned to consumers.
type FetchResponse struct {
	ThrottleMs int32
	ErrorCode  int16
	SessionID  int32
	Topics     []FetchTopicResponse
}

type FetchTopicResponse struct {
	Name       string
	TopicID    [16]byte
	Partitions []FetchPartitionResponse
}

type FetchAbortedTransaction struct {
	ProducerID  int64
	FirstOffset int64
}

type FetchPartitionResponse struct {
	Partition            int32
	ErrorCode            int16
	HighWatermark        int64
	LastStableOffset     int64
	LogStartOffset       int64
	PreferredReadReplica int32
	RecordSet            []byte
	AbortedTransactions  []FetchAbortedTransaction
}

// CreateTopicResult is the per-topic outcome of a CreateTopics call. A
// filter that short-circuits a subset of the requested topics (e.g.
// rejecting an invalid name before the request ever reaches a broker)
// populates this directly instead of forwarding upstream.
type CreateTopicResult struct {
	Name              string
	ErrorCode         int16
	ErrorMessage      *string
	NumPartitions     int32
	ReplicationFactor int16
}

type CreateTopicsResponse struct {
	ThrottleMs int32
	Topics     []CreateTopicResult
}

// EncodeResponseBody dispatches to the Encode*Response function matching
// apiKey, for callers (the response encoder) that hold a decoded response
// body as an any recovered from the correlation table rather than as a
// concrete type known at compile time.
func EncodeResponseBody(apiKey, apiVersion int16, body any) ([]byte, error) {
	switch apiKey {
	case APIKeyApiVersions:
		resp, ok := body.(*ApiVersionsResponse)
		if !ok {
			return nil, fmt.Errorf("EncodeResponseBody: api key %d expects *ApiVersionsResponse, got %T", apiKey, body)
		}
		return EncodeApiVersionsResponse(resp, apiVersion)
	case APIKeyMetadata:
		resp, ok := body.(*MetadataResponse)
		if !ok {
			return nil, fmt.Errorf("EncodeResponseBody: api key %d expects *MetadataResponse, got %T", apiKey, body)
		}
		return EncodeMetadataResponse(resp, apiVersion)
	case APIKeyProduce:
		resp, ok := body.(*ProduceResponse)
		if !ok {
			return nil, fmt.Errorf("EncodeResponseBody: api key %d expects *ProduceResponse, got %T", apiKey, body)
		}
		return EncodeProduceResponse(resp, apiVersion)
	case APIKeyFetch:
		resp, ok := body.(*FetchResponse)
		if !ok {
			return nil, fmt.Errorf("EncodeResponseBody: api key %d expects *FetchResponse, got %T", apiKey, body)
		}
		return EncodeFetchResponse(resp, apiVersion)
	case APIKeyCreateTopics:
		resp, ok := body.(*CreateTopicsResponse)
		if !ok {
			return nil, fmt.Errorf("EncodeResponseBody: api key %d expects *CreateTopicsResponse, got %T", apiKey, body)
		}
		return EncodeCreateTopicsResponse(resp, apiVersion)
	default:
		return nil, fmt.Errorf("EncodeResponseBody: unsupported api key %d", apiKey)
	}
}

// EncodeApiVersionsResponse renders an ApiVersionsResponse body. The
// correlation id and header framing are handled by the caller (the response
// header for this api is always v0, independent of the body version).
func EncodeApiVersionsResponse(resp *ApiVersionsResponse, version int16) ([]byte, error) {
	flexible := bodyIsFlexible(APIKeyApiVersions, version)
	w := newByteWriter(64)
	w.Int16(resp.ErrorCode)
	if flexible {
		w.CompactArrayLen(len(resp.Versions))
	} else {
		w.Int32(int32(len(resp.Versions)))
	}
	for _, v := range resp.Versions {
		w.Int16(v.APIKey)
		w.Int16(v.MinVersion)
		w.Int16(v.MaxVersion)
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if version >= 1 {
		w.Int32(resp.ThrottleMs)
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes(), nil
}

// EncodeMetadataResponse renders bytes for metadata responses. version should
// match the Metadata request version that triggered this response.
func EncodeMetadataResponse(resp *MetadataResponse, version int16) ([]byte, error) {
	if version < 0 || version > 12 {
		return nil, fmt.Errorf("metadata response version %d not supported", version)
	}
	flexible := bodyIsFlexible(APIKeyMetadata, version)
	w := newByteWriter(256)
	if version >= 3 {
		w.Int32(resp.ThrottleMs)
	}
	if flexible {
		w.CompactArrayLen(len(resp.Brokers))
	} else {
		w.Int32(int32(len(resp.Brokers)))
	}
	for _, b := range resp.Brokers {
		w.Int32(b.NodeID)
		if flexible {
			w.CompactString(b.Host)
		} else {
			w.String(b.Host)
		}
		w.Int32(b.Port)
		if version >= 1 {
			if flexible {
				w.CompactNullableString(b.Rack)
			} else {
				w.NullableString(b.Rack)
			}
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if version >= 2 {
		if flexible {
			w.CompactNullableString(resp.ClusterID)
		} else {
			w.NullableString(resp.ClusterID)
		}
	}
	if version >= 1 {
		w.Int32(resp.ControllerID)
	}
	if flexible {
		w.CompactArrayLen(len(resp.Topics))
	} else {
		w.Int32(int32(len(resp.Topics)))
	}
	for _, t := range resp.Topics {
		w.Int16(t.ErrorCode)
		if version >= 10 {
			var namePtr *string
			if t.Name != "" {
				namePtr = &t.Name
			}
			if flexible {
				w.CompactNullableString(namePtr)
			} else {
				w.NullableString(namePtr)
			}
			w.UUID(t.TopicID)
			if version >= 1 {
				w.Bool(t.IsInternal)
			}
		} else {
			if flexible {
				w.CompactString(t.Name)
			} else {
				w.String(t.Name)
			}
			if version >= 1 {
				w.Bool(t.IsInternal)
			}
		}
		if flexible {
			w.CompactArrayLen(len(t.Partitions))
		} else {
			w.Int32(int32(len(t.Partitions)))
		}
		for _, p := range t.Partitions {
			w.Int16(p.ErrorCode)
			w.Int32(p.PartitionIndex)
			w.Int32(p.LeaderID)
			if version >= 7 {
				w.Int32(p.LeaderEpoch)
			}
			if flexible {
				w.CompactArrayLen(len(p.ReplicaNodes))
			} else {
				w.Int32(int32(len(p.ReplicaNodes)))
			}
			for _, replica := range p.ReplicaNodes {
				w.Int32(replica)
			}
			if flexible {
				w.CompactArrayLen(len(p.ISRNodes))
			} else {
				w.Int32(int32(len(p.ISRNodes)))
			}
			for _, isr := range p.ISRNodes {
				w.Int32(isr)
			}
			if version >= 5 {
				if flexible {
					w.CompactArrayLen(len(p.OfflineReplicas))
				} else {
					w.Int32(int32(len(p.OfflineReplicas)))
				}
				for _, offline := range p.OfflineReplicas {
					w.Int32(offline)
				}
			}
			if flexible {
				w.WriteTaggedFields(nil)
			}
		}
		if version >= 8 {
			w.Int32(t.TopicAuthorizedOperations)
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if version >= 8 {
		w.Int32(resp.ClusterAuthorizedOperations)
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes(), nil
}

// EncodeProduceResponse renders bytes for produce responses.
func EncodeProduceResponse(resp *ProduceResponse, version int16) ([]byte, error) {
	w := newByteWriter(128)
	flexible := bodyIsFlexible(APIKeyProduce, version)
	if flexible {
		w.CompactArrayLen(len(resp.Topics))
	} else {
		w.Int32(int32(len(resp.Topics)))
	}
	for _, topic := range resp.Topics {
		if flexible {
			w.CompactString(topic.Name)
		} else {
			w.String(topic.Name)
		}
		if flexible {
			w.CompactArrayLen(len(topic.Partitions))
		} else {
			w.Int32(int32(len(topic.Partitions)))
		}
		for _, p := range topic.Partitions {
			w.Int32(p.Partition)
			w.Int16(p.ErrorCode)
			w.Int64(p.BaseOffset)
			if version >= 3 {
				w.Int64(p.LogAppendTimeMs)
			}
			if version >= 5 {
				w.Int64(p.LogStartOffset)
			}
			if flexible {
				w.WriteTaggedFields(nil)
			}
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if version >= 1 {
		w.Int32(resp.ThrottleMs)
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes(), nil
}

// EncodeFetchResponse renders bytes for fetch responses.
func EncodeFetchResponse(resp *FetchResponse, version int16) ([]byte, error) {
	if version < 1 || version > 13 {
		return nil, fmt.Errorf("fetch response version %d not supported", version)
	}
	flexible := bodyIsFlexible(APIKeyFetch, version)
	w := newByteWriter(256)
	w.Int32(resp.ThrottleMs)
	if version >= 7 {
		w.Int16(resp.ErrorCode)
		w.Int32(resp.SessionID)
	} else if resp.ErrorCode != 0 || resp.SessionID != 0 {
		return nil, fmt.Errorf("fetch version %d cannot include session fields", version)
	}
	if flexible {
		w.CompactArrayLen(len(resp.Topics))
	} else {
		w.Int32(int32(len(resp.Topics)))
	}
	for _, topic := range resp.Topics {
		if version >= 13 {
			w.UUID(topic.TopicID)
		} else if flexible {
			w.CompactString(topic.Name)
		} else {
			w.String(topic.Name)
		}
		if flexible {
			w.CompactArrayLen(len(topic.Partitions))
		} else {
			w.Int32(int32(len(topic.Partitions)))
		}
		for _, part := range topic.Partitions {
			w.Int32(part.Partition)
			w.Int16(part.ErrorCode)
			w.Int64(part.HighWatermark)
			if version >= 4 {
				w.Int64(part.LastStableOffset)
			}
			if version >= 5 {
				w.Int64(part.LogStartOffset)
			}
			if version >= 4 {
				if flexible {
					w.CompactArrayLen(len(part.AbortedTransactions))
				} else {
					w.Int32(int32(len(part.AbortedTransactions)))
				}
				for _, aborted := range part.AbortedTransactions {
					w.Int64(aborted.ProducerID)
					w.Int64(aborted.FirstOffset)
				}
			}
			if version >= 11 {
				w.Int32(part.PreferredReadReplica)
			}
			if flexible {
				w.CompactBytes(part.RecordSet)
				w.WriteTaggedFields(nil)
			} else if part.RecordSet == nil {
				w.Int32(0)
			} else {
				w.Int32(int32(len(part.RecordSet)))
				w.write(part.RecordSet)
			}
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes(), nil
}

// EncodeCreateTopicsResponse renders bytes for CreateTopics responses.
func EncodeCreateTopicsResponse(resp *CreateTopicsResponse, version int16) ([]byte, error) {
	flexible := bodyIsFlexible(APIKeyCreateTopics, version)
	w := newByteWriter(128)
	if flexible {
		w.CompactArrayLen(len(resp.Topics))
	} else {
		w.Int32(int32(len(resp.Topics)))
	}
	for _, topic := range resp.Topics {
		if flexible {
			w.CompactString(topic.Name)
		} else {
			w.String(topic.Name)
		}
		if version >= 5 {
			// topic id, left zero for proxy-originated short-circuit results
			w.UUID([16]byte{})
		}
		w.Int16(topic.ErrorCode)
		if version >= 1 {
			if flexible {
				w.CompactNullableString(topic.ErrorMessage)
			} else {
				w.NullableString(topic.ErrorMessage)
			}
		}
		if version >= 5 {
			w.Int32(topic.NumPartitions)
			w.Int16(topic.ReplicationFactor)
			if flexible {
				w.CompactArrayLen(0)
			} else {
				w.Int32(0)
			}
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if version >= 2 {
		w.Int32(resp.ThrottleMs)
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes(), nil
}

// EncodeResponseHeader renders a Kafka response header for the given
// correlation id and header version (see ResponseHeaderVersion). Version 0
// is just the correlation id; version 1 appends an empty tagged-field
// section. Callers prepend this to an encoded response body before framing.
func EncodeResponseHeader(correlationID int32, headerVersion int16) []byte {
	w := newByteWriter(8)
	w.Int32(correlationID)
	if headerVersion >= 1 {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes()
}

// EncodeResponse wraps an already-encoded response body (header + body) into
// a length-prefixed Kafka frame ready to write to the wire.
func EncodeResponse(payload []byte) ([]byte, error) {
	if len(payload) > int(^uint32(0)>>1) {
		return nil, fmt.Errorf("response too large: %d", len(payload))
	}
	w := newByteWriter(len(payload) + 4)
	w.Int32(int32(len(payload)))
	w.write(payload)
	return w.Bytes(), nil
}
