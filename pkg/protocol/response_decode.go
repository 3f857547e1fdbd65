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

// DecodeResponseHeader splits a raw response payload into its correlation
// id and the remaining body bytes. Unlike a request, a response frame
// does not carry its own api key/version, so headerVersion must come from
// the correlation manager entry the caller looked up by the id at the
// front of payload.
func DecodeResponseHeader(payload []byte, headerVersion int16) (correlationID int32, body []byte, err error) {
	reader := newByteReader(payload)
	correlationID, err = reader.Int32()
	if err != nil {
		return 0, nil, fmt.Errorf("read correlation id: %w", err)
	}
	if headerVersion >= 1 {
		if _, err = reader.ReadTaggedFields(); err != nil {
			return 0, nil, fmt.Errorf("read response header tags: %w", err)
		}
	}
	return correlationID, payload[reader.pos:], nil
}

// ParseResponse decodes a response body for one of the api keys this
// package knows, given the (api_key, api_version) recovered from the
// correlation entry that matched the response's correlation id.
func ParseResponse(apiKey, apiVersion int16, body []byte) (any, error) {
	reader := newByteReader(body)
	flexible := bodyIsFlexible(apiKey, apiVersion)
	switch apiKey {
	case APIKeyApiVersions:
		return parseApiVersionsResponse(reader, apiVersion, flexible)
	case APIKeyMetadata:
		return parseMetadataResponse(reader, apiVersion, flexible)
	case APIKeyProduce:
		return parseProduceResponse(reader, apiVersion, flexible)
	case APIKeyFetch:
		return parseFetchResponse(reader, apiVersion, flexible)
	case APIKeyCreateTopics:
		return parseCreateTopicsResponse(reader, apiVersion, flexible)
	default:
		return nil, fmt.Errorf("unsupported response api key %d", apiKey)
	}
}

func parseApiVersionsResponse(r *byteReader, version int16, flexible bool) (*ApiVersionsResponse, error) {
	errorCode, err := r.Int16()
	if err != nil {
		return nil, fmt.Errorf("read error code: %w", err)
	}
	var count int32
	if flexible {
		count, err = r.CompactArrayLen()
	} else {
		count, err = r.Int32()
	}
	if err != nil {
		return nil, fmt.Errorf("read api versions count: %w", err)
	}
	versions := make([]ApiVersion, 0, count)
	for i := int32(0); i < count; i++ {
		key, err := r.Int16()
		if err != nil {
			return nil, err
		}
		min, err := r.Int16()
		if err != nil {
			return nil, err
		}
		max, err := r.Int16()
		if err != nil {
			return nil, err
		}
		if flexible {
			if err := r.SkipTaggedFields(); err != nil {
				return nil, err
			}
		}
		versions = append(versions, ApiVersion{APIKey: key, MinVersion: min, MaxVersion: max})
	}
	var throttle int32
	if version >= 1 {
		if throttle, err = r.Int32(); err != nil {
			return nil, fmt.Errorf("read throttle: %w", err)
		}
	}
	if flexible {
		if err := r.SkipTaggedFields(); err != nil {
			return nil, err
		}
	}
	return &ApiVersionsResponse{ErrorCode: errorCode, Versions: versions, ThrottleMs: throttle}, nil
}

func parseMetadataResponse(r *byteReader, version int16, flexible bool) (*MetadataResponse, error) {
	resp := &MetadataResponse{ControllerID: -1}
	var err error
	if version >= 3 {
		if resp.ThrottleMs, err = r.Int32(); err != nil {
			return nil, err
		}
	}
	var brokerCount int32
	if flexible {
		brokerCount, err = r.CompactArrayLen()
	} else {
		brokerCount, err = r.Int32()
	}
	if err != nil {
		return nil, fmt.Errorf("read broker count: %w", err)
	}
	for i := int32(0); i < brokerCount; i++ {
		var b MetadataBroker
		if b.NodeID, err = r.Int32(); err != nil {
			return nil, err
		}
		if flexible {
			b.Host, err = r.CompactString()
		} else {
			b.Host, err = r.String()
		}
		if err != nil {
			return nil, err
		}
		if b.Port, err = r.Int32(); err != nil {
			return nil, err
		}
		if version >= 1 {
			if flexible {
				b.Rack, err = r.CompactNullableString()
			} else {
				b.Rack, err = r.NullableString()
			}
			if err != nil {
				return nil, err
			}
		}
		if flexible {
			if err := r.SkipTaggedFields(); err != nil {
				return nil, err
			}
		}
		resp.Brokers = append(resp.Brokers, b)
	}
	if version >= 2 {
		if flexible {
			resp.ClusterID, err = r.CompactNullableString()
		} else {
			resp.ClusterID, err = r.NullableString()
		}
		if err != nil {
			return nil, err
		}
	}
	if version >= 1 {
		if resp.ControllerID, err = r.Int32(); err != nil {
			return nil, err
		}
	}
	var topicCount int32
	if flexible {
		topicCount, err = r.CompactArrayLen()
	} else {
		topicCount, err = r.Int32()
	}
	if err != nil {
		return nil, fmt.Errorf("read topic count: %w", err)
	}
	for i := int32(0); i < topicCount; i++ {
		var t MetadataTopic
		if t.ErrorCode, err = r.Int16(); err != nil {
			return nil, err
		}
		if version >= 10 {
			var namePtr *string
			if flexible {
				namePtr, err = r.CompactNullableString()
			} else {
				namePtr, err = r.NullableString()
			}
			if err != nil {
				return nil, err
			}
			if namePtr != nil {
				t.Name = *namePtr
			}
			if t.TopicID, err = r.UUID(); err != nil {
				return nil, err
			}
			if version >= 1 {
				if t.IsInternal, err = r.Bool(); err != nil {
					return nil, err
				}
			}
		} else {
			if flexible {
				t.Name, err = r.CompactString()
			} else {
				t.Name, err = r.String()
			}
			if err != nil {
				return nil, err
			}
			if version >= 1 {
				if t.IsInternal, err = r.Bool(); err != nil {
					return nil, err
				}
			}
		}
		var partCount int32
		if flexible {
			partCount, err = r.CompactArrayLen()
		} else {
			partCount, err = r.Int32()
		}
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < partCount; j++ {
			var p MetadataPartition
			if p.ErrorCode, err = r.Int16(); err != nil {
				return nil, err
			}
			if p.PartitionIndex, err = r.Int32(); err != nil {
				return nil, err
			}
			if p.LeaderID, err = r.Int32(); err != nil {
				return nil, err
			}
			if version >= 7 {
				if p.LeaderEpoch, err = r.Int32(); err != nil {
					return nil, err
				}
			}
			p.ReplicaNodes, err = readInt32Array(r, flexible)
			if err != nil {
				return nil, err
			}
			p.ISRNodes, err = readInt32Array(r, flexible)
			if err != nil {
				return nil, err
			}
			if version >= 5 {
				p.OfflineReplicas, err = readInt32Array(r, flexible)
				if err != nil {
					return nil, err
				}
			}
			if flexible {
				if err := r.SkipTaggedFields(); err != nil {
					return nil, err
				}
			}
			t.Partitions = append(t.Partitions, p)
		}
		if version >= 8 {
			if t.TopicAuthorizedOperations, err = r.Int32(); err != nil {
				return nil, err
			}
		}
		if flexible {
			if err := r.SkipTaggedFields(); err != nil {
				return nil, err
			}
		}
		resp.Topics = append(resp.Topics, t)
	}
	if version >= 8 {
		if resp.ClusterAuthorizedOperations, err = r.Int32(); err != nil {
			return nil, err
		}
	}
	if flexible {
		if err := r.SkipTaggedFields(); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func readInt32Array(r *byteReader, flexible bool) ([]int32, error) {
	var count int32
	var err error
	if flexible {
		count, err = r.CompactArrayLen()
	} else {
		count, err = r.Int32()
	}
	if err != nil {
		return nil, err
	}
	out := make([]int32, 0, count)
	for i := int32(0); i < count; i++ {
		v, err := r.Int32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseProduceResponse(r *byteReader, version int16, flexible bool) (*ProduceResponse, error) {
	resp := &ProduceResponse{}
	var topicCount int32
	var err error
	if flexible {
		topicCount, err = r.CompactArrayLen()
	} else {
		topicCount, err = r.Int32()
	}
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < topicCount; i++ {
		var topic ProduceTopicResponse
		if flexible {
			topic.Name, err = r.CompactString()
		} else {
			topic.Name, err = r.String()
		}
		if err != nil {
			return nil, err
		}
		var partCount int32
		if flexible {
			partCount, err = r.CompactArrayLen()
		} else {
			partCount, err = r.Int32()
		}
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < partCount; j++ {
			var p ProducePartitionResponse
			if p.Partition, err = r.Int32(); err != nil {
				return nil, err
			}
			if p.ErrorCode, err = r.Int16(); err != nil {
				return nil, err
			}
			if p.BaseOffset, err = r.Int64(); err != nil {
				return nil, err
			}
			if version >= 3 {
				if p.LogAppendTimeMs, err = r.Int64(); err != nil {
					return nil, err
				}
			}
			if version >= 5 {
				if p.LogStartOffset, err = r.Int64(); err != nil {
					return nil, err
				}
			}
			if flexible {
				if err := r.SkipTaggedFields(); err != nil {
					return nil, err
				}
			}
			topic.Partitions = append(topic.Partitions, p)
		}
		if flexible {
			if err := r.SkipTaggedFields(); err != nil {
				return nil, err
			}
		}
		resp.Topics = append(resp.Topics, topic)
	}
	if version >= 1 {
		if resp.ThrottleMs, err = r.Int32(); err != nil {
			return nil, err
		}
	}
	if flexible {
		if err := r.SkipTaggedFields(); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func parseFetchResponse(r *byteReader, version int16, flexible bool) (*FetchResponse, error) {
	resp := &FetchResponse{}
	var err error
	if resp.ThrottleMs, err = r.Int32(); err != nil {
		return nil, err
	}
	if version >= 7 {
		if resp.ErrorCode, err = r.Int16(); err != nil {
			return nil, err
		}
		if resp.SessionID, err = r.Int32(); err != nil {
			return nil, err
		}
	}
	var topicCount int32
	if flexible {
		topicCount, err = r.CompactArrayLen()
	} else {
		topicCount, err = r.Int32()
	}
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < topicCount; i++ {
		var topic FetchTopicResponse
		if version >= 13 {
			if topic.TopicID, err = r.UUID(); err != nil {
				return nil, err
			}
		} else if flexible {
			topic.Name, err = r.CompactString()
		} else {
			topic.Name, err = r.String()
		}
		if err != nil {
			return nil, err
		}
		var partCount int32
		if flexible {
			partCount, err = r.CompactArrayLen()
		} else {
			partCount, err = r.Int32()
		}
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < partCount; j++ {
			var p FetchPartitionResponse
			if p.Partition, err = r.Int32(); err != nil {
				return nil, err
			}
			if p.ErrorCode, err = r.Int16(); err != nil {
				return nil, err
			}
			if p.HighWatermark, err = r.Int64(); err != nil {
				return nil, err
			}
			if version >= 4 {
				if p.LastStableOffset, err = r.Int64(); err != nil {
					return nil, err
				}
			}
			if version >= 5 {
				if p.LogStartOffset, err = r.Int64(); err != nil {
					return nil, err
				}
			}
			if version >= 4 {
				var abortedCount int32
				if flexible {
					abortedCount, err = r.CompactArrayLen()
				} else {
					abortedCount, err = r.Int32()
				}
				if err != nil {
					return nil, err
				}
				for k := int32(0); k < abortedCount; k++ {
					var a FetchAbortedTransaction
					if a.ProducerID, err = r.Int64(); err != nil {
						return nil, err
					}
					if a.FirstOffset, err = r.Int64(); err != nil {
						return nil, err
					}
					p.AbortedTransactions = append(p.AbortedTransactions, a)
				}
			}
			if version >= 11 {
				if p.PreferredReadReplica, err = r.Int32(); err != nil {
					return nil, err
				}
			}
			if flexible {
				p.RecordSet, err = r.CompactBytes()
			} else {
				p.RecordSet, err = r.Bytes()
			}
			if err != nil {
				return nil, err
			}
			if flexible {
				if err := r.SkipTaggedFields(); err != nil {
					return nil, err
				}
			}
			topic.Partitions = append(topic.Partitions, p)
		}
		if flexible {
			if err := r.SkipTaggedFields(); err != nil {
				return nil, err
			}
		}
		resp.Topics = append(resp.Topics, topic)
	}
	if flexible {
		if err := r.SkipTaggedFields(); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func parseCreateTopicsResponse(r *byteReader, version int16, flexible bool) (*CreateTopicsResponse, error) {
	resp := &CreateTopicsResponse{}
	var topicCount int32
	var err error
	if flexible {
		topicCount, err = r.CompactArrayLen()
	} else {
		topicCount, err = r.Int32()
	}
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < topicCount; i++ {
		var t CreateTopicResult
		if flexible {
			t.Name, err = r.CompactString()
		} else {
			t.Name, err = r.String()
		}
		if err != nil {
			return nil, err
		}
		if version >= 5 {
			if _, err = r.UUID(); err != nil { // topic id, not retained
				return nil, err
			}
		}
		if t.ErrorCode, err = r.Int16(); err != nil {
			return nil, err
		}
		if version >= 1 {
			if flexible {
				t.ErrorMessage, err = r.CompactNullableString()
			} else {
				t.ErrorMessage, err = r.NullableString()
			}
			if err != nil {
				return nil, err
			}
		}
		if version >= 5 {
			if t.NumPartitions, err = r.Int32(); err != nil {
				return nil, err
			}
			if t.ReplicationFactor, err = r.Int16(); err != nil {
				return nil, err
			}
			var cfgCount int32
			if flexible {
				cfgCount, err = r.CompactArrayLen()
			} else {
				cfgCount, err = r.Int32()
			}
			if err != nil {
				return nil, err
			}
			for j := int32(0); j < cfgCount; j++ {
				if flexible {
					if _, err = r.CompactString(); err != nil {
						return nil, err
					}
					if _, err = r.CompactNullableString(); err != nil {
						return nil, err
					}
				} else {
					if _, err = r.String(); err != nil {
						return nil, err
					}
					if _, err = r.NullableString(); err != nil {
						return nil, err
					}
				}
				if flexible {
					if err := r.SkipTaggedFields(); err != nil {
						return nil, err
					}
				}
			}
		}
		if flexible {
			if err := r.SkipTaggedFields(); err != nil {
				return nil, err
			}
		}
		resp.Topics = append(resp.Topics, t)
	}
	if version >= 2 {
		if resp.ThrottleMs, err = r.Int32(); err != nil {
			return nil, err
		}
	}
	if flexible {
		if err := r.SkipTaggedFields(); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
