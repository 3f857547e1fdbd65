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

// EncodeRequestHeader renders a Kafka request header. Used both by the
// request encoder re-serializing a decoded, possibly filter-mutated frame
// on its way to a broker, and by FilterContext.SendRequest building an
// out-of-band sub-request.
func EncodeRequestHeader(header *RequestHeader) []byte {
	headerVersion := RequestHeaderVersion(header.APIKey, header.APIVersion)
	w := newByteWriter(32)
	w.Int16(header.APIKey)
	w.Int16(header.APIVersion)
	w.Int32(header.CorrelationID)
	if headerVersion >= 1 {
		w.NullableString(header.ClientID)
	}
	if headerVersion >= 2 {
		w.WriteTaggedFields(header.TaggedFields)
	}
	return w.Bytes()
}

// EncodeRequest renders header+body for any api key this package decodes.
// The caller is responsible for framing (see WriteFrame) and, for the
// broker-facing direction, for substituting the upstream correlation id
// into header.CorrelationID before calling this.
func EncodeRequest(header *RequestHeader, body Request) ([]byte, error) {
	switch req := body.(type) {
	case *ApiVersionsRequest:
		return encodeApiVersionsRequest(header, req), nil
	case *ProduceRequest:
		return encodeProduceRequest(header, req), nil
	case *FetchRequest:
		return encodeFetchRequest(header, req), nil
	case *MetadataRequest:
		return encodeMetadataRequest(header, req), nil
	case *CreateTopicsRequest:
		return encodeCreateTopicsRequest(header, req), nil
	default:
		return nil, fmt.Errorf("unsupported request type %T", body)
	}
}

func encodeApiVersionsRequest(header *RequestHeader, req *ApiVersionsRequest) []byte {
	w := newByteWriter(64)
	w.write(EncodeRequestHeader(header))
	if header.APIVersion >= 3 {
		w.CompactString(req.ClientSoftwareName)
		w.CompactString(req.ClientSoftwareVersion)
		w.WriteTaggedFields(nil)
	}
	return w.Bytes()
}

func encodeProduceRequest(header *RequestHeader, req *ProduceRequest) []byte {
	flexible := bodyIsFlexible(header.APIKey, header.APIVersion)
	w := newByteWriter(128)
	w.write(EncodeRequestHeader(header))
	if header.APIVersion >= 3 {
		if flexible {
			w.CompactNullableString(req.TransactionalID)
		} else {
			w.NullableString(req.TransactionalID)
		}
	}
	w.Int16(req.Acks)
	w.Int32(req.TimeoutMs)
	if flexible {
		w.CompactArrayLen(len(req.Topics))
	} else {
		w.Int32(int32(len(req.Topics)))
	}
	for _, topic := range req.Topics {
		if flexible {
			w.CompactString(topic.Name)
			w.CompactArrayLen(len(topic.Partitions))
		} else {
			w.String(topic.Name)
			w.Int32(int32(len(topic.Partitions)))
		}
		for _, part := range topic.Partitions {
			w.Int32(part.Partition)
			if flexible {
				w.CompactBytes(part.Records)
				w.WriteTaggedFields(nil)
			} else {
				w.BytesWithLength(part.Records)
			}
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes()
}

func encodeMetadataRequest(header *RequestHeader, req *MetadataRequest) []byte {
	flexible := bodyIsFlexible(header.APIKey, header.APIVersion)
	w := newByteWriter(96)
	w.write(EncodeRequestHeader(header))
	if req.Topics == nil && req.TopicIDs == nil {
		if flexible {
			w.CompactArrayLen(-1)
		} else {
			w.Int32(-1)
		}
	} else {
		n := len(req.Topics)
		if flexible {
			w.CompactArrayLen(n)
		} else {
			w.Int32(int32(n))
		}
		for i := 0; i < n; i++ {
			if header.APIVersion >= 10 {
				var id [16]byte
				if i < len(req.TopicIDs) {
					id = req.TopicIDs[i]
				}
				w.UUID(id)
				name := req.Topics[i]
				if flexible {
					w.CompactNullableString(&name)
				} else {
					w.NullableString(&name)
				}
				if flexible {
					w.WriteTaggedFields(nil)
				}
			} else {
				if flexible {
					w.CompactString(req.Topics[i])
				} else {
					w.String(req.Topics[i])
				}
				if flexible {
					w.WriteTaggedFields(nil)
				}
			}
		}
	}
	if header.APIVersion >= 4 {
		w.Bool(req.AllowAutoTopicCreation)
	}
	if header.APIVersion >= 8 && header.APIVersion <= 10 {
		w.Bool(req.IncludeClusterAuthOps)
	}
	if header.APIVersion >= 8 {
		w.Bool(req.IncludeTopicAuthOps)
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes()
}

// encodeFetchRequest re-serializes a FetchRequest, round-tripping every
// field the decoder captured (leader epoch, log start offset, the
// forgotten-topics list, rack id) so a filter that forwards a Fetch
// request unmodified reproduces the client's original frame.
func encodeFetchRequest(header *RequestHeader, req *FetchRequest) []byte {
	flexible := bodyIsFlexible(header.APIKey, header.APIVersion)
	version := header.APIVersion
	w := newByteWriter(128)
	w.write(EncodeRequestHeader(header))
	w.Int32(req.ReplicaID)
	w.Int32(req.MaxWaitMs)
	w.Int32(req.MinBytes)
	if version >= 3 {
		w.Int32(req.MaxBytes)
	}
	if version >= 4 {
		w.Int8(req.IsolationLevel)
	}
	if version >= 7 {
		w.Int32(req.SessionID)
		w.Int32(req.SessionEpoch)
	}
	if flexible {
		w.CompactArrayLen(len(req.Topics))
	} else {
		w.Int32(int32(len(req.Topics)))
	}
	for _, topic := range req.Topics {
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
			if version >= 9 {
				w.Int32(part.CurrentLeaderEpoch)
			}
			w.Int64(part.FetchOffset)
			if version >= 12 {
				w.Int32(part.LastFetchedEpoch)
			}
			if version >= 5 {
				w.Int64(part.LogStartOffset)
			}
			w.Int32(part.MaxBytes)
			if flexible {
				w.WriteTaggedFields(nil)
			}
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	if version >= 7 {
		if flexible {
			w.CompactArrayLen(len(req.ForgottenTopics))
		} else {
			w.Int32(int32(len(req.ForgottenTopics)))
		}
		for _, ft := range req.ForgottenTopics {
			if version >= 13 {
				w.UUID(ft.TopicID)
			} else if flexible {
				w.CompactString(ft.Name)
			} else {
				w.String(ft.Name)
			}
			if flexible {
				w.CompactArrayLen(len(ft.Partitions))
			} else {
				w.Int32(int32(len(ft.Partitions)))
			}
			for _, p := range ft.Partitions {
				w.Int32(p)
			}
			if flexible {
				w.WriteTaggedFields(nil)
			}
		}
	}
	if version >= 11 {
		if flexible {
			w.CompactNullableString(req.RackID)
		} else {
			w.NullableString(req.RackID)
		}
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes()
}

// encodeCreateTopicsRequest re-serializes a CreateTopicsRequest, writing
// back each topic's replica assignments and per-topic configs so a filter
// that forwards a CreateTopics request unmodified reproduces the client's
// original frame.
func encodeCreateTopicsRequest(header *RequestHeader, req *CreateTopicsRequest) []byte {
	flexible := bodyIsFlexible(header.APIKey, header.APIVersion)
	w := newByteWriter(96)
	w.write(EncodeRequestHeader(header))
	if flexible {
		w.CompactArrayLen(len(req.Topics))
	} else {
		w.Int32(int32(len(req.Topics)))
	}
	for _, topic := range req.Topics {
		if flexible {
			w.CompactString(topic.Name)
		} else {
			w.String(topic.Name)
		}
		w.Int32(topic.NumPartitions)
		w.Int16(topic.ReplicationFactor)
		if flexible {
			w.CompactArrayLen(len(topic.Assignments))
		} else {
			w.Int32(int32(len(topic.Assignments)))
		}
		for _, assignment := range topic.Assignments {
			w.Int32(assignment.PartitionIndex)
			if flexible {
				w.CompactArrayLen(len(assignment.BrokerIDs))
			} else {
				w.Int32(int32(len(assignment.BrokerIDs)))
			}
			for _, brokerID := range assignment.BrokerIDs {
				w.Int32(brokerID)
			}
			if flexible {
				w.WriteTaggedFields(nil)
			}
		}
		if flexible {
			w.CompactArrayLen(len(topic.Configs))
		} else {
			w.Int32(int32(len(topic.Configs)))
		}
		for _, cfg := range topic.Configs {
			if flexible {
				w.CompactString(cfg.Key)
				w.CompactNullableString(cfg.Value)
			} else {
				w.String(cfg.Key)
				w.NullableString(cfg.Value)
			}
			if flexible {
				w.WriteTaggedFields(nil)
			}
		}
		if flexible {
			w.WriteTaggedFields(nil)
		}
	}
	w.Int32(req.TimeoutMs)
	if header.APIVersion >= 1 {
		w.Bool(req.ValidateOnly)
	}
	if flexible {
		w.WriteTaggedFields(nil)
	}
	return w.Bytes()
}
