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

import (
	"fmt"
)

// RequestHeader matches the Kafka RequestHeader schema across v0-v2.
type RequestHeader struct {
	APIKey        int16
	APIVersion    int16
	CorrelationID int32
	ClientID      *string
	TaggedFields  []TaggedField
}

// Request is implemented by concrete protocol request bodies this proxy
// decodes. Any api key not listed here stays opaque to the frame model.
type Request interface {
	APIKey() int16
}

// ApiVersionsRequest describes the ApiVersions call. Its body carries no
// fields this proxy needs up to v2; from v3 it adds the client's software
// name/version, which the frontend handler records for diagnostics.
type ApiVersionsRequest struct {
	ClientSoftwareName    string
	ClientSoftwareVersion string
}

func (ApiVersionsRequest) APIKey() int16 { return APIKeyApiVersions }

// ProduceRequest is a decoded Kafka ProduceRequest, versions 0-9.
type ProduceRequest struct {
	Acks            int16
	TimeoutMs       int32
	TransactionalID *string
	Topics          []ProduceTopic
}

type ProduceTopic struct {
	Name       string
	Partitions []ProducePartition
}

type ProducePartition struct {
	Partition int32
	Records   []byte
}

func (ProduceRequest) APIKey() int16 { return APIKeyProduce }

// HasResponse reports whether the broker will send a ProduceResponse for
// this request. acks=0 requests are fire-and-forget; the proxy must not
// register a correlation entry, or wait for a response, for these.
func (p ProduceRequest) HasResponse() bool { return p.Acks != 0 }

// FetchRequest is a decoded Kafka FetchRequest, versions 0-13.
type FetchRequest struct {
	ReplicaID       int32
	MaxWaitMs       int32
	MinBytes        int32
	MaxBytes        int32
	IsolationLevel  int8
	SessionID       int32
	SessionEpoch    int32
	Topics          []FetchTopicRequest
	ForgottenTopics []FetchForgottenTopic
	RackID          *string
}

type FetchTopicRequest struct {
	Name       string
	TopicID    [16]byte
	Partitions []FetchPartitionRequest
}

type FetchPartitionRequest struct {
	Partition         int32
	CurrentLeaderEpoch int32
	FetchOffset       int64
	LastFetchedEpoch   int32
	LogStartOffset    int64
	MaxBytes          int32
}

// FetchForgottenTopic names a topic (or, from v13, a topic id) the client
// is dropping from an incremental fetch session, along with the partitions
// within it being forgotten.
type FetchForgottenTopic struct {
	Name       string
	TopicID    [16]byte
	Partitions []int32
}

func (FetchRequest) APIKey() int16 { return APIKeyFetch }

// MetadataRequest asks for cluster metadata. A nil Topics slice (as
// opposed to an empty, non-nil one) means "all topics".
type MetadataRequest struct {
	Topics                 []string
	TopicIDs               [][16]byte
	AllowAutoTopicCreation bool
	IncludeClusterAuthOps  bool
	IncludeTopicAuthOps    bool
}

func (MetadataRequest) APIKey() int16 { return APIKeyMetadata }

type CreateTopicConfig struct {
	Name              string
	NumPartitions     int32
	ReplicationFactor int16
	Assignments       []CreateTopicAssignment
	Configs           []CreateTopicConfigEntry
}

// CreateTopicAssignment pins one partition's replicas to specific broker
// ids, bypassing the broker's own replica placement.
type CreateTopicAssignment struct {
	PartitionIndex int32
	BrokerIDs      []int32
}

// CreateTopicConfigEntry is one topic-level config override. Value is nil
// for a config the client wants left at its broker default.
type CreateTopicConfigEntry struct {
	Key   string
	Value *string
}

type CreateTopicsRequest struct {
	Topics      []CreateTopicConfig
	TimeoutMs   int32
	ValidateOnly bool
}

func (CreateTopicsRequest) APIKey() int16 { return APIKeyCreateTopics }

func compactArrayLenNonNull(r *byteReader) (int32, error) {
	n, err := r.CompactArrayLen()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("compact array is null")
	}
	return n, nil
}

// PeekProduceHasResponse reads only the fields needed to determine whether a
// Produce request expects a response, without decoding the rest of the
// body. reader must be freshly positioned just past the request header (as
// returned by ParseRequestHeader) and is not valid for further use
// afterward: this advances past transactional_id and acks but leaves the
// topic array(s) unread.
func PeekProduceHasResponse(header *RequestHeader, reader *byteReader) (bool, error) {
	flexible := bodyIsFlexible(header.APIKey, header.APIVersion)
	if header.APIVersion >= 3 {
		var err error
		if flexible {
			_, err = reader.CompactNullableString()
		} else {
			_, err = reader.NullableString()
		}
		if err != nil {
			return false, fmt.Errorf("peek produce transactional id: %w", err)
		}
	}
	acks, err := reader.Int16()
	if err != nil {
		return false, fmt.Errorf("peek produce acks: %w", err)
	}
	return acks != 0, nil
}

// ParseRequestHeader decodes the header portion from raw bytes. The header
// version is derived from (apiKey, apiVersion) via RequestHeaderVersion,
// not assumed from the caller.
func ParseRequestHeader(b []byte) (*RequestHeader, *byteReader, error) {
	reader := newByteReader(b)
	apiKey, err := reader.Int16()
	if err != nil {
		return nil, nil, fmt.Errorf("read api key: %w", err)
	}
	version, err := reader.Int16()
	if err != nil {
		return nil, nil, fmt.Errorf("read api version: %w", err)
	}
	correlationID, err := reader.Int32()
	if err != nil {
		return nil, nil, fmt.Errorf("read correlation id: %w", err)
	}

	headerVersion := RequestHeaderVersion(apiKey, version)
	var clientID *string
	if headerVersion >= 1 {
		clientID, err = reader.NullableString()
		if err != nil {
			return nil, nil, fmt.Errorf("read client id: %w", err)
		}
	}
	var tagged []TaggedField
	if headerVersion >= 2 {
		tagged, err = reader.ReadTaggedFields()
		if err != nil {
			return nil, nil, fmt.Errorf("read header tags: %w", err)
		}
	}
	return &RequestHeader{
		APIKey:        apiKey,
		APIVersion:    version,
		CorrelationID: correlationID,
		ClientID:      clientID,
		TaggedFields:  tagged,
	}, reader, nil
}

// ParseRequest decodes a request header and body from bytes. An unsupported
// api key is an error: callers are expected to consult the decode predicate
// before calling ParseRequest, and only do so for api keys this package
// claims to support.
func ParseRequest(b []byte) (*RequestHeader, Request, error) {
	header, reader, err := ParseRequestHeader(b)
	if err != nil {
		return nil, nil, err
	}
	flexible := bodyIsFlexible(header.APIKey, header.APIVersion)

	var req Request
	switch header.APIKey {
	case APIKeyApiVersions:
		var name, vers string
		if header.APIVersion >= 3 {
			name, err = reader.CompactString()
			if err != nil {
				return nil, nil, fmt.Errorf("read client software name: %w", err)
			}
			vers, err = reader.CompactString()
			if err != nil {
				return nil, nil, fmt.Errorf("read client software version: %w", err)
			}
			if err := reader.SkipTaggedFields(); err != nil {
				return nil, nil, fmt.Errorf("skip api versions tags: %w", err)
			}
		}
		req = &ApiVersionsRequest{ClientSoftwareName: name, ClientSoftwareVersion: vers}
	case APIKeyProduce:
		var transactionalID *string
		if header.APIVersion >= 3 {
			if flexible {
				transactionalID, err = reader.CompactNullableString()
			} else {
				transactionalID, err = reader.NullableString()
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read produce transactional id: %w", err)
			}
		}
		acks, err := reader.Int16()
		if err != nil {
			return nil, nil, fmt.Errorf("read produce acks: %w", err)
		}
		timeout, err := reader.Int32()
		if err != nil {
			return nil, nil, fmt.Errorf("read produce timeout: %w", err)
		}
		var topicCount int32
		if flexible {
			topicCount, err = compactArrayLenNonNull(reader)
		} else {
			topicCount, err = reader.Int32()
			if topicCount < 0 {
				return nil, nil, fmt.Errorf("read produce topic count: invalid %d", topicCount)
			}
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read produce topic count: %w", err)
		}
		topics := make([]ProduceTopic, 0, topicCount)
		for i := int32(0); i < topicCount; i++ {
			var name string
			if flexible {
				name, err = reader.CompactString()
			} else {
				name, err = reader.String()
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read produce topic name: %w", err)
			}
			var partitionCount int32
			if flexible {
				partitionCount, err = compactArrayLenNonNull(reader)
			} else {
				partitionCount, err = reader.Int32()
				if partitionCount < 0 {
					return nil, nil, fmt.Errorf("read produce partition count: invalid %d", partitionCount)
				}
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read produce partition count: %w", err)
			}
			partitions := make([]ProducePartition, 0, partitionCount)
			for j := int32(0); j < partitionCount; j++ {
				index, err := reader.Int32()
				if err != nil {
					return nil, nil, fmt.Errorf("read produce partition index: %w", err)
				}
				var records []byte
				if flexible {
					records, err = reader.CompactBytes()
				} else {
					records, err = reader.Bytes()
				}
				if err != nil {
					return nil, nil, fmt.Errorf("read produce records: %w", err)
				}
				partitions = append(partitions, ProducePartition{
					Partition: index,
					Records:   records,
				})
				if flexible {
					if err := reader.SkipTaggedFields(); err != nil {
						return nil, nil, fmt.Errorf("skip partition tags: %w", err)
					}
				}
			}
			if flexible {
				if err := reader.SkipTaggedFields(); err != nil {
					return nil, nil, fmt.Errorf("skip topic tags: %w", err)
				}
			}
			topics = append(topics, ProduceTopic{Name: name, Partitions: partitions})
		}
		if flexible {
			if err := reader.SkipTaggedFields(); err != nil {
				return nil, nil, fmt.Errorf("skip produce tags: %w", err)
			}
		}
		req = &ProduceRequest{
			Acks:            acks,
			TimeoutMs:       timeout,
			TransactionalID: transactionalID,
			Topics:          topics,
		}
	case APIKeyMetadata:
		var topics []string
		var topicIDs [][16]byte
		var count int32
		if flexible {
			count, err = reader.CompactArrayLen()
		} else {
			count, err = reader.Int32()
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read metadata topic count: %w", err)
		}
		if count >= 0 {
			topics = make([]string, 0, count)
			topicIDs = make([][16]byte, 0, count)
			for i := int32(0); i < count; i++ {
				if header.APIVersion >= 10 {
					id, err := reader.UUID()
					if err != nil {
						return nil, nil, fmt.Errorf("read metadata topic[%d] id: %w", i, err)
					}
					var namePtr *string
					if flexible {
						namePtr, err = reader.CompactNullableString()
					} else {
						namePtr, err = reader.NullableString()
					}
					if err != nil {
						return nil, nil, fmt.Errorf("read metadata topic[%d] name: %w", i, err)
					}
					if namePtr != nil {
						topics = append(topics, *namePtr)
					}
					topicIDs = append(topicIDs, id)
					if flexible {
						if err := reader.SkipTaggedFields(); err != nil {
							return nil, nil, fmt.Errorf("skip metadata topic[%d] tags: %w", i, err)
						}
					}
				} else {
					var name string
					if flexible {
						name, err = reader.CompactString()
					} else {
						name, err = reader.String()
					}
					if err != nil {
						return nil, nil, fmt.Errorf("read metadata topic[%d]: %w", i, err)
					}
					topics = append(topics, name)
					if flexible {
						if err := reader.SkipTaggedFields(); err != nil {
							return nil, nil, fmt.Errorf("skip metadata topic[%d] tags: %w", i, err)
						}
					}
				}
			}
		}
		allowAutoTopicCreation := true
		if header.APIVersion >= 4 {
			if allowAutoTopicCreation, err = reader.Bool(); err != nil {
				return nil, nil, fmt.Errorf("read metadata allow auto topic creation: %w", err)
			}
		}
		includeClusterAuthOps := false
		includeTopicAuthOps := false
		if header.APIVersion >= 8 && header.APIVersion <= 10 {
			if includeClusterAuthOps, err = reader.Bool(); err != nil {
				return nil, nil, fmt.Errorf("read metadata include cluster auth ops: %w", err)
			}
		}
		if header.APIVersion >= 8 {
			if includeTopicAuthOps, err = reader.Bool(); err != nil {
				return nil, nil, fmt.Errorf("read metadata include topic auth ops: %w", err)
			}
		}
		if flexible {
			if err := reader.SkipTaggedFields(); err != nil {
				return nil, nil, fmt.Errorf("skip metadata tags: %w", err)
			}
		}
		req = &MetadataRequest{
			Topics:                 topics,
			TopicIDs:               topicIDs,
			AllowAutoTopicCreation: allowAutoTopicCreation,
			IncludeClusterAuthOps:  includeClusterAuthOps,
			IncludeTopicAuthOps:    includeTopicAuthOps,
		}
	case APIKeyFetch:
		version := header.APIVersion
		replicaID, err := reader.Int32()
		if err != nil {
			return nil, nil, fmt.Errorf("read fetch replica id: %w", err)
		}
		maxWaitMs, err := reader.Int32()
		if err != nil {
			return nil, nil, err
		}
		minBytes, err := reader.Int32()
		if err != nil {
			return nil, nil, err
		}
		var maxBytes int32
		if version >= 3 {
			maxBytes, err = reader.Int32()
			if err != nil {
				return nil, nil, err
			}
		}
		isolationLevel := int8(0)
		if version >= 4 {
			if isolationLevel, err = reader.Int8(); err != nil {
				return nil, nil, err
			}
		}
		sessionID := int32(0)
		sessionEpoch := int32(0)
		if version >= 7 {
			if sessionID, err = reader.Int32(); err != nil {
				return nil, nil, err
			}
			if sessionEpoch, err = reader.Int32(); err != nil {
				return nil, nil, err
			}
		}
		var topicCount int32
		if flexible {
			topicCount, err = compactArrayLenNonNull(reader)
		} else {
			topicCount, err = reader.Int32()
			if topicCount < 0 {
				return nil, nil, fmt.Errorf("fetch topic count invalid %d", topicCount)
			}
		}
		if err != nil {
			return nil, nil, err
		}

		topics := make([]FetchTopicRequest, 0, topicCount)
		for i := int32(0); i < topicCount; i++ {
			var (
				name    string
				topicID [16]byte
			)
			if version >= 13 {
				topicID, err = reader.UUID()
				if err != nil {
					return nil, nil, err
				}
			} else {
				if flexible {
					name, err = reader.CompactString()
				} else {
					name, err = reader.String()
				}
				if err != nil {
					return nil, nil, err
				}
			}
			var partCount int32
			if flexible {
				partCount, err = compactArrayLenNonNull(reader)
			} else {
				partCount, err = reader.Int32()
				if partCount < 0 {
					return nil, nil, fmt.Errorf("fetch partition count invalid %d", partCount)
				}
			}
			if err != nil {
				return nil, nil, err
			}
			partitions := make([]FetchPartitionRequest, 0, partCount)
			for j := int32(0); j < partCount; j++ {
				partitionID, err := reader.Int32()
				if err != nil {
					return nil, nil, err
				}
				currentLeaderEpoch := int32(-1)
				if version >= 9 {
					if currentLeaderEpoch, err = reader.Int32(); err != nil {
						return nil, nil, err
					}
				}
				fetchOffset, err := reader.Int64()
				if err != nil {
					return nil, nil, err
				}
				lastFetchedEpoch := int32(-1)
				if version >= 12 {
					if lastFetchedEpoch, err = reader.Int32(); err != nil {
						return nil, nil, err
					}
				}
				logStartOffset := int64(-1)
				if version >= 5 {
					if logStartOffset, err = reader.Int64(); err != nil {
						return nil, nil, err
					}
				}
				maxBytes, err := reader.Int32()
				if err != nil {
					return nil, nil, err
				}
				partitions = append(partitions, FetchPartitionRequest{
					Partition:          partitionID,
					CurrentLeaderEpoch: currentLeaderEpoch,
					FetchOffset:        fetchOffset,
					LastFetchedEpoch:   lastFetchedEpoch,
					LogStartOffset:     logStartOffset,
					MaxBytes:           maxBytes,
				})
				if flexible {
					if err := reader.SkipTaggedFields(); err != nil {
						return nil, nil, fmt.Errorf("skip fetch partition tags: %w", err)
					}
				}
			}
			topics = append(topics, FetchTopicRequest{
				Name:       name,
				TopicID:    topicID,
				Partitions: partitions,
			})
			if flexible {
				if err := reader.SkipTaggedFields(); err != nil {
					return nil, nil, fmt.Errorf("skip fetch topic tags: %w", err)
				}
			}
		}
		var forgottenTopics []FetchForgottenTopic
		if version >= 7 {
			var forgottenCount int32
			if flexible {
				forgottenCount, err = reader.CompactArrayLen()
			} else {
				forgottenCount, err = reader.Int32()
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read forgotten topics count: %w", err)
			}
			forgottenTopics = make([]FetchForgottenTopic, 0, forgottenCount)
			for i := int32(0); i < forgottenCount; i++ {
				var (
					forgottenName string
					forgottenID   [16]byte
				)
				if version >= 13 {
					forgottenID, err = reader.UUID()
					if err != nil {
						return nil, nil, fmt.Errorf("read forgotten topic id: %w", err)
					}
				} else {
					if flexible {
						forgottenName, err = reader.CompactString()
					} else {
						forgottenName, err = reader.String()
					}
					if err != nil {
						return nil, nil, fmt.Errorf("read forgotten topic name: %w", err)
					}
				}
				var partCount int32
				if flexible {
					partCount, err = reader.CompactArrayLen()
				} else {
					partCount, err = reader.Int32()
				}
				if err != nil {
					return nil, nil, fmt.Errorf("read forgotten partitions: %w", err)
				}
				forgottenParts := make([]int32, 0, partCount)
				for j := int32(0); j < partCount; j++ {
					p, err := reader.Int32()
					if err != nil {
						return nil, nil, fmt.Errorf("read forgotten partition: %w", err)
					}
					forgottenParts = append(forgottenParts, p)
				}
				if flexible {
					if err := reader.SkipTaggedFields(); err != nil {
						return nil, nil, fmt.Errorf("skip forgotten topic tags: %w", err)
					}
				}
				forgottenTopics = append(forgottenTopics, FetchForgottenTopic{
					Name:       forgottenName,
					TopicID:    forgottenID,
					Partitions: forgottenParts,
				})
			}
		}
		var rackID *string
		if version >= 11 {
			if flexible {
				rackID, err = reader.CompactNullableString()
			} else {
				rackID, err = reader.NullableString()
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read rack id: %w", err)
			}
		}
		if flexible {
			if err := reader.SkipTaggedFields(); err != nil {
				return nil, nil, fmt.Errorf("skip fetch request tags: %w", err)
			}
		}
		req = &FetchRequest{
			ReplicaID:       replicaID,
			MaxWaitMs:       maxWaitMs,
			MinBytes:        minBytes,
			MaxBytes:        maxBytes,
			IsolationLevel:  isolationLevel,
			SessionID:       sessionID,
			SessionEpoch:    sessionEpoch,
			Topics:          topics,
			ForgottenTopics: forgottenTopics,
			RackID:          rackID,
		}
	case APIKeyCreateTopics:
		var topicCount int32
		if flexible {
			topicCount, err = compactArrayLenNonNull(reader)
		} else {
			topicCount, err = reader.Int32()
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read create topics count: %w", err)
		}
		configs := make([]CreateTopicConfig, 0, topicCount)
		for i := int32(0); i < topicCount; i++ {
			var name string
			if flexible {
				name, err = reader.CompactString()
			} else {
				name, err = reader.String()
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read create topics name: %w", err)
			}
			numPartitions, err := reader.Int32()
			if err != nil {
				return nil, nil, err
			}
			repl, err := reader.Int16()
			if err != nil {
				return nil, nil, err
			}
			var assignCount int32
			if flexible {
				assignCount, err = reader.CompactArrayLen()
			} else {
				assignCount, err = reader.Int32()
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read create topics assignments: %w", err)
			}
			assignments := make([]CreateTopicAssignment, 0, assignCount)
			for j := int32(0); j < assignCount; j++ {
				partitionIndex, err := reader.Int32()
				if err != nil {
					return nil, nil, err
				}
				var brokerCount int32
				if flexible {
					brokerCount, err = reader.CompactArrayLen()
				} else {
					brokerCount, err = reader.Int32()
				}
				if err != nil {
					return nil, nil, err
				}
				brokerIDs := make([]int32, 0, brokerCount)
				for k := int32(0); k < brokerCount; k++ {
					brokerID, err := reader.Int32()
					if err != nil {
						return nil, nil, err
					}
					brokerIDs = append(brokerIDs, brokerID)
				}
				if flexible {
					if err := reader.SkipTaggedFields(); err != nil {
						return nil, nil, err
					}
				}
				assignments = append(assignments, CreateTopicAssignment{PartitionIndex: partitionIndex, BrokerIDs: brokerIDs})
			}
			var cfgCount int32
			if flexible {
				cfgCount, err = reader.CompactArrayLen()
			} else {
				cfgCount, err = reader.Int32()
			}
			if err != nil {
				return nil, nil, fmt.Errorf("read create topics configs: %w", err)
			}
			topicConfigs := make([]CreateTopicConfigEntry, 0, cfgCount)
			for j := int32(0); j < cfgCount; j++ {
				var key string
				if flexible {
					key, err = reader.CompactString()
				} else {
					key, err = reader.String()
				}
				if err != nil {
					return nil, nil, err
				}
				var valPtr *string
				if flexible {
					valPtr, err = reader.CompactNullableString()
				} else {
					valPtr, err = reader.NullableString()
				}
				if err != nil {
					return nil, nil, err
				}
				if flexible {
					if err := reader.SkipTaggedFields(); err != nil {
						return nil, nil, err
					}
				}
				topicConfigs = append(topicConfigs, CreateTopicConfigEntry{Key: key, Value: valPtr})
			}
			if flexible {
				if err := reader.SkipTaggedFields(); err != nil {
					return nil, nil, fmt.Errorf("skip create topics tags: %w", err)
				}
			}
			configs = append(configs, CreateTopicConfig{
				Name:              name,
				NumPartitions:     numPartitions,
				ReplicationFactor: repl,
				Assignments:       assignments,
				Configs:           topicConfigs,
			})
		}
		timeoutMs, err := reader.Int32()
		if err != nil {
			return nil, nil, fmt.Errorf("read create topics timeout: %w", err)
		}
		var validateOnly bool
		if header.APIVersion >= 1 {
			if validateOnly, err = reader.Bool(); err != nil {
				return nil, nil, fmt.Errorf("read create topics validate only: %w", err)
			}
		}
		if flexible {
			if err := reader.SkipTaggedFields(); err != nil {
				return nil, nil, fmt.Errorf("skip create topics request tags: %w", err)
			}
		}
		req = &CreateTopicsRequest{Topics: configs, TimeoutMs: timeoutMs, ValidateOnly: validateOnly}
	default:
		return nil, nil, fmt.Errorf("unsupported api key %d", header.APIKey)
	}

	return header, req, nil
}
