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

import "testing"

func TestEncodeApiVersionsResponseV0(t *testing.T) {
	payload, err := EncodeApiVersionsResponse(&ApiVersionsResponse{
		ErrorCode: 0,
		Versions: []ApiVersion{
			{APIKey: APIKeyMetadata, MinVersion: 0, MaxVersion: 1},
		},
	}, 0)
	if err != nil {
		t.Fatalf("EncodeApiVersionsResponse: %v", err)
	}
	reader := newByteReader(payload)
	errCode, _ := reader.Int16()
	if errCode != 0 {
		t.Fatalf("unexpected error code %d", errCode)
	}
	count, _ := reader.Int32()
	if count != 1 {
		t.Fatalf("unexpected version count %d", count)
	}
}

func TestEncodeApiVersionsResponseV3FlexibleBodyHeaderV0(t *testing.T) {
	payload, err := EncodeApiVersionsResponse(&ApiVersionsResponse{
		ErrorCode: 0,
		Versions: []ApiVersion{
			{APIKey: APIKeyApiVersions, MinVersion: 0, MaxVersion: 3},
		},
		ThrottleMs: 5,
	}, 3)
	if err != nil {
		t.Fatalf("EncodeApiVersionsResponse v3: %v", err)
	}
	if ResponseHeaderVersion(APIKeyApiVersions, 3) != 0 {
		t.Fatalf("ApiVersions response header must stay v0 even for a flexible body")
	}
	reader := newByteReader(payload)
	if errCode, _ := reader.Int16(); errCode != 0 {
		t.Fatalf("unexpected error code %d", errCode)
	}
	count, _ := reader.CompactArrayLen()
	if count != 1 {
		t.Fatalf("unexpected version count %d", count)
	}
}

func TestEncodeMetadataResponse(t *testing.T) {
	clusterID := "cluster-1"
	payload, err := EncodeMetadataResponse(&MetadataResponse{
		ThrottleMs: 0,
		Brokers: []MetadataBroker{
			{NodeID: 1, Host: "localhost", Port: 9092},
		},
		ClusterID:    &clusterID,
		ControllerID: 1,
		Topics: []MetadataTopic{
			{
				ErrorCode: 0,
				Name:      "orders",
				Partitions: []MetadataPartition{
					{
						ErrorCode:      0,
						PartitionIndex: 0,
						LeaderID:       1,
						ReplicaNodes:   []int32{1},
						ISRNodes:       []int32{1},
					},
				},
			},
		},
	}, 0)
	if err != nil {
		t.Fatalf("EncodeMetadataResponse: %v", err)
	}
	reader := newByteReader(payload)
	brokerCount, _ := reader.Int32()
	if brokerCount != 1 {
		t.Fatalf("unexpected broker count %d", brokerCount)
	}
}

func TestEncodeMetadataResponseV10IncludesTopicID(t *testing.T) {
	clusterID := "cluster-1"
	var topicID [16]byte
	for i := range topicID {
		topicID[i] = byte(i + 1)
	}
	payload, err := EncodeMetadataResponse(&MetadataResponse{
		ThrottleMs: 0,
		Brokers: []MetadataBroker{
			{NodeID: 1, Host: "localhost", Port: 9092},
		},
		ClusterID:    &clusterID,
		ControllerID: 1,
		Topics: []MetadataTopic{
			{
				ErrorCode:  0,
				Name:       "orders",
				TopicID:    topicID,
				IsInternal: false,
				Partitions: []MetadataPartition{
					{
						ErrorCode:      0,
						PartitionIndex: 0,
						LeaderID:       1,
						ReplicaNodes:   []int32{1},
						ISRNodes:       []int32{1},
					},
				},
			},
		},
	}, 10)
	if err != nil {
		t.Fatalf("EncodeMetadataResponse v10: %v", err)
	}
	reader := newByteReader(payload)
	if _, err := reader.Int32(); err != nil { // throttle
		t.Fatalf("read throttle: %v", err)
	}
	if brokers, _ := reader.CompactArrayLen(); brokers != 1 {
		t.Fatalf("expected 1 broker got %d", brokers)
	}
	if _, err := reader.Int32(); err != nil {
		t.Fatalf("read broker id: %v", err)
	}
	if host, _ := reader.CompactString(); host != "localhost" {
		t.Fatalf("unexpected broker host %q", host)
	}
	reader.Int32() // port
	if _, err := reader.CompactNullableString(); err != nil {
		t.Fatalf("read rack: %v", err)
	}
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero broker tags got %d", tags)
	}
	if _, err := reader.CompactNullableString(); err != nil {
		t.Fatalf("read cluster id: %v", err)
	}
	reader.Int32() // controller id
	if topics, _ := reader.CompactArrayLen(); topics != 1 {
		t.Fatalf("expected 1 topic got %d", topics)
	}
	reader.Int16() // error code
	if name, _ := reader.CompactNullableString(); name == nil || *name != "orders" {
		t.Fatalf("unexpected topic name %v", name)
	}
	id, err := reader.UUID()
	if err != nil {
		t.Fatalf("read topic id: %v", err)
	}
	if id != topicID {
		t.Fatalf("unexpected topic id %v", id)
	}
	if internal, _ := reader.Bool(); internal {
		t.Fatalf("expected non-internal topic")
	}
	if parts, _ := reader.CompactArrayLen(); parts != 1 {
		t.Fatalf("expected 1 partition got %d", parts)
	}
	reader.Int16() // partition error
	reader.Int32() // partition index
	reader.Int32() // leader
	reader.Int32() // leader epoch
	if replicas, _ := reader.CompactArrayLen(); replicas != 1 {
		t.Fatalf("expected 1 replica got %d", replicas)
	}
	reader.Int32()
	if isr, _ := reader.CompactArrayLen(); isr != 1 {
		t.Fatalf("expected 1 isr got %d", isr)
	}
	reader.Int32()
	if offline, _ := reader.CompactArrayLen(); offline != 0 {
		t.Fatalf("expected 0 offline replicas got %d", offline)
	}
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero partition tags got %d", tags)
	}
	reader.Int32() // authorized ops
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero topic tags got %d", tags)
	}
	reader.Int32() // cluster authorized ops
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero response tags got %d", tags)
	}
	if reader.remaining() != 0 {
		t.Fatalf("unexpected trailing bytes: %d", reader.remaining())
	}
}

func TestEncodeProduceResponse(t *testing.T) {
	payload, err := EncodeProduceResponse(&ProduceResponse{
		Topics: []ProduceTopicResponse{
			{
				Name: "orders",
				Partitions: []ProducePartitionResponse{
					{Partition: 0, ErrorCode: 0, BaseOffset: 10, LogAppendTimeMs: 1234, LogStartOffset: 10},
				},
			},
		},
		ThrottleMs: 5,
	}, 8)
	if err != nil {
		t.Fatalf("EncodeProduceResponse: %v", err)
	}
	reader := newByteReader(payload)
	topicCount, _ := reader.Int32()
	if topicCount != 1 {
		t.Fatalf("expected 1 topic got %d", topicCount)
	}
	if name, _ := reader.String(); name != "orders" {
		t.Fatalf("unexpected topic %q", name)
	}
	partCount, _ := reader.Int32()
	if partCount != 1 {
		t.Fatalf("expected 1 partition got %d", partCount)
	}
	reader.Int32() // partition
	reader.Int16() // error code
	reader.Int64() // base offset
	reader.Int64() // log append time
	reader.Int64() // log start offset
}

func TestEncodeProduceResponseFlexible(t *testing.T) {
	payload, err := EncodeProduceResponse(&ProduceResponse{
		Topics: []ProduceTopicResponse{
			{
				Name: "orders",
				Partitions: []ProducePartitionResponse{
					{Partition: 0, ErrorCode: 0, BaseOffset: 42, LogAppendTimeMs: 11, LogStartOffset: 5},
				},
			},
		},
		ThrottleMs: 3,
	}, 9)
	if err != nil {
		t.Fatalf("EncodeProduceResponse flexible: %v", err)
	}
	reader := newByteReader(payload)
	topicCount, _ := reader.CompactArrayLen()
	if topicCount != 1 {
		t.Fatalf("expected 1 topic got %d", topicCount)
	}
	name, _ := reader.CompactString()
	if name != "orders" {
		t.Fatalf("unexpected topic %q", name)
	}
	partCount, _ := reader.CompactArrayLen()
	if partCount != 1 {
		t.Fatalf("expected 1 partition got %d", partCount)
	}
	if partition, _ := reader.Int32(); partition != 0 {
		t.Fatalf("unexpected partition %d", partition)
	}
	if errCode, _ := reader.Int16(); errCode != 0 {
		t.Fatalf("unexpected error code %d", errCode)
	}
	if base, _ := reader.Int64(); base != 42 {
		t.Fatalf("unexpected base offset %d", base)
	}
	reader.Int64() // log append time
	reader.Int64() // log start offset
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero partition tags got %d", tags)
	}
	if topicTags, _ := reader.UVarint(); topicTags != 0 {
		t.Fatalf("expected zero topic tags got %d", topicTags)
	}
	if throttle, _ := reader.Int32(); throttle != 3 {
		t.Fatalf("unexpected throttle %d", throttle)
	}
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero response tags got %d", tags)
	}
	if reader.remaining() != 0 {
		t.Fatalf("unexpected trailing bytes: %d", reader.remaining())
	}
}

func TestEncodeProduceResponseLegacyVersions(t *testing.T) {
	resp := &ProduceResponse{
		Topics: []ProduceTopicResponse{
			{
				Name: "orders",
				Partitions: []ProducePartitionResponse{
					{Partition: 0, ErrorCode: 0, BaseOffset: 10, LogAppendTimeMs: 123, LogStartOffset: 5},
				},
			},
		},
		ThrottleMs: 0,
	}

	tests := []struct {
		name    string
		version int16
	}{
		{name: "v0", version: 0},
		{name: "v7", version: 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := EncodeProduceResponse(resp, tc.version)
			if err != nil {
				t.Fatalf("EncodeProduceResponse v%d: %v", tc.version, err)
			}
			reader := newByteReader(payload)
			topicCount, err := reader.Int32()
			if err != nil {
				t.Fatalf("read topic count: %v", err)
			}
			for i := int32(0); i < topicCount; i++ {
				if _, err := reader.String(); err != nil {
					t.Fatalf("read topic name: %v", err)
				}
				partCount, err := reader.Int32()
				if err != nil {
					t.Fatalf("read partition count: %v", err)
				}
				for j := int32(0); j < partCount; j++ {
					if _, err := reader.Int32(); err != nil {
						t.Fatalf("read partition id: %v", err)
					}
					if _, err := reader.Int16(); err != nil {
						t.Fatalf("read error code: %v", err)
					}
					if _, err := reader.Int64(); err != nil {
						t.Fatalf("read base offset: %v", err)
					}
					if tc.version >= 3 {
						if _, err := reader.Int64(); err != nil {
							t.Fatalf("read log append time: %v", err)
						}
					}
					if tc.version >= 5 {
						if _, err := reader.Int64(); err != nil {
							t.Fatalf("read log start offset: %v", err)
						}
					}
				}
			}
			if tc.version >= 1 {
				if _, err := reader.Int32(); err != nil {
					t.Fatalf("read throttle ms: %v", err)
				}
			}
			if reader.remaining() != 0 {
				t.Fatalf("unexpected trailing bytes: %d", reader.remaining())
			}
		})
	}
}

func TestEncodeFetchResponse(t *testing.T) {
	payload, err := EncodeFetchResponse(&FetchResponse{
		ThrottleMs: 9,
		ErrorCode:  NONE,
		SessionID:  7,
		Topics: []FetchTopicResponse{
			{
				Name: "orders",
				Partitions: []FetchPartitionResponse{
					{
						Partition:            0,
						ErrorCode:            NONE,
						HighWatermark:        10,
						LastStableOffset:     10,
						LogStartOffset:       0,
						PreferredReadReplica: -1,
						RecordSet:            []byte("records"),
					},
				},
			},
		},
	}, 11)
	if err != nil {
		t.Fatalf("EncodeFetchResponse: %v", err)
	}
	reader := newByteReader(payload)
	if throttle, _ := reader.Int32(); throttle != 9 {
		t.Fatalf("unexpected throttle %d", throttle)
	}
	if errCode, _ := reader.Int16(); errCode != 0 {
		t.Fatalf("unexpected error code %d", errCode)
	}
	if session, _ := reader.Int32(); session != 7 {
		t.Fatalf("unexpected session id %d", session)
	}
	if topicCount, _ := reader.Int32(); topicCount != 1 {
		t.Fatalf("unexpected topic count %d", topicCount)
	}
	name, _ := reader.String()
	if name != "orders" {
		t.Fatalf("unexpected topic %q", name)
	}
	if partCount, _ := reader.Int32(); partCount != 1 {
		t.Fatalf("unexpected partition count %d", partCount)
	}
	if partition, _ := reader.Int32(); partition != 0 {
		t.Fatalf("unexpected partition %d", partition)
	}
	if perr, _ := reader.Int16(); perr != 0 {
		t.Fatalf("unexpected partition error %d", perr)
	}
	if hw, _ := reader.Int64(); hw != 10 {
		t.Fatalf("unexpected high watermark %d", hw)
	}
	if lso, _ := reader.Int64(); lso != 10 {
		t.Fatalf("unexpected lso %d", lso)
	}
	if lsoff, _ := reader.Int64(); lsoff != 0 {
		t.Fatalf("unexpected log start offset %d", lsoff)
	}
	if abortedCount, _ := reader.Int32(); abortedCount != 0 {
		t.Fatalf("unexpected aborted txns %d", abortedCount)
	}
	if pref, _ := reader.Int32(); pref != -1 {
		t.Fatalf("unexpected preferred replica %d", pref)
	}
	recordLen, _ := reader.Int32()
	if recordLen != int32(len("records")) {
		t.Fatalf("unexpected record set length %d", recordLen)
	}
	if _, err := reader.read(int(recordLen)); err != nil {
		t.Fatalf("read record set: %v", err)
	}
	if reader.remaining() != 0 {
		t.Fatalf("unexpected trailing bytes %d", reader.remaining())
	}
}

func TestEncodeFetchResponseV13(t *testing.T) {
	var topicID [16]byte
	for i := range topicID {
		topicID[i] = byte(i + 1)
	}
	payload, err := EncodeFetchResponse(&FetchResponse{
		ThrottleMs: 1,
		ErrorCode:  NONE,
		SessionID:  2,
		Topics: []FetchTopicResponse{
			{
				TopicID: topicID,
				Partitions: []FetchPartitionResponse{
					{
						Partition:            0,
						ErrorCode:            NONE,
						HighWatermark:        5,
						LastStableOffset:     5,
						LogStartOffset:       0,
						PreferredReadReplica: -1,
						RecordSet:            []byte("records"),
					},
				},
			},
		},
	}, 13)
	if err != nil {
		t.Fatalf("EncodeFetchResponse v13: %v", err)
	}
	reader := newByteReader(payload)
	if throttle, _ := reader.Int32(); throttle != 1 {
		t.Fatalf("unexpected throttle %d", throttle)
	}
	if errCode, _ := reader.Int16(); errCode != 0 {
		t.Fatalf("unexpected error code %d", errCode)
	}
	if session, _ := reader.Int32(); session != 2 {
		t.Fatalf("unexpected session id %d", session)
	}
	if topicCount, _ := reader.CompactArrayLen(); topicCount != 1 {
		t.Fatalf("unexpected topic count %d", topicCount)
	}
	gotID, err := reader.UUID()
	if err != nil {
		t.Fatalf("read topic id: %v", err)
	}
	if gotID != topicID {
		t.Fatalf("unexpected topic id %v", gotID)
	}
	if partCount, _ := reader.CompactArrayLen(); partCount != 1 {
		t.Fatalf("unexpected partition count %d", partCount)
	}
	if partition, _ := reader.Int32(); partition != 0 {
		t.Fatalf("unexpected partition %d", partition)
	}
	if perr, _ := reader.Int16(); perr != 0 {
		t.Fatalf("unexpected partition error %d", perr)
	}
	if hw, _ := reader.Int64(); hw != 5 {
		t.Fatalf("unexpected high watermark %d", hw)
	}
	if lso, _ := reader.Int64(); lso != 5 {
		t.Fatalf("unexpected lso %d", lso)
	}
	if lsoff, _ := reader.Int64(); lsoff != 0 {
		t.Fatalf("unexpected log start offset %d", lsoff)
	}
	if abortedCount, _ := reader.CompactArrayLen(); abortedCount != 0 {
		t.Fatalf("unexpected aborted txns %d", abortedCount)
	}
	if pref, _ := reader.Int32(); pref != -1 {
		t.Fatalf("unexpected preferred replica %d", pref)
	}
	recordSet, err := reader.CompactBytes()
	if err != nil {
		t.Fatalf("read record set: %v", err)
	}
	if string(recordSet) != "records" {
		t.Fatalf("unexpected record set %q", recordSet)
	}
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero partition tags got %d", tags)
	}
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero topic tags got %d", tags)
	}
	if tags, _ := reader.UVarint(); tags != 0 {
		t.Fatalf("expected zero response tags got %d", tags)
	}
	if reader.remaining() != 0 {
		t.Fatalf("unexpected trailing bytes %d", reader.remaining())
	}
}

func TestEncodeCreateTopicsResponse(t *testing.T) {
	payload, err := EncodeCreateTopicsResponse(&CreateTopicsResponse{
		ThrottleMs: 2,
		Topics: []CreateTopicResult{
			{Name: "orders", ErrorCode: NONE, NumPartitions: 3, ReplicationFactor: 1},
		},
	}, 5)
	if err != nil {
		t.Fatalf("EncodeCreateTopicsResponse: %v", err)
	}
	reader := newByteReader(payload)
	count, _ := reader.CompactArrayLen()
	if count != 1 {
		t.Fatalf("unexpected topic count %d", count)
	}
	name, _ := reader.CompactString()
	if name != "orders" {
		t.Fatalf("unexpected topic name %q", name)
	}
}

func TestEncodeCreateTopicsResponseShortCircuitError(t *testing.T) {
	errMsg := "invalid topic name"
	payload, err := EncodeCreateTopicsResponse(&CreateTopicsResponse{
		Topics: []CreateTopicResult{
			{Name: "bad topic!", ErrorCode: INVALID_TOPIC_EXCEPTION, ErrorMessage: &errMsg},
		},
	}, 2)
	if err != nil {
		t.Fatalf("EncodeCreateTopicsResponse: %v", err)
	}
	reader := newByteReader(payload)
	count, _ := reader.Int32()
	if count != 1 {
		t.Fatalf("unexpected topic count %d", count)
	}
	name, _ := reader.String()
	if name != "bad topic!" {
		t.Fatalf("unexpected topic name %q", name)
	}
	errCode, _ := reader.Int16()
	if errCode != INVALID_TOPIC_EXCEPTION {
		t.Fatalf("unexpected error code %d", errCode)
	}
	msg, _ := reader.NullableString()
	if msg == nil || *msg != "invalid topic name" {
		t.Fatalf("unexpected error message %v", msg)
	}
}
