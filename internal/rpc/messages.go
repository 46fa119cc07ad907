package rpc

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// MPointRequest asks the owner of a point for its attribute values
type MPointRequest struct {
	RequesterRank int32
	PointId       int32
	RequestId     uint64
}

// GetRequesterRank returns the RequesterRank field, or its zero value for a nil message
func (m *MPointRequest) GetRequesterRank() int32 {
	if m != nil {
		return m.RequesterRank
	}
	return 0
}

// GetPointId returns the PointId field, or its zero value for a nil message
func (m *MPointRequest) GetPointId() int32 {
	if m != nil {
		return m.PointId
	}
	return 0
}

// GetRequestId returns the RequestId field, or its zero value for a nil message
func (m *MPointRequest) GetRequestId() uint64 {
	if m != nil {
		return m.RequestId
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MPointRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendInt32(b, 1, m.RequesterRank)
	b = appendInt32(b, 2, m.PointId)
	b = appendUint64(b, 3, m.RequestId)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MPointRequest) Unmarshal(b []byte) error {
	*m = MPointRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.RequesterRank = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.PointId = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.RequestId = v
			return n, err
		}
		return 0, nil
	})
}

// MPointReply carries the attribute values of a point back to its requester
type MPointReply struct {
	OwnerRank int32
	PointId   int32
	RequestId uint64
	Values    []float64
}

// GetOwnerRank returns the OwnerRank field, or its zero value for a nil message
func (m *MPointReply) GetOwnerRank() int32 {
	if m != nil {
		return m.OwnerRank
	}
	return 0
}

// GetPointId returns the PointId field, or its zero value for a nil message
func (m *MPointReply) GetPointId() int32 {
	if m != nil {
		return m.PointId
	}
	return 0
}

// GetRequestId returns the RequestId field, or its zero value for a nil message
func (m *MPointReply) GetRequestId() uint64 {
	if m != nil {
		return m.RequestId
	}
	return 0
}

// GetValues returns the Values field, or nil for a nil message
func (m *MPointReply) GetValues() []float64 {
	if m != nil {
		return m.Values
	}
	return nil
}

// Marshal encodes this message in the protobuf wire format
func (m *MPointReply) Marshal() ([]byte, error) {
	b := make([]byte, 0, 24+len(m.Values)*8)
	b = appendInt32(b, 1, m.OwnerRank)
	b = appendInt32(b, 2, m.PointId)
	b = appendUint64(b, 3, m.RequestId)
	b = appendPackedDoubles(b, 4, m.Values)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MPointReply) Unmarshal(b []byte) error {
	*m = MPointReply{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.OwnerRank = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.PointId = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.RequestId = v
			return n, err
		case 4:
			vs, n, err := consumeDoubles(typ, b, m.Values)
			m.Values = vs
			return n, err
		}
		return 0, nil
	})
}

// MReleaseRequest tells an owner that a requester no longer needs a point
type MReleaseRequest struct {
	RequesterRank int32
	PointId       int32
}

// GetRequesterRank returns the RequesterRank field, or its zero value for a nil message
func (m *MReleaseRequest) GetRequesterRank() int32 {
	if m != nil {
		return m.RequesterRank
	}
	return 0
}

// GetPointId returns the PointId field, or its zero value for a nil message
func (m *MReleaseRequest) GetPointId() int32 {
	if m != nil {
		return m.PointId
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MReleaseRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendInt32(b, 1, m.RequesterRank)
	b = appendInt32(b, 2, m.PointId)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MReleaseRequest) Unmarshal(b []byte) error {
	*m = MReleaseRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.RequesterRank = int32(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.PointId = int32(v)
			return n, err
		}
		return 0, nil
	})
}

// MReleaseResponse acknowledges an MReleaseRequest
type MReleaseResponse struct{}

// Marshal encodes this message in the protobuf wire format
func (m *MReleaseResponse) Marshal() ([]byte, error) {
	return nil, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MReleaseResponse) Unmarshal(b []byte) error {
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		return 0, nil
	})
}

// MPeerDescriptor describes where a rank serves its mailbox
type MPeerDescriptor struct {
	Rank int32
	Host string
	Port int32
}

// GetRank returns the Rank field, or its zero value for a nil message
func (m *MPeerDescriptor) GetRank() int32 {
	if m != nil {
		return m.Rank
	}
	return 0
}

// GetHost returns the Host field, or its zero value for a nil message
func (m *MPeerDescriptor) GetHost() string {
	if m != nil {
		return m.Host
	}
	return ""
}

// GetPort returns the Port field, or its zero value for a nil message
func (m *MPeerDescriptor) GetPort() int32 {
	if m != nil {
		return m.Port
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MPeerDescriptor) Marshal() ([]byte, error) {
	var b []byte
	b = appendInt32(b, 1, m.Rank)
	b = appendString(b, 2, m.Host)
	b = appendInt32(b, 3, m.Port)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MPeerDescriptor) Unmarshal(b []byte) error {
	*m = MPeerDescriptor{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.Rank = int32(v)
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Host = v
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.Port = int32(v)
			return n, err
		}
		return 0, nil
	})
}

// MAllGatherRequest contributes one value (and the sender's mailbox address) to an all-gather
type MAllGatherRequest struct {
	GroupId string
	Rank    int32
	Value   int32
	Port    int32
	Host    string
}

// GetGroupId returns the GroupId field, or its zero value for a nil message
func (m *MAllGatherRequest) GetGroupId() string {
	if m != nil {
		return m.GroupId
	}
	return ""
}

// GetRank returns the Rank field, or its zero value for a nil message
func (m *MAllGatherRequest) GetRank() int32 {
	if m != nil {
		return m.Rank
	}
	return 0
}

// GetValue returns the Value field, or its zero value for a nil message
func (m *MAllGatherRequest) GetValue() int32 {
	if m != nil {
		return m.Value
	}
	return 0
}

// GetPort returns the Port field, or its zero value for a nil message
func (m *MAllGatherRequest) GetPort() int32 {
	if m != nil {
		return m.Port
	}
	return 0
}

// GetHost returns the Host field, or its zero value for a nil message
func (m *MAllGatherRequest) GetHost() string {
	if m != nil {
		return m.Host
	}
	return ""
}

// Marshal encodes this message in the protobuf wire format
func (m *MAllGatherRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.GroupId)
	b = appendInt32(b, 2, m.Rank)
	b = appendInt32(b, 3, m.Value)
	b = appendInt32(b, 4, m.Port)
	b = appendString(b, 5, m.Host)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MAllGatherRequest) Unmarshal(b []byte) error {
	*m = MAllGatherRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.GroupId = v
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Rank = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.Value = int32(v)
			return n, err
		case 4:
			v, n, err := consumeVarint(typ, b)
			m.Port = int32(v)
			return n, err
		case 5:
			v, n, err := consumeString(typ, b)
			m.Host = v
			return n, err
		}
		return 0, nil
	})
}

// MAllGatherResponse carries every rank's contribution, ordered by rank
type MAllGatherResponse struct {
	Values []int32
	Peers  []*MPeerDescriptor
}

// GetValues returns the Values field, or nil for a nil message
func (m *MAllGatherResponse) GetValues() []int32 {
	if m != nil {
		return m.Values
	}
	return nil
}

// GetPeers returns the Peers field, or nil for a nil message
func (m *MAllGatherResponse) GetPeers() []*MPeerDescriptor {
	if m != nil {
		return m.Peers
	}
	return nil
}

// Marshal encodes this message in the protobuf wire format
func (m *MAllGatherResponse) Marshal() ([]byte, error) {
	var err error
	var b []byte
	b = appendPackedInt32s(b, 1, m.Values)
	for _, p := range m.Peers {
		if b, err = appendMessage(b, 2, p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MAllGatherResponse) Unmarshal(b []byte) error {
	*m = MAllGatherResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			vs, n, err := consumeInt32s(typ, b, m.Values)
			m.Values = vs
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			peer := new(MPeerDescriptor)
			if err := peer.Unmarshal(v); err != nil {
				return 0, err
			}
			m.Peers = append(m.Peers, peer)
			return n, nil
		}
		return 0, nil
	})
}

// MBarrierRequest announces that a rank has reached a barrier
type MBarrierRequest struct {
	GroupId string
	Rank    int32
	Epoch   int32
}

// GetGroupId returns the GroupId field, or its zero value for a nil message
func (m *MBarrierRequest) GetGroupId() string {
	if m != nil {
		return m.GroupId
	}
	return ""
}

// GetRank returns the Rank field, or its zero value for a nil message
func (m *MBarrierRequest) GetRank() int32 {
	if m != nil {
		return m.Rank
	}
	return 0
}

// GetEpoch returns the Epoch field, or its zero value for a nil message
func (m *MBarrierRequest) GetEpoch() int32 {
	if m != nil {
		return m.Epoch
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MBarrierRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.GroupId)
	b = appendInt32(b, 2, m.Rank)
	b = appendInt32(b, 3, m.Epoch)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MBarrierRequest) Unmarshal(b []byte) error {
	*m = MBarrierRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeString(typ, b)
			m.GroupId = v
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Rank = int32(v)
			return n, err
		case 3:
			v, n, err := consumeVarint(typ, b)
			m.Epoch = int32(v)
			return n, err
		}
		return 0, nil
	})
}

// MBarrierResponse releases a rank from a barrier
type MBarrierResponse struct {
	Time int64
}

// GetTime returns the Time field, or its zero value for a nil message
func (m *MBarrierResponse) GetTime() int64 {
	if m != nil {
		return m.Time
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MBarrierResponse) Marshal() ([]byte, error) {
	return appendInt64(nil, 1, m.Time), nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MBarrierResponse) Unmarshal(b []byte) error {
	*m = MBarrierResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			v, n, err := consumeVarint(typ, b)
			m.Time = int64(v)
			return n, err
		}
		return 0, nil
	})
}

// MLogMsg is a log line forwarded from a worker rank to the coordinator
type MLogMsg struct {
	Level   int32
	Source  string
	Message string
}

// GetLevel returns the Level field, or its zero value for a nil message
func (m *MLogMsg) GetLevel() int32 {
	if m != nil {
		return m.Level
	}
	return 0
}

// GetSource returns the Source field, or its zero value for a nil message
func (m *MLogMsg) GetSource() string {
	if m != nil {
		return m.Source
	}
	return ""
}

// GetMessage returns the Message field, or its zero value for a nil message
func (m *MLogMsg) GetMessage() string {
	if m != nil {
		return m.Message
	}
	return ""
}

// Marshal encodes this message in the protobuf wire format
func (m *MLogMsg) Marshal() ([]byte, error) {
	var b []byte
	b = appendInt32(b, 1, m.Level)
	b = appendString(b, 2, m.Source)
	b = appendString(b, 3, m.Message)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MLogMsg) Unmarshal(b []byte) error {
	*m = MLogMsg{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.Level = int32(v)
			return n, err
		case 2:
			v, n, err := consumeString(typ, b)
			m.Source = v
			return n, err
		case 3:
			v, n, err := consumeString(typ, b)
			m.Message = v
			return n, err
		}
		return 0, nil
	})
}

// MLogMsgAck closes a log stream
type MLogMsgAck struct {
	Time  int64
	Count int32
}

// GetTime returns the Time field, or its zero value for a nil message
func (m *MLogMsgAck) GetTime() int64 {
	if m != nil {
		return m.Time
	}
	return 0
}

// GetCount returns the Count field, or its zero value for a nil message
func (m *MLogMsgAck) GetCount() int32 {
	if m != nil {
		return m.Count
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MLogMsgAck) Marshal() ([]byte, error) {
	var b []byte
	b = appendInt64(b, 1, m.Time)
	b = appendInt32(b, 2, m.Count)
	return b, nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MLogMsgAck) Unmarshal(b []byte) error {
	*m = MLogMsgAck{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(typ, b)
			m.Time = int64(v)
			return n, err
		case 2:
			v, n, err := consumeVarint(typ, b)
			m.Count = int32(v)
			return n, err
		}
		return 0, nil
	})
}

// MStopRequest asks a rank to shut down
type MStopRequest struct {
	Rank int32
}

// GetRank returns the Rank field, or its zero value for a nil message
func (m *MStopRequest) GetRank() int32 {
	if m != nil {
		return m.Rank
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MStopRequest) Marshal() ([]byte, error) {
	return appendInt32(nil, 1, m.Rank), nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MStopRequest) Unmarshal(b []byte) error {
	*m = MStopRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			v, n, err := consumeVarint(typ, b)
			m.Rank = int32(v)
			return n, err
		}
		return 0, nil
	})
}

// MStopResponse acknowledges an MStopRequest
type MStopResponse struct {
	Time int64
}

// GetTime returns the Time field, or its zero value for a nil message
func (m *MStopResponse) GetTime() int64 {
	if m != nil {
		return m.Time
	}
	return 0
}

// Marshal encodes this message in the protobuf wire format
func (m *MStopResponse) Marshal() ([]byte, error) {
	return appendInt64(nil, 1, m.Time), nil
}

// Unmarshal decodes this message from the protobuf wire format
func (m *MStopResponse) Unmarshal(b []byte) error {
	*m = MStopResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			v, n, err := consumeVarint(typ, b)
			m.Time = int64(v)
			return n, err
		}
		return 0, nil
	})
}
