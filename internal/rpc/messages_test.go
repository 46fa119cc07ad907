package rpc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestPointReplyEncoding(t *testing.T) {
	in := &MPointReply{OwnerRank: 1, PointId: 4, RequestId: 1 << 40, Values: []float64{0, -1.5, math.MaxFloat64}}
	b, err := in.Marshal()
	require.Nil(t, err)
	out := new(MPointReply)
	require.Nil(t, out.Unmarshal(b))
	require.Equal(t, in, out)
}

func TestNegativeInt32Encoding(t *testing.T) {
	in := &MAllGatherResponse{
		Values: []int32{5, -1, 0, 1 << 30},
		Peers:  []*MPeerDescriptor{{Rank: 0, Host: "127.0.0.1", Port: 8080}, {Rank: 1, Host: "::1", Port: 8081}},
	}
	b, err := in.Marshal()
	require.Nil(t, err)
	out := new(MAllGatherResponse)
	require.Nil(t, out.Unmarshal(b))
	require.Equal(t, in, out)

	req := &MPointRequest{RequesterRank: -1}
	b, err = req.Marshal()
	require.Nil(t, err)
	decoded := new(MPointRequest)
	require.Nil(t, decoded.Unmarshal(b))
	require.EqualValues(t, -1, decoded.GetRequesterRank())
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendString(b, "from a newer peer")
	b = appendInt32(b, 2, 7)
	b = protowire.AppendTag(b, 10, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 3)
	m := new(MReleaseRequest)
	require.Nil(t, m.Unmarshal(b))
	require.EqualValues(t, 7, m.GetPointId())
	require.EqualValues(t, 0, m.GetRequesterRank())
}

func TestUnpackedDoubles(t *testing.T) {
	var b []byte
	for _, v := range []float64{1, 2} {
		b = protowire.AppendTag(b, 4, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	m := new(MPointReply)
	require.Nil(t, m.Unmarshal(b))
	require.Equal(t, []float64{1, 2}, m.GetValues())
}

func TestMalformedInput(t *testing.T) {
	m := new(MPointRequest)
	require.NotNil(t, m.Unmarshal([]byte{0x08}))
	// field 1 with the wrong wire type
	require.NotNil(t, m.Unmarshal([]byte{0x0a, 0x00}))
	reply := new(MPointReply)
	// packed doubles that are not a multiple of 8 bytes
	require.NotNil(t, reply.Unmarshal([]byte{0x22, 0x03, 1, 2, 3}))
}

func TestNilGetters(t *testing.T) {
	var reply *MPointReply
	require.Nil(t, reply.GetValues())
	require.EqualValues(t, 0, reply.GetRequestId())
	var peer *MPeerDescriptor
	require.Equal(t, "", peer.GetHost())
}

func TestCodec(t *testing.T) {
	c := codec{}
	require.Equal(t, CodecName, c.Name())
	b, err := c.Marshal(&MBarrierRequest{GroupId: "g", Rank: 2, Epoch: 1})
	require.Nil(t, err)
	out := new(MBarrierRequest)
	require.Nil(t, c.Unmarshal(b, out))
	require.Equal(t, "g", out.GetGroupId())
	require.EqualValues(t, 2, out.GetRank())

	_, err = c.Marshal("not a message")
	require.NotNil(t, err)
	require.NotNil(t, c.Unmarshal(b, new(int)))
}
