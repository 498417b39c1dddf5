package remote

import (
	"bytes"

	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// Marshal serializes the request by framing each marshalled TimeSeries as
// a length-delimited message under field 1, which is byte-identical to
// marshalling the whole prompb.WriteRequest.
func Marshal(wr *prompb.WriteRequest) ([]byte, error) {
	bb := bytes.NewBuffer(make([]byte, 0, wr.Size()))
	for i := range wr.Timeseries {
		buf, err := wr.Timeseries[i].Marshal()
		if err != nil {
			return nil, err
		}
		// This is the prompb constant for timeseries.
		bb.WriteByte(0xa)
		bb.Write(proto.EncodeVarint(uint64(len(buf))))
		bb.Write(buf)
	}
	return bb.Bytes(), nil
}

// Compress applies the raw snappy block encoding required by remote write.
func Compress(data []byte) []byte {
	return snappy.Encode(nil, data)
}

// EncodeWriteRequest sorts wr in place, marshals it and compresses the
// result into the payload sent over the wire.
func EncodeWriteRequest(wr *prompb.WriteRequest) ([]byte, error) {
	SortWriteRequest(wr)
	data, err := Marshal(wr)
	if err != nil {
		return nil, err
	}
	return Compress(data), nil
}
