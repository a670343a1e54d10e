package align

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/edaniels/gobag/rosbag"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/zmsbruce/rm-radar-to-mmdet3d/pointcloud"
)

// pointFieldFloat32 is the sensor_msgs/PointField datatype for FLOAT32.
const pointFieldFloat32 = 7

type rosTime struct {
	Secs  float64 `json:"secs"`
	Nsecs float64 `json:"nsecs"`
}

func (t rosTime) seconds() float64 {
	return t.Secs + t.Nsecs/1e9
}

type pointField struct {
	Name     string `json:"name"`
	Offset   uint32 `json:"offset"`
	Datatype uint8  `json:"datatype"`
	Count    uint32 `json:"count"`
}

// pointCloud2 mirrors the sensor_msgs/PointCloud2 message as rendered to
// JSON by gobag. The packed payload arrives base64 encoded.
type pointCloud2 struct {
	Header struct {
		Stamp rosTime `json:"stamp"`
	} `json:"header"`
	Height      uint32       `json:"height"`
	Width       uint32       `json:"width"`
	Fields      []pointField `json:"fields"`
	IsBigendian bool         `json:"is_bigendian"`
	PointStep   uint32       `json:"point_step"`
	Data        []byte       `json:"data"`
}

// pointCloud unpacks the payload into engine points, honoring the per-field
// offsets and the point stride.
func (m *pointCloud2) pointCloud() (pointcloud.PointCloud, error) {
	if m.IsBigendian {
		return nil, errors.New("big endian point clouds are not supported")
	}

	var xField, yField, zField *pointField
	for i := range m.Fields {
		switch m.Fields[i].Name {
		case "x":
			xField = &m.Fields[i]
		case "y":
			yField = &m.Fields[i]
		case "z":
			zField = &m.Fields[i]
		}
	}
	if xField == nil || yField == nil || zField == nil {
		return nil, errors.New("point cloud message is missing an x, y, or z field")
	}

	step := int(m.PointStep)
	for _, f := range []*pointField{xField, yField, zField} {
		if f.Datatype != pointFieldFloat32 {
			return nil, errors.Errorf("unsupported point field datatype %d", f.Datatype)
		}
		if int(f.Offset)+4 > step {
			return nil, errors.Errorf("point field %s at offset %d does not fit the point step %d", f.Name, f.Offset, step)
		}
	}

	count := int(m.Width) * int(m.Height)
	if len(m.Data) < count*step {
		return nil, errors.Errorf("point cloud payload is %d bytes, need %d", len(m.Data), count*step)
	}

	cloud := make(pointcloud.PointCloud, 0, count)
	for i := 0; i < count; i++ {
		base := i * step
		x := math.Float32frombits(binary.LittleEndian.Uint32(m.Data[base+int(xField.Offset):]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(m.Data[base+int(yField.Offset):]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(m.Data[base+int(zField.Offset):]))
		cloud = append(cloud, r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)})
	}
	return cloud, nil
}

// readBag reads the contents of a rosbag into a gobag data structure.
func readBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	defer utils.UncheckedErrorFunc(f.Close)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// lidarMessages extracts every message on the given topic, in bag order.
func lidarMessages(rb *rosbag.RosBag, topic string) ([]pointCloud2, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[topic]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	all := []pointCloud2{}

	for {
		data, err := msgs.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		var message pointCloud2
		if err := json.Unmarshal(data, &message); err != nil {
			return nil, err
		}

		all = append(all, message)
	}

	return all, nil
}
