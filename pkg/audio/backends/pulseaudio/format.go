package pulseaudio

import (
	"fmt"

	"github.com/jfreymuth/pulse/proto"
	"github.com/xaionaro-go/voiceactivity/pkg/audio/types"
)

func pulseFormat(f types.PCMFormat) (byte, error) {
	switch f {
	case types.PCMFormatU8:
		return proto.FormatUint8, nil
	case types.PCMFormatS16LE:
		return proto.FormatInt16LE, nil
	case types.PCMFormatS16BE:
		return proto.FormatInt16BE, nil
	case types.PCMFormatS32LE:
		return proto.FormatInt32LE, nil
	case types.PCMFormatS32BE:
		return proto.FormatInt32BE, nil
	case types.PCMFormatFloat32LE:
		return proto.FormatFloat32LE, nil
	case types.PCMFormatFloat32BE:
		return proto.FormatFloat32BE, nil
	default:
		return 0, fmt.Errorf("PCM format %v is not supported by Pulse", f)
	}
}

func channelMap(channels types.Channel) (proto.ChannelMap, error) {
	switch channels {
	case 1:
		return proto.ChannelMap{proto.ChannelMono}, nil
	case 2:
		return proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight}, nil
	default:
		return nil, fmt.Errorf("do not know how to configure %d channels", channels)
	}
}
