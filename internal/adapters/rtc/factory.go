package rtc

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// ConfigFromURLs builds a configuration from ICE server urls; empty means defaults.
func ConfigFromURLs(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		return DefaultWebRTCConfig()
	}
	return webrtc.Configuration{ICEServers: []webrtc.ICEServer{{URLs: urls}}}
}

// Factory opens pion peer connections sharing one API instance.
type Factory struct {
	api *webrtc.API
	cfg webrtc.Configuration
}

var _ core.MediaConnectionFactory = (*Factory)(nil)

func NewFactory(cfg webrtc.Configuration) (*Factory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	// nack responder, rtcp reports and twcc feedback
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, err
	}
	se := webrtc.SettingEngine{}
	se.LoggerFactory = NewLoggerFactory()
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir), webrtc.WithSettingEngine(se))
	return &Factory{api: api, cfg: cfg}, nil
}

func (f *Factory) NewConnection(peer domain.UserID) (core.MediaConnection, error) {
	return newWebRTCConnection(f.api, f.cfg, peer)
}
